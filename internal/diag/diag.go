// Package diag collects lightweight process diagnostics for the /debug view.
package diag

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

var startTime = time.Now()

// Snapshot is a point-in-time view of the process. Zero fields mean the
// underlying probe was unavailable.
type Snapshot struct {
	RSSBytes   uint64
	CPUPercent float64
	Goroutines int
	Uptime     time.Duration
}

// Collect gathers a snapshot. Probe failures degrade to zero fields rather
// than erroring; diagnostics must never break the chat path.
func Collect() Snapshot {
	snap := Snapshot{
		Goroutines: runtime.NumGoroutine(),
		Uptime:     time.Since(startTime).Round(time.Second),
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return snap
	}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		snap.RSSBytes = mem.RSS
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		snap.CPUPercent = cpu
	}
	return snap
}

func (s Snapshot) String() string {
	rss := "n/a"
	if s.RSSBytes > 0 {
		rss = fmt.Sprintf("%.1f MiB", float64(s.RSSBytes)/(1 << 20))
	}
	cpu := "n/a"
	if s.CPUPercent > 0 {
		cpu = fmt.Sprintf("%.1f%%", s.CPUPercent)
	}
	return fmt.Sprintf("rss %s, cpu %s, goroutines %d, uptime %s", rss, cpu, s.Goroutines, s.Uptime)
}

package chat

import (
	"strings"
	"time"
)

// relayFlushInterval bounds observer churn to roughly 20 notifications per
// second per message while a reply streams in.
const relayFlushInterval = 50 * time.Millisecond

// streamRelay accumulates streamed text fragments for one message and flushes
// them to the session at a bounded cadence. It is confined to the stream
// goroutine: Push and Flush must not be called concurrently.
//
// Fragments are applied in arrival order and none is ever dropped: the final
// Flush after the stream ends drains whatever is pending.
type streamRelay struct {
	s         *Session
	messageID string

	pending   strings.Builder
	lastFlush time.Time
}

func newStreamRelay(s *Session, messageID string) *streamRelay {
	return &streamRelay{
		s:         s,
		messageID: messageID,
		lastFlush: time.Now(),
	}
}

// Push appends a fragment and flushes if the cadence allows it.
func (r *streamRelay) Push(text string) {
	if r == nil || text == "" {
		return
	}
	r.pending.WriteString(text)
	if time.Since(r.lastFlush) >= relayFlushInterval {
		r.Flush()
	}
}

// Flush posts the pending buffer to the session loop. Appending by id means
// a flush for a deleted placeholder lands nowhere.
func (r *streamRelay) Flush() {
	if r == nil || r.pending.Len() == 0 {
		return
	}
	delta := r.pending.String()
	r.pending.Reset()
	r.lastFlush = time.Now()

	id := r.messageID
	r.s.post(func() {
		r.s.appendStreamDelta(id, delta)
	})
}

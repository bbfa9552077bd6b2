package chat

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ClipboardReader fetches clipboard contents by mime type. The zero-value
// implementation shells out to wl-paste; tests substitute a fake.
type ClipboardReader interface {
	ReadMime(mime string) ([]byte, error)
}

// WlClipboard reads the Wayland clipboard through the wl-paste helper.
type WlClipboard struct{}

func (WlClipboard) ReadMime(mime string) ([]byte, error) {
	return exec.Command("wl-paste", "--type", mime).Output()
}

var clipboardImageMimes = []string{"image/png", "image/jpeg", "image/webp"}

// PasteImageFromClipboard pulls an image off the clipboard, stages a copy on
// disk, and returns the attachment serialized as JSON. Returns "" when the
// clipboard holds no usable image or the image exceeds the size cap.
func (s *Session) PasteImageFromClipboard() string {
	if s == nil || s.clip == nil {
		return ""
	}

	var raw []byte
	var mime string
	for _, candidate := range clipboardImageMimes {
		data, err := s.clip.ReadMime(candidate)
		if err != nil || len(data) == 0 {
			continue
		}
		raw, mime = data, candidate
		break
	}
	if len(raw) == 0 {
		return ""
	}

	if len(raw) > maxClipboardImageBytes {
		s.AppendInfo(fmt.Sprintf("Clipboard image too large (%d bytes; max %d).", len(raw), maxClipboardImageBytes))
		return ""
	}

	// Keep a file copy so the user can retrieve what they pasted.
	ext := "png"
	switch mime {
	case "image/jpeg":
		ext = "jpg"
	case "image/webp":
		ext = "webp"
	}
	if err := os.MkdirAll(s.pasteDir, 0o700); err == nil {
		path := filepath.Join(s.pasteDir, fmt.Sprintf("paste-%d.%s", time.Now().UnixMilli(), ext))
		_ = os.WriteFile(path, raw, 0o600)
	}

	att := Attachment{Mime: mime, B64: base64.StdEncoding.EncodeToString(raw)}
	out, err := json.Marshal(att)
	if err != nil {
		return ""
	}
	return string(out)
}

// PasteAttachmentFromClipboard interprets a text/uri-list clipboard payload
// (a file manager copy) as attachments: PDFs pass by path, small images are
// inlined, anything else is skipped. Returns a JSON attachment list or "".
func (s *Session) PasteAttachmentFromClipboard() string {
	if s == nil || s.clip == nil {
		return ""
	}
	data, err := s.clip.ReadMime("text/uri-list")
	if err != nil || len(data) == 0 {
		return ""
	}

	atts := make([]Attachment, 0, 4)
	for _, path := range parseURIList(string(data)) {
		lower := strings.ToLower(path)
		switch {
		case strings.HasSuffix(lower, ".pdf"):
			atts = append(atts, Attachment{Mime: "application/pdf", Path: path})
		case strings.HasSuffix(lower, ".png"),
			strings.HasSuffix(lower, ".jpg"),
			strings.HasSuffix(lower, ".jpeg"),
			strings.HasSuffix(lower, ".webp"):
			raw, err := os.ReadFile(path)
			if err != nil || len(raw) == 0 {
				continue
			}
			if len(raw) > maxClipboardImageBytes {
				s.AppendInfo(fmt.Sprintf("Image %s too large (%d bytes; max %d).",
					filepath.Base(path), len(raw), maxClipboardImageBytes))
				continue
			}
			atts = append(atts, Attachment{
				Mime: mimeForImageExt(lower),
				B64:  base64.StdEncoding.EncodeToString(raw),
				Path: path,
			})
		}
	}
	if len(atts) == 0 {
		return ""
	}
	out, err := json.Marshal(atts)
	if err != nil {
		return ""
	}
	return string(out)
}

func mimeForImageExt(lowerPath string) string {
	switch {
	case strings.HasSuffix(lowerPath, ".png"):
		return "image/png"
	case strings.HasSuffix(lowerPath, ".jpg"), strings.HasSuffix(lowerPath, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(lowerPath, ".webp"):
		return "image/webp"
	default:
		return ""
	}
}

// parseURIList extracts local filesystem paths from a text/uri-list payload.
// Comment lines and non-file URIs are skipped; only empty-host and localhost
// authorities are accepted.
func parseURIList(payload string) []string {
	paths := make([]string, 0, 4)
	for _, line := range strings.Split(payload, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var rest string
		switch {
		case strings.HasPrefix(line, "file://localhost/"):
			rest = strings.TrimPrefix(line, "file://localhost")
		case strings.HasPrefix(line, "file:///"):
			rest = strings.TrimPrefix(line, "file://")
		default:
			continue
		}
		if decoded := percentDecode(rest); decoded != "" {
			paths = append(paths, decoded)
		}
	}
	return paths
}

// percentDecode decodes %XX escapes, leaving malformed escapes as-is.
func percentDecode(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(v))
				i += 2
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

package chat

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestImageMediaTypeFromMime(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want string
	}{
		{"image/jpeg", "image/jpeg"},
		{"image/jpg", "image/jpeg"},
		{"IMAGE/PNG", "image/png"},
		{" image/webp ", "image/webp"},
		{"image/heic", "image/heic"},
		{"image/heif", "image/heif"},
		{"image/tiff", ""},
		{"application/pdf", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := imageMediaTypeFromMime(tc.in); got != tc.want {
			t.Fatalf("imageMediaTypeFromMime(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsPDFAttachment(t *testing.T) {
	t.Parallel()
	cases := []struct {
		att  Attachment
		want bool
	}{
		{Attachment{Mime: "application/pdf"}, true},
		{Attachment{Mime: "APPLICATION/PDF"}, true},
		{Attachment{Path: "/tmp/report.PDF"}, true},
		{Attachment{Path: "/tmp/report.pdf"}, true},
		{Attachment{Mime: "image/png", Path: "/tmp/photo.png"}, false},
		{Attachment{}, false},
	}
	for _, tc := range cases {
		if got := isPDFAttachment(tc.att); got != tc.want {
			t.Fatalf("isPDFAttachment(%+v) = %t, want %t", tc.att, got, tc.want)
		}
	}
}

func TestBuildPromptPartsTextAndImages(t *testing.T) {
	t.Parallel()
	atts := []Attachment{
		{Mime: "image/png", B64: "aGVsbG8="},
		{Mime: "image/jpg", B64: "aGVsbG8="},
		{Mime: "", B64: "aGVsbG8="},  // dropped: no mime
		{Mime: "image/png", B64: ""}, // dropped: no payload
	}
	parts := buildPromptParts("describe these", atts, false, t.TempDir())
	if len(parts) != 3 {
		t.Fatalf("expected 3 parts, got %+v", parts)
	}
	if parts[0].Text != "describe these" {
		t.Fatalf("text part first, got %+v", parts[0])
	}
	if parts[1].ImageMime != "image/png" || parts[2].ImageMime != "image/jpeg" {
		t.Fatalf("bad image mimes: %+v", parts[1:])
	}
}

func TestBuildPromptPartsImageOnly(t *testing.T) {
	t.Parallel()
	parts := buildPromptParts("  ", []Attachment{{Mime: "image/png", B64: "aGVsbG8="}}, false, t.TempDir())
	if len(parts) != 1 || parts[0].ImageB64 == "" {
		t.Fatalf("expected lone image part, got %+v", parts)
	}
}

func TestBuildPromptPartsGeminiStrictDropsUnknownTypes(t *testing.T) {
	t.Parallel()
	atts := []Attachment{{Mime: "image/tiff", B64: "aGVsbG8="}}

	if parts := buildPromptParts("", atts, true, t.TempDir()); len(parts) != 0 {
		t.Fatalf("strict mode kept unknown type: %+v", parts)
	}
	parts := buildPromptParts("", atts, false, t.TempDir())
	if len(parts) != 1 || parts[0].ImageMime != "image/tiff" {
		t.Fatalf("lenient mode should pass raw mime: %+v", parts)
	}
}

func TestOversizedPDFBecomesNote(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "big.pdf")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.Truncate(maxPDFBytes + 1); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	f.Close()

	parts := buildPromptParts("", []Attachment{{Mime: "application/pdf", Path: path}}, false, dir)
	if len(parts) != 1 {
		t.Fatalf("expected one note part, got %+v", parts)
	}
	if !strings.Contains(parts[0].Text, "big.pdf") || !strings.Contains(parts[0].Text, "too large") {
		t.Fatalf("bad note: %q", parts[0].Text)
	}
}

func TestUnreadablePDFBecomesNote(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.pdf")
	if err := os.WriteFile(path, []byte("not a pdf"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	parts := buildPromptParts("", []Attachment{{Path: path}}, false, dir)
	if len(parts) != 1 || !strings.Contains(parts[0].Text, "could not be converted to text") {
		t.Fatalf("bad note: %+v", parts)
	}
}

func TestPDFFromBase64CleansUpTempFile(t *testing.T) {
	t.Parallel()
	attachDir := filepath.Join(t.TempDir(), "staging")
	b64 := base64.StdEncoding.EncodeToString([]byte("not a pdf either"))

	parts := buildPromptParts("", []Attachment{{Mime: "application/pdf", B64: b64}}, false, attachDir)
	if len(parts) != 1 || !strings.Contains(parts[0].Text, "could not be converted to text") {
		t.Fatalf("bad note: %+v", parts)
	}

	entries, err := os.ReadDir(attachDir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("temp pdf left behind: %v", entries)
	}
}

func TestTruncateRunes(t *testing.T) {
	t.Parallel()
	if got := truncateRunes("hello", 10); got != "hello" {
		t.Fatalf("short string changed: %q", got)
	}
	if got := truncateRunes("hello", 3); got != "hel" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncateRunes("héllo wörld", 5); got != "héllo" {
		t.Fatalf("rune truncate = %q", got)
	}
}

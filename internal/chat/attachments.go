package chat

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

const (
	// maxPDFBytes caps the size of a PDF we are willing to extract.
	maxPDFBytes = 25 << 20
	// maxPDFTextChars caps the extracted text injected into the prompt.
	maxPDFTextChars = 100_000
	// maxClipboardImageBytes caps files taken from the clipboard before they
	// ever reach the pipeline; the payload is base64'd and shipped as JSON.
	maxClipboardImageBytes = 8 << 20
)

// imageMediaTypeFromMime normalizes a mime string to one of the image types
// both providers understand, or "" when unrecognized.
func imageMediaTypeFromMime(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/jpeg", "image/jpg":
		return "image/jpeg"
	case "image/png":
		return "image/png"
	case "image/webp":
		return "image/webp"
	case "image/heic":
		return "image/heic"
	case "image/heif":
		return "image/heif"
	default:
		return ""
	}
}

func isPDFAttachment(a Attachment) bool {
	if strings.ToLower(strings.TrimSpace(a.Mime)) == "application/pdf" {
		return true
	}
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(a.Path)), ".pdf")
}

func pdfLabelFromPath(path string) string {
	base := filepath.Base(strings.TrimSpace(path))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "document.pdf"
	}
	return base
}

// buildPromptParts turns the typed text plus attachments into provider
// request parts. Images pass through as inline base64 parts; PDFs are
// converted to labeled text blocks; oversized or failed attachments become
// explanatory text parts so the submit still proceeds with what remains;
// anything unrecognized is dropped silently.
//
// Gemini requires a recognized image media type, so unrecognized image mimes
// are dropped when geminiStrict is set.
func buildPromptParts(text string, atts []Attachment, geminiStrict bool, attachDir string) []PromptPart {
	parts := make([]PromptPart, 0, len(atts)+1)
	if strings.TrimSpace(text) != "" {
		parts = append(parts, PromptPart{Text: text})
	}

	for _, a := range atts {
		if isPDFAttachment(a) {
			if part, ok := pdfPromptPart(a, attachDir); ok {
				parts = append(parts, part)
			}
			continue
		}

		mime := strings.TrimSpace(a.Mime)
		b64 := strings.TrimSpace(a.B64)
		if mime == "" || b64 == "" {
			continue
		}
		mediaType := imageMediaTypeFromMime(mime)
		if geminiStrict && mediaType == "" {
			continue
		}
		if mediaType == "" {
			mediaType = mime
		}
		parts = append(parts, PromptPart{ImageB64: b64, ImageMime: mediaType})
	}
	return parts
}

// pdfPromptPart resolves a PDF to a text part. Bytes come from the path when
// present, otherwise from decoding the base64 payload into a temp file that
// is deleted afterwards regardless of extraction success.
func pdfPromptPart(a Attachment, attachDir string) (PromptPart, bool) {
	pdfPath := strings.TrimSpace(a.Path)
	tempPath := ""
	if pdfPath == "" {
		b64 := strings.TrimSpace(a.B64)
		if b64 == "" {
			return PromptPart{}, false
		}
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil || len(raw) == 0 {
			return PromptPart{}, false
		}
		if len(raw) > maxPDFBytes {
			return PromptPart{Text: fmt.Sprintf(
				"PDF (document.pdf) was too large to attach (%d bytes; max %d).", len(raw), maxPDFBytes)}, true
		}
		path, err := writeTempPDF(attachDir, raw)
		if err != nil {
			return PromptPart{Text: fmt.Sprintf("PDF (document.pdf) could not be staged: %v", err)}, true
		}
		pdfPath = path
		tempPath = path
	}
	if tempPath != "" {
		defer os.Remove(tempPath)
	}

	label := pdfLabelFromPath(pdfPath)
	if fi, err := os.Stat(pdfPath); err == nil && fi.Size() > maxPDFBytes {
		return PromptPart{Text: fmt.Sprintf(
			"PDF (%s) was too large to attach (%d bytes; max %d).", label, fi.Size(), maxPDFBytes)}, true
	}

	extracted, err := extractPDFText(pdfPath)
	if err != nil {
		return PromptPart{Text: fmt.Sprintf("PDF (%s) could not be converted to text: %v", label, err)}, true
	}

	if len(extracted) > maxPDFTextChars {
		extracted = truncateRunes(extracted, maxPDFTextChars) + "\n\n[PDF text truncated]"
	}
	return PromptPart{Text: fmt.Sprintf("PDF (%s) contents:\n\n```text\n%s\n```", label, strings.TrimSpace(extracted))}, true
}

func writeTempPDF(attachDir string, raw []byte) (string, error) {
	dir := strings.TrimSpace(attachDir)
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "qs-chat-attach")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("attach-%d.pdf", time.Now().UnixNano()))
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func extractPDFText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

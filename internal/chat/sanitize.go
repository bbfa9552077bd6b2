package chat

import (
	"encoding/json"
	"strings"
)

// sanitizeProviderError extracts a clean, user-facing message from a raw
// provider error string. Provider SDK errors embed the HTTP error body after
// a "with message:" marker; when that payload carries an error.message field
// it is extracted and stripped of trailing URLs and "for more information"
// boilerplate. Anything else is returned unchanged.
func sanitizeProviderError(raw string) string {
	if cleaned, ok := extractEmbeddedErrorMessage(raw); ok {
		return cleaned
	}
	return raw
}

func extractEmbeddedErrorMessage(raw string) (string, bool) {
	const needle = "with message:"
	idx := strings.Index(raw, needle)
	if idx < 0 {
		return "", false
	}
	rest := strings.TrimSpace(raw[idx+len(needle):])
	start := strings.Index(rest, "{")
	if start < 0 {
		return "", false
	}

	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(rest[start:])), &payload); err != nil {
		return "", false
	}

	cleaned := cleanProviderMessage(payload.Error.Message)
	if cleaned == "" {
		return "", false
	}
	return cleaned, true
}

// cleanProviderMessage trims boilerplate tails providers append to their
// error messages.
func cleanProviderMessage(msg string) string {
	out := strings.TrimSpace(msg)
	for _, marker := range []string{"For more information", "for more information", "http://", "https://"} {
		if idx := strings.Index(out, marker); idx >= 0 {
			out = strings.TrimSpace(out[:idx])
		}
	}
	return strings.TrimSpace(strings.TrimRight(out, "."))
}

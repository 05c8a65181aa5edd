package textutil

import (
	"path/filepath"
	"strings"
)

// SanitizeToken converts a string to a lowercase token of letters, digits,
// hyphens and underscores. Everything else becomes an underscore. Returns
// "unknown" for empty input.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}

// ScriptName derives a script filename from a capture path: the file stem,
// sanitized, and cut to at most limit bytes. A limit <= 0 disables the cut.
func ScriptName(capturePath string, limit int) string {
	base := filepath.Base(capturePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	name := SanitizeToken(stem)
	if limit > 0 && len(name) > limit {
		name = strings.TrimRight(name[:limit], "_-")
	}
	return name
}

// Truncate shortens value to max runes, marking the cut with an ellipsis.
func Truncate(value string, max int) string {
	runes := []rune(value)
	if max <= 0 || len(runes) <= max {
		return value
	}
	if max == 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}

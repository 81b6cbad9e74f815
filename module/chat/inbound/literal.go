package inbound

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
)

// escapeMarker is the literal two-byte sequence `\u` left behind when the
// peer JSON-encodes text twice.
const escapeMarker = `\u`

var unicodeEscape = regexp.MustCompile(`\\u([0-9a-fA-F]{4})(?:\\u([0-9a-fA-F]{4}))?`)

func hasEscape(s string) bool { return strings.Contains(s, escapeMarker) }

// isQuoted reports whether s is a complete JSON string literal.
func isQuoted(s string) bool {
	s = strings.TrimSpace(s)
	return len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"'
}

// unquote decodes s as one JSON string literal, wrapping it in quotes first
// when it isn't already. When s isn't a valid literal (stray quotes, raw
// newlines) only the \uXXXX sequences are decoded.
func unquote(s string) (string, bool) {
	lit := strings.TrimSpace(s)
	if !isQuoted(lit) {
		lit = `"` + lit + `"`
	}
	var out string
	if err := json.Unmarshal([]byte(lit), &out); err == nil {
		return out, true
	}
	if !hasEscape(s) {
		return s, false
	}
	out = unicodeEscape.ReplaceAllStringFunc(s, replaceEscape)
	return out, out != s
}

func replaceEscape(m string) string {
	parts := unicodeEscape.FindStringSubmatch(m)
	hi, _ := strconv.ParseUint(parts[1], 16, 16)
	if parts[2] == "" {
		return string(rune(hi))
	}
	lo, _ := strconv.ParseUint(parts[2], 16, 16)
	if r := utf16.DecodeRune(rune(hi), rune(lo)); r != unicode.ReplacementChar {
		return string(r)
	}
	// two independent code units
	return string(rune(hi)) + string(rune(lo))
}

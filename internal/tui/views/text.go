package views

import (
	"strings"
	"time"
	"unicode/utf8"
)

// sanitizeForTerminal drops codepoints tcell renders with the wrong width:
// skin tone modifiers, zero width joiners and variation selectors. A thumbs
// up with a skin tone becomes a plain two-cell thumbs up.
func sanitizeForTerminal(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !isProblematicRune(r) {
			b.WriteRune(r)
		}
		i += size
	}
	return b.String()
}

func isProblematicRune(r rune) bool {
	switch {
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	case r == 0x200D:
		return true
	case r >= 0xFE00 && r <= 0xFE0F:
		return true
	case r >= 0xE0100 && r <= 0xE01EF:
		return true
	}
	return false
}

// formatTimestamp renders today's times as HH:MM and older ones as MM/DD.
func formatTimestamp(ms int64, now time.Time) string {
	if ms == 0 {
		return ""
	}
	t := time.UnixMilli(ms).In(now.Location())
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}

// matchesFilter reports whether any field contains filter, ignoring case.
func matchesFilter(filter string, fields ...string) bool {
	if filter == "" {
		return true
	}
	filter = strings.ToLower(filter)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), filter) {
			return true
		}
	}
	return false
}

// oneLine collapses newlines so previews fit a table cell.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

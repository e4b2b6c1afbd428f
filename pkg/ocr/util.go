package ocr

import "strings"

// Snippet shortens text for logs and previews.
func Snippet(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}

// normalizeText collapses whitespace and drops control characters.
func normalizeText(t string) string {
	t = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' {
			return ' '
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, t)
	return strings.Join(strings.Fields(t), " ")
}

// letterCount counts ASCII letters; used to judge whether a pass read anything.
func letterCount(s string) int {
	n := 0
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			n++
		}
	}
	return n
}

package parser

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	reLineBreak  = regexp.MustCompile(`\r\n?`)
	reInlineTabs = regexp.MustCompile(`\t+`)
)

// NormalizeText composes decomposed Hangul (NFC), unifies line breaks to \n
// and turns tabs into spaces. Tesseract and some phone scanners emit jamo
// sequences that would otherwise slip past the [가-힣] class.
func NormalizeText(s string) string {
	s = norm.NFC.String(s)
	s = reLineBreak.ReplaceAllString(s, "\n")
	s = reInlineTabs.ReplaceAllString(s, " ")
	return s
}

// SplitLines returns the trimmed, non-empty lines of s in order.
func SplitLines(s string) []string {
	parts := strings.Split(NormalizeText(s), "\n")
	lines := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			lines = append(lines, p)
		}
	}
	return lines
}

// flattenLines splits each element on embedded line breaks as well, so
// callers may pass either engine lines or raw chunks.
func flattenLines(in []string) []string {
	var out []string
	for _, l := range in {
		out = append(out, SplitLines(l)...)
	}
	return out
}

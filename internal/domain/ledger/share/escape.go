package share

import "strings"

const upperhex = "0123456789ABCDEF"

// escapeURIComponent matches JavaScript's encodeURIComponent: everything
// except A-Z a-z 0-9 and - _ . ! ~ * ' ( ) is percent-encoded as UTF-8.
// url.QueryEscape differs on space and on ! * ' ( ).
func escapeURIComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}

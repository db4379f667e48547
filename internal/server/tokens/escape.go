package tokens

import (
	"errors"
	"strings"
)

var errBadEscape = errors.New("invalid percent escape")

const upperhex = "0123456789ABCDEF"

// Escape percent-encodes every byte outside [A-Za-z0-9] as %XX.
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAlnum(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0x0f])
	}
	return b.String()
}

// Unescape reverses Escape. A string without '%' is returned as is. A string
// containing '%' must be exactly what Escape produces: only alphanumerics and
// uppercase %XX escapes of non-alphanumeric bytes.
func Unescape(s string) (string, error) {
	if !strings.Contains(s, "%") {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '%' {
			if !isAlnum(c) {
				return "", errBadEscape
			}
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(s) {
			return "", errBadEscape
		}
		hi, ok1 := unhex(s[i+1])
		lo, ok2 := unhex(s[i+2])
		if !ok1 || !ok2 {
			return "", errBadEscape
		}
		d := hi<<4 | lo
		if isAlnum(d) {
			return "", errBadEscape
		}
		b.WriteByte(d)
		i += 2
	}
	return b.String(), nil
}

func isAlnum(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9'
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

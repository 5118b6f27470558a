// Package paramkey provides the reversible encoding that maps parameter
// names onto environment-variable and file-name safe identifiers.
package paramkey

import (
	"fmt"
	"strings"
)

// Encode maps an arbitrary parameter name to a string containing only
// [A-Z0-9_]. Uppercase letters and digits pass through verbatim; every
// other byte (including '_' itself) becomes "_XX" with XX the uppercase
// hex value of the byte. The mapping is total and Decode inverts it
// exactly, so distinct names never collide.
func Encode(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "_%02X", c)
	}
	return b.String()
}

// Decode inverts Encode. It fails on malformed input, such as a truncated
// or non-hex escape sequence.
func Decode(encoded string) (string, error) {
	var b strings.Builder
	b.Grow(len(encoded))
	for i := 0; i < len(encoded); i++ {
		c := encoded[i]
		if c != '_' {
			if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
				b.WriteByte(c)
				continue
			}
			return "", fmt.Errorf("paramkey: invalid character %q at offset %d", c, i)
		}
		if i+2 >= len(encoded) {
			return "", fmt.Errorf("paramkey: truncated escape at offset %d", i)
		}
		hi, ok1 := hexVal(encoded[i+1])
		lo, ok2 := hexVal(encoded[i+2])
		if !ok1 || !ok2 {
			return "", fmt.Errorf("paramkey: invalid escape %q at offset %d", encoded[i:i+3], i)
		}
		b.WriteByte(hi<<4 | lo)
		i += 2
	}
	return b.String(), nil
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

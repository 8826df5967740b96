package field

import (
	"fmt"
	"unicode/utf16"
)

// Hash is the 31-multiplier rolling hash over UTF-16 code units, wrapped to
// a signed 32-bit integer after every character.
func Hash(input string) int32 {
	var h int32
	for _, c := range utf16.Encode([]rune(input)) {
		h = h*31 + int32(c)
	}
	return h
}

// Energy maps the input hash into (0.001, 1.001). It is not cryptographic;
// collisions are expected.
func Energy(input string) float64 {
	h := int64(Hash(input))
	if h < 0 {
		h = -h
	}
	return float64(h%1000)/1000 + 0.001
}

// Identifier is the render tag derived from the input hash.
func Identifier(input string) string {
	return fmt.Sprintf("%08x", uint32(Hash(input)))
}

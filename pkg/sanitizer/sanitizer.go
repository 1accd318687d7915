package sanitizer

import (
	"regexp"
	"strings"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reWhitespace = regexp.MustCompile(`\s+`)
	reCodeShape  = regexp.MustCompile(`^[A-Z]{3}$`)
)

func removeWhitespace(s string) string {
	return reWhitespace.ReplaceAllString(s, "")
}

// NormalizeCode canonicalizes carrier flight numbers and airport codes.
func NormalizeCode(input string) string {
	p := Pipeline{
		strings.TrimSpace,
		removeWhitespace,
		strings.ToUpper,
	}
	return p.Apply(input)
}

// LooksLikeAirportCode reports whether input is exactly three letters once uppercased.
func LooksLikeAirportCode(input string) bool {
	return len(input) == 3 && reCodeShape.MatchString(strings.ToUpper(input))
}

// Package validate provides centralized input validation for the listing API:
// struct validation of query objects, free-text attribute checks, and URL
// checks for media references.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// String validation errors
var (
	ErrEmpty             = errors.New("string is empty")
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
)

// StringConstraints bounds a string. Lengths count runes; zero means no bound.
type StringConstraints struct {
	MinLength      int
	MaxLength      int
	AllowedPattern *regexp.Regexp
	AllowEmpty     bool
	TrimSpace      bool
}

// String checks s against c and returns it, trimmed when c.TrimSpace is set.
func String(s string, c StringConstraints) (string, error) {
	if c.TrimSpace {
		s = strings.TrimSpace(s)
	}
	if s == "" {
		if c.AllowEmpty {
			return "", nil
		}
		return "", ErrEmpty
	}

	switch n := utf8.RuneCountInString(s); {
	case c.MinLength > 0 && n < c.MinLength:
		return "", fmt.Errorf("%w: %d < %d characters", ErrStringTooShort, n, c.MinLength)
	case c.MaxLength > 0 && n > c.MaxLength:
		return "", fmt.Errorf("%w: %d > %d characters", ErrStringTooLong, n, c.MaxLength)
	}
	if c.AllowedPattern != nil && !c.AllowedPattern.MatchString(s) {
		return "", ErrInvalidCharacters
	}
	return s, nil
}

// attributePattern admits vehicle attribute values such as "Mercedes-Benz",
// "Model 3", "e-tron GT" or "Plug-in hybrid".
var attributePattern = regexp.MustCompile(`^[\p{L}\p{N} _\-\.'/+&]+$`)

// Attribute validates a free-text vehicle attribute used as a search filter
// (make, model, fuel type, transmission): 1 to 64 characters after trimming,
// drawn from letters, digits, spaces and - _ . ' / + &.
func Attribute(s string) (string, error) {
	return String(s, StringConstraints{
		MinLength:      1,
		MaxLength:      64,
		AllowedPattern: attributePattern,
		TrimSpace:      true,
	})
}

package filter

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"
)

var regexCache sync.Map // "options/pattern" → *regexp.Regexp

// Regexp compiles a $regex pattern with its $options flags. Supported
// flags are i (case-insensitive), m (multi-line), s (dot matches
// newline) and x (extended: unescaped whitespace outside a character
// class is dropped and # starts a comment running to the end of the line).
// Compiled patterns are cached.
func Regexp(pattern, options string) (*regexp.Regexp, error) {
	key := options + "/" + pattern
	if cached, ok := regexCache.Load(key); ok {
		return cached.(*regexp.Regexp), nil
	}

	var (
		flags    strings.Builder
		extended bool
	)
	for _, r := range options {
		switch r {
		case 'x':
			extended = true
		case 'i', 'm', 's':
			if !strings.ContainsRune(flags.String(), r) {
				flags.WriteRune(r)
			}
		default:
			return nil, fmt.Errorf("unsupported regex option %q", r)
		}
	}

	expr := pattern
	if extended {
		expr = stripExtended(expr)
	}
	if flags.Len() > 0 {
		expr = "(?" + flags.String() + ")" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
	}
	regexCache.Store(key, re)
	return re, nil
}

// stripExtended removes the whitespace and comments of an extended-mode
// pattern. Escaped characters and character classes are kept verbatim.
func stripExtended(pattern string) string {
	var (
		b       strings.Builder
		escaped bool
		inClass bool
		comment bool
	)
	for _, r := range pattern {
		switch {
		case comment:
			if r == '\n' {
				comment = false
			}
			continue
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case inClass:
			if r == ']' {
				inClass = false
			}
		case r == '[':
			inClass = true
		case r == '#':
			comment = true
			continue
		case unicode.IsSpace(r):
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

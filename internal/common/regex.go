package common

import (
	"fmt"
	"regexp"
)

// CompileRegex compiles a user-supplied pattern and reports how many
// capture groups it defines.
func CompileRegex(pattern string) (*regexp.Regexp, int, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return re, re.NumSubexp(), nil
}

// MatchRegex compiles and matches a regex pattern against a string.
// Returns an error if the pattern is invalid.
func MatchRegex(pattern, text string) (bool, error) {
	re, _, err := CompileRegex(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(text), nil
}

// Package whitelist protects remote keys from deletion. A rule is either an
// exact key or a glob pattern; a key matching any rule is never deleted even
// when it has no local counterpart.
package whitelist

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Rule matches candidate-for-deletion keys.
type Rule interface {
	Match(key string) bool
}

type exactRule string

func (r exactRule) Match(key string) bool { return string(r) == key }

type patternRule string

func (r patternRule) Match(key string) bool {
	matched, _ := doublestar.Match(string(r), key)
	return matched
}

// Exact returns a rule matching key literally.
func Exact(key string) Rule { return exactRule(key) }

// Pattern compiles a glob pattern rule. Patterns use doublestar syntax, so
// `**` crosses path separators.
func Pattern(pattern string) (Rule, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid whitelist pattern %q", pattern)
	}
	return patternRule(pattern), nil
}

// Compile turns raw rule strings into rules. A string containing glob
// metacharacters becomes a pattern rule, anything else an exact rule. An
// invalid pattern is a fatal configuration error.
func Compile(rules []string) ([]Rule, error) {
	compiled := make([]Rule, 0, len(rules))
	for _, raw := range rules {
		if strings.ContainsAny(raw, `*?[{\`) {
			rule, err := Pattern(raw)
			if err != nil {
				return nil, err
			}
			compiled = append(compiled, rule)
		} else {
			compiled = append(compiled, Exact(raw))
		}
	}
	return compiled, nil
}

// Protected reports whether key matches any rule.
func Protected(rules []Rule, key string) bool {
	for _, rule := range rules {
		if rule.Match(key) {
			return true
		}
	}
	return false
}

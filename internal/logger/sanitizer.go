package logger

import (
	"fmt"
	"regexp"
	"strings"
)

// Sanitizer masks credentials in log output. Message text is filtered
// by pattern; attribute values are masked when their key looks
// sensitive (token, secret, password, ...). Sensitive data hidden
// inside a non-sensitive key's value is not caught by the key check,
// only by the message patterns.
type Sanitizer struct {
	patterns []SanitizeRule
}

// SanitizeRule is a single pattern/replacement pair
type SanitizeRule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// NewSanitizer creates a sanitizer with the default rules
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		patterns: defaultSanitizeRules(),
	}
}

// defaultSanitizeRules returns the built-in filters
func defaultSanitizeRules() []SanitizeRule {
	return []SanitizeRule{
		// OAuth material
		{regexp.MustCompile(`(?i)token=\S+`), "token=***"},
		{regexp.MustCompile(`(?i)bearer\s+\S+`), "bearer ***"},
		{regexp.MustCompile(`(?i)app[_-]?secret=\S+`), "app_secret=***"},
		{regexp.MustCompile(`(?i)code=\S+`), "code=***"},

		// Shared-link query strings may carry a password (st/dl params
		// are harmless but stripping the whole query is simpler)
		{regexp.MustCompile(`(https://www\.dropbox\.com/[^\s?]+)\?\S*`), "$1?***"},

		// Home directories
		{regexp.MustCompile(`/home/[^/\s]+`), "/home/***"},
		{regexp.MustCompile(`/Users/[^/\s]+`), "/Users/***"},
	}
}

// Sanitize applies all patterns to a string
func (s *Sanitizer) Sanitize(input string) string {
	result := input
	for _, rule := range s.patterns {
		result = rule.Pattern.ReplaceAllString(result, rule.Replacement)
	}
	return result
}

// SanitizeArgs masks values of sensitive keys in key-value args
func (s *Sanitizer) SanitizeArgs(args []any) []any {
	if len(args) == 0 {
		return args
	}

	result := make([]any, len(args))
	copy(result, args)

	for i := 0; i < len(result)-1; i += 2 {
		key, ok := result[i].(string)
		if !ok {
			continue
		}

		if s.isSensitiveKey(key) {
			switch v := result[i+1].(type) {
			case string:
				result[i+1] = s.maskValue(v)
			case error:
				result[i+1] = s.maskValue(v.Error())
			}
			continue
		}

		// Non-sensitive string values still go through the message
		// patterns so URLs and error text get scrubbed
		if v, ok := result[i+1].(string); ok {
			result[i+1] = s.Sanitize(v)
		}
	}

	return result
}

// isSensitiveKey reports whether a key name denotes a credential
func (s *Sanitizer) isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	sensitiveKeys := []string{
		"token", "secret", "password", "passwd",
		"credential", "auth", "api_key", "apikey",
	}

	for _, sk := range sensitiveKeys {
		if strings.Contains(lowerKey, sk) {
			return true
		}
	}
	return false
}

// maskValue masks a value keeping at most the first and last character
func (s *Sanitizer) maskValue(value string) string {
	if len(value) <= 2 {
		return "***"
	}
	if len(value) <= 8 {
		return fmt.Sprintf("%s***", string(value[0]))
	}
	return fmt.Sprintf("%s***%s", string(value[0]), string(value[len(value)-1]))
}

package types

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// KeyValidationConfig contains configuration for cache key validation.
// Keys are usually source URLs, so the defaults follow URL limits.
type KeyValidationConfig struct {
	ReservedPatterns []string
	// AllowedSchemes, when set, requires keys to be absolute URLs with one
	// of these schemes.
	AllowedSchemes    []string
	MaxKeyLength      int
	AllowEmpty        bool
	AllowControlChars bool
	AllowWhitespace   bool
}

func DefaultKeyValidationConfig() KeyValidationConfig {
	return KeyValidationConfig{MaxKeyLength: 2048}
}

// KeyValidator validates cache keys according to configured rules.
type KeyValidator struct {
	config KeyValidationConfig
	rules  []func(string) error
}

func NewKeyValidator(config KeyValidationConfig) *KeyValidator {
	v := &KeyValidator{config: config}
	v.rules = []func(string) error{v.checkLength, v.checkRunes, v.checkReserved}
	if len(config.AllowedSchemes) > 0 {
		v.rules = append(v.rules, v.checkScheme)
	}
	return v
}

// Validate checks a key before it reaches either tier.
func (v *KeyValidator) Validate(key string) error {
	if key == "" {
		if v.config.AllowEmpty {
			return nil
		}
		return invalidKey("key cannot be empty")
	}
	for _, rule := range v.rules {
		if err := rule(key); err != nil {
			return err
		}
	}
	return nil
}

func invalidKey(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidKey}, args...)...)
}

func (v *KeyValidator) checkLength(key string) error {
	if v.config.MaxKeyLength > 0 && len(key) > v.config.MaxKeyLength {
		return invalidKey("key length %d exceeds maximum %d bytes", len(key), v.config.MaxKeyLength)
	}
	return nil
}

func (v *KeyValidator) checkRunes(key string) error {
	if !utf8.ValidString(key) {
		return invalidKey("key contains invalid UTF-8")
	}
	for i, r := range key {
		if !v.config.AllowControlChars && (r < 0x20 || r == 0x7f) {
			return invalidKey("key contains control character at position %d", i)
		}
		if !v.config.AllowWhitespace && unicode.IsSpace(r) {
			return invalidKey("key contains whitespace at position %d", i)
		}
	}
	return nil
}

func (v *KeyValidator) checkReserved(key string) error {
	for _, pattern := range v.config.ReservedPatterns {
		if strings.Contains(key, pattern) {
			return invalidKey("key contains reserved pattern %q", pattern)
		}
	}
	return nil
}

func (v *KeyValidator) checkScheme(key string) error {
	u, err := url.Parse(key)
	if err != nil || !u.IsAbs() {
		return invalidKey("key is not an absolute URL")
	}
	if !slices.ContainsFunc(v.config.AllowedSchemes, func(s string) bool { return strings.EqualFold(s, u.Scheme) }) {
		return invalidKey("scheme %q is not allowed", u.Scheme)
	}
	return nil
}

// ValidateKey validates a key using the default validator.
func ValidateKey(key string) error {
	return DefaultKeyValidator.Validate(key)
}

var DefaultKeyValidator = NewKeyValidator(DefaultKeyValidationConfig())

func IsInvalidKey(err error) bool {
	return errors.Is(err, ErrInvalidKey)
}

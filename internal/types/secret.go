package types

import (
	"log/slog"
	"strconv"
)

const redacted = "[REDACTED]"

// SecretString holds a credential such as the Redis password. The value is
// only reachable through Value; printing, logging and text encoding all see
// "[REDACTED]" (or "" when unset).
type SecretString struct {
	value string
}

func NewSecretString(value string) SecretString {
	return SecretString{value: value}
}

func (s SecretString) Value() string { return s.value }
func (s SecretString) IsEmpty() bool { return s.value == "" }

func (s SecretString) masked() string {
	if s.value == "" {
		return ""
	}
	return redacted
}

func (s SecretString) String() string { return s.masked() }

// GoString covers %#v, which would otherwise print the struct field.
func (s SecretString) GoString() string {
	return "types.SecretString(" + strconv.Quote(s.masked()) + ")"
}

// LogValue keeps the secret out of slog output.
func (s SecretString) LogValue() slog.Value { return slog.StringValue(s.masked()) }

// MarshalText is used by encoding/json and friends.
func (s SecretString) MarshalText() ([]byte, error) { return []byte(s.masked()), nil }

func (s *SecretString) UnmarshalText(data []byte) error {
	s.value = string(data)
	return nil
}

var _ slog.LogValuer = SecretString{}

package types

import (
	"errors"
	"strings"
	"testing"
)

func TestDefaultKeyValidationConfig(t *testing.T) {
	cfg := DefaultKeyValidationConfig()

	if cfg.MaxKeyLength != 2048 {
		t.Errorf("MaxKeyLength = %d, want 2048", cfg.MaxKeyLength)
	}
	if cfg.AllowEmpty {
		t.Error("AllowEmpty = true, want false")
	}
	if cfg.AllowWhitespace {
		t.Error("AllowWhitespace = true, want false")
	}
}

func TestKeyValidator_Validate(t *testing.T) {
	t.Run("url keys pass validation", func(t *testing.T) {
		v := NewKeyValidator(DefaultKeyValidationConfig())

		validKeys := []string{
			"https://example.com/a.png",
			"http://cdn.example.com/img/42.jpg?w=100&h=200",
			"file:///sdcard/DCIM/photo.jpg",
			"avatar:123",
			strings.Repeat("a", 2048),
		}

		for _, key := range validKeys {
			if err := v.Validate(key); err != nil {
				t.Errorf("Validate(%q) = %v, want nil", key, err)
			}
		}
	})

	t.Run("empty key rejected by default", func(t *testing.T) {
		v := NewKeyValidator(DefaultKeyValidationConfig())

		err := v.Validate("")
		if !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Validate(\"\") = %v, want ErrInvalidKey", err)
		}
	})

	t.Run("key exceeding max length rejected", func(t *testing.T) {
		v := NewKeyValidator(DefaultKeyValidationConfig())

		err := v.Validate(strings.Repeat("a", 2049))
		if !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("Validate(long key) = %v, want ErrInvalidKey", err)
		}
		if !strings.Contains(err.Error(), "exceeds maximum") {
			t.Errorf("error message should mention 'exceeds maximum', got: %v", err)
		}
	})

	t.Run("invalid UTF-8 rejected", func(t *testing.T) {
		v := NewKeyValidator(DefaultKeyValidationConfig())

		if err := v.Validate(string([]byte{0xff, 0xfe})); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Validate(invalid UTF-8) = %v, want ErrInvalidKey", err)
		}
	})

	t.Run("control characters and whitespace rejected", func(t *testing.T) {
		v := NewKeyValidator(DefaultKeyValidationConfig())

		for _, key := range []string{"a\x00b", "a\nb", "a\x7fb", "a b"} {
			if err := v.Validate(key); !errors.Is(err, ErrInvalidKey) {
				t.Errorf("Validate(%q) = %v, want ErrInvalidKey", key, err)
			}
		}
	})

	t.Run("whitespace allowed when configured", func(t *testing.T) {
		cfg := DefaultKeyValidationConfig()
		cfg.AllowWhitespace = true
		v := NewKeyValidator(cfg)

		if err := v.Validate("my photo.png"); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})

	t.Run("reserved patterns rejected", func(t *testing.T) {
		cfg := DefaultKeyValidationConfig()
		cfg.ReservedPatterns = []string{"../"}
		v := NewKeyValidator(cfg)

		if err := v.Validate("file:///data/../etc/passwd"); !IsInvalidKey(err) {
			t.Errorf("Validate() = %v, want invalid key", err)
		}
	})
	t.Run("allowed schemes", func(t *testing.T) {
		cfg := DefaultKeyValidationConfig()
		cfg.AllowedSchemes = []string{"https", "file"}
		v := NewKeyValidator(cfg)

		for _, key := range []string{"https://example.com/a.png", "HTTPS://example.com/b.png", "file:///sdcard/c.jpg"} {
			if err := v.Validate(key); err != nil {
				t.Errorf("Validate(%q) = %v, want nil", key, err)
			}
		}
		for _, key := range []string{"http://example.com/a.png", "avatar-42", "/relative/path.png"} {
			if err := v.Validate(key); !IsInvalidKey(err) {
				t.Errorf("Validate(%q) = %v, want invalid key", key, err)
			}
		}
	})
}

func TestValidateKey(t *testing.T) {
	if err := ValidateKey("https://example.com/x.png"); err != nil {
		t.Errorf("ValidateKey() = %v, want nil", err)
	}
	if err := ValidateKey(""); !IsInvalidKey(err) {
		t.Errorf("ValidateKey(\"\") = %v, want invalid key", err)
	}
}

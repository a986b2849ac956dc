package zoom

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/teemow/joinpass/internal/session"
)

const (
	// DefaultClockSkew is how far the embedded timestamp is shifted into the past.
	DefaultClockSkew = 30 * time.Second

	// DefaultValidityWindow is the advisory lifetime of a join credential.
	DefaultValidityWindow = 2 * time.Minute

	fieldDelimiter = "."
)

// Secret holds the SDK signing secret. Its value is never printed.
type Secret struct {
	value []byte
}

// NewSecret wraps a secret string.
func NewSecret(s string) Secret {
	return Secret{value: []byte(s)}
}

// LoadSecretFile reads a secret from path, trimming surrounding whitespace.
func LoadSecretFile(path string) (Secret, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Secret{}, session.NewConfiguration("failed to read Zoom SDK secret file: %v", err)
	}
	return NewSecret(strings.TrimSpace(string(data))), nil
}

// IsZero reports whether no secret was configured.
func (s Secret) IsZero() bool {
	return len(s.value) == 0
}

// String implements fmt.Stringer
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString keeps %#v from dumping the bytes.
func (s Secret) GoString() string {
	return "zoom.Secret{[REDACTED]}"
}

// LogValue implements slog.LogValuer
func (s Secret) LogValue() slog.Value {
	return slog.StringValue("[REDACTED]")
}

// Config holds the Signature Issuer settings.
type Config struct {
	SDKKey    string
	SDKSecret Secret

	// ClockSkew is subtracted from the current time before it is embedded.
	// Zero embeds the current time unshifted.
	ClockSkew time.Duration

	// ValidityWindow sets the advisory expiry of issued credentials and the
	// maximum age accepted by VerifyFresh. Zero means DefaultValidityWindow.
	ValidityWindow time.Duration
}

// DefaultConfig returns a Config carrying the default clock skew and
// validity window. Callers fill in the SDK key and secret.
func DefaultConfig() Config {
	return Config{
		ClockSkew:      DefaultClockSkew,
		ValidityWindow: DefaultValidityWindow,
	}
}

// Validate checks the configuration and returns a configuration error.
func (c Config) Validate() error {
	if strings.TrimSpace(c.SDKKey) == "" {
		return session.NewConfiguration("Zoom SDK key is required")
	}
	if strings.Contains(c.SDKKey, fieldDelimiter) {
		return session.NewConfiguration("Zoom SDK key must not contain %q", fieldDelimiter)
	}
	if c.SDKSecret.IsZero() {
		return session.NewConfiguration("Zoom SDK secret is required")
	}
	if c.ClockSkew < 0 {
		return session.NewConfiguration("clock skew must not be negative, got %s", c.ClockSkew)
	}
	if c.ValidityWindow < 0 {
		return session.NewConfiguration("validity window must not be negative, got %s", c.ValidityWindow)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.ValidityWindow == 0 {
		c.ValidityWindow = DefaultValidityWindow
	}
	return c
}

// String describes the config without the secret.
func (c Config) String() string {
	return fmt.Sprintf("zoom.Config{SDKKey:%s, ClockSkew:%s, ValidityWindow:%s}", c.SDKKey, c.ClockSkew, c.ValidityWindow)
}

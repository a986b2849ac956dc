// Package ratelimit enforces a per-requester provisioning quota over a
// rolling time window.
//
// Two backends are provided: Memory for a single process and Valkey for
// deployments with several replicas sharing one quota.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/teemow/joinpass/internal/session"
)

// Limiter decides whether a requester may perform one more provisioning
// call. Allowed calls are counted atomically with the decision; denied
// calls are not counted.
type Limiter interface {
	CheckAndIncrement(ctx context.Context, key string) (bool, error)
}

// Store is a Limiter with a lifecycle.
type Store interface {
	Limiter

	// Window is the rolling window the quota applies to.
	Window() time.Duration

	Close() error
}

// BackendType selects the limiter backend.
type BackendType string

const (
	BackendMemory BackendType = "memory"
	BackendValkey BackendType = "valkey"
)

const (
	DefaultMax       = 30
	DefaultWindow    = time.Hour
	DefaultKeyPrefix = "joinpass:"
)

// Config configures the limiter.
type Config struct {
	// Max is the number of calls allowed per requester per Window.
	// Zero or negative disables limiting.
	Max    int
	Window time.Duration

	// Backend is "memory" (default) or "valkey".
	Backend BackendType

	// Valkey is used when Backend is "valkey".
	Valkey ValkeyConfig
}

// ValkeyConfig holds configuration for the Valkey backend
type ValkeyConfig struct {
	// URL is the server address ("host:port") or a redis:// URL.
	URL string

	// Password is the optional password for Valkey authentication
	Password string

	// TLSEnabled enables TLS for Valkey connections
	TLSEnabled bool

	// KeyPrefix is the prefix for all keys (default: "joinpass:")
	KeyPrefix string

	// DB is the database number (default: 0)
	DB int
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Max > 0 && c.Window <= 0 {
		return session.NewConfiguration("rate limit window must be positive when a limit is set")
	}
	switch c.Backend {
	case "", BackendMemory:
	case BackendValkey:
		if c.Valkey.URL == "" {
			return session.NewConfiguration("valkey rate limit backend requires a server address")
		}
	default:
		return session.NewConfiguration("unknown rate limit backend %q (supported: memory, valkey)", c.Backend)
	}
	return nil
}

// New creates the configured limiter.
func New(ctx context.Context, cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendValkey:
		store, err := NewValkey(ctx, cfg.Max, cfg.Window, cfg.Valkey)
		if err != nil {
			return nil, fmt.Errorf("failed to create valkey rate limiter: %w", err)
		}
		return store, nil
	default:
		return NewMemory(cfg.Max, cfg.Window), nil
	}
}

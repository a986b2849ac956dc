package ratelimit

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

// slidingWindowScript admits a call if the sorted set at KEYS[1] holds fewer
// than ARGV[1] members newer than ARGV[2] milliseconds. The server clock is
// used so replicas agree on the window.
const slidingWindowScript = `
local key = KEYS[1]
local max = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local member = ARGV[3]

local t = redis.call('TIME')
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) >= max then
  return 0
end
redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, window)
return 1
`

// Valkey is a rolling window limiter shared across processes.
type Valkey struct {
	client    valkey.Client
	script    *valkey.Lua
	max       int
	window    time.Duration
	keyPrefix string
}

// NewValkey connects to Valkey and verifies the connection.
func NewValkey(ctx context.Context, limit int, window time.Duration, cfg ValkeyConfig) (*Valkey, error) {
	opt, err := clientOption(cfg)
	if err != nil {
		return nil, err
	}

	client, err := valkey.NewClient(opt)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to valkey at %s: %w", redactURL(cfg.URL), err)
	}

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("valkey ping failed: %w", err)
	}

	return newValkeyWithClient(client, limit, window, cfg.KeyPrefix), nil
}

func newValkeyWithClient(client valkey.Client, limit int, window time.Duration, prefix string) *Valkey {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Valkey{
		client:    client,
		script:    valkey.NewLuaScript(slidingWindowScript),
		max:       limit,
		window:    window,
		keyPrefix: prefix,
	}
}

func clientOption(cfg ValkeyConfig) (valkey.ClientOption, error) {
	var opt valkey.ClientOption
	if strings.Contains(cfg.URL, "://") {
		parsed, err := valkey.ParseURL(cfg.URL)
		if err != nil {
			return opt, fmt.Errorf("invalid valkey URL: %w", err)
		}
		opt = parsed
	} else {
		opt.InitAddress = []string{cfg.URL}
	}

	if cfg.Password != "" {
		opt.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opt.SelectDB = cfg.DB
	}
	if cfg.TLSEnabled && opt.TLSConfig == nil {
		opt.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	// Client side caching needs RESP3 and is not used by the limiter.
	opt.DisableCache = true
	return opt, nil
}

// redactURL strips credentials from a connection string.
func redactURL(u string) string {
	scheme, rest, ok := strings.Cut(u, "://")
	if !ok {
		return u
	}
	if _, host, hasUser := strings.Cut(rest, "@"); hasUser {
		return scheme + "://[REDACTED]@" + host
	}
	return u
}

// Window returns the rolling window.
func (v *Valkey) Window() time.Duration {
	return v.window
}

func (v *Valkey) key(requester string) string {
	return v.keyPrefix + "ratelimit:" + requester
}

// CheckAndIncrement records a call for key if it is within quota. The check
// and the increment run in one script.
func (v *Valkey) CheckAndIncrement(ctx context.Context, key string) (bool, error) {
	if v.max <= 0 {
		return true, nil
	}

	allowed, err := v.script.Exec(ctx, v.client,
		[]string{v.key(key)},
		[]string{
			fmt.Sprint(v.max),
			fmt.Sprint(v.window.Milliseconds()),
			uuid.NewString(),
		},
	).AsInt64()
	if err != nil {
		return false, fmt.Errorf("valkey rate limit check failed: %w", err)
	}
	return allowed == 1, nil
}

// Close releases the connection.
func (v *Valkey) Close() error {
	v.client.Close()
	return nil
}

// Ping checks the connection. It is used as a readiness check.
func (v *Valkey) Ping(ctx context.Context) error {
	return v.client.Do(ctx, v.client.B().Ping().Build()).Error()
}

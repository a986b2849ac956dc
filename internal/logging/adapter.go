package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Logger is what the upstream clients log through. Arguments are
// alternating key-value pairs, as with slog.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// secretKeys never reach a handler in the clear.
var secretKeys = map[string]bool{
	"token":         true,
	"access_token":  true,
	"refresh_token": true,
	"authorization": true,
	"secret":        true,
	"signature":     true,
}

// SlogAdapter writes Logger calls to an slog.Logger. Values logged under a
// credential key are replaced by SanitizeToken and values under KeyMeeting
// are masked, so a careless call site cannot leak either.
type SlogAdapter struct {
	logger *slog.Logger
}

var _ Logger = (*SlogAdapter)(nil)

// NewSlogAdapter wraps logger, falling back to slog.Default.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAdapter{logger: logger}
}

// Discard returns an adapter that drops every record.
func Discard() *SlogAdapter {
	return NewSlogAdapter(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (a *SlogAdapter) Debug(msg string, args ...any) { a.log(slog.LevelDebug, msg, args) }
func (a *SlogAdapter) Info(msg string, args ...any)  { a.log(slog.LevelInfo, msg, args) }
func (a *SlogAdapter) Warn(msg string, args ...any)  { a.log(slog.LevelWarn, msg, args) }
func (a *SlogAdapter) Error(msg string, args ...any) { a.log(slog.LevelError, msg, args) }

// With returns an adapter whose records carry args, redacted the same way.
func (a *SlogAdapter) With(args ...any) *SlogAdapter {
	return &SlogAdapter{logger: a.logger.With(redact(args)...)}
}

func (a *SlogAdapter) log(level slog.Level, msg string, args []any) {
	ctx := context.Background()
	if !a.logger.Enabled(ctx, level) {
		return
	}
	a.logger.Log(ctx, level, msg, redact(args)...)
}

// redact returns a copy of args with sensitive values replaced. slog.Attr
// arguments are checked by their key as well.
func redact(args []any) []any {
	out := make([]any, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch v := args[i].(type) {
		case slog.Attr:
			out = append(out, slog.Any(v.Key, scrub(v.Key, v.Value.Any())))
		case string:
			if i+1 >= len(args) {
				out = append(out, v)
				continue
			}
			out = append(out, v, scrub(v, args[i+1]))
			i++
		default:
			out = append(out, v)
		}
	}
	return out
}

func scrub(key string, value any) any {
	k := strings.ToLower(key)
	switch {
	case secretKeys[k]:
		return SanitizeToken(fmt.Sprint(value))
	case k == KeyMeeting:
		return MaskMeetingNumber(fmt.Sprint(value))
	}
	return value
}

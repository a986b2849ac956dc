package provision

import (
	"context"

	"github.com/teemow/joinpass/internal/instrumentation"
)

// surfaceKey is the context key for the calling surface
type surfaceKey struct{}

// WithSurface records which surface (http, mcp, cli) a request came in on.
func WithSurface(ctx context.Context, surface string) context.Context {
	return context.WithValue(ctx, surfaceKey{}, surface)
}

// SurfaceFromContext returns the calling surface, or "unknown".
func SurfaceFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(surfaceKey{}).(string); ok && s != "" {
		return s
	}
	return instrumentation.StatusUnknown
}

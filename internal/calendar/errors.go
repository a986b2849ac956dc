package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"

	"github.com/teemow/joinpass/internal/session"
)

// classifyError maps a Calendar API failure onto the session error taxonomy.
// Caller cancellation is returned as a wrapped context.Canceled.
func classifyError(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.Canceled) {
			return fmt.Errorf("calendar %s: %w", op, ctxErr)
		}
		return session.NewUpstreamUnavailable(err, "calendar %s timed out", op)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("calendar %s: %w", op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return session.NewUpstreamUnavailable(err, "calendar %s timed out", op)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden:
			if isRateLimitReason(apiErr) {
				return session.NewUpstreamUnavailable(err, "calendar %s throttled by Google", op)
			}
			return session.NewUpstreamAuth(err, "Google rejected the credential for calendar %s (HTTP %d)", op, apiErr.Code)
		case apiErr.Code == http.StatusBadRequest:
			return &session.Error{
				Kind:        session.KindInvalidRequest,
				Description: fmt.Sprintf("Google rejected the calendar %s request: %s", op, apiErr.Message),
				Err:         err,
			}
		case apiErr.Code == http.StatusRequestTimeout,
			apiErr.Code == http.StatusTooManyRequests,
			apiErr.Code >= http.StatusInternalServerError:
			return session.NewUpstreamUnavailable(err, "calendar %s failed with HTTP %d", op, apiErr.Code)
		default:
			return session.NewUpstreamUnavailable(err, "calendar %s failed with unexpected HTTP %d", op, apiErr.Code)
		}
	}

	// Transport level failures (DNS, connection reset, TLS).
	return session.NewUpstreamUnavailable(err, "calendar %s request failed", op)
}

// isRateLimitReason reports whether a 403 is Google's per-user quota signal
// rather than an authorization failure.
func isRateLimitReason(apiErr *googleapi.Error) bool {
	for _, item := range apiErr.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded", "quotaExceeded":
			return true
		}
	}
	return false
}

func isConflict(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict
}

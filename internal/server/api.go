package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/teemow/joinpass/internal/instrumentation"
	"github.com/teemow/joinpass/internal/logging"
	"github.com/teemow/joinpass/internal/provision"
	"github.com/teemow/joinpass/internal/session"
)

// SessionsPath is the provisioning endpoint.
const SessionsPath = "/v1/sessions"

// maxRequestBody bounds the JSON request body.
const maxRequestBody = 64 << 10

// ErrorResponse is the JSON body of a failed request.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// SessionsHandler serves POST /v1/sessions.
func SessionsHandler(sc *ServerContext) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeError(w, sc.Logger(), &session.Error{Kind: session.KindInvalidRequest, Description: "method not allowed"}, http.StatusMethodNotAllowed)
			return
		}

		var req session.MeetingRequest
		dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeSessionError(w, sc.Logger(), invalidBody(err))
			return
		}

		// Only Google Meet consumes the caller's token; Zoom requests
		// ignore the authorization headers entirely.
		var cred *session.OAuthCredential
		if req.Platform == session.PlatformGoogleMeet {
			var err error
			if cred, err = BearerCredential(r); err != nil {
				writeSessionError(w, sc.Logger(), err)
				return
			}
		}

		ctx := provision.WithSurface(r.Context(), instrumentation.SurfaceHTTP)
		result, err := sc.Facade().RequestSession(ctx, req, cred)
		if err != nil {
			writeSessionError(w, sc.Logger(), err)
			return
		}

		writeJSON(w, sc.Logger(), http.StatusOK, result)
	})
}

func invalidBody(err error) error {
	var sessErr *session.Error
	if errors.As(err, &sessErr) {
		return sessErr
	}
	return &session.Error{
		Kind:        session.KindInvalidRequest,
		Description: "request body must be a JSON meeting request",
		Err:         err,
	}
}

// writeSessionError maps err to a status code and JSON error body.
func writeSessionError(w http.ResponseWriter, logger *slog.Logger, err error) {
	sessErr, ok := session.AsError(err)
	if !ok {
		// Caller went away or an untyped failure; neither carries a
		// description that is safe to return.
		sessErr = &session.Error{Kind: session.KindUpstreamUnavailable, Description: "request was not completed"}
		writeError(w, logger, sessErr, http.StatusServiceUnavailable)
		return
	}

	if sessErr.Kind == session.KindRateLimited && sessErr.RetryAfter > 0 {
		seconds := int64(math.Ceil(sessErr.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
	}
	if sessErr.Kind == session.KindMissingAuthorization {
		w.Header().Set("WWW-Authenticate", `Bearer realm="joinpass"`)
	}
	writeError(w, logger, sessErr, sessErr.HTTPStatus())
}

func writeError(w http.ResponseWriter, logger *slog.Logger, sessErr *session.Error, status int) {
	writeJSON(w, logger, status, ErrorResponse{
		Error:            string(sessErr.Kind),
		ErrorDescription: sessErr.Description,
	})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write response", logging.Err(err))
	}
}

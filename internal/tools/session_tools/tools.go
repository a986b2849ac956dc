package session_tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/joinpass/internal/instrumentation"
	"github.com/teemow/joinpass/internal/provision"
	"github.com/teemow/joinpass/internal/server"
	"github.com/teemow/joinpass/internal/session"
	"github.com/teemow/joinpass/internal/tools/common"
)

// ToolSessionRequest is the name of the provisioning tool.
const ToolSessionRequest = "session_request"

// RegisterSessionTools registers the session provisioning tools with the MCP server
func RegisterSessionTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if sc == nil {
		return fmt.Errorf("server context is required")
	}

	requestTool := mcp.NewTool(ToolSessionRequest,
		mcp.WithDescription("Provision a conferencing session. For Zoom, returns a short-lived signed SDK join credential for an existing meeting. "+
			"For Google Meet, creates a calendar event with a Meet conference on behalf of the authenticated caller and returns the join URL."),
		mcp.WithString("platform",
			mcp.Required(),
			mcp.Description("Conferencing platform: 'zoom' or 'google_meet'"),
		),
		mcp.WithString("requester_id",
			mcp.Required(),
			mcp.Description("Stable identifier of the person requesting the session. Used for per-requester rate limiting."),
		),
		mcp.WithString("role",
			mcp.Description("Role granted by the credential: 'host' or 'participant' (default: 'participant')"),
		),
		mcp.WithNumber("duration_seconds",
			mcp.Required(),
			mcp.Description("Session length in seconds"),
		),
		mcp.WithString("meeting_number",
			mcp.Description("Zoom meeting number (Zoom only, required)"),
		),
		mcp.WithString("desired_start",
			mcp.Description("Start time in RFC 3339 format, e.g. 2026-03-02T15:00:00Z (Google Meet only, required)"),
		),
		mcp.WithString("summary",
			mcp.Description("Calendar event title (Google Meet only)"),
		),
		mcp.WithString("description",
			mcp.Description("Calendar event description (Google Meet only)"),
		),
		mcp.WithString("attendees",
			mcp.Description("Comma-separated attendee email addresses (Google Meet only)"),
		),
		mcp.WithString("time_zone",
			mcp.Description("IANA time zone for the event, e.g. 'Europe/Berlin' (Google Meet only, default: UTC)"),
		),
		mcp.WithString("idempotency_key",
			mcp.Description("Key that makes retries return the same Google Meet event instead of creating a new one"),
		),
	)

	s.AddTool(requestTool, mcpserver.ToolHandlerFunc(common.InstrumentedToolHandler(ToolSessionRequest, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSessionRequest(ctx, request, sc)
		})))

	return nil
}

func handleSessionRequest(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	req, err := parseMeetingRequest(request.GetArguments())
	if err != nil {
		return toolError(err), nil
	}

	ctx = provision.WithSurface(ctx, instrumentation.SurfaceMCP)
	result, err := sc.Facade().RequestSession(ctx, req, server.CredentialFromContext(ctx))
	if err != nil {
		return toolError(err), nil
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

// parseMeetingRequest converts tool arguments into a meeting request. Shape
// validation is left to the facade.
func parseMeetingRequest(args map[string]interface{}) (session.MeetingRequest, error) {
	var req session.MeetingRequest

	platform, err := session.ParsePlatform(common.StringArg(args, "platform"))
	if err != nil {
		return req, err
	}
	role, err := session.ParseRole(common.StringArg(args, "role"))
	if err != nil {
		return req, err
	}
	duration, _, err := common.Int64Arg(args, "duration_seconds")
	if err != nil {
		return req, session.NewInvalidRequest("%v", err)
	}
	start, err := common.TimeArg(args, "desired_start")
	if err != nil {
		return req, session.NewInvalidRequest("%v", err)
	}

	req = session.MeetingRequest{
		Platform:        platform,
		RequesterID:     common.StringArg(args, "requester_id"),
		Role:            role,
		DesiredStart:    start,
		DurationSeconds: duration,
		MeetingNumber:   common.StringArg(args, "meeting_number"),
		Summary:         common.StringArg(args, "summary"),
		Description:     common.StringArg(args, "description"),
		Attendees:       common.StringListArg(args, "attendees"),
		TimeZone:        common.StringArg(args, "time_zone"),
		IdempotencyKey:  common.StringArg(args, "idempotency_key"),
	}
	return req, nil
}

// toolError renders err for the MCP client. Only the typed description is
// shown; causes may contain upstream detail.
func toolError(err error) *mcp.CallToolResult {
	if sessErr, ok := session.AsError(err); ok {
		msg := fmt.Sprintf("%s: %s", sessErr.Kind, sessErr.Description)
		if sessErr.Kind == session.KindRateLimited && sessErr.RetryAfter > 0 {
			msg += fmt.Sprintf(" (retry after %s)", sessErr.RetryAfter)
		}
		if sessErr.Kind == session.KindMissingAuthorization {
			msg += ". Google Meet sessions require the MCP HTTP transport with an 'Authorization: Bearer <Google OAuth token>' header."
		}
		return mcp.NewToolResultError(msg)
	}
	return mcp.NewToolResultError("request was not completed: " + err.Error())
}

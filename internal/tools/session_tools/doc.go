// Package session_tools provides the MCP tool for provisioning conferencing
// sessions.
//
// Available tools:
//   - session_request - Issue a Zoom SDK join credential or create a Google
//     Meet link
//
// Google Meet requests act on behalf of the caller and need the caller's
// Google OAuth token, which is taken from the Authorization header of the
// streamable-http transport. Over stdio only Zoom credentials can be issued.
//
// Example usage:
//
//	session_request(
//	    platform="zoom",
//	    requester_id="jane@example.com",
//	    role="host",
//	    meeting_number="85746065432",
//	    duration_seconds=3600
//	)
package session_tools

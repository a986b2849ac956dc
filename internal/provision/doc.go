// Package provision implements the single entry point for requesting a
// conferencing session.
//
// RequestSession checks, in order, the request shape, the caller's Google
// authorization (Google Meet only) and the per-requester rate policy. Only
// then does it dispatch to the Zoom signature issuer or the Google Calendar
// link provisioner. A failing check returns before any later step has an
// effect, so rejected requests are never counted against the quota and never
// reach Google.
package provision

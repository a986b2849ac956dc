// Package session defines the data model shared by the provisioning core.
//
// It contains the request and result types exchanged with callers
// (MeetingRequest, OAuthCredential, ProvisionedLink, JoinCredential and the
// platform-tagged Result) together with the typed error taxonomy every
// provisioner reports through.
//
// The package performs no I/O. Credentials passed through it are never
// persisted and render as redacted values when formatted or logged.
package session

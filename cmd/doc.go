// Package cmd implements the command-line interface for joinpass.
//
// This package provides the following commands:
//   - serve: Start the HTTP API and MCP server
//   - sign: Issue a Zoom SDK join token locally
//   - verify: Check a Zoom SDK join token against the configured secret
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for the MCP tools
//
// Every flag of serve, sign and verify can also be set through an environment
// variable; an explicitly set flag always wins.
package cmd

// Package common provides shared helpers for MCP tool implementations:
// argument parsing and the instrumentation wrapper every tool handler is
// registered through.
package common

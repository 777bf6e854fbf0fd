// Package cmd implements the command-line interface for audiencer.
//
// This package provides the following commands:
//   - serve: Start the MCP server with the embedded OAuth authorization bridge
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd

// Package cmd implements the command-line interface for mailwarm.
//
// This package provides the following commands:
//   - serve: Start the MCP server exposing every method as a tool
//   - call: Dispatch one method and print the response envelope
//   - methods: List the registered methods and their parameters
//   - health: Initialize the session and report component health
//   - auth: Print the OAuth consent URL or exchange an authorization code
//   - version: Display version information
//
// Logs always go to stderr so that stdout stays reserved for the MCP stdio
// transport and for command output.
package cmd

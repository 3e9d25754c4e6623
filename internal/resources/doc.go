// Package resources exposes module state as read-only MCP resources:
// the session health report (mailwarm://health) and the method list
// (mailwarm://methods).
package resources

// Package dispatch routes named calls such as "gmail.inbox" to handlers
// that run against the warm Gmail session.
//
// Every method is described by an mcp.Tool, which is both its parameter
// schema for MethodList and its definition when served over MCP. Dispatch
// returns plain results and typed errors; Call wraps them in the
// {ok, result, error} envelope the host forwards, with error codes from
// ErrorCode.
package dispatch

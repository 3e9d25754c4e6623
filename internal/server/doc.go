// Package server holds the warm Gmail session and the ops HTTP server.
//
// # Session
//
// Session owns one authenticated Gmail client built from the credential
// store. Init runs once; the session then moves to Ready, or to Failed,
// which is terminal. Every dispatched call shares the Ready client.
//
// # Ops server
//
// OpsServer exposes Prometheus metrics (/metrics) and health probes
// (/healthz, /readyz, /healthz/detailed) on a dedicated address. Readiness
// follows the session's HealthCheck.
package server

// Package api exposes the thin HTTP surface of the assistant: session
// bootstrap, a turn endpoint, health and metrics. All conversation logic
// lives in the orchestrator; the server only maps errors to status codes and
// records request metrics.
package api

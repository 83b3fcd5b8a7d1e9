// Package server hosts the HTTP boundary of the service: session
// registration, the per-session SSE stream, webhook ingestion, and the
// health endpoints, served by a Gin engine with graceful shutdown.
package server

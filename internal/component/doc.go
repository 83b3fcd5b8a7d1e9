// Package component defines the lifecycle contract for infrastructure
// components (Redis backend, HTTP server) and a Registry that starts
// them in registration order and stops them in reverse order.
package component

// Package session stores per-browser-session personalization records
// under session:{id} with a fixed TTL, shared across workers via the
// Redis tier and degrading per call to the in-process tier.
package session

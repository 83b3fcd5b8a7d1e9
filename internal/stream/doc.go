// Package stream delivers queued messages to one connected browser
// client over a long-lived SSE response.
//
// A Dispatcher exists per client connection. On open it flushes the
// session's queued backlog, then listens on the session's broadcast
// channel with a periodic poll as liveness fallback, forwarding new
// messages past a per-connection cursor in arrival order. Multiple
// dispatchers for the same session each receive every message:
// delivery is multicast, not load-balanced.
package stream

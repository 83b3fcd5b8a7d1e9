// Package queue buffers inbound webhook messages per session under
// webhook_messages:{id}. Messages are appended in arrival order, read
// without removal, and expire on the same TTL as their session so a
// reconnecting client can replay history within the TTL window.
package queue

// Package logger provides structured logging built on zerolog.
//
// It exposes an instance Logger for components plus a package-level
// default logger for infrastructure code that has no logger injected
// (middleware, recovery handlers).
//
// # Usage
//
//	log := logger.New(&logger.Config{Level: "debug"}, "vapi-demo")
//	log.WithComponent("session").Info("Session stored", map[string]interface{}{
//	    "session_id": id,
//	})
package logger

// Package errors provides unified error handling for the service.
// It implements structured error types with error codes, HTTP status
// mapping, and retryable detection.
package errors

// Package config loads service configuration from an optional YAML
// file, a .env file, and environment variables, in that order of
// increasing precedence.
package config

// Package config loads and validates the application configuration from
// defaults, an optional YAML file, and CDR_-prefixed environment variables,
// in that order of precedence. It also builds the process logger from the
// logging section.
package config

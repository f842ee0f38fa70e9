// Package config handles configuration loading, parsing, and validation
// from environment variables and an optional YAML file. It provides type-safe
// access to the settings needed by the HTTP server, the database pool, token
// validation, the real-time comment channel, and the optional Redis and
// object-storage integrations.
package config

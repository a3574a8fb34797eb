// Package config loads relay configuration. Values are layered: role
// defaults, then an optional YAML file, then .env and RELAY_* environment
// variables. Command-line flags are applied last by the caller, followed by
// another Validate.
package config

// Package config loads and validates application configuration from
// environment variables. All variables share the GABLE_ prefix.
package config

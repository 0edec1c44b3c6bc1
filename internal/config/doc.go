// Package config loads application configuration from environment variables,
// with a .env file as a development convenience.
package config

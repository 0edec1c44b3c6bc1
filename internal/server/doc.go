// Package server exposes the operational HTTP surface: liveness, readiness,
// and Prometheus metrics. The bot itself speaks to Discord over the gateway,
// not through this server.
package server

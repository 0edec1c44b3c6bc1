// Package domain holds the model types and interfaces shared across the
// application. Components depend on these interfaces, never on each other's
// concrete types.
package domain

// Package rating implements the rating aggregation engine: the emoji codec,
// the self-action guard, the TTL-based aggregate cache, and the event router
// that turns gateway reaction events into rating mutations and display
// refreshes.
package rating

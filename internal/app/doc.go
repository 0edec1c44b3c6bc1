// Package app wires gateway events to the movie and rating flows: IMDB links
// in a guild's watch channel become rated summary messages, and reaction
// events feed the rating engine.
package app

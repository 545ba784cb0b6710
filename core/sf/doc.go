// Package sf wraps golang.org/x/sync/singleflight with a typed result.
//
// The store dispatcher uses it to collapse identical concurrent snapshot
// replays: when several readers ask for the same entity at the same instant,
// only one replay runs and all callers receive its result.
package sf

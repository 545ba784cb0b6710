// Package es implements an event-sourced persistence core.
//
// State is never stored directly. Every mutation is recorded as a Commit
// holding either a Create event (the full initial model) or a Change event
// (a delta against an existing model). The current state of an entity is
// recovered by replaying its commit stream through a TimeTraveler, which
// can also stop at any point in the past.
//
// Three dispatchers sit on top of the log:
//
//   - Store wraps a CommitStore backend in a mailbox actor, deduplicates
//     concurrent replays, and publishes every durable commit on its event
//     topic ("<name>-events").
//   - Entity owns the business logic for one aggregate type. It runs the
//     command handler and the resulting commit under a per-type lock, and
//     acknowledges a command only after the commit is durable.
//   - Manager is a registry that routes commands and queries to entities
//     by name.
package es

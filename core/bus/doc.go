// Package bus implements an in-process, topic-based publish/subscribe bus.
//
// The store dispatcher publishes every durable commit on its event topic;
// read models and projections subscribe with an optional filter to observe
// only the streams they care about. Delivery is at-most-once per
// subscriber: a subscriber that cannot keep up with its buffer loses
// messages rather than stalling the publisher.
package bus

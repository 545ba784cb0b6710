package es

import "time"

// Commit is one entry of an entity's append-only stream: the event plus
// audit metadata. Who and Why are optional free-form attribution fields.
type Commit[M Model[M]] struct {
	Event Event[M]
	When  time.Time
	Who   string
	Why   string
}

// CommitOption sets optional commit metadata.
type CommitOption func(*commitOpts)

type commitOpts struct {
	when time.Time
	who  string
	why  string
}

// WithAuthor records who caused the commit.
func WithAuthor(who string) CommitOption {
	return func(o *commitOpts) { o.who = who }
}

// WithReason records why the commit happened.
func WithReason(why string) CommitOption {
	return func(o *commitOpts) { o.why = why }
}

// WithTime overrides the commit timestamp (default: time.Now, UTC).
func WithTime(t time.Time) CommitOption {
	return func(o *commitOpts) { o.when = t }
}

// NewCommit stamps an event into a commit.
func NewCommit[M Model[M]](event Event[M], opts ...CommitOption) Commit[M] {
	o := commitOpts{when: time.Now().UTC()}
	for _, opt := range opts {
		opt(&o)
	}
	return Commit[M]{
		Event: event,
		When:  o.when,
		Who:   o.who,
		Why:   o.why,
	}
}

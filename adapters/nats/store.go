package nats

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/crypto/blake2b"

	"github.com/Valiuapp/actor-es/core/es"
)

const (
	defaultSubjectPrefix = "actores.commits"

	hdrEntityID = "x-entity-id"
	hdrKind     = "x-commit-kind"
)

// CommitStoreConfig configures a JetStream-backed commit store.
type CommitStoreConfig[M es.Model[M]] struct {
	Connect       Connector    // Connect opens the NATS connection. If nil, ConnectDefault() is used.
	Log           *slog.Logger // Log for diagnostics (optional)
	Name          string       // Name of the aggregate type; becomes a subject token
	StreamName    string       // StreamName of the backing stream. Derived from Name when empty.
	SubjectPrefix string       // SubjectPrefix under which commits are stored
	Codec         *es.Codec[M] // Codec with all change payload types registered
}

// CommitStore is an es.CommitStore on one JetStream stream. Each entity
// gets its own subject, so replays are server-side filtered.
type CommitStore[M es.Model[M]] struct {
	nc      *natsgo.Conn
	closeNc closeFunc
	js      jetstream.JetStream
	stream  jetstream.Stream
	codec   *es.Codec[M]
	log     *slog.Logger
	prefix  string
}

var _ es.CommitStore[*es.Counter] = (*CommitStore[*es.Counter])(nil)

// NewCommitStore connects and ensures the backing stream exists.
func NewCommitStore[M es.Model[M]](ctx context.Context, cfg CommitStoreConfig[M]) (*CommitStore[M], error) {
	if cfg.Name == "" {
		return nil, errors.New("nats: store name is required")
	}
	if cfg.Codec == nil {
		return nil, errors.New("nats: codec is required")
	}

	doConnect := cfg.Connect
	if doConnect == nil {
		doConnect = ConnectDefault()
	}

	nc, closeNatsCon, err := doConnect()
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		closeNatsCon()
		return nil, err
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	subjectPrefix := cfg.SubjectPrefix
	if subjectPrefix == "" {
		subjectPrefix = defaultSubjectPrefix
	}
	prefix := subjectPrefix + "." + cfg.Name

	streamName := strings.ToUpper(cfg.StreamName)
	if streamName == "" {
		streamName = "ACTOR_ES_" + strings.ToUpper(cfg.Name)
	}

	log = log.With(
		slog.String("store", "nats_js"),
		slog.String("stream", streamName),
		slog.String("prefix", prefix),
	)

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{prefix + ".>"},
		Storage:  jetstream.FileStorage,
		FirstSeq: 1,
	})
	if err != nil {
		closeNatsCon()
		return nil, fmt.Errorf("nats: ensure stream %s: %w", streamName, err)
	}

	log.Debug("stream ensured")

	return &CommitStore[M]{
		nc:      nc,
		closeNc: closeNatsCon,
		js:      js,
		stream:  stream,
		codec:   cfg.Codec,
		log:     log,
		prefix:  prefix,
	}, nil
}

// Close releases the NATS connection.
func (s *CommitStore[M]) Close() error {
	s.js.CleanupPublisher()
	s.closeNc()
	return nil
}

// subjectFor maps an entity id onto a fixed-width subject token. Ids are
// free-form strings and may contain characters NATS subjects cannot carry.
func (s *CommitStore[M]) subjectFor(id es.EntityID) string {
	sum := blake2b.Sum256([]byte(id))
	return s.prefix + "." + hex.EncodeToString(sum[:16])
}

func (s *CommitStore[M]) Commit(ctx context.Context, c es.Commit[M]) error {
	if !c.Event.IsValid() {
		return es.ErrInvalidEvent
	}

	id := c.Event.EntityID()
	subject := s.subjectFor(id)

	// stream shape check; concurrent writers are serialized upstream
	last, err := s.lastSeqForSubject(ctx, subject)
	if err != nil {
		return err
	}
	exists := last > 0
	if c.Event.IsCreate() == exists {
		return fmt.Errorf("%w (entity_id=%s)", es.ErrCantChange, id)
	}

	data, err := s.codec.Encode(c)
	if err != nil {
		return err
	}

	kind := "change"
	if c.Event.IsCreate() {
		kind = "create"
	}

	msg := natsgo.NewMsg(subject)
	msg.Header.Set(hdrEntityID, id.String())
	msg.Header.Set(hdrKind, kind)
	msg.Data = data

	ackF, err := s.js.PublishMsgAsync(msg)
	if err != nil {
		return fmt.Errorf("nats: append to %s: %w", subject, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-ackF.Err():
		return fmt.Errorf("nats: append to %s: %w", subject, err)
	case <-ackF.Ok():
		return nil
	}
}

func (s *CommitStore[M]) ChangeList(ctx context.Context, id es.EntityID) iter.Seq2[es.Commit[M], error] {
	subject := s.subjectFor(id)

	return func(yield func(es.Commit[M], error) bool) {
		var zero es.Commit[M]

		endSeq, err := s.lastSeqForSubject(ctx, subject)
		if err != nil {
			yield(zero, err)
			return
		}
		if endSeq == 0 {
			return
		}

		cc, err := s.stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
			DeliverPolicy:  jetstream.DeliverAllPolicy,
			FilterSubjects: []string{subject},
		})
		if err != nil {
			yield(zero, err)
			return
		}

		for msg, err := range s.fetchUntil(ctx, cc, endSeq) {
			if err != nil {
				yield(zero, err)
				return
			}
			c, err := s.codec.Decode(msg.Data())
			if err != nil {
				yield(zero, fmt.Errorf("%w: %w", es.ErrCorruptStream, err))
				return
			}
			if !yield(c, nil) {
				return
			}
		}
	}
}

func (s *CommitStore[M]) Keys(ctx context.Context) iter.Seq2[es.EntityID, error] {
	return func(yield func(es.EntityID, error) bool) {
		endSeq, err := s.lastSeqForSubject(ctx, s.prefix+".>")
		if err != nil {
			yield("", err)
			return
		}
		if endSeq == 0 {
			return
		}

		cc, err := s.stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
			DeliverPolicy:  jetstream.DeliverAllPolicy,
			FilterSubjects: []string{s.prefix + ".>"},
		})
		if err != nil {
			yield("", err)
			return
		}

		seen := make(map[es.EntityID]struct{})
		for msg, err := range s.fetchUntil(ctx, cc, endSeq) {
			if err != nil {
				yield("", err)
				return
			}
			id := es.EntityID(msg.Headers().Get(hdrEntityID))
			if id == "" {
				yield("", fmt.Errorf("nats: message without %s header", hdrEntityID))
				return
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			if !yield(id, nil) {
				return
			}
		}
	}
}

// fetchUntil yields messages in stream order up to and including endSeq.
func (s *CommitStore[M]) fetchUntil(ctx context.Context, cc jetstream.Consumer, endSeq uint64) iter.Seq2[jetstream.Msg, error] {
	return func(yield func(jetstream.Msg, error) bool) {
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			mb, err := cc.FetchNoWait(100)
			if err != nil {
				yield(nil, err)
				return
			}

			empty := true
			for msg := range mb.Messages() {
				empty = false

				md, err := msg.Metadata()
				if err != nil {
					yield(nil, err)
					return
				}
				if !yield(msg, nil) {
					return
				}
				if md.Sequence.Stream >= endSeq {
					return
				}
			}
			if mb.Error() != nil {
				yield(nil, mb.Error())
				return
			}
			if empty {
				return
			}
		}
	}
}

func (s *CommitStore[M]) lastSeqForSubject(ctx context.Context, subject string) (uint64, error) {
	lm, err := s.stream.GetLastMsgForSubject(ctx, subject)
	if err != nil {
		if errors.Is(err, jetstream.ErrMsgNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("nats: last message for %s: %w", subject, err)
	}
	return lm.Sequence, nil
}

package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/codewandler/esclient-go/core/contracts"
	"github.com/codewandler/esclient-go/core/runtimetest"
)

const headerTenant = "Esclient-Tenant"

type JournalConfig struct {
	Connect       Connector     // Connect is used to create the underlying NATS connection. If nil, ConnectDefault() is used.
	Log           *slog.Logger  // Log for diagnostics (optional)
	StreamName    string        // StreamName of the JetStream stream, ESCLIENT_JOURNAL if empty
	SubjectPrefix string        // SubjectPrefix of the journal subjects, e.g. "esclient.journal" -> esclient.journal.<tenant>
	MaxAge        time.Duration // MaxAge drops older batches, 0 keeps them forever
}

// Journal keeps the batches committed to a runtimetest.Runtime in a
// JetStream stream, one message per batch.
type Journal struct {
	nc      *natsgo.Conn
	closeNc closeFunc
	js      jetstream.JetStream
	stream  jetstream.Stream
	log     *slog.Logger
	prefix  string
}

type journalEntry struct {
	Tenant uuid.UUID                  `json:"tenant"`
	Events []contracts.CommittedEvent `json:"events"`
}

func NewJournal(ctx context.Context, cfg JournalConfig) (*Journal, error) {
	doConnect := cfg.Connect
	if doConnect == nil {
		doConnect = ConnectDefault()
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	streamName := cfg.StreamName
	if streamName == "" {
		streamName = "ESCLIENT_JOURNAL"
	}

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = defaultSubjectPrefix + ".journal"
	}

	nc, closeNc, err := doConnect()
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		closeNc()
		return nil, err
	}

	log = log.With(
		slog.String("journal", "nats_js"),
		slog.String("stream", streamName),
		slog.String("subjectPrefix", prefix),
	)

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{prefix + ".>"},
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
		MaxAge:    cfg.MaxAge,
	})
	if err != nil {
		closeNc()
		return nil, fmt.Errorf("ensure stream %s: %w", streamName, err)
	}
	log.Debug("ensured stream")

	return &Journal{
		nc:      nc,
		closeNc: closeNc,
		js:      js,
		stream:  stream,
		log:     log,
		prefix:  prefix,
	}, nil
}

func (j *Journal) Append(ctx context.Context, tenant uuid.UUID, batch []contracts.CommittedEvent) error {
	if len(batch) == 0 {
		return nil
	}

	msg := natsgo.NewMsg(j.prefix + "." + tenant.String())
	msg.Header.Set(headerTenant, tenant.String())
	data, err := json.Marshal(journalEntry{Tenant: tenant, Events: batch})
	if err != nil {
		return err
	}
	msg.Data = data

	// the first sequence number identifies a batch within its tenant
	id := tenant.String() + "-" + strconv.FormatUint(batch[0].EventLogSequenceNumber, 10)
	ack, err := j.js.PublishMsg(ctx, msg, jetstream.WithMsgID(id))
	if err != nil {
		return fmt.Errorf("publish batch: %w", err)
	}
	j.log.Debug("appended",
		slog.String("tenant", tenant.String()),
		slog.Int("events", len(batch)),
		slog.Uint64("seq", ack.Sequence),
	)
	return nil
}

func (j *Journal) Replay(ctx context.Context, fn func(uuid.UUID, []contracts.CommittedEvent) error) error {
	info, err := j.stream.Info(ctx)
	if err != nil {
		return err
	}
	if info.State.Msgs == 0 {
		return nil
	}
	endSeq := info.State.LastSeq

	cc, err := j.stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return err
	}

	var replayed int
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		mb, err := cc.Fetch(100, jetstream.FetchMaxWait(time.Second))
		if err != nil {
			return err
		}

		empty := true
		for msg := range mb.Messages() {
			empty = false
			md, err := msg.Metadata()
			if err != nil {
				return err
			}
			var entry journalEntry
			if err := json.Unmarshal(msg.Data(), &entry); err != nil {
				return fmt.Errorf("decode batch %d: %w", md.Sequence.Stream, err)
			}
			if err := fn(entry.Tenant, entry.Events); err != nil {
				return err
			}
			replayed++
			if md.Sequence.Stream >= endSeq {
				j.log.Debug("replayed", slog.Int("batches", replayed))
				return nil
			}
		}
		if err := mb.Error(); err != nil && !errors.Is(err, natsgo.ErrTimeout) {
			return err
		}
		if empty {
			// the tail was dropped by the retention limits
			j.log.Debug("replayed", slog.Int("batches", replayed))
			return nil
		}
	}
}

func (j *Journal) Close() error {
	j.js.CleanupPublisher()
	if err := j.nc.Drain(); err != nil {
		j.log.Debug("drain failed", slog.Any("error", err))
	}
	j.closeNc()
	return nil
}

var _ runtimetest.Journal = (*Journal)(nil)

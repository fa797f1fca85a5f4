package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/codewandler/esclient-go/core/artifacts"
	"github.com/codewandler/esclient-go/core/events"
)

func runFetch(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	var (
		rootID     = fs.String("aggregate", "", "aggregate root type id (uuid)")
		generation = fs.Uint("generation", 0, "aggregate root type generation")
		source     = fs.String("source", "", "event source id")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	id, err := uuid.Parse(*rootID)
	if err != nil {
		return fmt.Errorf("-aggregate: %w", err)
	}
	src, err := events.NewEventSourceID(*source)
	if err != nil {
		return fmt.Errorf("-source: %w", err)
	}

	c, closeFn, err := e.newClient(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	root := artifacts.New(id, artifacts.Generation(*generation))
	committed, err := c.EventStore().FetchForAggregate(ctx, root, src)
	if err != nil {
		return err
	}
	e.log.Info("fetched", root.SlogAttrWithKey("aggregate_root"), src.SlogAttr(), committed.AggregateRootVersion().SlogAttr())
	return printEvents(e.out, committed.Events())
}

type printedEvent struct {
	Sequence  uint64          `json:"sequence"`
	Occurred  time.Time       `json:"occurred"`
	Source    string          `json:"source"`
	EventType string          `json:"event_type"`
	Public    bool            `json:"public,omitempty"`
	Content   json.RawMessage `json:"content"`
}

// printEvents writes one json line per event.
func printEvents(w io.Writer, committed events.CommittedEvents) error {
	enc := json.NewEncoder(w)
	for _, e := range committed.All() {
		content, err := json.Marshal(e.Content)
		if err != nil {
			return fmt.Errorf("event %d: %w", e.EventLogSequenceNumber, err)
		}
		if err := enc.Encode(printedEvent{
			Sequence:  e.EventLogSequenceNumber.Uint64(),
			Occurred:  e.Occurred,
			Source:    e.EventSourceID.String(),
			EventType: e.EventType.String(),
			Public:    e.Public,
			Content:   content,
		}); err != nil {
			return err
		}
	}
	return nil
}

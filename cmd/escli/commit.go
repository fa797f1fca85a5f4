package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"

	"github.com/google/uuid"

	"github.com/codewandler/esclient-go/core/artifacts"
	"github.com/codewandler/esclient-go/core/events"
)

func runCommit(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("commit", flag.ContinueOnError)
	var (
		typeID     = fs.String("type", "", "event type id (uuid)")
		generation = fs.Uint("generation", 0, "event type generation")
		source     = fs.String("source", "", "event source id")
		data       = fs.String("data", "", "event content as a json object")
		public     = fs.Bool("public", false, "commit a public event")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	id, err := uuid.Parse(*typeID)
	if err != nil {
		return fmt.Errorf("-type: %w", err)
	}
	src, err := events.NewEventSourceID(*source)
	if err != nil {
		return fmt.Errorf("-source: %w", err)
	}
	if !json.Valid([]byte(*data)) {
		return errors.New("-data is not valid json")
	}

	c, closeFn, err := e.newClient(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	res, err := c.EventStore().CommitEvents(ctx, events.UncommittedEvent{
		Content:       json.RawMessage(*data),
		EventSourceID: src,
		EventType:     events.NewEventType(id, artifacts.Generation(*generation)),
		Public:        *public,
	})
	if err != nil {
		return err
	}
	if res.Failed() {
		return res.Failure
	}
	return printEvents(e.out, res.Events)
}

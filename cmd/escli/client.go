package main

import (
	"context"
	"fmt"
	"time"

	"github.com/codewandler/esclient-go/adapters/grpc"
	"github.com/codewandler/esclient-go/adapters/nats"
	"github.com/codewandler/esclient-go/core/client"
	"github.com/codewandler/esclient-go/core/rpc"
	"github.com/codewandler/esclient-go/internal/config"
)

const (
	shutdownTimeout = 5 * time.Second
	// commands give up on an unreachable runtime after this long unless
	// retry.max_elapsed_time says otherwise
	commandRetryTimeout = 30 * time.Second
)

// dial opens a channel to the configured runtime. The memory transport has
// no channel; the client then starts its own runtime.
func (e *env) dial(ctx context.Context) (rpc.Channel, error) {
	t := e.cfg.Transport
	switch t.Kind {
	case config.TransportNATS:
		return nats.NewChannel(nats.ChannelConfig{
			Connect:       nats.ConnectURL(t.Address),
			Log:           e.log,
			SubjectPrefix: t.SubjectPrefix,
		})
	case config.TransportGRPC:
		return grpc.Dial(ctx, grpc.ChannelConfig{Address: t.Address, Log: e.log})
	default:
		e.log.Warn("transport is memory, events live only as long as this process")
		return nil, nil
	}
}

// newClient creates a client that does not register handlers.
func (e *env) newClient(ctx context.Context) (*client.Client, func(), error) {
	ch, err := e.dial(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", e.cfg.Transport.Kind, err)
	}
	ec := e.cfg.ExecutionContext()
	c, err := client.New(client.Config{
		Context:      ctx,
		Log:          e.log,
		Channel:      ch,
		Microservice: ec.MicroserviceID,
		Version:      ec.Version,
		Environment:  ec.Environment,
		Tenant:       ec.TenantID,
		Retry:        e.commandRetry(),
	})
	if err != nil {
		if ch != nil {
			_ = ch.Close()
		}
		return nil, nil, err
	}
	closeFn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = c.Shutdown(ctx)
		if ch != nil {
			_ = ch.Close()
		}
	}
	return c, closeFn, nil
}

func (e *env) commandRetry() rpc.RetryPolicy {
	p := e.cfg.RetryPolicy()
	if bp, ok := p.(rpc.BackoffPolicy); ok && bp.MaxElapsedTime == 0 {
		bp.MaxElapsedTime = commandRetryTimeout
		return bp
	}
	return p
}

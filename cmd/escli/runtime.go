package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/codewandler/esclient-go/adapters/grpc"
	"github.com/codewandler/esclient-go/adapters/nats"
	promadapter "github.com/codewandler/esclient-go/adapters/prometheus"
	"github.com/codewandler/esclient-go/core/rpc"
	"github.com/codewandler/esclient-go/core/runtimetest"
	"github.com/codewandler/esclient-go/internal/config"
)

func runRuntime(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("runtime", flag.ContinueOnError)
	var (
		journalURL = fs.String("journal", "", "NATS url of a JetStream journal that keeps the event log across restarts")
		queue      = fs.String("queue", "", "NATS queue group shared by runtimes on the same subject prefix")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := []runtimetest.Option{runtimetest.WithLog(e.log)}
	if *journalURL != "" {
		journal, err := nats.NewJournal(ctx, nats.JournalConfig{
			Connect: nats.ConnectURL(*journalURL),
			Log:     e.log,
		})
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		defer journal.Close()
		opts = append(opts, runtimetest.WithJournal(journal))
	}

	rt := runtimetest.New(opts...)
	if err := rt.Restore(ctx); err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mux := rpc.InstrumentMux(rt.Mux(), promadapter.NewRPCMetrics(reg))

	eg, ctx := errgroup.WithContext(ctx)
	t := e.cfg.Transport
	switch t.Kind {
	case config.TransportGRPC:
		lis, err := net.Listen("tcp", t.Address)
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		srv := grpc.NewServer(mux, grpc.ServerConfig{Log: e.log})
		eg.Go(func() error { return srv.Serve(ctx, lis) })
	case config.TransportNATS:
		srv, err := nats.NewServer(mux, nats.ServerConfig{
			Connect:       nats.ConnectURL(t.Address),
			Log:           e.log,
			SubjectPrefix: t.SubjectPrefix,
			QueueGroup:    *queue,
		})
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer srv.Close()
		eg.Go(func() error { return srv.Serve(ctx) })
	default:
		return fmt.Errorf("transport %s cannot be served, use %s or %s", t.Kind, config.TransportGRPC, config.TransportNATS)
	}

	if addr := e.cfg.Metrics.Listen; addr != "" {
		eg.Go(func() error { return serveMetrics(ctx, e.log, addr, reg) })
	}

	e.log.Info("runtime started", slog.String("transport", t.Kind), slog.String("address", t.Address))
	return eg.Wait()
}

func serveMetrics(ctx context.Context, log *slog.Logger, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	stop := context.AfterFunc(ctx, func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(sctx)
	})
	defer stop()

	log.Info("serving metrics", slog.String("address", addr))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

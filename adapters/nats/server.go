package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	natsgo "github.com/nats-io/nats.go"

	"github.com/codewandler/esclient-go/core/rpc"
)

type ServerConfig struct {
	Connect       Connector    // Connect is used to create the underlying NATS connection. If nil, ConnectDefault() is used.
	Log           *slog.Logger // Log for diagnostics (optional)
	SubjectPrefix string       // SubjectPrefix the runtime is served on
	QueueGroup    string       // QueueGroup balances calls across servers (optional)
}

// Server serves the methods of a mux to Channels on the same subject prefix.
type Server struct {
	nc      *natsgo.Conn
	closeNc closeFunc
	log     *slog.Logger
	prefix  string
	queue   string
	mux     *rpc.Mux

	mu       sync.Mutex
	stopping bool
	wg       sync.WaitGroup
	done     chan struct{}
}

func NewServer(mux *rpc.Mux, cfg ServerConfig) (*Server, error) {
	connFn := cfg.Connect
	if connFn == nil {
		connFn = ConnectDefault()
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}

	nc, closeNc, err := connFn()
	if err != nil {
		return nil, err
	}

	return &Server{
		nc:      nc,
		closeNc: closeNc,
		log:     log.With(slog.String("server", "nats"), slog.String("prefix", prefix)),
		prefix:  prefix,
		queue:   cfg.QueueGroup,
		mux:     mux,
		done:    make(chan struct{}),
	}, nil
}

// Start subscribes the runtime subjects and serves until ctx is done. Every
// request runs in its own goroutine. Start returns once the subscriptions
// reached the NATS server.
func (s *Server) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	callSub, err := s.subscribe(subjectCall(s.prefix), s.dispatch(ctx, s.serveCall))
	if err != nil {
		cancel()
		return fmt.Errorf("nats: subscribe calls: %w", err)
	}
	connectSub, err := s.subscribe(subjectConnect(s.prefix), s.dispatch(ctx, s.serveConnect))
	if err != nil {
		cancel()
		_ = callSub.Unsubscribe()
		return fmt.Errorf("nats: subscribe streams: %w", err)
	}
	if err := s.nc.Flush(); err != nil {
		cancel()
		_ = callSub.Unsubscribe()
		_ = connectSub.Unsubscribe()
		return fmt.Errorf("nats: flush: %w", err)
	}

	unary, streams := s.mux.Methods()
	s.log.Info("serving", slog.Any("unary", unary), slog.Any("streams", streams))

	go func() {
		defer cancel()
		<-ctx.Done()

		_ = callSub.Unsubscribe()
		_ = connectSub.Unsubscribe()
		s.mu.Lock()
		s.stopping = true
		s.mu.Unlock()
		s.wg.Wait()

		s.log.Info("stopped serving")
		close(s.done)
	}()
	return nil
}

// Wait blocks until serving stopped and every request finished.
func (s *Server) Wait() { <-s.done }

// Serve is Start followed by Wait.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	s.Wait()
	return nil
}

func (s *Server) dispatch(ctx context.Context, h func(context.Context, *natsgo.Msg)) natsgo.MsgHandler {
	return func(msg *natsgo.Msg) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.stopping {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			h(ctx, msg)
		}()
	}
}

func (s *Server) Close() error {
	if err := s.nc.Drain(); err != nil {
		s.log.Debug("drain failed", slog.Any("error", err))
	}
	s.closeNc()
	return nil
}

func (s *Server) subscribe(subject string, h natsgo.MsgHandler) (*natsgo.Subscription, error) {
	if s.queue != "" {
		return s.nc.QueueSubscribe(subject, s.queue, h)
	}
	return s.nc.Subscribe(subject, h)
}

func (s *Server) serveCall(ctx context.Context, msg *natsgo.Msg) {
	method := msg.Header.Get(headerMethod)

	var rf responseFrame
	if h, ok := s.mux.Unary(method); !ok {
		rf.Code = codeUnknownMethod
		rf.Err = rpc.ErrUnknownMethod.Error()
	} else if data, err := h(ctx, msg.Data); err != nil {
		s.log.Debug("call failed", slog.String("method", method), slog.Any("error", err))
		rf.Err = err.Error()
	} else {
		rf.Data = data
	}

	b, err := json.Marshal(rf)
	if err != nil {
		s.log.Error("failed to encode response", slog.Any("error", err))
		return
	}
	if err := msg.Respond(b); err != nil {
		s.log.Error("failed to publish reply", slog.String("method", method), slog.Any("error", err))
	}
}

func (s *Server) serveConnect(ctx context.Context, msg *natsgo.Msg) {
	var (
		method = msg.Header.Get(headerMethod)
		peer   = msg.Header.Get(headerInbox)
		reply  = natsgo.NewMsg(msg.Reply)
		log    = s.log.With(slog.String("method", method))
	)

	h, ok := s.mux.Stream(method)
	if !ok || peer == "" {
		reply.Header.Set(headerCode, codeUnknownMethod)
		if err := msg.RespondMsg(reply); err != nil {
			log.Error("failed to publish reply", slog.Any("error", err))
		}
		return
	}

	sctx, cancel := context.WithCancel(ctx)
	st, err := newStream(sctx, cancel, s.nc, subjectStream(s.prefix))
	if err != nil {
		reply.Header.Set(headerError, err.Error())
		_ = msg.RespondMsg(reply)
		return
	}
	st.peer = peer
	// the client closing its side stops the handler
	st.onPeerEnd = cancel

	reply.Header.Set(headerInbox, st.inbox)
	if err := msg.RespondMsg(reply); err != nil {
		log.Error("failed to publish reply", slog.Any("error", err))
		st.end(nil)
		return
	}

	err = h(sctx, st)
	if err != nil && !rpc.IsCanceled(err) {
		log.Debug("stream handler failed", slog.Any("error", err))
		st.end(err)
		return
	}
	st.end(nil)
}

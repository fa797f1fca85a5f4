package grpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	grpcgo "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/codewandler/esclient-go/core/rpc"
)

const gracePeriod = 5 * time.Second

type ServerConfig struct {
	Log           *slog.Logger          // Log for diagnostics (optional)
	ServerOptions []grpcgo.ServerOption // ServerOptions are appended to the codec and handler options
}

// Server serves the methods of a mux over gRPC. Every method arrives at the
// unknown service handler, which routes it through the mux.
type Server struct {
	srv *grpcgo.Server
	mux *rpc.Mux
	log *slog.Logger
}

func NewServer(mux *rpc.Mux, cfg ServerConfig) *Server {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		mux: mux,
		log: log.With(slog.String("server", "grpc")),
	}
	opts := append([]grpcgo.ServerOption{
		grpcgo.ForceServerCodec(rawCodec{}),
		grpcgo.UnknownServiceHandler(s.handle),
	}, cfg.ServerOptions...)
	s.srv = grpcgo.NewServer(opts...)
	return s
}

// Serve accepts connections on lis until ctx is done. Running calls get
// gracePeriod to finish before open streams are cut.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		force := time.AfterFunc(gracePeriod, s.srv.Stop)
		s.srv.GracefulStop()
		force.Stop()
	})
	defer stop()

	unary, streams := s.mux.Methods()
	s.log.Info("serving", slog.String("address", lis.Addr().String()), slog.Any("unary", unary), slog.Any("streams", streams))

	err := s.srv.Serve(lis)
	if errors.Is(err, grpcgo.ErrServerStopped) {
		err = nil
	}
	s.log.Info("stopped serving")
	return err
}

// Stop closes every connection without waiting for running handlers.
func (s *Server) Stop() { s.srv.Stop() }

func (s *Server) handle(_ any, ss grpcgo.ServerStream) error {
	method, ok := grpcgo.MethodFromServerStream(ss)
	if !ok {
		return status.Error(codes.Internal, "no method in stream")
	}
	log := s.log.With(slog.String("method", method))

	if h, ok := s.mux.Unary(method); ok {
		var req frame
		if err := ss.RecvMsg(&req); err != nil {
			return err
		}
		res, err := h(ss.Context(), req.data)
		if err != nil {
			log.Debug("call failed", slog.Any("error", err))
			return status.Error(codes.Unknown, err.Error())
		}
		return ss.SendMsg(&frame{data: res})
	}

	if h, ok := s.mux.Stream(method); ok {
		err := h(ss.Context(), &serverStream{ss: ss})
		if err != nil && !rpc.IsCanceled(err) {
			log.Debug("stream handler failed", slog.Any("error", err))
			return status.Error(codes.Unknown, err.Error())
		}
		return nil
	}

	return status.Errorf(codes.Unimplemented, "%s", method)
}

type serverStream struct {
	ss grpcgo.ServerStream
}

func (s *serverStream) Send(data []byte) error {
	if err := s.ss.SendMsg(&frame{data: data}); err != nil {
		if err := s.ss.Context().Err(); err != nil {
			return err
		}
		return rpc.ErrStreamClosed
	}
	return nil
}

func (s *serverStream) Recv() ([]byte, error) {
	var f frame
	if err := s.ss.RecvMsg(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if err := s.ss.Context().Err(); err != nil {
			return nil, err
		}
		return nil, rpc.ErrStreamClosed
	}
	return f.data, nil
}

// Close is a no-op; the stream ends when the handler returns.
func (s *serverStream) Close() error { return nil }

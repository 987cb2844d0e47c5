// Package grpc exposes the document server over gRPC.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/growthvault/internal/logging"
	"github.com/dmitrijs2005/growthvault/internal/rpc"
	"github.com/dmitrijs2005/growthvault/internal/server/models"
	"github.com/dmitrijs2005/growthvault/internal/server/services"
	"google.golang.org/grpc"
)

type userSvc interface {
	Register(ctx context.Context, username string, salt, verifier []byte) (*models.User, error)
	GetSalt(ctx context.Context, username string) ([]byte, error)
	Login(ctx context.Context, username string, verifierCandidate []byte) (string, *services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
}

type documentSvc interface {
	Put(ctx context.Context, userID string, data []byte) error
	Get(ctx context.Context, userID string) ([]byte, error)
	Watch(ctx context.Context, userID string, send func([]byte) error) error
}

type GRPCServer struct {
	rpc.UnimplementedDocumentServiceServer
	address   string
	users     userSvc
	documents documentSvc
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, us userSvc, ds documentSvc, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    logging.OrNop(l).With("module", "grpc_server"),
		users:     us,
		documents: ds,
		jwtSecret: []byte(secretKey),
	}
}

// NewServer builds the grpc.Server with interceptors and the service
// registered, without binding a listener.
func (s *GRPCServer) NewServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.accessTokenInterceptor),
		grpc.ChainStreamInterceptor(s.streamAccessTokenInterceptor),
		grpc.MaxRecvMsgSize(rpc.MaxMessageSize),
		grpc.MaxSendMsgSize(rpc.MaxMessageSize),
	)
	rpc.RegisterDocumentServiceServer(srv, s)
	return srv
}

// shutdownGrace bounds GracefulStop. Watch streams never finish on their
// own, so whatever is still open after it is cut off.
var shutdownGrace = 5 * time.Second

// Run serves on the configured address until ctx is cancelled, then stops
// gracefully.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve is Run over an existing listener.
func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := s.NewServer()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")

		graceful := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(graceful)
		}()
		select {
		case <-graceful:
		case <-time.After(shutdownGrace):
			srv.Stop()
		}
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}
	<-stopped
	return nil
}

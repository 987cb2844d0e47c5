package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/growthvault/internal/common"
	"github.com/dmitrijs2005/growthvault/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps service errors onto gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorAlreadyExists):
		return status.Error(codes.AlreadyExists, "user already exists")
	case errors.Is(err, common.ErrRefreshTokenExpired):
		return status.Error(codes.Unauthenticated, common.ErrRefreshTokenExpired.Error())
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrorForbidden):
		return status.Error(codes.PermissionDenied, "forbidden")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, "internal error")
}

func (s *GRPCServer) RegisterUser(ctx context.Context, req *rpc.RegisterUserRequest) (*rpc.RegisterUserResponse, error) {
	user, err := s.users.Register(ctx, req.Username, req.Salt, req.Verifier)
	if err != nil {
		s.logger.Warn(ctx, "registration failed", "username", req.Username, "error", err)
		return nil, toStatus(err)
	}
	s.logger.Info(ctx, "Registered", "username", req.Username, "user_id", user.ID)
	return &rpc.RegisterUserResponse{UserID: user.ID}, nil
}

func (s *GRPCServer) GetSalt(ctx context.Context, req *rpc.GetSaltRequest) (*rpc.GetSaltResponse, error) {
	salt, err := s.users.GetSalt(ctx, req.Username)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.GetSaltResponse{Salt: salt}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *rpc.LoginRequest) (*rpc.LoginResponse, error) {
	userID, tokens, err := s.users.Login(ctx, req.Username, req.VerifierCandidate)
	if err != nil {
		return nil, toStatus(err)
	}
	s.logger.Info(ctx, "Logged in", "user_id", userID)
	return &rpc.LoginResponse{UserID: userID, AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}

func (s *GRPCServer) RefreshToken(ctx context.Context, req *rpc.RefreshTokenRequest) (*rpc.RefreshTokenResponse, error) {
	tokens, err := s.users.RefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.RefreshTokenResponse{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}

func (s *GRPCServer) Logout(ctx context.Context, req *rpc.LogoutRequest) (*rpc.LogoutResponse, error) {
	if err := s.users.Logout(ctx, req.RefreshToken); err != nil {
		return nil, toStatus(err)
	}
	return &rpc.LogoutResponse{}, nil
}

func (s *GRPCServer) Ping(ctx context.Context, req *rpc.PingRequest) (*rpc.PingResponse, error) {
	return &rpc.PingResponse{Status: rpc.StatusOK}, nil
}

func (s *GRPCServer) PutDocument(ctx context.Context, req *rpc.PutDocumentRequest) (*rpc.PutDocumentResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.documents.Put(ctx, userID, req.Document); err != nil {
		return nil, toStatus(err)
	}
	return &rpc.PutDocumentResponse{}, nil
}

func (s *GRPCServer) GetDocument(ctx context.Context, req *rpc.GetDocumentRequest) (*rpc.GetDocumentResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	data, err := s.documents.Get(ctx, userID)
	if err != nil {
		return nil, toStatus(err)
	}
	if data == nil {
		return &rpc.GetDocumentResponse{Found: false}, nil
	}
	return &rpc.GetDocumentResponse{Found: true, Document: data}, nil
}

func (s *GRPCServer) WatchDocument(req *rpc.WatchDocumentRequest, stream grpc.ServerStreamingServer[rpc.DocumentEvent]) error {
	ctx := stream.Context()
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return err
	}
	err = s.documents.Watch(ctx, userID, func(data []byte) error {
		return stream.Send(&rpc.DocumentEvent{Document: data})
	})
	if err != nil {
		s.logger.Debug(ctx, "watch ended", "user_id", userID, "error", err)
		return err
	}
	return nil
}

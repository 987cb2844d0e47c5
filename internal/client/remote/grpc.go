package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dmitrijs2005/growthvault/internal/common"
	"github.com/dmitrijs2005/growthvault/internal/cryptox"
	"github.com/dmitrijs2005/growthvault/internal/logging"
	"github.com/dmitrijs2005/growthvault/internal/models"
	"github.com/dmitrijs2005/growthvault/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const callTimeout = 12 * time.Second

// GRPCStore implements Store against the GrowthVault document server.
type GRPCStore struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      rpc.DocumentServiceClient
	logger      logging.Logger
	dialOpts    []grpc.DialOption
	retryDelay  time.Duration

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	identity     *Identity
	subs         map[uint64]*Subscription
	nextSubID    uint64
}

type Option func(*GRPCStore)

func WithLogger(l logging.Logger) Option {
	return func(s *GRPCStore) { s.logger = l }
}

// WithDialOptions appends gRPC dial options, e.g. a custom dialer in tests.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(s *GRPCStore) { s.dialOpts = append(s.dialOpts, opts...) }
}

// WithRetryDelay sets how long a broken subscription waits before
// reconnecting.
func WithRetryDelay(d time.Duration) Option {
	return func(s *GRPCStore) { s.retryDelay = d }
}

// NewGRPCStore creates the client connection. No network traffic happens
// until the first call.
func NewGRPCStore(endpointURL string, opts ...Option) (*GRPCStore, error) {
	s := &GRPCStore{
		endpointURL: endpointURL,
		retryDelay:  2 * time.Second,
		subs:        make(map[uint64]*Subscription),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = logging.OrNop(s.logger).With("module", "remote")

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
		grpc.WithStreamInterceptor(s.streamAccessTokenInterceptor),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(rpc.MaxMessageSize),
			grpc.MaxCallSendMsgSize(rpc.MaxMessageSize),
		),
	}, s.dialOpts...)

	conn, err := grpc.NewClient(s.endpointURL, dialOpts...)
	if err != nil {
		return nil, err
	}
	s.conn = conn
	s.client = rpc.NewDocumentServiceClient(conn)
	return s, nil
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCStore) tokens() (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken, s.refreshToken
}

// accessTokenInterceptor attaches the access token and, when the server
// reports it expired, refreshes the pair once and retries the call.
func (s *GRPCStore) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if rpc.PublicMethods[method] {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	access, _ := s.tokens()
	err := invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)
	if !isTokenExpired(err) {
		return err
	}

	if rerr := s.refresh(ctx); rerr != nil {
		return err
	}

	access, _ = s.tokens()
	return invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)
}

func (s *GRPCStore) streamAccessTokenInterceptor(
	ctx context.Context,
	desc *grpc.StreamDesc,
	cc *grpc.ClientConn,
	method string,
	streamer grpc.Streamer,
	opts ...grpc.CallOption,
) (grpc.ClientStream, error) {
	access, _ := s.tokens()
	return streamer(withAccessToken(ctx, access), desc, cc, method, opts...)
}

func isTokenExpired(err error) bool {
	st, ok := status.FromError(err)
	return ok && err != nil && st.Code() == codes.Unauthenticated && st.Message() == common.ErrTokenExpired.Error()
}

func (s *GRPCStore) refresh(ctx context.Context) error {
	_, refreshToken := s.tokens()
	if refreshToken == "" {
		return ErrNotSignedIn
	}

	resp, err := s.client.RefreshToken(ctx, &rpc.RefreshTokenRequest{RefreshToken: refreshToken})
	if err != nil {
		return s.mapError(err)
	}

	s.mu.Lock()
	s.accessToken = resp.AccessToken
	s.refreshToken = resp.RefreshToken
	s.mu.Unlock()

	s.logger.Debug(ctx, "access token refreshed")
	return nil
}

func (s *GRPCStore) Register(ctx context.Context, username, password string) error {
	salt, verifier := cryptox.HashPassword([]byte(password))

	_, err := s.client.RegisterUser(ctx, &rpc.RegisterUserRequest{Username: username, Salt: salt, Verifier: verifier})
	if err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *GRPCStore) SignIn(ctx context.Context, username, password string) (*Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	saltResp, err := s.client.GetSalt(ctx, &rpc.GetSaltRequest{Username: username})
	if err != nil {
		return nil, s.mapError(err)
	}

	key := cryptox.DeriveKey([]byte(password), saltResp.Salt)
	defer common.WipeByteArray(key)

	resp, err := s.client.Login(ctx, &rpc.LoginRequest{Username: username, VerifierCandidate: key})
	if err != nil {
		return nil, s.mapError(err)
	}

	id := &Identity{UserID: resp.UserID, Username: username}

	s.mu.Lock()
	s.accessToken = resp.AccessToken
	s.refreshToken = resp.RefreshToken
	s.identity = id
	s.mu.Unlock()

	s.logger.Info(ctx, "signed in", "user_id", id.UserID)
	return &Identity{UserID: id.UserID, Username: id.Username}, nil
}

// SignOut stops every live subscription, revokes the refresh token and
// forgets the identity. The local state is cleared even when the server
// cannot be reached.
func (s *GRPCStore) SignOut(ctx context.Context) error {
	s.mu.Lock()
	subs := make([]*Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	refreshToken := s.refreshToken
	s.mu.Unlock()

	for _, sub := range subs {
		_ = s.Unsubscribe(sub)
	}

	var err error
	if refreshToken != "" {
		if _, lerr := s.client.Logout(ctx, &rpc.LogoutRequest{RefreshToken: refreshToken}); lerr != nil {
			err = s.mapError(lerr)
			s.logger.Warn(ctx, "logout request failed", "error", lerr)
		}
	}

	s.mu.Lock()
	s.accessToken = ""
	s.refreshToken = ""
	s.identity = nil
	s.mu.Unlock()

	return err
}

// Identity returns the signed-in user, or nil.
func (s *GRPCStore) Identity() *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

func (s *GRPCStore) checkUser(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return ErrNotSignedIn
	}
	if s.identity.UserID != userID {
		return ErrWrongUser
	}
	return nil
}

func (s *GRPCStore) Put(ctx context.Context, userID string, doc *models.Document) error {
	if err := s.checkUser(userID); err != nil {
		return err
	}
	if doc == nil {
		return errors.New("put: nil document")
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("serialize document: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if _, err := s.client.PutDocument(ctx, &rpc.PutDocumentRequest{Document: data}); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *GRPCStore) Get(ctx context.Context, userID string) (*models.Document, error) {
	if err := s.checkUser(userID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp, err := s.client.GetDocument(ctx, &rpc.GetDocumentRequest{})
	if err != nil {
		return nil, s.mapError(err)
	}
	if !resp.Found {
		return nil, nil
	}
	return decodeDocument(resp.Document)
}

// Subscribe opens a change feed for userID. onChange runs on the feed's own
// goroutine, one document at a time. A broken stream is reopened after the
// retry delay until the subscription is cancelled or the server rejects the
// credentials.
func (s *GRPCStore) Subscribe(ctx context.Context, userID string, onChange ChangeFunc) (*Subscription, error) {
	if err := s.checkUser(userID); err != nil {
		return nil, err
	}
	if onChange == nil {
		return nil, errors.New("subscribe: nil callback")
	}

	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	s.mu.Lock()
	s.nextSubID++
	sub := &Subscription{id: s.nextSubID, userID: userID, cancel: cancel, done: make(chan struct{})}
	s.subs[sub.id] = sub
	s.mu.Unlock()

	go s.watch(watchCtx, sub, onChange)

	return sub, nil
}

func (s *GRPCStore) Unsubscribe(sub *Subscription) error {
	if sub == nil {
		return nil
	}

	s.mu.Lock()
	delete(s.subs, sub.id)
	s.mu.Unlock()

	sub.cancel()
	<-sub.done
	return nil
}

func (s *GRPCStore) watch(ctx context.Context, sub *Subscription, onChange ChangeFunc) {
	defer close(sub.done)
	defer func() {
		s.mu.Lock()
		delete(s.subs, sub.id)
		s.mu.Unlock()
	}()

	for {
		err := s.watchOnce(ctx, onChange)
		if ctx.Err() != nil {
			return
		}

		switch {
		case isTokenExpired(err):
			if rerr := s.refresh(ctx); rerr != nil {
				s.logger.Warn(ctx, "subscription stopped: cannot refresh token", "error", rerr)
				return
			}
			continue
		case status.Code(err) == codes.Unauthenticated || status.Code(err) == codes.PermissionDenied:
			s.logger.Warn(ctx, "subscription stopped: unauthorized", "error", err)
			return
		}

		s.logger.Warn(ctx, "subscription interrupted, reconnecting", "error", err, "delay", s.retryDelay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.retryDelay):
		}
	}
}

func (s *GRPCStore) watchOnce(ctx context.Context, onChange ChangeFunc) error {
	stream, err := s.client.WatchDocument(ctx, &rpc.WatchDocumentRequest{})
	if err != nil {
		return err
	}
	for {
		ev, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return status.Error(codes.Unavailable, "stream closed by server")
		}
		if err != nil {
			return err
		}
		doc, err := decodeDocument(ev.Document)
		if err != nil {
			s.logger.Warn(ctx, "dropping undecodable document event", "error", err)
			continue
		}
		onChange(doc)
	}
}

func (s *GRPCStore) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(ctx, &rpc.PingRequest{})
	if err != nil {
		return s.mapError(err)
	}

	if resp.Status != rpc.StatusOK {
		return ErrUnavailable
	}

	return nil
}

// Close tears down all subscriptions and the connection.
func (s *GRPCStore) Close() error {
	s.mu.Lock()
	subs := make([]*Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		_ = s.Unsubscribe(sub)
	}
	return s.conn.Close()
}

func (s *GRPCStore) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %s", common.ErrorAlreadyExists, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

func decodeDocument(data []byte) (*models.Document, error) {
	doc := &models.Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decode remote document: %w", err)
	}
	doc.Normalize()
	return doc, nil
}

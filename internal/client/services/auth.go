package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/growthvault/internal/client/persistence"
	"github.com/dmitrijs2005/growthvault/internal/client/remote"
	"github.com/dmitrijs2005/growthvault/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/growthvault/internal/logging"
)

const lastUsernameKey = "last_username"

// Session is the part of the persistence orchestrator that owns the remote
// identity.
type Session interface {
	SignIn(ctx context.Context, username, password string) (*remote.Identity, *persistence.LoadResult, error)
	SignOut(ctx context.Context) error
	Identity() *remote.Identity
}

// AuthService signs the user in and out of the remote store. The last
// username is remembered in the client database to prefill the prompt.
type AuthService struct {
	session Session
	remote  remote.Store
	meta    metadata.Repository
	logger  logging.Logger
}

func NewAuthService(session Session, rs remote.Store, meta metadata.Repository, l logging.Logger) *AuthService {
	return &AuthService{
		session: session,
		remote:  rs,
		meta:    meta,
		logger:  logging.OrNop(l).With("module", "auth"),
	}
}

// Register creates an account on the server. It does not sign in.
func (a *AuthService) Register(ctx context.Context, username, password string) error {
	username, err := validateCredentials(username, password)
	if err != nil {
		return err
	}
	if err := a.remote.Register(ctx, username, password); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	a.logger.Info(ctx, "user registered", "username", username)
	return nil
}

// SignIn authenticates, starts live updates and loads the user's document.
// The returned load result is nil when neither store has a document yet.
func (a *AuthService) SignIn(ctx context.Context, username, password string) (*remote.Identity, *persistence.LoadResult, error) {
	username, err := validateCredentials(username, password)
	if err != nil {
		return nil, nil, err
	}

	id, res, err := a.session.SignIn(ctx, username, password)
	if err != nil {
		if id == nil {
			return nil, nil, fmt.Errorf("sign in: %w", err)
		}
		a.logger.Warn(ctx, "signed in but initial load failed", "error", err)
	}

	if a.meta != nil {
		if merr := a.meta.Set(ctx, lastUsernameKey, []byte(username)); merr != nil {
			a.logger.Warn(ctx, "cannot remember username", "error", merr)
		}
	}
	a.logger.Info(ctx, "signed in", "user_id", id.UserID)
	return id, res, err
}

// SignOut stops live updates and drops the session. Local data stays.
func (a *AuthService) SignOut(ctx context.Context) error {
	if a.session.Identity() == nil {
		return remote.ErrNotSignedIn
	}
	if err := a.session.SignOut(ctx); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	a.logger.Info(ctx, "signed out")
	return nil
}

// Identity returns the signed-in user, or nil.
func (a *AuthService) Identity() *remote.Identity {
	return a.session.Identity()
}

// LastUsername returns the username of the last successful sign-in, or "".
func (a *AuthService) LastUsername(ctx context.Context) (string, error) {
	if a.meta == nil {
		return "", nil
	}
	v, err := a.meta.Get(ctx, lastUsernameKey)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// ForgetUser removes the remembered username.
func (a *AuthService) ForgetUser(ctx context.Context) error {
	if a.meta == nil {
		return nil
	}
	return a.meta.Delete(ctx, lastUsernameKey)
}

// Ping checks that the server is reachable.
func (a *AuthService) Ping(ctx context.Context) error {
	return a.remote.Ping(ctx)
}

func validateCredentials(username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", invalid("username", "must not be empty")
	}
	if password == "" {
		return "", invalid("password", "must not be empty")
	}
	return username, nil
}

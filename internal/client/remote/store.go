// Package remote is the client side of the authenticated per-user document
// store: sign-in, whole-document put/get and a live subscription that
// delivers every write to the user's document, the client's own included.
package remote

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/growthvault/internal/models"
)

var (
	ErrUnavailable  = errors.New("remote store unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotSignedIn  = errors.New("not signed in")
	ErrWrongUser    = errors.New("document belongs to another user")
)

// Identity is the signed-in user.
type Identity struct {
	UserID   string
	Username string
}

// ChangeFunc receives every document written to a subscribed user's store.
type ChangeFunc func(doc *models.Document)

// Subscription is a handle to a live change feed.
type Subscription struct {
	id     uint64
	userID string
	cancel context.CancelFunc
	done   chan struct{}
}

// UserID is the user whose document the subscription follows.
func (s *Subscription) UserID() string { return s.userID }

// Done is closed when the feed has stopped.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Store is the remote document store. Get returns (nil, nil) when the user
// has no document yet.
type Store interface {
	Register(ctx context.Context, username, password string) error
	SignIn(ctx context.Context, username, password string) (*Identity, error)
	SignOut(ctx context.Context) error
	Put(ctx context.Context, userID string, doc *models.Document) error
	Get(ctx context.Context, userID string) (*models.Document, error)
	// Subscribe calls onChange with the user's document after writes,
	// including our own. A subscriber that falls behind the server skips to
	// the newest document instead of seeing every intermediate write.
	Subscribe(ctx context.Context, userID string, onChange ChangeFunc) (*Subscription, error)
	Unsubscribe(sub *Subscription) error
	Ping(ctx context.Context) error
}

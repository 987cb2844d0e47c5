package grpc

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/growthvault/internal/common"
	"github.com/dmitrijs2005/growthvault/internal/cryptox"
	"github.com/dmitrijs2005/growthvault/internal/server/auth"
	"github.com/dmitrijs2005/growthvault/internal/server/models"
	"github.com/dmitrijs2005/growthvault/internal/server/services"
)

const testSecret = "k"

// fakeUsers is an in-memory userSvc issuing real access tokens.
type fakeUsers struct {
	mu             sync.Mutex
	users          map[string]*models.User
	refresh        map[string]string
	accessValidity time.Duration
	err            error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		users:          map[string]*models.User{},
		refresh:        map[string]string{},
		accessValidity: time.Hour,
	}
}

func (f *fakeUsers) Register(ctx context.Context, username string, salt, verifier []byte) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.users[username]; ok {
		return nil, common.ErrorAlreadyExists
	}
	u := &models.User{ID: "user-" + username, UserName: username, Salt: salt, Verifier: verifier}
	f.users[username] = u
	return u, nil
}

func (f *fakeUsers) GetSalt(ctx context.Context, username string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.users[username]; ok {
		return u.Salt, nil
	}
	return common.GenerateRandByteArray(32), nil
}

func (f *fakeUsers) Login(ctx context.Context, username string, candidate []byte) (string, *services.TokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", nil, f.err
	}
	u, ok := f.users[username]
	if !ok || !cryptox.MatchVerifier(u.Verifier, candidate) {
		return "", nil, common.ErrorUnauthorized
	}
	pair, err := f.issue(u.ID)
	return u.ID, pair, err
}

func (f *fakeUsers) RefreshToken(ctx context.Context, token string) (*services.TokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	userID, ok := f.refresh[token]
	if !ok {
		return nil, common.ErrorUnauthorized
	}
	delete(f.refresh, token)
	return f.issue(userID)
}

func (f *fakeUsers) Logout(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refresh, token)
	return f.err
}

func (f *fakeUsers) setAccessValidity(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accessValidity = d
}

func (f *fakeUsers) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.refresh)
}

func (f *fakeUsers) issue(userID string) (*services.TokenPair, error) {
	access, err := auth.GenerateToken(userID, []byte(testSecret), f.accessValidity)
	if err != nil {
		return nil, err
	}
	refresh, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, err
	}
	f.refresh[refresh] = userID
	return &services.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// fakeDocuments records calls; Watch blocks until ctx ends unless send
// fails.
type fakeDocuments struct {
	mu      sync.Mutex
	docs    map[string][]byte
	err     error
	updates chan []byte
}

func newFakeDocuments() *fakeDocuments {
	return &fakeDocuments{docs: map[string][]byte{}, updates: make(chan []byte, 8)}
}

func (f *fakeDocuments) Put(ctx context.Context, userID string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.docs[userID] = data
	return nil
}

func (f *fakeDocuments) Get(ctx context.Context, userID string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.docs[userID], nil
}

func (f *fakeDocuments) Watch(ctx context.Context, userID string, send func([]byte) error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d := <-f.updates:
			if err := send(d); err != nil {
				return err
			}
		}
	}
}

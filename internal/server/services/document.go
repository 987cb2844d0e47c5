package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/growthvault/internal/common"
	"github.com/dmitrijs2005/growthvault/internal/logging"
	"github.com/dmitrijs2005/growthvault/internal/server/hub"
	"github.com/dmitrijs2005/growthvault/internal/server/models"
	"github.com/dmitrijs2005/growthvault/internal/server/repositories/documents"
)

// DocumentService stores one document per user and pushes every stored
// version to the user's watchers.
type DocumentService struct {
	repo   documents.Repository
	hub    *hub.Hub
	logger logging.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewDocumentService(repo documents.Repository, h *hub.Hub, l logging.Logger) *DocumentService {
	return &DocumentService{
		repo:   repo,
		hub:    h,
		logger: logging.OrNop(l).With("module", "documents"),
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
}

// userLock serializes puts of one user so that watchers observe versions in
// the order they were stored.
func (s *DocumentService) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// Put replaces the user's document with data, which must be a JSON object.
func (s *DocumentService) Put(ctx context.Context, userID string, data []byte) error {
	data = bytes.TrimSpace(data)
	if !json.Valid(data) || len(data) == 0 || data[0] != '{' {
		return fmt.Errorf("%w: document must be a JSON object", common.ErrorValidation)
	}

	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	doc := &models.Document{UserID: userID, Data: data, UpdatedAt: s.now().UTC()}
	if err := s.repo.Put(ctx, doc); err != nil {
		s.logger.Error(ctx, "storing document failed", "user_id", userID, "error", err)
		return common.ErrorInternal
	}
	s.hub.Publish(userID, data)
	s.logger.Debug(ctx, "document stored", "user_id", userID, "bytes", len(data), "watchers", s.hub.Count(userID))
	return nil
}

// Get returns the user's document, or nil when none was ever stored.
func (s *DocumentService) Get(ctx context.Context, userID string) ([]byte, error) {
	doc, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		s.logger.Error(ctx, "loading document failed", "user_id", userID, "error", err)
		return nil, common.ErrorInternal
	}
	return doc.Data, nil
}

// Watch calls send with every document stored for userID until ctx ends or
// send fails.
func (s *DocumentService) Watch(ctx context.Context, userID string, send func([]byte) error) error {
	sub := s.hub.Subscribe(userID)
	defer s.hub.Unsubscribe(sub)

	s.logger.Debug(ctx, "watcher attached", "user_id", userID, "subscription", sub.ID)
	defer s.logger.Debug(ctx, "watcher detached", "user_id", userID, "subscription", sub.ID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := send(data); err != nil {
				return err
			}
		}
	}
}

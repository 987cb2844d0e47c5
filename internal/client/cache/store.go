package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/growthvault/internal/common"
	"github.com/dmitrijs2005/growthvault/internal/logging"
	"github.com/dmitrijs2005/growthvault/internal/models"
	"github.com/dmitrijs2005/growthvault/internal/timex"
)

// Backend names reported in SaveResult and QuotaError.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// SaveOptions control how a document is stamped before it is written.
type SaveOptions struct {
	// PreserveTimestamp writes the document's own timestamp verbatim when it
	// has one. Otherwise the current wall-clock time is used.
	PreserveTimestamp bool
}

// SaveResult describes a successful write.
type SaveResult struct {
	Timestamp string
	SizeBytes int64
	Backend   string
}

// Store is the local cache of the document over a small and an optional
// large backend. It is safe for concurrent use.
type Store struct {
	mu         sync.Mutex
	small      *FileStore
	large      KV
	largeLimit int64
	migrated   bool
	clock      timex.Clock
	logger     logging.Logger
}

type Option func(*Store)

// WithLarge enables the large backend. A nil kv leaves it disabled, which is
// how a failed SQLite initialisation is expressed. limit <= 0 is unbounded.
func WithLarge(kv KV, limit int64) Option {
	return func(s *Store) {
		s.large = kv
		s.largeLimit = limit
	}
}

func WithClock(c timex.Clock) Option {
	return func(s *Store) { s.clock = c }
}

func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore builds a Store over small and the given options.
func NewStore(small *FileStore, opts ...Option) *Store {
	s := &Store{small: small, clock: timex.RealClock{}}
	for _, o := range opts {
		o(s)
	}
	s.logger = logging.OrNop(s.logger).With("module", "cache")
	return s
}

// IsAvailable reports whether any backend can hold the document.
func (s *Store) IsAvailable() bool {
	return s.large != nil || s.small.Available()
}

// Save serializes doc and writes it. The caller's document is not modified;
// the timestamp that was written is returned in SaveResult.
func (s *Store) Save(ctx context.Context, doc *models.Document, opts SaveOptions) (*SaveResult, error) {
	if doc == nil {
		return nil, errors.New("save: nil document")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.IsAvailable() {
		return nil, ErrStorageUnavailable
	}
	s.migrate(ctx)

	out := doc.Clone()
	if !opts.PreserveTimestamp || out.Timestamp == "" {
		out.Timestamp = models.FormatTimestamp(s.clock.Now().UnixMilli())
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("serialize document: %w", err)
	}
	res := &SaveResult{Timestamp: out.Timestamp, SizeBytes: int64(len(data))}

	if s.large != nil {
		err := s.writeLarge(ctx, data)
		if err == nil {
			res.Backend = BackendSQLite
			s.dropStaleSmall(ctx)
			return res, nil
		}
		if !s.small.Available() {
			return nil, err
		}
		s.logger.Warn(ctx, "large backend write failed, falling back to file store", "error", err)
	}

	if err := s.small.Set(ctx, common.DocumentKey, data); err != nil {
		return nil, err
	}
	res.Backend = BackendFile
	return res, nil
}

// Load returns the newest stored document, or (nil, nil) when neither
// backend holds one.
func (s *Store) Load(ctx context.Context) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.IsAvailable() {
		return nil, ErrStorageUnavailable
	}
	s.migrate(ctx)

	var (
		best *models.Document
		errs []error
	)
	for _, b := range s.backends() {
		doc, err := readDocument(ctx, b.kv)
		if err != nil {
			s.logger.Warn(ctx, "cannot read cached document", "backend", b.name, "error", err)
			errs = append(errs, err)
			continue
		}
		if doc == nil {
			continue
		}
		if best == nil || doc.TimestampMillis() > best.TimestampMillis() {
			best = doc
		}
	}

	if best == nil && len(errs) > 0 && len(errs) == len(s.backends()) {
		return nil, errors.Join(errs...)
	}
	return best, nil
}

// Clear removes the document from every backend.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, b := range s.backends() {
		if err := b.kv.Delete(ctx, common.DocumentKey); err != nil {
			errs = append(errs, fmt.Errorf("clear %s: %w", b.name, err))
		}
	}
	return errors.Join(errs...)
}

// SizeBytes is the number of bytes the cache currently occupies across
// backends.
func (s *Store) SizeBytes(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, b := range s.backends() {
		n, err := b.kv.Size(ctx)
		if err != nil {
			return 0, fmt.Errorf("size %s: %w", b.name, err)
		}
		total += n
	}
	return total, nil
}

type namedKV struct {
	name string
	kv   KV
}

func (s *Store) backends() []namedKV {
	var out []namedKV
	if s.large != nil {
		out = append(out, namedKV{BackendSQLite, s.large})
	}
	if s.small.Available() {
		out = append(out, namedKV{BackendFile, s.small})
	}
	return out
}

func (s *Store) writeLarge(ctx context.Context, data []byte) error {
	if err := checkQuota(ctx, s.large, BackendSQLite, common.DocumentKey, data, s.largeLimit); err != nil {
		return err
	}
	return s.large.Set(ctx, common.DocumentKey, data)
}

// migrate moves a document that only exists in the small store to the large
// one. It runs once per Store.
func (s *Store) migrate(ctx context.Context) {
	if s.migrated || s.large == nil || !s.small.Available() {
		return
	}
	s.migrated = true

	existing, err := s.large.Get(ctx, common.DocumentKey)
	if err != nil {
		s.logger.Warn(ctx, "migration skipped: large backend unreadable", "error", err)
		return
	}
	if existing != nil {
		return
	}

	data, err := s.small.Get(ctx, common.DocumentKey)
	if err != nil || data == nil {
		return
	}

	if err := s.writeLarge(ctx, data); err != nil {
		s.logger.Warn(ctx, "migration to large backend failed", "error", err)
		return
	}
	if err := s.small.Delete(ctx, common.DocumentKey); err != nil {
		s.logger.Warn(ctx, "migrated document left in file store", "error", err)
		return
	}
	s.logger.Info(ctx, "migrated document to large backend", "bytes", len(data))
}

// dropStaleSmall removes a fallback copy from the small store once the large
// backend has accepted a newer write.
func (s *Store) dropStaleSmall(ctx context.Context) {
	if !s.small.Available() {
		return
	}
	data, err := s.small.Get(ctx, common.DocumentKey)
	if err != nil || data == nil {
		return
	}
	if err := s.small.Delete(ctx, common.DocumentKey); err != nil {
		s.logger.Debug(ctx, "stale fallback copy not removed", "error", err)
	}
}

func readDocument(ctx context.Context, kv KV) (*models.Document, error) {
	data, err := kv.Get(ctx, common.DocumentKey)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	doc := &models.Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decode cached document: %w", err)
	}
	doc.Normalize()
	return doc, nil
}

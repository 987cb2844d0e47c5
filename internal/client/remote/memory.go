package remote

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dmitrijs2005/growthvault/internal/common"
	"github.com/dmitrijs2005/growthvault/internal/models"
)

// MemoryStore is an in-process Store. Documents are kept as JSON so callers
// never share memory with the store. Change notifications run synchronously
// on the writer's goroutine after the write is committed, which makes
// interleavings reproducible in tests.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[string]string
	identity *Identity
	docs     map[string][]byte
	subs     map[uint64]*memorySub
	nextID   uint64
	err      error
	puts     int
}

type memorySub struct {
	sub      *Subscription
	onChange ChangeFunc
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]string),
		docs:  make(map[string][]byte),
		subs:  make(map[uint64]*memorySub),
	}
}

// SetError makes every subsequent network-like call fail with err until it
// is reset with nil.
func (m *MemoryStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Puts returns the number of successful Put calls.
func (m *MemoryStore) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

// Stored returns a copy of the user's document as the store holds it.
func (m *MemoryStore) Stored(userID string) *models.Document {
	m.mu.Lock()
	data := m.docs[userID]
	m.mu.Unlock()
	if data == nil {
		return nil
	}
	doc, _ := decodeDocument(data)
	return doc
}

// Inject writes doc as if another device had stored it and notifies
// subscribers. It bypasses the identity check and SetError.
func (m *MemoryStore) Inject(userID string, doc *models.Document) {
	data, _ := json.Marshal(doc)
	m.mu.Lock()
	m.docs[userID] = data
	m.mu.Unlock()
	m.notify(userID, data)
}

func (m *MemoryStore) Register(_ context.Context, username, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.users[username]; ok {
		return common.ErrorAlreadyExists
	}
	m.users[username] = password
	return nil
}

func (m *MemoryStore) SignIn(_ context.Context, username, password string) (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if pw, ok := m.users[username]; !ok || pw != password {
		return nil, ErrUnauthorized
	}
	m.identity = &Identity{UserID: "user-" + username, Username: username}
	id := *m.identity
	return &id, nil
}

func (m *MemoryStore) SignOut(_ context.Context) error {
	m.mu.Lock()
	subs := m.subs
	m.subs = make(map[uint64]*memorySub)
	m.identity = nil
	m.mu.Unlock()

	for _, s := range subs {
		s.sub.cancel()
	}
	return nil
}

func (m *MemoryStore) checkUser(userID string) error {
	if m.err != nil {
		return m.err
	}
	if m.identity == nil {
		return ErrNotSignedIn
	}
	if m.identity.UserID != userID {
		return ErrWrongUser
	}
	return nil
}

func (m *MemoryStore) Put(_ context.Context, userID string, doc *models.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if err := m.checkUser(userID); err != nil {
		m.mu.Unlock()
		return err
	}
	m.docs[userID] = data
	m.puts++
	m.mu.Unlock()

	m.notify(userID, data)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, userID string) (*models.Document, error) {
	m.mu.Lock()
	if err := m.checkUser(userID); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	data := m.docs[userID]
	m.mu.Unlock()

	if data == nil {
		return nil, nil
	}
	return decodeDocument(data)
}

func (m *MemoryStore) Subscribe(_ context.Context, userID string, onChange ChangeFunc) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkUser(userID); err != nil {
		return nil, err
	}
	m.nextID++
	done := make(chan struct{})
	var once sync.Once
	sub := &Subscription{id: m.nextID, userID: userID, done: done}
	sub.cancel = func() { once.Do(func() { close(done) }) }
	m.subs[sub.id] = &memorySub{sub: sub, onChange: onChange}
	return sub, nil
}

func (m *MemoryStore) Unsubscribe(sub *Subscription) error {
	if sub == nil {
		return nil
	}
	m.mu.Lock()
	delete(m.subs, sub.id)
	m.mu.Unlock()
	sub.cancel()
	return nil
}

func (m *MemoryStore) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Subscribers returns the number of live subscriptions.
func (m *MemoryStore) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func (m *MemoryStore) notify(userID string, data []byte) {
	m.mu.Lock()
	var targets []*memorySub
	for _, s := range m.subs {
		if s.sub.userID == userID {
			targets = append(targets, s)
		}
	}
	m.mu.Unlock()

	for _, s := range targets {
		select {
		case <-s.sub.done:
			continue
		default:
		}
		doc, err := decodeDocument(data)
		if err != nil {
			continue
		}
		s.onChange(doc)
	}
}

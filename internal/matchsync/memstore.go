package matchsync

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemoryStore keeps documents in process. Writes fan out synchronously to
// subscribers after the store lock is released.
type MemoryStore struct {
	mu     sync.Mutex
	cas    bool
	docs   map[string][]byte
	subs   map[string]map[int]Handler
	nextID int
}

func NewMemoryStore(compareAndSwap bool) *MemoryStore {
	return &MemoryStore{
		cas:  compareAndSwap,
		docs: make(map[string][]byte),
		subs: make(map[string]map[int]Handler),
	}
}

func (s *MemoryStore) Read(_ context.Context, matchID string) (*Document, error) {
	s.mu.Lock()
	raw, ok := s.docs[strings.TrimSpace(matchID)]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return Unmarshal(raw)
}

func (s *MemoryStore) Write(_ context.Context, doc *Document) error {
	raw, err := Marshal(doc)
	if err != nil {
		return err
	}
	id := strings.TrimSpace(doc.MatchID)

	s.mu.Lock()
	if s.cas {
		if cur, ok := s.docs[id]; ok {
			stored, err := Unmarshal(cur)
			if err == nil && !supersedes(stored, doc) {
				s.mu.Unlock()
				return fmt.Errorf("%w: stored move %d, write move %d", ErrStaleWrite, stored.MoveNumber, doc.MoveNumber)
			}
		}
	}
	s.docs[id] = raw
	handlers := s.handlersLocked(id)
	s.mu.Unlock()

	s.deliver(handlers, raw)
	return nil
}

func (s *MemoryStore) Seed(ctx context.Context, doc *Document) (*Document, error) {
	raw, err := Marshal(doc)
	if err != nil {
		return nil, err
	}
	id := strings.TrimSpace(doc.MatchID)

	s.mu.Lock()
	if _, ok := s.docs[id]; !ok {
		s.docs[id] = raw
	}
	s.mu.Unlock()
	return s.Read(ctx, id)
}

func (s *MemoryStore) Subscribe(_ context.Context, matchID string, h Handler) (Subscription, error) {
	id := strings.TrimSpace(matchID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[id] == nil {
		s.subs[id] = make(map[int]Handler)
	}
	s.nextID++
	key := s.nextID
	s.subs[id][key] = h
	return &memorySubscription{store: s, matchID: id, key: key}, nil
}

func (s *MemoryStore) handlersLocked(id string) []Handler {
	out := make([]Handler, 0, len(s.subs[id]))
	for _, h := range s.subs[id] {
		out = append(out, h)
	}
	return out
}

func (s *MemoryStore) deliver(handlers []Handler, raw []byte) {
	for _, h := range handlers {
		doc, err := Unmarshal(raw)
		if err != nil {
			return
		}
		h(doc)
	}
}

type memorySubscription struct {
	store   *MemoryStore
	matchID string
	key     int
	once    sync.Once
}

func (m *memorySubscription) Close() error {
	m.once.Do(func() {
		m.store.mu.Lock()
		delete(m.store.subs[m.matchID], m.key)
		m.store.mu.Unlock()
	})
	return nil
}

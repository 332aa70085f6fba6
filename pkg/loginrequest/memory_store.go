package loginrequest

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// InMemoryStore keeps login requests in process memory. Expired records are
// swept by Save at most once per ttl.
type InMemoryStore struct {
	records   map[string][]byte
	expiry    expiry
	lastSweep time.Time
	mutex     sync.RWMutex
}

// NewInMemoryStore creates an empty in-memory store
func NewInMemoryStore(opts ...StoreOption) *InMemoryStore {
	return &InMemoryStore{
		records: make(map[string][]byte),
		expiry:  newExpiry(opts),
	}
}

func (s *InMemoryStore) Save(ctx context.Context, scope string, req LoginRequest) error {
	data, err := encode(req, s.expiry.now())
	if err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.expiry.sweepDue(&s.lastSweep) {
		s.pruneLocked()
	}
	s.records[Key(scope)] = data
	return nil
}

func (s *InMemoryStore) Load(ctx context.Context, scope string) (*LoginRequest, error) {
	key := Key(scope)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, ok := s.records[key]
	if !ok {
		return nil, nil
	}

	rec, ok := decode(data)
	if !ok {
		slog.Warn("Discarding malformed login request", "key", key)
		delete(s.records, key)
		return nil, nil
	}
	if s.expiry.expired(rec.CreatedAt) {
		delete(s.records, key)
		return nil, nil
	}
	return &rec.LoginRequest, nil
}

func (s *InMemoryStore) Clear(ctx context.Context, scope string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.records, Key(scope))
	return nil
}

// Prune removes expired and malformed records
func (s *InMemoryStore) Prune(ctx context.Context) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.pruneLocked(), nil
}

func (s *InMemoryStore) pruneLocked() int {
	removed := 0
	for key, data := range s.records {
		if rec, ok := decode(data); ok && !s.expiry.expired(rec.CreatedAt) {
			continue
		}
		delete(s.records, key)
		removed++
	}
	return removed
}

// Len returns the number of stored records
func (s *InMemoryStore) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.records)
}

func (s *InMemoryStore) putRaw(scope string, data []byte) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.records[Key(scope)] = data
}

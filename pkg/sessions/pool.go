package sessions

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultIdleTimeout is how long an unused browser session is kept
	DefaultIdleTimeout = 12 * time.Hour

	// DefaultAnonymousTimeout is how long a session without a login is kept
	DefaultAnonymousTimeout = 10 * time.Minute
)

// Pool keeps one Manager per browser session. Each browser is identified by
// an opaque random id, usually carried in a cookie, so one user's session is
// never visible to another client.
type Pool struct {
	newManager       func() *Manager
	idleTimeout      time.Duration
	anonymousTimeout time.Duration
	now              func() time.Time

	mu        sync.Mutex
	entries   map[string]*poolEntry
	lastSweep time.Time
}

type poolEntry struct {
	manager  *Manager
	lastSeen time.Time
}

// PoolOption configures a Pool
type PoolOption func(*Pool)

// WithIdleTimeout drops sessions that were not used for d
func WithIdleTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.idleTimeout = d
		}
	}
}

// WithAnonymousTimeout drops sessions that hold no live login after d
func WithAnonymousTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.anonymousTimeout = d
		}
	}
}

// WithPoolClock sets the time source used for idle tracking
func WithPoolClock(now func() time.Time) PoolOption {
	return func(p *Pool) {
		p.now = now
	}
}

// NewPool creates a pool. newManager builds the Manager of a new browser
// session; managers usually share their registry, resolver and store.
func NewPool(newManager func() *Manager, opts ...PoolOption) *Pool {
	p := &Pool{
		newManager:       newManager,
		idleTimeout:      DefaultIdleTimeout,
		anonymousTimeout: DefaultAnonymousTimeout,
		now:              time.Now,
		entries:          make(map[string]*poolEntry),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Get returns the Manager of an existing session
func (p *Pool) Get(id string) (*Manager, bool) {
	if id == "" {
		return nil, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	entry, ok := p.entries[id]
	if !ok {
		return nil, false
	}
	if p.idle(entry, now) {
		delete(p.entries, id)
		return nil, false
	}
	entry.lastSeen = now
	return entry.manager, true
}

// New creates a Manager that belongs to no session yet. Add registers it.
func (p *Pool) New() *Manager {
	return p.newManager()
}

// Add registers m under a new id and returns the id
func (p *Pool) Add(m *Manager) string {
	id := uuid.NewString()

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	p.sweepLocked(now)
	p.entries[id] = &poolEntry{manager: m, lastSeen: now}
	return id
}

// Rotate moves the session of id to a fresh id and returns it. Unknown ids
// return "".
func (p *Pool) Rotate(id string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[id]
	if !ok {
		return ""
	}
	delete(p.entries, id)

	next := uuid.NewString()
	entry.lastSeen = p.now()
	p.entries[next] = entry
	return next
}

// Remove forgets the session of id
func (p *Pool) Remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, id)
}

// Len returns the number of live sessions
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

func (p *Pool) idle(entry *poolEntry, now time.Time) bool {
	timeout := p.idleTimeout
	if !entry.manager.IsAuthenticated() && p.anonymousTimeout < timeout {
		timeout = p.anonymousTimeout
	}
	return now.Sub(entry.lastSeen) >= timeout
}

// sweepLocked drops idle sessions, at most once per anonymous timeout
func (p *Pool) sweepLocked(now time.Time) {
	if !p.lastSweep.IsZero() && now.Sub(p.lastSweep) < p.anonymousTimeout {
		return
	}
	p.lastSweep = now
	for id, entry := range p.entries {
		if p.idle(entry, now) {
			delete(p.entries, id)
		}
	}
}

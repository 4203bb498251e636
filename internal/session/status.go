package session

import (
	"sync"
	"time"
)

// Status is the trading status of one symbol.
type Status string

const (
	StatusNormal    Status = "NORMAL"
	StatusSuspended Status = "SUSPENDED"
	StatusDelisting Status = "DELISTING"
	StatusUnknown   Status = "UNKNOWN"
)

// FetchFunc resolves a symbol's status from an external data source.
type FetchFunc func(symbol string) (Status, error)

type cachedStatus struct {
	status    Status
	fetchedAt time.Time
}

// StatusManager tracks which symbols are suspended or in delisting
// arrangement, with a TTL cache in front of an optional external source.
// Without a fetch function only manually marked symbols are known.
type StatusManager struct {
	mu sync.Mutex

	ttl   time.Duration
	fetch FetchFunc
	cache map[string]cachedStatus
}

// NewStatusManager creates a manager with the given cache TTL. fetch may be
// nil.
func NewStatusManager(ttl time.Duration, fetch FetchFunc) *StatusManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &StatusManager{
		ttl:   ttl,
		fetch: fetch,
		cache: make(map[string]cachedStatus),
	}
}

// Status returns the symbol's trading status, consulting the fetch function
// when the cached entry is missing or stale. Unknown symbols without a
// fetch source report StatusNormal so the simulator keeps trading them.
func (m *StatusManager) Status(symbol string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.cache[symbol]; ok && time.Since(entry.fetchedAt) < m.ttl {
		return entry.status
	}
	if m.fetch == nil {
		return StatusNormal
	}
	status, err := m.fetch(symbol)
	if err != nil {
		// A stale entry beats an unknown one.
		if entry, ok := m.cache[symbol]; ok {
			return entry.status
		}
		return StatusUnknown
	}
	m.cache[symbol] = cachedStatus{status: status, fetchedAt: time.Now()}
	return status
}

// MarkSuspended pins a symbol as suspended until marked otherwise.
func (m *StatusManager) MarkSuspended(symbol string) {
	m.pin(symbol, StatusSuspended)
}

// MarkDelisting pins a symbol as in delisting arrangement.
func (m *StatusManager) MarkDelisting(symbol string) {
	m.pin(symbol, StatusDelisting)
}

// MarkNormal clears a manual mark and restores normal trading.
func (m *StatusManager) MarkNormal(symbol string) {
	m.pin(symbol, StatusNormal)
}

// IsSuspended reports whether the symbol is currently suspended.
func (m *StatusManager) IsSuspended(symbol string) bool {
	return m.Status(symbol) == StatusSuspended
}

// IsTradable reports whether orders may be placed for the symbol: neither
// suspended nor in delisting arrangement.
func (m *StatusManager) IsTradable(symbol string) bool {
	status := m.Status(symbol)
	return status == StatusNormal || status == StatusUnknown
}

// Invalidate drops a symbol's cached status so the next query refetches.
func (m *StatusManager) Invalidate(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, symbol)
}

func (m *StatusManager) pin(symbol string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Manual marks get a far-future fetch time so the TTL never evicts them.
	m.cache[symbol] = cachedStatus{status: status, fetchedAt: time.Now().Add(100 * 365 * 24 * time.Hour)}
}

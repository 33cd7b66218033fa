package cache

import (
	"container/list"
	"sync"
	"time"

	"dirport/internal/domain"
)

const (
	expiredPasswordPrefix = "pwd:"
	identityPrefix        = "idc:"

	// Entry costs model UTF-16 string storage with an allocation header and
	// 8-byte alignment, so the budget tracks real retained size rather than
	// character counts.
	allocationHeader = 24
)

// entry is a cached continuation with its expiry and accounted cost.
type entry struct {
	key       string
	value     any
	cost      int64
	expiresAt time.Time
	elem      *list.Element
}

// ContinuationCache is the bounded, short-lived store carrying state across
// the redirect hop to the provider: protected credentials for
// expired-password flows and identity continuations for the factor-first
// ordering. Take operations remove on read. Implements
// domain.ContinuationStore.
type ContinuationCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	lru     *list.List // front = most recently used
	budget  int64
	used    int64

	passwordTTL time.Duration
	identityTTL time.Duration

	now func() time.Time
}

// Option tweaks cache construction.
type Option func(*ContinuationCache)

// WithClock injects a clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *ContinuationCache) { c.now = now }
}

// NewContinuationCache creates a cache bounded by budget bytes, with
// independent lifetimes for expired-password sessions and identity
// continuations.
func NewContinuationCache(budget int64, passwordTTL, identityTTL time.Duration, opts ...Option) *ContinuationCache {
	c := &ContinuationCache{
		entries:     make(map[string]*entry),
		lru:         list.New(),
		budget:      budget,
		passwordTTL: passwordTTL,
		identityTTL: identityTTL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ domain.ContinuationStore = (*ContinuationCache)(nil)

// SetExpiredPassword stores an expired-password session under a per-identity
// key.
func (c *ContinuationCache) SetExpiredPassword(key string, s domain.ExpiredPasswordSession) {
	cost := stringCost(key) + stringCost(s.Login) + align(int64(len(s.ProtectedPassword))+allocationHeader)
	c.set(expiredPasswordPrefix+key, s, cost, c.passwordTTL)
}

// TakeExpiredPassword consumes an expired-password session. The second
// return is false on miss or expiry, never an error.
func (c *ContinuationCache) TakeExpiredPassword(key string) (domain.ExpiredPasswordSession, bool) {
	value, ok := c.take(expiredPasswordPrefix + key)
	if !ok {
		return domain.ExpiredPasswordSession{}, false
	}
	return value.(domain.ExpiredPasswordSession), true
}

// SetIdentity stores a partially-authenticated identity continuation keyed
// by the opaque request id.
func (c *ContinuationCache) SetIdentity(requestID string, cont domain.IdentityContinuation) {
	cost := stringCost(requestID) + stringCost(cont.UserName) + stringCost(cont.AccessToken)
	c.set(identityPrefix+requestID, cont, cost, c.identityTTL)
}

// TakeIdentity consumes an identity continuation exactly once.
func (c *ContinuationCache) TakeIdentity(requestID string) (domain.IdentityContinuation, bool) {
	value, ok := c.take(identityPrefix + requestID)
	if !ok {
		return domain.IdentityContinuation{}, false
	}
	return value.(domain.IdentityContinuation), true
}

// Remove drops a key of either kind.
func (c *ContinuationCache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(expiredPasswordPrefix + key)
	c.remove(identityPrefix + key)
}

// Used reports the accounted byte usage.
func (c *ContinuationCache) Used() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

func (c *ContinuationCache) set(key string, value any, cost int64, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.remove(key)

	e := &entry{key: key, value: value, cost: cost, expiresAt: c.now().Add(ttl)}
	e.elem = c.lru.PushFront(e)
	c.entries[key] = e
	c.used += cost

	c.evictOverBudget()
}

func (c *ContinuationCache) take(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.entries[key]
	if !found {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.remove(key)
		return nil, false
	}
	value := e.value
	c.remove(key)
	return value, true
}

// remove drops an entry; callers hold the lock.
func (c *ContinuationCache) remove(key string) {
	e, found := c.entries[key]
	if !found {
		return
	}
	delete(c.entries, key)
	c.lru.Remove(e.elem)
	c.used -= e.cost
}

// evictOverBudget drops least-recently-used entries until the budget holds.
// Callers hold the lock.
func (c *ContinuationCache) evictOverBudget() {
	for c.used > c.budget {
		back := c.lru.Back()
		if back == nil {
			return
		}
		c.remove(back.Value.(*entry).key)
	}
}

// stringCost is the accounted size of a string: UTF-16 code units at two
// bytes each, plus the allocation header, aligned.
func stringCost(s string) int64 {
	var units int64
	for _, r := range s {
		if r > 0xFFFF {
			units += 2
		} else {
			units++
		}
	}
	return align(units*2 + allocationHeader)
}

func align(n int64) int64 { return (n + 7) &^ 7 }

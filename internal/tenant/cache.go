package tenant

import (
	"context"
	"sync"
	"time"

	"tradesdesk_backend/platform/apperr"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL bounds how stale a cached tenant may be.
const DefaultCacheTTL = 5 * time.Minute

// Loader is the store the cache reads through.
type Loader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	GetByPhoneNumberID(ctx context.Context, phoneNumberID string) (*Tenant, error)
}

type cacheEntry struct {
	tenant    Tenant
	expiresAt time.Time
}

// Cache is the tenant resolver cache: a TTL map keyed by tenant id with a
// secondary index from channel phone-number id to tenant id. Index hits are
// always revalidated through the id path so an expired or invalidated entry
// is never served. Safe for concurrent use.
type Cache struct {
	loader Loader
	ttl    time.Duration
	now    func() time.Time

	mu        sync.RWMutex
	byID      map[uuid.UUID]cacheEntry
	byChannel map[string]uuid.UUID

	group singleflight.Group
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a cache over loader. A non-positive ttl uses DefaultCacheTTL.
func NewCache(loader Loader, ttl time.Duration, opts ...CacheOption) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	c := &Cache{
		loader:    loader,
		ttl:       ttl,
		now:       time.Now,
		byID:      make(map[uuid.UUID]cacheEntry),
		byChannel: make(map[string]uuid.UUID),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ByID returns the tenant with the given id, loading it when the cached
// entry is missing or expired. The returned value is a copy.
func (c *Cache) ByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	if t, ok := c.fresh(id); ok {
		return t, nil
	}

	v, err, _ := c.group.Do("id:"+id.String(), func() (any, error) {
		t, err := c.loader.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		c.store(t)
		return *t, nil
	})
	if err != nil {
		return nil, err
	}
	t := v.(Tenant)
	return &t, nil
}

// ByChannelID resolves the tenant owning a WhatsApp phone-number id.
func (c *Cache) ByChannelID(ctx context.Context, phoneNumberID string) (*Tenant, error) {
	if phoneNumberID == "" {
		return nil, apperr.NotFound(errTenantNotFound)
	}

	c.mu.RLock()
	id, indexed := c.byChannel[phoneNumberID]
	c.mu.RUnlock()

	if indexed {
		t, err := c.ByID(ctx, id)
		if err == nil && t.WhatsAppPhoneNumberID == phoneNumberID {
			return t, nil
		}
		if err != nil && !apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
		c.dropIndex(phoneNumberID, id)
	}

	v, err, _ := c.group.Do("channel:"+phoneNumberID, func() (any, error) {
		t, err := c.loader.GetByPhoneNumberID(ctx, phoneNumberID)
		if err != nil {
			return nil, err
		}
		c.store(t)
		return *t, nil
	})
	if err != nil {
		return nil, err
	}
	t := v.(Tenant)
	return &t, nil
}

// Invalidate removes the tenant and every index pointer to it.
func (c *Cache) Invalidate(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.byID[id]; ok {
		if c.byChannel[entry.tenant.WhatsAppPhoneNumberID] == id {
			delete(c.byChannel, entry.tenant.WhatsAppPhoneNumberID)
		}
		delete(c.byID, id)
	}
	for channel, owner := range c.byChannel {
		if owner == id {
			delete(c.byChannel, channel)
		}
	}
}

// Len returns the number of cached tenants, fresh or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

func (c *Cache) fresh(id uuid.UUID) (*Tenant, bool) {
	c.mu.RLock()
	entry, ok := c.byID[id]
	c.mu.RUnlock()
	if !ok || !c.now().Before(entry.expiresAt) {
		return nil, false
	}
	t := entry.tenant
	return &t, true
}

func (c *Cache) store(t *Tenant) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if previous, ok := c.byID[t.ID]; ok && previous.tenant.WhatsAppPhoneNumberID != t.WhatsAppPhoneNumberID {
		if c.byChannel[previous.tenant.WhatsAppPhoneNumberID] == t.ID {
			delete(c.byChannel, previous.tenant.WhatsAppPhoneNumberID)
		}
	}
	c.byID[t.ID] = cacheEntry{tenant: *t, expiresAt: c.now().Add(c.ttl)}
	if t.WhatsAppPhoneNumberID != "" {
		c.byChannel[t.WhatsAppPhoneNumberID] = t.ID
	}
}

func (c *Cache) dropIndex(phoneNumberID string, id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.byChannel[phoneNumberID] == id {
		delete(c.byChannel, phoneNumberID)
	}
}

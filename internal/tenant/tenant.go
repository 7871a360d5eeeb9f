// Package tenant holds the active organisation and its enabled tool list.
package tenant

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/appmaster-cloud/gateway/internal/logging"
	"github.com/appmaster-cloud/gateway/internal/metrics"
)

// Organisation is the active tenant record.
type Organisation struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Plan        string   `json:"plan,omitempty"`
	ActiveTools []string `json:"active_tools"`
	// Role is the session user's role within this organisation.
	Role string `json:"role,omitempty"`
}

// HasTool reports whether the organisation enabled the given tool.
func (o *Organisation) HasTool(key string) bool {
	if o == nil {
		return false
	}
	for _, tool := range o.ActiveTools {
		if tool == key {
			return true
		}
	}
	return false
}

// Source fetches organisation records from the backing store.
type Source interface {
	FetchOrganisation(ctx context.Context, id string) (*Organisation, error)
}

// Cache persists organisation snapshots across instances. Implementations
// must tolerate misses; the cache is an optimization, not a source of truth.
type Cache interface {
	Get(ctx context.Context, id string) (*Organisation, bool)
	Set(ctx context.Context, org *Organisation, ttl time.Duration)
	Delete(ctx context.Context, id string)
}

// Context caches the active organisation. Concurrent Refresh calls coalesce
// into one outstanding fetch. No organisation is a valid terminal state for
// individual accounts.
type Context struct {
	source Source
	cache  Cache
	logger *logging.Logger
	ttl    time.Duration

	group singleflight.Group

	mu        sync.RWMutex
	current   *Organisation
	currentID string
	loadedAt  time.Time
}

// NewContext creates a tenant context. cache may be nil.
func NewContext(source Source, cache Cache, ttl time.Duration, logger *logging.Logger) *Context {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Context{source: source, cache: cache, ttl: ttl, logger: logger}
}

// Current returns the cached organisation, nil when none is active.
func (c *Context) Current() *Organisation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return nil
	}
	snapshot := *c.current
	snapshot.ActiveTools = append([]string(nil), c.current.ActiveTools...)
	return &snapshot
}

// Load returns the organisation, fetching it if the cached copy is missing,
// expired, or belongs to a different organisation.
func (c *Context) Load(ctx context.Context, id string) (*Organisation, error) {
	if id == "" {
		return nil, fmt.Errorf("organisation id is required")
	}

	c.mu.RLock()
	fresh := c.current != nil && c.currentID == id && time.Since(c.loadedAt) < c.ttl
	c.mu.RUnlock()
	if fresh {
		metrics.RecordTenantFetch("memory")
		return c.Current(), nil
	}

	if c.cache != nil {
		if org, ok := c.cache.Get(ctx, id); ok {
			c.store(org)
			metrics.RecordTenantFetch("cache")
			// Callers mutate their copy (per-request Role); never hand
			// out the stored pointer.
			snapshot := *org
			snapshot.ActiveTools = append([]string(nil), org.ActiveTools...)
			return &snapshot, nil
		}
	}

	return c.fetch(ctx, id)
}

// Refresh re-fetches the active organisation. A refresh issued while one is
// already in flight joins the outstanding fetch instead of duplicating it.
func (c *Context) Refresh(ctx context.Context) (*Organisation, error) {
	c.mu.RLock()
	id := c.currentID
	c.mu.RUnlock()
	if id == "" {
		return nil, fmt.Errorf("no active organisation")
	}
	return c.fetch(ctx, id)
}

// Prime loads the organisation in the background. Used by the auth resolver
// when a committed session belongs to an organisation.
func (c *Context) Prime(ctx context.Context, organisationID string) {
	go func() {
		// Detach from the request context; priming outlives it.
		loadCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if _, err := c.Load(loadCtx, organisationID); err != nil {
			c.logger.WithError(err).WithField("organisation_id", organisationID).
				Warn("tenant prime failed")
		}
	}()
	_ = ctx
}

// Invalidate drops the cached organisation, e.g. on sign-out or organisation
// switch.
func (c *Context) Invalidate() {
	c.mu.Lock()
	id := c.currentID
	c.current = nil
	c.currentID = ""
	c.loadedAt = time.Time{}
	c.mu.Unlock()

	if c.cache != nil && id != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		c.cache.Delete(ctx, id)
	}
}

func (c *Context) fetch(ctx context.Context, id string) (*Organisation, error) {
	v, err, shared := c.group.Do(id, func() (interface{}, error) {
		org, err := c.source.FetchOrganisation(ctx, id)
		if err != nil {
			return nil, err
		}
		c.store(org)
		if c.cache != nil {
			c.cache.Set(ctx, org, c.ttl)
		}
		metrics.RecordTenantFetch("remote")
		return org, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		metrics.RecordTenantFetch("coalesced")
	}

	org := v.(*Organisation)
	snapshot := *org
	snapshot.ActiveTools = append([]string(nil), org.ActiveTools...)
	return &snapshot, nil
}

func (c *Context) store(org *Organisation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = org
	c.currentID = org.ID
	c.loadedAt = time.Now()
}

// MarshalSnapshot serializes an organisation for external caches.
func MarshalSnapshot(org *Organisation) ([]byte, error) {
	return json.Marshal(org)
}

// UnmarshalSnapshot deserializes an organisation stored by MarshalSnapshot.
func UnmarshalSnapshot(data []byte) (*Organisation, error) {
	var org Organisation
	if err := json.Unmarshal(data, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

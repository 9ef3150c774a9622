// Package platform fetches per-variant performance from ad platforms.
package platform

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/adpilot/adpilot/internal/core"
)

// Platform keys shared with the executor's limiter budgets.
const (
	Meta      = "meta"
	GoogleAds = "google_ads"
	TikTok    = "tiktok"
)

// Fetcher returns one MetricVariant per ad set (or ad group) of a campaign.
// A Fetch performs its requests directly; callers route it through the executor.
type Fetcher interface {
	Platform() string
	Fetch(ctx context.Context, campaignID string) ([]core.MetricVariant, error)
}

// ErrUnknownPlatform is returned for keys with no registered fetcher.
var ErrUnknownPlatform = errors.New("unknown platform")

// Registry maps platform keys to fetchers.
type Registry struct {
	mu       sync.RWMutex
	fetchers map[string]Fetcher
}

// NewRegistry registers the given fetchers under their platform keys.
func NewRegistry(fetchers ...Fetcher) *Registry {
	r := &Registry{fetchers: make(map[string]Fetcher)}
	for _, f := range fetchers {
		r.Register(f)
	}
	return r
}

// Register adds or replaces a fetcher.
func (r *Registry) Register(f Fetcher) {
	if r == nil || f == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fetchers == nil {
		r.fetchers = make(map[string]Fetcher)
	}
	r.fetchers[core.NormalizeKey(f.Platform())] = f
}

// Get returns the fetcher for key.
func (r *Registry) Get(key string) (Fetcher, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, key)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fetchers[core.NormalizeKey(key)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, key)
	}
	return f, nil
}

// Platforms lists registered keys in sorted order.
func (r *Registry) Platforms() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.fetchers))
	for key := range r.fetchers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

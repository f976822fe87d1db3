package repository

import (
	"context"
	"sync"
	"time"

	"marketplace/internal/models"
)

// sweepInterval bounds how often expired entries are purged.
const sweepInterval = time.Minute

type cachedListing struct {
	listing   models.Listing
	expiresAt time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

// MemoryStore is the in-process stand-in for RedisStore.
type MemoryStore struct {
	mu         sync.Mutex
	listings   map[int64]cachedListing
	versions   map[int64]int64
	rateLimits map[string]*rateLimitEntry
	ttl        time.Duration
	lastSweep  time.Time
	now        func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		listings:   make(map[int64]cachedListing),
		versions:   make(map[int64]int64),
		rateLimits: make(map[string]*rateLimitEntry),
		ttl:        ttl,
		now:        time.Now,
	}
}

func (r *MemoryStore) GetListing(ctx context.Context, id int64) (*models.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.listings[id]
	if !ok {
		return nil, nil
	}
	if r.ttl > 0 && r.now().After(entry.expiresAt) {
		delete(r.listings, id)
		return nil, nil
	}
	listing := entry.listing
	listing.Availability = append([]string(nil), entry.listing.Availability...)
	return &listing, nil
}

func (r *MemoryStore) ListingVersion(ctx context.Context, id int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.versions[id], nil
}

func (r *MemoryStore) SetListing(ctx context.Context, listing *models.Listing, version int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.versions[listing.ID] != version {
		return nil
	}
	stored := *listing
	stored.Availability = append([]string(nil), listing.Availability...)
	r.listings[listing.ID] = cachedListing{listing: stored, expiresAt: r.now().Add(r.ttl)}
	r.sweepLocked()
	return nil
}

func (r *MemoryStore) DeleteListing(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.listings, id)
	r.versions[id]++
	return nil
}

func (r *MemoryStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweepLocked()

	now := r.now()
	entry, ok := r.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{expiresAt: now.Add(window)}
		r.rateLimits[key] = entry
	}
	entry.count++

	return entry.count <= limit, nil
}

// sweepLocked drops expired listings and rate-limit windows, at most once
// per sweepInterval. Callers hold r.mu.
func (r *MemoryStore) sweepLocked() {
	now := r.now()
	if now.Sub(r.lastSweep) < sweepInterval {
		return
	}
	r.lastSweep = now

	for key, entry := range r.rateLimits {
		if now.After(entry.expiresAt) {
			delete(r.rateLimits, key)
		}
	}
	if r.ttl > 0 {
		for id, entry := range r.listings {
			if now.After(entry.expiresAt) {
				delete(r.listings, id)
			}
		}
	}
}

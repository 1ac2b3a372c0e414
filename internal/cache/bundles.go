// Package cache keeps feature bundles close at hand: an in-memory TTL
// cache keyed by track id, and a persistent store keyed by file digest
// that lets the service skip re-extracting files it has already seen.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/himanishpuri/SonicMatch/pkg/models"
)

// DefaultTTL is how long a bundle stays in memory after it was last set.
const DefaultTTL = time.Hour

// Bundles is an expiring in-memory map of track id to feature bundle.
// Stored and returned bundles are copies.
type Bundles struct {
	c *gocache.Cache
}

// NewBundles returns a cache whose entries expire after ttl. A
// non-positive ttl uses DefaultTTL.
func NewBundles(ttl time.Duration) *Bundles {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Bundles{c: gocache.New(ttl, ttl*2)}
}

// Get returns the cached bundle for id.
func (b *Bundles) Get(id string) (*models.FeatureBundle, bool) {
	v, ok := b.c.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*models.FeatureBundle).Clone(), true
}

// Set stores a copy of bundle under id.
func (b *Bundles) Set(id string, bundle *models.FeatureBundle) {
	if bundle == nil {
		return
	}
	b.c.Set(id, bundle.Clone(), gocache.DefaultExpiration)
}

// Delete drops id.
func (b *Bundles) Delete(id string) {
	b.c.Delete(id)
}

// Clear drops every entry.
func (b *Bundles) Clear() {
	b.c.Flush()
}

// Len returns the number of entries, including expired ones not yet
// evicted.
func (b *Bundles) Len() int {
	return b.c.ItemCount()
}

package cache

import (
	"strings"
	"sync"

	"github.com/emberwatch/firecommand/pkg/core"
)

// LandmarkCache holds the landmark inventory fetched for the current origin.
// Provider ids are only trusted within one fetch, so the whole set is
// swapped on every Replace and dropped on Reset.
type LandmarkCache struct {
	mu        sync.RWMutex
	origin    core.Origin
	landmarks []core.Landmark
	byID      map[string]int
	loaded    bool
}

// NewLandmarkCache creates an empty LandmarkCache
func NewLandmarkCache() *LandmarkCache {
	return &LandmarkCache{
		byID: make(map[string]int),
	}
}

// Replace installs a new inventory for origin. Later duplicates of an id are
// dropped so that each id maps to exactly one landmark.
func (c *LandmarkCache) Replace(origin core.Origin, landmarks []core.Landmark) {
	list := make([]core.Landmark, 0, len(landmarks))
	byID := make(map[string]int, len(landmarks))
	for _, l := range landmarks {
		if _, dup := byID[l.ID]; dup {
			continue
		}
		byID[l.ID] = len(list)
		list = append(list, l)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.origin = origin
	c.landmarks = list
	c.byID = byID
	c.loaded = true
}

// Get retrieves a landmark by provider id
func (c *LandmarkCache) Get(id string) (core.Landmark, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return core.Landmark{}, false
	}
	return c.landmarks[i], true
}

// All returns the current inventory in provider order. The returned slice is
// shared and must not be modified.
func (c *LandmarkCache) All() []core.Landmark {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.landmarks
}

// Len returns the number of cached landmarks
func (c *LandmarkCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.landmarks)
}

// Loaded reports whether an inventory has been installed since the last Reset.
func (c *LandmarkCache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Origin returns the origin the current inventory was fetched for.
func (c *LandmarkCache) Origin() core.Origin {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.origin
}

// FindByName returns landmarks whose name contains any of the given names,
// case-insensitively, in provider order.
func (c *LandmarkCache) FindByName(names ...string) []core.Landmark {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []core.Landmark
	for _, l := range c.landmarks {
		lower := strings.ToLower(l.Name)
		for _, n := range names {
			n = strings.ToLower(strings.TrimSpace(n))
			if n != "" && strings.Contains(lower, n) {
				out = append(out, l)
				break
			}
		}
	}
	return out
}

// Reset clears all landmarks from the cache
func (c *LandmarkCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.origin = core.Origin{}
	c.landmarks = nil
	c.byID = make(map[string]int)
	c.loaded = false
}

package cache

import (
	"sync"
	"testing"

	"github.com/emberwatch/firecommand/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testOrigin = core.Origin{Lat: 38.5, Lon: -121.5}

func testLandmarks() []core.Landmark {
	return []core.Landmark{
		{ID: "n1", Name: "Mercy General Hospital", Type: core.AssetMedical, Lat: 38.51, Lon: -121.49},
		{ID: "n2", Name: "Station 14", Type: core.AssetResponse, Lat: 38.49, Lon: -121.52},
		{ID: "n3", Name: "Woodrow Wilson Elementary", Type: core.AssetSchool, Lat: 38.52, Lon: -121.47},
	}
}

func TestLandmarkCache_New(t *testing.T) {
	c := NewLandmarkCache()

	require.NotNil(t, c)
	assert.False(t, c.Loaded())
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.All())
}

func TestLandmarkCache_ReplaceAndGet(t *testing.T) {
	c := NewLandmarkCache()
	c.Replace(testOrigin, testLandmarks())

	l, ok := c.Get("n2")
	require.True(t, ok, "expected to find n2")
	assert.Equal(t, "Station 14", l.Name)
	assert.True(t, c.Loaded())
	assert.Equal(t, testOrigin, c.Origin())
	assert.Equal(t, 3, c.Len())
}

func TestLandmarkCache_Get_NotFound(t *testing.T) {
	c := NewLandmarkCache()
	c.Replace(testOrigin, testLandmarks())

	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestLandmarkCache_ReplaceIsWholesale(t *testing.T) {
	c := NewLandmarkCache()
	c.Replace(testOrigin, testLandmarks())

	next := core.Origin{Lat: 40, Lon: -122}
	c.Replace(next, []core.Landmark{{ID: "n9", Name: "Substation 9", Type: core.AssetPower}})

	_, ok := c.Get("n1")
	assert.False(t, ok, "old ids must not survive a replace")
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, next, c.Origin())
}

func TestLandmarkCache_DuplicateIDsKeepFirst(t *testing.T) {
	c := NewLandmarkCache()
	c.Replace(testOrigin, []core.Landmark{
		{ID: "a", Name: "first"},
		{ID: "a", Name: "second"},
	})

	l, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "first", l.Name)
	assert.Equal(t, 1, c.Len())
}

func TestLandmarkCache_PreservesOrder(t *testing.T) {
	c := NewLandmarkCache()
	c.Replace(testOrigin, testLandmarks())

	ids := []string{}
	for _, l := range c.All() {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []string{"n1", "n2", "n3"}, ids)
}

func TestLandmarkCache_FindByName(t *testing.T) {
	c := NewLandmarkCache()
	c.Replace(testOrigin, testLandmarks())

	found := c.FindByName("woodrow wilson", "MERCY")
	require.Len(t, found, 2)
	assert.Equal(t, "n1", found[0].ID)
	assert.Equal(t, "n3", found[1].ID)

	assert.Empty(t, c.FindByName(""))
	assert.Empty(t, c.FindByName("Star Hospital"))
}

func TestLandmarkCache_Reset(t *testing.T) {
	c := NewLandmarkCache()
	c.Replace(testOrigin, testLandmarks())

	c.Reset()

	assert.False(t, c.Loaded())
	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("n1")
	assert.False(t, ok)
}

func TestLandmarkCache_ConcurrentAccess(t *testing.T) {
	c := NewLandmarkCache()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Replace(testOrigin, testLandmarks())
		}()
		go func() {
			defer wg.Done()
			_ = c.All()
			_, _ = c.Get("n1")
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, c.Len())
}

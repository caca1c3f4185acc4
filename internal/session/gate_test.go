package session

import (
	"testing"

	"github.com/emberwatch/firecommand/pkg/core"
	"github.com/stretchr/testify/assert"
)

func TestGate_Lifecycle(t *testing.T) {
	g := NewGate(core.DefaultOrigin)
	assert.Equal(t, GateLoading, g.State())
	assert.False(t, g.Ready())

	assert.True(t, g.Loaded(1))
	assert.Equal(t, GateSettling, g.State())
	assert.False(t, g.Ready(), "settling is not ready")

	assert.True(t, g.Settled(1))
	assert.True(t, g.Ready())
}

func TestGate_StaleEpochIgnored(t *testing.T) {
	g := NewGate(core.DefaultOrigin)
	next := core.Origin{Lat: 40, Lon: -122}
	epoch := g.Reset(next)

	assert.Equal(t, uint64(2), epoch)
	assert.False(t, g.Loaded(1), "completion of the old origin must be ignored")
	assert.Equal(t, GateLoading, g.State())

	assert.True(t, g.Loaded(epoch))
	assert.False(t, g.Settled(1))
	assert.Equal(t, GateSettling, g.State())
	assert.Equal(t, next, g.Origin())
}

func TestGate_ResetFromReady(t *testing.T) {
	g := NewGate(core.DefaultOrigin)
	g.Loaded(1)
	g.Settled(1)

	g.Reset(core.Origin{Lat: 1, Lon: 2})
	assert.Equal(t, GateLoading, g.State())
	assert.False(t, g.Ready())
}

func TestGate_SettledRequiresLoaded(t *testing.T) {
	g := NewGate(core.DefaultOrigin)
	assert.False(t, g.Settled(1))
	assert.Equal(t, GateLoading, g.State())
}

func TestGate_Failed(t *testing.T) {
	g := NewGate(core.DefaultOrigin)
	assert.True(t, g.Failed(1))
	assert.Equal(t, GateLoading, g.State())
	assert.False(t, g.Failed(7))

	g.Loaded(1)
	assert.False(t, g.Failed(1), "a loaded gate ignores late failures")
}

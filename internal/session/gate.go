package session

import "github.com/emberwatch/firecommand/pkg/core"

// GateState is the readiness of the spatial context for the current origin.
type GateState string

const (
	GateLoading  GateState = "LOADING"
	GateSettling GateState = "SETTLING"
	GateReady    GateState = "READY"
)

// Gate tracks LOADING -> SETTLING -> READY for one origin at a time. Every
// reset starts a new epoch; events carrying an older epoch are ignored.
type Gate struct {
	state  GateState
	epoch  uint64
	origin core.Origin
}

// NewGate returns a gate loading the given origin at epoch 1.
func NewGate(origin core.Origin) *Gate {
	return &Gate{state: GateLoading, epoch: 1, origin: origin}
}

// Reset moves to LOADING for a new origin and returns the new epoch.
func (g *Gate) Reset(origin core.Origin) uint64 {
	g.epoch++
	g.state = GateLoading
	g.origin = origin
	return g.epoch
}

// Loaded records a successful GIS fetch. It reports whether the gate entered
// SETTLING; stale epochs and repeated completions are ignored.
func (g *Gate) Loaded(epoch uint64) bool {
	if epoch != g.epoch || g.state != GateLoading {
		return false
	}
	g.state = GateSettling
	return true
}

// Settled ends the settle delay. It reports whether the gate became READY.
func (g *Gate) Settled(epoch uint64) bool {
	if epoch != g.epoch || g.state != GateSettling {
		return false
	}
	g.state = GateReady
	return true
}

// Failed records a failed GIS fetch; the gate stays LOADING. It reports
// whether the failure belongs to the current epoch.
func (g *Gate) Failed(epoch uint64) bool {
	return epoch == g.epoch && g.state == GateLoading
}

// Ready reports whether dependent state may be consumed.
func (g *Gate) Ready() bool { return g.state == GateReady }

// State returns the current state.
func (g *Gate) State() GateState { return g.state }

// Epoch returns the current epoch.
func (g *Gate) Epoch() uint64 { return g.epoch }

// Origin returns the origin being loaded or loaded.
func (g *Gate) Origin() core.Origin { return g.origin }

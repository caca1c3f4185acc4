package session

import (
	"github.com/emberwatch/firecommand/internal/config"
	"github.com/emberwatch/firecommand/internal/queue"
	"github.com/emberwatch/firecommand/pkg/core"
)

// Decision is what Dispatch did with a request.
type Decision string

const (
	// DecisionExecute means the request goes to the engine now.
	DecisionExecute Decision = "execute"
	// DecisionDeferred means the gate was not ready or the caller forced a
	// defer; the request waits in the queue slot for NotifyReady.
	DecisionDeferred Decision = "deferred"
	// DecisionParked means the gate was ready but an engine call is in
	// flight; the request waits in the queue slot for that call to finish.
	DecisionParked Decision = "parked"
)

// Controller owns the current parameters and decides when a request may run.
// It performs no I/O; the session executes what it returns.
type Controller struct {
	params    core.SimulationParameters
	seq       uint64
	slot      *queue.Slot[core.SimulationRequest]
	serialize bool
	policy    string

	inFlight  map[uint64]core.SimulationRequest
	abandoned map[uint64]bool
	installed uint64

	state   core.RequestState
	latest  *core.SimulationRequest
	lastErr error
}

// NewController creates a controller starting from params.
func NewController(params core.SimulationParameters, serialize bool, policy string) *Controller {
	if policy != config.PolicyLastCompleted {
		policy = config.PolicyHighestSequence
	}
	return &Controller{
		params:    params,
		slot:      queue.NewSlot[core.SimulationRequest](),
		serialize: serialize,
		policy:    policy,
		inFlight:  make(map[uint64]core.SimulationRequest),
		abandoned: make(map[uint64]bool),
		state:     core.RequestIdle,
	}
}

// Dispatch merges override into the current parameters, snapshots a request
// and decides whether it runs now. The override origin, field by field, wins
// over ambient.
func (c *Controller) Dispatch(ambient core.Origin, ready bool, override *core.ParameterOverride, forceDefer bool) (core.SimulationRequest, Decision) {
	origin := ambient
	if override != nil {
		c.params = override.Apply(c.params)
		if override.OriginLat != nil {
			origin.Lat = *override.OriginLat
		}
		if override.OriginLon != nil {
			origin.Lon = *override.OriginLon
		}
	}

	c.seq++
	req := core.NewSimulationRequest(c.seq, c.params, origin)
	c.latest = &req

	if !ready || forceDefer {
		c.slot.Put(req)
		c.state = core.RequestQueued
		return req, DecisionDeferred
	}
	if c.serialize && c.active() > 0 {
		c.slot.Put(req)
		c.state = core.RequestQueued
		return req, DecisionParked
	}
	c.start(req)
	return req, DecisionExecute
}

// NotifyReady hands the queued request to the engine in one step. With an
// empty queue, or while a serialized call is outstanding, it returns false.
// Abandoned calls do not hold the queue back.
func (c *Controller) NotifyReady() (core.SimulationRequest, bool) {
	if c.serialize && c.active() > 0 {
		return core.SimulationRequest{}, false
	}
	req, ok := c.slot.Take()
	if !ok {
		return core.SimulationRequest{}, false
	}
	c.start(req)
	return req, true
}

// active counts outstanding calls whose reply can still be installed.
func (c *Controller) active() int {
	return len(c.inFlight) - len(c.abandoned)
}

func (c *Controller) start(req core.SimulationRequest) {
	c.inFlight[req.Sequence] = req
	c.state = core.RequestExecuting
	c.lastErr = nil
}

// Complete records a successful engine reply. install reports whether the
// history should replace the current one under the response policy. When
// ready, a parked request is returned as next and is already marked
// executing.
func (c *Controller) Complete(seq uint64, ready bool) (install bool, next *core.SimulationRequest) {
	abandoned := c.release(seq)

	switch {
	case abandoned:
	case c.policy == config.PolicyLastCompleted:
		install = true
	default:
		install = seq > c.installed
	}
	if install {
		c.installed = seq
	}
	if !abandoned && c.settled() {
		c.state = core.RequestComplete
	}
	return install, c.fireParked(ready)
}

// Fail records an engine failure. Prior history is untouched; there is no
// retry. A failure is stale when its call was abandoned or, under
// highest-sequence, when a newer run is already installed. A stale failure
// never records an error or moves the lifecycle to FAILED. A parked request may
// still fire either way.
func (c *Controller) Fail(seq uint64, err error, ready bool) (stale bool, next *core.SimulationRequest) {
	abandoned := c.release(seq)
	superseded := c.policy == config.PolicyHighestSequence && seq < c.installed
	switch {
	case abandoned:
	case superseded:
		if c.settled() {
			c.state = core.RequestComplete
		}
	default:
		c.lastErr = err
		if c.settled() {
			c.state = core.RequestFailed
		}
	}
	return abandoned || superseded, c.fireParked(ready)
}

// release forgets seq and reports whether it had been abandoned.
func (c *Controller) release(seq uint64) bool {
	delete(c.inFlight, seq)
	abandoned := c.abandoned[seq]
	delete(c.abandoned, seq)
	return abandoned
}

func (c *Controller) settled() bool {
	return c.active() == 0 && !c.slot.Pending()
}

func (c *Controller) fireParked(ready bool) *core.SimulationRequest {
	if !ready {
		return nil
	}
	if c.serialize && c.active() > 0 {
		return nil
	}
	req, ok := c.slot.Take()
	if !ok {
		return nil
	}
	c.start(req)
	return &req
}

// Abandon marks every outstanding call so its reply is discarded, e.g. after
// a relocation, and returns their sequences. The lifecycle goes back to IDLE,
// or QUEUED when a request is waiting, and the last error is cleared.
func (c *Controller) Abandon() []uint64 {
	var seqs []uint64
	for seq := range c.inFlight {
		if !c.abandoned[seq] {
			c.abandoned[seq] = true
			seqs = append(seqs, seq)
		}
	}
	c.lastErr = nil
	if c.slot.Pending() {
		c.state = core.RequestQueued
	} else {
		c.state = core.RequestIdle
	}
	return seqs
}

// Parameters returns the current parameters.
func (c *Controller) Parameters() core.SimulationParameters { return c.params }

// SetParameters replaces the current parameters without dispatching.
func (c *Controller) SetParameters(p core.SimulationParameters) { c.params = p }

// Queue returns the deferred slot state.
func (c *Controller) Queue() core.QueueState {
	req, ok := c.slot.Peek()
	if !ok {
		return core.QueueState{}
	}
	return core.QueueState{Pending: true, QueuedRequest: &req}
}

// State returns the lifecycle state of the most recent request.
func (c *Controller) State() core.RequestState { return c.state }

// Err returns the last engine failure, cleared when a new call starts.
func (c *Controller) Err() error { return c.lastErr }

// Latest returns the most recently dispatched request.
func (c *Controller) Latest() *core.SimulationRequest { return c.latest }

// InFlight returns how many engine calls are outstanding and not abandoned.
func (c *Controller) InFlight() int { return c.active() }

// Abandoned returns how many abandoned calls have not replied yet.
func (c *Controller) Abandoned() int { return len(c.abandoned) }

// Installed returns the sequence of the run whose history is current.
func (c *Controller) Installed() uint64 { return c.installed }

// Overwritten returns how many queued requests were superseded before firing.
func (c *Controller) Overwritten() uint64 { return c.slot.Overwritten() }

// Policy returns the response policy in effect.
func (c *Controller) Policy() string { return c.policy }

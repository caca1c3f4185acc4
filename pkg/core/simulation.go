// pkg/core/simulation.go
package core

import (
	"time"

	"github.com/google/uuid"
)

// FrameStepHours is the simulated time between two consecutive frames.
const FrameStepHours = 0.5

// SimulationRequest is the immutable snapshot handed to the execution engine.
type SimulationRequest struct {
	ID         uuid.UUID            `json:"id"`
	Sequence   uint64               `json:"sequence"`
	Parameters SimulationParameters `json:"parameters"`
	Origin     Origin               `json:"origin"`
	CreatedAt  time.Time            `json:"createdAt"`
}

// NewSimulationRequest snapshots params with the resolved origin written in.
func NewSimulationRequest(seq uint64, params SimulationParameters, origin Origin) SimulationRequest {
	params.OriginLat = origin.Lat
	params.OriginLon = origin.Lon
	return SimulationRequest{
		ID:         uuid.New(),
		Sequence:   seq,
		Parameters: params,
		Origin:     origin,
		CreatedAt:  time.Now(),
	}
}

// FirePoint is one geo-located intensity sample.
type FirePoint struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Intensity float64 `json:"intensity"`
}

// Frame is the fire state at one 0.5h time slice.
type Frame []FirePoint

// History is the ordered frame sequence of one completed run.
type History []Frame

// ElapsedHours returns the simulated time represented by frame index i.
func ElapsedHours(i int) float64 {
	return float64(i) * FrameStepHours
}

// Points returns the total number of fire points across all frames.
func (h History) Points() int {
	n := 0
	for _, f := range h {
		n += len(f)
	}
	return n
}

// RequestState is the lifecycle position of the latest request.
type RequestState string

const (
	RequestIdle      RequestState = "IDLE"
	RequestQueued    RequestState = "QUEUED"
	RequestExecuting RequestState = "EXECUTING"
	RequestComplete  RequestState = "COMPLETE"
	RequestFailed    RequestState = "FAILED"
)

// QueueState describes the deferred request slot.
type QueueState struct {
	Pending       bool               `json:"pending"`
	QueuedRequest *SimulationRequest `json:"queuedRequest,omitempty"`
}

// PlaybackState is the presentation cursor over a history.
type PlaybackState struct {
	FrameIndex int  `json:"frameIndex"`
	IsPlaying  bool `json:"isPlaying"`
}

package session

import (
	"time"

	"github.com/emberwatch/firecommand/internal/impact"
	"github.com/emberwatch/firecommand/pkg/core"
	"github.com/google/uuid"
)

// RequestStatus is the lifecycle view of the latest request.
type RequestStatus struct {
	State     core.RequestState `json:"state"`
	Sequence  uint64            `json:"sequence"`
	ID        string            `json:"id,omitempty"`
	Installed uint64            `json:"installedSequence"`
	InFlight  int               `json:"inFlight"`
	Abandoned int               `json:"abandoned"`
	Error     string            `json:"error,omitempty"`
}

// Snapshot is an immutable copy of the session state taken after an inbox
// step. Slices are never mutated after publication.
type Snapshot struct {
	SessionID    string                    `json:"sessionId"`
	Origin       core.Origin               `json:"origin"`
	Gate         GateState                 `json:"gate"`
	Epoch        uint64                    `json:"epoch"`
	GISError     string                    `json:"gisError,omitempty"`
	Parameters   core.SimulationParameters `json:"parameters"`
	Request      RequestStatus             `json:"request"`
	Queue        core.QueueState           `json:"queue"`
	Playback     core.PlaybackState        `json:"playback"`
	Frames       int                       `json:"frames"`
	ElapsedHours float64                   `json:"elapsedHours"`
	Landmarks    int                       `json:"landmarks"`
	Risks        []core.RiskRecord         `json:"risks"`
	RisksPending bool                      `json:"risksPending"`
	UpdatedAt    time.Time                 `json:"updatedAt"`
}

// RunReport describes a run whose history and risk report are installed.
type RunReport struct {
	SessionID   uuid.UUID              `json:"sessionId"`
	Request     core.SimulationRequest `json:"request"`
	Frames      int                    `json:"frames"`
	Points      int                    `json:"points"`
	Landmarks   int                    `json:"landmarks"`
	Risks       []core.RiskRecord      `json:"risks"`
	Summary     impact.Summary         `json:"summary"`
	StartedAt   time.Time              `json:"startedAt"`
	CompletedAt time.Time              `json:"completedAt"`
}

// Duration is the wall time from engine call to installed risk report.
func (r RunReport) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// RunFailure describes an engine call that failed.
type RunFailure struct {
	SessionID uuid.UUID              `json:"sessionId"`
	Request   core.SimulationRequest `json:"request"`
	Err       error                  `json:"-"`
	StartedAt time.Time              `json:"startedAt"`
	FailedAt  time.Time              `json:"failedAt"`
}

// DispatchResult reports what happened to a dispatched request.
type DispatchResult struct {
	Request  core.SimulationRequest `json:"request"`
	Decision Decision               `json:"decision"`
}

// CommandResult reports the effect of a parsed operator command.
type CommandResult struct {
	Kind      string            `json:"kind"`
	Relocated bool              `json:"relocated"`
	Dispatch  *DispatchResult   `json:"dispatch,omitempty"`
	Unknown   []string          `json:"unknown,omitempty"`
	Matches   []core.RiskRecord `json:"matches,omitempty"`
	Answer    string            `json:"answer,omitempty"`
}

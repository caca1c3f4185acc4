package model

import (
	"time"

	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Run{},
	&Risk{},
	&Failure{},
}

// Run is one installed simulation run.
type Run struct {
	ID          uint           `json:"id" gorm:"primarykey;autoIncrement"`
	SessionID   string         `json:"sessionId" gorm:"index;size:36"`
	RequestID   string         `json:"requestId" gorm:"uniqueIndex;size:36"`
	Sequence    uint64         `json:"sequence"`
	OriginLat   float64        `json:"originLat"`
	OriginLon   float64        `json:"originLon"`
	Parameters  datatypes.JSON `json:"parameters"`
	Frames      int            `json:"frames"`
	Points      int            `json:"points"`
	Landmarks   int            `json:"landmarks"`
	RiskCount   int            `json:"riskCount"`
	Summary     datatypes.JSON `json:"summary"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt time.Time      `json:"completedAt" gorm:"index"`
	DurationMs  int64          `json:"durationMs"`
	Risks       []Risk         `json:"risks,omitempty" gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
}

func (*Run) TableName() string {
	return "runs"
}

// Risk is one asset reached by the fire in a run.
type Risk struct {
	ID                uint    `json:"-" gorm:"primarykey;autoIncrement"`
	RunID             uint    `json:"runId" gorm:"index"`
	AssetID           string  `json:"assetId"`
	Name              string  `json:"name"`
	Type              string  `json:"type" gorm:"index"`
	TimeToImpactHours float64 `json:"timeToImpact"`
	FrameIndex        int     `json:"frameIndex"`
	DistanceMeters    float64 `json:"distanceMeters"`
}

func (*Risk) TableName() string {
	return "run_risks"
}

// Failure is one engine call that failed.
type Failure struct {
	ID         uint           `json:"id" gorm:"primarykey;autoIncrement"`
	SessionID  string         `json:"sessionId" gorm:"index;size:36"`
	RequestID  string         `json:"requestId" gorm:"size:36"`
	Sequence   uint64         `json:"sequence"`
	Parameters datatypes.JSON `json:"parameters"`
	Error      string         `json:"error"`
	StartedAt  time.Time      `json:"startedAt"`
	FailedAt   time.Time      `json:"failedAt" gorm:"index"`
}

func (*Failure) TableName() string {
	return "run_failures"
}

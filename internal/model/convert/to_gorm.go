// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"

	"github.com/emberwatch/firecommand/internal/model"
	"github.com/emberwatch/firecommand/internal/session"
	"github.com/emberwatch/firecommand/pkg/core"
	"gorm.io/datatypes"
)

// toJSON marshals v for a JSON column, falling back to an empty object.
func toJSON(v any) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(data)
}

// ReportToRun converts a completed run report to a GORM model.Run with its
// risk rows attached.
func ReportToRun(r session.RunReport) model.Run {
	risks := make([]model.Risk, 0, len(r.Risks))
	for _, rec := range r.Risks {
		risks = append(risks, CoreToRisk(rec))
	}
	return model.Run{
		SessionID:   r.SessionID.String(),
		RequestID:   r.Request.ID.String(),
		Sequence:    r.Request.Sequence,
		OriginLat:   r.Request.Origin.Lat,
		OriginLon:   r.Request.Origin.Lon,
		Parameters:  toJSON(r.Request.Parameters),
		Frames:      r.Frames,
		Points:      r.Points,
		Landmarks:   r.Landmarks,
		RiskCount:   len(r.Risks),
		Summary:     toJSON(r.Summary),
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		DurationMs:  r.Duration().Milliseconds(),
		Risks:       risks,
	}
}

// FailureToModel converts a failed run to a GORM model.Failure.
func FailureToModel(f session.RunFailure) model.Failure {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return model.Failure{
		SessionID:  f.SessionID.String(),
		RequestID:  f.Request.ID.String(),
		Sequence:   f.Request.Sequence,
		Parameters: toJSON(f.Request.Parameters),
		Error:      msg,
		StartedAt:  f.StartedAt,
		FailedAt:   f.FailedAt,
	}
}

// CoreToRisk converts a core.RiskRecord to a GORM model.Risk.
func CoreToRisk(r core.RiskRecord) model.Risk {
	return model.Risk{
		AssetID:           r.AssetID,
		Name:              r.Name,
		Type:              string(r.Type),
		TimeToImpactHours: r.TimeToImpactHours,
		FrameIndex:        r.FrameIndex,
		DistanceMeters:    r.DistanceMeters,
	}
}

// RiskToCore converts a stored model.Risk back to a core.RiskRecord.
func RiskToCore(r model.Risk) core.RiskRecord {
	return core.RiskRecord{
		AssetID:           r.AssetID,
		Name:              r.Name,
		Type:              core.AssetType(r.Type),
		TimeToImpactHours: r.TimeToImpactHours,
		FrameIndex:        r.FrameIndex,
		DistanceMeters:    r.DistanceMeters,
	}
}

// RunParameters decodes the parameters column of a stored run.
func RunParameters(r model.Run) (core.SimulationParameters, error) {
	var p core.SimulationParameters
	err := json.Unmarshal(r.Parameters, &p)
	return p, err
}

package convert

import (
	"errors"
	"testing"
	"time"

	"github.com/emberwatch/firecommand/internal/impact"
	"github.com/emberwatch/firecommand/internal/session"
	"github.com/emberwatch/firecommand/pkg/core"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() session.RunReport {
	req := core.NewSimulationRequest(7, core.DefaultParameters(), core.Origin{Lat: 40, Lon: -122})
	risks := []core.RiskRecord{
		{AssetID: "a", Name: "Clinic", Type: core.AssetMedical, TimeToImpactHours: 0.5, FrameIndex: 1, DistanceMeters: 420},
		{AssetID: "b", Name: "Substation", Type: core.AssetPower, TimeToImpactHours: 2, FrameIndex: 4, DistanceMeters: 610},
	}
	start := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	return session.RunReport{
		SessionID:   uuid.New(),
		Request:     req,
		Frames:      10,
		Points:      120,
		Landmarks:   30,
		Risks:       risks,
		Summary:     impact.Summarize(risks),
		StartedAt:   start,
		CompletedAt: start.Add(1500 * time.Millisecond),
	}
}

func TestReportToRun(t *testing.T) {
	r := sampleReport()
	run := ReportToRun(r)

	assert.Equal(t, r.SessionID.String(), run.SessionID)
	assert.Equal(t, r.Request.ID.String(), run.RequestID)
	assert.Equal(t, uint64(7), run.Sequence)
	assert.Equal(t, 40.0, run.OriginLat)
	assert.Equal(t, -122.0, run.OriginLon)
	assert.Equal(t, 2, run.RiskCount)
	assert.Equal(t, int64(1500), run.DurationMs)
	require.Len(t, run.Risks, 2)
	assert.Equal(t, "power", run.Risks[1].Type)
	assert.JSONEq(t, `{"total":2,"byType":{"medical":1,"power":1},"earliestHours":0.5,"earliestAsset":"Clinic"}`, string(run.Summary))
}

func TestRunParameters_RoundTrip(t *testing.T) {
	r := sampleReport()
	p, err := RunParameters(ReportToRun(r))
	require.NoError(t, err)
	assert.Equal(t, r.Request.Parameters, p)
}

func TestRisk_RoundTrip(t *testing.T) {
	rec := sampleReport().Risks[0]
	assert.Equal(t, rec, RiskToCore(CoreToRisk(rec)))
}

func TestFailureToModel(t *testing.T) {
	req := core.NewSimulationRequest(3, core.DefaultParameters(), core.DefaultOrigin)
	f := session.RunFailure{
		SessionID: uuid.New(),
		Request:   req,
		Err:       core.NewCollaboratorError("engine.simulate", core.ErrNetworkFailure, errors.New("refused")),
		FailedAt:  time.Now(),
	}
	m := FailureToModel(f)

	assert.Equal(t, uint64(3), m.Sequence)
	assert.Equal(t, "engine.simulate: network failure: refused", m.Error)
	assert.Equal(t, req.ID.String(), m.RequestID)
}

func TestFailureToModel_NilError(t *testing.T) {
	m := FailureToModel(session.RunFailure{})
	assert.Empty(t, m.Error)
}

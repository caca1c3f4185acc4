package impact

import (
	"testing"

	"github.com/emberwatch/firecommand/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func point(lat, lon, intensity float64) core.FirePoint {
	return core.FirePoint{Lat: lat, Lon: lon, Intensity: intensity}
}

func TestDetect_ScenarioA(t *testing.T) {
	history := core.History{{point(38.5, -121.5, 0.9)}}
	landmarks := []core.Landmark{{ID: "lm1", Name: "Clinic", Type: core.AssetMedical, Lat: 38.505, Lon: -121.505}}

	got := Detect(history, landmarks)

	require.Len(t, got, 1)
	assert.Equal(t, "lm1", got[0].AssetID)
	assert.Equal(t, 0.0, got[0].TimeToImpactHours)
	assert.Equal(t, "Clinic", got[0].Name)
	assert.Equal(t, core.AssetMedical, got[0].Type)
	assert.Greater(t, got[0].DistanceMeters, 0.0)
}

func TestDetect_EarliestFrameWins(t *testing.T) {
	far := point(10, 10, 0.9)
	hit := point(38.5, -121.5, 0.9)
	history := core.History{{far}, {far}, {hit}, {far}, {far}, {hit}}
	landmarks := []core.Landmark{{ID: "lm1", Lat: 38.501, Lon: -121.501}}

	got := Detect(history, landmarks)

	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].TimeToImpactHours, "frame 2 must win over frame 5")
	assert.Equal(t, 2, got[0].FrameIndex)
}

func TestDetect_BoundaryIsExclusive(t *testing.T) {
	history := core.History{
		{point(0, 0, 1.0)},
		{point(0, 0, 1.0), point(0.016, 0, 1.0)},
	}
	landmarks := []core.Landmark{{ID: "edge", Lat: 0.008, Lon: 0}}

	assert.Empty(t, Detect(history, landmarks))
}

func TestDetect_SubThresholdIgnored(t *testing.T) {
	history := core.History{
		{point(38.5, -121.5, 0.19)},
		{point(38.5, -121.5, 0.2)},
	}
	landmarks := []core.Landmark{{ID: "lm1", Lat: 38.5, Lon: -121.5}}

	got := Detect(history, landmarks)

	require.Len(t, got, 1)
	assert.Equal(t, 0.5, got[0].TimeToImpactHours, "0.2 is hazardous, 0.19 is not")
}

func TestDetect_BoundingBoxRejectsFarPoints(t *testing.T) {
	// within 0.008 on one axis but 0.02 on the other
	history := core.History{{point(38.5, -121.5, 1.0)}}
	landmarks := []core.Landmark{{ID: "lm1", Lat: 38.5, Lon: -121.52}}

	assert.Empty(t, Detect(history, landmarks))
}

func TestDetect_SortedByTime(t *testing.T) {
	history := core.History{
		{point(38.60, -121.60, 1.0)},
		{point(38.50, -121.50, 1.0)},
		{point(38.70, -121.70, 1.0)},
	}
	landmarks := []core.Landmark{
		{ID: "late", Lat: 38.70, Lon: -121.70},
		{ID: "middle", Lat: 38.50, Lon: -121.50},
		{ID: "early", Lat: 38.60, Lon: -121.60},
		{ID: "never", Lat: 0, Lon: 0},
	}

	got := Detect(history, landmarks)

	require.Len(t, got, 3)
	assert.Equal(t, "early", got[0].AssetID)
	assert.Equal(t, "middle", got[1].AssetID)
	assert.Equal(t, "late", got[2].AssetID)
	assert.Equal(t, []float64{0, 0.5, 1.0}, []float64{got[0].TimeToImpactHours, got[1].TimeToImpactHours, got[2].TimeToImpactHours})
}

func TestDetect_SameFrameKeepsLandmarkOrder(t *testing.T) {
	history := core.History{{point(38.5, -121.5, 1.0)}}
	landmarks := []core.Landmark{
		{ID: "b", Lat: 38.501, Lon: -121.5},
		{ID: "a", Lat: 38.499, Lon: -121.5},
	}

	got := Detect(history, landmarks)

	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].AssetID)
	assert.Equal(t, "a", got[1].AssetID)
}

func TestDetect_AtMostOncePerAsset(t *testing.T) {
	f := core.Frame{point(38.5, -121.5, 1.0), point(38.5001, -121.5, 1.0)}
	history := core.History{f, f, f}
	landmarks := []core.Landmark{{ID: "lm1", Lat: 38.5, Lon: -121.5}}

	assert.Len(t, Detect(history, landmarks), 1)
}

func TestDetect_Pure(t *testing.T) {
	history := core.History{
		{point(38.5, -121.5, 0.9), point(38.6, -121.6, 0.3)},
		{point(38.7, -121.7, 0.5)},
	}
	landmarks := []core.Landmark{
		{ID: "x", Lat: 38.7, Lon: -121.7},
		{ID: "y", Lat: 38.6, Lon: -121.6},
		{ID: "z", Lat: 38.5, Lon: -121.5},
	}
	before := append([]core.Landmark(nil), landmarks...)

	first := Detect(history, landmarks)
	second := Detect(history, landmarks)

	assert.Equal(t, first, second)
	assert.Equal(t, before, landmarks, "inputs must not be mutated")
}

func TestDetect_EmptyInputs(t *testing.T) {
	landmarks := []core.Landmark{{ID: "lm1"}}
	history := core.History{{point(0, 0, 1)}}

	got := Detect(nil, landmarks)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	assert.Empty(t, Detect(history, nil))
	assert.Empty(t, Detect(core.History{}, []core.Landmark{}))
}

func TestDetect_EmptyFrames(t *testing.T) {
	history := core.History{{}, {}, {point(38.5, -121.5, 1)}}
	landmarks := []core.Landmark{{ID: "lm1", Lat: 38.5, Lon: -121.5}}

	got := Detect(history, landmarks)
	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].TimeToImpactHours)
}

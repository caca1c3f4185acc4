// pkg/core/landmark.go
package core

import "strings"

// AssetType classifies a landmark.
type AssetType string

const (
	AssetMedical  AssetType = "medical"
	AssetPower    AssetType = "power"
	AssetResponse AssetType = "response"
	AssetSchool   AssetType = "school"
	AssetCivic    AssetType = "civic"
	AssetUnknown  AssetType = "unknown"
)

// ParseAssetType maps provider tags onto the asset taxonomy.
func ParseAssetType(s string) AssetType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "medical", "hospital", "clinic", "doctors", "pharmacy":
		return AssetMedical
	case "power", "substation", "plant", "generator", "tower":
		return AssetPower
	case "response", "fire_station", "police", "ambulance_station":
		return AssetResponse
	case "school", "college", "university", "kindergarten":
		return AssetSchool
	case "civic", "townhall", "courthouse", "library", "community_centre":
		return AssetCivic
	default:
		return AssetUnknown
	}
}

// Landmark is a real-world point of interest returned by the GIS provider.
type Landmark struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Type           AssetType `json:"type"`
	Lat            float64   `json:"lat"`
	Lon            float64   `json:"lon"`
	EstimatedValue float64   `json:"estimatedValue"`
}

// RiskRecord marks a landmark reached by the fire.
type RiskRecord struct {
	AssetID           string    `json:"assetId"`
	Name              string    `json:"name"`
	Type              AssetType `json:"type"`
	TimeToImpactHours float64   `json:"timeToImpact"`
	FrameIndex        int       `json:"frameIndex"`
	DistanceMeters    float64   `json:"distanceMeters"`
}

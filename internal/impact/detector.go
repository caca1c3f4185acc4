// Package impact computes which landmarks a simulated fire reaches and when.
package impact

import (
	"math"
	"sort"

	"github.com/emberwatch/firecommand/internal/geo"
	"github.com/emberwatch/firecommand/pkg/core"
)

const (
	// IntensityThreshold is the minimum intensity treated as hazardous.
	IntensityThreshold = 0.2
	// BoxHalfWidth is the per-axis prefilter, in degrees.
	BoxHalfWidth = 0.015
	// ImpactRadius is the strict distance, in degrees, below which a landmark is overtaken.
	ImpactRadius = 0.008
)

// Detect returns one RiskRecord per landmark reached by a hazardous fire point,
// sorted by time to impact. Frames are scanned in index order so the first
// match recorded for a landmark is its earliest impact. Landmarks impacted in
// the same frame keep their input order.
func Detect(history core.History, landmarks []core.Landmark) []core.RiskRecord {
	if len(history) == 0 || len(landmarks) == 0 {
		return []core.RiskRecord{}
	}

	flagged := make([]bool, len(landmarks))
	remaining := len(landmarks)
	records := make([]core.RiskRecord, 0)

	for frameIndex, frame := range history {
		for _, p := range frame {
			if p.Intensity < IntensityThreshold {
				continue
			}
			for i := range landmarks {
				if flagged[i] {
					continue
				}
				l := &landmarks[i]
				dLat := p.Lat - l.Lat
				dLon := p.Lon - l.Lon
				if math.Abs(dLat) > BoxHalfWidth || math.Abs(dLon) > BoxHalfWidth {
					continue
				}
				if math.Sqrt(dLat*dLat+dLon*dLon) >= ImpactRadius {
					continue
				}
				flagged[i] = true
				remaining--
				records = append(records, core.RiskRecord{
					AssetID:           l.ID,
					Name:              l.Name,
					Type:              l.Type,
					TimeToImpactHours: core.ElapsedHours(frameIndex),
					FrameIndex:        frameIndex,
					DistanceMeters:    geo.DistanceMeters(p.Lat, p.Lon, l.Lat, l.Lon),
				})
			}
			if remaining == 0 {
				return sortByTime(records)
			}
		}
	}
	return sortByTime(records)
}

// records are appended in frame order already; the stable sort only
// guarantees the contract if that ever changes.
func sortByTime(records []core.RiskRecord) []core.RiskRecord {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].TimeToImpactHours < records[j].TimeToImpactHours
	})
	return records
}

package geo

import (
	"fmt"

	"github.com/emberwatch/firecommand/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Projection selects the coordinate reference system of exported features.
type Projection string

const (
	ProjectionWGS84       Projection = "EPSG:4326"
	ProjectionWebMercator Projection = "EPSG:3857"
)

// ParseProjection accepts "4326", "3857" or the full EPSG names.
func ParseProjection(s string) (Projection, error) {
	switch s {
	case "", "4326", string(ProjectionWGS84):
		return ProjectionWGS84, nil
	case "3857", string(ProjectionWebMercator):
		return ProjectionWebMercator, nil
	default:
		return "", fmt.Errorf("unsupported projection %q", s)
	}
}

// FrameFeatures renders a frame as a GeoJSON feature collection with an
// "intensity" property per point. An empty frame yields an empty collection.
func FrameFeatures(frame core.Frame, proj Projection) geom.GeoJSONFeatureCollection {
	fc := make(geom.GeoJSONFeatureCollection, 0, len(frame))
	for _, p := range frame {
		fc = append(fc, geom.GeoJSONFeature{
			Geometry:   project(p.Lat, p.Lon, proj).AsGeometry(),
			Properties: map[string]interface{}{"intensity": p.Intensity},
		})
	}
	return fc
}

// LandmarkFeatures renders landmarks as GeoJSON, keyed by provider id.
func LandmarkFeatures(landmarks []core.Landmark, proj Projection) geom.GeoJSONFeatureCollection {
	fc := make(geom.GeoJSONFeatureCollection, 0, len(landmarks))
	for _, l := range landmarks {
		fc = append(fc, geom.GeoJSONFeature{
			ID:       l.ID,
			Geometry: project(l.Lat, l.Lon, proj).AsGeometry(),
			Properties: map[string]interface{}{
				"name": l.Name,
				"type": string(l.Type),
			},
		})
	}
	return fc
}

func project(lat, lon float64, proj Projection) geom.Point {
	if proj == ProjectionWebMercator {
		pt, _ := Coords3857From4326(lon, lat)
		return pt
	}
	return Point(lat, lon)
}

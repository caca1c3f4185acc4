package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/emberwatch/firecommand/pkg/core"
	"github.com/golang/geo/s2"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// All positions handled here are WGS84 (EPSG:4326) unless a function says otherwise.
// Projection to web mercator (EPSG:3857) happens only on the way out to renderers.

// EarthRadiusMeters is the mean earth radius used for geodesic distances.
const EarthRadiusMeters = 6371008.8

const (
	// gisBaseRadius and gisRadiusPerHour size the landmark query around an origin.
	gisBaseRadius    = 0.04
	gisRadiusPerHour = 0.02
	// gisMaxRadius caps the query box regardless of duration.
	gisMaxRadius = 0.50
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// OriginFromString parses "lat,lon" into a core.Origin.
func OriginFromString(coords string) (core.Origin, error) {
	parts := strings.Split(coords, ",")
	if len(parts) < 2 {
		return core.Origin{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return core.Origin{}, ErrInvalidCoordinates
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return core.Origin{}, ErrInvalidCoordinates
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return core.Origin{}, ErrInvalidCoordinates
	}
	return core.Origin{Lat: lat, Lon: lon}, nil
}

// GISRadius returns the half-width in degrees of the landmark query box for a
// run lasting durationHours.
func GISRadius(durationHours int) float64 {
	return math.Min(gisBaseRadius+float64(durationHours)*gisRadiusPerHour, gisMaxRadius)
}

// BoundingBox is an axis-aligned box in degrees.
type BoundingBox struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// BoxAround returns the square box of the given radius centered on origin.
func BoxAround(origin core.Origin, radius float64) BoundingBox {
	return BoundingBox{
		South: origin.Lat - radius,
		West:  origin.Lon - radius,
		North: origin.Lat + radius,
		East:  origin.Lon + radius,
	}
}

// QueryBox returns the GIS query box for an origin and run duration.
func QueryBox(origin core.Origin, durationHours int) BoundingBox {
	return BoxAround(origin, GISRadius(durationHours))
}

// Envelope converts the box into a simplefeatures envelope (x=lon, y=lat).
func (b BoundingBox) Envelope() geom.Envelope {
	return geom.NewEnvelope(
		geom.XY{X: b.West, Y: b.South},
		geom.XY{X: b.East, Y: b.North},
	)
}

// Contains reports whether the position lies inside the box, edges included.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return b.Envelope().Contains(geom.XY{X: lon, Y: lat})
}

// Point builds a 2D point for a WGS84 position.
func Point(lat, lon float64) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: lon, Y: lat},
		Type: geom.DimXY,
	})
}

// Coords3857From4326 creates a web mercator point from a longitude and latitude
func Coords3857From4326(
	longitude float64,
	latitude float64,
) (
	point geom.Point,
	err error,
) {
	var x, y float64
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ = f(longitude, latitude, 0)
	point = geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: x, Y: y},
			Type: geom.DimXY,
		},
	)
	return point, nil
}

// DistanceMeters returns the great-circle distance between two positions.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

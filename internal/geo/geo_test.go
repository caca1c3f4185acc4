package geo

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/emberwatch/firecommand/pkg/core"
)

func TestOriginFromString_Valid(t *testing.T) {
	o, err := OriginFromString("38.5,-121.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Lat != 38.5 || o.Lon != -121.5 {
		t.Errorf("expected (38.5,-121.5), got (%f,%f)", o.Lat, o.Lon)
	}
}

func TestOriginFromString_Whitespace(t *testing.T) {
	o, err := OriginFromString(" 40.0 , -122.0 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Lat != 40 || o.Lon != -122 {
		t.Errorf("expected (40,-122), got (%f,%f)", o.Lat, o.Lon)
	}
}

func TestOriginFromString_Invalid(t *testing.T) {
	for _, in := range []string{"", "38.5", "abc,1", "1,abc", "91,0", "0,181"} {
		_, err := OriginFromString(in)
		if !errors.Is(err, ErrInvalidCoordinates) {
			t.Errorf("%q: expected ErrInvalidCoordinates, got %v", in, err)
		}
	}
}

func TestGISRadius_ShortRun(t *testing.T) {
	// 0.04 + 4*0.02
	if got := GISRadius(4); math.Abs(got-0.12) > 1e-12 {
		t.Errorf("expected 0.12, got %f", got)
	}
}

func TestGISRadius_ClampedAt24Hours(t *testing.T) {
	if got := GISRadius(24); got != 0.50 {
		t.Errorf("expected clamp to 0.50, got %f", got)
	}
	if got := GISRadius(96); got != 0.50 {
		t.Errorf("expected clamp to 0.50, got %f", got)
	}
}

func TestQueryBox(t *testing.T) {
	box := QueryBox(core.Origin{Lat: 38.5, Lon: -121.5}, 2)
	want := BoundingBox{South: 38.42, West: -121.58, North: 38.58, East: -121.42}
	const eps = 1e-9
	if math.Abs(box.South-want.South) > eps || math.Abs(box.North-want.North) > eps ||
		math.Abs(box.West-want.West) > eps || math.Abs(box.East-want.East) > eps {
		t.Errorf("expected %+v, got %+v", want, box)
	}
	if !box.Contains(38.5, -121.5) {
		t.Error("box should contain its own origin")
	}
	if box.Contains(39.0, -121.5) {
		t.Error("box should not contain a point 0.5 deg north")
	}
}

func TestDistanceMeters(t *testing.T) {
	// one degree of latitude is roughly 111.2 km
	d := DistanceMeters(38.0, -121.5, 39.0, -121.5)
	if d < 111000 || d > 111400 {
		t.Errorf("expected ~111.2km, got %f", d)
	}
	if DistanceMeters(38.5, -121.5, 38.5, -121.5) != 0 {
		t.Error("expected zero distance for identical points")
	}
}

func TestPoint_AxisOrder(t *testing.T) {
	coords, ok := Point(38.5, -121.5).Coordinates()
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	if coords.X != -121.5 || coords.Y != 38.5 {
		t.Errorf("expected x=lon y=lat, got x=%f y=%f", coords.X, coords.Y)
	}
}

func TestFrameFeatures(t *testing.T) {
	frame := core.Frame{
		{Lat: 38.5, Lon: -121.5, Intensity: 0.9},
		{Lat: 38.6, Lon: -121.4, Intensity: 0.1},
	}
	fc := FrameFeatures(frame, ProjectionWGS84)
	if len(fc) != 2 {
		t.Fatalf("expected 2 features, got %d", len(fc))
	}
	if fc[0].Properties["intensity"] != 0.9 {
		t.Errorf("expected intensity 0.9, got %v", fc[0].Properties["intensity"])
	}

	data, err := json.Marshal(fc)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"FeatureCollection"`) {
		t.Errorf("expected a FeatureCollection, got %s", data)
	}
}

func TestFrameFeatures_Empty(t *testing.T) {
	fc := FrameFeatures(nil, ProjectionWGS84)
	if len(fc) != 0 {
		t.Errorf("expected empty collection, got %d features", len(fc))
	}
}

func TestFrameFeatures_WebMercator(t *testing.T) {
	fc := FrameFeatures(core.Frame{{Lat: 10, Lon: 10, Intensity: 1}}, ProjectionWebMercator)
	pt, ok := fc[0].Geometry.AsPoint()
	if !ok {
		t.Fatal("expected point geometry")
	}
	xy, ok := pt.XY()
	if !ok {
		t.Fatal("expected non-empty point")
	}
	if xy.X < 1000 || xy.Y < 1000 {
		t.Errorf("expected projected metres, got %+v", xy)
	}
}

func TestLandmarkFeatures(t *testing.T) {
	fc := LandmarkFeatures([]core.Landmark{{ID: "n1", Name: "Mercy General", Type: core.AssetMedical, Lat: 38.5, Lon: -121.5}}, ProjectionWGS84)
	if len(fc) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(fc))
	}
	if fc[0].ID != "n1" {
		t.Errorf("expected id n1, got %v", fc[0].ID)
	}
	if fc[0].Properties["type"] != "medical" {
		t.Errorf("expected type medical, got %v", fc[0].Properties["type"])
	}
}

func TestParseProjection(t *testing.T) {
	cases := map[string]Projection{"": ProjectionWGS84, "4326": ProjectionWGS84, "3857": ProjectionWebMercator, "EPSG:3857": ProjectionWebMercator}
	for in, want := range cases {
		got, err := ParseProjection(in)
		if err != nil || got != want {
			t.Errorf("%q: expected %s, got %s (%v)", in, want, got, err)
		}
	}
	if _, err := ParseProjection("27700"); err == nil {
		t.Error("expected error for unsupported projection")
	}
}

func TestCoords3857From4326_ValidCoordinates(t *testing.T) {
	// Test converting WGS84 (EPSG:4326) to Web Mercator (EPSG:3857)
	// Approximate coordinates for a point
	point, err := Coords3857From4326(0, 0)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	coords, ok := point.Coordinates()
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	// At (0, 0) in 4326, the 3857 coordinates should also be (0, 0)
	if coords.X != 0 {
		t.Errorf("expected X=0 at origin, got %f", coords.X)
	}
	if coords.Y != 0 {
		t.Errorf("expected Y=0 at origin, got %f", coords.Y)
	}
}

func TestCoords3857From4326_NonZeroCoordinates(t *testing.T) {
	// Test a point at 10 degrees longitude, 10 degrees latitude
	point, err := Coords3857From4326(10, 10)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	coords, ok := point.Coordinates()
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	// In Web Mercator, these should be non-zero positive values
	if coords.X <= 0 {
		t.Errorf("expected positive X, got %f", coords.X)
	}
	if coords.Y <= 0 {
		t.Errorf("expected positive Y, got %f", coords.Y)
	}
}

func TestCoords3857From4326_NegativeCoordinates(t *testing.T) {
	// Test a point in the Southern/Western hemisphere
	point, err := Coords3857From4326(-45, -30)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	coords, ok := point.Coordinates()
	if !ok {
		t.Fatal("expected valid coordinates")
	}
	if coords.X >= 0 {
		t.Errorf("expected negative X for western hemisphere, got %f", coords.X)
	}
	if coords.Y >= 0 {
		t.Errorf("expected negative Y for southern hemisphere, got %f", coords.Y)
	}
}

// pkg/core/params.go
package core

import (
	"fmt"
	"strings"
)

// WindDirection is one of the eight compass points accepted by the engine.
type WindDirection string

const (
	WindN  WindDirection = "N"
	WindNE WindDirection = "NE"
	WindE  WindDirection = "E"
	WindSE WindDirection = "SE"
	WindS  WindDirection = "S"
	WindSW WindDirection = "SW"
	WindW  WindDirection = "W"
	WindNW WindDirection = "NW"
)

// WindDirections lists every valid direction in compass order.
var WindDirections = []WindDirection{WindN, WindNE, WindE, WindSE, WindS, WindSW, WindW, WindNW}

// ParseWindDirection normalizes s and reports whether it names a compass point.
func ParseWindDirection(s string) (WindDirection, bool) {
	d := WindDirection(strings.ToUpper(strings.TrimSpace(s)))
	for _, v := range WindDirections {
		if v == d {
			return d, true
		}
	}
	return "", false
}

// Origin is a WGS84 ignition point.
type Origin struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DefaultOrigin is the ignition point used before any relocation.
var DefaultOrigin = Origin{Lat: 38.5, Lon: -121.5}

// SimulationParameters holds the environmental inputs of a run.
type SimulationParameters struct {
	WindSpeed     int           `json:"windSpeed"`
	WindDirection WindDirection `json:"windDir"`
	FuelMoisture  int           `json:"moisture"`
	Humidity      int           `json:"humidity"`
	Temperature   int           `json:"temperature"`
	Slope         int           `json:"slope"`
	DurationHours int           `json:"duration"`
	OriginLat     float64       `json:"originLat"`
	OriginLon     float64       `json:"originLon"`
}

// DefaultParameters returns the parameters a fresh session starts with.
func DefaultParameters() SimulationParameters {
	return SimulationParameters{
		WindSpeed:     50,
		WindDirection: WindNW,
		FuelMoisture:  10,
		Humidity:      20,
		Temperature:   95,
		Slope:         15,
		DurationHours: 24,
		OriginLat:     DefaultOrigin.Lat,
		OriginLon:     DefaultOrigin.Lon,
	}
}

// Origin returns the ignition point carried by the parameters.
func (p SimulationParameters) Origin() Origin {
	return Origin{Lat: p.OriginLat, Lon: p.OriginLon}
}

// Validate checks the documented input ranges. The session never calls it;
// bounds are the input surface's job.
func (p SimulationParameters) Validate() error {
	var problems []string
	check := func(name string, v, lo, hi int) {
		if v < lo || v > hi {
			problems = append(problems, fmt.Sprintf("%s=%d outside [%d,%d]", name, v, lo, hi))
		}
	}
	check("windSpeed", p.WindSpeed, 0, 100)
	check("moisture", p.FuelMoisture, 0, 100)
	check("humidity", p.Humidity, 0, 100)
	check("temperature", p.Temperature, 30, 120)
	check("slope", p.Slope, 0, 45)
	check("duration", p.DurationHours, 2, 96)
	if p.DurationHours%2 != 0 {
		problems = append(problems, fmt.Sprintf("duration=%d is not a multiple of 2", p.DurationHours))
	}
	if _, ok := ParseWindDirection(string(p.WindDirection)); !ok {
		problems = append(problems, fmt.Sprintf("windDir=%q is not a compass point", p.WindDirection))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidParameter, strings.Join(problems, "; "))
	}
	return nil
}

// pkg/core/override.go
package core

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// ParameterOverride is a partial update to SimulationParameters. Nil fields
// leave the current value untouched.
type ParameterOverride struct {
	WindSpeed     *int
	WindDirection *WindDirection
	FuelMoisture  *int
	Humidity      *int
	Temperature   *int
	Slope         *int
	DurationHours *int
	OriginLat     *float64
	OriginLon     *float64
}

// overrideField assigns one recognized JSON value onto an override.
type overrideField func(o *ParameterOverride, raw json.RawMessage) error

var overrideFields = map[string]overrideField{
	"windSpeed":     intField(func(o *ParameterOverride, v int) { o.WindSpeed = &v }),
	"windDir":       windField,
	"windDirection": windField,
	"moisture":      intField(func(o *ParameterOverride, v int) { o.FuelMoisture = &v }),
	"fuelMoisture":  intField(func(o *ParameterOverride, v int) { o.FuelMoisture = &v }),
	"humidity":      intField(func(o *ParameterOverride, v int) { o.Humidity = &v }),
	"temperature":   intField(func(o *ParameterOverride, v int) { o.Temperature = &v }),
	"slope":         intField(func(o *ParameterOverride, v int) { o.Slope = &v }),
	"duration":      intField(func(o *ParameterOverride, v int) { o.DurationHours = &v }),
	"durationHours": intField(func(o *ParameterOverride, v int) { o.DurationHours = &v }),
	"time":          intField(func(o *ParameterOverride, v int) { o.DurationHours = &v }),
	"originLat":     floatField(func(o *ParameterOverride, v float64) { o.OriginLat = &v }),
	"originLon":     floatField(func(o *ParameterOverride, v float64) { o.OriginLon = &v }),
}

// RecognizedOverrideFields returns the payload keys an override understands.
func RecognizedOverrideFields() []string {
	keys := make([]string, 0, len(overrideFields))
	for k := range overrideFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseOverride decodes a parser payload into a typed override. Keys outside
// the recognized set are returned in unknown and never applied. A null value
// is treated as absent.
func ParseOverride(payload json.RawMessage) (override ParameterOverride, unknown []string, err error) {
	if len(payload) == 0 || string(payload) == "null" {
		return override, nil, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return override, nil, fmt.Errorf("%w: override payload: %v", ErrMalformedResponse, err)
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		raw := fields[key]
		assign, ok := overrideFields[key]
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		if string(raw) == "null" {
			continue
		}
		if err := assign(&override, raw); err != nil {
			return ParameterOverride{}, unknown, fmt.Errorf("%w: field %q: %v", ErrMalformedResponse, key, err)
		}
	}
	return override, unknown, nil
}

// HasOrigin reports whether the override carries a complete origin.
func (o ParameterOverride) HasOrigin() bool {
	return o.OriginLat != nil && o.OriginLon != nil
}

// IsEmpty reports whether no field is set.
func (o ParameterOverride) IsEmpty() bool {
	return o == ParameterOverride{}
}

// Apply returns p with every set field of o written over it.
func (o ParameterOverride) Apply(p SimulationParameters) SimulationParameters {
	if o.WindSpeed != nil {
		p.WindSpeed = *o.WindSpeed
	}
	if o.WindDirection != nil {
		p.WindDirection = *o.WindDirection
	}
	if o.FuelMoisture != nil {
		p.FuelMoisture = *o.FuelMoisture
	}
	if o.Humidity != nil {
		p.Humidity = *o.Humidity
	}
	if o.Temperature != nil {
		p.Temperature = *o.Temperature
	}
	if o.Slope != nil {
		p.Slope = *o.Slope
	}
	if o.DurationHours != nil {
		p.DurationHours = *o.DurationHours
	}
	if o.OriginLat != nil {
		p.OriginLat = *o.OriginLat
	}
	if o.OriginLon != nil {
		p.OriginLon = *o.OriginLon
	}
	return p
}

func intField(set func(*ParameterOverride, int)) overrideField {
	return func(o *ParameterOverride, raw json.RawMessage) error {
		// the parser emits floats for integer fields ("windSpeed": 40.0)
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return err
		}
		set(o, int(math.Round(f)))
		return nil
	}
}

func floatField(set func(*ParameterOverride, float64)) overrideField {
	return func(o *ParameterOverride, raw json.RawMessage) error {
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return err
		}
		set(o, f)
		return nil
	}
}

func windField(o *ParameterOverride, raw json.RawMessage) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return err
	}
	d, ok := ParseWindDirection(s)
	if !ok {
		return fmt.Errorf("unknown wind direction %q", s)
	}
	o.WindDirection = &d
	return nil
}

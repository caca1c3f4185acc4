// Package gis fetches landmarks around an ignition point.
package gis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/emberwatch/firecommand/internal/api"
	"github.com/emberwatch/firecommand/internal/config"
	"github.com/emberwatch/firecommand/internal/geo"
	"github.com/emberwatch/firecommand/pkg/core"
)

// Op tags GIS failures.
const Op = "gis.landmarks"

// Provider returns the landmarks inside a bounding box.
type Provider interface {
	Landmarks(ctx context.Context, box geo.BoundingBox) ([]core.Landmark, error)
}

// Client is the HTTP Provider.
type Client struct {
	api *api.Client
}

// New creates a GIS client for the configured endpoint.
func New(cfg config.ClientConfig) *Client {
	return &Client{api: api.New(cfg.URL, cfg.Timeout)}
}

type wireLandmark struct {
	ID             json.RawMessage `json:"id"`
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	Lat            *float64        `json:"lat"`
	Lon            *float64        `json:"lon"`
	EstimatedValue float64         `json:"estimatedValue"`
}

// Landmarks queries /landmarks?south&west&north&east.
func (c *Client) Landmarks(ctx context.Context, box geo.BoundingBox) ([]core.Landmark, error) {
	q := url.Values{}
	q.Set("south", formatCoord(box.South))
	q.Set("west", formatCoord(box.West))
	q.Set("north", formatCoord(box.North))
	q.Set("east", formatCoord(box.East))

	var wire []wireLandmark
	if err := c.api.GetJSON(ctx, Op, "/landmarks", q, &wire); err != nil {
		return nil, err
	}
	return normalize(wire), nil
}

// normalize converts provider records, dropping entries without a position
// and mapping type tags onto the asset taxonomy.
func normalize(wire []wireLandmark) []core.Landmark {
	out := make([]core.Landmark, 0, len(wire))
	for _, w := range wire {
		if w.Lat == nil || w.Lon == nil {
			continue
		}
		id := rawID(w.ID)
		if id == "" {
			id = fmt.Sprintf("%s@%s,%s", w.Name, formatCoord(*w.Lat), formatCoord(*w.Lon))
		}
		out = append(out, core.Landmark{
			ID:             id,
			Name:           strings.TrimSpace(w.Name),
			Type:           core.ParseAssetType(w.Type),
			Lat:            *w.Lat,
			Lon:            *w.Lon,
			EstimatedValue: w.EstimatedValue,
		})
	}
	return out
}

// rawID accepts string or numeric ids.
func rawID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

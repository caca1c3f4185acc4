// Package engine talks to the external fire-spread execution engine.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/emberwatch/firecommand/internal/api"
	"github.com/emberwatch/firecommand/internal/config"
	"github.com/emberwatch/firecommand/pkg/core"
)

// Op tags engine failures.
const Op = "engine.simulate"

// Engine runs one simulation request to completion.
type Engine interface {
	Simulate(ctx context.Context, req core.SimulationRequest) (core.History, error)
}

// Client is the HTTP Engine.
type Client struct {
	api *api.Client
}

// New creates an engine client for the configured endpoint.
func New(cfg config.ClientConfig) *Client {
	return &Client{api: api.New(cfg.URL, cfg.Timeout)}
}

type simulateResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// Simulate posts the request parameters to /simulate and decodes the frames.
func (c *Client) Simulate(ctx context.Context, req core.SimulationRequest) (core.History, error) {
	var resp simulateResponse
	if err := c.api.PostJSON(ctx, Op, "/simulate", req.Parameters, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "" && resp.Status != "success" {
		return nil, core.NewCollaboratorError(Op, core.ErrMalformedResponse,
			fmt.Errorf("engine status %q", resp.Status))
	}
	history, err := DecodeHistory(resp.Data)
	if err != nil {
		return nil, core.NewCollaboratorError(Op, core.ErrMalformedResponse, err)
	}
	return history, nil
}

// DecodeHistory accepts either a list of frames or a flat list of points,
// which becomes a single frame. An empty list is an empty history.
func DecodeHistory(data json.RawMessage) (core.History, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, errors.New("missing data")
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("data is not a list: %w", err)
	}
	if len(items) == 0 {
		return core.History{}, nil
	}

	if first := bytes.TrimSpace(items[0]); len(first) > 0 && first[0] == '[' {
		history := make(core.History, 0, len(items))
		for i, raw := range items {
			var frame core.Frame
			if err := json.Unmarshal(raw, &frame); err != nil {
				return nil, fmt.Errorf("frame %d: %w", i, err)
			}
			if err := checkFrame(frame); err != nil {
				return nil, fmt.Errorf("frame %d: %w", i, err)
			}
			if frame == nil {
				frame = core.Frame{}
			}
			history = append(history, frame)
		}
		return history, nil
	}

	var frame core.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("points: %w", err)
	}
	if err := checkFrame(frame); err != nil {
		return nil, err
	}
	return core.History{frame}, nil
}

func checkFrame(f core.Frame) error {
	for i, p := range f {
		if math.IsNaN(p.Intensity) || p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
			return fmt.Errorf("point %d out of range", i)
		}
	}
	return nil
}

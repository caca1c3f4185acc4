package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/emberwatch/firecommand/internal/config"
	"github.com/emberwatch/firecommand/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(config.ClientConfig{URL: srv.URL, Timeout: 2 * time.Second})
}

func TestSimulate_FrameList(t *testing.T) {
	var got core.SimulationParameters
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simulate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"status":"success","data":[
			[{"lat":38.5,"lon":-121.5,"intensity":0.8}],
			[],
			[{"lat":38.51,"lon":-121.5,"intensity":0.4},{"lat":38.52,"lon":-121.5,"intensity":0.1}]
		]}`))
	})

	req := core.NewSimulationRequest(1, core.DefaultParameters(), core.Origin{Lat: 40, Lon: -122})
	history, err := c.Simulate(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, history, 3)
	assert.Len(t, history[0], 1)
	assert.NotNil(t, history[1])
	assert.Len(t, history[1], 0)
	assert.Len(t, history[2], 2)
	assert.Equal(t, 40.0, got.OriginLat)
	assert.Equal(t, core.WindNW, got.WindDirection)
	assert.Equal(t, 24, got.DurationHours)
}

func TestSimulate_FlatPointsBecomeOneFrame(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":[
			{"lat":38.5,"lon":-121.5,"intensity":0.8},
			{"lat":38.6,"lon":-121.4,"intensity":0.3}
		]}`))
	})

	history, err := c.Simulate(context.Background(), core.NewSimulationRequest(1, core.DefaultParameters(), core.DefaultOrigin))
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, core.FirePoint{Lat: 38.6, Lon: -121.4, Intensity: 0.3}, history[0][1])
}

func TestSimulate_EmptyData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	})

	history, err := c.Simulate(context.Background(), core.NewSimulationRequest(1, core.DefaultParameters(), core.DefaultOrigin))
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSimulate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   error
	}{
		{"server error", http.StatusInternalServerError, `boom`, core.ErrNetworkFailure},
		{"missing data", http.StatusOK, `{"status":"success"}`, core.ErrMalformedResponse},
		{"data not a list", http.StatusOK, `{"data":{"lat":1}}`, core.ErrMalformedResponse},
		{"not json", http.StatusOK, `<html>`, core.ErrMalformedResponse},
		{"error status", http.StatusOK, `{"status":"error","data":[]}`, core.ErrMalformedResponse},
		{"bad frame", http.StatusOK, `{"data":[[{"lat":"x"}]]}`, core.ErrMalformedResponse},
		{"out of range", http.StatusOK, `{"data":[{"lat":91,"lon":0,"intensity":1}]}`, core.ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.Simulate(context.Background(), core.NewSimulationRequest(1, core.DefaultParameters(), core.DefaultOrigin))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			assert.Contains(t, err.Error(), Op)
		})
	}
}

package gis

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/emberwatch/firecommand/internal/config"
	"github.com/emberwatch/firecommand/internal/geo"
	"github.com/emberwatch/firecommand/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLandmarks_QueryAndNormalize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/landmarks", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "38.5", q.Get("south"))
		assert.Equal(t, "-122", q.Get("west"))
		assert.Equal(t, "39", q.Get("north"))
		assert.Equal(t, "-121.5", q.Get("east"))
		w.Write([]byte(`[
			{"id":"h1","name":" Mercy General ","type":"hospital","lat":38.6,"lon":-121.7},
			{"id":42,"name":"Station 7","type":"fire_station","lat":38.7,"lon":-121.8,"estimatedValue":1200000},
			{"name":"Somewhere","type":"shed","lat":38.8,"lon":-121.9},
			{"id":"nopos","name":"Lost","type":"school"}
		]`))
	}))
	defer srv.Close()

	c := New(config.ClientConfig{URL: srv.URL, Timeout: time.Second})
	got, err := c.Landmarks(context.Background(), geo.BoundingBox{South: 38.5, West: -122, North: 39, East: -121.5})
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, core.Landmark{ID: "h1", Name: "Mercy General", Type: core.AssetMedical, Lat: 38.6, Lon: -121.7}, got[0])
	assert.Equal(t, "42", got[1].ID)
	assert.Equal(t, core.AssetResponse, got[1].Type)
	assert.Equal(t, 1200000.0, got[1].EstimatedValue)
	assert.Equal(t, core.AssetUnknown, got[2].Type)
	assert.Equal(t, "Somewhere@38.8,-121.9", got[2].ID)
}

func TestLandmarks_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New(config.ClientConfig{URL: srv.URL})
	got, err := c.Landmarks(context.Background(), geo.QueryBox(core.DefaultOrigin, 24))
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestLandmarks_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("south") == "0" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"error":"not a list"}`))
	}))
	defer srv.Close()

	c := New(config.ClientConfig{URL: srv.URL})

	_, err := c.Landmarks(context.Background(), geo.BoundingBox{})
	assert.ErrorIs(t, err, core.ErrNetworkFailure)

	_, err = c.Landmarks(context.Background(), geo.BoundingBox{South: 1})
	assert.ErrorIs(t, err, core.ErrMalformedResponse)
	assert.Contains(t, err.Error(), Op)
}

package session

import (
	"testing"

	"github.com/emberwatch/firecommand/pkg/core"
	"github.com/stretchr/testify/assert"
)

func makeHistory(n int) core.History {
	h := make(core.History, n)
	for i := range h {
		h[i] = core.Frame{{Lat: 38.5, Lon: -121.5 + float64(i)*0.001, Intensity: 0.5}}
	}
	return h
}

func TestPlayback_LoadAutoplays(t *testing.T) {
	var p Playback
	p.Load(makeHistory(5))

	assert.Equal(t, core.PlaybackState{FrameIndex: 0, IsPlaying: true}, p.State())
	assert.True(t, p.Playing())
}

func TestPlayback_TicksStopAtLastFrame(t *testing.T) {
	const n = 6
	var p Playback
	p.Load(makeHistory(n))

	for i := 0; i < n-1; i++ {
		assert.True(t, p.Tick(), "tick %d should advance", i)
	}
	assert.Equal(t, core.PlaybackState{FrameIndex: n - 1, IsPlaying: false}, p.State())

	for i := 0; i < 3; i++ {
		assert.False(t, p.Tick())
	}
	assert.Equal(t, n-1, p.State().FrameIndex)
}

func TestPlayback_ScrubAlwaysPauses(t *testing.T) {
	for _, target := range []int{-4, 0, 2, 4, 99} {
		var p Playback
		p.Load(makeHistory(5))
		p.Scrub(target)
		assert.False(t, p.State().IsPlaying, "scrub to %d", target)
	}
}

func TestPlayback_ScrubClamps(t *testing.T) {
	var p Playback
	p.Load(makeHistory(5))

	p.Scrub(99)
	assert.Equal(t, 4, p.State().FrameIndex)
	p.Scrub(-1)
	assert.Equal(t, 0, p.State().FrameIndex)
	p.Scrub(3)
	assert.Equal(t, 3, p.State().FrameIndex)
}

func TestPlayback_Restart(t *testing.T) {
	var p Playback
	p.Load(makeHistory(5))
	p.Tick()
	p.Tick()

	p.Restart()
	assert.Equal(t, core.PlaybackState{FrameIndex: 0, IsPlaying: false}, p.State())
	assert.False(t, p.Tick(), "restart leaves playback paused")
}

func TestPlayback_ToggleFromEndStartsOver(t *testing.T) {
	var p Playback
	p.Load(makeHistory(3))
	p.Scrub(2)

	p.Toggle()
	assert.Equal(t, core.PlaybackState{FrameIndex: 0, IsPlaying: true}, p.State())

	p.Toggle()
	assert.False(t, p.State().IsPlaying)
}

func TestPlayback_SingleFrame(t *testing.T) {
	var p Playback
	p.Load(makeHistory(1))

	assert.False(t, p.State().IsPlaying)
	assert.False(t, p.Tick())
	p.Toggle()
	assert.False(t, p.State().IsPlaying)
	assert.Len(t, p.Visible(), 1)
}

func TestPlayback_EmptyHistory(t *testing.T) {
	var p Playback
	p.Load(core.History{})

	assert.False(t, p.Playing())
	assert.False(t, p.Tick())
	assert.Empty(t, p.Visible())
}

func TestPlayback_ClearDropsHistory(t *testing.T) {
	var p Playback
	p.Load(makeHistory(4))
	p.Clear()

	assert.Equal(t, 0, p.Len())
	assert.False(t, p.Playing())
}

func TestVisibleFrame_OutOfRange(t *testing.T) {
	h := makeHistory(2)
	assert.Empty(t, VisibleFrame(h, -1))
	assert.Empty(t, VisibleFrame(h, 2))
	assert.Empty(t, VisibleFrame(nil, 0))
	assert.Equal(t, h[1], VisibleFrame(h, 1))
}

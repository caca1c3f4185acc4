package session

import "github.com/emberwatch/firecommand/pkg/core"

// Playback steps a frame cursor across one history. It never wraps.
type Playback struct {
	history core.History
	index   int
	playing bool
}

// Load installs a new history at index 0 and starts playing. A single-frame
// history is already at its last index, so it does not play.
func (p *Playback) Load(h core.History) {
	p.history = h
	p.index = 0
	p.playing = len(h) > 1
}

// Clear drops the history.
func (p *Playback) Clear() {
	p.history = nil
	p.index = 0
	p.playing = false
}

// Tick advances one frame while playing. Reaching the last index stops
// playback. It reports whether the index moved.
func (p *Playback) Tick() bool {
	if !p.playing || len(p.history) == 0 {
		return false
	}
	last := len(p.history) - 1
	if p.index >= last {
		p.playing = false
		return false
	}
	p.index++
	if p.index == last {
		p.playing = false
	}
	return true
}

// Scrub jumps to index, clamped into range, and always pauses.
func (p *Playback) Scrub(index int) {
	p.playing = false
	switch {
	case len(p.history) == 0 || index < 0:
		p.index = 0
	case index >= len(p.history):
		p.index = len(p.history) - 1
	default:
		p.index = index
	}
}

// Restart rewinds to the first frame, paused.
func (p *Playback) Restart() {
	p.index = 0
	p.playing = false
}

// Toggle pauses a running playback or resumes a paused one. Resuming from
// the last frame starts over.
func (p *Playback) Toggle() {
	if p.playing {
		p.playing = false
		return
	}
	if len(p.history) < 2 {
		return
	}
	if p.index >= len(p.history)-1 {
		p.index = 0
	}
	p.playing = true
}

// Visible returns the frame under the cursor, or an empty frame.
func (p *Playback) Visible() core.Frame {
	return VisibleFrame(p.history, p.index)
}

// VisibleFrame is history[index] or an empty frame when out of range.
func VisibleFrame(h core.History, index int) core.Frame {
	if index < 0 || index >= len(h) || h[index] == nil {
		return core.Frame{}
	}
	return h[index]
}

// State returns the cursor.
func (p *Playback) State() core.PlaybackState {
	return core.PlaybackState{FrameIndex: p.index, IsPlaying: p.playing}
}

// History returns the loaded history.
func (p *Playback) History() core.History { return p.history }

// Len returns the number of frames.
func (p *Playback) Len() int { return len(p.history) }

// Playing reports whether ticks advance the cursor.
func (p *Playback) Playing() bool { return p.playing && len(p.history) > 0 }

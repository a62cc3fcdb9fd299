package replay

import "time"

// DefaultBaseFramesPerSecond is how many simulation frames a rate-1.0 clock
// traverses per wall-clock second.
const DefaultBaseFramesPerSecond = 10.0

// PlaybackClock advances a continuous (non-integer) global frame position
// over wall-clock time. The rendered frame is floor(Current()). The clock is
// independent of frame residency: it advances whether or not the window has
// data at the playhead. Not safe for concurrent use; the Session serialises
// access.
type PlaybackClock struct {
	current     float64
	totalFrames int
	rate        float64
	baseFPS     float64
	playing     bool
	lastTick    time.Time
}

// NewPlaybackClock creates a stopped clock at index 0.
func NewPlaybackClock(baseFPS float64) *PlaybackClock {
	if baseFPS <= 0 {
		baseFPS = DefaultBaseFramesPerSecond
	}
	return &PlaybackClock{rate: 1.0, baseFPS: baseFPS}
}

// SetTotalFrames fixes the dataset length and clamps the playhead into range.
func (c *PlaybackClock) SetTotalFrames(n int) {
	c.totalFrames = n
	c.current = c.clamp(c.current)
}

// Play transitions Stopped→Playing. No-op when already playing or when no
// dataset is loaded. Playing from the last frame does not rewind; the next
// Advance clamps there and stops again.
func (c *PlaybackClock) Play(now time.Time) {
	if c.playing || c.totalFrames == 0 {
		return
	}
	c.playing = true
	c.lastTick = now
}

// Pause transitions Playing→Stopped.
func (c *PlaybackClock) Pause() { c.playing = false }

// Playing reports whether the clock is advancing.
func (c *PlaybackClock) Playing() bool { return c.playing }

// Current returns the continuous playhead position.
func (c *PlaybackClock) Current() float64 { return c.current }

// Frame returns the integer index of the frame to render.
func (c *PlaybackClock) Frame() int { return int(c.current) }

// Rate returns the playback rate multiplier.
func (c *PlaybackClock) Rate() float64 { return c.rate }

// SetRate sets the rate multiplier. Non-positive rates are ignored.
func (c *PlaybackClock) SetRate(rate float64) {
	if rate > 0 {
		c.rate = rate
	}
}

// Seek moves the playhead directly, clamped to [0, totalFrames-1]. Valid in
// either state.
func (c *PlaybackClock) Seek(index float64) {
	c.current = c.clamp(index)
}

// Advance moves the playhead by the elapsed wall time since the previous
// tick. Advancement is elapsed-time based, not fixed-step, so playback speed
// stays correct regardless of achieved tick rate. Reaching the last frame
// stops the clock: end-of-data is a natural stop, not an error.
func (c *PlaybackClock) Advance(now time.Time) {
	if !c.playing {
		return
	}
	dt := now.Sub(c.lastTick).Seconds()
	c.lastTick = now
	if dt <= 0 {
		return
	}
	c.current += dt * c.rate * c.baseFPS
	if last := float64(c.totalFrames - 1); c.current >= last {
		c.current = last
		c.playing = false
	}
}

func (c *PlaybackClock) clamp(v float64) float64 {
	if c.totalFrames == 0 || v < 0 {
		return 0
	}
	if last := float64(c.totalFrames - 1); v > last {
		return last
	}
	return v
}

package replay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockAdvanceIsElapsedTimeBased(t *testing.T) {
	c := NewPlaybackClock(10.0)
	c.SetTotalFrames(1000)

	t0 := time.Now()
	c.Play(t0)
	assert.True(t, c.Playing())

	// One second at rate 1.0 and 10 fps crosses 10 frames regardless of how
	// many ticks deliver it.
	c.Advance(t0.Add(300 * time.Millisecond))
	c.Advance(t0.Add(1 * time.Second))
	assert.InDelta(t, 10.0, c.Current(), 1e-9)
	assert.Equal(t, 10, c.Frame())
}

func TestClockRateScalesAdvancement(t *testing.T) {
	c := NewPlaybackClock(10.0)
	c.SetTotalFrames(1000)
	c.SetRate(4.0)

	t0 := time.Now()
	c.Play(t0)
	c.Advance(t0.Add(1 * time.Second))
	assert.InDelta(t, 40.0, c.Current(), 1e-9)

	// Non-positive rates are ignored.
	c.SetRate(0)
	c.SetRate(-2)
	assert.Equal(t, 4.0, c.Rate())
}

func TestClockStopsAtEndOfData(t *testing.T) {
	c := NewPlaybackClock(10.0)
	c.SetTotalFrames(100)

	t0 := time.Now()
	c.Play(t0)
	c.Advance(t0.Add(1 * time.Minute))

	assert.Equal(t, 99.0, c.Current(), "playhead clamps at the last frame")
	assert.False(t, c.Playing(), "end of data stops the clock")
}

func TestClockPlayAtEndDoesNotAdvancePastLastFrame(t *testing.T) {
	c := NewPlaybackClock(10.0)
	c.SetTotalFrames(100)
	c.Seek(99)

	t0 := time.Now()
	c.Play(t0)
	assert.Equal(t, 99.0, c.Current(), "play must not move the playhead")

	c.Advance(t0.Add(100 * time.Millisecond))
	assert.Equal(t, 99.0, c.Current(), "playhead stays clamped at the last frame")
	assert.False(t, c.Playing(), "reaching the end stops the clock")
}

func TestClockPlayWithoutDatasetIsNoOp(t *testing.T) {
	c := NewPlaybackClock(10.0)
	c.Play(time.Now())
	assert.False(t, c.Playing())
}

func TestClockSeekClamps(t *testing.T) {
	c := NewPlaybackClock(10.0)
	c.SetTotalFrames(100)

	c.Seek(-5)
	assert.Equal(t, 0.0, c.Current())

	c.Seek(250)
	assert.Equal(t, 99.0, c.Current())

	c.Seek(42.5)
	assert.Equal(t, 42.5, c.Current())
	assert.Equal(t, 42, c.Frame())
}

func TestClockSeekIsValidWhilePlaying(t *testing.T) {
	c := NewPlaybackClock(10.0)
	c.SetTotalFrames(1000)

	t0 := time.Now()
	c.Play(t0)
	c.Advance(t0.Add(time.Second))
	c.Seek(500)

	assert.True(t, c.Playing(), "seek does not change playback state")
	assert.Equal(t, 500.0, c.Current())
}

func TestClockPauseFreezesPlayhead(t *testing.T) {
	c := NewPlaybackClock(10.0)
	c.SetTotalFrames(1000)

	t0 := time.Now()
	c.Play(t0)
	c.Advance(t0.Add(time.Second))
	c.Pause()
	c.Advance(t0.Add(time.Hour))

	assert.InDelta(t, 10.0, c.Current(), 1e-9)
}

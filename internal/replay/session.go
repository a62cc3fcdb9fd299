package replay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gantry-data/traffic.replay/internal/monitoring"
	"github.com/gantry-data/traffic.replay/internal/timeutil"
)

// ErrNotChunkable reports that the backend cannot serve the source in
// chunks (total_frames == 0). Callers fall back to the direct whole-file
// load path.
var ErrNotChunkable = errors.New("source not chunkable, use direct load")

// ErrEmptyDataset reports a load-fatal condition: the info call succeeded
// but the first chunk came back empty.
var ErrEmptyDataset = errors.New("dataset has no frames")

// SessionOptions carries the replay tuning knobs. Zero values fall back to
// the package defaults.
type SessionOptions struct {
	ChunkSize         int
	MaxWindow         int
	PrefetchThreshold int
	BaseFPS           float64
	TickInterval      time.Duration

	// Clock drives Run and Play. Tests substitute a timeutil.ManualClock.
	Clock timeutil.Clock
}

// FrameHandler receives the resolved frame and session status once per tick.
// frame is nil when the playhead is outside the resident window; receivers
// render a loading placeholder in that case.
type FrameHandler func(frame *Frame, status PlaybackStatus)

// Session owns the window state for one replay: the frame store, the
// playback clock and the prefetch controller. It is the single writer; every
// window mutation funnels through the store's three operations under the
// session lock, which preserves the contiguity invariant by construction.
//
// Tick ordering per display tick: the clock advances the playhead, the frame
// at floor(playhead) is resolved and handed to the frame handler, then the
// prefetch controller evaluates window slack and may issue a fetch. Chunk
// fetches are the only asynchronous suspension points.
type Session struct {
	fetcher  ChunkFetcher
	opts     SessionOptions
	tickEach time.Duration
	wall     timeutil.Clock

	mu       sync.Mutex
	store    *FrameStore
	clock    *PlaybackClock
	prefetch *PrefetchController
	info     DatasetInfo
	loaded   bool

	handler FrameHandler
}

// NewSession creates an idle session. Load or LoadDirect must be called
// before playback.
func NewSession(fetcher ChunkFetcher, opts SessionOptions) *Session {
	if opts.TickInterval <= 0 {
		opts.TickInterval = 33 * time.Millisecond
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	s := &Session{
		fetcher:  fetcher,
		opts:     opts,
		tickEach: opts.TickInterval,
		wall:     opts.Clock,
		store:    NewFrameStore(opts.MaxWindow),
		clock:    NewPlaybackClock(opts.BaseFPS),
	}
	s.prefetch = NewPrefetchController(fetcher, opts.ChunkSize, opts.PrefetchThreshold, s.spliceChunk)
	return s
}

// SetFrameHandler registers the per-tick frame sink (typically a renderer or
// a websocket broadcaster).
func (s *Session) SetFrameHandler(h FrameHandler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

// Load selects a chunk-served source: fetches the dataset info and the first
// chunk, then replaces the window wholesale. Info failure and an empty first
// chunk are load-fatal. A previously loaded dataset is only replaced once
// the new one is known to be usable, so a failed load is non-destructive.
func (s *Session) Load(ctx context.Context, sourceRef string) error {
	info, err := s.fetcher.FetchInfo(ctx, sourceRef)
	if err != nil {
		return fmt.Errorf("load %q: %w", sourceRef, err)
	}
	if info.TotalFrames == 0 {
		return fmt.Errorf("load %q: %w", sourceRef, ErrNotChunkable)
	}

	chunk := s.opts.ChunkSize
	if chunk < 1 {
		chunk = DefaultChunkSize
	}
	frames, err := s.fetcher.FetchChunk(ctx, sourceRef, 0, chunk)
	if err != nil {
		return fmt.Errorf("load %q: %w", sourceRef, err)
	}
	if len(frames) == 0 {
		return fmt.Errorf("load %q: %w", sourceRef, ErrEmptyDataset)
	}

	s.mu.Lock()
	s.info = info
	s.loaded = true
	s.store.Reset(frames, 0)
	s.clock.Pause()
	s.clock.SetTotalFrames(info.TotalFrames)
	s.clock.Seek(0)
	s.prefetch.Invalidate()
	s.mu.Unlock()

	monitoring.Logf("[replay] loaded %q: %d frames, window [0,%d)", sourceRef, info.TotalFrames, len(frames))
	return nil
}

// LoadDirect installs a fully resident dataset (whole-file and manual-import
// path). SourceRef stays empty so the prefetch controller never fetches.
func (s *Session) LoadDirect(frames []Frame, cfg RoadConfig) error {
	if len(frames) == 0 {
		return ErrEmptyDataset
	}
	s.mu.Lock()
	s.info = DatasetInfo{TotalFrames: len(frames), Config: cfg}
	s.loaded = true
	s.store.Reset(frames, 0)
	s.clock.Pause()
	s.clock.SetTotalFrames(len(frames))
	s.clock.Seek(0)
	s.prefetch.Invalidate()
	s.mu.Unlock()

	monitoring.Logf("[replay] loaded direct dataset: %d frames", len(frames))
	return nil
}

// spliceChunk applies a resolved fetch to the window. The token's source is
// compared against the current dataset first: a response for a source that
// has since been replaced is discarded. Adjacency is re-checked so a splice
// can never break contiguity.
func (s *Session) spliceChunk(tok FetchToken, frames []Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded || tok.SourceRef != s.info.SourceRef {
		monitoring.Logf("[replay] dropping stale chunk for %q (%d frames)", tok.SourceRef, len(frames))
		return
	}
	if tok.Backward {
		if tok.Offset+len(frames) != s.store.Offset() {
			monitoring.Logf("[replay] dropping non-adjacent backward chunk at %d", tok.Offset)
			return
		}
		s.store.PrependChunk(frames)
	} else {
		if tok.Offset != s.store.End() {
			monitoring.Logf("[replay] dropping non-adjacent forward chunk at %d", tok.Offset)
			return
		}
		s.store.AppendChunk(frames)
	}
}

// Tick performs one display tick: advance, resolve, render, prefetch.
func (s *Session) Tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return
	}
	s.clock.Advance(now)
	idx := s.clock.Frame()
	frame := s.store.Get(idx)
	status := s.statusLocked()
	info := s.info
	winOffset := s.store.Offset()
	winLen := s.store.Len()
	handler := s.handler
	s.mu.Unlock()

	if handler != nil {
		handler(frame, status)
	}
	s.prefetch.Evaluate(ctx, info, idx, winOffset, winLen)
}

// Run drives ticks from a time.Ticker until the context is cancelled. The
// ticker is the host's "repeating task tied to display refresh"; advancement
// stays elapsed-time based so a slow tick never slows playback.
func (s *Session) Run(ctx context.Context) {
	ticker := s.wall.NewTicker(s.tickEach)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C():
			s.Tick(ctx, now)
		}
	}
}

// Play starts playback. No-op without a dataset or when already playing.
func (s *Session) Play() {
	s.mu.Lock()
	s.clock.Play(s.wall.Now())
	s.mu.Unlock()
}

// Pause stops playback.
func (s *Session) Pause() {
	s.mu.Lock()
	s.clock.Pause()
	s.mu.Unlock()
}

// Seek moves the playhead, clamped to the dataset range. The frame at the
// target may not be resident yet; the renderer shows a placeholder until
// prefetch catches up.
func (s *Session) Seek(index float64) {
	s.mu.Lock()
	s.clock.Seek(index)
	s.mu.Unlock()
}

// SetRate sets the playback rate multiplier.
func (s *Session) SetRate(rate float64) {
	s.mu.Lock()
	s.clock.SetRate(rate)
	s.mu.Unlock()
}

// Step moves the playhead by whole frames (negative steps back).
func (s *Session) Step(delta int) {
	s.mu.Lock()
	s.clock.Seek(float64(s.clock.Frame() + delta))
	s.mu.Unlock()
}

// Frame returns the frame at the current playhead, or nil when not resident.
func (s *Session) Frame() *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Get(s.clock.Frame())
}

// Info returns the current dataset handle.
func (s *Session) Info() DatasetInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// Status returns a snapshot of playback state.
func (s *Session) Status() PlaybackStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Session) statusLocked() PlaybackStatus {
	st := PlaybackStatus{
		Source:       s.info.SourceRef,
		Playing:      s.clock.Playing(),
		Rate:         s.clock.Rate(),
		CurrentIndex: s.clock.Current(),
		TotalFrames:  s.info.TotalFrames,
		WindowOffset: s.store.Offset(),
		WindowSize:   s.store.Len(),
	}
	if f := s.store.Get(s.clock.Frame()); f != nil {
		st.Time = f.Time
	}
	return st
}

// WaitForFetch blocks until any in-flight prefetch resolves. Test helper.
func (s *Session) WaitForFetch() { s.prefetch.Wait() }

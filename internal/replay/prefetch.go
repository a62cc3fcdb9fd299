package replay

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Default tuning values. Overridable through config.ReplayConfig.
const (
	DefaultChunkSize         = 500
	DefaultMaxWindow         = 2000
	DefaultPrefetchThreshold = 100
)

// FetchToken identifies a single in-flight chunk request. It doubles as the
// re-entrancy guard (at most one token exists at a time) and the staleness
// filter: the source reference is captured at fetch start and compared at
// resolution time before any splice, so a response for a source that has
// since been replaced is discarded rather than spliced into the new window.
type FetchToken struct {
	ID        uuid.UUID
	SourceRef string
	Offset    int
	Limit     int
	Backward  bool
}

// PrefetchController decides, from the playhead position and the current
// window bounds, whether to extend the window forward or backward. Fetches
// run on a goroutine; results are delivered to the splice callback supplied
// at construction, which is responsible for the staleness check and the
// actual window mutation.
type PrefetchController struct {
	fetcher   ChunkFetcher
	chunkSize int
	threshold int
	splice    func(tok FetchToken, frames []Frame)

	mu       sync.Mutex
	inflight *FetchToken

	// Coalescing state: evaluation is a no-op while neither the floored
	// playhead index nor the window bounds have changed. A completed fetch
	// moves the bounds, so catch-up after a large seek re-triggers even at
	// a stationary playhead.
	primed     bool
	lastIdx    int
	lastOffset int
	lastEnd    int

	wg sync.WaitGroup
}

// NewPrefetchController creates a controller. chunkSize and threshold fall
// back to the package defaults when non-positive.
func NewPrefetchController(fetcher ChunkFetcher, chunkSize, threshold int, splice func(tok FetchToken, frames []Frame)) *PrefetchController {
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}
	if threshold < 1 {
		threshold = DefaultPrefetchThreshold
	}
	return &PrefetchController{
		fetcher:   fetcher,
		chunkSize: chunkSize,
		threshold: threshold,
		splice:    splice,
	}
}

// Evaluate runs the prefetch decision rule for the floored playhead index
// against the current window [winOffset, winOffset+winLen). At most one fetch
// is ever in flight; a trigger while one is pending is dropped, not queued —
// the next qualifying evaluation retries if still needed. Fetch failures and
// empty chunks are swallowed for the same reason.
func (c *PrefetchController) Evaluate(ctx context.Context, info DatasetInfo, idx, winOffset, winLen int) {
	if info.SourceRef == "" || info.TotalFrames == 0 {
		return // fully resident, nothing to fetch
	}

	c.mu.Lock()
	if c.inflight != nil {
		c.mu.Unlock()
		return
	}
	winEnd := winOffset + winLen
	if c.primed && idx == c.lastIdx && winOffset == c.lastOffset && winEnd == c.lastEnd {
		c.mu.Unlock()
		return
	}
	c.primed = true
	c.lastIdx = idx
	c.lastOffset = winOffset
	c.lastEnd = winEnd

	localIdx := idx - winOffset
	forwardSlack := winLen - localIdx
	backwardSlack := localIdx

	var tok *FetchToken
	switch {
	case forwardSlack < c.threshold && winEnd < info.TotalFrames:
		tok = &FetchToken{
			ID:        uuid.New(),
			SourceRef: info.SourceRef,
			Offset:    winEnd,
			Limit:     c.chunkSize,
		}
	case backwardSlack < c.threshold && winOffset > 0:
		limit := c.chunkSize
		offset := winOffset - limit
		if offset < 0 {
			limit = winOffset
			offset = 0
		}
		tok = &FetchToken{
			ID:        uuid.New(),
			SourceRef: info.SourceRef,
			Offset:    offset,
			Limit:     limit,
			Backward:  true,
		}
	}
	if tok == nil {
		c.mu.Unlock()
		return
	}
	c.inflight = tok
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run(ctx, *tok)
}

func (c *PrefetchController) run(ctx context.Context, tok FetchToken) {
	defer c.wg.Done()
	frames, err := c.fetcher.FetchChunk(ctx, tok.SourceRef, tok.Offset, tok.Limit)

	c.mu.Lock()
	if c.inflight != nil && c.inflight.ID == tok.ID {
		c.inflight = nil
	}
	c.mu.Unlock()

	if err != nil || len(frames) == 0 {
		// Transient; the next qualifying evaluation retries.
		return
	}
	c.splice(tok, frames)
}

// Busy reports whether a fetch is in flight.
func (c *PrefetchController) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight != nil
}

// Wait blocks until any outstanding fetch has resolved. Test helper; the
// production tick loop never blocks on prefetch.
func (c *PrefetchController) Wait() { c.wg.Wait() }

// Invalidate clears coalescing state so the next Evaluate always runs the
// decision rule. Called when the dataset is replaced.
func (c *PrefetchController) Invalidate() {
	c.mu.Lock()
	c.primed = false
	c.mu.Unlock()
}

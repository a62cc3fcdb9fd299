package replay

// FrameStore holds the resident subset of a dataset: a contiguous run of
// frames plus the global index of the first resident frame. It is a plain
// data structure; all mutation goes through AppendChunk, PrependChunk and
// Reset so the contiguity invariant holds by construction. The store is not
// safe for concurrent use; the owning Session serialises access.
type FrameStore struct {
	frames    []Frame
	offset    int // global index of frames[0]
	maxWindow int
}

// NewFrameStore creates an empty store bounded at maxWindow resident frames.
func NewFrameStore(maxWindow int) *FrameStore {
	if maxWindow < 1 {
		maxWindow = DefaultMaxWindow
	}
	return &FrameStore{maxWindow: maxWindow}
}

// Get returns the frame at the given global index, or nil if that index is
// not resident. Lookup is O(1): a subtraction and bounds check.
func (s *FrameStore) Get(globalIndex int) *Frame {
	local := globalIndex - s.offset
	if local < 0 || local >= len(s.frames) {
		return nil
	}
	return &s.frames[local]
}

// AppendChunk extends the window at the high end. If the result would exceed
// the window cap, an equal number of frames is trimmed from the low end and
// the offset advances accordingly. Callers avoid appending while the playhead
// sits inside the trim region; the store does not enforce that.
func (s *FrameStore) AppendChunk(frames []Frame) {
	if len(frames) == 0 {
		return
	}
	s.frames = append(s.frames, frames...)
	if excess := len(s.frames) - s.maxWindow; excess > 0 {
		s.frames = append(s.frames[:0:0], s.frames[excess:]...)
		s.offset += excess
	}
}

// PrependChunk extends the window at the low end and moves the offset back by
// len(frames). Overflow trims from the high end.
func (s *FrameStore) PrependChunk(frames []Frame) {
	if len(frames) == 0 {
		return
	}
	joined := make([]Frame, 0, len(frames)+len(s.frames))
	joined = append(joined, frames...)
	joined = append(joined, s.frames...)
	s.offset -= len(frames)
	if excess := len(joined) - s.maxWindow; excess > 0 {
		joined = joined[:len(joined)-excess]
	}
	s.frames = joined
}

// Reset replaces the window wholesale. Used for full-file loads and when a
// new source is selected.
func (s *FrameStore) Reset(frames []Frame, offset int) {
	s.frames = append(s.frames[:0:0], frames...)
	s.offset = offset
}

// Offset returns the global index of the first resident frame.
func (s *FrameStore) Offset() int { return s.offset }

// Len returns the number of resident frames.
func (s *FrameStore) Len() int { return len(s.frames) }

// End returns the global index one past the last resident frame.
func (s *FrameStore) End() int { return s.offset + len(s.frames) }

// MaxWindow returns the resident-frame cap.
func (s *FrameStore) MaxWindow() int { return s.maxWindow }

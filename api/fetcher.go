package api

import (
	"context"
	"errors"

	"github.com/gantry-data/traffic.replay/internal/replay"
)

// SourceFetcher adapts a local DatasetSource to the replay.ChunkFetcher
// contract, so the embedded session reads frames in-process instead of over
// HTTP loopback. The chunked windowing behaviour is identical either way.
type SourceFetcher struct {
	Source DatasetSource
}

// FetchInfo implements replay.ChunkFetcher. An unparseable file maps to
// TotalFrames == 0, the same "not chunkable" signal the HTTP info endpoint
// sends, so the direct-load fallback behaves identically in-process.
func (f *SourceFetcher) FetchInfo(ctx context.Context, sourceRef string) (replay.DatasetInfo, error) {
	info, err := f.Source.Info(sourceRef)
	var decodeErr *replay.DecodeError
	if errors.As(err, &decodeErr) {
		return replay.DatasetInfo{}, nil
	}
	return info, err
}

// FetchChunk implements replay.ChunkFetcher.
func (f *SourceFetcher) FetchChunk(ctx context.Context, sourceRef string, offset, limit int) ([]replay.Frame, error) {
	frames, _, err := f.Source.Chunk(sourceRef, offset, limit)
	return frames, err
}

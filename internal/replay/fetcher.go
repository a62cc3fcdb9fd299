package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrNotFound reports that a source reference does not resolve to a dataset.
var ErrNotFound = errors.New("dataset not found")

// DecodeError reports a malformed backend response. It is distinct from a
// transient network failure, which FetchChunk deliberately maps to an empty
// result so the prefetch controller retries on the next trigger.
type DecodeError struct {
	SourceRef string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response for %q: %v", e.SourceRef, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ChunkFetcher retrieves dataset metadata and contiguous frame ranges.
// Implementations keep no memory of prior calls and never retry internally;
// the caller decides retry policy.
type ChunkFetcher interface {
	// FetchInfo returns the dataset handle for a source. Fails with
	// ErrNotFound for an invalid source and *DecodeError for a malformed
	// response.
	FetchInfo(ctx context.Context, sourceRef string) (DatasetInfo, error)

	// FetchChunk returns up to limit frames starting at offset. It may
	// return fewer than limit at dataset end. An offset at or past the end
	// of the dataset, or a transiently unreachable backend, yields an empty
	// slice and no error: callers treat empty as "try later", not fatal.
	FetchChunk(ctx context.Context, sourceRef string, offset, limit int) ([]Frame, error)
}

// HTTPFetcher implements ChunkFetcher against the file API:
//
//	GET {base}/files/output-file-info?path=...
//	GET {base}/files/output-file-chunk?path=...&offset=...&limit=...
type HTTPFetcher struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPFetcher creates a fetcher for the given API base URL, e.g.
// "http://localhost:8080/api".
func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	return &HTTPFetcher{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchInfo implements ChunkFetcher.
func (f *HTTPFetcher) FetchInfo(ctx context.Context, sourceRef string) (DatasetInfo, error) {
	u := fmt.Sprintf("%s/files/output-file-info?path=%s", f.BaseURL, url.QueryEscape(sourceRef))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return DatasetInfo{}, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return DatasetInfo{}, fmt.Errorf("fetch info for %q: %w", sourceRef, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return DatasetInfo{}, fmt.Errorf("%q: %w", sourceRef, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return DatasetInfo{}, fmt.Errorf("fetch info for %q: unexpected status %d", sourceRef, resp.StatusCode)
	}

	var body struct {
		TotalFrames int         `json:"total_frames"`
		Config      *RoadConfig `json:"config"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return DatasetInfo{}, &DecodeError{SourceRef: sourceRef, Err: err}
	}

	info := DatasetInfo{TotalFrames: body.TotalFrames, SourceRef: sourceRef}
	if body.Config != nil {
		info.Config = *body.Config
	}
	return info, nil
}

// FetchChunk implements ChunkFetcher. Network failures return an empty slice
// so playback-time prefetch degrades to a silent retry.
func (f *HTTPFetcher) FetchChunk(ctx context.Context, sourceRef string, offset, limit int) ([]Frame, error) {
	u := fmt.Sprintf("%s/files/output-file-chunk?path=%s&offset=%s&limit=%s",
		f.BaseURL, url.QueryEscape(sourceRef), strconv.Itoa(offset), strconv.Itoa(limit))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		// Transiently unreachable: empty result, retried on next trigger.
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var body struct {
		Frames []Frame `json:"frames"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &DecodeError{SourceRef: sourceRef, Err: err}
	}
	return body.Frames, nil
}

// Package api exposes the replay service over HTTP: the chunk-serving file
// endpoints consumed by the dashboard's trajectory loader, playback control
// for the embedded replay session, and a websocket feed of playback status.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gantry-data/traffic.replay/internal/httputil"
	"github.com/gantry-data/traffic.replay/internal/monitoring"
	"github.com/gantry-data/traffic.replay/internal/replay"
	"github.com/gantry-data/traffic.replay/internal/replay/importer"
)

// Server routes file and playback requests. The session is optional: a
// server can run as a pure dataset backend.
type Server struct {
	source    DatasetSource
	session   *replay.Session
	hub       *Hub
	maxImport int64
}

// NewServer creates an API server over a dataset source. session may be nil.
// maxImportBytes caps the whole-file direct load path; zero or negative
// means the importer default.
func NewServer(source DatasetSource, session *replay.Session, maxImportBytes int64) *Server {
	if maxImportBytes <= 0 {
		maxImportBytes = importer.DefaultMaxImportBytes
	}
	return &Server{
		source:    source,
		session:   session,
		hub:       NewHub(),
		maxImport: maxImportBytes,
	}
}

// Hub returns the websocket hub for status broadcasting.
func (s *Server) Hub() *Hub { return s.hub }

// ServeMux returns the API routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/files/output-files", s.handleListFiles)
	mux.HandleFunc("/files/output-file-info", s.handleFileInfo)
	mux.HandleFunc("/files/output-file-chunk", s.handleFileChunk)
	mux.HandleFunc("/files/output-file", s.handleWholeFile)

	mux.HandleFunc("/replay/status", s.handleReplayStatus)
	mux.HandleFunc("/replay/load", s.handleReplayLoad)
	mux.HandleFunc("/replay/play", s.handleReplayPlay)
	mux.HandleFunc("/replay/pause", s.handleReplayPause)
	mux.HandleFunc("/replay/seek", s.handleReplaySeek)
	mux.HandleFunc("/replay/rate", s.handleReplayRate)
	mux.HandleFunc("/replay/step", s.handleReplayStep)

	mux.HandleFunc("/ws", s.hub.handleWS)
	return mux
}

// handleListFiles lists selectable dataset sources.
// GET /files/output-files
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	files, dir, err := s.source.List()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("list files: %v", err))
		return
	}
	if files == nil {
		files = []FileDescriptor{}
	}
	httputil.WriteJSONOK(w, map[string]interface{}{"files": files, "dir": dir})
}

// handleFileInfo returns the frame count and static config for a source.
// total_frames == 0 signals "not chunkable, use direct load".
// GET /files/output-file-info?path=<p>
func (s *Server) handleFileInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		httputil.BadRequest(w, "missing 'path' parameter")
		return
	}

	info, err := s.source.Info(path)
	var decodeErr *replay.DecodeError
	switch {
	case errors.As(err, &decodeErr):
		// Unparseable as a chunkable dataset: steer the client to the
		// direct whole-file path.
		httputil.WriteJSONOK(w, map[string]interface{}{"total_frames": 0})
		return
	case errors.Is(err, replay.ErrNotFound):
		httputil.NotFound(w, fmt.Sprintf("unknown source %q", path))
		return
	case err != nil:
		httputil.InternalServerError(w, fmt.Sprintf("file info: %v", err))
		return
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"total_frames": info.TotalFrames,
		"config":       info.Config,
	})
}

// handleFileChunk returns a contiguous frame range. Config is only included
// at offset 0. An offset at or past the end yields an empty frames array.
// GET /files/output-file-chunk?path=<p>&offset=<int>&limit=<int>
func (s *Server) handleFileChunk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		httputil.BadRequest(w, "missing 'path' parameter")
		return
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		httputil.BadRequest(w, "invalid 'offset' parameter")
		return
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		httputil.BadRequest(w, "invalid 'limit' parameter")
		return
	}

	frames, cfg, err := s.source.Chunk(path, offset, limit)
	if errors.Is(err, replay.ErrNotFound) {
		httputil.NotFound(w, fmt.Sprintf("unknown source %q", path))
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("file chunk: %v", err))
		return
	}
	if frames == nil {
		frames = []replay.Frame{}
	}

	body := map[string]interface{}{"frames": frames}
	if cfg != nil {
		body["config"] = cfg
	}
	httputil.WriteJSONOK(w, body)
}

// handleWholeFile returns a complete dataset in one response, the fallback
// for small files.
// GET /files/output-file?path=<p>
func (s *Server) handleWholeFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		httputil.BadRequest(w, "missing 'path' parameter")
		return
	}

	data, err := s.source.Whole(path)
	if errors.Is(err, replay.ErrNotFound) {
		httputil.NotFound(w, fmt.Sprintf("unknown source %q", path))
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("read file: %v", err))
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{"type": "json", "data": data})
}

// handleReplayStatus returns the embedded session's playback state.
// GET /replay/status
func (s *Server) handleReplayStatus(w http.ResponseWriter, r *http.Request) {
	if s.session == nil {
		httputil.WriteJSONError(w, http.StatusNotImplemented, "no replay session configured")
		return
	}
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.session.Status())
}

// handleReplayLoad selects a source for the embedded session.
// POST /replay/load  Body: {"path": "run-42.json"}
func (s *Server) handleReplayLoad(w http.ResponseWriter, r *http.Request) {
	if s.session == nil {
		httputil.WriteJSONError(w, http.StatusNotImplemented, "no replay session configured")
		return
	}
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var body struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Path == "" {
		httputil.BadRequest(w, "invalid request body, expected {\"path\": ...}")
		return
	}

	err := s.session.Load(r.Context(), body.Path)
	if errors.Is(err, replay.ErrNotChunkable) {
		// Small-file fallback: pull the whole dataset and load it directly.
		if derr := s.loadDirect(r.Context(), body.Path); derr != nil {
			httputil.WriteJSONError(w, http.StatusUnprocessableEntity, fmt.Sprintf("direct load failed: %v", derr))
			return
		}
		err = nil
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, replay.ErrNotFound) {
			status = http.StatusNotFound
		}
		httputil.WriteJSONError(w, status, err.Error())
		return
	}

	monitoring.Logf("[files] session loaded %q", body.Path)
	httputil.WriteJSONOK(w, s.session.Status())
}

// loadDirect fetches the whole dataset from the source and installs it in
// the session, used when the chunk path reports total_frames == 0.
func (s *Server) loadDirect(ctx context.Context, path string) error {
	_ = ctx
	data, err := s.source.Whole(path)
	if err != nil {
		return err
	}
	if int64(len(data)) > s.maxImport {
		return fmt.Errorf("import too large: %d bytes (max %d); use server-side chunked load", len(data), s.maxImport)
	}
	var body struct {
		Frames []replay.Frame     `json:"frames"`
		Config *replay.RoadConfig `json:"config"`
	}
	if uerr := json.Unmarshal(data, &body); uerr != nil || len(body.Frames) == 0 {
		// Bare frame array fallback.
		if aerr := json.Unmarshal(data, &body.Frames); aerr != nil {
			return fmt.Errorf("whole-file payload for %q is not a frame set", path)
		}
	}
	cfg := replay.RoadConfig{}
	if body.Config != nil {
		cfg = *body.Config
	}
	return s.session.LoadDirect(body.Frames, cfg)
}

// handleReplayPlay starts playback.
// POST /replay/play
func (s *Server) handleReplayPlay(w http.ResponseWriter, r *http.Request) {
	if s.session == nil {
		httputil.WriteJSONError(w, http.StatusNotImplemented, "no replay session configured")
		return
	}
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	s.session.Play()
	httputil.WriteJSONOK(w, s.session.Status())
}

// handleReplayPause stops playback.
// POST /replay/pause
func (s *Server) handleReplayPause(w http.ResponseWriter, r *http.Request) {
	if s.session == nil {
		httputil.WriteJSONError(w, http.StatusNotImplemented, "no replay session configured")
		return
	}
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	s.session.Pause()
	httputil.WriteJSONOK(w, s.session.Status())
}

// handleReplaySeek moves the playhead.
// POST /replay/seek  Body: {"index": 450}
func (s *Server) handleReplaySeek(w http.ResponseWriter, r *http.Request) {
	if s.session == nil {
		httputil.WriteJSONError(w, http.StatusNotImplemented, "no replay session configured")
		return
	}
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var body struct {
		Index float64 `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.BadRequest(w, "invalid request body")
		return
	}
	s.session.Seek(body.Index)
	httputil.WriteJSONOK(w, s.session.Status())
}

// handleReplayRate sets the playback rate multiplier.
// POST /replay/rate  Body: {"rate": 1.5}
func (s *Server) handleReplayRate(w http.ResponseWriter, r *http.Request) {
	if s.session == nil {
		httputil.WriteJSONError(w, http.StatusNotImplemented, "no replay session configured")
		return
	}
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var body struct {
		Rate float64 `json:"rate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.BadRequest(w, "invalid request body")
		return
	}
	if body.Rate <= 0 || body.Rate > 100 {
		httputil.BadRequest(w, "rate must be greater than 0 and at most 100")
		return
	}
	s.session.SetRate(body.Rate)
	httputil.WriteJSONOK(w, s.session.Status())
}

// handleReplayStep advances or rewinds the playhead by whole frames.
// POST /replay/step  Body: {"delta": -1}
func (s *Server) handleReplayStep(w http.ResponseWriter, r *http.Request) {
	if s.session == nil {
		httputil.WriteJSONError(w, http.StatusNotImplemented, "no replay session configured")
		return
	}
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var body struct {
		Delta int `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.BadRequest(w, "invalid request body")
		return
	}
	if body.Delta == 0 {
		body.Delta = 1
	}
	s.session.Step(body.Delta)
	httputil.WriteJSONOK(w, s.session.Status())
}

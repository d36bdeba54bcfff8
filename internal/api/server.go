// Package api serves the recorder status, the open segment and a live fix
// stream over HTTP.
package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/gps-recorder/internal/recorder"
	"github.com/banshee-data/gps-recorder/internal/shutdown"
	"github.com/banshee-data/gps-recorder/internal/track"
	"github.com/banshee-data/gps-recorder/internal/version"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// StatusSource reports recorder counters.
type StatusSource interface {
	Status() recorder.Status
}

// StateSource reports the shutdown state.
type StateSource interface {
	State() shutdown.State
}

// Renderer writes segments as a GPX document.
type Renderer interface {
	Render(w io.Writer, segs ...track.Segment) error
}

// AdminRoutes is implemented by components that hang debug pages off /debug/.
type AdminRoutes interface {
	AttachAdminRoutes(mux *http.ServeMux)
}

type Options struct {
	SessionID string
	Recorder  StatusSource
	State     StateSource
	Buffer    *track.Buffer
	Renderer  Renderer
	Live      *Hub
	Admin     []AdminRoutes
}

type Server struct {
	opts Options
}

func NewServer(opts Options) *Server {
	return &Server{opts: opts}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := lrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	lrw.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/segment", s.showSegment)
	if s.opts.Live != nil {
		mux.Handle("/api/live", s.opts.Live)
	}
	for _, a := range s.opts.Admin {
		a.AttachAdminRoutes(mux)
	}
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// StatusResponse is the body of /api/status.
type StatusResponse struct {
	Session  string          `json:"session"`
	Version  string          `json:"version"`
	State    string          `json:"state"`
	Recorder recorder.Status `json:"recorder"`
	Clients  int             `json:"live_clients"`
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	resp := StatusResponse{
		Session: s.opts.SessionID,
		Version: version.Version,
		State:   shutdown.Running.String(),
	}
	if s.opts.State != nil {
		resp.State = s.opts.State.State().String()
	}
	if s.opts.Recorder != nil {
		resp.Recorder = s.opts.Recorder.Status()
	}
	if s.opts.Live != nil {
		resp.Clients = s.opts.Live.Clients()
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write status")
		return
	}
}

// showSegment renders a snapshot of the open segment without sealing it.
func (s *Server) showSegment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Content-Type", "application/json")
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.opts.Buffer == nil || s.opts.Renderer == nil {
		w.Header().Set("Content-Type", "application/json")
		s.writeJSONError(w, http.StatusServiceUnavailable, "No segment buffer")
		return
	}

	snap := s.opts.Buffer.Snapshot()
	w.Header().Set("Content-Type", "application/gpx+xml")
	if r.URL.Query().Get("download") == "true" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "open-segment.gpx"))
	}
	if err := s.opts.Renderer.Render(w, snap); err != nil {
		log.Printf("api: render open segment: %v", err)
	}
}

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/persistence"
	"github.com/iqrf/iqrf-gateway-daemon-sub004/pkg/trconf"
)

// ConfigWriter runs configuration writes.
type ConfigWriter interface {
	Write(ctx context.Context, req trconf.Request) (*trconf.Result, error)
}

// History stores completed writes.
type History interface {
	Add(r *persistence.Record) error
	List(limit, offset int) ([]persistence.Record, error)
	ListDevice(addr uint16, limit int) ([]persistence.Record, error)
}

// LinkStatus reports whether the coordinator link is up.
type LinkStatus interface {
	Connected() bool
}

// Config configures the HTTP API.
type Config struct {
	// Version is reported by the health endpoint.
	Version string

	// MaxBodyBytes bounds request bodies.
	MaxBodyBytes int64

	// HistoryLimit is the default page size of the history endpoint.
	HistoryLimit int

	// Link, when set, is reported by the health endpoint.
	Link LinkStatus

	// Logger receives request logs. Nil disables logging.
	Logger *slog.Logger
}

// DefaultConfig returns the default API configuration.
func DefaultConfig() Config {
	return Config{
		Version:      "dev",
		MaxBodyBytes: 64 << 10,
		HistoryLimit: 50,
	}
}

const maxHistoryLimit = 500

// Server serves the gateway HTTP API.
type Server struct {
	cfg     Config
	mux     *http.ServeMux
	writer  ConfigWriter
	history History
}

// NewServer creates the API server. history may be nil, in which case
// writes are not recorded and the history endpoint is not served.
func NewServer(writer ConfigWriter, history History, cfg Config) *Server {
	def := DefaultConfig()
	if cfg.Version == "" {
		cfg.Version = def.Version
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}

	s := &Server{
		cfg:     cfg,
		mux:     http.NewServeMux(),
		writer:  writer,
		history: history,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/api/v1/health", s.handleHealth)
	s.mux.HandleFunc("/api/v1/trconf", s.handleWrite)
	if s.history != nil {
		s.mux.HandleFunc("/api/v1/history", s.handleHistory)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Handle runs one write request and returns its response. It is the
// transport independent core of the write endpoint.
func (s *Server) Handle(ctx context.Context, req *Request) Response {
	if err := req.Normalize(); err != nil {
		return ErrorResponse(req.Data.MsgID, err)
	}
	wreq, err := req.WriteRequest()
	if err != nil {
		return ErrorResponse(req.Data.MsgID, err)
	}

	res, err := s.writer.Write(ctx, wreq)
	resp := NewResponse(req.Data.MsgID, res, err, req.Data.ReturnVerbose)

	if res != nil && s.history != nil {
		rec := NewRecord(req.Data.MsgID, res, resp.Data.Status, resp.Data.StatusStr)
		if herr := s.history.Add(rec); herr != nil {
			s.debugLog("history add failed", "msgId", req.Data.MsgID, "error", herr)
		}
	}
	s.debugLog("write handled", "msgId", req.Data.MsgID, "status", resp.Data.Status)
	return resp
}

// handleWrite handles POST /api/v1/trconf.
func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	body := io.LimitReader(r.Body, s.cfg.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse("", fmt.Errorf("invalid request body: %w", err)))
		return
	}
	if req.MType != MTypeWriteTrConf {
		writeJSON(w, http.StatusBadRequest, ErrorResponse(req.Data.MsgID, fmt.Errorf("%w: %q", ErrUnsupportedMType, req.MType)))
		return
	}

	writeJSON(w, http.StatusOK, s.Handle(r.Context(), &req))
}

// handleHistory handles GET /api/v1/history.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"), s.cfg.HistoryLimit)
	if err != nil || limit <= 0 {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return
	}
	limit = min(limit, maxHistoryLimit)
	offset, err := queryInt(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		http.Error(w, "invalid offset", http.StatusBadRequest)
		return
	}

	var records []persistence.Record
	if a := q.Get("deviceAddr"); a != "" {
		addr, perr := strconv.ParseUint(a, 10, 16)
		if perr != nil {
			http.Error(w, "invalid deviceAddr", http.StatusBadRequest)
			return
		}
		records, err = s.history.ListDevice(uint16(addr), limit)
	} else {
		records, err = s.history.List(limit, offset)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []persistence.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// handleHealth returns the gateway health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := map[string]string{
		"status":  "ok",
		"version": s.cfg.Version,
	}
	if s.cfg.Link != nil {
		resp["link"] = "down"
		if s.cfg.Link.Connected() {
			resp["link"] = "up"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func queryInt(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) debugLog(msg string, args ...any) {
	if s.cfg.Logger != nil {
		s.cfg.Logger.Debug(msg, args...)
	}
}

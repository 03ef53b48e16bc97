//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.
// All rights reserved.
//
// If you have downloaded a copy of the tRPC source code from Tencent,
// please note that tRPC source code is licensed under the  Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.
//
//

// Package consult exposes consultation turns over HTTP as server-sent
// event streams.
package consult

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"trpc.group/trpc-go/trpc-consult-go/graph"
	"trpc.group/trpc-go/trpc-consult-go/interrupt"
	"trpc.group/trpc-go/trpc-consult-go/log"
	"trpc.group/trpc-go/trpc-consult-go/runner"
	"trpc.group/trpc-go/trpc-consult-go/session"
)

const (
	defaultBasePath = "/api"

	paramMessage   = "message"
	paramThreadID  = "thread_id"
	paramUserReply = "user_reply"
	paramLimit     = "limit"

	detailNotFound   = "Thread not found or expired"
	detailNoPending  = "No pending ask_user call to answer"
	detailBusy       = "Server is busy, retry later"
	detailStreamless = "Streaming unsupported"
)

// Server routes the consultation API.
type Server struct {
	runner         runner.Runner
	router         *mux.Router
	handler        http.Handler
	basePath       string
	allowedOrigins []string
}

// Option configures the Server instance.
type Option func(*Server)

// WithBasePath mounts the API under path. Defaults to /api.
func WithBasePath(path string) Option {
	return func(s *Server) { s.basePath = path }
}

// WithAllowedOrigins sets the CORS origins. Defaults to every origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.allowedOrigins = origins }
}

// New creates a Server serving r.
func New(r runner.Runner, opts ...Option) *Server {
	s := &Server{
		runner:         r,
		router:         mux.NewRouter(),
		basePath:       defaultBasePath,
		allowedOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.basePath = "/" + strings.Trim(s.basePath, "/")

	c := cors.New(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Type"},
	})
	s.registerRoutes()
	s.handler = c.Handler(s.router)
	return s
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := s.router
	if s.basePath != "/" {
		api = s.router.PathPrefix(s.basePath).Subrouter()
	}
	api.HandleFunc("/graph/start/stream", s.handleStartStream).Methods(http.MethodGet)
	api.HandleFunc("/graph/resume/stream", s.handleResumeStream).Methods(http.MethodGet)
	api.HandleFunc("/graph/threads/{thread_id}", s.handleThread).Methods(http.MethodGet)
	api.HandleFunc("/graph/threads/{thread_id}/history", s.handleHistory).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStartStream(w http.ResponseWriter, r *http.Request) {
	log.Infof("handleStartStream called: path=%s", r.URL.Path)
	query := r.URL.Query()
	if !query.Has(paramMessage) {
		writeDetail(w, http.StatusBadRequest, "missing query parameter: "+paramMessage)
		return
	}
	sw, err := newSSEWriter(w)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, detailStreamless)
		return
	}
	threadID, events, err := s.runner.Start(r.Context(), query.Get(paramMessage))
	if err != nil {
		writeError(w, err)
		return
	}
	sw.stream(events)
	log.Infof("handleStartStream finished for thread %s", threadID)
}

func (s *Server) handleResumeStream(w http.ResponseWriter, r *http.Request) {
	log.Infof("handleResumeStream called: path=%s", r.URL.Path)
	query := r.URL.Query()
	for _, p := range []string{paramThreadID, paramUserReply} {
		if !query.Has(p) {
			writeDetail(w, http.StatusBadRequest, "missing query parameter: "+p)
			return
		}
	}
	sw, err := newSSEWriter(w)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, detailStreamless)
		return
	}
	threadID := query.Get(paramThreadID)
	events, err := s.runner.Resume(r.Context(), threadID, query.Get(paramUserReply))
	if err != nil {
		writeError(w, err)
		return
	}
	sw.stream(events)
	log.Infof("handleResumeStream finished for thread %s", threadID)
}

func (s *Server) handleThread(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)[paramThreadID]
	log.Infof("handleThread called: thread=%s", threadID)
	st, err := s.runner.Status(r.Context(), threadID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// historyItem is one checkpoint as listed to clients.
type historyItem struct {
	CheckpointID string    `json:"checkpoint_id"`
	Step         int       `json:"step"`
	Source       string    `json:"source"`
	Next         []string  `json:"next"`
	CreatedAt    time.Time `json:"created_at"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)[paramThreadID]
	log.Infof("handleHistory called: thread=%s", threadID)
	limit := 0
	if raw := r.URL.Query().Get(paramLimit); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeDetail(w, http.StatusBadRequest, "invalid query parameter: "+paramLimit)
			return
		}
		limit = n
	}
	snaps, err := s.runner.History(r.Context(), threadID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]historyItem, 0, len(snaps))
	for _, snap := range snaps {
		next := snap.Next
		if next == nil {
			next = []string{}
		}
		items = append(items, historyItem{
			CheckpointID: snap.CheckpointID,
			Step:         snap.Step,
			Source:       snap.Source,
			Next:         next,
			CreatedAt:    snap.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

// statusOf maps runner errors onto HTTP responses.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, detailNotFound
	case errors.Is(err, interrupt.ErrNoPendingInterrupt):
		return http.StatusBadRequest, detailNoPending
	case errors.Is(err, runner.ErrMissingParameter):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, graph.ErrExecutorBusy):
		return http.StatusServiceUnavailable, detailBusy
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func writeError(w http.ResponseWriter, err error) {
	code, detail := statusOf(err)
	if code >= http.StatusInternalServerError {
		log.Errorf("consult request failed: %v", err)
	}
	writeDetail(w, code, detail)
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("write response: %v", err)
	}
}

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

package consult

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-consult-go/event"
	"trpc.group/trpc-go/trpc-consult-go/graph"
	"trpc.group/trpc-go/trpc-consult-go/graph/checkpoint/inmemory"
	"trpc.group/trpc-go/trpc-consult-go/runner"
	"trpc.group/trpc-go/trpc-consult-go/session"
	"trpc.group/trpc-go/trpc-consult-go/workflow"
)

type sseFrame struct {
	Event string
	Data  map[string]any
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	g, err := workflow.New(workflow.ScriptedRoster())
	require.NoError(t, err)
	saver := inmemory.NewSaver()
	exec, err := graph.NewExecutor(g, saver)
	require.NoError(t, err)
	r, err := runner.NewRunner(exec, session.NewRegistry(saver))
	require.NoError(t, err)
	return New(r, opts...)
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func parseSSE(t *testing.T, body string) []sseFrame {
	t.Helper()
	var frames []sseFrame
	for _, chunk := range strings.Split(body, "\n\n") {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		var f sseFrame
		for _, line := range strings.Split(chunk, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				f.Event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &f.Data))
			}
		}
		frames = append(frames, f)
	}
	return frames
}

func eventNames(frames []sseFrame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.Event
	}
	return out
}

func detail(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body["detail"]
}

func resumeURL(threadID, reply string) string {
	return fmt.Sprintf("/api/graph/resume/stream?thread_id=%s&user_reply=%s",
		url.QueryEscape(threadID), url.QueryEscape(reply))
}

func TestStartStream(t *testing.T) {
	s := newTestServer(t)
	rr := get(t, s, "/api/graph/start/stream?message="+url.QueryEscape("I have a headache"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))

	frames := parseSSE(t, rr.Body.String())
	require.Equal(t, []string{"thread", "message", "ask_user"}, eventNames(frames))
	threadID, _ := frames[0].Data["thread_id"].(string)
	require.NotEmpty(t, threadID)
	assert.Equal(t, threadID, frames[1].Data["thread_id"])
	assert.Equal(t, "GP", frames[1].Data["speaker"])
	assert.Equal(t, frames[1].Data["content"], frames[2].Data["question"])
}

func TestStartStream_MissingMessage(t *testing.T) {
	s := newTestServer(t)
	rr := get(t, s, "/api/graph/start/stream")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, detail(t, rr), "message")
}

func TestConsultationOverHTTP(t *testing.T) {
	s := newTestServer(t)
	frames := parseSSE(t, get(t, s, "/api/graph/start/stream?message=headache").Body.String())
	threadID := frames[0].Data["thread_id"].(string)

	rr := get(t, s, "/api/graph/threads/"+threadID)
	require.Equal(t, http.StatusOK, rr.Code)
	var st map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, "awaiting_user", st["status"])
	assert.NotNil(t, st["question"])

	var last sseFrame
	for _, reply := range []string{"3 days", "6", "no"} {
		rr = get(t, s, resumeURL(threadID, reply))
		require.Equal(t, http.StatusOK, rr.Code)
		frames = parseSSE(t, rr.Body.String())
		require.NotEmpty(t, frames)
		assert.Equal(t, "message", frames[0].Event)
		last = frames[len(frames)-1]
	}
	require.Equal(t, "final", last.Event)
	assert.Contains(t, last.Data["message"], "tension-type headache")

	rr = get(t, s, resumeURL(threadID, "thanks"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "No pending ask_user call to answer", detail(t, rr))

	rr = get(t, s, "/api/graph/threads/"+threadID+"/history?limit=2")
	require.Equal(t, http.StatusOK, rr.Code)
	var history []historyItem
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &history))
	require.Len(t, history, 2)
	assert.Greater(t, history[0].Step, history[1].Step)
	assert.Empty(t, history[0].Next)
}

func TestResumeStream_Errors(t *testing.T) {
	s := newTestServer(t)

	rr := get(t, s, resumeURL("missing", "3 days"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Thread not found or expired", detail(t, rr))

	rr = get(t, s, "/api/graph/resume/stream?thread_id=abc")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = get(t, s, resumeURL("", "x"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = get(t, s, "/api/graph/threads/missing")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = get(t, s, "/api/graph/threads/missing/history")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = get(t, s, "/api/graph/threads/missing/history?limit=x")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

type stubRunner struct {
	runner.Runner
	err error
}

func (s *stubRunner) Start(context.Context, string) (string, <-chan *event.Event, error) {
	return "", nil, s.err
}

func TestStartStream_Busy(t *testing.T) {
	s := New(&stubRunner{err: fmt.Errorf("start: %w", graph.ErrExecutorBusy)})
	rr := get(t, s, "/api/graph/start/stream?message=hi")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"not found", session.ErrSessionNotFound, http.StatusNotFound},
		{"missing parameter", runner.ErrMissingParameter, http.StatusBadRequest},
		{"busy", graph.ErrExecutorBusy, http.StatusServiceUnavailable},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := statusOf(fmt.Errorf("wrapped: %w", tt.err))
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestBasePathAndHealth(t *testing.T) {
	s := newTestServer(t, WithBasePath("consult/v1/"))
	assert.Equal(t, http.StatusOK, get(t, s, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(t, s, "/consult/v1/graph/start/stream?message=hi").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/graph/start/stream?message=hi").Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, WithAllowedOrigins("http://localhost:5173"))
	req := httptest.NewRequest(http.MethodOptions, "/api/graph/start/stream?message=hi", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
}

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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"trpc.group/trpc-go/trpc-consult-go/event"
	"trpc.group/trpc-go/trpc-consult-go/log"
)

var errStreamingUnsupported = errors.New("response writer cannot flush")

// sseWriter frames events as `event: <type>` plus a JSON `data:` line.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}
	return &sseWriter{w: w, flusher: flusher}, nil
}

func (s *sseWriter) writeHeader() {
	if s.started {
		return
	}
	s.started = true
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
}

func (s *sseWriter) write(e *event.Event) error {
	data, err := json.Marshal(e.Payload())
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", e.Type, err)
	}
	s.writeHeader()
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", e.Type, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// stream writes every event until events closes. After a failed write the
// rest of the events are drained unseen.
func (s *sseWriter) stream(events <-chan *event.Event) {
	var failed bool
	for e := range events {
		if failed {
			continue
		}
		if err := s.write(e); err != nil {
			log.Warnf("sse write stopped: %v", err)
			failed = true
		}
	}
	s.writeHeader()
}

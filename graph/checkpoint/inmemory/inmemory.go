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

// Package inmemory provides an in-process checkpoint saver.
package inmemory

import (
	"context"
	"sync"

	"trpc.group/trpc-go/trpc-consult-go/graph"
)

// Saver keeps checkpoints in memory, ordered by step within each lineage.
type Saver struct {
	mu sync.RWMutex
	// lineages maps lineage id to its checkpoints, oldest first.
	lineages map[string][]*graph.Checkpoint
	// maxCheckpointsPerLineage limits the number of checkpoints per lineage.
	maxCheckpointsPerLineage int
}

// NewSaver creates an in-memory saver.
func NewSaver() *Saver {
	return &Saver{
		lineages:                 make(map[string][]*graph.Checkpoint),
		maxCheckpointsPerLineage: graph.DefaultMaxCheckpointsPerLineage,
	}
}

// WithMaxCheckpointsPerLineage sets how many checkpoints a lineage keeps.
// Values <= 0 keep everything.
func (s *Saver) WithMaxCheckpointsPerLineage(max int) *Saver {
	s.maxCheckpointsPerLineage = max
	return s
}

// Get returns the latest checkpoint of lineageID.
func (s *Saver) Get(ctx context.Context, lineageID string) (*graph.Checkpoint, error) {
	if lineageID == "" {
		return nil, graph.ErrLineageIDRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cps := s.lineages[lineageID]
	if len(cps) == 0 {
		return nil, graph.ErrCheckpointNotFound
	}
	return cps[len(cps)-1].Copy(), nil
}

// GetByID returns one checkpoint of lineageID.
func (s *Saver) GetByID(ctx context.Context, lineageID, checkpointID string) (*graph.Checkpoint, error) {
	if lineageID == "" {
		return nil, graph.ErrLineageIDRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cp := range s.lineages[lineageID] {
		if cp.ID == checkpointID {
			return cp.Copy(), nil
		}
	}
	return nil, graph.ErrCheckpointNotFound
}

// List returns up to limit checkpoints, newest first.
func (s *Saver) List(ctx context.Context, lineageID string, limit int) ([]*graph.Checkpoint, error) {
	if lineageID == "" {
		return nil, graph.ErrLineageIDRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cps := s.lineages[lineageID]
	out := make([]*graph.Checkpoint, 0, len(cps))
	for i := len(cps) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, cps[i].Copy())
	}
	return out, nil
}

// Put stores a copy of cp.
func (s *Saver) Put(ctx context.Context, cp *graph.Checkpoint) error {
	if err := graph.ValidateCheckpoint(cp); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cps := s.lineages[cp.LineageID]
	stored := cp.Copy()
	replaced := false
	for i, existing := range cps {
		if existing.ID == cp.ID {
			cps[i] = stored
			replaced = true
			break
		}
	}
	if !replaced {
		// Keep step order; appends are the common case.
		i := len(cps)
		for i > 0 && cps[i-1].Step > stored.Step {
			i--
		}
		cps = append(cps, nil)
		copy(cps[i+1:], cps[i:])
		cps[i] = stored
	}
	if s.maxCheckpointsPerLineage > 0 && len(cps) > s.maxCheckpointsPerLineage {
		cps = append([]*graph.Checkpoint(nil), cps[len(cps)-s.maxCheckpointsPerLineage:]...)
	}
	s.lineages[cp.LineageID] = cps
	return nil
}

// DeleteLineage removes every checkpoint of lineageID.
func (s *Saver) DeleteLineage(ctx context.Context, lineageID string) error {
	if lineageID == "" {
		return graph.ErrLineageIDRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lineages, lineageID)
	return nil
}

// Close releases all stored checkpoints.
func (s *Saver) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lineages = make(map[string][]*graph.Checkpoint)
	return nil
}

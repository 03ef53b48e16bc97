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

// Package session is the registry of consultations: it mints session ids,
// resolves them against the checkpoint store and serialises the turns of
// each session.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"trpc.group/trpc-go/trpc-consult-go/conversation"
	"trpc.group/trpc-go/trpc-consult-go/graph"
)

var (
	// ErrSessionNotFound is returned for unknown or expired session ids.
	ErrSessionNotFound = errors.New("thread not found or expired")
	// ErrSessionIDRequired is the error for session id required.
	ErrSessionIDRequired = errors.New("sessionID is required")
)

// Session is the committed view of one consultation.
type Session struct {
	ID           string              `json:"id"`
	CheckpointID string              `json:"checkpointID"`
	Step         int                 `json:"step"`
	Values       *conversation.State `json:"values"`
	// Next holds the node that runs next; empty when the workflow is exhausted.
	Next      []string  `json:"next,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewID returns a fresh, unguessable session id.
func NewID() string {
	return uuid.NewString()
}

// Registry resolves sessions through a checkpoint store.
type Registry struct {
	saver graph.CheckpointSaver
	locks *KeyedLock
}

// NewRegistry creates a registry over saver.
func NewRegistry(saver graph.CheckpointSaver) *Registry {
	return &Registry{saver: saver, locks: NewKeyedLock()}
}

// Lookup returns the latest committed state of id.
func (r *Registry) Lookup(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrSessionIDRequired
	}
	cp, err := r.saver.Get(ctx, id)
	if errors.Is(err, graph.ErrCheckpointNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup session %s: %w", id, err)
	}
	var next []string
	for _, n := range cp.NextNodes {
		if n != graph.End {
			next = append(next, n)
		}
	}
	return &Session{
		ID:           id,
		CheckpointID: cp.ID,
		Step:         cp.Step,
		Values:       cp.ChannelValues,
		Next:         next,
		UpdatedAt:    cp.Timestamp,
	}, nil
}

// Lock acquires the turn lock of id. The returned function releases it and
// is safe to call more than once.
func (r *Registry) Lock(ctx context.Context, id string) (func(), error) {
	return r.locks.Lock(ctx, id)
}

// Busy reports whether a turn of id is running.
func (r *Registry) Busy(id string) bool {
	return r.locks.Held(id)
}

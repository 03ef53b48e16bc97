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

package graph

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"trpc.group/trpc-go/trpc-consult-go/conversation"
)

const (
	// CheckpointVersion is the current version of the checkpoint format.
	CheckpointVersion = 1

	// CheckpointSourceInput indicates the checkpoint was created from input.
	CheckpointSourceInput = "input"
	// CheckpointSourceLoop indicates the checkpoint was created from inside the loop.
	CheckpointSourceLoop = "loop"
	// CheckpointSourceUpdate indicates the checkpoint was created from an external update.
	CheckpointSourceUpdate = "update"

	// DefaultMaxCheckpointsPerLineage is the default history kept per lineage.
	DefaultMaxCheckpointsPerLineage = 100
)

// Checkpoint is the durable resumption point of a lineage (session).
type Checkpoint struct {
	// Version is the version of the checkpoint format.
	Version int `json:"v"`
	// ID is the unique identifier for this checkpoint.
	ID string `json:"id"`
	// LineageID groups the checkpoints of one session.
	LineageID string `json:"lineage_id"`
	// ParentCheckpointID is the checkpoint this one was derived from.
	ParentCheckpointID string `json:"parent_checkpoint_id,omitempty"`
	// Timestamp is when the checkpoint was created.
	Timestamp time.Time `json:"ts"`
	// Step is -1 for input and increases by one for every later checkpoint.
	Step int `json:"step"`
	// Source indicates how the checkpoint was created.
	Source string `json:"source"`
	// ChannelValues is the full conversation state.
	ChannelValues *conversation.State `json:"channel_values"`
	// UpdatedChannels lists channels written since the parent.
	UpdatedChannels []conversation.Channel `json:"updated_channels,omitempty"`
	// NextNodes contains the nodes to execute next. Empty means terminal.
	NextNodes []string `json:"next_nodes,omitempty"`
}

// NewCheckpoint creates a checkpoint of state for lineageID.
func NewCheckpoint(lineageID string, state *conversation.State, next []string) *Checkpoint {
	return &Checkpoint{
		Version:       CheckpointVersion,
		ID:            uuid.NewString(),
		LineageID:     lineageID,
		Timestamp:     time.Now().UTC(),
		Step:          -1,
		Source:        CheckpointSourceInput,
		ChannelValues: state,
		NextNodes:     next,
	}
}

// Child derives the next checkpoint of the same lineage.
func (c *Checkpoint) Child(source string, state *conversation.State, next []string,
	updated ...conversation.Channel) *Checkpoint {
	child := NewCheckpoint(c.LineageID, state, next)
	child.ParentCheckpointID = c.ID
	child.Step = c.Step + 1
	child.Source = source
	child.UpdatedChannels = updated
	return child
}

// Copy returns a deep copy.
func (c *Checkpoint) Copy() *Checkpoint {
	if c == nil {
		return nil
	}
	out := *c
	out.ChannelValues = c.ChannelValues.Clone()
	out.UpdatedChannels = append([]conversation.Channel(nil), c.UpdatedChannels...)
	out.NextNodes = append([]string(nil), c.NextNodes...)
	return &out
}

// CheckpointSaver persists checkpoints. Implementations must be safe for
// concurrent use across lineages.
type CheckpointSaver interface {
	// Get returns the latest checkpoint of lineageID or ErrCheckpointNotFound.
	Get(ctx context.Context, lineageID string) (*Checkpoint, error)
	// GetByID returns one checkpoint or ErrCheckpointNotFound.
	GetByID(ctx context.Context, lineageID, checkpointID string) (*Checkpoint, error)
	// List returns up to limit checkpoints, newest first. limit <= 0 means all.
	List(ctx context.Context, lineageID string, limit int) ([]*Checkpoint, error)
	// Put stores cp.
	Put(ctx context.Context, cp *Checkpoint) error
	// DeleteLineage removes every checkpoint of lineageID.
	DeleteLineage(ctx context.Context, lineageID string) error
	// Close releases resources held by the saver.
	Close() error
}

// ValidateCheckpoint checks the fields every saver relies on.
func ValidateCheckpoint(cp *Checkpoint) error {
	if cp == nil {
		return errors.New("checkpoint is nil")
	}
	if cp.LineageID == "" {
		return ErrLineageIDRequired
	}
	if cp.ID == "" {
		return errors.New("checkpoint id is required")
	}
	if cp.ChannelValues == nil {
		return errors.New("checkpoint has no channel values")
	}
	return nil
}

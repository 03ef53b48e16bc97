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

// Package checkpointtest holds behaviour tests shared by every
// graph.CheckpointSaver implementation.
package checkpointtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-consult-go/conversation"
	"trpc.group/trpc-go/trpc-consult-go/graph"
	"trpc.group/trpc-go/trpc-consult-go/message"
)

// Run exercises a saver built by newSaver. Each sub-test gets a fresh saver.
func Run(t *testing.T, newSaver func(t *testing.T) graph.CheckpointSaver) {
	t.Run("GetUnknownLineage", func(t *testing.T) {
		s := newSaver(t)
		_, err := s.Get(context.Background(), "missing")
		require.ErrorIs(t, err, graph.ErrCheckpointNotFound)
		_, err = s.GetByID(context.Background(), "missing", "nope")
		require.ErrorIs(t, err, graph.ErrCheckpointNotFound)
		_, err = s.Get(context.Background(), "")
		require.ErrorIs(t, err, graph.ErrLineageIDRequired)
	})

	t.Run("PutGetLatest", func(t *testing.T) {
		s := newSaver(t)
		ctx := context.Background()
		chain := buildChain(t, "lineage-a", 3)
		for _, cp := range chain {
			require.NoError(t, s.Put(ctx, cp))
		}

		got, err := s.Get(ctx, "lineage-a")
		require.NoError(t, err)
		last := chain[len(chain)-1]
		assert.Equal(t, last.ID, got.ID)
		assert.Equal(t, last.Step, got.Step)
		assert.Equal(t, last.ParentCheckpointID, got.ParentCheckpointID)
		assert.Equal(t, last.NextNodes, got.NextNodes)
		assert.Equal(t, last.Source, got.Source)

		l, ok := got.ChannelValues.Log(conversation.Specialist)
		require.True(t, ok)
		assert.Equal(t, 3, l.Len())
		require.NoError(t, got.ChannelValues.Validate())

		first, err := s.GetByID(ctx, "lineage-a", chain[0].ID)
		require.NoError(t, err)
		assert.Equal(t, -1, first.Step)
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		s := newSaver(t)
		ctx := context.Background()
		chain := buildChain(t, "lineage-b", 4)
		for _, cp := range chain {
			require.NoError(t, s.Put(ctx, cp))
		}
		all, err := s.List(ctx, "lineage-b", 0)
		require.NoError(t, err)
		require.Len(t, all, 4)
		for i, cp := range all {
			assert.Equal(t, chain[len(chain)-1-i].ID, cp.ID)
		}
		two, err := s.List(ctx, "lineage-b", 2)
		require.NoError(t, err)
		require.Len(t, two, 2)
		assert.Equal(t, chain[3].ID, two[0].ID)

		none, err := s.List(ctx, "other", 0)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("StoredCopyIsIndependent", func(t *testing.T) {
		s := newSaver(t)
		ctx := context.Background()
		cp := graph.NewCheckpoint("lineage-c", conversation.Seed("hi"), []string{"GP"})
		require.NoError(t, s.Put(ctx, cp))
		require.NoError(t, cp.ChannelValues.Append(conversation.Primary, message.AgentMessage{Content: "later"}))

		got, err := s.Get(ctx, "lineage-c")
		require.NoError(t, err)
		l, _ := got.ChannelValues.Log(conversation.Primary)
		assert.Equal(t, 1, l.Len())
	})

	t.Run("LineagesAreIsolated", func(t *testing.T) {
		s := newSaver(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, graph.NewCheckpoint("x", conversation.Seed("x"), nil)))
		require.NoError(t, s.Put(ctx, graph.NewCheckpoint("y", conversation.Seed("y"), nil)))

		require.NoError(t, s.DeleteLineage(ctx, "x"))
		_, err := s.Get(ctx, "x")
		require.ErrorIs(t, err, graph.ErrCheckpointNotFound)
		got, err := s.Get(ctx, "y")
		require.NoError(t, err)
		first, _ := got.ChannelValues.Last(conversation.Primary)
		assert.Equal(t, "y", first.Text())
	})

	t.Run("PutRejectsInvalid", func(t *testing.T) {
		s := newSaver(t)
		require.Error(t, s.Put(context.Background(), nil))
		require.ErrorIs(t, s.Put(context.Background(), graph.NewCheckpoint("", conversation.Seed("x"), nil)),
			graph.ErrLineageIDRequired)
	})
}

// buildChain returns an input checkpoint followed by n-1 loop checkpoints,
// each adding one specialist message.
func buildChain(t *testing.T, lineageID string, n int) []*graph.Checkpoint {
	t.Helper()
	state := conversation.Seed("I have a headache")
	cp := graph.NewCheckpoint(lineageID, state.Clone(), []string{"GP"})
	chain := []*graph.Checkpoint{cp}
	for i := 1; i < n; i++ {
		require.NoError(t, state.Append(conversation.Specialist, message.AgentMessage{Content: "note"}))
		cp = cp.Child(graph.CheckpointSourceLoop, state.Clone(), []string{"next"}, conversation.Specialist)
		chain = append(chain, cp)
	}
	return chain
}

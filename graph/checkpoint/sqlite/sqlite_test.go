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

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite" // Registers the "sqlite" driver.

	"trpc.group/trpc-go/trpc-consult-go/conversation"
	"trpc.group/trpc-go/trpc-consult-go/graph"
	"trpc.group/trpc-go/trpc-consult-go/graph/checkpoint/checkpointtest"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDB("sqlite", filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	return db
}

func TestSaver(t *testing.T) {
	checkpointtest.Run(t, func(t *testing.T) graph.CheckpointSaver {
		s, err := NewSaver(openDB(t))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestNewSaver_NilDB(t *testing.T) {
	_, err := NewSaver(nil)
	require.Error(t, err)
}

func TestSaver_TrimsHistory(t *testing.T) {
	s, err := NewSaver(openDB(t), WithMaxCheckpointsPerLineage(2))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	cp := graph.NewCheckpoint("l", conversation.Seed("hi"), []string{"GP"})
	require.NoError(t, s.Put(ctx, cp))
	for i := 0; i < 3; i++ {
		cp = cp.Child(graph.CheckpointSourceLoop, conversation.Seed("hi"), []string{"GP"})
		require.NoError(t, s.Put(ctx, cp))
	}
	all, err := s.List(ctx, "l", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, cp.ID, all[0].ID)
}

func TestSaver_SchemaIsIdempotent(t *testing.T) {
	db := openDB(t)
	_, err := NewSaver(db)
	require.NoError(t, err)
	s, err := NewSaver(db)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestSaver_ConcurrentLineages(t *testing.T) {
	s, err := NewSaver(openDB(t))
	require.NoError(t, err)
	defer s.Close()

	const lineages, puts = 16, 30
	errs := make(chan error, lineages*puts)
	var wg sync.WaitGroup
	for i := 0; i < lineages; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			cp := graph.NewCheckpoint(id, conversation.Seed("hi"), []string{"GP"})
			for j := 0; j < puts; j++ {
				errs <- s.Put(context.Background(), cp)
				cp = cp.Child(graph.CheckpointSourceLoop, conversation.Seed("hi"), []string{"GP"})
			}
		}(fmt.Sprintf("lineage-%d", i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	for i := 0; i < lineages; i++ {
		cps, err := s.List(context.Background(), fmt.Sprintf("lineage-%d", i), 0)
		require.NoError(t, err)
		require.Len(t, cps, puts)
	}
}

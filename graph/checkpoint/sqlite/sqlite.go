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

// Package sqlite provides a database/sql checkpoint saver for SQLite.
// The caller opens the *sql.DB with a registered driver, for example
// modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-consult-go/graph"
)

const (
	sqliteCreateCheckpoints = "CREATE TABLE IF NOT EXISTS checkpoints (" +
		"lineage_id TEXT NOT NULL, " +
		"checkpoint_id TEXT NOT NULL, " +
		"parent_checkpoint_id TEXT, " +
		"step INTEGER NOT NULL, " +
		"source TEXT NOT NULL, " +
		"ts INTEGER NOT NULL, " +
		"checkpoint_json BLOB NOT NULL, " +
		"PRIMARY KEY (lineage_id, checkpoint_id)" +
		")"

	sqliteCreateStepIndex = "CREATE INDEX IF NOT EXISTS idx_checkpoints_lineage_step " +
		"ON checkpoints (lineage_id, step)"

	sqliteInsertCheckpoint = "INSERT OR REPLACE INTO checkpoints (" +
		"lineage_id, checkpoint_id, parent_checkpoint_id, step, source, ts, checkpoint_json) " +
		"VALUES (?, ?, ?, ?, ?, ?, ?)"

	sqliteSelectLatest = "SELECT checkpoint_json FROM checkpoints " +
		"WHERE lineage_id = ? ORDER BY step DESC, ts DESC LIMIT 1"

	sqliteSelectByID = "SELECT checkpoint_json FROM checkpoints " +
		"WHERE lineage_id = ? AND checkpoint_id = ? LIMIT 1"

	sqliteSelectList = "SELECT checkpoint_json FROM checkpoints " +
		"WHERE lineage_id = ? ORDER BY step DESC, ts DESC LIMIT ?"

	sqliteTrimLineage = "DELETE FROM checkpoints WHERE lineage_id = ? AND checkpoint_id NOT IN (" +
		"SELECT checkpoint_id FROM checkpoints WHERE lineage_id = ? ORDER BY step DESC, ts DESC LIMIT ?)"

	sqliteDeleteLineage = "DELETE FROM checkpoints WHERE lineage_id = ?"
)

// Saver stores checkpoints as JSON rows.
type Saver struct {
	db                       *sql.DB
	maxCheckpointsPerLineage int
}

// Option configures a Saver.
type Option func(*Saver)

// WithMaxCheckpointsPerLineage sets how many checkpoints a lineage keeps.
// Values <= 0 keep everything.
func WithMaxCheckpointsPerLineage(max int) Option {
	return func(s *Saver) { s.maxCheckpointsPerLineage = max }
}

// busyPragmas make a connection wait for locks instead of failing with
// SQLITE_BUSY, and let readers run alongside the writer.
const busyPragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// OpenDB opens the database file at path with driver, which must be a
// registered driver that understands _pragma parameters (modernc.org/sqlite
// registers "sqlite"). All access goes through one connection so writes from
// concurrent lineages queue instead of contending for the file lock.
func OpenDB(driver, path string) (*sql.DB, error) {
	dsn := path
	if strings.Contains(dsn, "?") {
		dsn += "&" + busyPragmas
	} else {
		dsn += "?" + busyPragmas
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// NewSaver creates the schema if needed and returns a saver.
func NewSaver(db *sql.DB, opts ...Option) (*Saver, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if _, err := db.Exec(sqliteCreateCheckpoints); err != nil {
		return nil, fmt.Errorf("create checkpoints table: %w", err)
	}
	if _, err := db.Exec(sqliteCreateStepIndex); err != nil {
		return nil, fmt.Errorf("create checkpoints index: %w", err)
	}
	s := &Saver{db: db, maxCheckpointsPerLineage: graph.DefaultMaxCheckpointsPerLineage}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Get returns the latest checkpoint of lineageID.
func (s *Saver) Get(ctx context.Context, lineageID string) (*graph.Checkpoint, error) {
	if lineageID == "" {
		return nil, graph.ErrLineageIDRequired
	}
	return s.queryOne(ctx, sqliteSelectLatest, lineageID)
}

// GetByID returns one checkpoint of lineageID.
func (s *Saver) GetByID(ctx context.Context, lineageID, checkpointID string) (*graph.Checkpoint, error) {
	if lineageID == "" {
		return nil, graph.ErrLineageIDRequired
	}
	return s.queryOne(ctx, sqliteSelectByID, lineageID, checkpointID)
}

// List returns up to limit checkpoints, newest first.
func (s *Saver) List(ctx context.Context, lineageID string, limit int) ([]*graph.Checkpoint, error) {
	if lineageID == "" {
		return nil, graph.ErrLineageIDRequired
	}
	if limit <= 0 {
		limit = -1 // SQLite: no limit.
	}
	rows, err := s.db.QueryContext(ctx, sqliteSelectList, lineageID, limit)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()
	var out []*graph.Checkpoint
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		cp, err := decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	return out, nil
}

// Put stores cp and trims the lineage history.
func (s *Saver) Put(ctx context.Context, cp *graph.Checkpoint) error {
	if err := graph.ValidateCheckpoint(cp); err != nil {
		return err
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, sqliteInsertCheckpoint,
		cp.LineageID, cp.ID, cp.ParentCheckpointID, cp.Step, cp.Source,
		cp.Timestamp.UnixNano(), data); err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	if s.maxCheckpointsPerLineage > 0 {
		if _, err := tx.ExecContext(ctx, sqliteTrimLineage,
			cp.LineageID, cp.LineageID, s.maxCheckpointsPerLineage); err != nil {
			return fmt.Errorf("trim checkpoints: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}
	return nil
}

// DeleteLineage removes every checkpoint of lineageID.
func (s *Saver) DeleteLineage(ctx context.Context, lineageID string) error {
	if lineageID == "" {
		return graph.ErrLineageIDRequired
	}
	if _, err := s.db.ExecContext(ctx, sqliteDeleteLineage, lineageID); err != nil {
		return fmt.Errorf("delete lineage: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Saver) Close() error {
	return s.db.Close()
}

func (s *Saver) queryOne(ctx context.Context, query string, args ...any) (*graph.Checkpoint, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, graph.ErrCheckpointNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select checkpoint: %w", err)
	}
	return decode(data)
}

func decode(data []byte) (*graph.Checkpoint, error) {
	var cp graph.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

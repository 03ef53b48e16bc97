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

// Package redis provides a checkpoint saver backed by Redis.
//
// Each lineage uses two keys: a hash of checkpoint JSON keyed by
// checkpoint ID and a sorted set of checkpoint IDs scored by step.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"trpc.group/trpc-go/trpc-consult-go/graph"
)

const defaultKeyPrefix = "consult:ckpt"

// Saver stores checkpoints in Redis.
type Saver struct {
	client                   redis.UniversalClient
	keyPrefix                string
	ttl                      time.Duration
	maxCheckpointsPerLineage int
}

// Option configures a Saver.
type Option func(*Saver)

// WithKeyPrefix sets the prefix of every key the saver writes.
func WithKeyPrefix(prefix string) Option {
	return func(s *Saver) { s.keyPrefix = prefix }
}

// WithTTL expires a lineage after it has not been written for ttl.
// Zero keeps lineages forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Saver) { s.ttl = ttl }
}

// WithMaxCheckpointsPerLineage sets how many checkpoints a lineage keeps.
// Values <= 0 keep everything.
func WithMaxCheckpointsPerLineage(max int) Option {
	return func(s *Saver) { s.maxCheckpointsPerLineage = max }
}

// NewSaver returns a saver using client. The saver owns client and closes
// it on Close.
func NewSaver(client redis.UniversalClient, opts ...Option) (*Saver, error) {
	if client == nil {
		return nil, errors.New("redis client is nil")
	}
	s := &Saver{
		client:                   client,
		keyPrefix:                defaultKeyPrefix,
		maxCheckpointsPerLineage: graph.DefaultMaxCheckpointsPerLineage,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Saver) dataKey(lineageID string) string {
	return fmt.Sprintf("%s:%s:ckpt", s.keyPrefix, lineageID)
}

func (s *Saver) indexKey(lineageID string) string {
	return fmt.Sprintf("%s:%s:idx", s.keyPrefix, lineageID)
}

// Get returns the latest checkpoint of lineageID.
func (s *Saver) Get(ctx context.Context, lineageID string) (*graph.Checkpoint, error) {
	if lineageID == "" {
		return nil, graph.ErrLineageIDRequired
	}
	ids, err := s.client.ZRevRange(ctx, s.indexKey(lineageID), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read index of %s: %w", lineageID, err)
	}
	if len(ids) == 0 {
		return nil, graph.ErrCheckpointNotFound
	}
	return s.GetByID(ctx, lineageID, ids[0])
}

// GetByID returns one checkpoint of lineageID.
func (s *Saver) GetByID(ctx context.Context, lineageID, checkpointID string) (*graph.Checkpoint, error) {
	if lineageID == "" {
		return nil, graph.ErrLineageIDRequired
	}
	raw, err := s.client.HGet(ctx, s.dataKey(lineageID), checkpointID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, graph.ErrCheckpointNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: read checkpoint %s: %w", checkpointID, err)
	}
	return decode(raw)
}

// List returns up to limit checkpoints of lineageID, newest first.
func (s *Saver) List(ctx context.Context, lineageID string, limit int) ([]*graph.Checkpoint, error) {
	if lineageID == "" {
		return nil, graph.ErrLineageIDRequired
	}
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := s.client.ZRevRange(ctx, s.indexKey(lineageID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read index of %s: %w", lineageID, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	values, err := s.client.HMGet(ctx, s.dataKey(lineageID), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read checkpoints of %s: %w", lineageID, err)
	}
	out := make([]*graph.Checkpoint, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			// Index entry without data, left behind by an expired hash.
			continue
		}
		cp, err := decode([]byte(str))
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

// Put stores cp and trims the lineage to the configured size.
func (s *Saver) Put(ctx context.Context, cp *graph.Checkpoint) error {
	if err := graph.ValidateCheckpoint(cp); err != nil {
		return err
	}
	raw, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("redis: marshal checkpoint: %w", err)
	}
	dataKey, indexKey := s.dataKey(cp.LineageID), s.indexKey(cp.LineageID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, dataKey, cp.ID, raw)
		pipe.ZAdd(ctx, indexKey, redis.Z{Score: float64(cp.Step), Member: cp.ID})
		if s.ttl > 0 {
			pipe.Expire(ctx, dataKey, s.ttl)
			pipe.Expire(ctx, indexKey, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: store checkpoint %s: %w", cp.ID, err)
	}
	return s.trim(ctx, cp.LineageID)
}

func (s *Saver) trim(ctx context.Context, lineageID string) error {
	if s.maxCheckpointsPerLineage <= 0 {
		return nil
	}
	indexKey := s.indexKey(lineageID)
	n, err := s.client.ZCard(ctx, indexKey).Result()
	if err != nil {
		return fmt.Errorf("redis: count checkpoints of %s: %w", lineageID, err)
	}
	excess := n - int64(s.maxCheckpointsPerLineage)
	if excess <= 0 {
		return nil
	}
	stale, err := s.client.ZRange(ctx, indexKey, 0, excess-1).Result()
	if err != nil {
		return fmt.Errorf("redis: read stale checkpoints of %s: %w", lineageID, err)
	}
	members := make([]any, len(stale))
	for i, id := range stale {
		members[i] = id
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.dataKey(lineageID), stale...)
		pipe.ZRem(ctx, indexKey, members...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: trim %s: %w", lineageID, err)
	}
	return nil
}

// DeleteLineage removes every checkpoint of lineageID.
func (s *Saver) DeleteLineage(ctx context.Context, lineageID string) error {
	if lineageID == "" {
		return graph.ErrLineageIDRequired
	}
	if err := s.client.Del(ctx, s.dataKey(lineageID), s.indexKey(lineageID)).Err(); err != nil {
		return fmt.Errorf("redis: delete lineage %s: %w", lineageID, err)
	}
	return nil
}

// Close closes the underlying client.
func (s *Saver) Close() error {
	return s.client.Close()
}

func decode(raw []byte) (*graph.Checkpoint, error) {
	var cp graph.Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, fmt.Errorf("redis: unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

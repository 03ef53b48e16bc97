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

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/panjf2000/ants/v2"
	_ "modernc.org/sqlite"

	"trpc.group/trpc-go/trpc-consult-go/agent/openaiagent"
	"trpc.group/trpc-go/trpc-consult-go/config"
	"trpc.group/trpc-go/trpc-consult-go/graph"
	"trpc.group/trpc-go/trpc-consult-go/graph/checkpoint/inmemory"
	checkpointredis "trpc.group/trpc-go/trpc-consult-go/graph/checkpoint/redis"
	checkpointsqlite "trpc.group/trpc-go/trpc-consult-go/graph/checkpoint/sqlite"
	"trpc.group/trpc-go/trpc-consult-go/log"
	"trpc.group/trpc-go/trpc-consult-go/runner"
	"trpc.group/trpc-go/trpc-consult-go/session"
	redisstore "trpc.group/trpc-go/trpc-consult-go/storage/redis"
	"trpc.group/trpc-go/trpc-consult-go/telemetry/metric"
	"trpc.group/trpc-go/trpc-consult-go/telemetry/trace"
	"trpc.group/trpc-go/trpc-consult-go/workflow"
)

const (
	serviceName = "consultd"
	// sqliteDriver is registered by modernc.org/sqlite.
	sqliteDriver = "sqlite"
)

// app owns everything a consultd process runs on.
type app struct {
	runner runner.Runner

	// closers run in reverse order on Close.
	closers []func() error
}

// newApp wires telemetry, the checkpoint store, the worker pool and the
// workflow described by c.
func newApp(ctx context.Context, c *config.Config) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	// Meter first: the runner creates its counters from it.
	if c.Telemetry.Metrics {
		clean, err := metric.Start(ctx,
			metric.WithEndpoint(c.Telemetry.Endpoint),
			metric.WithProtocol(c.Telemetry.Protocol),
			metric.WithServiceName(serviceName),
		)
		if err != nil {
			return nil, fmt.Errorf("start metrics: %w", err)
		}
		a.closers = append(a.closers, clean)
	}
	if c.Telemetry.Traces {
		clean, err := trace.Start(ctx,
			trace.WithEndpoint(c.Telemetry.Endpoint),
			trace.WithProtocol(c.Telemetry.Protocol),
			trace.WithServiceName(serviceName),
		)
		if err != nil {
			return nil, fmt.Errorf("start traces: %w", err)
		}
		a.closers = append(a.closers, clean)
	}

	saver, err := newSaver(c.Checkpoint)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, saver.Close)

	g, err := workflow.New(newRoster(c.Agent))
	if err != nil {
		return nil, fmt.Errorf("build workflow: %w", err)
	}
	execOpts := []graph.ExecutorOption{
		graph.WithMaxSteps(c.Executor.MaxSteps),
		graph.WithChannelBufferSize(c.Executor.BufferSize),
	}
	if c.Executor.PoolSize > 0 {
		pool, err := ants.NewPool(c.Executor.PoolSize, ants.WithNonblocking(true))
		if err != nil {
			return nil, fmt.Errorf("create worker pool: %w", err)
		}
		a.closers = append(a.closers, func() error { pool.Release(); return nil })
		execOpts = append(execOpts, graph.WithPool(pool))
	}
	exec, err := graph.NewExecutor(g, saver, execOpts...)
	if err != nil {
		return nil, fmt.Errorf("create executor: %w", err)
	}
	a.runner, err = runner.NewRunner(exec, session.NewRegistry(saver),
		runner.WithEventBufferSize(c.Executor.BufferSize))
	if err != nil {
		return nil, fmt.Errorf("create runner: %w", err)
	}
	log.Infof("consultd ready: checkpoint=%s agents=%s", c.Checkpoint.Backend, c.Agent.Backend)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newSaver(c config.CheckpointConfig) (graph.CheckpointSaver, error) {
	switch c.Backend {
	case config.BackendSQLite:
		db, err := checkpointsqlite.OpenDB(sqliteDriver, c.SQLitePath)
		if err != nil {
			return nil, err
		}
		saver, err := checkpointsqlite.NewSaver(db,
			checkpointsqlite.WithMaxCheckpointsPerLineage(c.MaxPerLineage))
		if err != nil {
			db.Close()
			return nil, err
		}
		return saver, nil
	case config.BackendRedis:
		client, err := redisstore.NewClient(redisstore.WithClientBuilderURL(c.RedisURL))
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		saver, err := checkpointredis.NewSaver(client,
			checkpointredis.WithTTL(c.TTL),
			checkpointredis.WithMaxCheckpointsPerLineage(c.MaxPerLineage),
		)
		if err != nil {
			client.Close()
			return nil, err
		}
		return saver, nil
	case config.BackendMemory:
		return inmemory.NewSaver(), nil
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", c.Backend)
	}
}

func newRoster(c config.AgentConfig) workflow.Roster {
	if c.Backend != config.AgentOpenAI {
		return workflow.ScriptedRoster()
	}
	var opts []openaiagent.Option
	if c.APIKey != "" {
		opts = append(opts, openaiagent.WithAPIKey(c.APIKey))
	}
	if c.BaseURL != "" {
		opts = append(opts, openaiagent.WithBaseURL(c.BaseURL))
	}
	return workflow.OpenAIRoster(c.Model, opts...)
}

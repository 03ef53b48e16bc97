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
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"trpc.group/trpc-go/trpc-consult-go/conversation"
	itelemetry "trpc.group/trpc-go/trpc-consult-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-consult-go/log"
	"trpc.group/trpc-go/trpc-consult-go/message"
	"trpc.group/trpc-go/trpc-consult-go/telemetry/trace"
)

const (
	defaultChannelBufferSize = 256
	defaultMaxSteps          = 100
)

// Delta is what one step added to the conversation. Values holds only the
// channel the step wrote. A delta with Err set is the last one of a run.
type Delta struct {
	Step         int
	NodeID       string
	CheckpointID string
	Values       *conversation.State
	Err          error
}

// Snapshot is the committed state of a lineage.
type Snapshot struct {
	LineageID    string
	CheckpointID string
	Step         int
	Source       string
	Values       *conversation.State
	// Next holds the node that runs next. Empty when the workflow is exhausted.
	Next      []string
	CreatedAt time.Time
}

// Executor advances lineages through a graph.
type Executor struct {
	graph             *Graph
	saver             CheckpointSaver
	channelBufferSize int
	maxSteps          int
	pool              *ants.Pool
}

// ExecutorOption is a function that configures an Executor.
type ExecutorOption func(*ExecutorOptions)

// ExecutorOptions contains configuration options for creating an Executor.
type ExecutorOptions struct {
	// ChannelBufferSize is the buffer size for delta channels (default: 256).
	ChannelBufferSize int
	// MaxSteps is the maximum number of steps per Start or Resume (default: 100).
	MaxSteps int
	// Pool runs step drivers. Without a pool every run gets its own goroutine.
	Pool *ants.Pool
}

// WithChannelBufferSize sets the buffer size for delta channels.
func WithChannelBufferSize(size int) ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.ChannelBufferSize = size
	}
}

// WithMaxSteps sets the step limit of one run.
func WithMaxSteps(maxSteps int) ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.MaxSteps = maxSteps
	}
}

// WithPool bounds the number of concurrently running step drivers.
func WithPool(pool *ants.Pool) ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.Pool = pool
	}
}

// NewExecutor creates a graph executor.
func NewExecutor(graph *Graph, saver CheckpointSaver, opts ...ExecutorOption) (*Executor, error) {
	if graph == nil {
		return nil, errors.New("graph is nil")
	}
	if err := graph.validate(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	if saver == nil {
		return nil, errors.New("checkpoint saver is nil")
	}
	options := ExecutorOptions{
		ChannelBufferSize: defaultChannelBufferSize,
		MaxSteps:          defaultMaxSteps,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.ChannelBufferSize < 0 {
		options.ChannelBufferSize = 0
	}
	if options.MaxSteps <= 0 {
		options.MaxSteps = defaultMaxSteps
	}
	return &Executor{
		graph:             graph,
		saver:             saver,
		channelBufferSize: options.ChannelBufferSize,
		maxSteps:          options.MaxSteps,
		pool:              options.Pool,
	}, nil
}

// Graph returns the workflow the executor runs.
func (e *Executor) Graph() *Graph {
	return e.graph
}

// run is one Start or Resume invocation.
type run struct {
	lineageID  string
	checkpoint *Checkpoint
	updates    []Update
	resuming   bool
}

// Start commits the input checkpoint of a new lineage and runs from the
// entry point until the workflow halts.
func (e *Executor) Start(
	ctx context.Context,
	lineageID string,
	initial *conversation.State,
) (<-chan *Delta, error) {
	if lineageID == "" {
		return nil, ErrLineageIDRequired
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	if e.pool != nil && e.pool.Free() == 0 {
		return nil, ErrExecutorBusy
	}
	cp := NewCheckpoint(lineageID, initial.Clone(), []string{e.graph.EntryPoint()})
	if err := e.saver.Put(ctx, cp); err != nil {
		return nil, fmt.Errorf("commit input checkpoint: %w", err)
	}
	out, err := e.launch(ctx, &run{lineageID: lineageID, checkpoint: cp})
	if err != nil {
		if derr := e.saver.DeleteLineage(context.WithoutCancel(ctx), lineageID); derr != nil {
			log.Warnf("graph: drop lineage %s after failed start: %v", lineageID, derr)
		}
		return nil, err
	}
	return out, nil
}

// Resume continues lineageID from its latest checkpoint. The updates are
// appended and committed as one checkpoint before the first step. The node
// the lineage halted before runs even if it is an interrupt node.
func (e *Executor) Resume(ctx context.Context, lineageID string, updates ...Update) (<-chan *Delta, error) {
	if lineageID == "" {
		return nil, ErrLineageIDRequired
	}
	cp, err := e.saver.Get(ctx, lineageID)
	if err != nil {
		return nil, err
	}
	return e.launch(ctx, &run{
		lineageID:  lineageID,
		checkpoint: cp,
		updates:    updates,
		resuming:   true,
	})
}

// State returns the latest committed snapshot of lineageID.
func (e *Executor) State(ctx context.Context, lineageID string) (*Snapshot, error) {
	if lineageID == "" {
		return nil, ErrLineageIDRequired
	}
	cp, err := e.saver.Get(ctx, lineageID)
	if err != nil {
		return nil, err
	}
	return snapshotOf(cp), nil
}

// History returns up to limit snapshots of lineageID, newest first.
func (e *Executor) History(ctx context.Context, lineageID string, limit int) ([]*Snapshot, error) {
	if lineageID == "" {
		return nil, ErrLineageIDRequired
	}
	cps, err := e.saver.List(ctx, lineageID, limit)
	if err != nil {
		return nil, err
	}
	if len(cps) == 0 {
		return nil, ErrCheckpointNotFound
	}
	out := make([]*Snapshot, 0, len(cps))
	for _, cp := range cps {
		out = append(out, snapshotOf(cp))
	}
	return out, nil
}

func snapshotOf(cp *Checkpoint) *Snapshot {
	var next []string
	for _, n := range cp.NextNodes {
		if n != End {
			next = append(next, n)
		}
	}
	return &Snapshot{
		LineageID:    cp.LineageID,
		CheckpointID: cp.ID,
		Step:         cp.Step,
		Source:       cp.Source,
		Values:       cp.ChannelValues.Clone(),
		Next:         next,
		CreatedAt:    cp.Timestamp,
	}
}

func (e *Executor) launch(ctx context.Context, r *run) (<-chan *Delta, error) {
	out := make(chan *Delta, e.channelBufferSize)
	task := func() { e.drive(ctx, r, out) }
	if e.pool == nil {
		go task()
		return out, nil
	}
	if err := e.pool.Submit(task); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecutorBusy, err)
	}
	return out, nil
}

func (e *Executor) drive(ctx context.Context, r *run, out chan<- *Delta) {
	defer close(out)
	ctx, span := trace.Tracer.Start(ctx, "execute_graph")
	defer span.End()
	span.SetAttributes(
		attribute.String(itelemetry.KeySessionID, r.lineageID),
		attribute.Bool(itelemetry.KeyResuming, r.resuming),
	)

	err := e.executeGraph(ctx, r, out)
	if err == nil {
		return
	}
	span.SetStatus(codes.Error, err.Error())
	log.Errorf("graph: lineage %s failed: %v", r.lineageID, err)
	select {
	case out <- &Delta{Err: err}:
	case <-ctx.Done():
	}
}

// executeGraph runs r until it halts before an interrupt node, reaches End
// or fails. Cancelling ctx stops delivery only: the remaining steps still
// run and commit, so a disconnected lineage is always left at a halt.
func (e *Executor) executeGraph(ctx context.Context, r *run, out chan<- *Delta) error {
	stepCtx := context.WithoutCancel(ctx)
	delivering := true
	cp := r.checkpoint
	state := cp.ChannelValues.Clone()

	if len(r.updates) > 0 {
		touched := make([]conversation.Channel, 0, len(r.updates))
		for _, u := range r.updates {
			if err := state.Append(u.Channel, u.Message); err != nil {
				return fmt.Errorf("apply update: %w", err)
			}
			touched = append(touched, u.Channel)
		}
		next := cp.Child(CheckpointSourceUpdate, state.Clone(), cp.NextNodes, touched...)
		if err := e.saver.Put(stepCtx, next); err != nil {
			return fmt.Errorf("commit update: %w", err)
		}
		cp = next
	}

	for steps := 0; ; steps++ {
		nodeID := End
		if len(cp.NextNodes) > 0 {
			nodeID = cp.NextNodes[0]
		}
		if nodeID == End {
			log.Debugf("graph: lineage %s reached end at step %d", r.lineageID, cp.Step)
			return nil
		}
		node, ok := e.graph.Node(nodeID)
		if !ok {
			return &StepError{NodeID: nodeID, Step: cp.Step + 1, Err: fmt.Errorf("node %s not found", nodeID)}
		}
		if node.Interrupt && !(r.resuming && steps == 0) {
			log.Debugf("graph: lineage %s halted before %s", r.lineageID, nodeID)
			return nil
		}
		if steps >= e.maxSteps {
			return &StepError{NodeID: nodeID, Step: cp.Step + 1,
				Err: fmt.Errorf("%w (%d)", ErrMaxStepsExceeded, e.maxSteps)}
		}

		update, nextNodeID, err := e.executeNode(stepCtx, r.lineageID, node, state, cp.Step+1)
		if err != nil {
			return &StepError{NodeID: nodeID, Step: cp.Step + 1, Err: err}
		}
		var touched []conversation.Channel
		if update != nil {
			touched = append(touched, update.Channel)
		}
		child := cp.Child(CheckpointSourceLoop, state.Clone(), []string{nextNodeID}, touched...)
		if err := e.saver.Put(stepCtx, child); err != nil {
			return &StepError{NodeID: nodeID, Step: child.Step, Err: fmt.Errorf("commit checkpoint: %w", err)}
		}
		cp = child
		log.Debugf("graph: lineage %s step %d %s -> %s", r.lineageID, cp.Step, nodeID, nextNodeID)

		if update == nil || !delivering {
			continue
		}
		values := conversation.NewState()
		values.Set(update.Channel, message.MustLog(update.Message))
		select {
		case out <- &Delta{Step: cp.Step, NodeID: nodeID, CheckpointID: cp.ID, Values: values}:
		case <-ctx.Done():
			log.Debugf("graph: lineage %s consumer gone, finishing undelivered", r.lineageID)
			delivering = false
		}
	}
}

// executeNode runs node on state and appends its update to state.
func (e *Executor) executeNode(
	ctx context.Context,
	lineageID string,
	node *Node,
	state *conversation.State,
	step int,
) (*Update, string, error) {
	ctx, span := trace.Tracer.Start(ctx, fmt.Sprintf("execute_node %s", node.ID))
	defer span.End()
	span.SetAttributes(
		attribute.String(itelemetry.KeyNodeID, node.ID),
		attribute.String(itelemetry.KeyNodeName, node.Name),
		attribute.String(itelemetry.KeySessionID, lineageID),
		attribute.Int(itelemetry.KeyStep, step),
	)

	var update *Update
	if node.Function != nil {
		u, err := node.Function(ctx, state.Clone())
		if err != nil {
			span.SetAttributes(attribute.String(itelemetry.KeyError, err.Error()))
			span.SetStatus(codes.Error, err.Error())
			return nil, "", fmt.Errorf("node function execution failed: %w", err)
		}
		update = u
	}
	if update != nil {
		if _, ok := update.Message.(message.AgentMessage); !ok {
			return nil, "", fmt.Errorf("node %s must append an agent message, got %T", node.ID, update.Message)
		}
		if err := state.Append(update.Channel, update.Message); err != nil {
			return nil, "", err
		}
		span.SetAttributes(attribute.String(itelemetry.KeyChannel, string(update.Channel)))
	}

	next, err := e.selectNextNode(ctx, state, node.ID)
	if err != nil {
		return nil, "", err
	}
	span.SetAttributes(attribute.String(itelemetry.KeyNextNode, next))
	return update, next, nil
}

func (e *Executor) selectNextNode(
	ctx context.Context,
	state *conversation.State,
	currentNodeID string,
) (string, error) {
	if condEdge, exists := e.graph.ConditionalEdge(currentNodeID); exists {
		result, err := condEdge.Condition(ctx, state.Clone())
		if err != nil {
			return "", fmt.Errorf("conditional edge evaluation failed: %w", err)
		}
		if next, exists := condEdge.PathMap[result]; exists {
			return next, nil
		}
		return "", fmt.Errorf("condition result %s not found in path map", result)
	}
	edges := e.graph.Edges(currentNodeID)
	if len(edges) == 0 {
		// No outgoing edges, assume we should go to End.
		return End, nil
	}
	return edges[0].To, nil
}

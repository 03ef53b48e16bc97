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

// Package runner turns the graph executor into consultation turns: it
// opens sessions, commits replies and projects step deltas into outward
// events that end in exactly one terminal event.
package runner

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"

	"trpc.group/trpc-go/trpc-consult-go/conversation"
	"trpc.group/trpc-go/trpc-consult-go/event"
	"trpc.group/trpc-go/trpc-consult-go/graph"
	itelemetry "trpc.group/trpc-go/trpc-consult-go/internal/telemetry"
	"trpc.group/trpc-go/trpc-consult-go/interrupt"
	"trpc.group/trpc-go/trpc-consult-go/log"
	"trpc.group/trpc-go/trpc-consult-go/projector"
	"trpc.group/trpc-go/trpc-consult-go/session"
	cmetric "trpc.group/trpc-go/trpc-consult-go/telemetry/metric"
	"trpc.group/trpc-go/trpc-consult-go/telemetry/trace"
)

const defaultEventBufferSize = 64

// ErrMissingParameter is returned when a required input is empty.
var ErrMissingParameter = errors.New("missing required parameter")

// Turn operations and outcomes used in metrics.
const (
	operationStart  = "start"
	operationResume = "resume"

	outcomeAwaitingUser = "awaiting_user"
	outcomeTerminal     = "terminal"
	outcomeFailed       = "failed"
	outcomeCancelled    = "cancelled"
	outcomeRejected     = "rejected"
)

// Runner runs consultation turns.
type Runner interface {
	// Start opens a session seeded with text and runs its first turn.
	Start(ctx context.Context, text string) (threadID string, events <-chan *event.Event, err error)
	// Resume answers the pending question of threadID and runs the next turn.
	// It fails before streaming with session.ErrSessionNotFound or
	// interrupt.ErrNoPendingInterrupt.
	Resume(ctx context.Context, threadID, reply string) (<-chan *event.Event, error)
	// Status returns the committed view of threadID.
	Status(ctx context.Context, threadID string) (*Status, error)
	// History lists the checkpoints of threadID, newest first.
	History(ctx context.Context, threadID string, limit int) ([]*graph.Snapshot, error)
}

// Option is a function that configures a Runner.
type Option func(*Options)

// Options is the options for the Runner.
type Options struct {
	eventBufferSize int
}

// WithEventBufferSize sets the buffer of the event channels.
func WithEventBufferSize(size int) Option {
	return func(opts *Options) {
		opts.eventBufferSize = size
	}
}

type runner struct {
	exec            *graph.Executor
	registry        *session.Registry
	eventBufferSize int

	turns        metric.Int64Counter
	steps        metric.Int64Counter
	stepFailures metric.Int64Counter
}

// NewRunner creates a Runner. exec and registry must share one checkpoint
// store.
func NewRunner(exec *graph.Executor, registry *session.Registry, opts ...Option) (Runner, error) {
	if exec == nil || registry == nil {
		return nil, errors.New("runner needs an executor and a session registry")
	}
	options := Options{eventBufferSize: defaultEventBufferSize}
	for _, opt := range opts {
		opt(&options)
	}
	if options.eventBufferSize < 0 {
		options.eventBufferSize = 0
	}
	r := &runner{exec: exec, registry: registry, eventBufferSize: options.eventBufferSize}

	var err error
	if r.turns, err = cmetric.Meter.Int64Counter("consult.turns",
		metric.WithDescription("Consultation turns by operation and outcome")); err != nil {
		return nil, fmt.Errorf("create turns counter: %w", err)
	}
	if r.steps, err = cmetric.Meter.Int64Counter("consult.steps",
		metric.WithDescription("Workflow steps committed")); err != nil {
		return nil, fmt.Errorf("create steps counter: %w", err)
	}
	if r.stepFailures, err = cmetric.Meter.Int64Counter("consult.step.failures",
		metric.WithDescription("Workflow steps that failed")); err != nil {
		return nil, fmt.Errorf("create step failures counter: %w", err)
	}
	return r, nil
}

// Start implements Runner.
func (r *runner) Start(ctx context.Context, text string) (string, <-chan *event.Event, error) {
	threadID := session.NewID()
	log.Infof("runner: start %s", threadID)
	unlock, err := r.registry.Lock(ctx, threadID)
	if err != nil {
		return "", nil, err
	}
	ctx, span := trace.Tracer.Start(ctx, "consult.turn")
	span.SetAttributes(
		attribute.String(itelemetry.KeySessionID, threadID),
		attribute.String(itelemetry.KeyOperation, operationStart),
	)
	deltas, err := r.exec.Start(ctx, threadID, conversation.Seed(text))
	if err != nil {
		r.reject(ctx, span, operationStart, err)
		unlock()
		return "", nil, err
	}
	out := make(chan *event.Event, r.eventBufferSize)
	go r.stream(ctx, span, operationStart, threadID, unlock, deltas, out, event.NewThread(threadID))
	return threadID, out, nil
}

// Resume implements Runner.
func (r *runner) Resume(ctx context.Context, threadID, reply string) (<-chan *event.Event, error) {
	if threadID == "" {
		return nil, fmt.Errorf("%w: thread_id", ErrMissingParameter)
	}
	log.Infof("runner: resume %s", threadID)
	unlock, err := r.registry.Lock(ctx, threadID)
	if err != nil {
		return nil, err
	}
	ctx, span := trace.Tracer.Start(ctx, "consult.turn")
	span.SetAttributes(
		attribute.String(itelemetry.KeySessionID, threadID),
		attribute.String(itelemetry.KeyOperation, operationResume),
	)
	sess, err := r.registry.Lookup(ctx, threadID)
	if err != nil {
		r.reject(ctx, span, operationResume, err)
		unlock()
		return nil, err
	}
	channel, result, err := interrupt.Reply(sess.Values, reply)
	if err != nil {
		r.reject(ctx, span, operationResume, err)
		unlock()
		return nil, err
	}
	span.SetAttributes(attribute.String(itelemetry.KeyChannel, string(channel)))
	deltas, err := r.exec.Resume(ctx, threadID, graph.Update{Channel: channel, Message: result})
	if err != nil {
		r.reject(ctx, span, operationResume, err)
		unlock()
		return nil, err
	}
	out := make(chan *event.Event, r.eventBufferSize)
	go r.stream(ctx, span, operationResume, threadID, unlock, deltas, out, nil)
	return out, nil
}

func (r *runner) reject(ctx context.Context, span oteltrace.Span, operation string, err error) {
	span.SetStatus(codes.Error, err.Error())
	span.End()
	r.countTurn(ctx, operation, outcomeRejected)
}

func (r *runner) countTurn(ctx context.Context, operation, outcome string) {
	r.turns.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(
		attribute.String(itelemetry.KeyOperation, operation),
		attribute.String(itelemetry.KeyOutcome, outcome),
	))
}

// stream forwards projected deltas and closes the turn with one terminal
// event. The turn lock is released only after the executor has stopped,
// so a step still committing after a disconnect cannot overlap the next
// turn.
func (r *runner) stream(
	ctx context.Context,
	span oteltrace.Span,
	operation string,
	threadID string,
	unlock func(),
	deltas <-chan *graph.Delta,
	out chan<- *event.Event,
	first *event.Event,
) {
	defer close(out)
	defer unlock()
	defer span.End()

	delivering := true
	send := func(e *event.Event) {
		if !delivering {
			return
		}
		select {
		case out <- e:
		case <-ctx.Done():
			delivering = false
		}
	}
	if first != nil {
		send(first)
	}

	var failure error
	for d := range deltas {
		if d.Err != nil {
			failure = d.Err
			continue
		}
		r.steps.Add(context.WithoutCancel(ctx), 1,
			metric.WithAttributes(attribute.String(itelemetry.KeyNodeID, d.NodeID)))
		if utt, ok := projector.Project(d.Values); ok {
			send(event.NewMessage(threadID, utt.Speaker, utt.Content, event.WithStep(d.Step, d.NodeID)))
		}
	}

	if err := ctx.Err(); err != nil {
		if failure != nil {
			log.Warnf("runner: %s of %s failed after consumer left: %v", operation, threadID, failure)
			r.stepFailures.Add(context.WithoutCancel(ctx), 1)
		}
		log.Infof("runner: %s of %s finished undelivered, consumer left: %v", operation, threadID, err)
		r.countTurn(ctx, operation, outcomeCancelled)
		return
	}
	if failure != nil {
		span.SetStatus(codes.Error, failure.Error())
		r.stepFailures.Add(ctx, 1)
		r.countTurn(ctx, operation, outcomeFailed)
		send(event.NewError(threadID, failure))
		return
	}

	terminal, outcome, err := r.terminalEvent(ctx, threadID)
	if err != nil {
		log.Errorf("runner: read final state of %s: %v", threadID, err)
		span.SetStatus(codes.Error, err.Error())
		r.countTurn(ctx, operation, outcomeFailed)
		send(event.NewError(threadID, err))
		return
	}
	r.countTurn(ctx, operation, outcome)
	send(terminal)
}

func (r *runner) terminalEvent(ctx context.Context, threadID string) (*event.Event, string, error) {
	sess, err := r.registry.Lookup(ctx, threadID)
	if err != nil {
		return nil, "", err
	}
	if interrupt.IsAwaitingUser(sess.Next, r.exec.Graph()) {
		q, ok := interrupt.PendingQuestion(sess.Values)
		return event.NewAskUser(threadID, q, ok), outcomeAwaitingUser, nil
	}
	text, ok := projector.FinalText(sess.Values)
	return event.NewFinal(threadID, text, ok), outcomeTerminal, nil
}

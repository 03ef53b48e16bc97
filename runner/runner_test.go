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

package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-consult-go/agent"
	"trpc.group/trpc-go/trpc-consult-go/conversation"
	"trpc.group/trpc-go/trpc-consult-go/event"
	"trpc.group/trpc-go/trpc-consult-go/graph"
	"trpc.group/trpc-go/trpc-consult-go/graph/checkpoint/inmemory"
	"trpc.group/trpc-go/trpc-consult-go/interrupt"
	"trpc.group/trpc-go/trpc-consult-go/message"
	"trpc.group/trpc-go/trpc-consult-go/session"
	"trpc.group/trpc-go/trpc-consult-go/workflow"
)

func newTestRunner(t *testing.T, roster workflow.Roster) Runner {
	t.Helper()
	g, err := workflow.New(roster)
	require.NoError(t, err)
	saver := inmemory.NewSaver()
	exec, err := graph.NewExecutor(g, saver)
	require.NoError(t, err)
	r, err := NewRunner(exec, session.NewRegistry(saver))
	require.NoError(t, err)
	return r
}

func collect(t *testing.T, ch <-chan *event.Event) []*event.Event {
	t.Helper()
	var out []*event.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, e)
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}
}

func types(events []*event.Event) []event.Type {
	out := make([]event.Type, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func speakers(events []*event.Event) []string {
	var out []string
	for _, e := range events {
		if e.Type == event.TypeMessage {
			out = append(out, e.Speaker)
		}
	}
	return out
}

func TestHeadacheScenario(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t, workflow.ScriptedRoster())

	id, ch, err := r.Start(ctx, "I have a headache")
	require.NoError(t, err)
	events := collect(t, ch)
	require.Equal(t, []event.Type{event.TypeThread, event.TypeMessage, event.TypeAskUser}, types(events))
	assert.Equal(t, id, events[0].ThreadID)
	assert.Equal(t, "GP", events[1].Speaker)
	require.NotNil(t, events[2].Question)
	assert.Equal(t, events[1].Content, *events[2].Question)

	st, err := r.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingUser, st.State)
	askCallID := st.Channels[conversation.Primary][1].ToolCalls[0].ID

	ch, err = r.Resume(ctx, id, "3 days")
	require.NoError(t, err)
	events = collect(t, ch)
	assert.Equal(t, []event.Type{event.TypeMessage, event.TypeAskUser}, types(events))
	assert.Equal(t, []string{"Specialist"}, speakers(events), "routing token is not surfaced")

	st, err = r.Status(ctx, id)
	require.NoError(t, err)
	primary := st.Channels[conversation.Primary]
	require.Len(t, primary, 4)
	assert.Equal(t, message.KindToolResult, primary[2].Kind)
	assert.Equal(t, "3 days", primary[2].Content)
	assert.Equal(t, askCallID, primary[2].CorrelatesWith)
	assert.Equal(t, "Internal medicine", primary[3].Content)

	ch, err = r.Resume(ctx, id, "6, with some nausea")
	require.NoError(t, err)
	events = collect(t, ch)
	assert.Equal(t, []string{"Specialist", "Pathologist"}, speakers(events))
	assert.Equal(t, event.TypeAskUser, events[len(events)-1].Type)

	ch, err = r.Resume(ctx, id, "no")
	require.NoError(t, err)
	events = collect(t, ch)
	assert.Equal(t, []string{"Pathologist", "Radiologist", "Specialist"}, speakers(events))
	final := events[len(events)-1]
	require.Equal(t, event.TypeFinal, final.Type)
	require.NotNil(t, final.Message)
	assert.Contains(t, *final.Message, "tension-type headache")

	st, err = r.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StateTerminal, st.State)
	assert.Nil(t, st.Question)

	history, err := r.History(ctx, id, 0)
	require.NoError(t, err)
	for i := 1; i < len(history); i++ {
		assert.Greater(t, history[i-1].Step, history[i].Step)
	}
}

func TestResume_FailsFast(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t, workflow.ScriptedRoster())

	_, err := r.Resume(ctx, "unknown", "x")
	require.ErrorIs(t, err, session.ErrSessionNotFound)
	_, err = r.Resume(ctx, "", "x")
	require.ErrorIs(t, err, ErrMissingParameter)

	id, ch, err := r.Start(ctx, "I have a headache")
	require.NoError(t, err)
	collect(t, ch)
	for _, reply := range []string{"3 days", "6", "no"} {
		ch, err = r.Resume(ctx, id, reply)
		require.NoError(t, err)
		collect(t, ch)
	}

	before, err := r.History(ctx, id, 0)
	require.NoError(t, err)
	_, err = r.Resume(ctx, id, "anything else?")
	require.ErrorIs(t, err, interrupt.ErrNoPendingInterrupt)
	after, err := r.History(ctx, id, 0)
	require.NoError(t, err)
	assert.Equal(t, len(before), len(after))

	_, err = r.Status(ctx, "unknown")
	require.ErrorIs(t, err, session.ErrSessionNotFound)
	_, err = r.History(ctx, "unknown", 0)
	require.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestStepFailureEndsWithErrorEvent(t *testing.T) {
	ctx := context.Background()
	roster := workflow.ScriptedRoster()
	boom := errors.New("lab offline")
	roster.Pathologist = agent.Func{Name: "broken", Fn: func(context.Context, *agent.Invocation) (message.AgentMessage, error) {
		return message.AgentMessage{}, boom
	}}
	r := newTestRunner(t, roster)

	id, ch, err := r.Start(ctx, "I have a headache")
	require.NoError(t, err)
	collect(t, ch)
	ch, err = r.Resume(ctx, id, "3 days")
	require.NoError(t, err)
	collect(t, ch)

	ch, err = r.Resume(ctx, id, "6")
	require.NoError(t, err)
	events := collect(t, ch)
	require.Equal(t, []event.Type{event.TypeMessage, event.TypeError}, types(events))
	assert.Contains(t, events[1].Error, "lab offline")

	st, err := r.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StateStalled, st.State)
	assert.Equal(t, []string{workflow.NodePatho}, st.Next)
	for _, c := range conversation.Channels() {
		assert.NotEmpty(t, st.Channels[c])
	}
}

func TestFinalWithoutQuestionFromScriptedStart(t *testing.T) {
	roster := workflow.ScriptedRoster()
	roster.GP = agent.Func{Name: "gp", Fn: func(context.Context, *agent.Invocation) (message.AgentMessage, error) {
		return message.AgentMessage{Content: "Please see a doctor in person."}, nil
	}}
	r := newTestRunner(t, roster)
	_, ch, err := r.Start(context.Background(), "hello")
	require.NoError(t, err)
	events := collect(t, ch)
	require.Equal(t, []event.Type{event.TypeThread, event.TypeMessage, event.TypeFinal}, types(events))
	require.NotNil(t, events[2].Message)
	// The specialist channel still holds the opening message, which wins.
	assert.Equal(t, "hello", *events[2].Message)
}

func TestAskWithoutQuestion(t *testing.T) {
	roster := workflow.ScriptedRoster()
	roster.GP = agent.Func{Name: "gp", Fn: func(context.Context, *agent.Invocation) (message.AgentMessage, error) {
		return message.AgentMessage{ToolCalls: []message.ToolCall{{ID: "c1", Name: message.ToolAskUser}}}, nil
	}}
	r := newTestRunner(t, roster)
	_, ch, err := r.Start(context.Background(), "hello")
	require.NoError(t, err)
	events := collect(t, ch)
	require.Equal(t, []event.Type{event.TypeThread, event.TypeAskUser}, types(events))
	assert.Nil(t, events[1].Question)
}

func TestConcurrentResumesAreSerialised(t *testing.T) {
	ctx := context.Background()
	r := newTestRunner(t, workflow.ScriptedRoster())
	id, ch, err := r.Start(ctx, "I have a headache")
	require.NoError(t, err)
	collect(t, ch)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ch, err := r.Resume(ctx, id, "3 days")
			results[i] = err
			if err == nil {
				collect(t, ch)
			}
		}(i)
	}
	wg.Wait()
	// Each resume answered a different pending question.
	assert.NoError(t, results[0])
	assert.NoError(t, results[1])

	st, err := r.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingUser, st.State)
	assert.Equal(t, []string{workflow.AskNode(workflow.NodePatho)}, st.Next)
}

func TestConsumerDisconnectStillHaltsAtQuestion(t *testing.T) {
	r := newTestRunner(t, workflow.ScriptedRoster())
	ctx, cancel := context.WithCancel(context.Background())
	id, ch, err := r.Start(ctx, "I have a headache")
	require.NoError(t, err)
	cancel()
	for _, e := range collect(t, ch) {
		assert.NotEqual(t, event.TypeError, e.Type)
	}

	st, err := r.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingUser, st.State)
	assert.Equal(t, []string{workflow.AskNode(workflow.NodeGP)}, st.Next)
	for _, c := range conversation.Channels() {
		assert.NotEmpty(t, st.Channels[c])
	}

	ch, err = r.Resume(context.Background(), id, "3 days")
	require.NoError(t, err)
	events := collect(t, ch)
	require.NotEmpty(t, events)
	assert.Equal(t, event.TypeAskUser, events[len(events)-1].Type)
}

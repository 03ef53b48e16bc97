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

package workflow

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-consult-go/agent"
	"trpc.group/trpc-go/trpc-consult-go/conversation"
	"trpc.group/trpc-go/trpc-consult-go/graph"
	"trpc.group/trpc-go/trpc-consult-go/graph/checkpoint/inmemory"
	"trpc.group/trpc-go/trpc-consult-go/interrupt"
	"trpc.group/trpc-go/trpc-consult-go/message"
	"trpc.group/trpc-go/trpc-consult-go/tool"
)

func nodesOf(t *testing.T, ch <-chan *graph.Delta) []string {
	t.Helper()
	var nodes []string
	timeout := time.After(5 * time.Second)
	for {
		select {
		case d, ok := <-ch:
			if !ok {
				return nodes
			}
			require.NoError(t, d.Err)
			nodes = append(nodes, d.NodeID)
		case <-timeout:
			t.Fatal("timed out")
		}
	}
}

func TestNew_DeclaresAskNodes(t *testing.T) {
	g, err := New(ScriptedRoster())
	require.NoError(t, err)

	want := []string{
		"Dermat_AskUser", "ENT_AskUser", "GP_AskUser", "Gynec_AskUser", "IntMed_AskUser",
		"Ophthal_AskUser", "Ortho_AskUser", "Patho_AskUser", "Pedia_AskUser", "Psych_AskUser",
		"Radio_AskUser",
	}
	assert.Equal(t, want, g.InterruptNodes())

	asks := AskNodes()
	sort.Strings(asks)
	assert.Equal(t, want, asks)
	assert.Equal(t, NodeGP, g.EntryPoint())

	id, ok := AgentOf("Patho_AskUser")
	require.True(t, ok)
	assert.Equal(t, NodePatho, id)
	_, ok = AgentOf("Patho")
	assert.False(t, ok)
}

func TestNew_IncompleteRoster(t *testing.T) {
	r := ScriptedRoster()
	delete(r.Specialists, conversation.ENT)
	r.GP = nil
	_, err := New(r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ent")
	assert.Contains(t, err.Error(), "GP")
}

func resume(t *testing.T, exec *graph.Executor, id, reply string) []string {
	t.Helper()
	snap, err := exec.State(context.Background(), id)
	require.NoError(t, err)
	require.True(t, interrupt.IsAwaitingUser(snap.Next, exec.Graph()))
	c, result, err := interrupt.Reply(snap.Values, reply)
	require.NoError(t, err)
	deltas, err := exec.Resume(context.Background(), id, graph.Update{Channel: c, Message: result})
	require.NoError(t, err)
	return nodesOf(t, deltas)
}

func TestHeadacheConsultation(t *testing.T) {
	g, err := New(ScriptedRoster())
	require.NoError(t, err)
	exec, err := graph.NewExecutor(g, inmemory.NewSaver())
	require.NoError(t, err)
	ctx := context.Background()

	deltas, err := exec.Start(ctx, "s1", conversation.Seed("I have a headache"))
	require.NoError(t, err)
	assert.Equal(t, []string{NodeGP}, nodesOf(t, deltas))

	assert.Equal(t, []string{NodeGP, NodeIntMed}, resume(t, exec, "s1", "3 days"))
	assert.Equal(t, []string{NodeIntMed, NodePatho}, resume(t, exec, "s1", "6, no fever"))
	assert.Equal(t, []string{NodePatho, NodeRadio, NodeIntMed}, resume(t, exec, "s1", "no"))

	snap, err := exec.State(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, snap.Next)
	assert.Equal(t, 0, interrupt.PendingCount(snap.Values))
	last, ok := snap.Values.Last(conversation.Specialist)
	require.True(t, ok)
	assert.Contains(t, last.Text(), "tension-type headache")
	route, _ := snap.Values.Last(conversation.Primary)
	assert.Equal(t, "Internal medicine", route.Text())
}

func TestRouting_KneeGoesToOrthopedics(t *testing.T) {
	g, err := New(ScriptedRoster())
	require.NoError(t, err)
	exec, err := graph.NewExecutor(g, inmemory.NewSaver())
	require.NoError(t, err)

	deltas, err := exec.Start(context.Background(), "s1", conversation.Seed("My knee hurts"))
	require.NoError(t, err)
	nodesOf(t, deltas)
	assert.Equal(t, []string{NodeGP, NodeOrtho}, resume(t, exec, "s1", "two weeks"))
	snap, err := exec.State(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{AskNode(NodeOrtho)}, snap.Next)
}

func TestAgentFailureIsStepFailure(t *testing.T) {
	r := ScriptedRoster()
	r.GP = agent.Func{Name: "broken", Fn: func(context.Context, *agent.Invocation) (message.AgentMessage, error) {
		return message.AgentMessage{}, errors.New("model offline")
	}}
	g, err := New(r)
	require.NoError(t, err)
	exec, err := graph.NewExecutor(g, inmemory.NewSaver())
	require.NoError(t, err)

	deltas, err := exec.Start(context.Background(), "s1", conversation.Seed("hi"))
	require.NoError(t, err)
	d := <-deltas
	require.NotNil(t, d)
	assert.ErrorIs(t, d.Err, graph.ErrStepExecutionFailed)
}

func TestSpecialistTranscript_AttachesReports(t *testing.T) {
	s := conversation.Seed("I have a headache")
	order := message.AgentMessage{Content: "Tests please", ToolCalls: []message.ToolCall{
		{ID: "o1", Name: tool.ToolOrderTests, Args: map[string]any{"tests": []any{"CBC", "Head CT"}}},
	}}
	require.NoError(t, s.Append(conversation.Specialist, order))

	// No reports yet.
	got := specialistTranscript(s)
	require.Len(t, got, 3)
	assert.Equal(t, message.ToolResultMessage{Content: pendingOrderResult, CorrelatesWith: "o1"}, got[2])

	require.NoError(t, s.Append(conversation.Pathology, message.AgentMessage{Content: "Labs normal."}))
	require.NoError(t, s.Append(conversation.Radiology, message.AgentMessage{Content: "CT clear."}))
	got = specialistTranscript(s)
	require.Len(t, got, 3)
	assert.Equal(t, message.ToolResultMessage{Content: "Labs normal.\nCT clear.", CorrelatesWith: "o1"}, got[2])

	l, _ := s.Log(conversation.Specialist)
	assert.Equal(t, 2, l.Len(), "reports are not written to the channel")

	status := caseStatus(s)
	assert.Contains(t, status, "Patient: I have a headache")
	assert.Contains(t, status, "Tests ordered: CBC, Head CT")

	transcript := helperTranscript(conversation.Pathology)(s)
	require.Len(t, transcript, 3)
	assert.Equal(t, status, transcript[0].Text())
}

func TestRouteRadiology_FallsBackToEnd(t *testing.T) {
	s := conversation.Seed("hi")
	next, err := routeRadiology(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, graph.End, next)

	require.NoError(t, s.Append(conversation.Primary, message.AgentMessage{Content: " dermatologist "}))
	next, err = routeRadiology(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, NodeDermat, next)
}

func TestGPInstructionListsVocabulary(t *testing.T) {
	for _, sp := range conversation.Specialties() {
		assert.Contains(t, gpInstruction, sp.Token())
		assert.True(t, conversation.IsRoutingToken(sp.Token()))
	}
}

// requirePaired fails unless every tool call is directly followed by
// results for all calls of its message.
func requirePaired(t *testing.T, msgs []message.Message) {
	t.Helper()
	for i, m := range msgs {
		am, ok := m.(message.AgentMessage)
		if !ok {
			continue
		}
		for j, call := range am.ToolCalls {
			k := i + 1 + j
			require.Less(t, k, len(msgs), "call %s has no result", call.ID)
			r, ok := msgs[k].(message.ToolResultMessage)
			require.True(t, ok, "call %s is followed by %T", call.ID, msgs[k])
			require.Equal(t, call.ID, r.CorrelatesWith)
		}
	}
}

func askCall(id, q string) message.ToolCall {
	return message.ToolCall{ID: id, Name: message.ToolAskUser, Args: map[string]any{"question": q}}
}

func orderCall(id string) message.ToolCall {
	return message.ToolCall{ID: id, Name: tool.ToolOrderTests, Args: map[string]any{"tests": []any{"CBC"}}}
}

func TestSpecialistTranscript_AnswersEveryCall(t *testing.T) {
	tests := []struct {
		name  string
		build func(t *testing.T, s *conversation.State)
		want  map[string]string
	}{
		{
			name: "question after the reports",
			build: func(t *testing.T, s *conversation.State) {
				require.NoError(t, s.Append(conversation.Specialist, message.AgentMessage{ToolCalls: []message.ToolCall{orderCall("o1")}}))
				require.NoError(t, s.Append(conversation.Pathology, message.AgentMessage{Content: "Labs normal."}))
				require.NoError(t, s.Append(conversation.Radiology, message.AgentMessage{Content: "CT clear."}))
				require.NoError(t, s.Append(conversation.Specialist, message.AgentMessage{Content: "Any fever?", ToolCalls: []message.ToolCall{askCall("a1", "Any fever?")}}))
				require.NoError(t, s.Append(conversation.Specialist, message.ToolResultMessage{Content: "no", CorrelatesWith: "a1"}))
			},
			want: map[string]string{"o1": "Labs normal.\nCT clear.", "a1": "no"},
		},
		{
			name: "order sent with a question",
			build: func(t *testing.T, s *conversation.State) {
				require.NoError(t, s.Append(conversation.Specialist, message.AgentMessage{ToolCalls: []message.ToolCall{askCall("a1", "Any fever?"), orderCall("o1")}}))
				require.NoError(t, s.Append(conversation.Specialist, message.ToolResultMessage{Content: "no", CorrelatesWith: "a1"}))
			},
			want: map[string]string{"a1": "no", "o1": unsentOrderResult},
		},
		{
			name: "two questions in one message",
			build: func(t *testing.T, s *conversation.State) {
				require.NoError(t, s.Append(conversation.Specialist, message.AgentMessage{ToolCalls: []message.ToolCall{askCall("a1", "Fever?"), askCall("a2", "Nausea?")}}))
				require.NoError(t, s.Append(conversation.Specialist, message.ToolResultMessage{Content: "no", CorrelatesWith: "a1"}))
			},
			want: map[string]string{"a1": "no", "a2": unansweredResult},
		},
		{
			name: "second round of tests",
			build: func(t *testing.T, s *conversation.State) {
				require.NoError(t, s.Append(conversation.Specialist, message.AgentMessage{ToolCalls: []message.ToolCall{orderCall("o1")}}))
				require.NoError(t, s.Append(conversation.Pathology, message.AgentMessage{Content: "Labs normal."}))
				require.NoError(t, s.Append(conversation.Radiology, message.AgentMessage{Content: "CT clear."}))
				require.NoError(t, s.Append(conversation.Specialist, message.AgentMessage{ToolCalls: []message.ToolCall{orderCall("o2")}}))
				require.NoError(t, s.Append(conversation.Pathology, message.AgentMessage{Content: "Ferritin low."}))
				require.NoError(t, s.Append(conversation.Radiology, message.AgentMessage{Content: ""}))
			},
			want: map[string]string{"o1": "Labs normal.\nCT clear.", "o2": "Ferritin low."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := conversation.Seed("I feel dizzy")
			tt.build(t, s)
			got := specialistTranscript(s)
			requirePaired(t, got)
			results := make(map[string]string)
			for _, m := range got {
				if r, ok := m.(message.ToolResultMessage); ok {
					results[r.CorrelatesWith] = r.Content
				}
			}
			assert.Equal(t, tt.want, results)
		})
	}
}

func TestHelperAndPrimaryTranscripts_AnswerEveryCall(t *testing.T) {
	s := conversation.Seed("I feel dizzy")
	require.NoError(t, s.Append(conversation.Primary, message.AgentMessage{ToolCalls: []message.ToolCall{askCall("g1", "Since when?"), askCall("g2", "Fever?")}}))
	require.NoError(t, s.Append(conversation.Primary, message.ToolResultMessage{Content: "today", CorrelatesWith: "g1"}))
	require.NoError(t, s.Append(conversation.Pathology, message.AgentMessage{ToolCalls: []message.ToolCall{askCall("p1", "Fasting?")}}))

	primary := primaryTranscript(s)
	requirePaired(t, primary)
	assert.Len(t, primary, 4)

	helper := helperTranscript(conversation.Pathology)(s)
	requirePaired(t, helper)
	assert.Equal(t, message.ToolResultMessage{Content: unansweredResult, CorrelatesWith: "p1"}, helper[len(helper)-1])
}

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

package interrupt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-consult-go/conversation"
	"trpc.group/trpc-go/trpc-consult-go/message"
)

type points map[string]bool

func (p points) IsInterruptNode(id string) bool { return p[id] }

func ask(id, question string) message.AgentMessage {
	args := map[string]any{}
	if question != "" {
		args["question"] = question
	}
	return message.AgentMessage{
		Content:   question,
		ToolCalls: []message.ToolCall{{ID: id, Name: message.ToolAskUser, Args: args}},
	}
}

func TestIsAwaitingUser(t *testing.T) {
	p := points{"GP_AskUser": true}
	assert.True(t, IsAwaitingUser([]string{"GP_AskUser"}, p))
	assert.False(t, IsAwaitingUser([]string{"GP"}, p))
	assert.False(t, IsAwaitingUser(nil, p))
}

func TestPendingQuestion(t *testing.T) {
	tests := []struct {
		name     string
		build    func(s *conversation.State)
		want     string
		wantOK   bool
		channel  conversation.Channel
		wantCall bool
	}{
		{
			name:  "nothing pending",
			build: func(s *conversation.State) {},
		},
		{
			name: "specialist asks",
			build: func(s *conversation.State) {
				require.NoError(t, s.Append(conversation.Specialist, ask("c1", "How long?")))
			},
			want: "How long?", wantOK: true, channel: conversation.Specialist, wantCall: true,
		},
		{
			name: "missing question degrades",
			build: func(s *conversation.State) {
				require.NoError(t, s.Append(conversation.Pathology, ask("c1", "")))
			},
			channel: conversation.Pathology, wantCall: true,
		},
		{
			name: "answered call is not pending",
			build: func(s *conversation.State) {
				require.NoError(t, s.Append(conversation.Primary, ask("c1", "Age?")))
				require.NoError(t, s.Append(conversation.Primary,
					message.ToolResultMessage{Content: "40", CorrelatesWith: "c1"}))
			},
		},
		{
			name: "ask buried under later output is not pending",
			build: func(s *conversation.State) {
				require.NoError(t, s.Append(conversation.Primary, ask("c1", "Age?")))
				require.NoError(t, s.Append(conversation.Primary, message.HumanMessage{Content: "x"}))
			},
		},
		{
			name: "primary wins the scan",
			build: func(s *conversation.State) {
				require.NoError(t, s.Append(conversation.Radiology, ask("r", "Radio?")))
				require.NoError(t, s.Append(conversation.Primary, ask("p", "GP?")))
			},
			want: "GP?", wantOK: true, channel: conversation.Primary, wantCall: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := conversation.Seed("I have a headache")
			tt.build(s)
			got, ok := PendingQuestion(s)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
			c, _, found := PendingCall(s)
			assert.Equal(t, tt.wantCall, found)
			assert.Equal(t, tt.channel, c)
		})
	}
}

func TestCommitReply_Correlates(t *testing.T) {
	s := conversation.Seed("I have a headache")
	require.NoError(t, s.Append(conversation.Specialist, ask("call-7", "Since when?")))
	before := s.Clone()

	c, err := CommitReply(s, "3 days")
	require.NoError(t, err)
	assert.Equal(t, conversation.Specialist, c)

	last, ok := s.Last(conversation.Specialist)
	require.True(t, ok)
	assert.Equal(t, message.ToolResultMessage{Content: "3 days", CorrelatesWith: "call-7"}, last)
	for _, other := range []conversation.Channel{conversation.Primary, conversation.Pathology, conversation.Radiology} {
		want, _ := before.Log(other)
		got, _ := s.Log(other)
		assert.Equal(t, want.Messages(), got.Messages(), other)
	}
	assert.Equal(t, 0, PendingCount(s))

	_, err = CommitReply(s, "again")
	require.ErrorIs(t, err, ErrNoPendingInterrupt)
}

func TestReply_IsPure(t *testing.T) {
	s := conversation.Seed("hi")
	require.NoError(t, s.Append(conversation.Primary, ask("c1", "Age?")))

	c, result, err := Reply(s, "40")
	require.NoError(t, err)
	assert.Equal(t, conversation.Primary, c)
	assert.Equal(t, "c1", result.CorrelatesWith)
	l, _ := s.Log(conversation.Primary)
	assert.Equal(t, 2, l.Len())

	_, _, err = Reply(conversation.Seed("hi"), "x")
	require.ErrorIs(t, err, ErrNoPendingInterrupt)
}

func TestPendingCount(t *testing.T) {
	s := conversation.Seed("hi")
	assert.Equal(t, 0, PendingCount(s))
	require.NoError(t, s.Append(conversation.Primary, ask("a", "q")))
	assert.Equal(t, 1, PendingCount(s))
}

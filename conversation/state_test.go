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

package conversation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-consult-go/message"
)

func TestSeed_AllChannelsPresent(t *testing.T) {
	for _, text := range []string{"I have a headache", "", "  spaced  "} {
		s := Seed(text)
		require.NoError(t, s.Validate())
		require.Len(t, s.Names(), 4)
		for _, c := range Channels() {
			l, ok := s.Log(c)
			require.True(t, ok, c)
			require.Equal(t, 1, l.Len(), c)
		}
		for _, c := range []Channel{Primary, Specialist} {
			l, _ := s.Log(c)
			assert.Equal(t, message.HumanMessage{Content: text}, l.At(0))
		}
		patho, _ := s.Last(Pathology)
		assert.Equal(t, PathologyPrimer, patho.Text())
		radio, _ := s.Last(Radiology)
		assert.Equal(t, RadiologyPrimer, radio.Text())
	}
}

func TestState_Validate(t *testing.T) {
	s := NewState()
	s.Set(Primary, message.MustLog())
	require.ErrorIs(t, s.Validate(), ErrMissingChannel)
}

func TestState_AppendUnknownChannel(t *testing.T) {
	s := Seed("hi")
	require.ErrorIs(t, s.Append("notes", message.HumanMessage{Content: "x"}), ErrUnknownChannel)
	require.ErrorIs(t,
		s.Append(Primary, message.ToolResultMessage{Content: "x", CorrelatesWith: "none"}),
		message.ErrUncorrelatedToolResult)
	l, _ := s.Log(Primary)
	assert.Equal(t, 1, l.Len())
}

func TestState_CloneIsIndependent(t *testing.T) {
	s := Seed("hi")
	c := s.Clone()
	require.NoError(t, c.Append(Specialist, message.AgentMessage{Content: "hello"}))

	orig, _ := s.Log(Specialist)
	cloned, _ := c.Log(Specialist)
	assert.Equal(t, 1, orig.Len())
	assert.Equal(t, 2, cloned.Len())
}

func TestState_JSON(t *testing.T) {
	s := Seed("I have a headache")
	require.NoError(t, s.Append(Primary, message.AgentMessage{
		ToolCalls: []message.ToolCall{{ID: "a1", Name: message.ToolAskUser, Args: map[string]any{"question": "How long?"}}},
	}))
	data, err := json.Marshal(s)
	require.NoError(t, err)

	var got State
	require.NoError(t, json.Unmarshal(data, &got))
	require.NoError(t, got.Validate())
	l, _ := got.Log(Primary)
	require.Equal(t, 2, l.Len())
	assert.Equal(t, []message.ToolCall{{ID: "a1", Name: message.ToolAskUser, Args: map[string]any{"question": "How long?"}}},
		l.Unanswered())
}

func TestParseRoutingToken(t *testing.T) {
	tests := []struct {
		in   string
		want Specialty
		ok   bool
	}{
		{"Orthopedist", Orthopedics, true},
		{" Orthopedist ", Orthopedics, true},
		{"orthopedist", Orthopedics, true},
		{"ENT", ENT, true},
		{"Internal Medicine\n", InternalMedicine, true},
		{"pediatrics", Pediatrics, true},
		{"Pediatrician", Pediatrics, true},
		{"You should see an orthopedist", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseRoutingToken(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestSpecialty_TokenRoundTrips(t *testing.T) {
	for _, sp := range Specialties() {
		got, ok := ParseRoutingToken(sp.Token())
		require.True(t, ok, sp)
		assert.Equal(t, sp, got)
	}
}

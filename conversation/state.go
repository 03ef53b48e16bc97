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

// Package conversation holds the per-session conversation state: one
// append-only message log per named channel.
package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"trpc.group/trpc-go/trpc-consult-go/message"
)

// Channel names a message log inside a State.
type Channel string

// Channels of a consultation.
const (
	// Primary carries the GP conversation and its routing decisions.
	Primary Channel = "messages"
	// Specialist carries the conversation with the routed specialist.
	Specialist Channel = "specialist_messages"
	// Pathology carries the pathologist's work.
	Pathology Channel = "patho_messages"
	// Radiology carries the radiologist's work.
	Radiology Channel = "radio_messages"
)

// Priming messages seeded into the helper channels.
const (
	PathologyPrimer = "Generate some test based on status of Pathology status"
	RadiologyPrimer = "Generate some report based on status of Radiology status"
)

var (
	// ErrMissingChannel is returned when a full state lacks a channel.
	ErrMissingChannel = errors.New("conversation: missing channel")
	// ErrUnknownChannel is returned when writing to a channel the state does not hold.
	ErrUnknownChannel = errors.New("conversation: unknown channel")
)

// InterruptScanOrder is the order used to look for a pending question.
func InterruptScanOrder() []Channel {
	return []Channel{Primary, Specialist, Pathology, Radiology}
}

// ProjectionOrder is the order used to pick visible output. Helper channels
// win over the routing channel.
func ProjectionOrder() []Channel {
	return []Channel{Specialist, Pathology, Radiology, Primary}
}

// Channels returns every channel of a consultation.
func Channels() []Channel {
	return InterruptScanOrder()
}

// State maps channel names to message logs. A full State, as produced by
// Seed, holds every channel; a partial State is used for step deltas.
type State struct {
	logs map[Channel]*message.Log
}

// NewState returns an empty, partial state.
func NewState() *State {
	return &State{logs: make(map[Channel]*message.Log)}
}

// Seed creates the state of a new session.
func Seed(userText string) *State {
	s := NewState()
	s.logs[Primary] = message.MustLog(message.HumanMessage{Content: userText})
	s.logs[Specialist] = message.MustLog(message.HumanMessage{Content: userText})
	s.logs[Pathology] = message.MustLog(message.HumanMessage{Content: PathologyPrimer})
	s.logs[Radiology] = message.MustLog(message.HumanMessage{Content: RadiologyPrimer})
	return s
}

// Validate checks that every channel exists.
func (s *State) Validate() error {
	for _, c := range Channels() {
		if _, ok := s.logs[c]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingChannel, c)
		}
	}
	return nil
}

// Log returns the log of c.
func (s *State) Log(c Channel) (*message.Log, bool) {
	if s == nil {
		return nil, false
	}
	l, ok := s.logs[c]
	return l, ok
}

// Last returns the last message of c.
func (s *State) Last(c Channel) (message.Message, bool) {
	l, ok := s.Log(c)
	if !ok {
		return nil, false
	}
	return l.Last()
}

// Append adds m to the existing channel c.
func (s *State) Append(c Channel, m message.Message) error {
	l, ok := s.logs[c]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, c)
	}
	if err := l.Append(m); err != nil {
		return fmt.Errorf("channel %s: %w", c, err)
	}
	return nil
}

// Set replaces the log of c.
func (s *State) Set(c Channel, l *message.Log) {
	s.logs[c] = l
}

// Names returns the channels present, sorted.
func (s *State) Names() []Channel {
	names := make([]Channel, 0, len(s.logs))
	for c := range s.logs {
		names = append(names, c)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	out := NewState()
	for c, l := range s.logs {
		out.logs[c] = l.Clone()
	}
	return out
}

// MarshalJSON encodes the state as an object keyed by channel name.
func (s *State) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	return json.Marshal(s.logs)
}

// UnmarshalJSON decodes a state produced by MarshalJSON.
func (s *State) UnmarshalJSON(data []byte) error {
	logs := make(map[Channel]*message.Log)
	if err := json.Unmarshal(data, &logs); err != nil {
		return fmt.Errorf("conversation: decode state: %w", err)
	}
	for c, l := range logs {
		if l == nil {
			logs[c] = &message.Log{}
		}
	}
	s.logs = logs
	return nil
}

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

package message

import (
	"encoding/json"
	"fmt"
)

// envelope is the persisted form of a Message.
type envelope struct {
	Kind           Kind       `json:"kind"`
	Content        string     `json:"content"`
	ToolCalls      []ToolCall `json:"tool_calls,omitempty"`
	CorrelatesWith string     `json:"correlates_with,omitempty"`
}

// Encode converts m into its tagged JSON form.
func Encode(m Message) ([]byte, error) {
	env, err := toEnvelope(m)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Decode parses a message previously produced by Encode.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("message: decode: %w", err)
	}
	return env.message()
}

func toEnvelope(m Message) (envelope, error) {
	switch v := m.(type) {
	case HumanMessage:
		return envelope{Kind: KindHuman, Content: v.Content}, nil
	case AgentMessage:
		return envelope{Kind: KindAgent, Content: v.Content, ToolCalls: v.ToolCalls}, nil
	case ToolResultMessage:
		return envelope{Kind: KindToolResult, Content: v.Content, CorrelatesWith: v.CorrelatesWith}, nil
	default:
		return envelope{}, fmt.Errorf("message: unsupported message type %T", m)
	}
}

func (e envelope) message() (Message, error) {
	switch e.Kind {
	case KindHuman:
		return HumanMessage{Content: e.Content}, nil
	case KindAgent:
		return AgentMessage{Content: e.Content, ToolCalls: e.ToolCalls}, nil
	case KindToolResult:
		return ToolResultMessage{Content: e.Content, CorrelatesWith: e.CorrelatesWith}, nil
	default:
		return nil, fmt.Errorf("message: unknown kind %q", e.Kind)
	}
}

// MarshalJSON encodes the log as an array of tagged messages.
func (l *Log) MarshalJSON() ([]byte, error) {
	envs := make([]envelope, 0, l.Len())
	if l != nil {
		for _, m := range l.msgs {
			env, err := toEnvelope(m)
			if err != nil {
				return nil, err
			}
			envs = append(envs, env)
		}
	}
	return json.Marshal(envs)
}

// UnmarshalJSON rebuilds the log, re-checking tool result correlation.
func (l *Log) UnmarshalJSON(data []byte) error {
	var envs []envelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return fmt.Errorf("message: decode log: %w", err)
	}
	rebuilt := &Log{}
	for i, env := range envs {
		m, err := env.message()
		if err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
		if err := rebuilt.Append(m); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	*l = *rebuilt
	return nil
}

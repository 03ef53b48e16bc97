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

// Package message defines the typed messages exchanged inside a consultation
// and the append-only log that holds them for one channel.
package message

import "strings"

// Kind identifies the variant of a Message.
type Kind string

// Message kinds.
const (
	KindHuman      Kind = "human"
	KindAgent      Kind = "agent"
	KindToolResult Kind = "tool_result"
)

// ToolAskUser is the tool name an agent uses to request input from the user.
const ToolAskUser = "ask_user"

// Message is a closed sum type. The only implementations are HumanMessage,
// AgentMessage and ToolResultMessage.
type Message interface {
	// Kind reports the variant.
	Kind() Kind
	// Text returns the textual content of the message.
	Text() string

	sealed()
}

// HumanMessage is free text authored by the user or seeded by the system.
type HumanMessage struct {
	Content string
}

// AgentMessage is produced by an agent step.
type AgentMessage struct {
	Content   string
	ToolCalls []ToolCall
}

// ToolResultMessage answers exactly one prior tool call.
type ToolResultMessage struct {
	Content        string
	CorrelatesWith string
}

// ToolCall is a structured invocation requested by an agent.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// Kind implements Message.
func (HumanMessage) Kind() Kind { return KindHuman }

// Text implements Message.
func (m HumanMessage) Text() string { return m.Content }

func (HumanMessage) sealed() {}

// Kind implements Message.
func (AgentMessage) Kind() Kind { return KindAgent }

// Text implements Message.
func (m AgentMessage) Text() string { return m.Content }

func (AgentMessage) sealed() {}

// Kind implements Message.
func (ToolResultMessage) Kind() Kind { return KindToolResult }

// Text implements Message.
func (m ToolResultMessage) Text() string { return m.Content }

func (ToolResultMessage) sealed() {}

// IsAskUser reports whether the call requests input from the user.
func (c ToolCall) IsAskUser() bool {
	return c.Name == ToolAskUser
}

// Question returns args.question of an ask_user call. The second result is
// false when the field is missing or not a string.
func (c ToolCall) Question() (string, bool) {
	if c.Args == nil {
		return "", false
	}
	q, ok := c.Args["question"].(string)
	return q, ok
}

// AskUserCalls returns the ask_user calls of the message in order.
func (m AgentMessage) AskUserCalls() []ToolCall {
	var calls []ToolCall
	for _, c := range m.ToolCalls {
		if c.IsAskUser() {
			calls = append(calls, c)
		}
	}
	return calls
}

// HasToolCall reports whether the message carries a call with the given name.
func (m AgentMessage) HasToolCall(name string) bool {
	for _, c := range m.ToolCalls {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slices or maps with m.
func (m AgentMessage) Clone() AgentMessage {
	out := AgentMessage{Content: m.Content}
	if len(m.ToolCalls) > 0 {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, c := range m.ToolCalls {
			out.ToolCalls[i] = c.clone()
		}
	}
	return out
}

func (c ToolCall) clone() ToolCall {
	out := ToolCall{ID: c.ID, Name: c.Name}
	if c.Args != nil {
		out.Args = make(map[string]any, len(c.Args))
		for k, v := range c.Args {
			out.Args[k] = v
		}
	}
	return out
}

// Clone copies any Message. Agent messages are deep-copied, the other
// variants are plain values.
func Clone(m Message) Message {
	if am, ok := m.(AgentMessage); ok {
		return am.Clone()
	}
	return m
}

// TrimmedText returns the message content with surrounding whitespace removed.
func TrimmedText(m Message) string {
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m.Text())
}

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

package agent

import (
	"github.com/google/uuid"

	"trpc.group/trpc-go/trpc-consult-go/message"
	"trpc.group/trpc-go/trpc-consult-go/tool"
)

// Invocation is the input of one agent step.
type Invocation struct {
	// InvocationID is the ID of the invocation.
	InvocationID string
	// NodeID is the workflow node running the agent.
	NodeID string
	// Instruction is the system prompt of the agent.
	Instruction string
	// Transcript is what the agent sees, oldest first.
	Transcript []message.Message
	// Tools are the tools the agent may call.
	Tools []*tool.Declaration
}

// InvocationOptions is the options for the Invocation.
type InvocationOptions func(*Invocation)

// WithInvocationNodeID sets the node ID of the invocation.
func WithInvocationNodeID(nodeID string) InvocationOptions {
	return func(inv *Invocation) {
		inv.NodeID = nodeID
	}
}

// WithInvocationInstruction sets the system prompt of the invocation.
func WithInvocationInstruction(instruction string) InvocationOptions {
	return func(inv *Invocation) {
		inv.Instruction = instruction
	}
}

// WithInvocationTools sets the tools of the invocation.
func WithInvocationTools(tools ...*tool.Declaration) InvocationOptions {
	return func(inv *Invocation) {
		inv.Tools = tools
	}
}

// NewInvocation creates a new Invocation over transcript.
func NewInvocation(transcript []message.Message, opts ...InvocationOptions) *Invocation {
	inv := &Invocation{
		InvocationID: uuid.NewString(),
		Transcript:   transcript,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Tool returns the declaration named name.
func (inv *Invocation) Tool(name string) (*tool.Declaration, bool) {
	for _, d := range inv.Tools {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// AnsweredQuestions counts the ask_user calls in the transcript that have
// a result.
func (inv *Invocation) AnsweredQuestions() int {
	asks := map[string]bool{}
	n := 0
	for _, m := range inv.Transcript {
		switch v := m.(type) {
		case message.AgentMessage:
			for _, c := range v.AskUserCalls() {
				asks[c.ID] = true
			}
		case message.ToolResultMessage:
			if asks[v.CorrelatesWith] {
				n++
			}
		}
	}
	return n
}

// ToolResultsFor returns the results answering calls named name, oldest first.
func (inv *Invocation) ToolResultsFor(name string) []message.ToolResultMessage {
	calls := map[string]bool{}
	var out []message.ToolResultMessage
	for _, m := range inv.Transcript {
		switch v := m.(type) {
		case message.AgentMessage:
			for _, c := range v.ToolCalls {
				if c.Name == name {
					calls[c.ID] = true
				}
			}
		case message.ToolResultMessage:
			if calls[v.CorrelatesWith] {
				out = append(out, v)
			}
		}
	}
	return out
}

// UserText returns the non-empty text of human messages and tool results.
func (inv *Invocation) UserText() []string {
	var out []string
	for _, m := range inv.Transcript {
		switch m.(type) {
		case message.HumanMessage, message.ToolResultMessage:
			if t := message.TrimmedText(m); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}

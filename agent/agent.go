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

// Package agent defines the clinicians that produce the steps of a
// consultation.
package agent

import (
	"context"

	"trpc.group/trpc-go/trpc-consult-go/message"
)

// Info contains basic information about an agent.
type Info struct {
	Name        string
	Description string
}

// Agent is the interface that all agents must implement.
type Agent interface {
	// Info returns the basic information about this agent.
	Info() Info

	// Run produces the agent's next message for the invocation. The message
	// may carry tool calls; an ask_user call pauses the consultation.
	Run(ctx context.Context, invocation *Invocation) (message.AgentMessage, error)
}

// Func adapts a plain function to Agent.
type Func struct {
	Name string
	Fn   func(ctx context.Context, invocation *Invocation) (message.AgentMessage, error)
}

// Info implements Agent.
func (f Func) Info() Info {
	return Info{Name: f.Name}
}

// Run implements Agent.
func (f Func) Run(ctx context.Context, invocation *Invocation) (message.AgentMessage, error) {
	return f.Fn(ctx, invocation)
}

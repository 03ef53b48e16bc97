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
	"time"

	"trpc.group/trpc-go/trpc-consult-go/conversation"
	"trpc.group/trpc-go/trpc-consult-go/graph"
	"trpc.group/trpc-go/trpc-consult-go/interrupt"
	"trpc.group/trpc-go/trpc-consult-go/message"
	"trpc.group/trpc-go/trpc-consult-go/session"
)

// TurnState is where a session sits between turns.
type TurnState string

// Turn states. A turn starts Running and halts exactly once.
const (
	StateRunning      TurnState = "running"
	StateAwaitingUser TurnState = "awaiting_user"
	StateTerminal     TurnState = "terminal"
	// StateStalled marks a session whose last turn failed before reaching
	// an ask-user point or the end of the workflow.
	StateStalled TurnState = "stalled"
)

// Status is the committed view of a session.
type Status struct {
	ThreadID string    `json:"thread_id"`
	State    TurnState `json:"status"`
	// Question is the pending question; nil unless awaiting the user.
	Question  *string                                   `json:"question"`
	Next      []string                                  `json:"next,omitempty"`
	Step      int                                       `json:"step"`
	UpdatedAt time.Time                                 `json:"updated_at"`
	Channels  map[conversation.Channel][]TranscriptItem `json:"channels"`
}

// TranscriptItem is one message rendered for clients.
type TranscriptItem struct {
	Kind           message.Kind       `json:"kind"`
	Content        string             `json:"content"`
	ToolCalls      []message.ToolCall `json:"tool_calls,omitempty"`
	CorrelatesWith string             `json:"correlates_with,omitempty"`
}

// Status implements Runner.
func (r *runner) Status(ctx context.Context, threadID string) (*Status, error) {
	if threadID == "" {
		return nil, ErrMissingParameter
	}
	sess, err := r.registry.Lookup(ctx, threadID)
	if err != nil {
		return nil, err
	}
	st := &Status{
		ThreadID:  threadID,
		State:     StateTerminal,
		Next:      sess.Next,
		Step:      sess.Step,
		UpdatedAt: sess.UpdatedAt,
		Channels:  transcript(sess.Values),
	}
	switch {
	case r.registry.Busy(threadID):
		st.State = StateRunning
	case interrupt.IsAwaitingUser(sess.Next, r.exec.Graph()):
		st.State = StateAwaitingUser
		if q, ok := interrupt.PendingQuestion(sess.Values); ok {
			st.Question = &q
		}
	case len(sess.Next) > 0:
		st.State = StateStalled
	}
	return st, nil
}

// History implements Runner.
func (r *runner) History(ctx context.Context, threadID string, limit int) ([]*graph.Snapshot, error) {
	if threadID == "" {
		return nil, ErrMissingParameter
	}
	snaps, err := r.exec.History(ctx, threadID, limit)
	if errors.Is(err, graph.ErrCheckpointNotFound) {
		return nil, session.ErrSessionNotFound
	}
	return snaps, err
}

func transcript(state *conversation.State) map[conversation.Channel][]TranscriptItem {
	out := make(map[conversation.Channel][]TranscriptItem)
	for _, c := range conversation.Channels() {
		l, ok := state.Log(c)
		if !ok {
			continue
		}
		items := make([]TranscriptItem, 0, l.Len())
		for _, m := range l.Messages() {
			item := TranscriptItem{Kind: m.Kind(), Content: m.Text()}
			switch v := m.(type) {
			case message.AgentMessage:
				item.ToolCalls = v.ToolCalls
			case message.ToolResultMessage:
				item.CorrelatesWith = v.CorrelatesWith
			}
			items = append(items, item)
		}
		out[c] = items
	}
	return out
}

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
	"errors"
	"fmt"
)

var (
	// ErrNilMessage is returned when appending a nil message.
	ErrNilMessage = errors.New("message: nil message")
	// ErrUncorrelatedToolResult is returned when a tool result does not
	// answer an unanswered tool call earlier in the same log.
	ErrUncorrelatedToolResult = errors.New("message: tool result has no unanswered tool call")
	// ErrInvalidToolCall is returned for tool calls without an id or with an
	// id already used in the log.
	ErrInvalidToolCall = errors.New("message: invalid tool call")
)

// Log is an ordered, append-only sequence of messages for one channel.
// A Log is not safe for concurrent mutation; callers serialize access.
type Log struct {
	msgs []Message
	// answered maps every tool call id seen so far to whether a result
	// for it has been appended.
	answered map[string]bool
}

// NewLog builds a log by appending msgs in order.
func NewLog(msgs ...Message) (*Log, error) {
	l := &Log{}
	for _, m := range msgs {
		if err := l.Append(m); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// MustLog is NewLog that panics on invalid input. Intended for fixed seeds
// and tests.
func MustLog(msgs ...Message) *Log {
	l, err := NewLog(msgs...)
	if err != nil {
		panic(err)
	}
	return l
}

// Append adds m to the end of the log.
func (l *Log) Append(m Message) error {
	if l.answered == nil {
		l.answered = make(map[string]bool)
	}
	switch v := m.(type) {
	case nil:
		return ErrNilMessage
	case HumanMessage:
		l.msgs = append(l.msgs, v)
	case AgentMessage:
		seen := make(map[string]struct{}, len(v.ToolCalls))
		for _, c := range v.ToolCalls {
			if c.ID == "" {
				return fmt.Errorf("%w: call %q has no id", ErrInvalidToolCall, c.Name)
			}
			if _, dup := seen[c.ID]; dup {
				return fmt.Errorf("%w: duplicate id %s", ErrInvalidToolCall, c.ID)
			}
			if _, exists := l.answered[c.ID]; exists {
				return fmt.Errorf("%w: duplicate id %s", ErrInvalidToolCall, c.ID)
			}
			seen[c.ID] = struct{}{}
		}
		for _, c := range v.ToolCalls {
			l.answered[c.ID] = false
		}
		l.msgs = append(l.msgs, v.Clone())
	case ToolResultMessage:
		answered, ok := l.answered[v.CorrelatesWith]
		if !ok || answered {
			return fmt.Errorf("%w: %s", ErrUncorrelatedToolResult, v.CorrelatesWith)
		}
		l.answered[v.CorrelatesWith] = true
		l.msgs = append(l.msgs, v)
	default:
		return fmt.Errorf("message: unsupported message type %T", m)
	}
	return nil
}

// Len returns the number of messages.
func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	return len(l.msgs)
}

// At returns the i-th message.
func (l *Log) At(i int) Message {
	return l.msgs[i]
}

// Last returns the most recent message.
func (l *Log) Last() (Message, bool) {
	if l.Len() == 0 {
		return nil, false
	}
	return l.msgs[len(l.msgs)-1], true
}

// Messages returns a copy of the messages in order.
func (l *Log) Messages() []Message {
	if l.Len() == 0 {
		return nil
	}
	out := make([]Message, len(l.msgs))
	for i, m := range l.msgs {
		out[i] = Clone(m)
	}
	return out
}

// IsAnswered reports whether a result for callID has been appended.
func (l *Log) IsAnswered(callID string) bool {
	if l == nil {
		return false
	}
	return l.answered[callID]
}

// Unanswered returns every tool call without a result, oldest first.
func (l *Log) Unanswered() []ToolCall {
	if l == nil {
		return nil
	}
	var calls []ToolCall
	for _, m := range l.msgs {
		am, ok := m.(AgentMessage)
		if !ok {
			continue
		}
		for _, c := range am.ToolCalls {
			if !l.answered[c.ID] {
				calls = append(calls, c.clone())
			}
		}
	}
	return calls
}

// Clone returns an independent copy of the log.
func (l *Log) Clone() *Log {
	if l == nil {
		return nil
	}
	out := &Log{
		msgs:     make([]Message, len(l.msgs)),
		answered: make(map[string]bool, len(l.answered)),
	}
	for i, m := range l.msgs {
		out.msgs[i] = Clone(m)
	}
	for id, a := range l.answered {
		out.answered[id] = a
	}
	return out
}

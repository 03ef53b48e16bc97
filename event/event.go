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

// Package event defines the outward events of a consultation turn.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Type is the event name used on the wire.
type Type string

// Event types.
const (
	// TypeThread opens a Start stream and carries the new thread id.
	TypeThread Type = "thread"
	// TypeMessage carries one visible agent utterance.
	TypeMessage Type = "message"
	// TypeAskUser ends a turn that waits for the user.
	TypeAskUser Type = "ask_user"
	// TypeFinal ends a turn whose workflow is exhausted.
	TypeFinal Type = "final"
	// TypeError ends a turn that failed after streaming started.
	TypeError Type = "error"
)

// Event is one item of a turn stream.
type Event struct {
	// ID is the unique identifier of the event.
	ID string `json:"id"`
	// Type is the event name.
	Type Type `json:"type"`
	// ThreadID is the session the event belongs to.
	ThreadID string `json:"thread_id"`
	// Timestamp is the timestamp of the event.
	Timestamp time.Time `json:"timestamp"`

	// Speaker and Content are set on message events.
	Speaker string `json:"speaker,omitempty"`
	Content string `json:"content,omitempty"`
	// Step and NodeID locate the step a message event came from.
	Step   int    `json:"step,omitempty"`
	NodeID string `json:"node_id,omitempty"`

	// Question is set on ask_user events; nil when the call had none.
	Question *string `json:"question,omitempty"`
	// Message is set on final events; nil when there is no closing text.
	Message *string `json:"message,omitempty"`
	// Error is set on error events.
	Error string `json:"error,omitempty"`
}

// Option is a function that can be used to configure the Event.
type Option func(*Event)

// WithStep records the step and node a message event came from.
func WithStep(step int, nodeID string) Option {
	return func(e *Event) {
		e.Step = step
		e.NodeID = nodeID
	}
}

// New creates a new Event with generated ID and timestamp.
func New(typ Type, threadID string, opts ...Option) *Event {
	e := &Event{
		ID:        uuid.NewString(),
		Type:      typ,
		ThreadID:  threadID,
		Timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewThread creates the first event of a Start stream.
func NewThread(threadID string) *Event {
	return New(TypeThread, threadID)
}

// NewMessage creates a message event.
func NewMessage(threadID, speaker, content string, opts ...Option) *Event {
	e := New(TypeMessage, threadID, opts...)
	e.Speaker = speaker
	e.Content = content
	return e
}

// NewAskUser creates the terminal event of a turn waiting for the user.
func NewAskUser(threadID, question string, ok bool) *Event {
	e := New(TypeAskUser, threadID)
	if ok {
		e.Question = &question
	}
	return e
}

// NewFinal creates the terminal event of an exhausted workflow.
func NewFinal(threadID, text string, ok bool) *Event {
	e := New(TypeFinal, threadID)
	if ok {
		e.Message = &text
	}
	return e
}

// NewError creates the terminal event of a failed turn.
func NewError(threadID string, err error) *Event {
	e := New(TypeError, threadID)
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// IsTerminal reports whether the event closes a turn.
func (e *Event) IsTerminal() bool {
	switch e.Type {
	case TypeAskUser, TypeFinal, TypeError:
		return true
	default:
		return false
	}
}

type threadPayload struct {
	ThreadID string `json:"thread_id"`
}

type messagePayload struct {
	ThreadID string `json:"thread_id"`
	Content  string `json:"content"`
	Speaker  string `json:"speaker"`
}

type askUserPayload struct {
	ThreadID string  `json:"thread_id"`
	Question *string `json:"question"`
}

type finalPayload struct {
	ThreadID string  `json:"thread_id"`
	Message  *string `json:"message"`
}

type errorPayload struct {
	ThreadID string `json:"thread_id"`
	Error    string `json:"error"`
}

// Payload returns the wire body of the event. Absent questions and final
// messages encode as null.
func (e *Event) Payload() any {
	switch e.Type {
	case TypeMessage:
		return messagePayload{ThreadID: e.ThreadID, Content: e.Content, Speaker: e.Speaker}
	case TypeAskUser:
		return askUserPayload{ThreadID: e.ThreadID, Question: e.Question}
	case TypeFinal:
		return finalPayload{ThreadID: e.ThreadID, Message: e.Message}
	case TypeError:
		return errorPayload{ThreadID: e.ThreadID, Error: e.Error}
	default:
		return threadPayload{ThreadID: e.ThreadID}
	}
}

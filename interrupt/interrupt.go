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

// Package interrupt bridges a halted session and the user's reply.
//
// A pending question is never stored. It is derived from the logs: the
// last message of a channel that is an agent message carrying an
// unanswered ask_user call.
package interrupt

import (
	"errors"

	"trpc.group/trpc-go/trpc-consult-go/conversation"
	"trpc.group/trpc-go/trpc-consult-go/message"
)

// ErrNoPendingInterrupt is returned when a reply arrives but no channel
// holds an unanswered ask_user call.
var ErrNoPendingInterrupt = errors.New("no pending ask_user call to answer")

// PointSet reports which nodes are ask-user points. *graph.Graph satisfies it.
type PointSet interface {
	IsInterruptNode(id string) bool
}

// IsAwaitingUser reports whether the next scheduled node is an ask-user point.
func IsAwaitingUser(next []string, points PointSet) bool {
	for _, id := range next {
		if points.IsInterruptNode(id) {
			return true
		}
	}
	return false
}

// PendingCall returns the first unanswered ask_user call found in the last
// message of a channel, scanning channels in interrupt priority order.
func PendingCall(state *conversation.State) (conversation.Channel, message.ToolCall, bool) {
	for _, c := range conversation.InterruptScanOrder() {
		if call, ok := pendingIn(state, c); ok {
			return c, call, true
		}
	}
	return "", message.ToolCall{}, false
}

// PendingCount returns how many channels end in an unanswered ask_user call.
// A consistent state has at most one.
func PendingCount(state *conversation.State) int {
	n := 0
	for _, c := range conversation.InterruptScanOrder() {
		if _, ok := pendingIn(state, c); ok {
			n++
		}
	}
	return n
}

func pendingIn(state *conversation.State, c conversation.Channel) (message.ToolCall, bool) {
	l, ok := state.Log(c)
	if !ok {
		return message.ToolCall{}, false
	}
	last, ok := l.Last()
	if !ok {
		return message.ToolCall{}, false
	}
	am, ok := last.(message.AgentMessage)
	if !ok {
		return message.ToolCall{}, false
	}
	for _, call := range am.AskUserCalls() {
		if !l.IsAnswered(call.ID) {
			return call, true
		}
	}
	return message.ToolCall{}, false
}

// PendingQuestion returns the question of the pending call. ok is false when
// nothing is pending or the call carries no question.
func PendingQuestion(state *conversation.State) (string, bool) {
	_, call, ok := PendingCall(state)
	if !ok {
		return "", false
	}
	return call.Question()
}

// Reply builds the tool result answering the pending call without touching
// state.
func Reply(state *conversation.State, text string) (conversation.Channel, message.ToolResultMessage, error) {
	c, call, ok := PendingCall(state)
	if !ok {
		return "", message.ToolResultMessage{}, ErrNoPendingInterrupt
	}
	return c, message.ToolResultMessage{Content: text, CorrelatesWith: call.ID}, nil
}

// CommitReply appends the reply to the channel holding the pending call and
// returns that channel.
func CommitReply(state *conversation.State, text string) (conversation.Channel, error) {
	c, result, err := Reply(state, text)
	if err != nil {
		return "", err
	}
	if err := state.Append(c, result); err != nil {
		return "", err
	}
	return c, nil
}

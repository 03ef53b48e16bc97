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

package workflow

import (
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-consult-go/conversation"
	"trpc.group/trpc-go/trpc-consult-go/message"
	"trpc.group/trpc-go/trpc-consult-go/tool"
)

func channelMessages(state *conversation.State, c conversation.Channel) []message.Message {
	l, ok := state.Log(c)
	if !ok {
		return nil
	}
	return l.Messages()
}

// Results given to tool calls that have none in the channel.
const (
	unansweredResult   = "The patient did not answer this question."
	unsentOrderResult  = "These tests were not sent because a question to the patient was pending. Order them again if they are still needed."
	pendingOrderResult = "The tests are still running."
	noFindingsResult   = "The departments reported no findings."
)

// pairToolResults returns msgs with every tool call of an agent message
// directly followed by its result. Recorded results move up to their call;
// a call without one gets the text resolve returns.
func pairToolResults(msgs []message.Message, resolve func(message.ToolCall) string) []message.Message {
	results := make(map[string]message.ToolResultMessage)
	for _, m := range msgs {
		if r, ok := m.(message.ToolResultMessage); ok {
			results[r.CorrelatesWith] = r
		}
	}
	out := make([]message.Message, 0, len(msgs))
	for _, m := range msgs {
		switch v := m.(type) {
		case message.ToolResultMessage:
			// Emitted right after its call.
		case message.AgentMessage:
			out = append(out, v)
			for _, call := range v.ToolCalls {
				if r, ok := results[call.ID]; ok {
					out = append(out, r)
					continue
				}
				out = append(out, message.ToolResultMessage{Content: resolve(call), CorrelatesWith: call.ID})
			}
		default:
			out = append(out, m)
		}
	}
	return out
}

func unanswered(message.ToolCall) string { return unansweredResult }

func primaryTranscript(state *conversation.State) []message.Message {
	return pairToolResults(channelMessages(state, conversation.Primary), unanswered)
}

// specialistTranscript is the specialist channel with every call answered.
// An order_tests call that reached the departments gets their reports as its
// result: the k-th sent order gets the k-th pair of reports. An order sent
// alongside ask_user never left the specialist, since the question routes
// first. The synthesized results live only in the transcript.
func specialistTranscript(state *conversation.State) []message.Message {
	msgs := channelMessages(state, conversation.Specialist)
	reports := departmentReports(state)
	orders := make(map[string]string)
	sent := 0
	for _, m := range msgs {
		am, ok := m.(message.AgentMessage)
		if !ok || !am.HasToolCall(tool.ToolOrderTests) || len(am.AskUserCalls()) > 0 {
			continue
		}
		result := pendingOrderResult
		if sent < len(reports) {
			result = reports[sent]
		}
		for _, c := range am.ToolCalls {
			if c.Name == tool.ToolOrderTests {
				orders[c.ID] = result
			}
		}
		sent++
	}
	return pairToolResults(msgs, func(c message.ToolCall) string {
		if r, ok := orders[c.ID]; ok {
			return r
		}
		if c.Name == tool.ToolOrderTests {
			return unsentOrderResult
		}
		return unansweredResult
	})
}

// departmentReports returns one joined pathology and radiology report per
// completed round of tests, oldest first. A round completes when radiology
// reports.
func departmentReports(state *conversation.State) []string {
	patho := reportsIn(state, conversation.Pathology)
	radio := reportsIn(state, conversation.Radiology)
	out := make([]string, 0, len(radio))
	for i, r := range radio {
		var parts []string
		if i < len(patho) && patho[i] != "" {
			parts = append(parts, patho[i])
		}
		if r != "" {
			parts = append(parts, r)
		}
		if len(parts) == 0 {
			out = append(out, noFindingsResult)
			continue
		}
		out = append(out, strings.Join(parts, "\n"))
	}
	return out
}

// reportsIn lists the agent messages of c that carry no tool call.
func reportsIn(state *conversation.State, c conversation.Channel) []string {
	var out []string
	for _, m := range channelMessages(state, c) {
		if am, ok := m.(message.AgentMessage); ok && len(am.ToolCalls) == 0 {
			out = append(out, message.TrimmedText(am))
		}
	}
	return out
}

// helperTranscript gives a department the case status followed by its own
// channel.
func helperTranscript(c conversation.Channel) transcriptFunc {
	return func(state *conversation.State) []message.Message {
		msgs := []message.Message{message.HumanMessage{Content: caseStatus(state)}}
		return append(msgs, pairToolResults(channelMessages(state, c), unanswered)...)
	}
}

// caseStatus summarises the specialist conversation for the departments.
func caseStatus(state *conversation.State) string {
	var b strings.Builder
	b.WriteString("Case status:")
	for _, m := range channelMessages(state, conversation.Specialist) {
		text := message.TrimmedText(m)
		switch v := m.(type) {
		case message.HumanMessage, message.ToolResultMessage:
			if text != "" {
				fmt.Fprintf(&b, "\nPatient: %s", text)
			}
		case message.AgentMessage:
			if text != "" {
				fmt.Fprintf(&b, "\nSpecialist: %s", text)
			}
			for _, c := range v.ToolCalls {
				if c.Name == tool.ToolOrderTests {
					fmt.Fprintf(&b, "\nTests ordered: %s", orderedTests(c))
				}
			}
		}
	}
	return b.String()
}

func orderedTests(c message.ToolCall) string {
	raw, _ := c.Args["tests"].([]any)
	names := make([]string, 0, len(raw))
	for _, t := range raw {
		if s, ok := t.(string); ok {
			names = append(names, s)
		}
	}
	if len(names) == 0 {
		return "unspecified"
	}
	return strings.Join(names, ", ")
}

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

// Package projector decides which message of a state delta is surfaced to
// the user, and under which speaker label.
package projector

import (
	"trpc.group/trpc-go/trpc-consult-go/conversation"
	"trpc.group/trpc-go/trpc-consult-go/message"
)

// Speaker labels.
const (
	SpeakerGP          = "GP"
	SpeakerSpecialist  = "Specialist"
	SpeakerPathologist = "Pathologist"
	SpeakerRadiologist = "Radiologist"
	SpeakerAssistant   = "Assistant"
)

// Utterance is one visible agent output.
type Utterance struct {
	Speaker string `json:"speaker"`
	Content string `json:"content"`
}

// SpeakerFor maps a channel to its speaker label.
func SpeakerFor(c conversation.Channel) string {
	switch c {
	case conversation.Primary:
		return SpeakerGP
	case conversation.Specialist:
		return SpeakerSpecialist
	case conversation.Pathology:
		return SpeakerPathologist
	case conversation.Radiology:
		return SpeakerRadiologist
	default:
		return SpeakerAssistant
	}
}

// suppressed reports whether text is a routing decision rather than content.
func suppressed(c conversation.Channel, text string) bool {
	return c == conversation.Primary && conversation.IsRoutingToken(text)
}

// Project picks the utterance to surface for one step delta. Only agent
// messages with text count.
func Project(delta *conversation.State) (Utterance, bool) {
	for _, c := range conversation.ProjectionOrder() {
		last, ok := delta.Last(c)
		if !ok {
			continue
		}
		if _, isAgent := last.(message.AgentMessage); !isAgent {
			continue
		}
		text := message.TrimmedText(last)
		if text == "" || suppressed(c, text) {
			continue
		}
		return Utterance{Speaker: SpeakerFor(c), Content: text}, true
	}
	return Utterance{}, false
}

// FinalText picks the closing text of a finished session from the last
// message of the first eligible channel, whatever its kind.
func FinalText(state *conversation.State) (string, bool) {
	for _, c := range conversation.ProjectionOrder() {
		last, ok := state.Last(c)
		if !ok {
			continue
		}
		text := message.TrimmedText(last)
		if text == "" || suppressed(c, text) {
			continue
		}
		return text, true
	}
	return "", false
}

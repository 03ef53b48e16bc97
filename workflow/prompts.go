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
)

var gpInstruction = "You are a general practitioner doing the intake of a patient. " +
	"Ask one short question at a time with the ask_user tool until you know enough to refer the patient. " +
	"Then reply with exactly one of these words and nothing else: " + routingVocabulary() + "."

func routingVocabulary() string {
	tokens := make([]string, 0, len(conversation.Specialties()))
	for _, sp := range conversation.Specialties() {
		tokens = append(tokens, sp.Token())
	}
	return strings.Join(tokens, ", ")
}

func specialistInstruction(sp conversation.Specialty) string {
	return fmt.Sprintf("You are a specialist in %s. The patient was referred to you by a GP. "+
		"Ask one question at a time with the ask_user tool. "+
		"When you need laboratory tests or imaging, call order_tests once with the test names. "+
		"When the results come back, give the patient a short diagnosis and advice in plain language.",
		strings.ReplaceAll(string(sp), "_", " "))
}

const pathologyInstruction = "You are a pathologist. Read the case status and run the ordered laboratory tests. " +
	"You may ask the patient one question with the ask_user tool if a test depends on it. " +
	"Reply with a short pathology report."

const radiologyInstruction = "You are a radiologist. Read the case status and report on the ordered imaging. " +
	"Reply with a short radiology report."

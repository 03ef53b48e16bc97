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
	"trpc.group/trpc-go/trpc-consult-go/agent"
	"trpc.group/trpc-go/trpc-consult-go/agent/openaiagent"
	"trpc.group/trpc-go/trpc-consult-go/agent/scripted"
	"trpc.group/trpc-go/trpc-consult-go/conversation"
)

// ScriptedRoster returns deterministic clinicians.
func ScriptedRoster() Roster {
	r := Roster{
		GP:          scripted.NewGP(),
		Specialists: make(map[conversation.Specialty]agent.Agent),
		Pathologist: scripted.NewPathologist(),
		Radiologist: scripted.NewRadiologist(),
	}
	for _, sp := range conversation.Specialties() {
		r.Specialists[sp] = scripted.NewSpecialist(sp)
	}
	return r
}

// OpenAIRoster returns clinicians backed by model on an OpenAI compatible API.
func OpenAIRoster(model string, opts ...openaiagent.Option) Roster {
	r := Roster{
		GP:          openaiagent.New("GP", model, opts...),
		Specialists: make(map[conversation.Specialty]agent.Agent),
		Pathologist: openaiagent.New("Pathologist", model, opts...),
		Radiologist: openaiagent.New("Radiologist", model, opts...),
	}
	for _, sp := range conversation.Specialties() {
		r.Specialists[sp] = openaiagent.New(sp.Token(), model, opts...)
	}
	return r
}

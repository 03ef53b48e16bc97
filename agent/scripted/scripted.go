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

// Package scripted provides deterministic clinicians. They ask a fixed
// number of questions, route by keyword and return canned reports, which
// makes whole consultations reproducible without a model.
package scripted

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"trpc.group/trpc-go/trpc-consult-go/agent"
	"trpc.group/trpc-go/trpc-consult-go/conversation"
	"trpc.group/trpc-go/trpc-consult-go/message"
	"trpc.group/trpc-go/trpc-consult-go/tool"
)

// AskUser builds an agent message asking question.
func AskUser(question string) message.AgentMessage {
	return message.AgentMessage{
		Content: question,
		ToolCalls: []message.ToolCall{{
			ID:   "call_" + uuid.NewString(),
			Name: message.ToolAskUser,
			Args: map[string]any{"question": question},
		}},
	}
}

type keywordRule struct {
	specialty conversation.Specialty
	words     []string
}

// triageRules are checked in order; the first hit wins.
var triageRules = []keywordRule{
	{conversation.Pediatrics, []string{"child", "baby", "infant", "toddler", "son", "daughter", "kid"}},
	{conversation.Ophthalmology, []string{"eye", "eyes", "vision", "blurry", "sight"}},
	{conversation.Orthopedics, []string{"bone", "joint", "knee", "fracture", "back", "shoulder", "ankle", "sprain"}},
	{conversation.Dermatology, []string{"skin", "rash", "itch", "itchy", "acne", "mole"}},
	{conversation.ENT, []string{"ear", "ears", "nose", "throat", "sinus", "hearing", "tonsil"}},
	{conversation.Gynecology, []string{"pregnant", "pregnancy", "period", "menstrual", "pelvic"}},
	{conversation.Psychiatry, []string{"anxiety", "anxious", "depressed", "depression", "panic", "stress", "insomnia"}},
}

// Triage picks a specialty from what the patient wrote. Internal medicine
// takes everything no rule claims.
func Triage(texts []string) conversation.Specialty {
	words := map[string]bool{}
	for _, t := range texts {
		for _, w := range strings.FieldsFunc(strings.ToLower(t), func(r rune) bool { return !unicode.IsLetter(r) }) {
			words[w] = true
		}
	}
	for _, rule := range triageRules {
		for _, w := range rule.words {
			if words[w] {
				return rule.specialty
			}
		}
	}
	return conversation.InternalMedicine
}

// GP interviews the patient and answers with a bare routing token.
type GP struct {
	questions []string
}

// NewGP creates a GP that asks the default intake questions.
func NewGP() *GP {
	return &GP{questions: []string{
		"I'm sorry you're not feeling well. How long have you had these symptoms?",
	}}
}

// Info implements agent.Agent.
func (g *GP) Info() agent.Info {
	return agent.Info{Name: "GP", Description: "General practitioner doing the intake and routing."}
}

// Run implements agent.Agent.
func (g *GP) Run(ctx context.Context, inv *agent.Invocation) (message.AgentMessage, error) {
	if n := inv.AnsweredQuestions(); n < len(g.questions) {
		return AskUser(g.questions[n]), nil
	}
	return message.AgentMessage{Content: Triage(inv.UserText()).Token()}, nil
}

type profile struct {
	question   string
	tests      []string
	impression string
	advice     string
}

var profiles = map[conversation.Specialty]profile{
	conversation.Pediatrics: {
		question:   "How old is the child, and are they eating and drinking normally?",
		tests:      []string{"Complete blood count", "Urinalysis"},
		impression: "a self-limiting viral illness",
		advice:     "Keep the child hydrated and return if the fever lasts more than three days.",
	},
	conversation.Ophthalmology: {
		question:   "Is the problem in one eye or both, and did it start suddenly?",
		tests:      []string{"Blood glucose", "Orbital imaging"},
		impression: "eye strain with dry eye",
		advice:     "Use lubricating drops and take regular screen breaks.",
	},
	conversation.Orthopedics: {
		question:   "Did the pain start after an injury, and does it get worse with movement?",
		tests:      []string{"Inflammatory markers", "X-ray of the affected area"},
		impression: "a soft tissue strain without fracture",
		advice:     "Rest, ice and gentle stretching should help over the next two weeks.",
	},
	conversation.Dermatology: {
		question:   "Is the rash itchy, and have you used any new products recently?",
		tests:      []string{"Allergy panel", "Skin imaging"},
		impression: "contact dermatitis",
		advice:     "Avoid the suspected trigger and apply a mild steroid cream.",
	},
	conversation.ENT: {
		question:   "Do you have a fever, and is it painful to swallow?",
		tests:      []string{"Throat swab culture", "Sinus imaging"},
		impression: "a viral upper respiratory infection",
		advice:     "Warm fluids and rest; see a doctor if it lasts beyond ten days.",
	},
	conversation.Gynecology: {
		question:   "When was your last menstrual period, and is it regular?",
		tests:      []string{"Hormone panel", "Pelvic ultrasound"},
		impression: "a benign hormonal imbalance",
		advice:     "Track your cycle and book a follow-up in one month.",
	},
	conversation.Psychiatry: {
		question:   "How has your sleep been, and is this affecting your daily life?",
		tests:      []string{"Thyroid function", "Brain imaging"},
		impression: "stress related anxiety",
		advice:     "Regular sleep, exercise and a referral for talking therapy are recommended.",
	},
	conversation.InternalMedicine: {
		question:   "On a scale of 1 to 10, how severe is it, and do you have any other symptoms such as fever or nausea?",
		tests:      []string{"Complete blood count", "Basic metabolic panel", "Head CT"},
		impression: "a tension-type headache",
		advice:     "Stay hydrated, rest, and use over-the-counter pain relief as needed.",
	},
}

// Specialist asks one question, orders tests, and gives a diagnosis once
// the reports come back.
type Specialist struct {
	specialty conversation.Specialty
	profile   profile
}

// NewSpecialist creates the scripted specialist for sp.
func NewSpecialist(sp conversation.Specialty) *Specialist {
	p, ok := profiles[sp]
	if !ok {
		p = profiles[conversation.InternalMedicine]
	}
	return &Specialist{specialty: sp, profile: p}
}

// Info implements agent.Agent.
func (s *Specialist) Info() agent.Info {
	return agent.Info{Name: s.specialty.Token(), Description: "Specialist in " + string(s.specialty)}
}

// Run implements agent.Agent.
func (s *Specialist) Run(ctx context.Context, inv *agent.Invocation) (message.AgentMessage, error) {
	if reports := inv.ToolResultsFor(tool.ToolOrderTests); len(reports) > 0 {
		last := message.TrimmedText(reports[len(reports)-1])
		return message.AgentMessage{Content: fmt.Sprintf(
			"Thank you for your patience. Based on your symptoms and the results (%s), this looks like %s. %s",
			oneLine(last), s.profile.impression, s.profile.advice)}, nil
	}
	if inv.AnsweredQuestions() < 1 {
		return AskUser(s.profile.question), nil
	}
	tests := make([]any, len(s.profile.tests))
	for i, t := range s.profile.tests {
		tests[i] = t
	}
	return message.AgentMessage{
		Content: "Thank you. I'd like to run a few tests before concluding: " +
			strings.Join(s.profile.tests, ", ") + ".",
		ToolCalls: []message.ToolCall{{
			ID:   "call_" + uuid.NewString(),
			Name: tool.ToolOrderTests,
			Args: map[string]any{"tests": tests, "reason": "confirm the working diagnosis"},
		}},
	}, nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Pathologist asks whether the patient fasted and then reports.
type Pathologist struct{}

// NewPathologist creates the scripted pathologist.
func NewPathologist() *Pathologist { return &Pathologist{} }

// Info implements agent.Agent.
func (p *Pathologist) Info() agent.Info {
	return agent.Info{Name: "Pathologist", Description: "Runs laboratory tests."}
}

// Run implements agent.Agent.
func (p *Pathologist) Run(ctx context.Context, inv *agent.Invocation) (message.AgentMessage, error) {
	if inv.AnsweredQuestions() < 1 {
		return AskUser("Before we draw blood: have you eaten anything in the last 8 hours?"), nil
	}
	return message.AgentMessage{
		Content: "Pathology report: blood counts and chemistry are within normal limits. No markers of acute infection.",
	}, nil
}

// Radiologist reports directly.
type Radiologist struct{}

// NewRadiologist creates the scripted radiologist.
func NewRadiologist() *Radiologist { return &Radiologist{} }

// Info implements agent.Agent.
func (r *Radiologist) Info() agent.Info {
	return agent.Info{Name: "Radiologist", Description: "Reads imaging."}
}

// Run implements agent.Agent.
func (r *Radiologist) Run(ctx context.Context, inv *agent.Invocation) (message.AgentMessage, error) {
	return message.AgentMessage{Content: "Radiology report: no acute abnormality seen on imaging."}, nil
}

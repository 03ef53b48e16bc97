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

// Package workflow wires clinicians into the consultation graph.
//
// The GP interviews the patient and routes to a specialist with a bare
// routing token. The specialist may order tests, which sends the case
// through pathology and radiology and back. Every clinician can ask the
// patient a question; the graph halts before the matching ask-user node.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"trpc.group/trpc-go/trpc-consult-go/agent"
	"trpc.group/trpc-go/trpc-consult-go/conversation"
	"trpc.group/trpc-go/trpc-consult-go/graph"
	"trpc.group/trpc-go/trpc-consult-go/log"
	"trpc.group/trpc-go/trpc-consult-go/message"
	"trpc.group/trpc-go/trpc-consult-go/tool"
)

// Agent nodes.
const (
	NodeGP      = "GP"
	NodeOphthal = "Ophthal"
	NodePedia   = "Pedia"
	NodeOrtho   = "Ortho"
	NodeDermat  = "Dermat"
	NodeENT     = "ENT"
	NodeGynec   = "Gynec"
	NodePsych   = "Psych"
	NodeIntMed  = "IntMed"
	NodePatho   = "Patho"
	NodeRadio   = "Radio"
)

const askSuffix = "_AskUser"

// routeAsk is the condition result sending a node to its ask-user point.
const routeAsk = "ask"

var specialistNodes = map[conversation.Specialty]string{
	conversation.Ophthalmology:    NodeOphthal,
	conversation.Pediatrics:       NodePedia,
	conversation.Orthopedics:      NodeOrtho,
	conversation.Dermatology:      NodeDermat,
	conversation.ENT:              NodeENT,
	conversation.Gynecology:       NodeGynec,
	conversation.Psychiatry:       NodePsych,
	conversation.InternalMedicine: NodeIntMed,
}

// AskNode returns the ask-user node of an agent node.
func AskNode(nodeID string) string {
	return nodeID + askSuffix
}

// AgentOf returns the agent node an ask-user node belongs to.
func AgentOf(askNodeID string) (string, bool) {
	return strings.CutSuffix(askNodeID, askSuffix)
}

// SpecialistNode returns the node of sp.
func SpecialistNode(sp conversation.Specialty) (string, bool) {
	id, ok := specialistNodes[sp]
	return id, ok
}

// AgentNodes lists every agent node: GP, specialists, pathology, radiology.
func AgentNodes() []string {
	nodes := []string{NodeGP}
	for _, sp := range conversation.Specialties() {
		nodes = append(nodes, specialistNodes[sp])
	}
	return append(nodes, NodePatho, NodeRadio)
}

// AskNodes lists the ask-user points in the order of AgentNodes.
func AskNodes() []string {
	agents := AgentNodes()
	out := make([]string, len(agents))
	for i, id := range agents {
		out[i] = AskNode(id)
	}
	return out
}

// Roster is the set of clinicians the graph runs.
type Roster struct {
	GP          agent.Agent
	Specialists map[conversation.Specialty]agent.Agent
	Pathologist agent.Agent
	Radiologist agent.Agent
}

func (r Roster) validate() error {
	var errs []error
	if r.GP == nil {
		errs = append(errs, errors.New("roster has no GP"))
	}
	if r.Pathologist == nil {
		errs = append(errs, errors.New("roster has no pathologist"))
	}
	if r.Radiologist == nil {
		errs = append(errs, errors.New("roster has no radiologist"))
	}
	for _, sp := range conversation.Specialties() {
		if r.Specialists[sp] == nil {
			errs = append(errs, fmt.Errorf("roster has no %s specialist", sp))
		}
	}
	return errors.Join(errs...)
}

// New builds the consultation graph for roster.
func New(roster Roster) (*graph.Graph, error) {
	if err := roster.validate(); err != nil {
		return nil, err
	}
	sg := graph.NewStateGraph()

	gpRoutes := map[string]string{routeAsk: AskNode(NodeGP), graph.End: graph.End}
	radioRoutes := map[string]string{routeAsk: AskNode(NodeRadio), graph.End: graph.End}

	sg.AddNode(NodeGP, agentStep(NodeGP, conversation.Primary, roster.GP, primaryTranscript, gpInstruction,
		tool.AskUser()), graph.WithName("General practitioner"))
	sg.AddInterruptNode(AskNode(NodeGP), nil)
	sg.AddEdge(AskNode(NodeGP), NodeGP)

	for _, sp := range conversation.Specialties() {
		id := specialistNodes[sp]
		gpRoutes[id] = id
		radioRoutes[id] = id
		sg.AddNode(id, agentStep(id, conversation.Specialist, roster.Specialists[sp], specialistTranscript,
			specialistInstruction(sp), tool.AskUser(), tool.OrderTests()), graph.WithName(sp.Token()))
		sg.AddInterruptNode(AskNode(id), nil)
		sg.AddEdge(AskNode(id), id)
	}

	sg.AddNode(NodePatho, agentStep(NodePatho, conversation.Pathology, roster.Pathologist,
		helperTranscript(conversation.Pathology), pathologyInstruction, tool.AskUser()),
		graph.WithName("Pathologist"))
	sg.AddInterruptNode(AskNode(NodePatho), nil)
	sg.AddEdge(AskNode(NodePatho), NodePatho)

	sg.AddNode(NodeRadio, agentStep(NodeRadio, conversation.Radiology, roster.Radiologist,
		helperTranscript(conversation.Radiology), radiologyInstruction, tool.AskUser()),
		graph.WithName("Radiologist"))
	sg.AddInterruptNode(AskNode(NodeRadio), nil)
	sg.AddEdge(AskNode(NodeRadio), NodeRadio)

	sg.AddConditionalEdges(NodeGP, routeGP, gpRoutes)
	for _, sp := range conversation.Specialties() {
		id := specialistNodes[sp]
		sg.AddConditionalEdges(id, routeSpecialist, map[string]string{
			routeAsk:  AskNode(id),
			NodePatho: NodePatho,
			graph.End: graph.End,
		})
	}
	sg.AddConditionalEdges(NodePatho, routePathology, map[string]string{
		routeAsk:  AskNode(NodePatho),
		NodeRadio: NodeRadio,
	})
	sg.AddConditionalEdges(NodeRadio, routeRadiology, radioRoutes)

	return sg.SetEntryPoint(NodeGP).Compile()
}

type transcriptFunc func(state *conversation.State) []message.Message

func agentStep(
	nodeID string,
	channel conversation.Channel,
	a agent.Agent,
	transcript transcriptFunc,
	instruction string,
	tools ...*tool.Declaration,
) graph.NodeFunc {
	return func(ctx context.Context, state *conversation.State) (*graph.Update, error) {
		inv := agent.NewInvocation(transcript(state),
			agent.WithInvocationNodeID(nodeID),
			agent.WithInvocationInstruction(instruction),
			agent.WithInvocationTools(tools...),
		)
		msg, err := a.Run(ctx, inv)
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", a.Info().Name, err)
		}
		log.Debugf("workflow: %s wrote %d chars and %d tool calls to %s",
			nodeID, len(msg.Content), len(msg.ToolCalls), channel)
		return &graph.Update{Channel: channel, Message: msg}, nil
	}
}

func lastAgentMessage(state *conversation.State, c conversation.Channel) (message.AgentMessage, bool) {
	last, ok := state.Last(c)
	if !ok {
		return message.AgentMessage{}, false
	}
	am, ok := last.(message.AgentMessage)
	return am, ok
}

func asks(state *conversation.State, c conversation.Channel) bool {
	am, ok := lastAgentMessage(state, c)
	return ok && len(am.AskUserCalls()) > 0
}

// routedSpecialist returns the node chosen by the GP's latest routing token.
func routedSpecialist(state *conversation.State) (string, bool) {
	l, ok := state.Log(conversation.Primary)
	if !ok {
		return "", false
	}
	for i := l.Len() - 1; i >= 0; i-- {
		am, ok := l.At(i).(message.AgentMessage)
		if !ok {
			continue
		}
		if sp, ok := conversation.ParseRoutingToken(am.Content); ok {
			return SpecialistNode(sp)
		}
	}
	return "", false
}

func routeGP(ctx context.Context, state *conversation.State) (string, error) {
	if asks(state, conversation.Primary) {
		return routeAsk, nil
	}
	am, ok := lastAgentMessage(state, conversation.Primary)
	if !ok {
		return graph.End, nil
	}
	sp, ok := conversation.ParseRoutingToken(am.Content)
	if !ok {
		return graph.End, nil
	}
	return specialistNodes[sp], nil
}

func routeSpecialist(ctx context.Context, state *conversation.State) (string, error) {
	if asks(state, conversation.Specialist) {
		return routeAsk, nil
	}
	if am, ok := lastAgentMessage(state, conversation.Specialist); ok && am.HasToolCall(tool.ToolOrderTests) {
		return NodePatho, nil
	}
	return graph.End, nil
}

func routePathology(ctx context.Context, state *conversation.State) (string, error) {
	if asks(state, conversation.Pathology) {
		return routeAsk, nil
	}
	return NodeRadio, nil
}

func routeRadiology(ctx context.Context, state *conversation.State) (string, error) {
	if asks(state, conversation.Radiology) {
		return routeAsk, nil
	}
	if id, ok := routedSpecialist(state); ok {
		return id, nil
	}
	return graph.End, nil
}

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

package graph

import (
	"errors"
	"fmt"
)

// StateGraph builds a Graph with a fluent API. Build errors are collected
// and reported by Compile.
type StateGraph struct {
	graph *Graph
	errs  []error
}

// NewStateGraph creates a new builder.
func NewStateGraph() *StateGraph {
	return &StateGraph{graph: New()}
}

// Option configures a node.
type Option func(*Node)

// WithName sets the display name of a node.
func WithName(name string) Option {
	return func(node *Node) {
		node.Name = name
	}
}

// WithDescription sets the description of a node.
func WithDescription(description string) Option {
	return func(node *Node) {
		node.Description = description
	}
}

// AddNode adds a step.
func (sg *StateGraph) AddNode(id string, function NodeFunc, opts ...Option) *StateGraph {
	node := &Node{
		ID:       id,
		Name:     id,
		Function: function,
	}
	for _, opt := range opts {
		opt(node)
	}
	sg.record(sg.graph.addNode(node))
	return sg
}

// AddInterruptNode adds an ask-user point. Execution halts before it; when
// the session is resumed the node runs first. A nil function makes it a
// passthrough.
func (sg *StateGraph) AddInterruptNode(id string, function NodeFunc, opts ...Option) *StateGraph {
	opts = append(opts, func(n *Node) { n.Interrupt = true })
	return sg.AddNode(id, function, opts...)
}

// AddEdge adds an unconditional transition.
func (sg *StateGraph) AddEdge(from, to string) *StateGraph {
	sg.record(sg.graph.addEdge(&Edge{From: from, To: to}))
	return sg
}

// AddConditionalEdges routes from a node by the result of condition.
func (sg *StateGraph) AddConditionalEdges(
	from string,
	condition ConditionalFunc,
	pathMap map[string]string,
) *StateGraph {
	condEdge := &ConditionalEdge{
		From:      from,
		Condition: condition,
		PathMap:   pathMap,
	}
	sg.record(sg.graph.addConditionalEdge(condEdge))
	return sg
}

// SetEntryPoint sets the first node.
func (sg *StateGraph) SetEntryPoint(nodeID string) *StateGraph {
	sg.record(sg.graph.setEntryPoint(nodeID))
	return sg
}

// SetFinishPoint routes nodeID to End.
func (sg *StateGraph) SetFinishPoint(nodeID string) *StateGraph {
	return sg.AddEdge(nodeID, End)
}

// Compile validates and returns the graph.
func (sg *StateGraph) Compile() (*Graph, error) {
	if err := errors.Join(sg.errs...); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	if err := sg.graph.validate(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	return sg.graph, nil
}

// MustCompile is Compile that panics on error.
func (sg *StateGraph) MustCompile() *Graph {
	graph, err := sg.Compile()
	if err != nil {
		panic(err)
	}
	return graph
}

func (sg *StateGraph) record(err error) {
	if err != nil {
		sg.errs = append(sg.errs, err)
	}
}

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

// Package graph runs a workflow of agent steps over a conversation state,
// checkpointing after every step and halting before declared interrupt
// nodes.
package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"trpc.group/trpc-go/trpc-consult-go/conversation"
	"trpc.group/trpc-go/trpc-consult-go/message"
)

const (
	// Start represents the virtual start node for routing.
	Start = "__start__"
	// End represents the virtual end node for routing.
	End = "__end__"
)

// Update is the write a node makes: one message appended to one channel.
type Update struct {
	Channel conversation.Channel
	Message message.Message
}

// NodeFunc runs one step. It receives a copy of the state and returns the
// update to apply, or nil for a node that writes nothing.
type NodeFunc func(ctx context.Context, state *conversation.State) (*Update, error)

// ConditionalFunc picks a key of a conditional edge's path map.
type ConditionalFunc func(ctx context.Context, state *conversation.State) (string, error)

// Node is a step of the workflow.
type Node struct {
	ID          string
	Name        string
	Description string
	Function    NodeFunc
	// Interrupt marks the node as an ask-user point: execution halts before it.
	Interrupt bool
}

// Edge is an unconditional transition.
type Edge struct {
	From string
	To   string
}

// ConditionalEdge routes by the result of Condition.
type ConditionalEdge struct {
	From      string
	Condition ConditionalFunc
	PathMap   map[string]string // Maps condition result to target node.
}

// Graph is an immutable workflow definition once compiled.
type Graph struct {
	mu               sync.RWMutex
	nodes            map[string]*Node
	edges            map[string][]*Edge
	conditionalEdges map[string]*ConditionalEdge
	entryPoint       string
}

// New creates an empty graph. Most callers use NewStateGraph instead.
func New() *Graph {
	return &Graph{
		nodes:            make(map[string]*Node),
		edges:            make(map[string][]*Edge),
		conditionalEdges: make(map[string]*ConditionalEdge),
	}
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	node, exists := g.nodes[id]
	return node, exists
}

// Edges returns the unconditional edges leaving nodeID.
func (g *Graph) Edges(nodeID string) []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[nodeID]
}

// ConditionalEdge returns the conditional edge leaving nodeID.
func (g *Graph) ConditionalEdge(nodeID string) (*ConditionalEdge, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	edge, exists := g.conditionalEdges[nodeID]
	return edge, exists
}

// EntryPoint returns the first node of the workflow.
func (g *Graph) EntryPoint() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.entryPoint
}

// IsInterruptNode reports whether id is a declared ask-user point.
func (g *Graph) IsInterruptNode(id string) bool {
	node, ok := g.Node(id)
	return ok && node.Interrupt
}

// InterruptNodes returns the declared ask-user points, sorted.
func (g *Graph) InterruptNodes() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var ids []string
	for id, n := range g.nodes {
		if n.Interrupt {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (g *Graph) validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.entryPoint == "" {
		return fmt.Errorf("graph must have an entry point")
	}
	if _, exists := g.nodes[g.entryPoint]; !exists {
		return fmt.Errorf("entry point node %s does not exist", g.entryPoint)
	}
	for from, ce := range g.conditionalEdges {
		for key, to := range ce.PathMap {
			if to == End {
				continue
			}
			if _, ok := g.nodes[to]; !ok {
				return fmt.Errorf("conditional edge %s[%s] targets unknown node %s", from, key, to)
			}
		}
	}
	return nil
}

func (g *Graph) addNode(node *Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if node.ID == "" {
		return fmt.Errorf("node ID cannot be empty for %+v", node)
	}
	if node.ID == Start || node.ID == End {
		return fmt.Errorf("node ID %s is reserved", node.ID)
	}
	if _, exists := g.nodes[node.ID]; exists {
		return fmt.Errorf("node with ID %s already exists", node.ID)
	}
	g.nodes[node.ID] = node
	return nil
}

func (g *Graph) addEdge(edge *Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if edge.From == "" || edge.To == "" {
		return fmt.Errorf("edge from and to cannot be empty")
	}
	if _, exists := g.nodes[edge.From]; !exists {
		return fmt.Errorf("source node %s does not exist", edge.From)
	}
	if edge.To != End {
		if _, exists := g.nodes[edge.To]; !exists {
			return fmt.Errorf("target node %s does not exist", edge.To)
		}
	}
	g.edges[edge.From] = append(g.edges[edge.From], edge)
	return nil
}

func (g *Graph) addConditionalEdge(condEdge *ConditionalEdge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.nodes[condEdge.From]; !exists {
		return fmt.Errorf("source node %s does not exist", condEdge.From)
	}
	if condEdge.Condition == nil {
		return fmt.Errorf("conditional edge from %s has no condition", condEdge.From)
	}
	if _, exists := g.conditionalEdges[condEdge.From]; exists {
		return fmt.Errorf("node %s already has a conditional edge", condEdge.From)
	}
	g.conditionalEdges[condEdge.From] = condEdge
	return nil
}

func (g *Graph) setEntryPoint(nodeID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.nodes[nodeID]; !exists {
		return fmt.Errorf("entry point node %s does not exist", nodeID)
	}
	g.entryPoint = nodeID
	return nil
}

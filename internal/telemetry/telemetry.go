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

// Package telemetry holds names and helpers shared by the trace and metric
// packages.
package telemetry

import (
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	ServiceName      = "consultd"
	ServiceVersion   = "v0.1.0"
	ServiceNamespace = "trpc-go-consult"
	InstrumentName   = "trpc.consult.go"
)

const (
	// ProtocolGRPC uses gRPC protocol for OTLP exporter.
	ProtocolGRPC string = "grpc"
	// ProtocolHTTP uses HTTP protocol for OTLP exporter.
	ProtocolHTTP string = "http"
)

// Span and metric attribute keys.
const (
	KeySessionID = "trpc.go.consult.session_id"
	KeyNodeID    = "trpc.go.consult.node_id"
	KeyNodeName  = "trpc.go.consult.node_name"
	KeyNextNode  = "trpc.go.consult.next_node"
	KeyChannel   = "trpc.go.consult.channel"
	KeyStep      = "trpc.go.consult.step"
	KeyResuming  = "trpc.go.consult.resuming"
	KeyError     = "trpc.go.consult.error"
	KeyOperation = "trpc.go.consult.operation"
	KeyOutcome   = "trpc.go.consult.outcome"
	KeyAgent     = "trpc.go.consult.agent"
)

// NewGRPCConn connects to an OpenTelemetry collector.
func NewGRPCConn(endpoint string) (*grpc.ClientConn, error) {
	// TLS is expected to be terminated by the collector sidecar.
	conn, err := grpc.NewClient(endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to collector: %w", err)
	}
	return conn, nil
}

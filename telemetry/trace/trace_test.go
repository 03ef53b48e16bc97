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

package trace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	itelemetry "trpc.group/trpc-go/trpc-consult-go/internal/telemetry"
)

func TestTracesEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "custom-trace:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "generic:4317")
	require.Equal(t, "custom-trace:4317", tracesEndpoint(itelemetry.ProtocolGRPC))

	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	require.Equal(t, "generic:4317", tracesEndpoint(itelemetry.ProtocolGRPC))

	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	require.Equal(t, "localhost:4317", tracesEndpoint(itelemetry.ProtocolGRPC))
	require.Equal(t, "localhost:4318", tracesEndpoint(itelemetry.ProtocolHTTP))
}

func TestParseEndpointURL(t *testing.T) {
	endpoint, path, err := parseEndpointURL("collector:4318/otlp/v1/traces")
	require.NoError(t, err)
	require.Equal(t, "collector:4318", endpoint)
	require.Equal(t, "/otlp/v1/traces", path)

	endpoint, path, err = parseEndpointURL("https://collector")
	require.NoError(t, err)
	require.Equal(t, "collector", endpoint)
	require.Equal(t, "/", path)

	_, _, err = parseEndpointURL("http://")
	require.Error(t, err)
}

func TestStartAndClean(t *testing.T) {
	old := Tracer
	defer func() { Tracer = old }()

	for _, protocol := range []string{itelemetry.ProtocolGRPC, itelemetry.ProtocolHTTP} {
		clean, err := Start(context.Background(), WithProtocol(protocol), WithEndpoint("localhost:4317"))
		require.NoError(t, err)
		require.NotNil(t, clean)
		_ = clean() // no collector is running in tests
	}
}

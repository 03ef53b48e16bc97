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

// Package tool declares the tools agents may call during a consultation.
package tool

import (
	"encoding/json"
	"fmt"

	"trpc.group/trpc-go/trpc-consult-go/message"
)

// ToolOrderTests is the tool a specialist calls to send the case to the
// pathology and radiology departments.
const ToolOrderTests = "order_tests"

// Declaration describes the metadata of a tool, such as its name, description, and expected arguments.
type Declaration struct {
	// Name is the unique identifier of the tool
	Name string `json:"name"`

	// Description explains the tool's purpose and functionality
	Description string `json:"description"`

	// InputSchema defines the expected input for the tool in JSON schema format.
	InputSchema *Schema `json:"inputSchema"`
}

// Schema represents the structure of JSON Schema used for defining arguments.
type Schema struct {
	//  Type Specifies the data type (e.g., "object", "array", "string", "number")
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Required    []string `json:"required,omitempty"`
	// Properties of the arguments, each with its own schema
	Properties map[string]*Schema `json:"properties,omitempty"`
	// For array types, defines the schema of items in the array
	Items *Schema `json:"items,omitempty"`
	// AdditionalProperties: Controls whether properties not defined in Properties are allowed
	AdditionalProperties any `json:"additionalProperties,omitempty"`
}

// Parameters renders the input schema as a generic JSON object, the shape
// chat completion APIs expect.
func (d *Declaration) Parameters() (map[string]any, error) {
	if d.InputSchema == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}, nil
	}
	b, err := json.Marshal(d.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("tool %s: marshal schema: %w", d.Name, err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("tool %s: unmarshal schema: %w", d.Name, err)
	}
	return out, nil
}

// CheckArgs verifies that every required argument is present.
func (d *Declaration) CheckArgs(args map[string]any) error {
	if d.InputSchema == nil {
		return nil
	}
	for _, name := range d.InputSchema.Required {
		if _, ok := args[name]; !ok {
			return fmt.Errorf("tool %s: missing argument %q", d.Name, name)
		}
	}
	return nil
}

// AskUser declares the interrupt tool. Calling it pauses the consultation
// until the user answers.
func AskUser() *Declaration {
	return &Declaration{
		Name:        message.ToolAskUser,
		Description: "Ask the patient one question and wait for the answer.",
		InputSchema: &Schema{
			Type: "object",
			Properties: map[string]*Schema{
				"question": {Type: "string", Description: "The question shown to the patient."},
			},
			Required:             []string{"question"},
			AdditionalProperties: false,
		},
	}
}

// OrderTests declares the tool that sends the case to pathology and radiology.
func OrderTests() *Declaration {
	return &Declaration{
		Name:        ToolOrderTests,
		Description: "Order laboratory tests and imaging for the patient.",
		InputSchema: &Schema{
			Type: "object",
			Properties: map[string]*Schema{
				"tests": {
					Type:        "array",
					Description: "Names of the tests to order.",
					Items:       &Schema{Type: "string"},
				},
				"reason": {Type: "string", Description: "Why the tests are needed."},
			},
			Required: []string{"tests"},
		},
	}
}

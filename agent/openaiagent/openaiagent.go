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

// Package openaiagent provides clinicians backed by an OpenAI compatible
// chat completion API with tool calling.
package openaiagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"trpc.group/trpc-go/trpc-consult-go/agent"
	"trpc.group/trpc-go/trpc-consult-go/log"
	"trpc.group/trpc-go/trpc-consult-go/message"
	"trpc.group/trpc-go/trpc-consult-go/tool"
)

// ErrEmptyResponse is returned when the API answers without choices.
var ErrEmptyResponse = errors.New("openaiagent: response has no choices")

type options struct {
	APIKey        string
	BaseURL       string
	Description   string
	Instruction   string
	Temperature   *float64
	HTTPClient    *http.Client
	OpenAIOptions []openaiopt.RequestOption
}

// Option configures an Agent.
type Option func(*options)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(o *options) { o.APIKey = key }
}

// WithBaseURL points the client at an OpenAI compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *options) { o.BaseURL = url }
}

// WithDescription sets the agent description.
func WithDescription(description string) Option {
	return func(o *options) { o.Description = description }
}

// WithInstruction sets the default system prompt. An invocation instruction
// takes precedence.
func WithInstruction(instruction string) Option {
	return func(o *options) { o.Instruction = instruction }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *options) { o.Temperature = &t }
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.HTTPClient = c }
}

// WithOpenAIOptions appends raw openai-go request options.
func WithOpenAIOptions(opts ...openaiopt.RequestOption) Option {
	return func(o *options) { o.OpenAIOptions = append(o.OpenAIOptions, opts...) }
}

// Agent runs one chat completion per step.
type Agent struct {
	name        string
	model       string
	description string
	instruction string
	temperature *float64
	client      openai.Client
}

// New creates an agent named name using model.
func New(name, model string, opts ...Option) *Agent {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	var clientOpts []openaiopt.RequestOption
	if o.APIKey != "" {
		clientOpts = append(clientOpts, openaiopt.WithAPIKey(o.APIKey))
	}
	if o.BaseURL != "" {
		clientOpts = append(clientOpts, openaiopt.WithBaseURL(o.BaseURL))
	}
	if o.HTTPClient != nil {
		clientOpts = append(clientOpts, openaiopt.WithHTTPClient(o.HTTPClient))
	}
	clientOpts = append(clientOpts, o.OpenAIOptions...)
	return &Agent{
		name:        name,
		model:       model,
		description: o.Description,
		instruction: o.Instruction,
		temperature: o.Temperature,
		client:      openai.NewClient(clientOpts...),
	}
}

// Info implements agent.Agent.
func (a *Agent) Info() agent.Info {
	return agent.Info{Name: a.name, Description: a.description}
}

// Run implements agent.Agent.
func (a *Agent) Run(ctx context.Context, inv *agent.Invocation) (message.AgentMessage, error) {
	instruction := inv.Instruction
	if instruction == "" {
		instruction = a.instruction
	}
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(a.model),
		Messages: convertMessages(instruction, inv.Transcript),
		Tools:    convertTools(inv.Tools),
	}
	if a.temperature != nil {
		params.Temperature = openai.Float(*a.temperature)
	}
	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return message.AgentMessage{}, fmt.Errorf("openaiagent %s: chat completion: %w", a.name, err)
	}
	if len(resp.Choices) == 0 {
		return message.AgentMessage{}, ErrEmptyResponse
	}
	return a.convertResponse(inv, resp.Choices[0].Message)
}

func (a *Agent) convertResponse(
	inv *agent.Invocation,
	msg openai.ChatCompletionMessage,
) (message.AgentMessage, error) {
	out := message.AgentMessage{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return message.AgentMessage{}, fmt.Errorf("openaiagent %s: arguments of %s: %w",
					a.name, tc.Function.Name, err)
			}
		}
		if d, ok := inv.Tool(tc.Function.Name); !ok {
			log.Warnf("openaiagent %s: model called undeclared tool %s", a.name, tc.Function.Name)
		} else if err := d.CheckArgs(args); err != nil {
			log.Warnf("openaiagent %s: %v", a.name, err)
		}
		out.ToolCalls = append(out.ToolCalls, message.ToolCall{ID: tc.ID, Name: tc.Function.Name, Args: args})
	}
	// The question is what the patient sees when the model leaves content empty.
	if out.Content == "" {
		for _, c := range out.AskUserCalls() {
			if q, ok := c.Question(); ok {
				out.Content = q
				break
			}
		}
	}
	return out, nil
}

func convertMessages(instruction string, transcript []message.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(transcript)+1)
	if instruction != "" {
		result = append(result, openai.ChatCompletionMessageParamUnion{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(instruction),
				},
			},
		})
	}
	for _, m := range transcript {
		switch msg := m.(type) {
		case message.HumanMessage:
			result = append(result, openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(msg.Content),
					},
				},
			})
		case message.AgentMessage:
			assistant := &openai.ChatCompletionAssistantMessageParam{
				ToolCalls: convertToolCalls(msg.ToolCalls),
			}
			if msg.Content != "" {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(msg.Content),
				}
			}
			result = append(result, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
		case message.ToolResultMessage:
			result = append(result, openai.ChatCompletionMessageParamUnion{
				OfTool: &openai.ChatCompletionToolMessageParam{
					Content: openai.ChatCompletionToolMessageParamContentUnion{
						OfString: openai.String(msg.Content),
					},
					ToolCallID: msg.CorrelatesWith,
				},
			})
		}
	}
	return result
}

func convertToolCalls(toolCalls []message.ToolCall) []openai.ChatCompletionMessageToolCallParam {
	var result []openai.ChatCompletionMessageToolCallParam
	for _, toolCall := range toolCalls {
		args, err := json.Marshal(toolCall.Args)
		if err != nil || toolCall.Args == nil {
			args = []byte("{}")
		}
		result = append(result, openai.ChatCompletionMessageToolCallParam{
			ID: toolCall.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      toolCall.Name,
				Arguments: string(args),
			},
		})
	}
	return result
}

func convertTools(tools []*tool.Declaration) []openai.ChatCompletionToolParam {
	var result []openai.ChatCompletionToolParam
	for _, declaration := range tools {
		parameters, err := declaration.Parameters()
		if err != nil {
			log.Errorf("failed to convert tool schema for %s: %v", declaration.Name, err)
			continue
		}
		result = append(result, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        declaration.Name,
				Description: openai.String(declaration.Description),
				Parameters:  shared.FunctionParameters(parameters),
			},
		})
	}
	return result
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the hosted language-model client used by the
// orchestrator. The only supported provider is the Gemini generateContent
// REST API; the types here are kept wire-format-agnostic so the orchestrator
// never sees Gemini request or response shapes.
package llm

import "encoding/json"

// ToolDef declares one callable tool for ChatWithTools.
//
// Thread Safety: ToolDef is immutable and safe for concurrent read access.
type ToolDef struct {
	// Name is the function name the model will call.
	Name string `json:"name"`

	// Description explains what the function does.
	Description string `json:"description"`

	// Parameters defines the JSON Schema for function parameters.
	Parameters ToolParameters `json:"parameters"`
}

// ToolParameters defines the JSON Schema for tool parameters.
type ToolParameters struct {
	// Type is the JSON Schema type. Always "object" for tool parameters.
	Type string `json:"type"`

	// Properties maps parameter names to their definitions.
	Properties map[string]ToolParamDef `json:"properties,omitempty"`

	// Required lists parameter names that must be provided.
	Required []string `json:"required,omitempty"`
}

// ToolParamDef defines a single parameter in JSON Schema format.
type ToolParamDef struct {
	// Type is the JSON Schema type (string, integer, boolean, number).
	Type string `json:"type"`

	// Description explains what the parameter is for.
	Description string `json:"description,omitempty"`

	// Enum restricts values to a set of options.
	Enum []any `json:"enum,omitempty"`
}

// ChatMessage is one entry of the conversation context sent to the model.
//
// Description:
//
//	Regular messages use Role + Content. Assistant messages that requested
//	a tool carry ToolCalls; tool-result messages carry ToolName plus the
//	result payload in Content (JSON). The system message becomes the
//	request's systemInstruction rather than a content block.
//
// Thread Safety: ChatMessage is safe for concurrent read access.
type ChatMessage struct {
	// Role is the message role: "system", "user", "assistant", or "tool".
	Role string `json:"role"`

	// Content is the text content of the message.
	Content string `json:"content,omitempty"`

	// ToolCalls contains tool invocations (for assistant messages).
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolName is the tool name for tool result messages. Required by the
	// functionResponse wire shape.
	ToolName string `json:"tool_name,omitempty"`
}

// ToolCall is a single tool invocation requested by the model.
//
// The generateContent API does not assign call IDs, so synthetic ones are
// generated per response.
type ToolCall struct {
	// ID is the unique identifier for this tool call.
	ID string `json:"id"`

	// Name is the function name to call.
	Name string `json:"name"`

	// Arguments is the raw JSON arguments for the function.
	Arguments json.RawMessage `json:"arguments"`
}

// ArgumentMap decodes the call arguments into a generic mapping. Malformed
// or empty arguments decode to an empty map rather than failing the turn.
func (t *ToolCall) ArgumentMap() map[string]any {
	args := map[string]any{}
	if len(t.Arguments) == 0 {
		return args
	}
	if err := json.Unmarshal(t.Arguments, &args); err != nil {
		return map[string]any{}
	}
	return args
}

// ChatResult is the provider-agnostic result from Chat and ChatWithTools.
//
// Thread Safety: ChatResult is safe for concurrent read access.
type ChatResult struct {
	// Content is the text response (may be empty if only tool calls).
	Content string

	// ToolCalls contains tool calls from the model.
	ToolCalls []ToolCall

	// StopReason indicates why generation stopped.
	// Values: "end" (normal completion) or "tool_use" (tool calls present).
	StopReason string
}

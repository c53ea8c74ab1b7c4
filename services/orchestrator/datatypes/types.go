// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the conversation-level types shared between the
// orchestrator, the conversation store, and the LLM client. It has no
// dependencies on any other service package so every service can import it.
package datatypes

import "encoding/json"

// Role identifies the author of a conversation turn.
type Role string

const (
	// RoleUser is a raw message from the end user.
	RoleUser Role = "user"
	// RoleAssistant is narrated text produced by the model and shown to the user.
	RoleAssistant Role = "assistant"
	// RoleToolCall is a structured tool invocation requested by the model.
	RoleToolCall Role = "tool_call"
	// RoleToolResult is the projected result of a dispatched tool call.
	RoleToolResult Role = "tool_result"
)

// Turn is one entry in a conversation's ordered history.
//
// Description:
//
//	Turn is a tagged union over Role. Exactly one payload set is meaningful
//	for each role:
//	  - RoleUser, RoleAssistant: Text.
//	  - RoleToolCall: Tool + Args.
//	  - RoleToolResult: Tool + Result.
//
//	A tool-call turn is always immediately followed by exactly one
//	tool-result turn before any further user turn is appended. The
//	orchestrator is the only writer and preserves that ordering.
//
// Thread Safety: Turn values are treated as immutable after construction.
type Turn struct {
	Role Role `json:"role"`

	// Text is the message body for user and assistant turns.
	Text string `json:"text,omitempty"`

	// Tool is the tool name for tool-call and tool-result turns.
	Tool string `json:"tool,omitempty"`

	// Args holds the model-supplied arguments of a tool-call turn.
	Args map[string]any `json:"args,omitempty"`

	// Result holds the projected, model-visible result of a tool-result
	// turn. Raw downstream payloads never appear here.
	Result map[string]string `json:"result,omitempty"`
}

// UserTurn builds a user turn from raw message text.
func UserTurn(text string) Turn {
	return Turn{Role: RoleUser, Text: text}
}

// AssistantTurn builds an assistant text turn.
func AssistantTurn(text string) Turn {
	return Turn{Role: RoleAssistant, Text: text}
}

// ToolCallTurn builds a tool-call turn from the model's requested tool name
// and argument mapping.
func ToolCallTurn(tool string, args map[string]any) Turn {
	return Turn{Role: RoleToolCall, Tool: tool, Args: args}
}

// ToolResultTurn builds a tool-result turn from a projected result mapping.
func ToolResultTurn(tool string, result map[string]string) Turn {
	return Turn{Role: RoleToolResult, Tool: tool, Result: result}
}

// UserContext carries per-request caller identity the orchestrator needs for
// prompt assembly. It is supplied by the chat endpoint, not by the model.
type UserContext struct {
	// DisplayName is the caller's display name as reported by the frontend.
	// May be empty; the orchestrator substitutes a generic fallback.
	DisplayName string `json:"display_name"`
}

// ResultJSON renders a tool-result mapping as compact JSON for logging and
// for feeding back to the model as a functionResponse payload.
func (t Turn) ResultJSON() string {
	if len(t.Result) == 0 {
		return "{}"
	}
	b, err := json.Marshal(t.Result)
	if err != nil {
		return "{}"
	}
	return string(b)
}

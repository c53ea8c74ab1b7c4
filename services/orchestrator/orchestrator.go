// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator is the tool-invocation core: it turns one user chat
// message into zero or more downstream action calls via the two-round model
// protocol, enforces the reset confirmation gate, and maintains the bounded
// conversation history.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mamartiner07/SophIA/services/history"
	"github.com/mamartiner07/SophIA/services/itsm"
	"github.com/mamartiner07/SophIA/services/llm"
	"github.com/mamartiner07/SophIA/services/orchestrator/datatypes"
	"github.com/mamartiner07/SophIA/services/reset"
)

// tracerName is the OTel tracer for orchestration spans.
const tracerName = "sophia.orchestrator"

// blockedReply is returned when the model filters its own response. The user
// must never be left without a sentence of guidance.
const blockedReply = "Una disculpa, no puedo responder a ese mensaje. ¿Te ayudo con el estatus de un ticket o un reseteo de contraseña?"

// ModelClient is the language-model surface the orchestrator drives.
//
// ChatWithTools is the first round (tool schema advertised); Chat is the
// second round (narration only, no tools).
type ModelClient interface {
	ChatWithTools(ctx context.Context, messages []llm.ChatMessage, params llm.GenerationParams, tools []llm.ToolDef) (*llm.ChatResult, error)
	Chat(ctx context.Context, messages []llm.ChatMessage, params llm.GenerationParams) (string, error)
}

// TicketClient looks up incident records. Lookup must treat absence as a
// normal result, not an error.
type TicketClient interface {
	Lookup(ctx context.Context, ticketRef string) (itsm.LookupResult, error)
}

// ResetClient initiates reset jobs and drives them to a terminal outcome.
type ResetClient interface {
	StartReset(ctx context.Context, args reset.Args) (reset.JobHandle, error)
	AwaitOutcome(ctx context.Context, handle reset.JobHandle) (reset.Outcome, error)
}

// Orchestrator drives the two-round tool protocol for one chat deployment.
//
// Description:
//
//	Handle appends the user turn, calls the model with the declared tool
//	schema, dispatches at most one requested tool, injects the projected
//	result, and calls the model a second time to narrate. The confirmation
//	gate for reset_execute lives here, not in the model: a tool call with
//	confirmed != true never reaches the reset client.
//
// Thread Safety: Orchestrator is safe for concurrent use; per-conversation
// ordering is guaranteed by the history store's per-key lock.
type Orchestrator struct {
	model   ModelClient
	tickets TicketClient
	resets  ResetClient
	store   history.Store
}

// New creates an Orchestrator over the given collaborators.
func New(model ModelClient, tickets TicketClient, resets ResetClient, store history.Store) *Orchestrator {
	return &Orchestrator{
		model:   model,
		tickets: tickets,
		resets:  resets,
		store:   store,
	}
}

// Handle produces the assistant reply for one user message.
//
// Description:
//
//	Implements the tool protocol:
//	 1. Append the user turn.
//	 2. First model round with the tool schema.
//	 3. Free text → append and return it verbatim (terminal, no second round).
//	 4. Tool request → dispatch (gate checked for reset), project the
//	    result, append tool-call + tool-result turns, second model round
//	    without tools, append and return the narration.
//
//	A filtered (blocked) model response is a normal outcome answered with
//	fixed guidance text. "Confirmation required" is a normal tool result.
//
// Outputs:
//   - string: The assistant-visible reply text.
//   - error: ErrUpstreamUnavailable when a model round cannot be completed;
//     *ToolExecutionError when a dispatched action fails.
//
// Thread Safety: This method is safe for concurrent use.
func (o *Orchestrator) Handle(ctx context.Context, conversationKey, userMessage string, userCtx datatypes.UserContext) (string, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "orchestrator.handle")
	defer span.End()
	span.SetAttributes(attribute.String("conversation_key", conversationKey))

	logger := slog.With(slog.String("conversation_key", conversationKey))

	o.store.Append(conversationKey, datatypes.UserTurn(userMessage))

	systemPrompt := buildSystemPrompt(userCtx.DisplayName, detectIntent(userMessage))
	messages := toChatMessages(systemPrompt, o.store.Read(conversationKey))

	result, err := o.model.ChatWithTools(ctx, messages, llm.GenerationParams{}, toolDeclarations)
	if err != nil {
		if errors.Is(err, llm.ErrContentBlocked) {
			logger.Warn("Model response blocked, answering with guidance text")
			o.store.Append(conversationKey, datatypes.AssistantTurn(blockedReply))
			return blockedReply, nil
		}
		span.SetStatus(codes.Error, "model round one failed")
		return "", fmt.Errorf("%w: first model round: %v", ErrUpstreamUnavailable, err)
	}

	if len(result.ToolCalls) == 0 {
		reply := result.Content
		if reply == "" {
			reply = blockedReply
		}
		o.store.Append(conversationKey, datatypes.AssistantTurn(reply))
		recordExchange("text")
		return reply, nil
	}

	// The schema permits exactly one tool request per round; extra calls
	// from a misbehaving model are dropped.
	call := result.ToolCalls[0]
	args := call.ArgumentMap()
	logger.Info("Model requested tool",
		slog.String("tool", call.Name),
		slog.String("call_id", call.ID),
	)
	span.SetAttributes(attribute.String("tool", call.Name))

	toolResult, err := o.dispatchTool(ctx, call.Name, args)
	if err != nil {
		span.SetStatus(codes.Error, "tool dispatch failed")
		recordDispatch(call.Name, "error")
		return "", &ToolExecutionError{Tool: call.Name, Err: err}
	}
	recordDispatch(call.Name, dispatchLabel(toolResult))

	o.store.Append(conversationKey, datatypes.ToolCallTurn(call.Name, args))
	o.store.Append(conversationKey, datatypes.ToolResultTurn(call.Name, toolResult))

	// Second round: updated window, no tool schema, so the model can only
	// narrate the injected result.
	messages = toChatMessages(systemPrompt, o.store.Read(conversationKey))
	reply, err := o.model.Chat(ctx, messages, llm.GenerationParams{})
	if err != nil {
		if errors.Is(err, llm.ErrContentBlocked) {
			o.store.Append(conversationKey, datatypes.AssistantTurn(blockedReply))
			return blockedReply, nil
		}
		span.SetStatus(codes.Error, "model round two failed")
		return "", fmt.Errorf("%w: second model round: %v", ErrUpstreamUnavailable, err)
	}

	o.store.Append(conversationKey, datatypes.AssistantTurn(reply))
	recordExchange("tool")
	return reply, nil
}

// ClearHistory removes all turns for a conversation key.
func (o *Orchestrator) ClearHistory(conversationKey string) {
	o.store.Clear(conversationKey)
	slog.Info("Conversation history cleared", slog.String("conversation_key", conversationKey))
}

// dispatchTool routes a tool request to the matching action client and
// returns the model-visible result mapping.
func (o *Orchestrator) dispatchTool(ctx context.Context, name string, args map[string]any) (map[string]string, error) {
	switch name {
	case ToolStatusLookup:
		return o.runStatusLookup(ctx, args)
	case ToolResetExecute:
		return o.runResetExecute(ctx, args)
	default:
		return nil, fmt.Errorf("unknown tool %q", name)
	}
}

// runStatusLookup dispatches the synchronous ticket lookup.
func (o *Orchestrator) runStatusLookup(ctx context.Context, args map[string]any) (map[string]string, error) {
	raw, _ := args["ticket_id"].(string)
	canonical := itsm.NormalizeIncidentRef(raw)
	if canonical == "" {
		return map[string]string{
			"status": "invalid_reference",
			"detail": "La referencia no contiene ningún número de ticket.",
		}, nil
	}

	result, err := o.tickets.Lookup(ctx, canonical)
	if err != nil {
		return nil, err
	}
	if !result.Found {
		return map[string]string{
			"status":    "not_found",
			"ticket_id": itsm.ShortRef(canonical),
		}, nil
	}

	projected := itsm.ProjectIncident(result.Fields)
	// The model narrates clean references (INC6816), never the padded form.
	projected["ticket_id"] = itsm.ShortRef(canonical)
	return projected, nil
}

// runResetExecute dispatches the asynchronous reset, enforcing the
// confirmation gate first.
//
// The gate trusts only the structured boolean: even if the model claims the
// user agreed, anything but JSON true yields a "confirmation required"
// result and the downstream client is never contacted.
func (o *Orchestrator) runResetExecute(ctx context.Context, args map[string]any) (map[string]string, error) {
	confirmed, _ := args["confirmed"].(bool)
	if !confirmed {
		recordGateRefusal()
		return map[string]string{
			"status": "confirmation_required",
			"detail": "Presenta al usuario el resumen de los datos y espera su aprobación explícita antes de ejecutar.",
		}, nil
	}

	resetArgs := reset.Args{
		EmployeeID: stringArg(args, "employee_id"),
		Email:      stringArg(args, "email"),
		ResetType:  stringArg(args, "reset_type"),
	}

	// Initiation is not idempotent downstream: issued at most once per
	// confirmed tool call, never retried blindly.
	handle, err := o.resets.StartReset(ctx, resetArgs)
	if err != nil {
		return nil, err
	}

	outcome, err := o.resets.AwaitOutcome(ctx, handle)
	if err != nil {
		return nil, err
	}

	switch outcome.Status {
	case reset.StatusSuccess:
		result := map[string]string{
			"status": "success",
			"detail": outcome.Detail,
		}
		if outcome.IncidentRef != "" {
			result["incident_ref"] = itsm.ShortRef(outcome.IncidentRef)
		}
		return result, nil
	case reset.StatusFailed:
		return map[string]string{
			"status": "failed",
			"detail": outcome.Detail,
		}, nil
	default:
		return map[string]string{
			"status": "timed_out",
			"detail": "La operación sigue en proceso; el resultado no llegó dentro del tiempo de espera.",
		}, nil
	}
}

// dispatchLabel collapses a tool result into a bounded metric label. Lookup
// results carry the incident's own free-form status, which must not become a
// label value.
func dispatchLabel(result map[string]string) string {
	switch result["status"] {
	case "invalid_reference", "not_found", "confirmation_required", "success", "failed", "timed_out":
		return result["status"]
	default:
		return "ok"
	}
}

// stringArg extracts a string argument, tolerating absent or mistyped values.
func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// toChatMessages converts the stored turn window into the model's message
// format, with the system prompt first.
func toChatMessages(systemPrompt string, turns []datatypes.Turn) []llm.ChatMessage {
	messages := make([]llm.ChatMessage, 0, len(turns)+1)
	messages = append(messages, llm.ChatMessage{Role: "system", Content: systemPrompt})

	for _, turn := range turns {
		switch turn.Role {
		case datatypes.RoleUser:
			messages = append(messages, llm.ChatMessage{Role: "user", Content: turn.Text})
		case datatypes.RoleAssistant:
			messages = append(messages, llm.ChatMessage{Role: "assistant", Content: turn.Text})
		case datatypes.RoleToolCall:
			argsJSON, err := json.Marshal(turn.Args)
			if err != nil {
				argsJSON = []byte(`{}`)
			}
			messages = append(messages, llm.ChatMessage{
				Role: "assistant",
				ToolCalls: []llm.ToolCall{{
					ID:        "replay-" + turn.Tool,
					Name:      turn.Tool,
					Arguments: argsJSON,
				}},
			})
		case datatypes.RoleToolResult:
			messages = append(messages, llm.ChatMessage{
				Role:     "tool",
				ToolName: turn.Tool,
				Content:  turn.ResultJSON(),
			})
		}
	}
	return messages
}

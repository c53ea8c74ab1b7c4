// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package chat exposes the conversational HTTP surface: one message in, one
// assistant reply out, plus conversation lifecycle and health endpoints.
package chat

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	// ChatID keys the conversation history. Opaque to the server.
	ChatID string `json:"chat_id" binding:"required"`

	// Message is the raw user utterance.
	Message string `json:"message" binding:"required"`

	// DisplayName personalizes the assistant's replies. Optional.
	DisplayName string `json:"display_name"`
}

// ChatReply is the success body of POST /v1/chat. The envelope matches what
// the frontend renders: a typed payload with the reply text.
type ChatReply struct {
	Tipo      string `json:"tipo"`
	Respuesta string `json:"respuesta"`
}

// ClearRequest is the body of POST /v1/chat/clear.
type ClearRequest struct {
	ChatID string `json:"chat_id" binding:"required"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package chat

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mamartiner07/SophIA/services/orchestrator"
	"github.com/mamartiner07/SophIA/services/orchestrator/datatypes"
)

// Conversationalist is the orchestration surface the handlers depend on.
type Conversationalist interface {
	Handle(ctx context.Context, conversationKey, userMessage string, userCtx datatypes.UserContext) (string, error)
	ClearHistory(conversationKey string)
}

// Handlers holds the HTTP handlers for the chat endpoints.
//
// Thread Safety: Handlers is safe for concurrent use.
type Handlers struct {
	orch Conversationalist
}

// NewHandlers creates the chat handlers over an orchestrator.
func NewHandlers(orch Conversationalist) *Handlers {
	return &Handlers{orch: orch}
}

// getOrCreateRequestID returns the inbound X-Request-ID or mints one.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.New().String()
}

// HandleChat handles POST /v1/chat.
//
// Description:
//
//	Runs one conversational exchange: the message is appended to the
//	conversation keyed by chat_id, the orchestrator produces the reply
//	(calling downstream tools if the model requests them), and the reply
//	is returned in the frontend envelope. Business outcomes such as "ticket
//	not found" or "reset failed" are 200s; only infrastructure failures
//	map to error statuses.
//
// Response:
//
//	200 OK: ChatReply
//	400 Bad Request: Missing chat_id or message
//	502 Bad Gateway: The language model could not be reached
//	500 Internal Server Error: A downstream action failed mid-flight
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleChat(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleChat")

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "chat_id and message are required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	logger.Info("Chat message received",
		slog.String("chat_id", req.ChatID),
		slog.Int("message_len", len(req.Message)),
	)

	reply, err := h.orch.Handle(c.Request.Context(), req.ChatID, req.Message, datatypes.UserContext{
		DisplayName: req.DisplayName,
	})
	if err != nil {
		var toolErr *orchestrator.ToolExecutionError
		switch {
		case errors.Is(err, orchestrator.ErrUpstreamUnavailable):
			logger.Error("Model upstream unavailable", slog.String("error", err.Error()))
			c.JSON(http.StatusBadGateway, ErrorResponse{
				Error: "the assistant is temporarily unavailable",
				Code:  "UPSTREAM_UNAVAILABLE",
			})
		case errors.As(err, &toolErr):
			logger.Error("Tool execution failed",
				slog.String("tool", toolErr.Tool),
				slog.String("error", toolErr.Error()),
			)
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error: "an action could not be completed",
				Code:  "TOOL_EXECUTION_FAILED",
			})
		default:
			logger.Error("Chat exchange failed", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error: "internal error",
				Code:  "INTERNAL_ERROR",
			})
		}
		return
	}

	c.JSON(http.StatusOK, ChatReply{Tipo: "texto", Respuesta: reply})
}

// HandleClear handles POST /v1/chat/clear.
//
// Description:
//
//	Drops all stored history for a conversation. Clearing an unknown
//	chat_id succeeds; the operation is idempotent.
//
// Response:
//
//	200 OK: {"status": "cleared"}
//	400 Bad Request: Missing chat_id
//
// Thread Safety: This method is safe for concurrent use.
func (h *Handlers) HandleClear(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleClear")

	var req ClearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "chat_id is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	h.orch.ClearHistory(req.ChatID)
	logger.Info("Conversation cleared", slog.String("chat_id", req.ChatID))
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// HandleHealth handles GET /v1/chat/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// HandleReady handles GET /v1/chat/ready.
func (h *Handlers) HandleReady(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all chat routes with the router.
//
// Description:
//
//	Registers all /v1/chat* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/chat - Run one conversational exchange
//	POST /v1/chat/clear - Drop a conversation's history
//	GET  /v1/chat/health - Health check
//	GET  /v1/chat/ready - Readiness check
//
// Example:
//
//	handlers := chat.NewHandlers(orch)
//	v1 := router.Group("/v1")
//	chat.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	rg.POST("/chat", handlers.HandleChat)

	grp := rg.Group("/chat")
	{
		grp.POST("/clear", handlers.HandleClear)
		grp.GET("/health", handlers.HandleHealth)
		grp.GET("/ready", handlers.HandleReady)
	}
}

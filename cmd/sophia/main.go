// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command sophia starts the SophIA conversational ITSM server.
//
// SophIA turns natural-language chat into ITSM actions:
//   - Incident status lookups against BMC Remedy
//   - Confirmed password resets via the async reset job service
//   - Bounded in-memory conversation history (no persistence)
//
// Usage:
//
//	go run ./cmd/sophia
//	go run ./cmd/sophia -port 9090
//
// Required environment:
//
//	GEMINI_API_KEY=...  BMC_BASE_URL=https://... BMC_USERNAME=... BMC_PASSWORD=...
//	RESET_BASE_URL=https://... RESET_BEARER_TOKEN=...
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/chat/health
//
//	# One conversational exchange
//	curl -X POST http://localhost:8080/v1/chat \
//	  -H "Content-Type: application/json" \
//	  -d '{"chat_id": "demo", "message": "estatus del inc 6816", "display_name": "Ana"}'
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/sync/errgroup"

	"github.com/mamartiner07/SophIA/services/chat"
	"github.com/mamartiner07/SophIA/services/history"
	"github.com/mamartiner07/SophIA/services/itsm"
	"github.com/mamartiner07/SophIA/services/llm"
	"github.com/mamartiner07/SophIA/services/orchestrator"
	"github.com/mamartiner07/SophIA/services/reset"
)

func main() {
	port := flag.Int("port", 0, "Port to listen on (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug mode")
	flag.Parse()

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation so spans correlate across the frontend,
	// this server, and any collector sitting behind it.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	cfg, err := chat.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}

	model, err := llm.NewGeminiClient()
	if err != nil {
		slog.Error("Failed to create Gemini client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	tickets := itsm.NewBMCClient(cfg.BMC.BaseURL, cfg.BMC.Username, cfg.BMC.Password)
	resets := reset.NewClient(cfg.Reset.BaseURL, cfg.Reset.BearerToken, cfg.Reset.PollInterval, cfg.Reset.MaxAttempts)
	store := history.NewMemoryStore(cfg.MaxTurns)

	orch := orchestrator.New(model, tickets, resets, store)
	handlers := chat.NewHandlers(orch)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("sophia"))
	if *debug {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1")
	chat.RegisterRoutes(v1, handlers)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	printBanner(cfg.Port)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	// Graceful shutdown: SIGINT/SIGTERM cancels the context, the shutdown
	// goroutine drains in-flight requests, then ListenAndServe returns.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting SophIA server", slog.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down SophIA server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// printBanner writes the startup box. The port is rendered into a fixed
// five-cell field so the box edges stay aligned for any listen port.
func printBanner(port int) {
	banner := `
╔═══════════════════════════════════════════════════════════════════╗
║                         SOPHIA SERVER                             ║
╠═══════════════════════════════════════════════════════════════════╣
║                                                                   ║
║  Conversational ITSM: ticket status and password resets.          ║
║                                                                   ║
║  Quick Start:                                                     ║
║  ┌─────────────────────────────────────────────────────────────┐  ║
║  │ # Health check                                              │  ║
║  │ curl http://localhost:%-5d/v1/chat/health                  │  ║
║  │                                                             │  ║
║  │ # One exchange                                              │  ║
║  │ curl -X POST http://localhost:%-5d/v1/chat \               │  ║
║  │   -H "Content-Type: application/json" \                     │  ║
║  │   -d '{"chat_id": "demo", "message": "hola"}'               │  ║
║  └─────────────────────────────────────────────────────────────┘  ║
║                                                                   ║
║  Endpoints:                                                       ║
║  ├── Chat: POST /v1/chat, POST /v1/chat/clear                     ║
║  ├── Health: GET /v1/chat/health, GET /v1/chat/ready              ║
║  └── Metrics: GET /metrics                                        ║
║                                                                   ║
║  Press Ctrl+C to stop                                             ║
╚═══════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, port, port)
}

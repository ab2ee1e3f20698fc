// Package main provides the MCP server entry point.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bull/kbminer/internal/app"
	mcpserver "github.com/bull/kbminer/internal/mcp"
)

func main() {
	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	a := app.New()
	defer a.Close()
	logger := a.Logger

	store, err := a.Qdrant()
	if err != nil {
		logger.Error("Failed to connect to Qdrant", "error", err)
		os.Exit(1)
	}
	embedder, err := a.Embedder()
	if err != nil {
		logger.Error("Failed to create embedding client", "error", err)
		os.Exit(1)
	}
	chatService, err := a.Chat(ctx)
	if err != nil {
		logger.Error("Failed to create chat service", "error", err)
		os.Exit(1)
	}
	fb, err := a.Feedback(ctx)
	if err != nil {
		logger.Error("Failed to create feedback store", "error", err)
		os.Exit(1)
	}
	ledger, err := a.Ledger(ctx)
	if err != nil {
		logger.Error("Failed to create usage ledger", "error", err)
		os.Exit(1)
	}

	server := mcpserver.NewServer(&mcpserver.Config{
		Asker:    chatService,
		Embedder: embedder,
		Searcher: store,
		Feedback: fb,
		Balances: ledger,
		Logger:   logger,
	})
	mux := mcpserver.NewMux(server, map[string]mcpserver.HealthChecker{"qdrant": store}, nil)

	addr := "0.0.0.0:" + a.Config.Server.Port
	if a.Config.Server.ServerMode {
		// HTTP mode: serve MCP over HTTP for remote clients
		logger.Info("Starting HTTP server", "addr", addr, "mcp", "/mcp", "health", "/health")
		srv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			<-ctx.Done()
			_ = srv.Shutdown(context.Background())
		}()
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
		return
	}

	// Stdio mode: health endpoint still served in the background for local testing
	go func() {
		logger.Info("Starting health server", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warn("Health server error", "error", err)
		}
	}()

	logger.Info("Starting MCP server (stdio mode)")
	if err := server.Run(ctx); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}

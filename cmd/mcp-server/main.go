package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"mcp-x402-gateway/internal/server"
	"mcp-x402-gateway/pkg/config"
)

func main() {
	// Resolve configuration before anything touches stdout; a broken
	// config file is a startup failure, not something to limp past
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		os.Exit(1)
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize and start MCP server
	mcpServer := server.NewMCPServer(cfg)

	// Start server in a goroutine
	go func() {
		if err := mcpServer.Start(ctx); err != nil {
			log.Printf("MCP server error: %v", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	select {
	case <-sigChan:
		log.Println("Received shutdown signal, gracefully shutting down...")
	case <-ctx.Done():
		log.Println("Context cancelled, shutting down...")
	}

	// Perform graceful shutdown
	if err := mcpServer.Shutdown(ctx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
}

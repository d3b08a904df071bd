package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"market-chat/api"
	"market-chat/auth"
	"market-chat/gateway"
	"market-chat/repositories"
	"market-chat/services"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so every defer (database close, graceful
// shutdown) executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories & Domain Service
	productRepository := repositories.NewProductRepository(db)
	conversationRepository := repositories.NewConversationRepository(db, log)
	messageRepository := repositories.NewMessageRepository(db, log)
	receiptRepository := repositories.NewReadReceiptRepository(db)
	conversationService := services.NewConversationService(
		log, productRepository, conversationRepository, messageRepository, receiptRepository,
	)

	// 4. Identity verification
	authConfig := auth.Config{
		Secret:        []byte(config.JWTSecret),
		ServiceOrigin: config.ServiceOrigin,
		IdentityURL:   config.IdentityURL,
	}
	if config.JWTPublicKeyFile != "" {
		pem, err := os.ReadFile(config.JWTPublicKeyFile)
		if err != nil {
			return fmt.Errorf("reading public key failed: %w", err)
		}
		authConfig.PublicKeyPEM = pem
	}
	verifier, err := auth.NewTokenVerifier(log, authConfig)
	if err != nil {
		return fmt.Errorf("verifier setup failed: %w", err)
	}

	// 5. Gateway: registry, fan-out, router, upgrade handler
	registry := gateway.NewRegistry()
	fanout := gateway.NewFanout(log, registry)
	router := gateway.NewRouter(log, registry, fanout, conversationService)
	upgrade := gateway.NewUpgradeHandler(log, config.ChatPathPrefix, verifier, registry, router)

	// 6. HTTP surface: REST API + chat endpoint
	root := chi.NewRouter()
	root.Mount("/api", api.NewRouter(log, verifier, conversationService,
		strings.Split(config.AllowedOrigins, ",")))
	root.Handle(config.ChatPathPrefix, upgrade)
	root.Handle(config.ChatPathPrefix+"/*", upgrade)

	// 7. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: root}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "chat", config.ChatPathPrefix, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Shutdown incomplete", "error", err)
	}
	log.Info("Program stopped cleanly")

	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Tyrowin/roomchat/internal/auth"
	"github.com/Tyrowin/roomchat/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Local .env is optional.
	_ = godotenv.Load()

	cfg, err := server.LoadConfig()
	if err != nil {
		return err
	}
	logger := server.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	var authn auth.Authenticator = auth.AllowAll{}
	if cfg.JWTSecret != "" {
		authn = auth.NewJWTAuthenticator(cfg.JWTSecret)
	} else {
		logger.Warn("JWT_SECRET not set; websocket endpoint accepts unauthenticated clients")
	}

	hub := server.NewHub(*cfg, logger)
	go hub.Run()

	httpServer := server.CreateServer(cfg.Port, server.SetupRoutes(hub, authn))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer, logger)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout, logger); err != nil {
		logger.Error("http shutdown", "err", err)
	}
	return hub.Shutdown(cfg.ShutdownTimeout)
}

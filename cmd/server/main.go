package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/labstack/echo/v4"

	"taskservice/docs" // swagger docs
	"taskservice/internal/auth"
	"taskservice/internal/cache"
	"taskservice/internal/config"
	"taskservice/internal/handler"
	"taskservice/internal/logging"
	"taskservice/internal/repository"
	"taskservice/internal/router"
	"taskservice/internal/service"
)

// @title Task Service API
// @version 1.0
// @description Multi-tenant task tracking with bearer authentication and versioned task endpoints.
// @host localhost:8080
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "bearer" followed by a space and the token.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	log := logging.New(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := repository.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()

	var pinger service.Pinger
	if stores.SQL != nil {
		pinger = stores.SQL
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
	defer func() { _ = cacheClient.Close() }()

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.TokenTTL)
	identityCache := auth.NewIdentityCache(cacheClient, cfg.IdentityCacheTTL)
	resolver := auth.NewIdentityResolver(stores.Users, identityCache, log)

	// Initialize services
	authService := service.NewAuthService(stores.Users, jwtService, cfg.BcryptCost, log)
	taskService := service.NewTaskService(stores.Tasks, log)
	statusService := service.NewStatusService(cacheClient, pinger)

	e := echo.New()
	router.Register(e, log, router.Handlers{
		User:   handler.NewUserHandler(authService),
		TaskV1: handler.NewTaskHandler(taskService, log),
		TaskV2: handler.NewTaskHandlerV2(taskService, log),
		Status: handler.NewStatusHandler(statusService),
		Auth:   auth.Middleware(jwtService, resolver),
	})

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "http://"), "https://")
	}
	log.Info(ctx, "swagger documentation available", "url", "http://"+docs.SwaggerInfo.Host+"/swagger/index.html")

	addr := ":" + cfg.ServerPort
	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "server started", "addr", addr, "storage", cfg.Storage)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server start: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	resolver.Wait()
	return nil
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"eotm-backend/internal/config"
	"eotm-backend/internal/container"
	"eotm-backend/internal/handler"
	"eotm-backend/internal/middleware"
	"eotm-backend/internal/service"
	"eotm-backend/internal/service/auth"
	"eotm-backend/pkg/logger"
	"eotm-backend/pkg/redis"
)

// Resources holds all resources that need cleanup
type Resources struct {
	redisClient *redis.Client
	sweeper     *service.OTPSweeper
	server      *http.Server
	log         *logger.Logger
	mu          sync.Mutex
	closed      bool
}

// Cleanup gracefully closes all resources
func (r *Resources) Cleanup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var err error

	r.log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server first to stop accepting new requests
	if r.server != nil {
		r.log.Info("Shutting down HTTP server...")
		if shutdownErr := r.server.Shutdown(ctx); shutdownErr != nil {
			r.log.WithError(shutdownErr).Error("Failed to shutdown HTTP server")
			err = multierr.Append(err, fmt.Errorf("HTTP server shutdown: %w", shutdownErr))
		} else {
			r.log.Info("HTTP server shutdown complete")
		}
	}

	// Let a sweep that is already running finish
	if r.sweeper != nil {
		r.log.Info("Stopping OTP sweeper...")
		select {
		case <-r.sweeper.Stop().Done():
			r.log.Info("OTP sweeper stopped")
		case <-ctx.Done():
			r.log.Warn("OTP sweeper did not stop before the deadline")
			err = multierr.Append(err, fmt.Errorf("OTP sweeper stop: %w", ctx.Err()))
		}
	}

	if r.redisClient != nil {
		r.log.Info("Closing Redis connection...")

		healthCtx, healthCancel := context.WithTimeout(ctx, 2*time.Second)
		if healthErr := r.redisClient.Health(healthCtx); healthErr != nil {
			r.log.WithError(healthErr).Warn("Redis health check failed before closing")
		}
		healthCancel()

		if closeErr := r.redisClient.Close(); closeErr != nil {
			r.log.WithError(closeErr).Error("Failed to close Redis connection")
			err = multierr.Append(err, fmt.Errorf("Redis close: %w", closeErr))
		} else {
			r.log.Info("Redis connection closed successfully")
		}
	}

	if err != nil {
		r.log.WithField("error_count", len(multierr.Errors(err))).Error("Cleanup completed with errors")
		return err
	}

	r.log.Info("Graceful shutdown completed successfully")
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.WithFields(map[string]interface{}{
		"port":        cfg.Port,
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
		"redis":       cfg.RedisURL != "",
		"gateway":     cfg.GatewayURL != "",
	}).Info("Starting eotm-backend server")

	container, err := container.New(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create container")
	}

	sweeper := container.GetSweeper()
	if err := sweeper.Start(); err != nil {
		log.WithError(err).Fatal("Failed to start OTP sweeper")
	}

	router := setupRouter(container)

	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   60 * time.Second, // Covers gateway retries on credential submit
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	resources := &Resources{
		redisClient: container.GetRedisClient(),
		sweeper:     sweeper,
		server:      server,
		log:         log,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)

	// Runs however main returns
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := resources.Cleanup(cleanupCtx); err != nil {
			log.WithError(err).Error("Cleanup completed with errors")
		}
	}()

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("Server starting on port " + cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Server error occurred")
			serverErrChan <- err
		}
	}()

	select {
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-serverErrChan:
		log.WithError(err).Error("Server failed, initiating shutdown")
	}

	log.Info("Initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	if err := resources.Cleanup(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown completed with errors")
		os.Exit(1)
	}

	log.Info("Application shutdown complete")
}

// setupRouter configures and returns the HTTP router
func setupRouter(container *container.Container) *chi.Mux {
	cfg := container.GetConfig()
	log := container.GetLogger()
	tokens := container.GetTokenService()
	roster := container.GetRoster()

	r := chi.NewRouter()

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.AllowedOrigins

	r.Use(middleware.CORS(corsConfig, log))
	r.Use(middleware.RequestID(log))
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(chiMiddleware.Compress(5))
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	healthHandler := handler.NewHealthHandler(container)
	employeeHandler := handler.NewEmployeeHandler(roster)
	authHandler := handler.NewAuthHandler(container.GetIdentityVerifier(), tokens, roster, log)
	votingHandler := handler.NewVotingHandler(container.GetVoteService(), roster, log)
	adminHandler := handler.NewAdminHandler(
		tokens,
		container.GetVoteService(),
		container.GetLedger(),
		container.GetGateway(),
		roster,
		log,
	)

	r.Get("/health", healthHandler.Check)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/employees", employeeHandler.List)

		// Identity verification, one session per browser
		r.Route("/auth/sessions", func(r chi.Router) {
			r.Post("/", authHandler.StartSession)
			r.Route("/{sessionId}", func(r chi.Router) {
				r.Get("/", authHandler.GetSession)
				r.Post("/credentials", authHandler.SubmitCredentials)
				r.Post("/verify", authHandler.VerifyCode)
				r.Post("/resend", authHandler.Resend)
				r.Post("/password/begin", authHandler.BeginPasswordChange)
				r.Post("/password", authHandler.ChangePassword)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(tokens, auth.RoleVoter, log))

			r.Post("/votes", votingHandler.SubmitVote)
			r.Get("/votes/me", votingHandler.GetMyVoteStatus)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", adminHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(tokens, auth.RoleAdmin, log))

				r.Get("/results", adminHandler.GetResults)
				r.Get("/tally", adminHandler.GetTally)
				r.Get("/otp/stats", adminHandler.GetOTPStats)
				r.Delete("/otp", adminHandler.ClearOTPs)
				r.Get("/gateway/probe", adminHandler.ProbeGateway)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"success":false,"error":{"type":"not_found","message":"Endpoint not found"}}`))
	})

	log.Info("Router configured successfully")
	return r
}

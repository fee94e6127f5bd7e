package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	httpHandlers "github.com/JeanGrijp/admission-control/internal/adapters/http/handlers"
	httpMiddleware "github.com/JeanGrijp/admission-control/internal/adapters/http/middleware"
	"github.com/JeanGrijp/admission-control/internal/adapters/security"
	memorystorage "github.com/JeanGrijp/admission-control/internal/adapters/storage/memory"
	redisstorage "github.com/JeanGrijp/admission-control/internal/adapters/storage/redis"
	"github.com/JeanGrijp/admission-control/internal/config"
	"github.com/JeanGrijp/admission-control/internal/core/domain"
	"github.com/JeanGrijp/admission-control/internal/core/ports"
	"github.com/JeanGrijp/admission-control/internal/core/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := buildLogger(cfg.Limiter.Env)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	store, closeFn, err := initStorage(cfg.Storage)
	if err != nil {
		log.Fatalf("failed to init storage: %v", err)
	}
	defer closeFn()

	policySet, err := cfg.PolicySet()
	if err != nil {
		log.Fatalf("failed to load policies: %v", err)
	}

	registry, err := services.NewPolicyRegistry(policySet)
	if err != nil {
		log.Fatalf("failed to create policy registry: %v", err)
	}

	sink := security.NewZapSink(logger)

	svc, err := services.NewAdmissionService(store, registry, nil, sink)
	if err != nil {
		log.Fatalf("failed to create admission service: %v", err)
	}

	opts := httpMiddleware.Options{
		SensitivePaths: sensitivePathSet(cfg.Limiter.SensitivePaths),
		LegacyHeaders:  cfg.Limiter.LegacyHeaders,
		Logger:         logger,
	}
	if cfg.Limiter.DynamicEnabled {
		analyzer, err := services.NewPatternAnalyzer(store, nil)
		if err != nil {
			log.Fatalf("failed to create pattern analyzer: %v", err)
		}
		dynamic, err := services.NewDynamicLimiter(analyzer, svc)
		if err != nil {
			log.Fatalf("failed to create dynamic limiter: %v", err)
		}
		opts.Dynamic = dynamic
	}

	admin := httpHandlers.NewAdminHandler(svc, config.ReloadPolicySet)

	r := chi.NewRouter()
	r.Use(httpMiddleware.Admission(svc, opts))

	r.Get("/ping", httpHandlers.PingHandler)
	r.Mount("/admin/limits", admin.Routes())

	r.Route("/api/auth", func(r chi.Router) {
		r.Use(httpMiddleware.CategoryLimiter(svc, domain.CategoryAuth, nil, opts))
		r.Post("/login", httpHandlers.PingHandler)
		r.Post("/register", httpHandlers.PingHandler)
	})
	r.Route("/api/payment", func(r chi.Router) {
		r.Use(httpMiddleware.CategoryLimiter(svc, domain.CategoryPayment, nil, opts))
		r.Post("/checkout", httpHandlers.PingHandler)
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil {
			errCh <- err
		}
	}()

	logger.Info("server started",
		zap.String("port", cfg.Server.Port),
		zap.String("env", cfg.Limiter.Env),
		zap.String("storage", cfg.Storage.Type),
		zap.Bool("dynamic", cfg.Limiter.DynamicEnabled))

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
}

func buildLogger(env string) (*zap.Logger, error) {
	if env == config.EnvProduction {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func initStorage(cfg config.StorageConfig) (ports.CounterStore, func(), error) {
	switch cfg.Type {
	case "memory":
		return memorystorage.New(), func() {}, nil
	case "redis":
		redisCfg := redisstorage.Config{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}
		store, err := redisstorage.New(redisCfg)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				log.Printf("failed to close redis storage: %v", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

func sensitivePathSet(paths []string) map[string]bool {
	out := make(map[string]bool, len(paths))
	for _, p := range paths {
		out[p] = true
	}
	return out
}

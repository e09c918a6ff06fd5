// Package main is the entry point for configd, the centralized
// configuration registry server.
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

	"github.com/aboglioli/configd/internal/api"
	"github.com/aboglioli/configd/internal/api/handlers"
	"github.com/aboglioli/configd/internal/config"
	"github.com/aboglioli/configd/internal/core/ports"
	"github.com/aboglioli/configd/internal/core/services"
	"github.com/aboglioli/configd/internal/infrastructure/cache"
	"github.com/aboglioli/configd/internal/infrastructure/eventbus"
	infrahandlers "github.com/aboglioli/configd/internal/infrastructure/handlers"
	"github.com/aboglioli/configd/internal/infrastructure/repository/memory"
	"github.com/aboglioli/configd/internal/infrastructure/repository/postgres"
	"github.com/aboglioli/configd/internal/infrastructure/repository/sqlite"
	"github.com/aboglioli/configd/pkg/logger"
)

const (
	serviceName    = "configd"
	serviceVersion = "1.0.0"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s\n", serviceName, serviceVersion)
		os.Exit(0)
	}
	if *showHelp {
		fmt.Printf("configd - centralized configuration registry\n\n")
		fmt.Printf("Usage: %s [options]\n\n", os.Args[0])
		fmt.Printf("Options:\n")
		fmt.Printf("  -version    Show version information\n")
		fmt.Printf("  -help       Show this help message\n\n")
		fmt.Printf("Configuration is read from environment variables (ENV, HOST, PORT, STORAGE, ...).\n")
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(logger.Config{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Output:   cfg.Log.Output,
		Filename: cfg.Log.Filename,
	})

	log.Info("starting configd", "version", serviceVersion, "env", cfg.Env, "storage", cfg.Storage)

	repo, closeRepo, err := buildRepository(cfg)
	if err != nil {
		log.Error("failed to initialize storage backend", "error", err, "storage", cfg.Storage)
		os.Exit(1)
	}
	defer closeRepo()

	repo, closeCache, err := wrapCache(cfg, repo, log)
	if err != nil {
		log.Error("failed to initialize schema cache", "error", err, "backend", cfg.Cache.Backend)
		os.Exit(1)
	}
	defer closeCache()

	bus := eventbus.New()

	schemaService := services.NewSchemaService(repo, bus, log)
	configService := services.NewConfigService(repo, bus, log)

	maintenance := infrahandlers.New(repo, bus, log)
	maintenance.Register()

	h := handlers.New(schemaService, configService, log)
	router := api.NewRouter(h, api.DefaultRouterConfig(log))

	runServer(cfg, router, log)
}

// buildRepository selects the SchemaRepository backend named by
// cfg.Storage: memory is the in-process snapshot backend; sqlite and
// postgres are both event-sourced against the same three-table layout.
func buildRepository(cfg *config.Config) (ports.SchemaRepository, func(), error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return memory.New(), func() {}, nil
	case config.StorageSQLite:
		repo, err := sqlite.Open(cfg.SQLiteFilename)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil
	case config.StoragePostgres:
		repo, err := postgres.Open(context.Background(), cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { repo.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage)
	}
}

// wrapCache decorates repo with the read-through schema cache when
// enabled: an in-process LRU by default, Redis when several replicas
// should share one warm cache.
func wrapCache(cfg *config.Config, repo ports.SchemaRepository, log *slog.Logger) (ports.SchemaRepository, func(), error) {
	if !cfg.Cache.Enabled {
		return repo, func() {}, nil
	}

	switch cfg.Cache.Backend {
	case "redis":
		store, err := cache.NewRedisStore(context.Background(), cfg.Cache.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return cache.Wrap(repo, store, log), func() { _ = store.Close() }, nil
	default:
		store, err := cache.NewLRUStore(cfg.Cache.MaxKeys)
		if err != nil {
			return nil, nil, err
		}
		return cache.Wrap(repo, store, log), func() {}, nil
	}
}

func runServer(cfg *config.Config, router http.Handler, log *slog.Logger) {
	server := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("http server listening", "addr", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	log.Info("server exited")
}

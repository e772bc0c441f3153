package main

import (
	"context"
	"flag"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Makondoo-Inc/odoo-deployments/internal/catalog"
	"github.com/Makondoo-Inc/odoo-deployments/internal/config"
	"github.com/Makondoo-Inc/odoo-deployments/internal/database"
	"github.com/Makondoo-Inc/odoo-deployments/internal/importer"
	"github.com/Makondoo-Inc/odoo-deployments/internal/logging"
	"github.com/Makondoo-Inc/odoo-deployments/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	serve := flag.Bool("serve", false, "run the operator API instead of a one-shot import")
	flag.Parse()

	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"version_tag", cfg.Import.VersionTag,
		"batch_size", cfg.Import.BatchSize,
		"db_max_conns", cfg.Database.MaxConns,
	)

	// Parse and configure connection pool
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	// Connect to database
	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		dbName := strings.TrimPrefix(u.Path, "/")
		slog.Info("connected to database", "name", dbName)
	} else {
		slog.Info("connected to database")
	}

	if err := database.EnsureSchema(ctx, pool); err != nil {
		slog.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	repo := database.New(pool)
	engine := importer.NewEngine(repo, cfg.Import.VersionTag, cfg.Import.BatchSize)

	if *serve {
		runServer(cfg, engine, repo)
		return
	}

	runBatch(ctx, cfg, engine, repo, flag.Args())
}

// runBatch imports the given catalog documents sequentially and exits
// non-zero when any document fails. Paths default to IMPORT_PATHS when no
// arguments are given; directories are searched for catalog files.
func runBatch(ctx context.Context, cfg *config.Config, engine *importer.Engine, repo *database.Repository, args []string) {
	paths := args
	if len(paths) == 0 {
		paths = cfg.Import.Paths
	}
	if len(paths) == 0 {
		slog.Error("no catalog files given; pass paths as arguments, set IMPORT_PATHS, or use -serve")
		os.Exit(2)
	}

	files, err := catalog.ResolvePaths(paths)
	if err != nil {
		slog.Error("failed to resolve catalog paths", "error", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		slog.Error("no catalog files found", "paths", paths)
		os.Exit(1)
	}

	// Cancel cleanly on SIGINT/SIGTERM; the active run rolls back.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runCtx, cancel := context.WithTimeout(ctx, cfg.Import.Timeout)
	defer cancel()

	results := engine.ImportAll(runCtx, files, func(p importer.Progress) {
		if p.Status != importer.StatusInProgress {
			return
		}
		slog.Info("import progress",
			"document", p.Document,
			"category", p.Category,
			"created", p.Created,
			"skipped", p.Skipped,
		)
	})

	failed := 0
	for _, res := range results {
		if res.Failed() {
			failed++
		}
		if err := repo.RecordRun(context.WithoutCancel(ctx), *res); err != nil {
			slog.Warn("record run history", "run_id", res.RunID, "error", err)
		}
	}

	total, err := repo.DiagnosisCount(context.WithoutCancel(ctx), engine.VersionTag())
	if err != nil {
		slog.Warn("count diagnoses", "error", err)
	}
	slog.Info("batch import finished",
		"documents", len(results),
		"failed", failed,
		"total_records", total,
	)
	if failed > 0 {
		os.Exit(1)
	}
}

// runServer starts the operator API and blocks until shutdown.
func runServer(cfg *config.Config, engine *importer.Engine, repo *database.Repository) {
	service := importer.NewService(engine, repo, cfg.Import.Timeout)
	server := web.NewServer(service, repo, cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}

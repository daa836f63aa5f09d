// Package main is the entrypoint for dbinspect-rpc, a read-only database
// introspection server speaking JSON-RPC 2.0 over stdio.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shakram02/dbinspect-rpc/internal/config"
	"github.com/shakram02/dbinspect-rpc/internal/database"
	"github.com/shakram02/dbinspect-rpc/internal/handlers"
	"github.com/shakram02/dbinspect-rpc/internal/rpc"
	"github.com/shakram02/dbinspect-rpc/internal/telemetry"
)

const logPrefix = "cmd/dbinspect-rpc:main"

const usage = `Usage: dbinspect-rpc [-config file.toml] [dsn]

Serves read-only introspection of one database as newline-delimited
JSON-RPC 2.0 on stdin/stdout. Logs go to stderr.

A dsn argument overrides DB_DSN and the connection fields. For sqlite it is
the database file path.

Environment:
  DB_TYPE            mysql (default), postgres or sqlite
  DB_HOST, DB_PORT, DB_USER, DB_PASS, DB_NAME, DB_SSLMODE
  DB_SCHEMA          schema to inspect (default: database, public or main)
  DB_DSN             full connection string
  MCP_QUERY_TIMEOUT  per-statement timeout, e.g. 30s (default: none)
  MCP_MAX_ROWS       row cap for runQuery and sampleRows (default 10000)
  LOG_LEVEL          debug, info, warn or error
  OTEL_STDOUT        true to export traces and metrics to stderr
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "dbinspect-rpc: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("dbinspect-rpc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", "", "path to a TOML configuration file")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if fs.NArg() > 0 {
		cfg.DSN = fs.Arg(0)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	dialect, err := database.DialectFor(cfg.Type)
	if err != nil {
		return err
	}
	dsn := cfg.DSN
	switch {
	case dsn == "":
		if dsn, err = dialect.BuildDSN(cfg); err != nil {
			return err
		}
	case cfg.Type == config.TypeSQLite:
		dsn = database.ReadOnlyDSN(dsn)
	}

	db, err := database.Open(ctx, dialect, dsn, database.Options{
		Schema:       cfg.Schema,
		QueryTimeout: cfg.QueryTimeout.Duration,
		MaxRows:      cfg.MaxRows,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	reg, err := handlers.New(db, logger).Registry()
	if err != nil {
		return fmt.Errorf("invalid method registry: %w", err)
	}

	opts := []rpc.Option{rpc.WithLogger(logger)}
	if cfg.Telemetry {
		providers, err := telemetry.NewStdout(stderr, "dbinspect-rpc", 30*time.Second)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := providers.Shutdown(shutdownCtx); err != nil {
				logger.Warn(fmt.Sprintf("%s - telemetry shutdown failed", logPrefix), "error", err)
			}
		}()
		hook, err := telemetry.NewHook(telemetry.Config{
			TracerProvider: providers.TracerProvider,
			MeterProvider:  providers.MeterProvider,
			ServiceName:    "dbinspect-rpc",
		})
		if err != nil {
			return err
		}
		opts = append(opts, rpc.WithHook(hook))
	}

	server := rpc.NewServer(rpc.NewDispatcher(reg, opts...), logger)
	logger.Info(fmt.Sprintf("%s - serving on stdio (read-only mode)", logPrefix),
		"type", cfg.Type, "schema", db.Schema(), "methods", len(reg.Methods()))

	err = server.Serve(ctx, stdin, stdout)
	if errors.Is(err, context.Canceled) {
		logger.Info(fmt.Sprintf("%s - shutdown gracefully", logPrefix))
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info(fmt.Sprintf("%s - input closed", logPrefix))
	return nil
}

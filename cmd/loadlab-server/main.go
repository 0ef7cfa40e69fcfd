package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/netmark/loadlab/internal/config"
	"github.com/netmark/loadlab/internal/logging"
	"github.com/netmark/loadlab/internal/server"
	"github.com/netmark/loadlab/internal/tracing"
)

const tracerShutdownWait = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	cfg, err := config.NewServerLoader().Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
		Stdout: stdout,
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if logging.ParseLevel(cfg.LogLevel) > zap.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = server.ServiceName
	}
	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), tracerShutdownWait)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Could not flush traces", zap.Error(err))
		}
	}()

	srv := server.New(server.Options{
		Addr:           cfg.Listen,
		DataDir:        cfg.DataDir,
		ReportFile:     cfg.ReportFile,
		Logger:         logger,
		TracerProvider: provider.TracerProvider(),
	})

	logger.Info("Starting loadlab server",
		zap.String("listen", cfg.Listen),
		zap.String("data_dir", cfg.DataDir),
		zap.String("report_file", cfg.ReportFile),
		zap.Bool("tracing", cfg.Tracing.Enabled()),
	)
	return srv.ListenAndServe(ctx)
}

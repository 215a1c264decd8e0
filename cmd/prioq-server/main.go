// prioq-server accepts TCP clients that submit "PRIORITY:COMMAND" lines
// and executes their commands one at a time, most urgent first.
//
// Startup wires, in order: configuration, the zap logger, optional
// tracing, the priority core, the single dispatch worker and finally the
// listener. Shutdown runs in reverse on SIGINT/SIGTERM: the listener
// stops, connections finish their in-flight requests, the worker drains
// (or abandons) the queue, and tracing is flushed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/azargarov/prioq"
	"github.com/azargarov/prioq/internal/config"
	"github.com/azargarov/prioq/internal/executor"
	"github.com/azargarov/prioq/internal/server"
	"github.com/azargarov/prioq/internal/tracing"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func run(args []string) error {
	cfg, err := config.Load("prioq-server", args, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := tracing.ShutdownFunc(func(context.Context) error { return nil })
	if cfg.TraceOutput != "" {
		shutdownTracing, err = tracing.Init("prioq-server", version, cfg.TraceOutput)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		logger.Info("tracing enabled", zap.String("output", cfg.TraceOutput))
	}

	metrics := &prioq.AtomicMetrics{}
	opts := cfg.Options()
	core := prioq.NewCore(opts, metrics)

	dispatcher := prioq.NewDispatcher(core, executor.New(), opts, metrics)
	dispatcher.OnExecError = func(err error) { logger.Error("executor failure", zap.Error(err)) }
	dispatcher.OnDeliveryError = func(err error) { logger.Warn("response not delivered", zap.Error(err)) }
	dispatcher.OnInternalError = func(err error) { logger.Error("dispatcher internal error", zap.Error(err)) }
	dispatcher.Start()

	logger.Info("dispatch core ready",
		zap.Int("capacity", core.Cap()),
		zap.Stringer("queue_type", opts.QT),
		zap.Bool("drain_on_shutdown", cfg.DrainOnShutdown),
	)

	srv := server.New(cfg, core, logger)
	serveErr := srv.ListenAndServe(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	err = multierr.Combine(
		serveErr,
		dispatcher.Shutdown(shutdownCtx),
		shutdownTracing(shutdownCtx),
	)

	accepted, rejected := srv.Stats()
	logger.Info("final stats",
		zap.Stringer("requests", metrics.Snapshot()),
		zap.Uint64("connections_accepted", accepted),
		zap.Uint64("connections_rejected", rejected),
	)
	return err
}

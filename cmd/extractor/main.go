package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/mohammed-shakir/wfs-extractor/internal/app"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/config"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/health"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/observability"
	"github.com/mohammed-shakir/wfs-extractor/internal/core/server"
	"github.com/mohammed-shakir/wfs-extractor/internal/logger"
	"github.com/mohammed-shakir/wfs-extractor/internal/metrics"
	"github.com/mohammed-shakir/wfs-extractor/internal/queue"
)

// Version is set at link time; empty falls back to the module build info.
var Version string

func main() {
	os.Exit(run())
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func run() int {
	addrFlag := flag.String("addr", "", "listen address, overrides ADDR")
	outFlag := flag.String("out", "", "output directory, overrides OUTPUT_DIR")
	flag.Parse()

	cfg := config.FromEnv()
	if *addrFlag != "" {
		cfg.Addr = strings.TrimSpace(*addrFlag)
	}
	if *outFlag != "" {
		cfg.OutputDir = strings.TrimSpace(*outFlag)
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		SampleN:   envInt("LOG_SAMPLE_N", 0),
		Service:   "wfs-extractor",
		Component: "extractor",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	appLog.Info("starting extractor",
		"addr", cfg.Addr,
		"version", Version,
		"output_dir", cfg.OutputDir,
		"secured_host", cfg.SecuredHost,
		"queue", cfg.Queue.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := app.New(ctx, cfg, appLog, app.Deps{})
	if err != nil {
		appLog.Error("service setup failed", "err", err)
		return 1
	}
	defer func() {
		if err := svc.Close(); err != nil {
			appLog.Warn("service close", "err", err)
		}
	}()

	var formats []string
	for _, f := range svc.Formats() {
		formats = append(formats, string(f))
	}
	p := metrics.Init(metrics.Config{
		Build: metrics.Build{
			Version:  Version,
			Revision: os.Getenv("BUILD_REVISION"),
			Date:     os.Getenv("BUILD_DATE"),
		},
		Formats: formats,
	}, observability.Collectors()...)

	checks := svc.Checks()
	if cfg.Queue.Enabled {
		r := queue.New(queue.FromConfig(cfg.Queue), svc, queue.Options{Logger: appLog, Register: p.Registerer()})
		if err := r.Start(ctx); err != nil {
			appLog.Error("extract queue start failed", "err", err)
			return 1
		}
		defer r.Stop()
		checks = append(checks, health.Queue(r))
	}

	if err := server.Run(ctx, appLog, server.Options{
		Addr:        cfg.Addr,
		Metrics:     p.Handler(),
		Checks:      checks,
		CORSOrigins: cfg.CORSOrigins,
	}, svc); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

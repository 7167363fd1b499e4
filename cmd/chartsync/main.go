package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/chartsync/internal/api"
	"github.com/dgnsrekt/chartsync/internal/bus"
	"github.com/dgnsrekt/chartsync/internal/config"
	"github.com/dgnsrekt/chartsync/internal/controller"
	"github.com/dgnsrekt/chartsync/internal/export"
	"github.com/dgnsrekt/chartsync/internal/journal"
	"github.com/dgnsrekt/chartsync/internal/netutil"
	"github.com/dgnsrekt/chartsync/internal/render"
	"github.com/dgnsrekt/chartsync/internal/render/highcharts"
	"github.com/dgnsrekt/chartsync/internal/render/memory"
	"github.com/dgnsrekt/chartsync/internal/snapshot"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("chartsync config loaded",
		"bind_addr", cfg.BindAddr,
		"backend", cfg.Backend,
		"port_auto_fallback", cfg.PortAutoFallback,
		"port_candidates", cfg.PortCandidates,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
		"journal_file", cfg.JournalFile,
		"snapshot_dir", cfg.SnapshotDir,
		"preload_file", cfg.PreloadFile,
		"png_snapshots", cfg.PNGSnapshots,
	)

	ln, err := netutil.Listen(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to open listener", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}
	bindAddr := ln.Addr().String()

	loopCtx, stopLoop := context.WithCancel(context.Background())
	loop := bus.NewLoop()
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := loop.Run(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("event loop stopped", "error", err)
		}
	}()
	b := bus.New(loop)

	backend, closeBackend, err := openBackend(cfg, loop)
	if err != nil {
		slog.Error("failed to open render backend", "backend", cfg.Backend, "error", err)
		os.Exit(1)
	}

	var jw *journal.Writer
	if cfg.JournalFile != "" {
		jw, err = journal.Open(cfg.JournalFile, journal.Options{})
		if err != nil {
			slog.Error("failed to open event journal", "path", cfg.JournalFile, "error", err)
			os.Exit(1)
		}
		jw.Attach(b)
	}

	snapStore, err := snapshot.NewStore(cfg.SnapshotDir)
	if err != nil {
		slog.Error("failed to create snapshot store", "dir", cfg.SnapshotDir, "error", err)
		os.Exit(1)
	}

	svc := controller.NewService(b, backend, cfg.Backend, cfg.Chart, snapStore)
	if cfg.PNGSnapshots {
		svc.SetScreenshotter(export.NewScreenshotter(cfg.CDPURL(), 3*cfg.EvalTimeout()))
	}
	preload(svc, cfg.PreloadFile)

	srv := &http.Server{Addr: bindAddr, Handler: api.NewServer(svc, api.Options{DocsEnabled: cfg.DocsEnabled})}

	go func() {
		slog.Info("chartsync listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("chartsync server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("chartsync shutdown failed", "error", err)
	}
	if err := svc.Close(ctx); err != nil {
		slog.Warn("chart teardown failed", "error", err)
	}
	if jw != nil {
		if err := jw.Close(); err != nil {
			slog.Warn("event journal close failed", "error", err)
		}
	}
	stopLoop()
	<-loopDone
	if err := closeBackend(); err != nil {
		slog.Debug("render backend close failed", "error", err)
	}
}

func openBackend(cfg *config.Config, loop *bus.Loop) (render.Backend, func() error, error) {
	if cfg.Backend != config.BackendHighcharts {
		return memory.New(), func() error { return nil }, nil
	}
	hc := highcharts.New(cfg.CDPURL(), cfg.TabURLFilter, cfg.EvalTimeout(), loop.Post)
	ctx, cancel := context.WithTimeout(context.Background(), 3*cfg.EvalTimeout())
	defer cancel()
	if err := hc.Connect(ctx); err != nil {
		return nil, nil, err
	}
	slog.Info("highcharts backend connected", "cdp_url", cfg.CDPURL(), "tab_url_filter", cfg.TabURLFilter)
	return hc, hc.Close, nil
}

func preload(svc *controller.Service, path string) {
	if path == "" {
		return
	}
	charts, err := config.LoadPreload(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("preload file not found", "path", path)
		return
	}
	if err != nil {
		slog.Error("failed to load preload file", "path", path, "error", err)
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, c := range charts {
		info, err := svc.Mount(ctx, c.ConceptID, string(c.Kind), c.View)
		if err != nil {
			slog.Warn("preload mount failed", "concept_id", c.ConceptID, "kind", c.Kind, "error", err)
			continue
		}
		slog.Info("chart preloaded", "chart_id", info.ChartID, "key", info.View.Key, "kind", c.Kind)
	}
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}

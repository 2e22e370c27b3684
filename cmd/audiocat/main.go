package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/sjawhar/audiocat/internal/audio"
	"github.com/sjawhar/audiocat/internal/config"
	"github.com/sjawhar/audiocat/internal/gdrive"
	"github.com/sjawhar/audiocat/internal/pipeline"
	"github.com/sjawhar/audiocat/internal/server"
	"github.com/sjawhar/audiocat/internal/session"
	"github.com/sjawhar/audiocat/internal/storage"
)

// exitSoftware is EX_SOFTWARE from sysexits.h.
const exitSoftware = 70

const shutdownTimeout = 5 * time.Second

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit status. The banner and the status line go to
// stdout; usage and the fatal line go to stderr.
func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		return 0
	}

	cfg, warnings, err := config.Load(opts.configPath)
	if err != nil {
		return fatal(stderr, fmt.Errorf("load config: %w", err))
	}
	warnings = append(warnings, opts.apply(&cfg)...)
	for _, w := range warnings {
		log.Printf("warning: %s", w)
	}

	registry := audio.NewRegistry(cfg.OutputPrefix)
	for _, input := range opts.inputs {
		registry.Register(input)
	}
	for _, d := range registry.Devices() {
		log.Printf("input %d: %s -> %s", d.Index, d.Input, d.Output)
	}
	streams, err := registry.Open()
	if err != nil {
		return fatal(stderr, err)
	}
	defer func() { _ = registry.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)
	go func() {
		select {
		case <-sig:
			cancel()
		case <-ctx.Done():
		}
	}()

	var (
		store      session.Store
		recordings server.RecordingStore
	)
	if cfg.DBPath != "" {
		sqlStore, err := storage.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return fatal(stderr, fmt.Errorf("storage init: %w", err))
		}
		defer func() { _ = sqlStore.Close() }()
		store, recordings = sqlStore, sqlStore
	}

	var archiver session.Archiver
	if cfg.GDriveFolderID != "" {
		a, err := gdrive.NewArchiver(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID)
		if err != nil {
			log.Printf("warning: gdrive archive disabled: %v", err)
		} else {
			archiver = a
		}
	}

	var hub *server.Hub
	var events session.EventBroadcaster
	if cfg.HTTPAddr != "" {
		hub = server.NewHub()
		events = hub
	}

	manager := session.NewManager(store, events, archiver, session.Options{
		Prefix:         cfg.OutputPrefix,
		StatusOut:      stdout,
		StatusInterval: cfg.ParsedStatusInterval(),
		Logf:           log.Printf,
	})

	var httpServer *http.Server
	if hub != nil {
		handler := server.Handler(hub, recordings, server.ControlHooks{
			RecordingID: manager.CurrentRecording,
			Status:      manager.LatestStatus,
			Warnings:    func() []string { return warnings },
		})
		httpServer = &http.Server{Addr: cfg.HTTPAddr, Handler: handler}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		log.Printf("audiocat: status on http://%s", cfg.HTTPAddr)
	}

	popts := cfg.PipelineOptions()
	popts.Logf = log.Printf
	p := pipeline.New(popts)

	color.New(color.FgGreen, color.Bold).Fprintln(stdout, "Press CTRL+C to complete recording")

	_, runErr := manager.Run(ctx, p, streams)

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("warning: http shutdown failed: %v", err)
		}
	}

	if runErr != nil {
		return fatal(stderr, runErr)
	}
	if err := registry.Close(); err != nil {
		return fatal(stderr, err)
	}
	return 0
}

func fatal(w io.Writer, err error) int {
	color.New(color.FgRed).Fprintf(w, "audiocat: %v\n", err)
	return exitSoftware
}

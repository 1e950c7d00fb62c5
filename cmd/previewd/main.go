package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/mapforge/previewd/internal/config"
	"github.com/mapforge/previewd/internal/engine"
	"github.com/mapforge/previewd/internal/frontend"
	"github.com/mapforge/previewd/internal/metrics"
	"github.com/mapforge/previewd/internal/mock"
	"github.com/mapforge/previewd/internal/preview"
	"github.com/mapforge/previewd/internal/queue"
	"github.com/mapforge/previewd/internal/stats"
	"github.com/mapforge/previewd/internal/ws"
)

func main() {
	mockMode := flag.Bool("mock", false, "Use an in-process fake engine instead of the real binary")
	devMode := flag.Bool("dev", false, "Development mode (serve frontend from filesystem)")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *port > 0 {
		cfg.Server.Port = *port
	}

	store := preview.NewStore()
	m := metrics.New()
	broadcaster := ws.NewBroadcaster(store, m, cfg.WS.BroadcastThrottle)

	var launcher engine.Launcher
	var procLauncher *engine.ProcessLauncher
	if *mockMode {
		log.Println("Starting in mock mode (in-process fake engine)")
		launcher = &mock.Launcher{
			Addr: net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.Engine.Port)),
		}
	} else {
		log.Printf("Engine: %s (port %d, mode %s)", cfg.Engine.Binary, cfg.Engine.Port, cfg.Engine.Mode)
		procLauncher = engine.NewProcessLauncher(cfg.Engine)
		launcher = procLauncher
	}

	coord := preview.NewCoordinator(cfg, store, queue.New(cfg.Preview.MaxQueueDepth), launcher, m)
	coord.SetNotifier(broadcaster)

	tracker, events := stats.NewTracker()
	coord.SetStatsEvents(events)

	frontendDir := ""
	if *devMode {
		exe, _ := os.Executable()
		frontendDir = filepath.Join(filepath.Dir(exe), "..", "..", "internal", "frontend", "static")
		// Under go run the executable lives in a temp dir; fall back to CWD.
		if _, err := os.Stat(frontendDir); os.IsNotExist(err) {
			cwd, _ := os.Getwd()
			frontendDir = filepath.Join(cwd, "internal", "frontend", "static")
		}
	}

	// Embedded frontend handler: when built with -tags embed, serves from
	// binary. Otherwise there is no frontend unless -dev points at one.
	var embeddedHandler http.Handler
	if !*devMode {
		embeddedHandler = frontend.Handler()
	}

	server := ws.NewServer(store, coord, broadcaster, m, frontendDir, *devMode, embeddedHandler)
	if procLauncher != nil {
		server.SetWorkerStats(procLauncher)
	}
	server.SetStatsTracker(tracker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coord.Start(ctx)
	go tracker.Run(ctx)

	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		cancel()
		os.Exit(0)
	}()

	if err := ws.ListenAndServe(cfg.Server.Host, cfg.Server.Port, mux); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

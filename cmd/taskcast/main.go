package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/taskcast/internal/api"
	"github.com/btouchard/taskcast/internal/channel"
	"github.com/btouchard/taskcast/internal/config"
	taskcastmcp "github.com/btouchard/taskcast/internal/mcp"
	"github.com/btouchard/taskcast/internal/notify"
	"github.com/btouchard/taskcast/internal/registry"
	"github.com/btouchard/taskcast/internal/store"
	"github.com/btouchard/taskcast/internal/task"
	"github.com/btouchard/taskcast/internal/tunnel"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "version":
		fmt.Printf("taskcast %s\n", version)
	case "check":
		cmdCheck(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: taskcast <command> [flags]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  serve     Start the task coordinator\n")
	fmt.Fprintf(os.Stderr, "  check     Validate configuration\n")
	fmt.Fprintf(os.Stderr, "  version   Print version\n")
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	_ = fs.Parse(args) // ExitOnError handles errors

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogging(cfg)

	slog.Info("starting taskcast",
		"version", version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func cmdCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	_ = fs.Parse(args) // ExitOnError handles errors

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Registration defaults and route clashes are only caught when the router is built.
	tm := task.NewManager(registry.New(channel.NewHub(cfg.Tasks.SendBuffer, slog.Default())), task.Options{})
	for _, reg := range demoRegistrations(cfg.Tasks, time.Second) {
		if err := tm.Register(reg); err != nil {
			fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
			os.Exit(1)
		}
	}
	if _, err := api.NewRouter(api.Deps{Registrations: tm.Registrations(), MCPRoute: cfg.MCP.Route}); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("configuration is valid")
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch cfg.Server.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlers := []slog.Handler{
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}),
	}

	if cfg.Server.LogFile != "" {
		f, err := os.OpenFile(cfg.Server.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			slog.Warn("failed to open log file, using stdout only", "path", cfg.Server.LogFile, "error", err)
		} else {
			handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
		}
	}

	logger := slog.New(slog.NewMultiHandler(handlers...))
	slog.SetDefault(logger)
}

func run(ctx context.Context, cfg *config.Config) error {
	events := notify.NewHub(cfg.Tasks.NotifyQueue)

	// --- SQLite audit trail ---
	var mcpDeps taskcastmcp.Deps
	if cfg.Database.Enabled {
		db, err := store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() { _ = db.Close() }()

		slog.Info("database opened", "path", cfg.Database.Path)

		retention := time.Duration(cfg.Database.RetentionDays) * 24 * time.Hour
		go db.StartCleanupLoop(ctx.Done(), retention, time.Hour)

		events.Add(notify.NewAuditNotifier(db))
		mcpDeps.History = db
	}

	// --- Rooms, registry and task manager ---
	hub := channel.NewHub(cfg.Tasks.SendBuffer, slog.Default())
	reg := registry.New(hub)
	tm := task.NewManager(reg, task.Options{
		MaxWorkers:    cfg.Tasks.MaxWorkers,
		OrphanTimeout: cfg.Tasks.OrphanTimeout,
		Notifier:      events,
	})

	for _, r := range demoRegistrations(cfg.Tasks, time.Second) {
		if err := tm.Register(r); err != nil {
			return fmt.Errorf("registering %s: %w", r.Name, err)
		}
	}

	// --- MCP Server ---
	deps := api.Deps{
		Tasks:         tm,
		Members:       tm,
		Hub:           hub,
		Registrations: tm.Registrations(),
		RateLimit:     cfg.RateLimit,
		Origins:       cfg.Server.AllowedOrigins,
	}
	if cfg.MCP.Enabled {
		mcpDeps.Tasks = tm
		mcpDeps.Version = version
		mcpServer := taskcastmcp.NewServer(&mcpDeps)
		events.Add(notify.NewMCPNotifier(mcpServer, cfg.MCP.ProgressDebounce))

		deps.MCP = server.NewStreamableHTTPServer(mcpServer)
		deps.MCPRoute = cfg.MCP.Route
	}

	notifyCtx, stopNotify := context.WithCancel(context.Background())
	go events.Run(notifyCtx)
	defer func() {
		stopNotify()
		<-events.Done()
	}()

	// --- HTTP Router ---
	router, err := api.NewRouter(deps)
	if err != nil {
		return fmt.Errorf("building router: %w", err)
	}

	// --- HTTP Server ---
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	listeners := []net.Listener{ln}

	// --- Tunnel ---
	if cfg.Tunnel.Enabled {
		tun, err := tunnel.New(cfg.Tunnel)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("creating tunnel: %w", err)
		}
		publicURL, err := tun.Start(ctx, addr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("starting tunnel: %w", err)
		}
		defer func() { _ = tun.Close() }()

		listeners = append(listeners, tun.Listener())
		for _, r := range tm.Registrations() {
			slog.Info("public endpoint",
				"task", r.Name,
				"dispatch", publicURL+r.Route,
				"channel", tunnel.ChannelURL(publicURL, r.Namespace))
		}
	}

	errCh := make(chan error, len(listeners))
	for _, l := range listeners {
		go func() {
			if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}
	slog.Info("taskcast is ready", "addr", addr, "task_types", len(tm.Registrations()))

	var serveErr error
	select {
	case err := <-errCh:
		serveErr = fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown incomplete", "error", err)
	}
	if err := tm.Shutdown(shutdownCtx); err != nil {
		slog.Warn("workers still running at shutdown", "error", err)
	}
	hub.CloseAll()

	return serveErr
}

// Command mhl serves highlightable pages over HTTP, websocket and MCP.
//
// Usage:
//
//	mhl -config mhl.yaml                        # serve
//	mhl -db mhl.db -addr :8420 -mcp             # serve, plus MCP over stdio
//	mhl -render page.html -highlights h.json    # print instrumented HTML and exit
//	mhl -export page.html -highlights h.json    # print Markdown and exit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/mhl/annotator"
)

func main() {
	configPath := flag.String("config", "", "path to mhl.yaml config file")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	dbPath := flag.String("db", "", "path to SQLite database (overrides config)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	withMCP := flag.Bool("mcp", false, "also serve MCP tools over stdio")
	renderPath := flag.String("render", "", "page to instrument offline (exit after output)")
	exportPath := flag.String("export", "", "page to export as Markdown offline (exit after output)")
	highlightsPath := flag.String("highlights", "", "JSON highlight list for -render/-export")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch {
	case *renderPath != "":
		err = renderFile(os.Stdout, *renderPath, *highlightsPath)
	case *exportPath != "":
		err = exportFile(os.Stdout, *exportPath, *highlightsPath)
	default:
		err = serve(ctx, logger, *configPath, *addr, *dbPath, *withMCP)
	}
	if err != nil {
		logger.Error("mhl: fatal", "error", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, logger *slog.Logger, configPath, addr, dbPath string, withMCP bool) error {
	cfg, err := resolveConfig(configPath, addr, dbPath)
	if err != nil {
		return err
	}

	a, err := annotator.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer a.Close()
	a.Start(ctx)

	if withMCP {
		mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "mhl", Version: "1.0.0"}, nil)
		a.RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				logger.Error("mhl: mcp stdio", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("mhl: listening", "addr", cfg.Addr, "db", cfg.DBPath, "layout", cfg.Layout)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}
	logger.Info("mhl: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func resolveConfig(configPath, addr, dbPath string) (*annotator.Config, error) {
	cfg := &annotator.Config{}
	if configPath != "" {
		var err error
		if cfg, err = annotator.LoadConfigFile(configPath); err != nil {
			return nil, err
		}
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

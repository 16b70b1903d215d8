// Command recordsteps is the browser interaction recording daemon.
//
// Usage:
//
//	recordsteps -url https://example.com            # attach to a page
//	recordsteps -config recordsteps.yaml            # full configuration
//	recordsteps -mcp stdio                          # expose MCP tools on stdio
//	recordsteps -hash-token                         # hash a control token for config
//
// The daemon launches (or connects to) Chrome, injects the capture
// script into attached pages, and serves the control API the panel
// drives recording through.
package main

import (
	"bufio"
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	"github.com/harrydbarnes/recordsteps/dbopen"
	"github.com/harrydbarnes/recordsteps/recorder"
	"github.com/harrydbarnes/recordsteps/recorder/sink"
	"github.com/harrydbarnes/recordsteps/session"
)

func main() {
	configPath := flag.String("config", "", "path to recordsteps.yaml config file")
	startURL := flag.String("url", "", "page URL to attach to at startup")
	listen := flag.String("listen", "", "control API listen address (overrides config)")
	dbPath := flag.String("db", "", "session database path (overrides config)")
	mcpTransport := flag.String("mcp", "", "MCP transport: stdio")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	hashToken := flag.Bool("hash-token", false, "read a control token from stdin, print its bcrypt hash and exit")
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

	if *hashToken {
		if err := runHashToken(); err != nil {
			logger.Error("recordsteps: hash token", "error", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *startURL, *listen, *dbPath, *mcpTransport); err != nil {
		logger.Error("recordsteps: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, startURL, listen, dbPath, mcpTransport string) error {
	cfg := &recorder.Config{}
	if configPath != "" {
		loaded, err := recorder.LoadConfigFile(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg.ApplyDefaults()
	if listen != "" {
		cfg.Listen = listen
	}
	if dbPath != "" {
		cfg.Store.Path = dbPath
	}

	// Session store and coordinator.
	db, err := dbopen.Open(cfg.Store.Path, dbopen.WithMkdirAll(), dbopen.WithSchema(session.Schema))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	store := session.NewStore(db)
	svc := session.NewService(store, session.WithLogger(logger))

	feed := session.NewStateFeed(store, session.FeedOptions{
		Interval: cfg.Capture.StatePoll,
		Logger:   logger,
	})
	go feed.Run(ctx)

	// Recorder: store sink always, config extras on top.
	extra, err := recorder.BuildSinks(cfg.Sinks, logger)
	if err != nil {
		return err
	}
	sinks := append([]sink.Sink{session.NewStoreSink(svc)}, extra...)

	rec := recorder.New(cfg, feed, logger, sinks...)
	if err := rec.Start(ctx); err != nil {
		return err
	}
	defer rec.Stop()

	if startURL != "" {
		if _, err := rec.Attach(ctx, startURL); err != nil {
			return err
		}
	}

	// Control API.
	if cfg.Listen != "" {
		auth, err := buildAuthenticator(cfg)
		if err != nil {
			return err
		}
		api := session.NewAPI(svc, auth, logger)
		srv := &http.Server{
			Addr:              cfg.Listen,
			Handler:           api.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("recordsteps: control API listening", "addr", cfg.Listen)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("recordsteps: http server", "error", err)
			}
		}()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutCtx)
		}()
	}

	// MCP tools on stdio, for agent tooling driving recording.
	if mcpTransport == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "recordsteps",
			Version: "1.0.0",
		}, nil)
		svc.RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				logger.Error("recordsteps: mcp server", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("recordsteps: shutting down")
	return nil
}

// buildAuthenticator derives the JWT secret from SESSION_SECRET and
// takes the control token hash from config, or hashes AUTH_TOKEN at
// boot when the config carries none.
func buildAuthenticator(cfg *recorder.Config) (*session.Authenticator, error) {
	secretInput := os.Getenv("SESSION_SECRET")
	if secretInput == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required when the control API is enabled")
	}
	secretHash := sha256.Sum256([]byte(secretInput))

	tokenHash := cfg.Auth.TokenHash
	if tokenHash == "" {
		token := os.Getenv("AUTH_TOKEN")
		if token == "" {
			return nil, fmt.Errorf("set auth.token_hash in config or AUTH_TOKEN in the environment")
		}
		h, err := session.HashToken(token)
		if err != nil {
			return nil, err
		}
		tokenHash = h
	}
	return session.NewAuthenticator(secretHash[:], []byte(tokenHash), 12*time.Hour)
}

func runHashToken() error {
	fmt.Fprint(os.Stderr, "control token: ")
	r := bufio.NewReader(os.Stdin)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return err
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return fmt.Errorf("empty token")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	fmt.Println(string(h))
	return nil
}

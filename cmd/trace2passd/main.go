package main

import (
	"context"
	"flag"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcsuite/btclog/v2"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/trace2pass/trace2pass/internal/baselib/actor"
	"github.com/trace2pass/trace2pass/internal/build"
	"github.com/trace2pass/trace2pass/internal/collector"
	"github.com/trace2pass/trace2pass/internal/collectorstore"
	"github.com/trace2pass/trace2pass/internal/mcp"
)

func main() {
	var (
		dbPath         = flag.String("db", "~/.trace2pass/collector.db", "Path to SQLite database")
		collectorAddr  = flag.String("collector", ":8090", "Collector REST+websocket address (empty to disable)")
		enableMCP      = flag.Bool("mcp", false, "Enable MCP stdio transport for the Diagnoser command interface")
		logDir         = flag.String("log-dir", "~/.trace2pass/logs", "Directory for log files (empty to disable file logging)")
		maxLogFiles    = flag.Int("max-log-files", build.DefaultMaxLogFiles, "Maximum number of rotated log files to keep")
		maxLogFileSize = flag.Int("max-log-file-size", build.DefaultMaxLogFileSize, "Maximum log file size in MB before rotation")
	)
	flag.Parse()

	expandHome := func(path string) string {
		expanded := os.ExpandEnv(path)
		if expanded == path && len(path) > 0 && path[0] == '~' {
			home, err := os.UserHomeDir()
			if err != nil {
				log.Fatalf("Failed to get home directory: %v", err)
			}
			expanded = home + path[1:]
		}
		return expanded
	}

	dbPathExpanded := expandHome(*dbPath)
	logDirExpanded := expandHome(*logDir)

	// Initialize the rotating log file writer if a log directory is
	// configured. This creates ~/.trace2pass/logs/trace2passd.log with
	// automatic rotation and gzip compression of old files.
	var logRotator *build.RotatingLogWriter
	if logDirExpanded != "" {
		logRotator = build.NewRotatingLogWriter()
		err := logRotator.InitLogRotator(&build.LogRotatorConfig{
			LogDir:         logDirExpanded,
			MaxLogFiles:    *maxLogFiles,
			MaxLogFileSize: *maxLogFileSize,
		})
		if err != nil {
			log.Printf("Failed to init log rotator: %v "+
				"(continuing without file logging)", err)
			logRotator = nil
		} else {
			defer logRotator.Close()

			multiWriter := io.MultiWriter(os.Stderr, logRotator)
			log.SetOutput(multiWriter)
			log.SetFlags(log.LstdFlags)
		}
	}

	log.Printf("trace2passd version %s commit=%s go=%s",
		build.Version(), commitInfo(), build.GoVersion,
	)

	// Build a dual-stream btclog handler set (console + rotating file,
	// when enabled) and wrap it as the slog.Logger the store uses, so
	// database logs land in the same log file as everything else.
	var btclogHandlers []btclog.Handler
	btclogHandlers = append(btclogHandlers, btclog.NewDefaultHandler(os.Stderr))
	if logRotator != nil {
		btclogHandlers = append(btclogHandlers, btclog.NewDefaultHandler(logRotator))
	}
	logger := slog.New(build.NewHandlerSet(btclogHandlers...))

	sqliteStore, err := collectorstore.NewSqliteStore(&collectorstore.SqliteConfig{
		DatabaseFileName: dbPathExpanded,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer sqliteStore.Close()

	dbStore := sqliteStore.Store

	actorSystem := actor.NewActorSystem()
	defer func() {
		// Bounded timeout so a stuck actor can't block daemon exit
		// indefinitely.
		shutdownCtx, shutdownCancel := context.WithTimeout(
			context.Background(), 30*time.Second,
		)
		defer shutdownCancel()

		if err := actorSystem.Shutdown(shutdownCtx); err != nil {
			log.Printf("Actor system shutdown incomplete: %v "+
				"(some goroutines may have leaked)", err)
		}
	}()

	collectorRef := collector.Spawn(actorSystem, "collector-service", dbStore)
	log.Println("Collector actor started")

	var mcpServer *mcp.Server
	if *enableMCP {
		mcpServer = mcp.NewServer(dbStore)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received %v, initiating graceful shutdown "+
			"(send again to force exit)...", sig)
		cancel()

		// Wait for a second signal to force-exit. The goroutine stays
		// alive so subsequent Ctrl+C signals are consumed rather than
		// silently dropped by the buffered channel.
		sig = <-sigCh
		log.Printf("Received %v again, forcing immediate exit", sig)
		os.Exit(1)
	}()

	var collectorServer *collector.Server
	if *collectorAddr != "" {
		collectorCfg := collector.DefaultConfig()
		collectorCfg.Addr = *collectorAddr

		collectorServer = collector.NewServer(collectorCfg, collectorRef)

		go func() {
			log.Printf("Starting collector server on %s", *collectorAddr)
			if err := collectorServer.Start(); err != nil {
				log.Printf("Collector server error: %v", err)
			}
		}()

		go func() {
			<-ctx.Done()
			collectorServer.Shutdown(context.Background())
		}()
	}

	// Run the MCP server on stdio transport if enabled, otherwise block
	// until signal.
	if *enableMCP {
		log.Println("Starting trace2passd MCP server...")
		if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	} else {
		log.Println("Running in collector-only mode (no MCP stdio)")
		<-ctx.Done()
	}
}

// commitInfo returns the best available commit identifier. It prefers the
// Commit string set via ldflags (which includes tag info), falling back to
// the VCS commit hash from runtime/debug.
func commitInfo() string {
	if build.Commit != "" {
		return build.Commit
	}
	if hash := build.CommitHash(); hash != "" {
		return hash
	}

	return "dev"
}

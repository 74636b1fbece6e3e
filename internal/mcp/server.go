// Package mcp exposes the Diagnoser command interface (analyze-report,
// ub-detect, version-bisect, pass-bisect, full-pipeline) as MCP tools
// for agent-driven triage workflows.
package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/trace2pass/trace2pass/internal/collectorstore"
	"github.com/trace2pass/trace2pass/internal/diagnose/diagnoser"
	"github.com/trace2pass/trace2pass/internal/toolchain"
)

// Server wraps the MCP server with a Diagnoser to drive its five
// operations as tools.
type Server struct {
	server *mcp.Server
	diag   *diagnoser.Diagnoser
}

// Config holds configuration for the MCP server. Diagnoser is built
// from Store plus the same subprocess/oracle settings the CLI's
// persistent flags expose, since the MCP transport has no flag parser
// of its own to fall back on.
type Config struct {
	// Store is the collector's database store.
	Store *collectorstore.Store

	SourcePath string
	WorkDir    string
	Timeout    time.Duration

	PrimaryCompiler   string
	SecondaryCompiler string

	Versions  []string
	OracleCmd []string
}

// NewServer creates an MCP server with all Diagnoser tools registered,
// using default subprocess settings. Callers that need non-default
// compiler/version/oracle settings should use NewServerWithConfig.
func NewServer(dbStore *collectorstore.Store) *Server {
	return NewServerWithConfig(Config{
		Store:   dbStore,
		Timeout: toolchain.DefaultSpawnConfig().Timeout,
	})
}

// NewServerWithConfig creates an MCP server with the given configuration.
func NewServerWithConfig(cfg Config) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "trace2pass",
		Version: "0.1.0",
	}, nil)

	d := diagnoser.New(diagnoser.Config{
		Store:             cfg.Store,
		Spawner:           toolchain.NewSpawner(toolchain.DefaultSpawnConfig()),
		SourcePath:        cfg.SourcePath,
		WorkDir:           cfg.WorkDir,
		Timeout:           cfg.Timeout,
		PrimaryCompiler:   cfg.PrimaryCompiler,
		SecondaryCompiler: cfg.SecondaryCompiler,
		Versions:          cfg.Versions,
		OracleCmd:         cfg.OracleCmd,
	})

	s := &Server{
		server: mcpServer,
		diag:   d,
	}

	s.registerTools()

	return s
}

// Run starts the MCP server on the given transport.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

// registerTools registers the five Diagnoser operations as MCP tools.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_report",
		Description: "Look up a collector record's persisted diagnosis without running any stage",
	}, s.handleAnalyzeReport)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ub_detect",
		Description: "Run the UB Detector over a reproducer and return a compiler_bug/user_ub/inconclusive verdict",
	}, s.handleUBDetect)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "version_bisect",
		Description: "Binary search a compiler version range with an external oracle to find the first bad version",
	}, s.handleVersionBisect)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "pass_bisect",
		Description: "Binary search one compiler version's optimizer pass pipeline to find the culprit pass",
	}, s.handlePassBisect)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "full_pipeline",
		Description: "Drive a record through UB Detector, Version Bisector, and Pass Bisector end to end",
	}, s.handleFullPipeline)
}

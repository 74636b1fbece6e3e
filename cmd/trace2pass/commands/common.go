package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/trace2pass/trace2pass/internal/collectorstore"
	"github.com/trace2pass/trace2pass/internal/diagnose/diagnoser"
	"github.com/trace2pass/trace2pass/internal/toolchain"
)

// getStore opens the Collector's sqlite database directly, bypassing
// the daemon's REST surface — the same fallback the teacher CLI takes
// when the daemon is not running.
func getStore() (*collectorstore.SqliteStore, error) {
	path := dbPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve default db path: %w", err)
		}
		path = filepath.Join(home, ".trace2pass", collectorstore.DefaultDBFileName)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	return collectorstore.NewSqliteStore(&collectorstore.SqliteConfig{
		DatabaseFileName: path,
	}, slog.Default())
}

// buildDiagnoser assembles a diagnoser.Config from the persistent
// --compiler/--secondary-compiler/--versions/--oracle flags shared by
// every diagnosis subcommand.
func buildDiagnoser(store *collectorstore.SqliteStore) *diagnoser.Diagnoser {
	var oracleCmd []string
	if oracleCmdStr != "" {
		oracleCmd = splitFields(oracleCmdStr)
	}

	wd := workDir
	if wd == "" {
		if dir, err := os.MkdirTemp("", "trace2pass-"); err == nil {
			wd = dir
		}
	}

	return diagnoser.New(diagnoser.Config{
		Store:             store.Store,
		Spawner:           toolchain.NewSpawner(toolchain.DefaultSpawnConfig()),
		SourcePath:        sourcePath,
		WorkDir:           wd,
		Timeout:           timeout,
		PrimaryCompiler:   primaryCompiler,
		SecondaryCompiler: secondaryCompiler,
		Versions:          versions,
		OracleCmd:         oracleCmd,
	})
}

// splitFields splits an oracle command string on whitespace; quoting
// is intentionally unsupported since the --oracle flag names a literal
// argv, not a shell line.
func splitFields(s string) []string {
	var out []string
	field := ""
	for _, r := range s {
		if r == ' ' || r == '\t' {
			if field != "" {
				out = append(out, field)
				field = ""
			}
			continue
		}
		field += string(r)
	}
	if field != "" {
		out = append(out, field)
	}
	return out
}

// printVerdict writes v as indented JSON to stdout and returns a
// cobra-compatible error when v's verdict falls outside the
// exit-code-zero set, so the root command's error handler can set a
// non-zero process exit status.
func printVerdict(v diagnoser.Verdict) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))

	if !v.Succeeds() {
		return fmt.Errorf("%s: verdict %s", v.Operation, v.Verdict)
	}
	return nil
}

// Package passbisect implements the Pass Bisector: given a single
// compiler version, it extracts the ordered optimizer pass pipeline at
// a chosen level and binary searches on prefix length to localize the
// culprit pass.
package passbisect

import (
	"context"
	"fmt"
	"strings"

	"github.com/trace2pass/trace2pass/internal/report"
	"github.com/trace2pass/trace2pass/internal/toolchain"
)

// ToolVersions names the three tools involved in reproducing a single
// compiler version's behavior: the front end (IR generation), the
// optimizer (pass pipeline), and the object-code lowerer. All three
// must come from one toolchain version.
type ToolVersions struct {
	FrontEnd  string
	Optimizer string
	Lowerer   string
}

// Validate enforces the tool-version coupling precondition. Mixing
// unversioned tools with versioned ones, or tools from different
// versions, is a defect class the bisector must refuse rather than
// paper over.
func (v ToolVersions) Validate() error {
	if v.FrontEnd == "" || v.Optimizer == "" || v.Lowerer == "" {
		return fmt.Errorf(
			"passbisect: front end, optimizer, and lowerer versions must all be set",
		)
	}
	if v.FrontEnd != v.Optimizer || v.Optimizer != v.Lowerer {
		return fmt.Errorf(
			"passbisect: tool-version coupling violated: front_end=%s optimizer=%s lowerer=%s",
			v.FrontEnd, v.Optimizer, v.Lowerer,
		)
	}
	return nil
}

// ExtractPipeline invokes the compiler's "print pipeline" mode and
// parses the result into a flattened report.PassPipeline.
func ExtractPipeline(ctx context.Context, spawner *toolchain.Spawner,
	compilerPath, compilerVersion, optLevel, sourcePath string,
	opts ...toolchain.Option) (report.PassPipeline, error) {

	res, err := spawner.Spawn(ctx, "passbisect-print-pipeline",
		[]string{
			compilerPath, optLevel, "-fno-discard-value-names",
			"-print-pipeline-passes", "-c", sourcePath, "-o", "/dev/null",
		},
		opts...,
	)
	if err != nil {
		return report.PassPipeline{}, fmt.Errorf(
			"passbisect: print-pipeline invocation: %w", err,
		)
	}
	if res.TimedOut || res.ExitCode != 0 {
		return report.PassPipeline{}, fmt.Errorf(
			"passbisect: print-pipeline invocation failed: exit=%d stderr=%s",
			res.ExitCode, res.Stderr,
		)
	}

	passes, nested := parsePipelineDescription(res.Stdout)
	if len(passes) == 0 {
		return report.PassPipeline{}, fmt.Errorf(
			"passbisect: print-pipeline produced no passes",
		)
	}

	return report.PassPipeline{
		CompilerVersion: compilerVersion,
		OptLevel:        optLevel,
		Passes:          passes,
		NestedText:      nested,
	}, nil
}

// parsePipelineDescription flattens a comma-separated, parenthesis-
// nested pipeline description (the shape LLVM's "-print-pipeline-
// passes" emits, e.g. "function(pass1,pass2),module-pass") into a
// top-level sequence. Each top-level element's top-level identifier
// goes in passes; when the element carries a nested group, the
// verbatim element text is preserved at the same index in nested so
// the exact prefix string can be reconstructed later.
func parsePipelineDescription(desc string) (passes, nested []string) {
	desc = strings.TrimSpace(desc)

	depth := 0
	start := 0
	flush := func(end int) {
		tok := strings.TrimSpace(desc[start:end])
		if tok == "" {
			return
		}
		if open := strings.IndexByte(tok, '('); open >= 0 {
			passes = append(passes, tok[:open])
			nested = append(nested, tok)
		} else {
			passes = append(passes, tok)
			nested = append(nested, "")
		}
	}

	for i, r := range desc {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(len(desc))

	return passes, nested
}

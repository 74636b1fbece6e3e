package instrument_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/trace2pass/trace2pass/internal/instrument"
	"github.com/trace2pass/trace2pass/internal/ir"
)

func addFunction(nsw bool) *ir.Function {
	result := ir.Value{Name: "sum", Typ: ir.IntType(32)}
	return &ir.Function{
		Name: "compute",
		Blocks: []*ir.BasicBlock{
			{
				Name: "entry",
				Instructions: []ir.Instruction{
					{
						Result: &result,
						Op:     ir.OpAdd,
						NSW:    nsw,
						Operands: []ir.Value{
							{Name: "a", Typ: ir.IntType(32)},
							{Name: "b", Typ: ir.IntType(32)},
						},
					},
				},
				Term: ir.Terminator{Kind: ir.TermRet},
			},
		},
	}
}

func TestRewriteFunctionInstrumentsOverflowingAdd(t *testing.T) {
	f := addFunction(true)

	r := instrument.NewRewriter(instrument.ModeProduction)
	changed, err := r.RewriteFunction(f)
	require.NoError(t, err)
	require.True(t, changed)
	require.True(t, f.Instrumented)

	// entry now only contains the original add plus the inserted
	// overflow-check call, ending in a conditional branch.
	require.Len(t, f.Blocks[0].Instructions, 2)
	require.Equal(t, ir.OpAdd, f.Blocks[0].Instructions[0].Op)
	require.Equal(t, ir.OpCall, f.Blocks[0].Instructions[1].Op)
	require.Equal(t, ir.TermCondBr, f.Blocks[0].Term.Kind)

	// Exactly one new block holds the report call, one holds the
	// original terminator.
	require.Len(t, f.Blocks, 3)

	var thenBlock, contBlock *ir.BasicBlock
	for _, b := range f.Blocks[1:] {
		if len(b.Instructions) > 0 && b.Instructions[0].Op == ir.OpCall {
			thenBlock = b
		} else {
			contBlock = b
		}
	}
	require.NotNil(t, thenBlock)
	require.NotNil(t, contBlock)
	require.Equal(t, ir.TermRet, contBlock.Term.Kind)
}

func TestRewriteFunctionSkipsNonOverflowAdd(t *testing.T) {
	f := addFunction(false)

	r := instrument.NewRewriter(instrument.ModeProduction)
	changed, err := r.RewriteFunction(f)
	require.NoError(t, err)
	require.False(t, changed)
	require.Len(t, f.Blocks, 1)
	require.Len(t, f.Blocks[0].Instructions, 1)
}

func TestRewriteFunctionIsIdempotent(t *testing.T) {
	f := addFunction(true)
	r := instrument.NewRewriter(instrument.ModeProduction)

	changed, err := r.RewriteFunction(f)
	require.NoError(t, err)
	require.True(t, changed)
	blockCountAfterFirstPass := len(f.Blocks)

	changed, err = r.RewriteFunction(f)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, blockCountAfterFirstPass, len(f.Blocks))
}

func TestRewriteFunctionSkipsDeclarations(t *testing.T) {
	f := &ir.Function{Name: "extern_fn"}

	r := instrument.NewRewriter(instrument.ModeProduction)
	changed, err := r.RewriteFunction(f)
	require.NoError(t, err)
	require.False(t, changed)
}

func TestRewriteFunctionSkipsRuntimeNamespace(t *testing.T) {
	f := addFunction(true)
	f.Name = instrument.RuntimeNamespacePrefix + "rt_helper"

	r := instrument.NewRewriter(instrument.ModeProduction)
	changed, err := r.RewriteFunction(f)
	require.NoError(t, err)
	require.False(t, changed)
}

func TestRewriteFunctionDivByZeroLeavesDivisionInContinuation(t *testing.T) {
	divResult := ir.Value{Name: "q", Typ: ir.IntType(32)}
	f := &ir.Function{
		Name: "divide",
		Blocks: []*ir.BasicBlock{
			{
				Name: "entry",
				Instructions: []ir.Instruction{
					{
						Result: &divResult,
						Op:     ir.OpSDiv,
						Operands: []ir.Value{
							{Name: "n", Typ: ir.IntType(32)},
							{Name: "d", Typ: ir.IntType(32)},
						},
					},
				},
				Term: ir.Terminator{Kind: ir.TermRet},
			},
		},
	}

	r := instrument.NewRewriter(instrument.ModeProduction)
	changed, err := r.RewriteFunction(f)
	require.NoError(t, err)
	require.True(t, changed)

	var sawDiv bool
	for _, b := range f.Blocks {
		for _, inst := range b.Instructions {
			if inst.Op == ir.OpSDiv {
				sawDiv = true
			}
		}
	}
	require.True(t, sawDiv, "original division must survive rewriting")
}

func TestRewriteFunctionHandlesTwoSitesInOneBlock(t *testing.T) {
	q1 := ir.Value{Name: "q1", Typ: ir.IntType(32)}
	q2 := ir.Value{Name: "q2", Typ: ir.IntType(32)}
	f := &ir.Function{
		Name: "divide_twice",
		Blocks: []*ir.BasicBlock{
			{
				Name: "entry",
				Instructions: []ir.Instruction{
					{
						Result: &q1,
						Op:     ir.OpSDiv,
						Operands: []ir.Value{
							{Name: "n1", Typ: ir.IntType(32)},
							{Name: "d1", Typ: ir.IntType(32)},
						},
					},
					{
						Result: &q2,
						Op:     ir.OpSDiv,
						Operands: []ir.Value{
							{Name: "n2", Typ: ir.IntType(32)},
							{Name: "d2", Typ: ir.IntType(32)},
						},
					},
				},
				Term: ir.Terminator{Kind: ir.TermRet},
			},
		},
	}

	r := instrument.NewRewriter(instrument.ModeProduction)
	changed, err := r.RewriteFunction(f)
	require.NoError(t, err)
	require.True(t, changed)

	var divCount, callCount int
	for _, b := range f.Blocks {
		for _, inst := range b.Instructions {
			switch inst.Op {
			case ir.OpSDiv:
				divCount++
			case ir.OpCall:
				callCount++
			}
		}
	}
	require.Equal(t, 2, divCount, "each original division must survive exactly once")

	// Each site contributes one zero-check intrinsic call plus one
	// report call; anything beyond 4 calls means a site was
	// instrumented more than once.
	require.Equal(t, 4, callCount)

	// entry, then1, cont1, then2, cont2: a prior bug re-walked cont1 a
	// second time as a fresh top-level entry in f.Blocks, which would
	// otherwise show up here as extra then/cont pairs and as divCount/
	// callCount above 2/4.
	require.Len(t, f.Blocks, 5)
}

func TestRewriteFunctionReportsUnreachable(t *testing.T) {
	f := &ir.Function{
		Name: "panics",
		Blocks: []*ir.BasicBlock{
			{Name: "entry", Term: ir.Terminator{Kind: ir.TermUnreachable}},
		},
	}

	r := instrument.NewRewriter(instrument.ModeProduction)
	changed, err := r.RewriteFunction(f)
	require.NoError(t, err)
	require.True(t, changed)
	require.Len(t, f.Blocks[0].Instructions, 1)
	require.Equal(t, ir.OpCall, f.Blocks[0].Instructions[0].Op)
}

func TestAllChecksModeInstrumentsLoopHeader(t *testing.T) {
	f := &ir.Function{
		Name: "loopy",
		Blocks: []*ir.BasicBlock{
			{Name: "entry", Term: ir.Terminator{Kind: ir.TermBr, Targets: []string{"loop"}}},
			{
				Name: "loop",
				Term: ir.Terminator{
					Kind:    ir.TermCondBr,
					Targets: []string{"loop", "exit"},
					Cond:    &ir.Value{Name: "cond", Typ: ir.IntType(1)},
				},
			},
			{Name: "exit", Term: ir.Terminator{Kind: ir.TermRet}},
		},
	}

	r := instrument.NewRewriter(instrument.ModeAllChecks)
	changed, err := r.RewriteFunction(f)
	require.NoError(t, err)
	require.True(t, changed)
	require.Greater(t, len(f.Blocks), 3)
}

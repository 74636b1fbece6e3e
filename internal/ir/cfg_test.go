package ir_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/trace2pass/trace2pass/internal/ir"
)

func TestSplitBeforeIndexPreservesTrailingInstructions(t *testing.T) {
	f := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{
			{
				Name: "entry",
				Instructions: []ir.Instruction{
					{Op: ir.OpAdd},
					{Op: ir.OpMul},
				},
				Term: ir.Terminator{Kind: ir.TermRet},
			},
		},
	}

	s := ir.NewSplitter(f)
	cont := s.SplitBeforeIndex(f.Blocks[0], 1)

	require.Len(t, f.Blocks[0].Instructions, 1)
	require.Equal(t, ir.OpAdd, f.Blocks[0].Instructions[0].Op)
	require.Equal(t, ir.TermBr, f.Blocks[0].Term.Kind)
	require.Equal(t, []string{cont.Name}, f.Blocks[0].Term.Targets)

	require.Len(t, cont.Instructions, 1)
	require.Equal(t, ir.OpMul, cont.Instructions[0].Op)
	require.Equal(t, ir.TermRet, cont.Term.Kind)
	require.Len(t, f.Blocks, 2)
}

func TestInsertThenBranchBuildsCondBr(t *testing.T) {
	f := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{
			{Name: "entry", Term: ir.Terminator{Kind: ir.TermRet}},
		},
	}
	s := ir.NewSplitter(f)
	cont := s.SplitBeforeIndex(f.Blocks[0], 0)

	cond := ir.Value{Name: "cond", Typ: ir.IntType(1)}
	then := s.InsertThenBranch(f.Blocks[0], cond)

	require.Equal(t, ir.TermCondBr, f.Blocks[0].Term.Kind)
	require.ElementsMatch(t, []string{then.Name, cont.Name}, f.Blocks[0].Term.Targets)
	require.Equal(t, ir.TermBr, then.Term.Kind)
	require.Equal(t, []string{cont.Name}, then.Term.Targets)
}

func TestLoopHeadersDetectsBackEdge(t *testing.T) {
	f := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{
			{Name: "entry", Term: ir.Terminator{Kind: ir.TermBr, Targets: []string{"loop"}}},
			{Name: "loop", Term: ir.Terminator{Kind: ir.TermCondBr, Targets: []string{"loop", "exit"}}},
			{Name: "exit", Term: ir.Terminator{Kind: ir.TermRet}},
		},
	}

	headers := f.LoopHeaders()
	require.True(t, headers["loop"])
	require.False(t, headers["entry"])
	require.False(t, headers["exit"])
}

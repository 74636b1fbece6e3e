package ir

import "fmt"

// Splitter is the library-supplied "split block and insert then-branch"
// utility every conditional check must go through.
// Manual block splicing is forbidden in the instrumentation engine
// because it produces pathological CFGs later optimization passes
// cannot consume; Splitter is the single, disciplined way to grow the
// CFG.
type Splitter struct {
	f       *Function
	counter int
}

// NewSplitter returns a Splitter bound to f. f's existing blocks are
// never renamed; only freshly created blocks use the splitter's
// counter, so repeated splits within one function-rewrite invocation
// never collide.
func NewSplitter(f *Function) *Splitter {
	return &Splitter{f: f}
}

func (s *Splitter) freshName(prefix string) string {
	s.counter++
	return fmt.Sprintf("%s.%s.%d", s.f.Name, prefix, s.counter)
}

// SplitBeforeIndex splits block at instruction index idx: everything
// from idx onward (instructions and the original terminator) moves into
// a new "continuation" block, leaving block's own terminator as an
// unconditional branch to the continuation. It returns the
// continuation block so the caller can insert new
// instructions/terminators in the gap left behind in block.
//
// This is pure CFG surgery: it never removes or reorders any
// instruction with observable effects, it only grows the block count.
func (s *Splitter) SplitBeforeIndex(block *BasicBlock, idx int) *BasicBlock {
	if idx < 0 {
		idx = 0
	}
	if idx > len(block.Instructions) {
		idx = len(block.Instructions)
	}

	cont := &BasicBlock{
		Name:         s.freshName("cont"),
		Instructions: append([]Instruction(nil), block.Instructions[idx:]...),
		Term:         block.Term,
	}
	block.Instructions = block.Instructions[:idx:idx]
	block.Term = Terminator{Kind: TermBr, Targets: []string{cont.Name}}

	s.insertAfter(block, cont)

	return cont
}

// InsertThenBranch inserts a new block guarded by cond between block and
// its (now single) successor: if cond is true control goes to a
// freshly-created "then" block (populated by the caller via the
// returned block), which then falls through to rejoin; if false,
// control skips straight to rejoin. block's terminator (expected to be
// an unconditional Br to rejoin, as left behind by SplitBeforeIndex)
// is replaced with a CondBr.
//
// then has no instructions and a terminator that branches
// unconditionally to rejoin; the caller adds report-call instructions
// via then.Instructions = append(then.Instructions, ...).
func (s *Splitter) InsertThenBranch(block *BasicBlock, cond Value) (then *BasicBlock) {
	if block.Term.Kind != TermBr || len(block.Term.Targets) != 1 {
		panic("ir: InsertThenBranch requires block to end in an unconditional branch")
	}
	rejoin := block.Term.Targets[0]

	then = &BasicBlock{
		Name: s.freshName("then"),
		Term: Terminator{Kind: TermBr, Targets: []string{rejoin}},
	}
	s.insertAfter(block, then)

	block.Term = Terminator{
		Kind:    TermCondBr,
		Cond:    &cond,
		Targets: []string{then.Name, rejoin},
	}

	return then
}

// insertAfter places nb immediately after block in f.Blocks, keeping
// block ordering stable for readability (not semantically required —
// the CFG is defined by terminators, not slice order — but it keeps
// diffs and dumps legible, matching how a real IR printer lays out
// freshly split blocks).
func (s *Splitter) insertAfter(after *BasicBlock, nb *BasicBlock) {
	for i, b := range s.f.Blocks {
		if b == after {
			s.f.Blocks = append(s.f.Blocks, nil)
			copy(s.f.Blocks[i+2:], s.f.Blocks[i+1:])
			s.f.Blocks[i+1] = nb
			return
		}
	}
	s.f.Blocks = append(s.f.Blocks, nb)
}

// LoopHeaders returns the set of block names that are the target of a
// back-edge: an edge from a block no earlier than itself in the
// function's existing block order. This heuristic is deliberately
// imprecise on irreducible control flow (false
// positives and false negatives are tolerated; a dominator-based
// analysis is explicitly deferred).
func (f *Function) LoopHeaders() map[string]bool {
	index := make(map[string]int, len(f.Blocks))
	for i, b := range f.Blocks {
		index[b.Name] = i
	}

	headers := make(map[string]bool)
	for i, b := range f.Blocks {
		for _, succ := range b.Term.Targets {
			if j, ok := index[succ]; ok && j <= i {
				headers[succ] = true
			}
		}
	}
	return headers
}

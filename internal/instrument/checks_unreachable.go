package instrument

import "github.com/trace2pass/trace2pass/internal/ir"

// instrumentUnreachable inserts a report call immediately before an
// unreachable terminator. Unlike the other checks, reaching this point
// at all IS the anomaly, so no guard branch is needed: the call is
// unconditional and the terminator is left as unreachable.
func (r *Rewriter) instrumentUnreachable(block *ir.BasicBlock) {
	report := ir.Instruction{
		Op:     ir.OpCall,
		Callee: reportCallee(checkUnreachable),
	}
	block.Instructions = append(block.Instructions, report)
	r.Stats.ChecksInserted[checkUnreachable]++
}

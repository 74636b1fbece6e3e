package instrument

import "github.com/trace2pass/trace2pass/internal/ir"

// instrumentPureCall appends an unconditional post-call check after a
// call to a declared-pure candidate function. Unlike the other checks
// this never branches: the runtime library's bounded per-goroutine
// cache decides whether the observed (args, result) pair disagrees with
// a previous observation and reports only then, so the engine's job is
// only to surface the call site, not to evaluate consistency itself
func (r *Rewriter) instrumentPureCall(cur *ir.BasicBlock, idx int, inst ir.Instruction) {
	args := make([]ir.Value, 0, len(inst.Operands)+2)
	args = append(args, ir.Value{Name: inst.Callee})
	if inst.Result != nil {
		args = append(args, *inst.Result)
	}
	args = append(args, inst.Operands...)

	check := ir.Instruction{
		Op:       ir.OpCall,
		Callee:   reportCallee(checkPureConsistency),
		Operands: args,
	}
	cur.Instructions = insertAt(cur.Instructions, idx+1, check)
	r.Stats.ChecksInserted[checkPureConsistency]++
}

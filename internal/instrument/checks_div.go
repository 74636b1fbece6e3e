package instrument

import "github.com/trace2pass/trace2pass/internal/ir"

// instrumentDivByZero inserts a pre-division zero check: the divisor is
// tested before control ever reaches the division, and the division
// itself is never moved or altered.
func (r *Rewriter) instrumentDivByZero(cur *ir.BasicBlock, idx int,
	inst ir.Instruction, s *ir.Splitter) (bool, *ir.BasicBlock, int) {

	if len(inst.Operands) != 2 {
		return false, nil, 1
	}
	divisor := inst.Operands[1]

	flag := ir.Value{Name: cur.Name + ".zchk", Typ: ir.IntType(1)}
	check := ir.Instruction{
		Result:    &flag,
		Op:        ir.OpCall,
		Callee:    RuntimeNamespacePrefix + "check_is_zero",
		Operands:  []ir.Value{divisor},
		Intrinsic: true,
	}
	cur.Instructions = insertAt(cur.Instructions, idx, check)
	r.Stats.ChecksInserted[checkDivByZero]++

	// The original division instruction shifted one slot to the right
	// when check was inserted before it; split immediately after check
	// so the division lands, untouched, in the continuation. Resuming
	// at index 1 (not 0) skips back over that division so it is never
	// re-matched as its own check site.
	next := r.guardAndReport(cur, idx+1, s, flag,
		reportCallee(checkDivByZero), inst.Operands)

	return true, next, 1
}

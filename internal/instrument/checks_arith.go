package instrument

import "github.com/trace2pass/trace2pass/internal/ir"

// instrumentArithOverflow checks an add/sub/mul carrying an nsw or nuw
// flag for overflow, reporting when the flag-selected with-overflow
// intrinsic fires. The original instruction is left untouched; the
// engine only adds a check alongside it, so the function's semantics
// when no overflow occurs are unchanged.
func (r *Rewriter) instrumentArithOverflow(cur *ir.BasicBlock, idx int,
	inst ir.Instruction, s *ir.Splitter) (bool, *ir.BasicBlock, int) {

	if !inst.NSW && !inst.NUW {
		// No overflow semantics declared for this operation: nothing to
		// check against (e.g. wrapping arithmetic by design).
		return false, nil, 1
	}
	if len(inst.Operands) != 2 || inst.Result == nil {
		return false, nil, 1
	}

	flag := ir.Value{Name: cur.Name + ".ovfl", Typ: ir.IntType(1)}
	check := ir.Instruction{
		Result:    &flag,
		Op:        ir.OpCall,
		Callee:    overflowIntrinsic(inst.Op, inst.NSW),
		Operands:  inst.Operands,
		Intrinsic: true,
	}
	cur.Instructions = insertAt(cur.Instructions, idx+1, check)
	r.Stats.ChecksInserted[checkArithOverflow]++

	next := r.guardAndReport(cur, idx+2, s, flag,
		reportCallee(checkArithOverflow), []ir.Value{*inst.Result})

	return true, next, 0
}

// instrumentShiftOverflow checks a shl whose shift amount may reach or
// exceed the operand width, which is undefined behavior for the
// shifted-away bits.
func (r *Rewriter) instrumentShiftOverflow(cur *ir.BasicBlock, idx int,
	inst ir.Instruction, s *ir.Splitter) (bool, *ir.BasicBlock, int) {

	if len(inst.Operands) != 2 || inst.Result == nil {
		return false, nil, 1
	}
	width := inst.Result.Typ.Width
	if width == 0 {
		return false, nil, 1
	}

	flag := ir.Value{Name: cur.Name + ".shovfl", Typ: ir.IntType(1)}
	check := ir.Instruction{
		Result: &flag,
		Op:     ir.OpCall,
		Callee: RuntimeNamespacePrefix + "check_shift_amount",
		Operands: []ir.Value{
			inst.Operands[1],
			{IsConst: true, ConstInt: int64(width)},
		},
		Intrinsic: true,
	}
	cur.Instructions = insertAt(cur.Instructions, idx+1, check)
	r.Stats.ChecksInserted[checkShiftOverflow]++

	next := r.guardAndReport(cur, idx+2, s, flag,
		reportCallee(checkShiftOverflow),
		[]ir.Value{inst.Operands[0], inst.Operands[1]})

	return true, next, 0
}

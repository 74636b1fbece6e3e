package instrument

import "github.com/trace2pass/trace2pass/internal/ir"

// instrumentSignConversion checks a narrow-to-wide zero extension
// (i8/i16 -> i32/i64) against the source value's sign bit: zext treats
// its operand as unsigned, so a negative narrow value silently becomes
// a large positive wide one, which is the anomaly this check reports
func (r *Rewriter) instrumentSignConversion(cur *ir.BasicBlock, idx int,
	inst ir.Instruction, s *ir.Splitter) (bool, *ir.BasicBlock, int) {

	if len(inst.Operands) != 1 {
		return false, nil, 1
	}
	src := inst.Operands[0]

	flag := ir.Value{Name: cur.Name + ".neg", Typ: ir.IntType(1)}
	check := ir.Instruction{
		Result:    &flag,
		Op:        ir.OpCall,
		Callee:    RuntimeNamespacePrefix + "check_negative",
		Operands:  []ir.Value{src},
		Intrinsic: true,
	}
	cur.Instructions = insertAt(cur.Instructions, idx+1, check)
	r.Stats.ChecksInserted[checkSignConversion]++

	next := r.guardAndReport(cur, idx+2, s, flag,
		reportCallee(checkSignConversion), []ir.Value{src})

	return true, next, 0
}

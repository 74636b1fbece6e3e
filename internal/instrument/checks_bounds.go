package instrument

import "github.com/trace2pass/trace2pass/internal/ir"

// instrumentBoundsCheck checks a GEP's last index for negativity before
// the computed pointer is used. Only the last index is inspected,
// matching this check's deliberately narrow definition:
// it catches the common "negative offset wrapped from an unsigned
// subtraction" shape, not general bounds analysis.
func (r *Rewriter) instrumentBoundsCheck(cur *ir.BasicBlock, idx int,
	inst ir.Instruction, s *ir.Splitter) (bool, *ir.BasicBlock, int) {

	if len(inst.Operands) < 2 {
		return false, nil, 1
	}
	base := inst.Operands[0]
	lastIndex := inst.Operands[len(inst.Operands)-1]

	flag := ir.Value{Name: cur.Name + ".oob", Typ: ir.IntType(1)}
	check := ir.Instruction{
		Result:    &flag,
		Op:        ir.OpCall,
		Callee:    RuntimeNamespacePrefix + "check_negative",
		Operands:  []ir.Value{lastIndex},
		Intrinsic: true,
	}
	// The check must run before the GEP itself is used, so it is
	// inserted immediately before idx, pushing the GEP one slot right.
	cur.Instructions = insertAt(cur.Instructions, idx, check)
	r.Stats.ChecksInserted[checkBoundsViolation]++

	// The continuation's first instruction is the GEP itself (moved
	// there by the split, untouched); resume at index 1 so it is never
	// re-matched as its own check site.
	next := r.guardAndReport(cur, idx+1, s, flag,
		reportCallee(checkBoundsViolation), []ir.Value{base, lastIndex})

	return true, next, 1
}

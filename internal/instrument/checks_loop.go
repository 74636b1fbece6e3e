package instrument

import "github.com/trace2pass/trace2pass/internal/ir"

// instrumentLoopHeader installs a per-header atomic iteration counter at
// the very top of header: every pass through the header ticks the
// counter, and once it crosses loopIterationThreshold the header reports
// exactly once (the exactly-once behavior itself lives in the runtime
// library's atomic compare-and-report; the engine only wires the call
// site).
func (r *Rewriter) instrumentLoopHeader(f *ir.Function, header *ir.BasicBlock,
	s *ir.Splitter) bool {

	if header == nil {
		return false
	}

	s.SplitBeforeIndex(header, 0)

	counterID := ir.Value{Name: f.Name + "." + header.Name + ".counter"}

	count := ir.Value{Name: header.Name + ".itercount", Typ: ir.IntType(64)}
	tick := ir.Instruction{
		Result:    &count,
		Op:        ir.OpCall,
		Callee:    RuntimeNamespacePrefix + "rt_loop_tick",
		Operands:  []ir.Value{counterID},
		Intrinsic: true,
	}

	flag := ir.Value{Name: header.Name + ".loopexceeded", Typ: ir.IntType(1)}
	check := ir.Instruction{
		Result: &flag,
		Op:     ir.OpCall,
		Callee: RuntimeNamespacePrefix + "check_threshold",
		Operands: []ir.Value{
			count,
			{IsConst: true, ConstInt: loopIterationThreshold},
		},
		Intrinsic: true,
	}

	header.Instructions = append(header.Instructions, tick, check)

	then := s.InsertThenBranch(header, flag)
	r.visited[then] = true
	then.Instructions = append(then.Instructions, ir.Instruction{
		Op:       ir.OpCall,
		Callee:   reportCallee(checkLoopBoundExceeded),
		Operands: []ir.Value{counterID, count},
	})

	r.Stats.ChecksInserted[checkLoopBoundExceeded]++

	return true
}

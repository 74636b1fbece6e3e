package instrument

import "github.com/trace2pass/trace2pass/internal/ir"

// reportCallee names the runtime entry point a given check kind reports
// through. instrument never calls it directly, it only emits an
// ir.Instruction referencing the symbol, the way a real IR-rewriting
// pass emits a CallInst against a declared function. internal/runtime
// does not export functions under these names; its entry points are
// Reporter methods (ReportArithOverflow and the like).
func reportCallee(k checkKind) string {
	switch k {
	case checkArithOverflow:
		return RuntimeNamespacePrefix + "rt_report_arith_overflow"
	case checkShiftOverflow:
		return RuntimeNamespacePrefix + "rt_report_shift_overflow"
	case checkUnreachable:
		return RuntimeNamespacePrefix + "rt_report_unreachable"
	case checkDivByZero:
		return RuntimeNamespacePrefix + "rt_report_div_by_zero"
	case checkSignConversion:
		return RuntimeNamespacePrefix + "rt_report_sign_conversion"
	case checkPureConsistency:
		return RuntimeNamespacePrefix + "rt_check_pure"
	case checkBoundsViolation:
		return RuntimeNamespacePrefix + "rt_report_bounds_violation"
	case checkLoopBoundExceeded:
		return RuntimeNamespacePrefix + "rt_report_loop_bound_exceeded"
	default:
		return RuntimeNamespacePrefix + "rt_report_unknown"
	}
}

// overflowIntrinsic picks the LLVM-style with-overflow intrinsic name for
// op given whether it is operating in signed (nsw) or unsigned (nuw)
// mode, mirroring the real engine's llvm.{s,u}{add,sub,mul}.with.overflow
// family.
func overflowIntrinsic(op ir.Op, signed bool) string {
	prefix := "u"
	if signed {
		prefix = "s"
	}
	var name string
	switch op {
	case ir.OpAdd:
		name = "add"
	case ir.OpSub:
		name = "sub"
	case ir.OpMul:
		name = "mul"
	default:
		name = string(op)
	}
	return "llvm." + prefix + name + ".with.overflow"
}

// insertAt returns insts with extra inserted at position idx, shifting
// the remainder right. idx is clamped to [0, len(insts)].
func insertAt(insts []ir.Instruction, idx int, extra ...ir.Instruction) []ir.Instruction {
	if idx < 0 {
		idx = 0
	}
	if idx > len(insts) {
		idx = len(insts)
	}
	out := make([]ir.Instruction, 0, len(insts)+len(extra))
	out = append(out, insts[:idx]...)
	out = append(out, extra...)
	out = append(out, insts[idx:]...)
	return out
}

// guardAndReport is the shared shape behind every split-based check: it
// splits cur at splitIdx (moving everything from splitIdx onward into a
// continuation block), then installs a then-branch guarded by cond whose
// body calls reportCallee with args. It returns the continuation block;
// the caller resumes scanning it at index 0, or at index 1 when the
// checked instruction itself moved into the continuation.
func (r *Rewriter) guardAndReport(cur *ir.BasicBlock, splitIdx int,
	s *ir.Splitter, cond ir.Value, callee string,
	args []ir.Value) *ir.BasicBlock {

	cont := s.SplitBeforeIndex(cur, splitIdx)
	then := s.InsertThenBranch(cur, cond)
	r.visited[then] = true

	report := ir.Instruction{
		Op:       ir.OpCall,
		Callee:   callee,
		Operands: args,
	}
	then.Instructions = insertAt(then.Instructions, len(then.Instructions), report)

	return cont
}

// loopIterationThreshold is the per-loop-header iteration count above
// which the engine's inserted counter check fires (ten million).
const loopIterationThreshold = 10_000_000

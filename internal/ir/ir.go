// Package ir models the slice of an LLVM-family intermediate
// representation the instrumentation engine needs to rewrite: values,
// basic blocks with a terminator, and functions made of blocks. It is a
// from-scratch, Go-native stand-in for a real compiler's in-memory IR —
// a production deployment adapts a real front end's IR into this model
// — but it is rich enough to express every instrumentable site and
// CFG-splitting rule the instrumentation engine needs.
package ir

// Type is the closed set of integer/pointer value types the engine's
// instrumentable sites operate on. Widths matter: sign-conversion is
// only instrumented for i8/i16 -> i32/i64.
type Type struct {
	// Width is the bit width for integer types (8, 16, 32, 64). Zero
	// for Pointer.
	Width int

	// Pointer is true for pointer-typed values (e.g. the base of a
	// GEP).
	Pointer bool
}

func IntType(width int) Type { return Type{Width: width} }

var PointerType = Type{Pointer: true}

// Value is an SSA value: an instruction result, a constant, or a block
// parameter. Only the fields an instrumentable site needs are modeled.
type Value struct {
	Name string
	Typ  Type

	// ConstInt is valid when this Value is an integer constant.
	IsConst  bool
	ConstInt int64
}

// Op names the operation an Instruction performs.
type Op string

const (
	OpAdd  Op = "add"
	OpSub  Op = "sub"
	OpMul  Op = "mul"
	OpShl  Op = "shl"
	OpSDiv Op = "sdiv"
	OpUDiv Op = "udiv"
	OpSRem Op = "srem"
	OpURem Op = "urem"
	OpZExt Op = "zext"
	OpSExt Op = "sext"
	OpCall Op = "call"
	// OpGEP is a getelementptr-style element-pointer computation.
	OpGEP Op = "gep"
)

// Instruction is one non-terminator IR instruction.
type Instruction struct {
	Result *Value
	Op     Op

	// Operands holds the instruction's operands in source order. For
	// binary arithmetic this is [lhs, rhs]; for a cast, [source]; for a
	// call, [args...] (the callee is named by Callee); for GEP,
	// [base, indices...].
	Operands []Value

	// NUW, NSW mirror the `nuw`/`nsw` flags LLVM attaches to binary
	// operators: whether the operation is "no unsigned
	// wrap" / "no signed wrap". The engine selects the matching
	// overflow intrinsic by inspecting these.
	NUW bool
	NSW bool

	// Callee is the called function's name, populated for OpCall.
	Callee string

	// SideEffectFree marks a declared-pure callee candidate for
	// pure-function-consistency instrumentation: integer
	// return, at most two integer args, not indirect, not an
	// intrinsic, not a runtime-namespace function.
	SideEffectFree bool
	Indirect       bool
	Intrinsic      bool
}

// Terminator is a basic block's final control-flow instruction.
type Terminator struct {
	Kind TerminatorKind

	// Cond is the branch condition for CondBr.
	Cond *Value

	// Targets holds successor block names: [then] for Br/Unreachable
	// (Unreachable has none), [then, else] for CondBr.
	Targets []string
}

type TerminatorKind string

const (
	TermBr          TerminatorKind = "br"
	TermCondBr      TerminatorKind = "condbr"
	TermRet         TerminatorKind = "ret"
	TermUnreachable TerminatorKind = "unreachable"
)

// BasicBlock is a straight-line sequence of instructions ending in one
// Terminator.
type BasicBlock struct {
	Name         string
	Instructions []Instruction
	Term         Terminator
}

// Function is a sequence of basic blocks; the first is the entry block.
// Declarations (no body) are represented by a nil/empty Blocks slice.
type Function struct {
	Name   string
	Blocks []*BasicBlock

	// Params lists the function's formal parameters, in order.
	Params []Value

	// RetType is the function's return type (zero Type for void).
	RetType Type

	// Build is the optional build-identity metadata the front end may
	// have attached to this translation unit. Nil when the front end
	// did not supply it — a designed limitation, not a missing feature.
	Build *BuildIdentity

	// Instrumented marks that the instrumentation engine has already
	// rewritten this function, making a second RewriteFunction call a
	// no-op.
	Instrumented bool
}

// BuildIdentity mirrors report.BuildMetadata but lives in this package
// to avoid a dependency from ir -> report. No code in this module
// converts it to report.BuildMetadata.
type BuildIdentity struct {
	Compiler   string
	Version    string
	Flags      string
	SourceHash string
}

// IsDeclaration reports whether f has no body.
func (f *Function) IsDeclaration() bool {
	return len(f.Blocks) == 0
}

// Block looks up a basic block by name.
func (f *Function) Block(name string) *BasicBlock {
	for _, b := range f.Blocks {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// Module is a translation unit: a set of functions.
type Module struct {
	Name      string
	Functions []*Function
}

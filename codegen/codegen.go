// Package codegen defines the interfaces jvmc's compiler core consumes
// but never implements: the runtime query interface, the target
// description, the optional bytecode-extension resolver, and the code
// generator facade itself (spec.md §4.10, §6). The core only drives
// these through already-resolved Locations; it never inspects what a
// Generator call actually emits.
package codegen

import (
	"jvmc/handler"
	"jvmc/location"
)

// Signature describes a method's parameter and return kinds.
type Signature struct {
	ParamKinds []location.Kind
	ReturnKind location.Kind
}

// Method is the input to a single compilation: one method's bytecode,
// its exception-handler table, and the metadata the core needs to size
// the frame state (spec.md §1, §3). It is supplied directly by the
// caller, not resolved through RuntimeQuery — a compilation compiles
// exactly the method it's handed.
type Method struct {
	Signature Signature
	IsStatic  bool
	MaxLocals int
	MaxStack  int
	Code      []byte
	Handlers  []handler.Entry

	// Identity is an opaque, caller-supplied label used only for
	// diagnostics (it appears in Bailout messages).
	Identity string
}

// TypeRef is an opaque handle to a resolved or unresolved class,
// interface, or array type, as returned by RuntimeQuery lookups and
// consumed only as an argument to further RuntimeQuery/Generator calls.
type TypeRef interface{}

// ConstantRef describes one resolved (or not-yet-resolved) constant
// pool entry, as returned by RuntimeQuery.LookupConstant.
type ConstantRef struct {
	Kind       location.Kind
	Value      interface{} // valid only when !Unresolved
	Unresolved bool        // true for an as-yet-unresolved Class/MethodType/MethodHandle entry
	Type       TypeRef     // valid only when Unresolved
}

// FieldRef describes a resolved field reference.
type FieldRef struct {
	Kind      location.Kind
	Owner     TypeRef
	IsStatic  bool
	Resolved  bool
}

// MethodRef describes a resolved method reference.
type MethodRef struct {
	Signature Signature
	IsStatic  bool
	Owner     TypeRef
}

// RuntimeQuery is the set of pure, possibly-failing queries the core
// drives against the constant pool and type system (spec.md §6). Every
// method may fail by returning an error reporting an unresolved or
// invalid condition; the dispatcher converts such errors into a
// Bailout (spec.md §7).
type RuntimeQuery interface {
	LookupConstant(cpi int) (ConstantRef, error)
	LookupType(cpi int) (TypeRef, error)
	LookupGetField(cpi int) (FieldRef, error)
	LookupPutField(cpi int) (FieldRef, error)
	LookupGetStatic(cpi int) (FieldRef, error)
	LookupPutStatic(cpi int) (FieldRef, error)
	LookupInvokeVirtual(cpi int) (MethodRef, error)
	LookupInvokeSpecial(cpi int) (MethodRef, error)
	LookupInvokeStatic(cpi int) (MethodRef, error)
	LookupInvokeInterface(cpi int) (MethodRef, error)
	IsResolved(t TypeRef) bool
}

// Target abstracts the calling convention, register file, and word
// size the core consumes without specifying (spec.md §1, §6).
type Target interface {
	WordSize() int

	// CallingConvention returns the initial Locations for a method's
	// parameters, in slot order, as seeded into the initial frame
	// state (spec.md §4.8 step 2). For non-static methods, index 0 of
	// the returned slice is the receiver.
	CallingConvention(sig Signature, isStatic bool, factory *location.Factory) []location.Location
}

// ExtendedOp describes an opaque extension bytecode resolved by an
// ExtensionResolver: how many bytes of operand it occupies (so the
// dispatcher can advance past it), how many argument slots it pops
// (already flattened to slot count, not value count), and what kind it
// pushes.
type ExtendedOp struct {
	OperandBytes int
	ArgSlots     int
	ReturnKind   location.Kind
}

// ExtensionResolver decodes opcodes outside the standard JVM set
// (spec.md §6). Given the unknown opcode, returns its decoded
// signature, or ok==false if the opcode is genuinely unknown (fatal).
type ExtensionResolver interface {
	Resolve(op byte, bci int, code []byte) (ExtendedOp, bool)
}

// Generator is the typed facade the dispatcher drives (spec.md §4.10).
// Every method takes already-resolved Locations and returns a fresh
// Location (or nothing, for void operations); the Generator decides
// how to lower virtual registers to physical ones. Instrumentation,
// safepoint, and bytecode-start markers are permitted no-ops.
type Generator interface {
	// Constants.
	Constant(kind location.Kind, value interface{}) location.Location

	// Locals/stack plumbing.
	Move(from, to location.Location)

	// Arithmetic, shifts, negation, conversions, comparisons.
	IntOp2(op string, a, b location.Location) location.Location
	LongOp2(op string, a, b location.Location) location.Location
	FloatOp2(op string, a, b location.Location) location.Location
	DoubleOp2(op string, a, b location.Location) location.Location
	Neg(kind location.Kind, a location.Location) location.Location
	Shift(op string, value, count location.Location, wide bool) location.Location
	Convert(from, to location.Kind, a location.Location) location.Location
	Compare(op string, a, b location.Location) location.Location // lcmp/fcmpl/fcmpg/dcmpl/dcmpg -> int result

	// Memory.
	ArrayLoad(kind location.Kind, array, index location.Location) location.Location
	ArrayStore(kind location.Kind, array, index, value location.Location)
	ArrayLength(array location.Location) location.Location
	New(t TypeRef) location.Location
	NewArray(kind location.Kind, length location.Location) location.Location
	ANewArray(t TypeRef, length location.Location) location.Location
	MultiANewArray(t TypeRef, lengths []location.Location) location.Location

	// Fields.
	GetField(f FieldRef, obj location.Location) location.Location
	PutField(f FieldRef, obj, value location.Location)
	GetStatic(f FieldRef) location.Location
	PutStatic(f FieldRef, value location.Location)

	// Invokes.
	InvokeVirtual(m MethodRef, args []location.Location) location.Location
	InvokeSpecial(m MethodRef, args []location.Location) location.Location
	InvokeStatic(m MethodRef, args []location.Location) location.Location
	InvokeInterface(m MethodRef, args []location.Location) location.Location
	InvokeExtended(op ExtendedOp, args []location.Location) location.Location

	// Type checks / monitors.
	CheckCast(t TypeRef, obj location.Location)
	InstanceOf(t TypeRef, obj location.Location) location.Location
	MonitorEnter(obj location.Location)
	MonitorExit(obj location.Location)
	ResolveClass(t TypeRef) location.Location

	// Control.
	Goto(targetBCI int)
	Jsr(targetBCI int) location.Location
	Ret(addr location.Location)
	IfZero(op string, a location.Location, targetBCI int)
	IfSame(op string, a, b location.Location, targetBCI int)
	IfNull(isNull bool, a location.Location, targetBCI int)
	TableSwitch(key location.Location, low, high int32, targetsBCI []int, defaultBCI int)
	LookupSwitch(key location.Location, keys []int32, targetsBCI []int, defaultBCI int)

	Return(v location.Location, kind location.Kind)
	Throw(obj location.Location)

	// Exceptions, safepoints, markers.
	ExceptionLoad() location.Location
	Safepoint()
	Breakpoint()

	// BytecodeStart and BlockStart mark the current emission position
	// for a given bci and return the code offset it was emitted at,
	// letting the orchestrator build the bci<->codeOffset maps
	// (spec.md §6 "Observable artifact") without the core needing to
	// know anything about the generator's internal buffer. Both are
	// permitted no-ops that return 0 when the generator doesn't track
	// offsets (e.g. a tracing/test double).
	BytecodeStart(bci int) int
	BlockStart(bci int) int
	Instrumentation(bci int, note string)
}

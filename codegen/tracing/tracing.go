// Package tracing implements a codegen.Generator that emits no code at
// all: it records every call it receives as a Call entry, in order,
// for use by tests and by the jvmc-dump CLI (SPEC_FULL.md
// supplemented-features section). It is jvmc's analogue of a disassembling
// test double, grounded on the teacher's own pattern of driving
// `compile.Compile` purely through explicit calls with no hidden
// machine state (exec/internal/compile/compile.go).
package tracing

import (
	"fmt"

	"jvmc/codegen"
	"jvmc/location"
)

// Call is one recorded Generator invocation.
type Call struct {
	Op     string
	Args   []string
	Result string
}

func (c Call) String() string {
	if c.Result == "" {
		return fmt.Sprintf("%s(%s)", c.Op, joinArgs(c.Args))
	}
	return fmt.Sprintf("%s = %s(%s)", c.Result, c.Op, joinArgs(c.Args))
}

func joinArgs(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += ", "
		}
		out += a
	}
	return out
}

// Generator is a trivial codegen.Generator: it allocates a fresh
// virtual register for every value-producing call and appends a Call
// record, but emits no actual machine code and tracks no real buffer
// offsets (BytecodeStart/BlockStart always return 0, per the
// interface's documented no-op contract).
type Generator struct {
	Calls []Call
	next  int
}

var _ codegen.Generator = (*Generator)(nil)

// New returns an empty Generator.
func New() *Generator {
	return &Generator{}
}

func (g *Generator) reg(kind location.Kind) location.Location {
	l := location.Register(g.next, kind)
	g.next++
	return l
}

func (g *Generator) record(op, result string, args ...interface{}) {
	strArgs := make([]string, len(args))
	for i, a := range args {
		strArgs[i] = fmt.Sprint(a)
	}
	g.Calls = append(g.Calls, Call{Op: op, Args: strArgs, Result: result})
}

func (g *Generator) Constant(kind location.Kind, value interface{}) location.Location {
	r := g.reg(kind)
	g.record("const", r.String(), kind, value)
	return r
}

func (g *Generator) Move(from, to location.Location) {
	g.record("move", "", from, to)
}

func (g *Generator) IntOp2(op string, a, b location.Location) location.Location {
	r := g.reg(location.Int)
	g.record("int."+op, r.String(), a, b)
	return r
}

func (g *Generator) LongOp2(op string, a, b location.Location) location.Location {
	r := g.reg(location.Long)
	g.record("long."+op, r.String(), a, b)
	return r
}

func (g *Generator) FloatOp2(op string, a, b location.Location) location.Location {
	r := g.reg(location.Float)
	g.record("float."+op, r.String(), a, b)
	return r
}

func (g *Generator) DoubleOp2(op string, a, b location.Location) location.Location {
	r := g.reg(location.Double)
	g.record("double."+op, r.String(), a, b)
	return r
}

func (g *Generator) Neg(kind location.Kind, a location.Location) location.Location {
	r := g.reg(kind)
	g.record("neg", r.String(), kind, a)
	return r
}

func (g *Generator) Shift(op string, value, count location.Location, wide bool) location.Location {
	kind := location.Int
	if wide {
		kind = location.Long
	}
	r := g.reg(kind)
	g.record("shift."+op, r.String(), value, count, wide)
	return r
}

func (g *Generator) Convert(from, to location.Kind, a location.Location) location.Location {
	r := g.reg(to)
	g.record("convert", r.String(), from, to, a)
	return r
}

func (g *Generator) Compare(op string, a, b location.Location) location.Location {
	r := g.reg(location.Int)
	g.record("compare."+op, r.String(), a, b)
	return r
}

func (g *Generator) ArrayLoad(kind location.Kind, array, index location.Location) location.Location {
	r := g.reg(kind.StackKind())
	g.record("arrayload", r.String(), kind, array, index)
	return r
}

func (g *Generator) ArrayStore(kind location.Kind, array, index, value location.Location) {
	g.record("arraystore", "", kind, array, index, value)
}

func (g *Generator) ArrayLength(array location.Location) location.Location {
	r := g.reg(location.Int)
	g.record("arraylength", r.String(), array)
	return r
}

func (g *Generator) New(t codegen.TypeRef) location.Location {
	r := g.reg(location.Object)
	g.record("new", r.String(), t)
	return r
}

func (g *Generator) NewArray(kind location.Kind, length location.Location) location.Location {
	r := g.reg(location.Object)
	g.record("newarray", r.String(), kind, length)
	return r
}

func (g *Generator) ANewArray(t codegen.TypeRef, length location.Location) location.Location {
	r := g.reg(location.Object)
	g.record("anewarray", r.String(), t, length)
	return r
}

func (g *Generator) MultiANewArray(t codegen.TypeRef, lengths []location.Location) location.Location {
	r := g.reg(location.Object)
	args := make([]interface{}, 0, len(lengths)+1)
	args = append(args, t)
	for _, l := range lengths {
		args = append(args, l)
	}
	g.record("multianewarray", r.String(), args...)
	return r
}

func (g *Generator) GetField(f codegen.FieldRef, obj location.Location) location.Location {
	r := g.reg(f.Kind)
	g.record("getfield", r.String(), f, obj)
	return r
}

func (g *Generator) PutField(f codegen.FieldRef, obj, value location.Location) {
	g.record("putfield", "", f, obj, value)
}

func (g *Generator) GetStatic(f codegen.FieldRef) location.Location {
	r := g.reg(f.Kind)
	g.record("getstatic", r.String(), f)
	return r
}

func (g *Generator) PutStatic(f codegen.FieldRef, value location.Location) {
	g.record("putstatic", "", f, value)
}

func argLocations(args []location.Location) []interface{} {
	out := make([]interface{}, len(args))
	for i, a := range args {
		out[i] = a
	}
	return out
}

func (g *Generator) InvokeVirtual(m codegen.MethodRef, args []location.Location) location.Location {
	r := g.reg(m.Signature.ReturnKind)
	g.record("invokevirtual", r.String(), append([]interface{}{m}, argLocations(args)...)...)
	return r
}

func (g *Generator) InvokeSpecial(m codegen.MethodRef, args []location.Location) location.Location {
	r := g.reg(m.Signature.ReturnKind)
	g.record("invokespecial", r.String(), append([]interface{}{m}, argLocations(args)...)...)
	return r
}

func (g *Generator) InvokeStatic(m codegen.MethodRef, args []location.Location) location.Location {
	r := g.reg(m.Signature.ReturnKind)
	g.record("invokestatic", r.String(), append([]interface{}{m}, argLocations(args)...)...)
	return r
}

func (g *Generator) InvokeInterface(m codegen.MethodRef, args []location.Location) location.Location {
	r := g.reg(m.Signature.ReturnKind)
	g.record("invokeinterface", r.String(), append([]interface{}{m}, argLocations(args)...)...)
	return r
}

func (g *Generator) InvokeExtended(op codegen.ExtendedOp, args []location.Location) location.Location {
	r := g.reg(op.ReturnKind)
	g.record("invokeextended", r.String(), append([]interface{}{op}, argLocations(args)...)...)
	return r
}

func (g *Generator) CheckCast(t codegen.TypeRef, obj location.Location) {
	g.record("checkcast", "", t, obj)
}

func (g *Generator) InstanceOf(t codegen.TypeRef, obj location.Location) location.Location {
	r := g.reg(location.Int)
	g.record("instanceof", r.String(), t, obj)
	return r
}

func (g *Generator) MonitorEnter(obj location.Location) {
	g.record("monitorenter", "", obj)
}

func (g *Generator) MonitorExit(obj location.Location) {
	g.record("monitorexit", "", obj)
}

func (g *Generator) ResolveClass(t codegen.TypeRef) location.Location {
	r := g.reg(location.Object)
	g.record("resolveclass", r.String(), t)
	return r
}

func (g *Generator) Goto(targetBCI int) {
	g.record("goto", "", targetBCI)
}

func (g *Generator) Jsr(targetBCI int) location.Location {
	r := g.reg(location.Object)
	g.record("jsr", r.String(), targetBCI)
	return r
}

func (g *Generator) Ret(addr location.Location) {
	g.record("ret", "", addr)
}

func (g *Generator) IfZero(op string, a location.Location, targetBCI int) {
	g.record("if"+op, "", a, targetBCI)
}

func (g *Generator) IfSame(op string, a, b location.Location, targetBCI int) {
	g.record("ifcmp"+op, "", a, b, targetBCI)
}

func (g *Generator) IfNull(isNull bool, a location.Location, targetBCI int) {
	g.record("ifnull", "", isNull, a, targetBCI)
}

func (g *Generator) TableSwitch(key location.Location, low, high int32, targetsBCI []int, defaultBCI int) {
	args := []interface{}{key, low, high}
	for _, t := range targetsBCI {
		args = append(args, t)
	}
	args = append(args, defaultBCI)
	g.record("tableswitch", "", args...)
}

func (g *Generator) LookupSwitch(key location.Location, keys []int32, targetsBCI []int, defaultBCI int) {
	args := []interface{}{key}
	for i, k := range keys {
		args = append(args, k, targetsBCI[i])
	}
	args = append(args, defaultBCI)
	g.record("lookupswitch", "", args...)
}

func (g *Generator) Return(v location.Location, kind location.Kind) {
	if kind == location.Void {
		g.record("return", "")
		return
	}
	g.record("return", "", v)
}

func (g *Generator) Throw(obj location.Location) {
	g.record("throw", "", obj)
}

func (g *Generator) ExceptionLoad() location.Location {
	r := g.reg(location.Object)
	g.record("exceptionload", r.String())
	return r
}

func (g *Generator) Safepoint() {
	g.record("safepoint", "")
}

func (g *Generator) Breakpoint() {
	g.record("breakpoint", "")
}

func (g *Generator) BytecodeStart(bci int) int {
	g.record("bytecodestart", "", bci)
	return 0
}

func (g *Generator) BlockStart(bci int) int {
	g.record("blockstart", "", bci)
	return 0
}

func (g *Generator) Instrumentation(bci int, note string) {
	g.record("instrumentation", "", bci, note)
}

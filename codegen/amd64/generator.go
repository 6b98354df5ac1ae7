package amd64

import (
	"fmt"

	"jvmc/codegen"
	"jvmc/location"

	asm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"
)

// Reserved registers, the same "pointer arena" convention
// backend_amd64.go uses for its stack/locals sliceHeader pointers
// (R10/R11), repurposed here to jvmc's own two arenas:
//   - R10 - base of the virtual-register file (one uint64 per
//     location.Register id)
//   - R11 - base of the canonical stack-slot file (one uint64 per
//     location.StackSlot index; slot 0 doubles as the return-value
//     cell, since the compiled blob has no Go-visible return value)
// Scratch integer registers: AX, BX, CX, DX, DI, SI, R8, R9.
// Scratch float registers: X0, X1.
const (
	regFile  = x86.REG_R10
	slotFile = x86.REG_R11
)

// Hooks supplies the absolute addresses of the runtime call-outs the
// generator emits CALLs to for anything touching the object model:
// field access, invokes, allocation, type checks, monitors, and
// exception plumbing (SPEC_FULL.md §4's "runtime call-out stub"
// lowering; no JVM heap or GC was ever in scope, so these stay
// function pointers the embedder supplies rather than real
// implementations). Every field is a raw code address, not a Go
// func value, because the callee runs in the middle of jitted code
// with no Go stack map describing it.
type Hooks struct {
	ArrayLoad, ArrayStore, ArrayLength                         uintptr
	New, NewArray, ANewArray, MultiANewArray                   uintptr
	GetField, PutField, GetStatic, PutStatic                   uintptr
	InvokeVirtual, InvokeSpecial, InvokeStatic, InvokeInterface uintptr
	InvokeExtended                                             uintptr
	CheckCast, InstanceOf, MonitorEnter, MonitorExit            uintptr
	ResolveClass, ConstantObject                               uintptr
	Convert, Compare                                           uintptr
	Jsr, Ret, Throw, ExceptionLoad                              uintptr
	Safepoint, Breakpoint                                       uintptr
}

func (h Hooks) address(name string) uintptr {
	switch name {
	case "arrayload":
		return h.ArrayLoad
	case "arraystore":
		return h.ArrayStore
	case "arraylength":
		return h.ArrayLength
	case "new":
		return h.New
	case "newarray":
		return h.NewArray
	case "anewarray":
		return h.ANewArray
	case "multianewarray":
		return h.MultiANewArray
	case "getfield":
		return h.GetField
	case "putfield":
		return h.PutField
	case "getstatic":
		return h.GetStatic
	case "putstatic":
		return h.PutStatic
	case "invokevirtual":
		return h.InvokeVirtual
	case "invokespecial":
		return h.InvokeSpecial
	case "invokestatic":
		return h.InvokeStatic
	case "invokeinterface":
		return h.InvokeInterface
	case "invokeextended":
		return h.InvokeExtended
	case "checkcast":
		return h.CheckCast
	case "instanceof":
		return h.InstanceOf
	case "monitorenter":
		return h.MonitorEnter
	case "monitorexit":
		return h.MonitorExit
	case "resolveclass":
		return h.ResolveClass
	case "constantobject":
		return h.ConstantObject
	case "convert":
		return h.Convert
	case "compare":
		return h.Compare
	case "jsr":
		return h.Jsr
	case "ret":
		return h.Ret
	case "throw":
		return h.Throw
	case "exceptionload":
		return h.ExceptionLoad
	case "safepoint":
		return h.Safepoint
	case "breakpoint":
		return h.Breakpoint
	default:
		return 0
	}
}

// pendingJump records a not-yet-resolved branch: prog is the jump
// instruction, target is the bci it must end up pointing at.
type pendingJump struct {
	prog   *obj.Prog
	target int
}

// Generator is jvmc's reference codegen.Generator: real AMD64
// lowering for int/long constants, moves, and integer/long/float/double
// arithmetic and control flow, with a single runtime call-out
// lowering for everything that touches the object model, and for
// float/double constants
// (exec/internal/compile/backend_amd64.go's golang-asm usage,
// generalized from a single WASM instruction subset to the whole
// Generator facade).
type Generator struct {
	builder *asm.Builder
	hooks   Hooks

	next   int
	labels map[int]*obj.Prog
	queue  []pendingJump
}

var _ codegen.Generator = (*Generator)(nil)

// New returns a Generator with its method prologue already emitted:
// the Go ABIInternal's first two pointer arguments (AX, BX) are
// dereferenced once into R10/R11, matching
// exec/internal/compile/native.go's NativeCodeUnit.Invoke(stack,
// locals *[]uint64) signature generalized to Invoke(registers, slots
// *[]uint64).
func New(hooks Hooks) (*Generator, error) {
	builder, err := asm.NewBuilder("amd64", 256)
	if err != nil {
		return nil, fmt.Errorf("amd64: new builder: %w", err)
	}
	g := &Generator{builder: builder, hooks: hooks, labels: make(map[int]*obj.Prog)}
	g.emitPrologue()
	return g, nil
}

func (g *Generator) prog() *obj.Prog { return g.builder.NewProg() }

func (g *Generator) add(p *obj.Prog) { g.builder.AddInstruction(p) }

func (g *Generator) emitPrologue() {
	for _, deref := range []struct {
		from int16
		to   int16
	}{{x86.REG_AX, regFile}, {x86.REG_BX, slotFile}} {
		p := g.prog()
		p.As = x86.AMOVQ
		p.From.Type = obj.TYPE_MEM
		p.From.Reg = deref.from
		p.To.Type = obj.TYPE_REG
		p.To.Reg = deref.to
		g.add(p)
	}
}

func (g *Generator) reg(kind location.Kind) location.Location {
	l := location.Register(g.next, kind)
	g.next++
	return l
}

// arenaAddr returns the {base register, byte offset} memory operand
// for l: the register file for a virtual register, the slot file for
// a canonical stack slot.
func arenaAddr(l location.Location) (base int16, offset int64) {
	if l.IsStackSlot() {
		return slotFile, int64(l.SlotIndex()) * 8
	}
	return regFile, int64(l.RegisterID()) * 8
}

func (g *Generator) loadInt(l location.Location, dst int16) {
	base, off := arenaAddr(l)
	p := g.prog()
	p.As = x86.AMOVQ
	p.From.Type = obj.TYPE_MEM
	p.From.Reg = base
	p.From.Offset = off
	p.To.Type = obj.TYPE_REG
	p.To.Reg = dst
	g.add(p)
}

func (g *Generator) storeInt(src int16, l location.Location) {
	base, off := arenaAddr(l)
	p := g.prog()
	p.As = x86.AMOVQ
	p.From.Type = obj.TYPE_REG
	p.From.Reg = src
	p.To.Type = obj.TYPE_MEM
	p.To.Reg = base
	p.To.Offset = off
	g.add(p)
}

func (g *Generator) loadFloat(l location.Location, dst int16, double bool) {
	base, off := arenaAddr(l)
	p := g.prog()
	if double {
		p.As = x86.AMOVSD
	} else {
		p.As = x86.AMOVSS
	}
	p.From.Type = obj.TYPE_MEM
	p.From.Reg = base
	p.From.Offset = off
	p.To.Type = obj.TYPE_REG
	p.To.Reg = dst
	g.add(p)
}

func (g *Generator) storeFloat(src int16, l location.Location, double bool) {
	base, off := arenaAddr(l)
	p := g.prog()
	if double {
		p.As = x86.AMOVSD
	} else {
		p.As = x86.AMOVSS
	}
	p.From.Type = obj.TYPE_REG
	p.From.Reg = src
	p.To.Type = obj.TYPE_MEM
	p.To.Reg = base
	p.To.Offset = off
	g.add(p)
}

// Constant materializes an immediate into a fresh register. Only
// integer-family and long constants are lowered directly; every other
// kind — object constants (string/class literals, not-yet-resolved
// handles) and float/double constants alike — routes through the
// ConstantObject call-out instead.
func (g *Generator) Constant(kind location.Kind, value interface{}) location.Location {
	r := g.reg(kind.StackKind())
	switch kind {
	case location.Long, location.Int, location.Byte, location.Short, location.Char, location.Boolean:
		iv := toInt64(value)
		p := g.prog()
		p.As = x86.AMOVQ
		p.From.Type = obj.TYPE_CONST
		p.From.Offset = iv
		p.To.Type = obj.TYPE_REG
		p.To.Reg = x86.REG_AX
		g.add(p)
		g.storeInt(x86.REG_AX, r)
		return r
	default:
		return g.callStub("constantobject", nil, kind, value)
	}
}

func toInt64(value interface{}) int64 {
	switch v := value.(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// Move copies from's value into to's home, taking the SSE path if
// either operand's declared kind is float or double and the integer
// path otherwise.
func (g *Generator) Move(from, to location.Location) {
	if isFloatKind(to.Kind()) || isFloatKind(from.Kind()) {
		double := to.Kind() == location.Double || from.Kind() == location.Double
		g.loadFloat(from, x86.REG_X0, double)
		g.storeFloat(x86.REG_X0, to, double)
		return
	}
	g.loadInt(from, x86.REG_AX)
	g.storeInt(x86.REG_AX, to)
}

func isFloatKind(k location.Kind) bool { return k == location.Float || k == location.Double }

func (g *Generator) intBinOp(op string, a, b location.Location, wide bool) location.Location {
	kind := location.Int
	if wide {
		kind = location.Long
	}
	r := g.reg(kind)
	g.loadInt(b, x86.REG_R9)
	g.loadInt(a, x86.REG_AX)
	switch op {
	case "div", "rem":
		if wide {
			cqo := g.prog()
			cqo.As = x86.ACQO
			g.add(cqo)
			div := g.prog()
			div.As = x86.AIDIVQ
			div.From.Type = obj.TYPE_REG
			div.From.Reg = x86.REG_R9
			g.add(div)
		} else {
			cdq := g.prog()
			cdq.As = x86.ACDQ
			g.add(cdq)
			div := g.prog()
			div.As = x86.AIDIVL
			div.From.Type = obj.TYPE_REG
			div.From.Reg = x86.REG_R9
			g.add(div)
		}
		if op == "rem" {
			g.storeInt(x86.REG_DX, r)
			return r
		}
		g.storeInt(x86.REG_AX, r)
		return r
	}
	p := g.prog()
	p.From.Type = obj.TYPE_REG
	p.From.Reg = x86.REG_R9
	p.To.Type = obj.TYPE_REG
	p.To.Reg = x86.REG_AX
	switch {
	case op == "add" && wide:
		p.As = x86.AADDQ
	case op == "add":
		p.As = x86.AADDL
	case op == "sub" && wide:
		p.As = x86.ASUBQ
	case op == "sub":
		p.As = x86.ASUBL
	case op == "mul" && wide:
		p.As = x86.AIMULQ
	case op == "mul":
		p.As = x86.AIMULL
	case op == "and" && wide:
		p.As = x86.AANDQ
	case op == "and":
		p.As = x86.AANDL
	case op == "or" && wide:
		p.As = x86.AORQ
	case op == "or":
		p.As = x86.AORL
	case op == "xor" && wide:
		p.As = x86.AXORQ
	case op == "xor":
		p.As = x86.AXORL
	default:
		return g.callStub("compare", []location.Location{a, b}, kind, op)
	}
	g.add(p)
	g.storeInt(x86.REG_AX, r)
	return r
}

func (g *Generator) IntOp2(op string, a, b location.Location) location.Location {
	return g.intBinOp(op, a, b, false)
}

func (g *Generator) LongOp2(op string, a, b location.Location) location.Location {
	return g.intBinOp(op, a, b, true)
}

func (g *Generator) floatBinOp(op string, a, b location.Location, double bool) location.Location {
	kind := location.Float
	if double {
		kind = location.Double
	}
	r := g.reg(kind)
	g.loadFloat(a, x86.REG_X0, double)
	g.loadFloat(b, x86.REG_X1, double)
	p := g.prog()
	p.From.Type = obj.TYPE_REG
	p.From.Reg = x86.REG_X1
	p.To.Type = obj.TYPE_REG
	p.To.Reg = x86.REG_X0
	switch {
	case op == "add" && double:
		p.As = x86.AADDSD
	case op == "add":
		p.As = x86.AADDSS
	case op == "sub" && double:
		p.As = x86.ASUBSD
	case op == "sub":
		p.As = x86.ASUBSS
	case op == "mul" && double:
		p.As = x86.AMULSD
	case op == "mul":
		p.As = x86.AMULSS
	case op == "div" && double:
		p.As = x86.ADIVSD
	case op == "div":
		p.As = x86.ADIVSS
	default:
		return g.callStub("compare", []location.Location{a, b}, kind, op)
	}
	g.add(p)
	g.storeFloat(x86.REG_X0, r, double)
	return r
}

func (g *Generator) FloatOp2(op string, a, b location.Location) location.Location {
	return g.floatBinOp(op, a, b, false)
}

func (g *Generator) DoubleOp2(op string, a, b location.Location) location.Location {
	return g.floatBinOp(op, a, b, true)
}

// Neg handles int/long directly (a single NEG instruction); float and
// double negation needs IEEE-754 sign-bit semantics jvmc leaves to the
// runtime call-out rather than hand-rolling an XORPS mask constant.
func (g *Generator) Neg(kind location.Kind, a location.Location) location.Location {
	if isFloatKind(kind) {
		return g.callStub("compare", []location.Location{a}, kind, "neg")
	}
	r := g.reg(kind)
	g.loadInt(a, x86.REG_AX)
	p := g.prog()
	p.To.Type = obj.TYPE_REG
	p.To.Reg = x86.REG_AX
	if kind == location.Long {
		p.As = x86.ANEGQ
	} else {
		p.As = x86.ANEGL
	}
	g.add(p)
	g.storeInt(x86.REG_AX, r)
	return r
}

// Shift lowers ishl/ishr/iushr/lshl/lshr/lushr: the count operand must
// land in CL, the only register x86 variable shifts read from.
func (g *Generator) Shift(op string, value, count location.Location, wide bool) location.Location {
	kind := location.Int
	if wide {
		kind = location.Long
	}
	r := g.reg(kind)
	g.loadInt(count, x86.REG_CX)
	g.loadInt(value, x86.REG_AX)
	p := g.prog()
	p.From.Type = obj.TYPE_REG
	p.From.Reg = x86.REG_CX
	p.To.Type = obj.TYPE_REG
	p.To.Reg = x86.REG_AX
	switch {
	case op == "shl" && wide:
		p.As = x86.ASHLQ
	case op == "shl":
		p.As = x86.ASHLL
	case op == "shr" && wide:
		p.As = x86.ASARQ
	case op == "shr":
		p.As = x86.ASARL
	case op == "ushr" && wide:
		p.As = x86.ASHRQ
	case op == "ushr":
		p.As = x86.ASHRL
	default:
		return g.callStub("compare", []location.Location{value, count}, kind, op)
	}
	g.add(p)
	g.storeInt(x86.REG_AX, r)
	return r
}

// Convert and Compare both need rounding-mode- and NaN-sensitive
// behavior (f2i's saturating semantics, lcmp/fcmpl/fcmpg's distinct
// NaN handling) that a one-call-per-operation lowering has no business
// open-coding; both route through the call-out stub.
func (g *Generator) Convert(from, to location.Kind, a location.Location) location.Location {
	return g.callStub("convert", []location.Location{a}, to, from, to)
}

func (g *Generator) Compare(op string, a, b location.Location) location.Location {
	return g.callStub("compare", []location.Location{a, b}, location.Int, op)
}

func (g *Generator) ArrayLoad(kind location.Kind, array, index location.Location) location.Location {
	return g.callStub("arrayload", []location.Location{array, index}, kind.StackKind(), kind)
}

func (g *Generator) ArrayStore(kind location.Kind, array, index, value location.Location) {
	g.callStub("arraystore", []location.Location{array, index, value}, location.Void, kind)
}

func (g *Generator) ArrayLength(array location.Location) location.Location {
	return g.callStub("arraylength", []location.Location{array}, location.Int)
}

func (g *Generator) New(t codegen.TypeRef) location.Location {
	return g.callStub("new", nil, location.Object, t)
}

func (g *Generator) NewArray(kind location.Kind, length location.Location) location.Location {
	return g.callStub("newarray", []location.Location{length}, location.Object, kind)
}

func (g *Generator) ANewArray(t codegen.TypeRef, length location.Location) location.Location {
	return g.callStub("anewarray", []location.Location{length}, location.Object, t)
}

func (g *Generator) MultiANewArray(t codegen.TypeRef, lengths []location.Location) location.Location {
	return g.callStub("multianewarray", lengths, location.Object, t)
}

func (g *Generator) GetField(f codegen.FieldRef, obj location.Location) location.Location {
	return g.callStub("getfield", []location.Location{obj}, f.Kind, f)
}

func (g *Generator) PutField(f codegen.FieldRef, obj, value location.Location) {
	g.callStub("putfield", []location.Location{obj, value}, location.Void, f)
}

func (g *Generator) GetStatic(f codegen.FieldRef) location.Location {
	return g.callStub("getstatic", nil, f.Kind, f)
}

func (g *Generator) PutStatic(f codegen.FieldRef, value location.Location) {
	g.callStub("putstatic", []location.Location{value}, location.Void, f)
}

func (g *Generator) InvokeVirtual(m codegen.MethodRef, args []location.Location) location.Location {
	return g.callStub("invokevirtual", args, m.Signature.ReturnKind, m)
}

func (g *Generator) InvokeSpecial(m codegen.MethodRef, args []location.Location) location.Location {
	return g.callStub("invokespecial", args, m.Signature.ReturnKind, m)
}

func (g *Generator) InvokeStatic(m codegen.MethodRef, args []location.Location) location.Location {
	return g.callStub("invokestatic", args, m.Signature.ReturnKind, m)
}

func (g *Generator) InvokeInterface(m codegen.MethodRef, args []location.Location) location.Location {
	return g.callStub("invokeinterface", args, m.Signature.ReturnKind, m)
}

func (g *Generator) InvokeExtended(op codegen.ExtendedOp, args []location.Location) location.Location {
	return g.callStub("invokeextended", args, op.ReturnKind, op)
}

func (g *Generator) CheckCast(t codegen.TypeRef, obj location.Location) {
	g.callStub("checkcast", []location.Location{obj}, location.Void, t)
}

func (g *Generator) InstanceOf(t codegen.TypeRef, obj location.Location) location.Location {
	return g.callStub("instanceof", []location.Location{obj}, location.Int, t)
}

func (g *Generator) MonitorEnter(obj location.Location) {
	g.callStub("monitorenter", []location.Location{obj}, location.Void)
}

func (g *Generator) MonitorExit(obj location.Location) {
	g.callStub("monitorexit", []location.Location{obj}, location.Void)
}

func (g *Generator) ResolveClass(t codegen.TypeRef) location.Location {
	return g.callStub("resolveclass", nil, location.Object, t)
}

// argRegs is the fixed integer argument order callStub loads operands
// into before a call-out, chosen to avoid the two reserved arena
// pointers and RAX/RDX (used by integer division).
var argRegs = []int16{x86.REG_DI, x86.REG_SI, x86.REG_R8, x86.REG_BX, x86.REG_CX}

// callStub lowers any Generator call the direct path above doesn't
// cover into a single CALL to the matching Hooks address: integer and
// reference arguments load into argRegs by argument position, float
// and double arguments load into X0, the result (if resultKind != Void) comes
// back in AX/X0 depending on kind. extra is metadata (FieldRef,
// MethodRef, TypeRef, ...) the hook needs but that has no Location —
// it is never encoded into the instruction stream itself; a real
// runtime would thread it through a side table indexed by call site,
// which is exactly what BytecodeStart's bci<->offset map exists for.
func (g *Generator) callStub(name string, args []location.Location, resultKind location.Kind, extra ...interface{}) location.Location {
	for i, a := range args {
		if i >= len(argRegs) {
			break
		}
		if isFloatKind(a.Kind()) {
			g.loadFloat(a, x86.REG_X0, a.Kind() == location.Double)
			continue
		}
		g.loadInt(a, argRegs[i])
	}
	addr := g.hooks.address(name)
	load := g.prog()
	load.As = x86.AMOVQ
	load.From.Type = obj.TYPE_CONST
	load.From.Offset = int64(addr)
	load.To.Type = obj.TYPE_REG
	load.To.Reg = x86.REG_R15
	g.add(load)

	call := g.prog()
	call.As = obj.ACALL
	call.To.Type = obj.TYPE_REG
	call.To.Reg = x86.REG_R15
	g.add(call)

	if resultKind == location.Void {
		return location.Location{}
	}
	r := g.reg(resultKind.StackKind())
	if isFloatKind(resultKind) {
		g.storeFloat(x86.REG_X0, r, resultKind == location.Double)
	} else {
		g.storeInt(x86.REG_AX, r)
	}
	return r
}

// branch emits an unconditional or conditional jump whose target may
// not have been assembled yet: if bci is already in labels the jump
// links straight to it, otherwise it's queued and patched in
// Finalize, the same two-pass forward-reference technique
// backend_amd64.go's own postamble-after-body structure implies but
// never needed (WASM's structured control flow never jumps forward
// past an unassembled point the way JVM's goto/if family does).
func (g *Generator) branch(as obj.As, bci int) {
	p := g.prog()
	p.As = as
	p.To.Type = obj.TYPE_BRANCH
	if target, ok := g.labels[bci]; ok {
		p.To.Val = target
	} else {
		g.queue = append(g.queue, pendingJump{prog: p, target: bci})
	}
	g.add(p)
}

func (g *Generator) Goto(targetBCI int) { g.branch(obj.AJMP, targetBCI) }

func (g *Generator) Jsr(targetBCI int) location.Location {
	return g.callStub("jsr", nil, location.Object, targetBCI)
}

func (g *Generator) Ret(addr location.Location) {
	g.callStub("ret", []location.Location{addr}, location.Void)
}

func (g *Generator) IfZero(op string, a location.Location, targetBCI int) {
	g.loadInt(a, x86.REG_AX)
	test := g.prog()
	test.As = x86.ATESTQ
	test.From.Type = obj.TYPE_REG
	test.From.Reg = x86.REG_AX
	test.To.Type = obj.TYPE_REG
	test.To.Reg = x86.REG_AX
	g.add(test)
	g.branch(condJump(op), targetBCI)
}

func (g *Generator) IfSame(op string, a, b location.Location, targetBCI int) {
	g.loadInt(b, x86.REG_R9)
	g.loadInt(a, x86.REG_AX)
	cmp := g.prog()
	cmp.As = x86.ACMPQ
	cmp.From.Type = obj.TYPE_REG
	cmp.From.Reg = x86.REG_AX
	cmp.To.Type = obj.TYPE_REG
	cmp.To.Reg = x86.REG_R9
	g.add(cmp)
	g.branch(condJump(op), targetBCI)
}

func (g *Generator) IfNull(isNull bool, a location.Location, targetBCI int) {
	g.loadInt(a, x86.REG_AX)
	test := g.prog()
	test.As = x86.ATESTQ
	test.From.Type = obj.TYPE_REG
	test.From.Reg = x86.REG_AX
	test.To.Type = obj.TYPE_REG
	test.To.Reg = x86.REG_AX
	g.add(test)
	op := "ne"
	if isNull {
		op = "eq"
	}
	g.branch(condJump(op), targetBCI)
}

func condJump(op string) obj.As {
	switch op {
	case "eq":
		return x86.AJEQ
	case "ne":
		return x86.AJNE
	case "lt":
		return x86.AJLT
	case "le":
		return x86.AJLE
	case "gt":
		return x86.AJGT
	case "ge":
		return x86.AJGE
	default:
		return x86.AJMP
	}
}

// TableSwitch and LookupSwitch are lowered as a naive CMP/JEQ chain
// against each key in turn, falling through to defaultBCI — no jump
// table, consistent with SPEC_FULL.md's "no peephole optimization, a
// literal one-call-per-operation lowering" scope for this package.
func (g *Generator) TableSwitch(key location.Location, low, high int32, targetsBCI []int, defaultBCI int) {
	keys := make([]int32, len(targetsBCI))
	for i := range targetsBCI {
		keys[i] = low + int32(i)
	}
	g.lookupChain(key, keys, targetsBCI, defaultBCI)
}

func (g *Generator) LookupSwitch(key location.Location, keys []int32, targetsBCI []int, defaultBCI int) {
	g.lookupChain(key, keys, targetsBCI, defaultBCI)
}

func (g *Generator) lookupChain(key location.Location, keys []int32, targetsBCI []int, defaultBCI int) {
	g.loadInt(key, x86.REG_AX)
	for i, k := range keys {
		cmp := g.prog()
		cmp.As = x86.ACMPL
		cmp.From.Type = obj.TYPE_REG
		cmp.From.Reg = x86.REG_AX
		cmp.To.Type = obj.TYPE_CONST
		cmp.To.Offset = int64(k)
		g.add(cmp)
		g.branch(x86.AJEQ, targetsBCI[i])
	}
	g.branch(obj.AJMP, defaultBCI)
}

// Return writes v into canonical slot 0 — reserved as the return
// cell, since the compiled blob is invoked as a Go func with no return
// value of its own (Invoke communicates entirely through the arenas,
// mirroring exec/internal/compile/native.go's stack/locals-only
// Invoke contract) — then returns to the caller.
func (g *Generator) Return(v location.Location, kind location.Kind) {
	if kind != location.Void {
		ret := location.StackSlot(0)
		if isFloatKind(kind) {
			g.loadFloat(v, x86.REG_X0, kind == location.Double)
			g.storeFloat(x86.REG_X0, ret, kind == location.Double)
		} else {
			g.loadInt(v, x86.REG_AX)
			g.storeInt(x86.REG_AX, ret)
		}
	}
	p := g.prog()
	p.As = obj.ARET
	g.add(p)
}

func (g *Generator) Throw(obj location.Location) {
	g.callStub("throw", []location.Location{obj}, location.Void)
}

func (g *Generator) ExceptionLoad() location.Location {
	return g.callStub("exceptionload", nil, location.Object)
}

func (g *Generator) Safepoint() { g.callStub("safepoint", nil, location.Void) }

func (g *Generator) Breakpoint() { g.callStub("breakpoint", nil, location.Void) }

// BytecodeStart and BlockStart record a label for branch targets and
// return a synthetic monotonic code position: since golang-asm only
// assigns real byte offsets during Assemble(), a Prog-sequence counter
// is the only position identifier available before Finalize runs.
func (g *Generator) BytecodeStart(bci int) int {
	g.markLabel(bci)
	return len(g.labels)
}

func (g *Generator) BlockStart(bci int) int {
	g.markLabel(bci)
	return len(g.labels)
}

func (g *Generator) markLabel(bci int) {
	if _, ok := g.labels[bci]; ok {
		return
	}
	marker := g.prog()
	marker.As = obj.ANOP
	g.add(marker)
	g.labels[bci] = marker
	for i := len(g.queue) - 1; i >= 0; i-- {
		pj := g.queue[i]
		if pj.target == bci {
			pj.prog.To.Val = marker
			g.queue = append(g.queue[:i], g.queue[i+1:]...)
		}
	}
}

// Instrumentation is a no-op: this Generator tracks no side channel
// for per-bci debug notes (codegen/tracing is what jvmc-dump uses for
// that instead).
func (g *Generator) Instrumentation(bci int, note string) {}

// Finalize rejects with an error any branch still waiting on a label
// that was never marked by BlockStart/BytecodeStart (the dispatcher
// calls BlockStart for every block it compiles, so this only guards
// against a target that was never compiled), then assembles the
// instruction stream and serves it from an executable arena.
func (g *Generator) Finalize(alloc *MMapAllocator) (*CodeUnit, error) {
	for _, pj := range g.queue {
		if pj.prog.To.Val == nil {
			return nil, fmt.Errorf("amd64: unresolved branch target bci %d", pj.target)
		}
	}
	code := g.builder.Assemble()
	exec, err := alloc.AllocateExec(code)
	if err != nil {
		return nil, err
	}
	return &CodeUnit{code: exec}, nil
}

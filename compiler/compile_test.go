package compiler

import (
	"testing"

	"jvmc/codegen"
	"jvmc/codegen/tracing"
	"jvmc/handler"
	"jvmc/location"
	"jvmc/opcode"
)

// fakeTarget assigns one fresh register per formal parameter, receiver
// first for non-static methods, mirroring the shape of a real calling
// convention without committing to any physical register file.
type fakeTarget struct{}

func (fakeTarget) WordSize() int { return 8 }

func (fakeTarget) CallingConvention(sig codegen.Signature, isStatic bool, f *location.Factory) []location.Location {
	var out []location.Location
	if !isStatic {
		out = append(out, f.NewRegister(location.Object))
	}
	for _, k := range sig.ParamKinds {
		out = append(out, f.NewRegister(k))
	}
	return out
}

// fakeRuntime answers every RuntimeQuery lookup with a zero value. None
// of the scenarios below exercise constant-pool or type resolution, so
// it only needs to satisfy the interface.
type fakeRuntime struct{}

func (fakeRuntime) LookupConstant(cpi int) (codegen.ConstantRef, error)   { return codegen.ConstantRef{}, nil }
func (fakeRuntime) LookupType(cpi int) (codegen.TypeRef, error)          { return "T", nil }
func (fakeRuntime) LookupGetField(cpi int) (codegen.FieldRef, error)     { return codegen.FieldRef{}, nil }
func (fakeRuntime) LookupPutField(cpi int) (codegen.FieldRef, error)     { return codegen.FieldRef{}, nil }
func (fakeRuntime) LookupGetStatic(cpi int) (codegen.FieldRef, error)    { return codegen.FieldRef{}, nil }
func (fakeRuntime) LookupPutStatic(cpi int) (codegen.FieldRef, error)    { return codegen.FieldRef{}, nil }
func (fakeRuntime) LookupInvokeVirtual(cpi int) (codegen.MethodRef, error) {
	return codegen.MethodRef{}, nil
}
func (fakeRuntime) LookupInvokeSpecial(cpi int) (codegen.MethodRef, error) {
	return codegen.MethodRef{}, nil
}
func (fakeRuntime) LookupInvokeStatic(cpi int) (codegen.MethodRef, error) {
	return codegen.MethodRef{}, nil
}
func (fakeRuntime) LookupInvokeInterface(cpi int) (codegen.MethodRef, error) {
	return codegen.MethodRef{}, nil
}
func (fakeRuntime) IsResolved(t codegen.TypeRef) bool { return true }

// asm is a tiny test-only bytecode builder: it tracks the current bci
// and lets branch operands be patched after their target is known,
// instead of hand-computing offsets.
type asm struct{ buf []byte }

func (a *asm) bci() int { return len(a.buf) }

func (a *asm) op(o opcode.Op) { a.buf = append(a.buf, byte(o)) }

func (a *asm) u8(v byte) { a.buf = append(a.buf, v) }

// branch emits a 3-byte opcode+offset instruction with a zero
// placeholder offset and returns its bci for later patching.
func (a *asm) branch(o opcode.Op) int {
	pos := a.bci()
	a.op(o)
	a.buf = append(a.buf, 0, 0)
	return pos
}

// patch sets the branch at pos to target the builder's current bci.
func (a *asm) patch(pos int) { a.patchTo(pos, a.bci()) }

func (a *asm) patchTo(pos, target int) {
	off := int16(target - pos)
	a.buf[pos+1] = byte(off >> 8)
	a.buf[pos+2] = byte(off)
}

func compile(t *testing.T, method codegen.Method) (*Artifact, *tracing.Generator) {
	t.Helper()
	gen := tracing.New()
	art, err := Compile(method, fakeRuntime{}, fakeTarget{}, gen, nil)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return art, gen
}

func callNames(gen *tracing.Generator) []string {
	out := make([]string, len(gen.Calls))
	for i, c := range gen.Calls {
		out[i] = c.Op
	}
	return out
}

func containsOp(gen *tracing.Generator, op string) bool {
	for _, c := range gen.Calls {
		if c.Op == op {
			return true
		}
	}
	return false
}

func TestCompileStraightLine(t *testing.T) {
	code := []byte{byte(opcode.Iconst0), byte(opcode.Iconst1), byte(opcode.Iadd), byte(opcode.Ireturn)}
	method := codegen.Method{
		Signature: codegen.Signature{ReturnKind: location.Int},
		IsStatic:  true,
		MaxLocals: 0,
		MaxStack:  2,
		Code:      code,
		Identity:  "StraightLine",
	}
	art, gen := compile(t, method)
	for bci := 0; bci < len(code); bci++ {
		if _, ok := art.BytecodeOffsets[bci]; !ok {
			t.Errorf("BytecodeOffsets missing entry for bci %d", bci)
		}
	}
	if !containsOp(gen, "int.add") {
		t.Errorf("expected an int.add call, got %v", callNames(gen))
	}
	if len(art.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", art.Warnings)
	}
}

// TestCompileDiamondMerge builds an if/else that both sides reconverge
// into a single return, forcing the second-arriving predecessor to
// reconcile its value against whichever Location the first arrival
// already committed to for that stack slot.
func TestCompileDiamondMerge(t *testing.T) {
	a := &asm{}
	a.op(opcode.Iload0)
	br := a.branch(opcode.Ifeq)
	a.op(opcode.Iconst1)
	gotoEnd := a.branch(opcode.Goto)
	a.patch(br)
	a.op(opcode.Iconst2)
	a.patch(gotoEnd)
	a.op(opcode.Ireturn)

	method := codegen.Method{
		Signature: codegen.Signature{ParamKinds: []location.Kind{location.Int}, ReturnKind: location.Int},
		IsStatic:  true,
		MaxLocals: 1,
		MaxStack:  2,
		Code:      a.buf,
		Identity:  "Diamond",
	}
	art, gen := compile(t, method)
	if len(art.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", art.Warnings)
	}
	if !containsOp(gen, "move") {
		t.Errorf("expected the merge to require at least one reconciliation move, got %v", callNames(gen))
	}
	if _, ok := art.BlockOffsets[0]; !ok {
		t.Error("bci 0 should be a recorded block start")
	}
}

// TestCompileBackwardBranchEmitsSafepoint exercises a trivial loop: a
// block that is its own backward-branch target must get exactly one
// Safepoint call when it is finally generated.
func TestCompileBackwardBranchEmitsSafepoint(t *testing.T) {
	a := &asm{}
	loopHead := a.bci()
	a.op(opcode.Iinc)
	a.u8(0)
	a.u8(1)
	back := a.branch(opcode.Goto)
	a.patchTo(back, loopHead)

	method := codegen.Method{
		Signature: codegen.Signature{},
		IsStatic:  true,
		MaxLocals: 1,
		MaxStack:  1,
		Code:      a.buf,
		Identity:  "Loop",
	}
	_, gen := compile(t, method)
	count := 0
	for _, c := range gen.Calls {
		if c.Op == "safepoint" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 safepoint call, got %d: %v", count, callNames(gen))
	}
}

// TestCompileTableswitchVisitsEveryTarget checks that a tableswitch
// with two case targets plus a distinct default produces a single
// tableswitch call and compiles every distinct target block. Switch
// offsets are relative to the tableswitch opcode at bci 1.
func TestCompileTableswitchVisitsEveryTarget(t *testing.T) {
	code := make([]byte, 32)
	code[0] = byte(opcode.Iload0)
	code[1] = byte(opcode.Tableswitch)
	pc := 4 // bci 2, padded to 4-byte alignment from bci 2 -> next multiple of 4 is 4
	putInt32 := func(at int, v int32) {
		code[at] = byte(v >> 24)
		code[at+1] = byte(v >> 16)
		code[at+2] = byte(v >> 8)
		code[at+3] = byte(v)
	}
	putInt32(pc, 27)    // default -> bci 28
	putInt32(pc+4, 0)   // low
	putInt32(pc+8, 1)   // high
	putInt32(pc+12, 23) // target for key 0 -> bci 24
	putInt32(pc+16, 25) // target for key 1 -> bci 26
	code[24] = byte(opcode.Iconst0)
	code[25] = byte(opcode.Ireturn)
	code[26] = byte(opcode.Iconst1)
	code[27] = byte(opcode.Ireturn)
	code[28] = byte(opcode.Iconst2)
	code[29] = byte(opcode.Ireturn)

	method := codegen.Method{
		Signature: codegen.Signature{ParamKinds: []location.Kind{location.Int}, ReturnKind: location.Int},
		IsStatic:  true,
		MaxLocals: 1,
		MaxStack:  1,
		Code:      code,
		Identity:  "Switch",
	}
	art, gen := compile(t, method)
	if !containsOp(gen, "tableswitch") {
		t.Fatalf("expected a tableswitch call, got %v", callNames(gen))
	}
	for _, bci := range []int{24, 26, 28} {
		if _, ok := art.BlockOffsets[bci]; !ok {
			t.Errorf("target bci %d should have been compiled as a block", bci)
		}
	}
}

// TestCompileExceptionHandlerMaterializesAdapter covers a try range
// whose one trapping instruction has a handler: the adapter queued at
// the trap site must, after mainline dispatch, reconcile against the
// handler's canonically seeded entryState and jump to it.
func TestCompileExceptionHandlerMaterializesAdapter(t *testing.T) {
	a := &asm{}
	a.op(opcode.Iconst1)
	a.op(opcode.Iconst0)
	trapBCI := a.bci()
	a.op(opcode.Idiv) // CanTrap
	a.op(opcode.Ireturn)
	handlerBCI := a.bci()
	a.op(opcode.Astore1)
	a.op(opcode.Iconst0)
	a.op(opcode.Ireturn)

	method := codegen.Method{
		Signature: codegen.Signature{ReturnKind: location.Int},
		IsStatic:  true,
		MaxLocals: 2,
		MaxStack:  2,
		Code:      a.buf,
		Handlers: []handler.Entry{
			{StartBCI: 0, EndBCI: trapBCI + 1, HandlerBCI: handlerBCI, CatchType: nil},
		},
		Identity: "Handler",
	}
	art, gen := compile(t, method)
	if len(art.Warnings) != 0 {
		t.Fatalf("unexpected adapter warnings: %v", art.Warnings)
	}
	if _, ok := art.BlockOffsets[handlerBCI]; !ok {
		t.Fatal("the handler block should have been compiled")
	}
	if !containsOp(gen, "instrumentation") {
		t.Errorf("expected adapter materialization to instrument the trap site, got %v", callNames(gen))
	}
	if !containsOp(gen, "goto") {
		t.Errorf("expected adapter materialization to emit a goto into the handler, got %v", callNames(gen))
	}
}

// TestCompileExceptionHandlerReconcilesAgainstSeededCanonicalLocals
// covers a local that is live across a trapping instruction, whose
// handler body itself re-stores into that same local (astore_0 off
// the exception register). The adapter must reconcile the trap-site
// snapshot against local 0's canonical stack-slot home as it stood
// when SeedCanonicalLocals ran, not against whatever the handler
// body's own astore_0 later left in that slot.
func TestCompileExceptionHandlerReconcilesAgainstSeededCanonicalLocals(t *testing.T) {
	a := &asm{}
	a.op(opcode.Iconst5)
	a.op(opcode.Istore0) // local 0 is live across the trap
	trapBCI := a.bci()
	a.op(opcode.Iconst1)
	a.op(opcode.Iconst0)
	a.op(opcode.Idiv) // CanTrap
	a.op(opcode.Ireturn)
	handlerBCI := a.bci()
	a.op(opcode.Astore0) // handler body overwrites local 0 with the exception register
	a.op(opcode.Iconst0)
	a.op(opcode.Ireturn)

	method := codegen.Method{
		Signature: codegen.Signature{ReturnKind: location.Int},
		IsStatic:  true,
		MaxLocals: 1,
		MaxStack:  2,
		Code:      a.buf,
		Handlers: []handler.Entry{
			{StartBCI: 0, EndBCI: trapBCI + 3, HandlerBCI: handlerBCI, CatchType: nil},
		},
		Identity: "HandlerReconcile",
	}
	art, gen := compile(t, method)
	if len(art.Warnings) != 0 {
		t.Fatalf("unexpected adapter warnings: %v", art.Warnings)
	}

	var sawSpillToCanonicalSlot0 bool
	for _, c := range gen.Calls {
		if c.Op == "move" && len(c.Args) == 2 && c.Args[1] == "S0" {
			sawSpillToCanonicalSlot0 = true
		}
	}
	if !sawSpillToCanonicalSlot0 {
		t.Fatalf("expected the adapter to reconcile local 0 against its canonical slot S0, got moves: %v", callNames(gen))
	}
}

func TestCompileEmptyMethodProducesEmptyArtifact(t *testing.T) {
	method := codegen.Method{
		Signature: codegen.Signature{ReturnKind: location.Void},
		IsStatic:  true,
		Code:      nil,
		Identity:  "Empty",
	}
	art, _ := compile(t, method)
	if len(art.BytecodeOffsets) != 0 || len(art.BlockOffsets) != 0 {
		t.Fatalf("expected no offsets for an empty method, got %+v", art)
	}
}

package tracing

import (
	"testing"

	"jvmc/codegen"
	"jvmc/location"
)

func TestConstantAllocatesFreshRegisterAndRecordsCall(t *testing.T) {
	g := New()
	a := g.Constant(location.Int, int32(3))
	b := g.Constant(location.Int, int32(4))

	if !a.IsRegister() || !b.IsRegister() {
		t.Fatalf("Constant should return registers, got %v and %v", a, b)
	}
	if a.RegisterID() == b.RegisterID() {
		t.Fatalf("successive Constant calls should allocate distinct registers, both got %d", a.RegisterID())
	}
	if len(g.Calls) != 2 {
		t.Fatalf("expected 2 recorded calls, got %d", len(g.Calls))
	}
	if g.Calls[0].Op != "const" || g.Calls[1].Op != "const" {
		t.Fatalf("expected two %q calls, got %v", "const", g.Calls)
	}
}

func TestIntOp2RecordsDottedOpName(t *testing.T) {
	g := New()
	a := g.Constant(location.Int, int32(1))
	b := g.Constant(location.Int, int32(2))
	sum := g.IntOp2("add", a, b)

	if sum.Kind() != location.Int {
		t.Fatalf("IntOp2 result kind = %v, want int", sum.Kind())
	}
	last := g.Calls[len(g.Calls)-1]
	if last.Op != "int.add" {
		t.Fatalf("Op = %q, want %q", last.Op, "int.add")
	}
	if last.Result != sum.String() {
		t.Fatalf("Result = %q, want %q", last.Result, sum.String())
	}
}

func TestVoidCallsRecordNoResult(t *testing.T) {
	g := New()
	obj := g.New("java/lang/Object")
	g.MonitorEnter(obj)

	last := g.Calls[len(g.Calls)-1]
	if last.Op != "monitorenter" {
		t.Fatalf("Op = %q, want %q", last.Op, "monitorenter")
	}
	if last.Result != "" {
		t.Fatalf("a void call should record an empty Result, got %q", last.Result)
	}
}

func TestBytecodeStartAndBlockStartAreNoOpPositions(t *testing.T) {
	g := New()
	if pos := g.BytecodeStart(42); pos != 0 {
		t.Fatalf("BytecodeStart returned %d, want 0 (documented no-op contract)", pos)
	}
	if pos := g.BlockStart(7); pos != 0 {
		t.Fatalf("BlockStart returned %d, want 0 (documented no-op contract)", pos)
	}
	if len(g.Calls) != 2 {
		t.Fatalf("expected BytecodeStart/BlockStart to still be recorded, got %d calls", len(g.Calls))
	}
}

func TestCallStringFormatting(t *testing.T) {
	withResult := Call{Op: "int.add", Args: []string{"R0:int", "R1:int"}, Result: "R2:int"}
	if got, want := withResult.String(), "R2:int = int.add(R0:int, R1:int)"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}

	voidCall := Call{Op: "monitorenter", Args: []string{"R0:object"}}
	if got, want := voidCall.String(), "monitorenter(R0:object)"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

func TestInvokeStaticRecordsMethodRefAndArgsInOrder(t *testing.T) {
	g := New()
	arg := g.Constant(location.Int, int32(5))
	ref := codegen.MethodRef{Signature: codegen.Signature{ReturnKind: location.Int}}
	result := g.InvokeStatic(ref, []location.Location{arg})

	if result.Kind() != location.Int {
		t.Fatalf("InvokeStatic result kind = %v, want int", result.Kind())
	}
	last := g.Calls[len(g.Calls)-1]
	if last.Op != "invokestatic" {
		t.Fatalf("Op = %q, want %q", last.Op, "invokestatic")
	}
	if len(last.Args) != 2 {
		t.Fatalf("expected the MethodRef plus 1 argument recorded, got %v", last.Args)
	}
}

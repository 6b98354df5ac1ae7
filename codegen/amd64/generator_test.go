package amd64

import (
	"testing"

	"jvmc/codegen"
	"jvmc/location"
)

func testHooks() Hooks {
	return Hooks{
		GetField:      0x1000,
		InvokeStatic:  0x2000,
		ArrayLoad:     0x3000,
		New:           0x4000,
		Convert:       0x5000,
		ExceptionLoad: 0x6000,
	}
}

func TestHooksAddressLookup(t *testing.T) {
	h := testHooks()
	cases := map[string]uintptr{
		"getfield":      0x1000,
		"invokestatic":  0x2000,
		"arrayload":     0x3000,
		"new":           0x4000,
		"convert":       0x5000,
		"exceptionload": 0x6000,
		"nonsense":      0,
	}
	for name, want := range cases {
		if got := h.address(name); got != want {
			t.Errorf("address(%q) = %#x, want %#x", name, got, want)
		}
	}
}

func newGenerator(t *testing.T) *Generator {
	t.Helper()
	g, err := New(testHooks())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return g
}

func finalize(t *testing.T, g *Generator) *CodeUnit {
	t.Helper()
	alloc := &MMapAllocator{}
	defer alloc.Close()
	unit, err := g.Finalize(alloc)
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if unit == nil {
		t.Fatal("Finalize() returned a nil CodeUnit with no error")
	}
	return unit
}

// TestGeneratorStraightLineArithmetic exercises the direct-lowering
// path (int/long constants, int/long/float/double arithmetic, shift,
// negation, return); its float/double constants go through the
// call-out stub.
func TestGeneratorStraightLineArithmetic(t *testing.T) {
	g := newGenerator(t)
	g.BlockStart(0)
	a := g.Constant(location.Int, int32(3))
	b := g.Constant(location.Int, int32(4))
	sum := g.IntOp2("add", a, b)
	neg := g.Neg(location.Int, sum)
	la := g.Constant(location.Long, int64(10))
	lb := g.Constant(location.Long, int64(3))
	_ = g.LongOp2("rem", la, lb)
	fa := g.Constant(location.Float, int32(0))
	fb := g.Constant(location.Float, int32(0))
	_ = g.FloatOp2("add", fa, fb)
	da := g.Constant(location.Double, int64(0))
	db := g.Constant(location.Double, int64(0))
	_ = g.DoubleOp2("mul", da, db)
	one := g.Constant(location.Int, int32(1))
	_ = g.Shift("shl", sum, one, false)
	g.Return(neg, location.Int)

	unit := finalize(t, g)
	if len(unit.code) == 0 {
		t.Fatal("expected a non-empty assembled code unit")
	}
}

// TestGeneratorForwardBranchResolves checks that a Goto issued before
// its target's BlockStart is patched once the target is finally
// marked, instead of leaking as an unresolved branch.
func TestGeneratorForwardBranchResolves(t *testing.T) {
	g := newGenerator(t)
	g.BlockStart(0)
	zero := g.Constant(location.Int, int32(0))
	g.IfZero("eq", zero, 10)
	g.Goto(10)
	g.BlockStart(10)
	g.Return(zero, location.Int)

	finalize(t, g)
}

// TestGeneratorUnresolvedBranchFails checks that Finalize refuses to
// assemble a method whose branch target was never marked with
// BlockStart/BytecodeStart.
func TestGeneratorUnresolvedBranchFails(t *testing.T) {
	g := newGenerator(t)
	g.BlockStart(0)
	g.Goto(999)

	alloc := &MMapAllocator{}
	defer alloc.Close()
	if _, err := g.Finalize(alloc); err == nil {
		t.Fatal("expected Finalize to reject an unresolved branch target")
	}
}

// TestGeneratorCallStubRoutesObjectModelOps exercises the runtime
// call-out lowering used for everything the direct path doesn't
// cover: field access, allocation, array load, and invokes.
func TestGeneratorCallStubRoutesObjectModelOps(t *testing.T) {
	g := newGenerator(t)
	g.BlockStart(0)
	obj := g.New("java/lang/Object")
	f := g.GetField(codegen.FieldRef{Kind: location.Int}, obj)
	g.PutField(codegen.FieldRef{Kind: location.Int}, obj, f)
	arr := g.NewArray(location.Int, g.Constant(location.Int, int32(4)))
	idx := g.Constant(location.Int, int32(0))
	_ = g.ArrayLoad(location.Int, arr, idx)
	ret := g.InvokeStatic(codegen.MethodRef{Signature: codegen.Signature{ReturnKind: location.Int}}, nil)
	g.Return(ret, location.Int)

	finalize(t, g)
}

// TestGeneratorMultipleBlockStartsAreIdempotent checks that marking
// the same bci twice (the dispatcher does this for every block it
// compiles: BlockStart, then BytecodeStart for the block's first
// instruction) doesn't re-emit a second label or disturb
// already-patched branches.
func TestGeneratorMultipleBlockStartsAreIdempotent(t *testing.T) {
	g := newGenerator(t)
	g.BlockStart(0)
	g.Goto(5)
	g.BlockStart(5)
	g.BlockStart(5)
	zero := g.Constant(location.Int, int32(0))
	g.Return(zero, location.Int)

	finalize(t, g)
}

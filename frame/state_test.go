package frame

import (
	"testing"

	"jvmc/location"
)

func newTestState(maxLocals, maxStack int) (*State, *location.Factory) {
	f := location.NewFactory()
	return NewState(maxLocals, maxStack, f), f
}

func TestPushPop1(t *testing.T) {
	s, f := newTestState(2, 4)
	r := f.NewRegister(location.Int)
	s.Push1(r)
	if s.StackIndex != 3 {
		t.Fatalf("StackIndex = %d, want 3", s.StackIndex)
	}
	got, err := s.Pop1()
	if err != nil {
		t.Fatal(err)
	}
	if got != r {
		t.Fatalf("Pop1() = %v, want %v", got, r)
	}
	if s.StackIndex != 2 {
		t.Fatalf("StackIndex after pop = %d, want 2", s.StackIndex)
	}
}

func TestPush2ClearsSentinel(t *testing.T) {
	s, f := newTestState(2, 4)
	r := f.NewRegister(location.Long)
	s.Push2(r)
	if s.StackIndex != 4 {
		t.Fatalf("StackIndex = %d, want 4", s.StackIndex)
	}
	if !s.Get(3).IsZero() {
		t.Fatal("the slot above a pushed double-word value should be the null sentinel")
	}
	got, err := s.Pop2()
	if err != nil {
		t.Fatal(err)
	}
	if got != r {
		t.Fatalf("Pop2() = %v, want %v", got, r)
	}
}

func TestPopUnderflow(t *testing.T) {
	s, _ := newTestState(0, 2)
	if _, err := s.Pop1(); err != ErrStackUnderflow {
		t.Fatalf("Pop1() on empty stack = %v, want ErrStackUnderflow", err)
	}
}

func TestStore2ClearsCompanionSlot(t *testing.T) {
	s, f := newTestState(4, 4)
	r := f.NewRegister(location.Double)
	s.Push2(r)
	if err := s.Store2(0); err != nil {
		t.Fatal(err)
	}
	if s.Get(0) != r {
		t.Fatalf("Get(0) = %v, want %v", s.Get(0), r)
	}
	if !s.Get(1).IsZero() {
		t.Fatal("Store2 must clear the companion slot above the stored value")
	}
}

func TestLoad1AndLoad2(t *testing.T) {
	s, f := newTestState(4, 4)
	r := f.NewRegister(location.Int)
	s.Set(0, r)
	s.Load1(0)
	v, err := s.Pop1()
	if err != nil || v != r {
		t.Fatalf("Load1/Pop1 round trip = %v, %v, want %v", v, err, r)
	}

	lr := f.NewRegister(location.Long)
	s.Set(1, lr)
	s.Load2(1)
	if s.StackIndex != 6 {
		t.Fatalf("StackIndex after Load2 = %d, want 6", s.StackIndex)
	}
}

func TestResetForHandlerEntry(t *testing.T) {
	s, f := newTestState(2, 4)
	s.Push1(f.NewRegister(location.Int))
	s.Push1(f.NewRegister(location.Int))
	exc := f.NewRegister(location.Object)
	s.ResetForHandlerEntry(exc)
	if s.StackIndex != 3 {
		t.Fatalf("StackIndex after reset = %d, want maxLocals+1 (3)", s.StackIndex)
	}
	if s.Get(2) != exc {
		t.Fatalf("Get(2) = %v, want the exception register %v", s.Get(2), exc)
	}
}

func TestPopNReturnsBottomFirst(t *testing.T) {
	s, f := newTestState(0, 4)
	a := f.NewRegister(location.Int)
	b := f.NewRegister(location.Int)
	s.Push1(a)
	s.Push1(b)
	got, err := s.PopN(2)
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != a || got[1] != b {
		t.Fatalf("PopN(2) = %v, want [%v %v]", got, a, b)
	}
}

func TestSpillLocalsEmitsMovesOnce(t *testing.T) {
	s, f := newTestState(2, 2)
	r0 := f.NewRegister(location.Int)
	r1 := f.NewRegister(location.Int)
	s.Set(0, r0)
	s.Set(1, r1)

	var moves [][2]location.Location
	move := func(from, to location.Location) { moves = append(moves, [2]location.Location{from, to}) }

	s.SpillLocals(move, true)
	if len(moves) != 2 {
		t.Fatalf("expected 2 spill moves, got %d: %v", len(moves), moves)
	}

	moves = nil
	s.SpillLocals(move, true)
	if len(moves) != 0 {
		t.Fatalf("already-spilled locals should not be spilled again, got %v", moves)
	}
}

func TestReconcileSpillsOnlyWhatDiffers(t *testing.T) {
	f := location.NewFactory()
	target := NewState(2, 2, f)
	targetR := f.NewRegister(location.Int)
	target.Set(0, targetR)
	var targetMoves [][2]location.Location
	target.SpillLocals(func(from, to location.Location) {
		targetMoves = append(targetMoves, [2]location.Location{from, to})
	}, true)

	s := NewState(2, 2, f)
	sameR := f.NewRegister(location.Int)
	s.Set(0, sameR)

	var moves [][2]location.Location
	move := func(from, to location.Location) { moves = append(moves, [2]location.Location{from, to}) }
	s.Reconcile(move, target)

	if len(moves) != 1 {
		t.Fatalf("expected exactly one reconciliation move (slot 0 differs), got %d: %v", len(moves), moves)
	}
	if moves[0][1] != f.Slot(0) {
		t.Fatalf("reconciliation should spill into target's canonical home, got %v", moves[0][1])
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s, f := newTestState(2, 2)
	s.Set(0, f.NewRegister(location.Int))
	c := s.Clone()
	c.Set(0, f.NewRegister(location.Int))
	if s.Get(0) == c.Get(0) {
		t.Fatal("mutating a clone should not affect the original")
	}
}

func TestSeedCanonicalLocals(t *testing.T) {
	f := location.NewFactory()
	s := NewState(3, 2, f)
	s.SeedCanonicalLocals()
	for i := 0; i < 3; i++ {
		if s.Get(i) != f.Slot(i) {
			t.Errorf("local %d = %v, want canonical slot %v", i, s.Get(i), f.Slot(i))
		}
	}
}

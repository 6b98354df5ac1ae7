package location

import "testing"

func TestKindSlotsAndStackKind(t *testing.T) {
	cases := []struct {
		k         Kind
		slots     int
		stackKind Kind
	}{
		{Boolean, 1, Int},
		{Byte, 1, Int},
		{Char, 1, Int},
		{Short, 1, Int},
		{Int, 1, Int},
		{Long, 2, Long},
		{Float, 1, Float},
		{Double, 2, Double},
		{Object, 1, Object},
		{Void, 1, Void},
	}
	for _, c := range cases {
		if got := c.k.Slots(); got != c.slots {
			t.Errorf("%s.Slots() = %d, want %d", c.k, got, c.slots)
		}
		if got := c.k.StackKind(); got != c.stackKind {
			t.Errorf("%s.StackKind() = %s, want %s", c.k, got, c.stackKind)
		}
	}
}

func TestRegisterAndStackSlot(t *testing.T) {
	r := Register(3, Long)
	if !r.IsRegister() || r.IsStackSlot() {
		t.Fatalf("Register tag wrong: %#v", r)
	}
	if r.RegisterID() != 3 || r.Kind() != Long {
		t.Fatalf("Register fields wrong: %#v", r)
	}

	s := StackSlot(7)
	if !s.IsStackSlot() || s.IsRegister() {
		t.Fatalf("StackSlot tag wrong: %#v", s)
	}
	if s.SlotIndex() != 7 {
		t.Fatalf("SlotIndex() = %d, want 7", s.SlotIndex())
	}

	if !(Location{}).IsZero() {
		t.Fatal("zero Location should be IsZero")
	}
	if r.IsZero() {
		t.Fatal("constructed register should not be IsZero")
	}
}

// TestZeroLocationDoesNotCollideWithFirstBooleanRegister guards the tag
// enum's ordering: Boolean is Kind's zero value and Factory.next starts
// at 0, so the very first register a Factory hands out for a Boolean
// value must still compare unequal to the zero Location, or every
// "is this slot undefined" check in frame.State would misfire on it.
func TestZeroLocationDoesNotCollideWithFirstBooleanRegister(t *testing.T) {
	f := NewFactory()
	r := f.NewRegister(Boolean)
	if r.RegisterID() != 0 {
		t.Fatalf("expected the first allocated register to have id 0, got %d", r.RegisterID())
	}
	if r.IsZero() {
		t.Fatal("Register(0, Boolean) must not be IsZero: it collides with the null sentinel otherwise")
	}
	if r == (Location{}) {
		t.Fatal("Register(0, Boolean) must not equal the zero Location")
	}
}

func TestFactory(t *testing.T) {
	f := NewFactory()
	r0 := f.NewRegister(Int)
	r1 := f.NewRegister(Long)
	if r0.RegisterID() == r1.RegisterID() {
		t.Fatal("NewRegister should hand out distinct ids")
	}
	if f.RegisterCount() != 2 {
		t.Fatalf("RegisterCount() = %d, want 2", f.RegisterCount())
	}

	s1 := f.Slot(4)
	s2 := f.Slot(4)
	if s1 != s2 {
		t.Fatal("Slot(4) should return the same Location on repeated calls")
	}
	s3 := f.Slot(5)
	if s1 == s3 {
		t.Fatal("Slot(4) and Slot(5) should differ")
	}
}

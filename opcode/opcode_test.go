package opcode

import "testing"

func TestNameKnownAndUnknown(t *testing.T) {
	if got := Name(Iadd); got != "iadd" {
		t.Errorf("Name(Iadd) = %q, want %q", got, "iadd")
	}
	if got := Name(Op(0xfe)); got != "<unknown opcode>" {
		t.Errorf("Name(unknown) = %q, want placeholder", got)
	}
}

func TestCanTrap(t *testing.T) {
	if !CanTrap(Getfield) {
		t.Error("getfield should be able to trap (NullPointerException)")
	}
	if CanTrap(Iadd) {
		t.Error("iadd should not be marked as trapping")
	}
	if !CanTrap(Idiv) {
		t.Error("idiv should be able to trap (ArithmeticException)")
	}
}

func TestEndsBlock(t *testing.T) {
	for _, op := range []Op{Goto, GotoW, Ireturn, Return, Athrow, Tableswitch, Lookupswitch, Ret, Jsr, JsrW} {
		if !EndsBlock(op) {
			t.Errorf("%s should end its block", Name(op))
		}
	}
	for _, op := range []Op{Nop, Iadd, Iload0, Dup, Getfield} {
		if EndsBlock(op) {
			t.Errorf("%s should not end its block", Name(op))
		}
	}
}

func TestTableCoversEveryDeclaredConstant(t *testing.T) {
	for op, d := range Table {
		if d.Name == "" {
			t.Errorf("opcode 0x%02x has no name in its descriptor", byte(op))
		}
	}
}

package bytecode

import (
	"testing"

	"jvmc/opcode"
)

func TestBasicCursor(t *testing.T) {
	code := []byte{byte(opcode.Iconst0), byte(opcode.Bipush), 0x2a, byte(opcode.Return)}
	s := NewStream(code)

	op, err := s.OpCode()
	if err != nil || op != opcode.Iconst0 {
		t.Fatalf("OpCode() = %v, %v; want Iconst0", op, err)
	}
	s.SetBCI(1)
	op, err = s.OpCode()
	if err != nil || op != opcode.Bipush {
		t.Fatalf("OpCode() at bci 1 = %v, %v; want Bipush", op, err)
	}
	v, err := s.ReadByte(2)
	if err != nil || v != 0x2a {
		t.Fatalf("ReadByte(2) = %v, %v; want 0x2a", v, err)
	}
}

func TestReadShortBigEndian(t *testing.T) {
	s := NewStream([]byte{0x01, 0x02})
	v, err := s.ReadShort(0)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x0102 {
		t.Fatalf("ReadShort = %#x, want 0x0102", v)
	}
}

func TestReadLocalIndexWide(t *testing.T) {
	s := NewStream([]byte{0x00, 0x00, 0x01, 0x00})
	s.MarkWide()
	idx, err := s.ReadLocalIndex(2)
	if err != nil {
		t.Fatal(err)
	}
	if idx != 0x0100 {
		t.Fatalf("wide ReadLocalIndex = %#x, want 0x0100", idx)
	}
	if s.LocalIndexWidth() != 2 {
		t.Fatalf("LocalIndexWidth() = %d, want 2 while wide", s.LocalIndexWidth())
	}
}

func TestSetBCIClearsWide(t *testing.T) {
	s := NewStream([]byte{0, 0, 0, 0})
	s.MarkWide()
	s.SetBCI(1)
	if s.IsWide() {
		t.Fatal("SetBCI should clear the wide flag")
	}
}

func TestNextPreservesWide(t *testing.T) {
	s := NewStream([]byte{0, 0, 0, 0})
	s.MarkWide()
	s.Next()
	if !s.IsWide() {
		t.Fatal("Next should not clear the wide flag (needed to decode the widened instruction after a wide prefix)")
	}
}

func TestReadBranchDest(t *testing.T) {
	// offset -2 relative to srcBCI 10 -> target 8.
	s := NewStream([]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xff, 0xfe})
	target, err := s.ReadBranchDest(10, 10)
	if err != nil {
		t.Fatal(err)
	}
	if target != 8 {
		t.Fatalf("ReadBranchDest = %d, want 8", target)
	}
}

func TestReadTableSwitchPadding(t *testing.T) {
	// tableswitch at bci 0: operands start at srcBCI+1=1 -> pad to 4.
	code := make([]byte, 32)
	code[0] = byte(opcode.Tableswitch)
	pc := 4
	putInt32 := func(at int, v int32) {
		code[at] = byte(v >> 24)
		code[at+1] = byte(v >> 16)
		code[at+2] = byte(v >> 8)
		code[at+3] = byte(v)
	}
	putInt32(pc, 20)   // default offset -> absolute target 20
	putInt32(pc+4, 0)  // low
	putInt32(pc+8, 1)  // high
	putInt32(pc+12, 10) // target for key 0
	putInt32(pc+16, 15) // target for key 1

	s := NewStream(code)
	ts, err := s.ReadTableSwitch(0)
	if err != nil {
		t.Fatal(err)
	}
	if ts.Default != 20 || ts.Low != 0 || ts.High != 1 {
		t.Fatalf("unexpected tableswitch header: %+v", ts)
	}
	if len(ts.Targets) != 2 || ts.Targets[0] != 10 || ts.Targets[1] != 15 {
		t.Fatalf("unexpected tableswitch targets: %+v", ts.Targets)
	}
	if ts.End != pc+20 {
		t.Fatalf("End = %d, want %d", ts.End, pc+20)
	}
}

func TestReadLookupSwitch(t *testing.T) {
	code := make([]byte, 32)
	code[0] = byte(opcode.Lookupswitch)
	pc := 4
	putInt32 := func(at int, v int32) {
		code[at] = byte(v >> 24)
		code[at+1] = byte(v >> 16)
		code[at+2] = byte(v >> 8)
		code[at+3] = byte(v)
	}
	putInt32(pc, 9)    // default
	putInt32(pc+4, 2)  // npairs
	putInt32(pc+8, 5)  // key 0
	putInt32(pc+12, 11) // target 0
	putInt32(pc+16, 7) // key 1
	putInt32(pc+20, 13) // target 1

	s := NewStream(code)
	ls, err := s.ReadLookupSwitch(0)
	if err != nil {
		t.Fatal(err)
	}
	if ls.Default != 9 || len(ls.Keys) != 2 {
		t.Fatalf("unexpected lookupswitch header: %+v", ls)
	}
	if ls.Keys[0] != 5 || ls.Targets[0] != 11 || ls.Keys[1] != 7 || ls.Targets[1] != 13 {
		t.Fatalf("unexpected lookupswitch pairs: %+v", ls)
	}
}

func TestTruncatedOperand(t *testing.T) {
	s := NewStream([]byte{byte(opcode.Sipush)})
	if _, err := s.ReadShort(1); err != ErrTruncated {
		t.Fatalf("ReadShort past end = %v, want ErrTruncated", err)
	}
}

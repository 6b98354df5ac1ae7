package blockmap

import (
	"testing"

	"jvmc/handler"
	"jvmc/opcode"
)

func put16(b []byte, at int, v int16) {
	b[at] = byte(v >> 8)
	b[at+1] = byte(v)
}

func TestStraightLineHasOneBlock(t *testing.T) {
	code := []byte{byte(opcode.Iconst0), byte(opcode.Iconst1), byte(opcode.Iadd), byte(opcode.Ireturn)}
	bm, err := Mark(code, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bm.IsBlockStart(0) {
		t.Fatal("bci 0 must always be a block start")
	}
	for bci := 1; bci < len(code); bci++ {
		if bm.IsBlockStart(bci) {
			t.Errorf("unexpected block start at bci %d in straight-line code", bci)
		}
	}
}

func TestForwardBranchSplitsBlocks(t *testing.T) {
	// 0: ifeq -> 6 (forward)
	// 3: iconst_0
	// 4: ireturn
	// 6: iconst_1 (exists because length padding)
	code := make([]byte, 8)
	code[0] = byte(opcode.Ifeq)
	put16(code, 1, 6)
	code[3] = byte(opcode.Iconst0)
	code[4] = byte(opcode.Ireturn)
	code[5] = byte(opcode.Nop)
	code[6] = byte(opcode.Iconst1)
	code[7] = byte(opcode.Ireturn)

	bm, err := Mark(code, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bm.IsBlockStart(0) {
		t.Error("bci 0 must be a block start")
	}
	if !bm.IsBlockStart(3) {
		t.Error("the instruction after an if<cond> must start a new block (fallthrough target)")
	}
	if !bm.IsBlockStart(6) {
		t.Error("the branch target must start a new block")
	}
	if bm.IsBackwardBranchTarget(6) {
		t.Error("a forward branch target is not a backward-branch target")
	}
}

func TestBackwardBranchIsMarked(t *testing.T) {
	// 0: nop          (loop head, backward target)
	// 1: goto 0
	code := []byte{byte(opcode.Nop), byte(opcode.Goto), 0xff, 0xff}
	bm, err := Mark(code, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bm.IsBackwardBranchTarget(0) {
		t.Error("bci 0 should be flagged as a backward-branch target")
	}
}

func TestExceptionEntryIsMarked(t *testing.T) {
	code := []byte{byte(opcode.Nop), byte(opcode.Nop), byte(opcode.Return), byte(opcode.Astore0), byte(opcode.Return)}
	handlers := []handler.Entry{{StartBCI: 0, EndBCI: 3, HandlerBCI: 3}}
	bm, err := Mark(code, handlers)
	if err != nil {
		t.Fatal(err)
	}
	if !bm.IsExceptionEntry(3) {
		t.Error("handler entry bci should be flagged as an exception entry")
	}
	if !bm.IsBlockStart(3) {
		t.Error("handler entry bci should also be a block start")
	}
}

func TestWidePrefixedIincAdvancesCorrectly(t *testing.T) {
	// wide iinc #256, +1 (6 bytes: wide, iinc, idx_hi, idx_lo, const_hi, const_lo), then return.
	code := []byte{byte(opcode.Wide), byte(opcode.Iinc), 0x01, 0x00, 0x00, 0x01, byte(opcode.Return)}
	bm, err := Mark(code, nil)
	if err != nil {
		t.Fatal(err)
	}
	if bm.Size() != len(code) {
		t.Fatalf("Size() = %d, want %d", bm.Size(), len(code))
	}
	if bm.IsBlockStart(6) {
		t.Error("return at bci 6 is not itself a block start unless something branches to it")
	}
}

func TestOutOfRangeBranchIsError(t *testing.T) {
	code := []byte{byte(opcode.Goto), 0x7f, 0xff}
	if _, err := Mark(code, nil); err == nil {
		t.Fatal("expected an error for a branch target outside the code array")
	}
}

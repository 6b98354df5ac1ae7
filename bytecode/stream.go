// Package bytecode provides a random-access cursor over a JVM method's
// code array, with opcode-aware operand decoding (spec.md §4.1). Operand
// decoding is purely syntactic: it never touches frame state or the code
// generator.
package bytecode

import (
	"errors"
	"fmt"

	"jvmc/opcode"
)

// ErrTruncated is returned when an operand read runs past EndBCI.
var ErrTruncated = errors.New("bytecode: truncated instruction")

// Stream is a cursor over a single method's bytecode array.
type Stream struct {
	code []byte
	bci  int // bci of the instruction currently positioned at
	wide bool
}

// NewStream returns a Stream positioned at bci 0 of code.
func NewStream(code []byte) *Stream {
	return &Stream{code: code}
}

// SetBCI repositions the stream at the given bytecode index.
func (s *Stream) SetBCI(bci int) { s.bci = bci; s.wide = false }

// BCI returns the bci of the instruction the stream is currently
// positioned at.
func (s *Stream) BCI() int { return s.bci }

// EndBCI returns one past the last bytecode in the method.
func (s *Stream) EndBCI() int { return len(s.code) }

// Code exposes the raw code array for random-access helpers
// (ReadUByte, table/lookup-switch decoding) that need absolute offsets
// outside the cursor's current position.
func (s *Stream) Code() []byte { return s.code }

// OpCode returns the opcode byte at the stream's current position.
func (s *Stream) OpCode() (opcode.Op, error) {
	if s.bci >= len(s.code) {
		return 0, fmt.Errorf("bytecode: bci %d out of range (end %d)", s.bci, len(s.code))
	}
	return opcode.Op(s.code[s.bci]), nil
}

// Next advances the cursor past the current opcode byte, leaving it
// positioned at the first operand byte (if any). Wide-prefix handling:
// Next does not clear the wide flag; callers call ConsumeWide after the
// wide-prefixed instruction has been fully decoded.
func (s *Stream) Next() { s.bci++ }

// NextBCI returns the bci immediately following the current opcode
// byte, i.e. where the first operand (if any) begins.
func (s *Stream) NextBCI() int { return s.bci + 1 }

// MarkWide records that the instruction at the stream's current
// position is prefixed by a `wide` opcode, widening the following
// local-variable index (and, for iinc, the increment immediate) to
// two bytes.
func (s *Stream) MarkWide() { s.wide = true }

// ConsumeWide clears the wide flag after a wide-prefixed instruction
// has been fully decoded.
func (s *Stream) ConsumeWide() { s.wide = false }

// IsWide reports whether the instruction at the stream's current
// position is wide-prefixed.
func (s *Stream) IsWide() bool { return s.wide }

func (s *Stream) need(at, n int) error {
	if at < 0 || at+n > len(s.code) {
		return ErrTruncated
	}
	return nil
}

// ReadByte reads a signed 1-byte immediate at bci.
func (s *Stream) ReadByte(bci int) (int8, error) {
	if err := s.need(bci, 1); err != nil {
		return 0, err
	}
	return int8(s.code[bci]), nil
}

// ReadShort reads a signed 2-byte big-endian immediate at bci (the JVM
// class file format is big-endian throughout).
func (s *Stream) ReadShort(bci int) (int16, error) {
	if err := s.need(bci, 2); err != nil {
		return 0, err
	}
	return int16(uint16(s.code[bci])<<8 | uint16(s.code[bci+1])), nil
}

// ReadUByte reads an unsigned byte at an absolute bci (used for the
// dimension-count operand of multianewarray).
func (s *Stream) ReadUByte(bci int) (uint8, error) {
	if err := s.need(bci, 1); err != nil {
		return 0, err
	}
	return s.code[bci], nil
}

// ReadLocalIndex reads a local-variable index at bci: one byte
// ordinarily, widened to two bytes when the stream is currently
// wide-prefixed (spec.md §4.1, §6 "Wide-prefix handling").
func (s *Stream) ReadLocalIndex(bci int) (int, error) {
	if s.wide {
		if err := s.need(bci, 2); err != nil {
			return 0, err
		}
		return int(uint16(s.code[bci])<<8 | uint16(s.code[bci+1])), nil
	}
	if err := s.need(bci, 1); err != nil {
		return 0, err
	}
	return int(s.code[bci]), nil
}

// LocalIndexWidth returns how many operand bytes ReadLocalIndex
// consumes given the stream's current wide state.
func (s *Stream) LocalIndexWidth() int {
	if s.wide {
		return 2
	}
	return 1
}

// ReadBranchDest reads a signed 2-byte branch offset at bci and
// returns the absolute target bci (srcBCI + offset).
func (s *Stream) ReadBranchDest(srcBCI, bci int) (int, error) {
	off, err := s.ReadShort(bci)
	if err != nil {
		return 0, err
	}
	return srcBCI + int(off), nil
}

// ReadFarBranchDest reads a signed 4-byte branch offset at bci (used by
// goto_w/jsr_w) and returns the absolute target bci.
func (s *Stream) ReadFarBranchDest(srcBCI, bci int) (int, error) {
	if err := s.need(bci, 4); err != nil {
		return 0, err
	}
	off := int32(uint32(s.code[bci])<<24 | uint32(s.code[bci+1])<<16 | uint32(s.code[bci+2])<<8 | uint32(s.code[bci+3]))
	return srcBCI + int(off), nil
}

// ReadCPI reads a 2-byte unsigned constant-pool index at bci.
func (s *Stream) ReadCPI(bci int) (int, error) {
	v, err := s.ReadShort(bci)
	if err != nil {
		return 0, err
	}
	return int(uint16(v)), nil
}

// TableSwitch is the decoded operand set of a tableswitch instruction.
type TableSwitch struct {
	Default int // absolute target bci
	Low     int32
	High    int32
	Targets []int // absolute target bcis, one per index in [Low,High]
	End     int   // bci one past the instruction's last operand byte
}

// ReadTableSwitch decodes a tableswitch instruction whose opcode byte
// is at srcBCI. Per spec.md §4.1 this is a dedicated helper operating
// on the full bytecode array: the instruction is padded with zero
// bytes up to the next 4-byte-aligned offset from the method's start.
func (s *Stream) ReadTableSwitch(srcBCI int) (*TableSwitch, error) {
	pc := srcBCI + 1
	pc += (4 - pc%4) % 4

	read4 := func(at int) (int32, error) {
		if err := s.need(at, 4); err != nil {
			return 0, err
		}
		return int32(uint32(s.code[at])<<24 | uint32(s.code[at+1])<<16 | uint32(s.code[at+2])<<8 | uint32(s.code[at+3])), nil
	}

	defOff, err := read4(pc)
	if err != nil {
		return nil, err
	}
	low, err := read4(pc + 4)
	if err != nil {
		return nil, err
	}
	high, err := read4(pc + 8)
	if err != nil {
		return nil, err
	}
	if high < low {
		return nil, fmt.Errorf("bytecode: tableswitch at %d has high %d < low %d", srcBCI, high, low)
	}
	n := int(high-low) + 1
	targets := make([]int, n)
	base := pc + 12
	for i := 0; i < n; i++ {
		off, err := read4(base + 4*i)
		if err != nil {
			return nil, err
		}
		targets[i] = srcBCI + int(off)
	}
	return &TableSwitch{
		Default: srcBCI + int(defOff),
		Low:     low,
		High:    high,
		Targets: targets,
		End:     base + 4*n,
	}, nil
}

// LookupSwitch is the decoded operand set of a lookupswitch instruction.
type LookupSwitch struct {
	Default int // absolute target bci
	Keys    []int32
	Targets []int // absolute target bcis, parallel to Keys
	End     int
}

// ReadLookupSwitch decodes a lookupswitch instruction whose opcode
// byte is at srcBCI.
func (s *Stream) ReadLookupSwitch(srcBCI int) (*LookupSwitch, error) {
	pc := srcBCI + 1
	pc += (4 - pc%4) % 4

	read4 := func(at int) (int32, error) {
		if err := s.need(at, 4); err != nil {
			return 0, err
		}
		return int32(uint32(s.code[at])<<24 | uint32(s.code[at+1])<<16 | uint32(s.code[at+2])<<8 | uint32(s.code[at+3])), nil
	}

	defOff, err := read4(pc)
	if err != nil {
		return nil, err
	}
	npairs, err := read4(pc + 4)
	if err != nil {
		return nil, err
	}
	if npairs < 0 {
		return nil, fmt.Errorf("bytecode: lookupswitch at %d has negative npairs %d", srcBCI, npairs)
	}
	n := int(npairs)
	keys := make([]int32, n)
	targets := make([]int, n)
	base := pc + 8
	for i := 0; i < n; i++ {
		k, err := read4(base + 8*i)
		if err != nil {
			return nil, err
		}
		t, err := read4(base + 8*i + 4)
		if err != nil {
			return nil, err
		}
		keys[i] = k
		targets[i] = srcBCI + int(t)
	}
	return &LookupSwitch{
		Default: srcBCI + int(defOff),
		Keys:    keys,
		Targets: targets,
		End:     base + 8*n,
	}, nil
}

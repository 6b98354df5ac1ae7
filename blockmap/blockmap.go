// Package blockmap implements jvmc's block-discovery pre-pass: a
// single forward scan over a method's bytecode producing, for every
// bytecode position, whether it starts a basic block, is a
// backward-branch target, and/or is an exception-handler entry
// (spec.md §4.2).
package blockmap

import (
	"fmt"

	"jvmc/bytecode"
	"jvmc/handler"
	"jvmc/opcode"
)

const (
	flagBlockStart byte = 1 << iota
	flagBackwardTarget
	flagExceptionEntry
)

// BlockMap is a byte-per-bytecode-position array with independently
// addressable flags (spec.md §3).
type BlockMap struct {
	flags []byte
}

func newBlockMap(size int) *BlockMap {
	return &BlockMap{flags: make([]byte, size)}
}

func (m *BlockMap) set(bci int, flag byte) {
	if bci < 0 || bci >= len(m.flags) {
		return
	}
	m.flags[bci] |= flag
}

// IsBlockStart reports whether bci begins a basic block.
func (m *BlockMap) IsBlockStart(bci int) bool {
	return bci >= 0 && bci < len(m.flags) && m.flags[bci]&flagBlockStart != 0
}

// IsBackwardBranchTarget reports whether bci is the destination of a
// branch whose source follows or equals it; such blocks require a
// safepoint on entry (spec.md §4.5 step 4).
func (m *BlockMap) IsBackwardBranchTarget(bci int) bool {
	return bci >= 0 && bci < len(m.flags) && m.flags[bci]&flagBackwardTarget != 0
}

// IsExceptionEntry reports whether bci is the handler entry of some
// exception-handler record.
func (m *BlockMap) IsExceptionEntry(bci int) bool {
	return bci >= 0 && bci < len(m.flags) && m.flags[bci]&flagExceptionEntry != 0
}

// Size returns the length of the method's bytecode array the map was
// built for.
func (m *BlockMap) Size() int { return len(m.flags) }

// Mark runs the block-discovery pre-pass over code (spec.md §4.2).
// Malformed bytecode — a truncated operand, a branch or switch target
// outside [0,len(code)) — is reported as an error; the orchestrator
// converts it to a Bailout (spec.md §7).
func Mark(code []byte, handlers []handler.Entry) (*BlockMap, error) {
	m := newBlockMap(len(code))
	if len(code) > 0 {
		m.set(0, flagBlockStart)
	}

	s := bytecode.NewStream(code)
	markTarget := func(from, to int) error {
		if to < 0 || to >= len(code) {
			return fmt.Errorf("blockmap: branch target %d out of range at bci %d", to, from)
		}
		m.set(to, flagBlockStart)
		if to <= from {
			m.set(to, flagBackwardTarget)
		}
		return nil
	}

	prevEndsBlock := false
	s.SetBCI(0)
	for s.BCI() < len(code) {
		op, err := s.OpCode()
		if err != nil {
			return nil, err
		}
		if prevEndsBlock {
			m.set(s.BCI(), flagBlockStart)
		}

		if op == opcode.Wide {
			s.MarkWide()
			s.Next()
			continue
		}

		opBCI := s.BCI()
		operandLen := 0
		consumedWide := s.IsWide()

		switch op {
		case opcode.Nop, opcode.AconstNull,
			opcode.IconstM1, opcode.Iconst0, opcode.Iconst1, opcode.Iconst2, opcode.Iconst3, opcode.Iconst4, opcode.Iconst5,
			opcode.Lconst0, opcode.Lconst1, opcode.Fconst0, opcode.Fconst1, opcode.Fconst2, opcode.Dconst0, opcode.Dconst1,
			opcode.Iload0, opcode.Iload1, opcode.Iload2, opcode.Iload3,
			opcode.Lload0, opcode.Lload1, opcode.Lload2, opcode.Lload3,
			opcode.Fload0, opcode.Fload1, opcode.Fload2, opcode.Fload3,
			opcode.Dload0, opcode.Dload1, opcode.Dload2, opcode.Dload3,
			opcode.Aload0, opcode.Aload1, opcode.Aload2, opcode.Aload3,
			opcode.Istore0, opcode.Istore1, opcode.Istore2, opcode.Istore3,
			opcode.Lstore0, opcode.Lstore1, opcode.Lstore2, opcode.Lstore3,
			opcode.Fstore0, opcode.Fstore1, opcode.Fstore2, opcode.Fstore3,
			opcode.Dstore0, opcode.Dstore1, opcode.Dstore2, opcode.Dstore3,
			opcode.Astore0, opcode.Astore1, opcode.Astore2, opcode.Astore3,
			opcode.Iaload, opcode.Laload, opcode.Faload, opcode.Daload, opcode.Aaload, opcode.Baload, opcode.Caload, opcode.Saload,
			opcode.Iastore, opcode.Lastore, opcode.Fastore, opcode.Dastore, opcode.Aastore, opcode.Bastore, opcode.Castore, opcode.Sastore,
			opcode.Pop, opcode.Pop2, opcode.Dup, opcode.DupX1, opcode.DupX2, opcode.Dup2, opcode.Dup2X1, opcode.Dup2X2, opcode.Swap,
			opcode.Iadd, opcode.Ladd, opcode.Fadd, opcode.Dadd, opcode.Isub, opcode.Lsub, opcode.Fsub, opcode.Dsub,
			opcode.Imul, opcode.Lmul, opcode.Fmul, opcode.Dmul, opcode.Idiv, opcode.Ldiv, opcode.Fdiv, opcode.Ddiv,
			opcode.Irem, opcode.Lrem, opcode.Frem, opcode.Drem, opcode.Ineg, opcode.Lneg, opcode.Fneg, opcode.Dneg,
			opcode.Ishl, opcode.Lshl, opcode.Ishr, opcode.Lshr, opcode.Iushr, opcode.Lushr,
			opcode.Iand, opcode.Land, opcode.Ior, opcode.Lor, opcode.Ixor, opcode.Lxor,
			opcode.I2l, opcode.I2f, opcode.I2d, opcode.L2i, opcode.L2f, opcode.L2d, opcode.F2i, opcode.F2l, opcode.F2d,
			opcode.D2i, opcode.D2l, opcode.D2f, opcode.I2b, opcode.I2c, opcode.I2s,
			opcode.Lcmp, opcode.Fcmpl, opcode.Fcmpg, opcode.Dcmpl, opcode.Dcmpg,
			opcode.Ireturn, opcode.Lreturn, opcode.Freturn, opcode.Dreturn, opcode.Areturn, opcode.Return,
			opcode.Arraylength, opcode.Athrow, opcode.Monitorenter, opcode.Monitorexit, opcode.Breakpoint:
			operandLen = 0

		case opcode.Bipush, opcode.Newarray:
			operandLen = 1

		case opcode.Ldc:
			operandLen = 1

		case opcode.Sipush, opcode.LdcW, opcode.Ldc2W,
			opcode.Getstatic, opcode.Putstatic, opcode.Getfield, opcode.Putfield,
			opcode.Invokevirtual, opcode.Invokespecial, opcode.Invokestatic,
			opcode.New, opcode.Anewarray, opcode.Checkcast, opcode.Instanceof:
			operandLen = 2

		case opcode.Iload, opcode.Lload, opcode.Fload, opcode.Dload, opcode.Aload,
			opcode.Istore, opcode.Lstore, opcode.Fstore, opcode.Dstore, opcode.Astore, opcode.Ret:
			if consumedWide {
				operandLen = 2
			} else {
				operandLen = 1
			}

		case opcode.Iinc:
			if consumedWide {
				operandLen = 4
			} else {
				operandLen = 2
			}

		case opcode.Invokeinterface, opcode.Invokedynamic:
			operandLen = 4

		case opcode.Multianewarray:
			operandLen = 3

		case opcode.Ifeq, opcode.Ifne, opcode.Iflt, opcode.Ifge, opcode.Ifgt, opcode.Ifle,
			opcode.IfIcmpeq, opcode.IfIcmpne, opcode.IfIcmplt, opcode.IfIcmpge, opcode.IfIcmpgt, opcode.IfIcmple,
			opcode.IfAcmpeq, opcode.IfAcmpne, opcode.Goto, opcode.Jsr, opcode.Ifnull, opcode.Ifnonnull:
			target, err := s.ReadBranchDest(opBCI, opBCI+1)
			if err != nil {
				return nil, err
			}
			if err := markTarget(opBCI, target); err != nil {
				return nil, err
			}
			operandLen = 2

		case opcode.GotoW, opcode.JsrW:
			target, err := s.ReadFarBranchDest(opBCI, opBCI+1)
			if err != nil {
				return nil, err
			}
			if err := markTarget(opBCI, target); err != nil {
				return nil, err
			}
			operandLen = 4

		case opcode.Tableswitch:
			ts, err := s.ReadTableSwitch(opBCI)
			if err != nil {
				return nil, err
			}
			if err := markTarget(opBCI, ts.Default); err != nil {
				return nil, err
			}
			for _, t := range ts.Targets {
				if err := markTarget(opBCI, t); err != nil {
					return nil, err
				}
			}
			operandLen = ts.End - (opBCI + 1)

		case opcode.Lookupswitch:
			ls, err := s.ReadLookupSwitch(opBCI)
			if err != nil {
				return nil, err
			}
			if err := markTarget(opBCI, ls.Default); err != nil {
				return nil, err
			}
			for _, t := range ls.Targets {
				if err := markTarget(opBCI, t); err != nil {
					return nil, err
				}
			}
			operandLen = ls.End - (opBCI + 1)

		default:
			// Opcodes outside the standard set are routed through an
			// ExtensionResolver at dispatch time (spec.md §6); the
			// marker itself has no resolver and assumes a bare,
			// operand-less instruction, which the dispatcher's own
			// extension check will reject with a Bailout if wrong.
			operandLen = 0
		}

		if consumedWide {
			s.ConsumeWide()
		}
		prevEndsBlock = opcode.EndsBlock(op)
		if opBCI+1+operandLen > len(code) {
			return nil, bytecode.ErrTruncated
		}
		s.SetBCI(opBCI + 1 + operandLen)
	}

	for _, h := range handlers {
		m.set(h.StartBCI, flagBlockStart)
		m.set(h.HandlerBCI, flagBlockStart|flagExceptionEntry)
	}

	return m, nil
}

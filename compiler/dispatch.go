package compiler

import (
	"fmt"

	"jvmc/bytecode"
	"jvmc/blockmap"
	"jvmc/codegen"
	"jvmc/errs"
	"jvmc/frame"
	"jvmc/handler"
	"jvmc/location"
	"jvmc/opcode"
)

// dispatcher drives one compilation's worklist, owning every piece the
// per-block walk needs: the decoded bytecode, the runtime/target/code
// generator facade, the block map, the register factory, the pending
// worklist, and the accumulated offset tables (spec.md §4.5, §4.6).
type dispatcher struct {
	method codegen.Method
	rt     codegen.RuntimeQuery
	target codegen.Target
	gen    codegen.Generator
	ext    codegen.ExtensionResolver

	handlers *handler.Table
	adapters *handler.AdapterQueue
	blocks   *blockmap.BlockMap
	factory  *location.Factory
	work     *Worklist

	// handlerTargets holds, per handler BCI, a frozen copy of the
	// canonical entryState SeedCanonicalLocals() installed, taken before
	// that handler's block was ever dispatched. The worklist's own
	// BlockState.EntryState for the same BCI is the object compileBlock
	// mutates while walking the handler body (ResetForHandlerEntry plus
	// every load/store it contains), so it is no longer the fixed
	// reconciliation target by the time materializeAdapters runs;
	// handlerTargets is. See materializeAdapters.
	handlerTargets map[int]*frame.State

	bytecodeOffsets map[int]int
	blockOffsets    map[int]int
}

func (d *dispatcher) move(from, to location.Location) { d.gen.Move(from, to) }

// enqueue records an arrival at bci. On first arrival state becomes the
// block's entryState outright. On every later arrival, state must
// reconcile its own slot placement against the already-committed
// entryState by spilling wherever they disagree (spec.md §4.6, §4.9);
// the reconciled state is then discarded; the block itself will only
// ever be compiled once, against its original entryState.
func (d *dispatcher) enqueue(bci int, state *frame.State) {
	entry, first := d.work.Enqueue(bci, state)
	if !first {
		state.Reconcile(d.move, entry)
	}
}

// bailout wraps err (or constructs a fresh one from reason) as a
// *errs.Bailout tagged with this compilation's identity.
func (d *dispatcher) bailout(reason string, cause error) error {
	if cause != nil {
		return errs.Wrap(d.method.Identity, reason, cause)
	}
	return errs.NewBailout(d.method.Identity, reason)
}

// compileBlock generates every instruction of the block starting at
// bci, against the entryState its BlockState was seeded with, until it
// reaches an instruction that ends the block or falls through into
// another block's start (spec.md §4.5, §4.6).
func (d *dispatcher) compileBlock(bci int) error {
	bs := d.work.BlockState(bci)
	if bs == nil {
		return d.bailout(fmt.Sprintf("block %d dequeued with no BlockState", bci), nil)
	}
	if bs.Generated {
		return nil
	}
	bs.Generated = true
	bs.CodeOffset = d.gen.BlockStart(bci)
	d.blockOffsets[bci] = bs.CodeOffset

	state := bs.EntryState
	if d.blocks.IsExceptionEntry(bci) {
		state.ResetForHandlerEntry(d.gen.ExceptionLoad())
	}
	if d.blocks.IsBackwardBranchTarget(bci) {
		d.gen.Safepoint()
	}

	s := bytecode.NewStream(d.method.Code)
	s.SetBCI(bci)
	for {
		cur := s.BCI()
		if cur >= len(d.method.Code) {
			return d.bailout(fmt.Sprintf("fell off the end of the method at bci %d without a block-ending instruction", cur), nil)
		}
		op, err := s.OpCode()
		if err != nil {
			return d.bailout("decode opcode", err)
		}

		// The wide prefix byte is itself an instruction start: record it
		// before falling through to the opcode it modifies, which gets
		// its own (likely identical) offset on the next loop iteration.
		d.bytecodeOffsets[cur] = d.gen.BytecodeStart(cur)

		if op == opcode.Wide {
			s.MarkWide()
			s.Next()
			continue
		}

		if opcode.CanTrap(op) {
			if hs := d.handlers.Covering(cur); len(hs) > 0 {
				d.adapters.Enqueue(cur, hs[0], state.Clone())
			}
		}

		ended, nextBCI, err := d.step(s, op, cur, state)
		if s.IsWide() {
			s.ConsumeWide()
		}
		if err != nil {
			return err
		}
		if ended {
			return nil
		}

		s.SetBCI(nextBCI)
		if d.blocks.IsBlockStart(nextBCI) {
			d.enqueue(nextBCI, state)
			return nil
		}
	}
}

// step decodes and emits exactly one instruction at bci, returning
// whether it ended the block and, if not, the bci of the following
// instruction (spec.md §4.5's per-opcode dispatch table).
func (d *dispatcher) step(s *bytecode.Stream, op opcode.Op, bci int, state *frame.State) (ended bool, nextBCI int, err error) {
	switch op {

	// --- constants ---
	case opcode.Nop:
		return false, bci + 1, nil
	case opcode.AconstNull:
		state.Push1(d.gen.Constant(location.Object, nil))
		return false, bci + 1, nil
	case opcode.IconstM1, opcode.Iconst0, opcode.Iconst1, opcode.Iconst2, opcode.Iconst3, opcode.Iconst4, opcode.Iconst5:
		state.Push1(d.gen.Constant(location.Int, int32(op)-int32(opcode.Iconst0)))
		return false, bci + 1, nil
	case opcode.Lconst0, opcode.Lconst1:
		state.Push2(d.gen.Constant(location.Long, int64(op)-int64(opcode.Lconst0)))
		return false, bci + 1, nil
	case opcode.Fconst0, opcode.Fconst1, opcode.Fconst2:
		state.Push1(d.gen.Constant(location.Float, float32(op)-float32(opcode.Fconst0)))
		return false, bci + 1, nil
	case opcode.Dconst0, opcode.Dconst1:
		state.Push2(d.gen.Constant(location.Double, float64(op)-float64(opcode.Dconst0)))
		return false, bci + 1, nil
	case opcode.Bipush:
		v, e := s.ReadByte(bci + 1)
		if e != nil {
			return false, 0, d.bailout("bipush operand", e)
		}
		state.Push1(d.gen.Constant(location.Int, int32(v)))
		return false, bci + 2, nil
	case opcode.Sipush:
		v, e := s.ReadShort(bci + 1)
		if e != nil {
			return false, 0, d.bailout("sipush operand", e)
		}
		state.Push1(d.gen.Constant(location.Int, int32(v)))
		return false, bci + 3, nil
	case opcode.Ldc, opcode.LdcW, opcode.Ldc2W:
		return d.doLdc(s, op, bci, state)

	// --- loads ---
	case opcode.Iload, opcode.Lload, opcode.Fload, opcode.Dload, opcode.Aload:
		return d.doLoad(s, op, bci, state)
	case opcode.Iload0, opcode.Iload1, opcode.Iload2, opcode.Iload3:
		state.Load1(int(op - opcode.Iload0))
		return false, bci + 1, nil
	case opcode.Fload0, opcode.Fload1, opcode.Fload2, opcode.Fload3:
		state.Load1(int(op - opcode.Fload0))
		return false, bci + 1, nil
	case opcode.Aload0, opcode.Aload1, opcode.Aload2, opcode.Aload3:
		state.Load1(int(op - opcode.Aload0))
		return false, bci + 1, nil
	case opcode.Lload0, opcode.Lload1, opcode.Lload2, opcode.Lload3:
		state.Load2(int(op - opcode.Lload0))
		return false, bci + 1, nil
	case opcode.Dload0, opcode.Dload1, opcode.Dload2, opcode.Dload3:
		state.Load2(int(op - opcode.Dload0))
		return false, bci + 1, nil

	// --- stores ---
	case opcode.Istore, opcode.Lstore, opcode.Fstore, opcode.Dstore, opcode.Astore:
		return d.doStore(s, op, bci, state)
	case opcode.Istore0, opcode.Istore1, opcode.Istore2, opcode.Istore3:
		if e := state.Store1(int(op - opcode.Istore0)); e != nil {
			return false, 0, d.bailout("istore_n", e)
		}
		return false, bci + 1, nil
	case opcode.Fstore0, opcode.Fstore1, opcode.Fstore2, opcode.Fstore3:
		if e := state.Store1(int(op - opcode.Fstore0)); e != nil {
			return false, 0, d.bailout("fstore_n", e)
		}
		return false, bci + 1, nil
	case opcode.Astore0, opcode.Astore1, opcode.Astore2, opcode.Astore3:
		if e := state.Store1(int(op - opcode.Astore0)); e != nil {
			return false, 0, d.bailout("astore_n", e)
		}
		return false, bci + 1, nil
	case opcode.Lstore0, opcode.Lstore1, opcode.Lstore2, opcode.Lstore3:
		if e := state.Store2(int(op - opcode.Lstore0)); e != nil {
			return false, 0, d.bailout("lstore_n", e)
		}
		return false, bci + 1, nil
	case opcode.Dstore0, opcode.Dstore1, opcode.Dstore2, opcode.Dstore3:
		if e := state.Store2(int(op - opcode.Dstore0)); e != nil {
			return false, 0, d.bailout("dstore_n", e)
		}
		return false, bci + 1, nil

	// --- array load/store ---
	case opcode.Iaload, opcode.Laload, opcode.Faload, opcode.Daload, opcode.Aaload, opcode.Baload, opcode.Caload, opcode.Saload:
		return d.doArrayLoad(op, bci, state)
	case opcode.Iastore, opcode.Lastore, opcode.Fastore, opcode.Dastore, opcode.Aastore, opcode.Bastore, opcode.Castore, opcode.Sastore:
		return d.doArrayStore(op, bci, state)

	// --- stack manipulation ---
	case opcode.Pop:
		if _, e := state.Pop1(); e != nil {
			return false, 0, d.bailout("pop", e)
		}
		return false, bci + 1, nil
	case opcode.Pop2:
		if _, e := state.Pop2(); e != nil {
			return false, 0, d.bailout("pop2", e)
		}
		return false, bci + 1, nil
	case opcode.Dup:
		v, e := state.Pop1()
		if e != nil {
			return false, 0, d.bailout("dup", e)
		}
		state.Push1(v)
		state.Push1(v)
		return false, bci + 1, nil
	case opcode.DupX1:
		v1, e := state.Pop1()
		if e != nil {
			return false, 0, d.bailout("dup_x1", e)
		}
		v2, e := state.Pop1()
		if e != nil {
			return false, 0, d.bailout("dup_x1", e)
		}
		state.Push1(v1)
		state.Push1(v2)
		state.Push1(v1)
		return false, bci + 1, nil
	case opcode.DupX2:
		v1, e := state.Pop1()
		if e != nil {
			return false, 0, d.bailout("dup_x2", e)
		}
		v2, e := state.Pop1()
		if e != nil {
			return false, 0, d.bailout("dup_x2", e)
		}
		v3, e := state.Pop1()
		if e != nil {
			return false, 0, d.bailout("dup_x2", e)
		}
		state.Push1(v1)
		state.Push1(v3)
		state.Push1(v2)
		state.Push1(v1)
		return false, bci + 1, nil
	case opcode.Dup2:
		v1, e := state.Pop1()
		if e != nil {
			return false, 0, d.bailout("dup2", e)
		}
		v2, e := state.Pop1()
		if e != nil {
			return false, 0, d.bailout("dup2", e)
		}
		state.Push1(v2)
		state.Push1(v1)
		state.Push1(v2)
		state.Push1(v1)
		return false, bci + 1, nil
	case opcode.Dup2X1:
		v1, e := state.Pop1()
		if e != nil {
			return false, 0, d.bailout("dup2_x1", e)
		}
		v2, e := state.Pop1()
		if e != nil {
			return false, 0, d.bailout("dup2_x1", e)
		}
		v3, e := state.Pop1()
		if e != nil {
			return false, 0, d.bailout("dup2_x1", e)
		}
		state.Push1(v2)
		state.Push1(v1)
		state.Push1(v3)
		state.Push1(v2)
		state.Push1(v1)
		return false, bci + 1, nil
	case opcode.Dup2X2:
		v1, e := state.Pop1()
		if e != nil {
			return false, 0, d.bailout("dup2_x2", e)
		}
		v2, e := state.Pop1()
		if e != nil {
			return false, 0, d.bailout("dup2_x2", e)
		}
		v3, e := state.Pop1()
		if e != nil {
			return false, 0, d.bailout("dup2_x2", e)
		}
		v4, e := state.Pop1()
		if e != nil {
			return false, 0, d.bailout("dup2_x2", e)
		}
		state.Push1(v2)
		state.Push1(v1)
		state.Push1(v4)
		state.Push1(v3)
		state.Push1(v2)
		state.Push1(v1)
		return false, bci + 1, nil
	case opcode.Swap:
		v1, e := state.Pop1()
		if e != nil {
			return false, 0, d.bailout("swap", e)
		}
		v2, e := state.Pop1()
		if e != nil {
			return false, 0, d.bailout("swap", e)
		}
		state.Push1(v1)
		state.Push1(v2)
		return false, bci + 1, nil

	// --- arithmetic ---
	case opcode.Iadd, opcode.Isub, opcode.Imul, opcode.Idiv, opcode.Irem, opcode.Iand, opcode.Ior, opcode.Ixor:
		return d.doBinOp(location.Int, binOpName(op), bci, state)
	case opcode.Ladd, opcode.Lsub, opcode.Lmul, opcode.Ldiv, opcode.Lrem, opcode.Land, opcode.Lor, opcode.Lxor:
		return d.doBinOp(location.Long, binOpName(op), bci, state)
	case opcode.Fadd, opcode.Fsub, opcode.Fmul, opcode.Fdiv, opcode.Frem:
		return d.doBinOp(location.Float, binOpName(op), bci, state)
	case opcode.Dadd, opcode.Dsub, opcode.Dmul, opcode.Ddiv, opcode.Drem:
		return d.doBinOp(location.Double, binOpName(op), bci, state)

	case opcode.Ineg, opcode.Lneg, opcode.Fneg, opcode.Dneg:
		return d.doNeg(op, bci, state)

	case opcode.Ishl, opcode.Ishr, opcode.Iushr:
		return d.doShift(op, false, bci, state)
	case opcode.Lshl, opcode.Lshr, opcode.Lushr:
		return d.doShift(op, true, bci, state)

	case opcode.Iinc:
		return d.doIinc(s, bci, state)

	// --- conversions ---
	case opcode.I2l, opcode.I2f, opcode.I2d, opcode.L2i, opcode.L2f, opcode.L2d,
		opcode.F2i, opcode.F2l, opcode.F2d, opcode.D2i, opcode.D2l, opcode.D2f,
		opcode.I2b, opcode.I2c, opcode.I2s:
		return d.doConvert(op, bci, state)

	// --- compares ---
	case opcode.Lcmp, opcode.Fcmpl, opcode.Fcmpg, opcode.Dcmpl, opcode.Dcmpg:
		return d.doCompare(op, bci, state)

	// --- conditional branches ---
	case opcode.Ifeq, opcode.Ifne, opcode.Iflt, opcode.Ifge, opcode.Ifgt, opcode.Ifle:
		return d.doIfZero(s, op, bci, state)
	case opcode.IfIcmpeq, opcode.IfIcmpne, opcode.IfIcmplt, opcode.IfIcmpge, opcode.IfIcmpgt, opcode.IfIcmple,
		opcode.IfAcmpeq, opcode.IfAcmpne:
		return d.doIfSame(s, op, bci, state)
	case opcode.Ifnull, opcode.Ifnonnull:
		return d.doIfNull(s, op, bci, state)

	// --- unconditional control ---
	case opcode.Goto:
		target, e := s.ReadBranchDest(bci, bci+1)
		if e != nil {
			return false, 0, d.bailout("goto operand", e)
		}
		d.gen.Goto(target)
		d.enqueue(target, state)
		return true, 0, nil
	case opcode.GotoW:
		target, e := s.ReadFarBranchDest(bci, bci+1)
		if e != nil {
			return false, 0, d.bailout("goto_w operand", e)
		}
		d.gen.Goto(target)
		d.enqueue(target, state)
		return true, 0, nil
	case opcode.Jsr:
		target, e := s.ReadBranchDest(bci, bci+1)
		if e != nil {
			return false, 0, d.bailout("jsr operand", e)
		}
		state.Push1(d.gen.Jsr(target))
		d.enqueue(target, state)
		return true, 0, nil
	case opcode.JsrW:
		// Open question #1 (spec.md §9): jsr_w, like jsr, always ends
		// its block; it is not folded into a fallthrough-continuing
		// group merely because its branch offset is wider.
		target, e := s.ReadFarBranchDest(bci, bci+1)
		if e != nil {
			return false, 0, d.bailout("jsr_w operand", e)
		}
		state.Push1(d.gen.Jsr(target))
		d.enqueue(target, state)
		return true, 0, nil
	case opcode.Ret:
		idx, e := s.ReadLocalIndex(bci + 1)
		if e != nil {
			return false, 0, d.bailout("ret operand", e)
		}
		d.gen.Ret(state.Get(idx))
		return true, 0, nil

	case opcode.Tableswitch:
		return d.doTableswitch(s, bci, state)
	case opcode.Lookupswitch:
		return d.doLookupswitch(s, bci, state)

	// --- returns ---
	case opcode.Ireturn, opcode.Freturn, opcode.Areturn:
		v, e := state.Pop1()
		if e != nil {
			return false, 0, d.bailout("return value", e)
		}
		d.gen.Return(v, returnKind(op))
		return true, 0, nil
	case opcode.Lreturn, opcode.Dreturn:
		v, e := state.Pop2()
		if e != nil {
			return false, 0, d.bailout("return value", e)
		}
		d.gen.Return(v, returnKind(op))
		return true, 0, nil
	case opcode.Return:
		d.gen.Return(location.Location{}, location.Void)
		return true, 0, nil

	case opcode.Athrow:
		obj, e := state.Pop1()
		if e != nil {
			return false, 0, d.bailout("athrow operand", e)
		}
		d.gen.Throw(obj)
		return true, 0, nil

	// --- fields ---
	case opcode.Getstatic:
		return d.doGetStatic(s, bci, state)
	case opcode.Putstatic:
		return d.doPutStatic(s, bci, state)
	case opcode.Getfield:
		return d.doGetField(s, bci, state)
	case opcode.Putfield:
		return d.doPutField(s, bci, state)

	// --- invokes ---
	case opcode.Invokevirtual:
		return d.doInvoke(s, bci, state, invokeVirtual)
	case opcode.Invokespecial:
		return d.doInvoke(s, bci, state, invokeSpecial)
	case opcode.Invokestatic:
		return d.doInvoke(s, bci, state, invokeStatic)
	case opcode.Invokeinterface:
		return d.doInvokeInterface(s, bci, state)
	case opcode.Invokedynamic:
		return d.doExtension(s, op, bci, state)

	// --- object/array creation ---
	case opcode.New:
		cpi, e := s.ReadCPI(bci + 1)
		if e != nil {
			return false, 0, d.bailout("new operand", e)
		}
		t, e := d.rt.LookupType(cpi)
		if e != nil {
			return false, 0, d.bailout("resolve new type", e)
		}
		state.Push1(d.gen.New(t))
		return false, bci + 3, nil
	case opcode.Newarray:
		at, e := s.ReadUByte(bci + 1)
		if e != nil {
			return false, 0, d.bailout("newarray operand", e)
		}
		length, e := state.Pop1()
		if e != nil {
			return false, 0, d.bailout("newarray length", e)
		}
		k, e := newarrayKind(at)
		if e != nil {
			return false, 0, d.bailout("newarray atype", e)
		}
		state.Push1(d.gen.NewArray(k, length))
		return false, bci + 2, nil
	case opcode.Anewarray:
		cpi, e := s.ReadCPI(bci + 1)
		if e != nil {
			return false, 0, d.bailout("anewarray operand", e)
		}
		t, e := d.rt.LookupType(cpi)
		if e != nil {
			return false, 0, d.bailout("resolve anewarray type", e)
		}
		length, e := state.Pop1()
		if e != nil {
			return false, 0, d.bailout("anewarray length", e)
		}
		state.Push1(d.gen.ANewArray(t, length))
		return false, bci + 3, nil
	case opcode.Multianewarray:
		cpi, e := s.ReadCPI(bci + 1)
		if e != nil {
			return false, 0, d.bailout("multianewarray operand", e)
		}
		dims, e := s.ReadUByte(bci + 3)
		if e != nil {
			return false, 0, d.bailout("multianewarray dims", e)
		}
		t, e := d.rt.LookupType(cpi)
		if e != nil {
			return false, 0, d.bailout("resolve multianewarray type", e)
		}
		lengths, e := state.PopN(int(dims))
		if e != nil {
			return false, 0, d.bailout("multianewarray lengths", e)
		}
		state.Push1(d.gen.MultiANewArray(t, lengths))
		return false, bci + 4, nil

	case opcode.Arraylength:
		a, e := state.Pop1()
		if e != nil {
			return false, 0, d.bailout("arraylength operand", e)
		}
		state.Push1(d.gen.ArrayLength(a))
		return false, bci + 1, nil

	case opcode.Checkcast:
		cpi, e := s.ReadCPI(bci + 1)
		if e != nil {
			return false, 0, d.bailout("checkcast operand", e)
		}
		t, e := d.rt.LookupType(cpi)
		if e != nil {
			return false, 0, d.bailout("resolve checkcast type", e)
		}
		obj, e := state.Pop1()
		if e != nil {
			return false, 0, d.bailout("checkcast operand", e)
		}
		d.gen.CheckCast(t, obj)
		state.Push1(obj)
		return false, bci + 3, nil
	case opcode.Instanceof:
		cpi, e := s.ReadCPI(bci + 1)
		if e != nil {
			return false, 0, d.bailout("instanceof operand", e)
		}
		t, e := d.rt.LookupType(cpi)
		if e != nil {
			return false, 0, d.bailout("resolve instanceof type", e)
		}
		obj, e := state.Pop1()
		if e != nil {
			return false, 0, d.bailout("instanceof operand", e)
		}
		state.Push1(d.gen.InstanceOf(t, obj))
		return false, bci + 3, nil

	case opcode.Monitorenter:
		obj, e := state.Pop1()
		if e != nil {
			return false, 0, d.bailout("monitorenter operand", e)
		}
		d.gen.MonitorEnter(obj)
		return false, bci + 1, nil
	case opcode.Monitorexit:
		obj, e := state.Pop1()
		if e != nil {
			return false, 0, d.bailout("monitorexit operand", e)
		}
		d.gen.MonitorExit(obj)
		return false, bci + 1, nil

	case opcode.Breakpoint:
		d.gen.Breakpoint()
		return false, bci + 1, nil

	default:
		return d.doExtension(s, op, bci, state)
	}
}

// doExtension routes an opcode outside the standard set through the
// configured ExtensionResolver (spec.md §6). A compilation with no
// resolver, or one that rejects the opcode, bails out: the marker
// pre-pass assumed a bare instruction and the dispatcher is the only
// place that can actually tell.
func (d *dispatcher) doExtension(s *bytecode.Stream, op opcode.Op, bci int, state *frame.State) (bool, int, error) {
	if d.ext == nil {
		return false, 0, d.bailout(fmt.Sprintf("opcode 0x%02x at bci %d has no known encoding and no extension resolver is configured", byte(op), bci), nil)
	}
	xop, ok := d.ext.Resolve(byte(op), bci, s.Code())
	if !ok {
		return false, 0, d.bailout(fmt.Sprintf("extension resolver rejected opcode 0x%02x at bci %d", byte(op), bci), nil)
	}
	args, e := state.PopN(xop.ArgSlots)
	if e != nil {
		return false, 0, d.bailout("extension operand arguments", e)
	}
	result := d.gen.InvokeExtended(xop, args)
	state.PushZ(result, xop.ReturnKind)
	return false, bci + 1 + xop.OperandBytes, nil
}

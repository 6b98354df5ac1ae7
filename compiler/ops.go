package compiler

import (
	"fmt"

	"jvmc/bytecode"
	"jvmc/codegen"
	"jvmc/frame"
	"jvmc/location"
	"jvmc/opcode"
)

func (d *dispatcher) doLdc(s *bytecode.Stream, op opcode.Op, bci int, state *frame.State) (bool, int, error) {
	var cpi, width int
	if op == opcode.Ldc {
		u, e := s.ReadUByte(bci + 1)
		if e != nil {
			return false, 0, d.bailout("ldc operand", e)
		}
		cpi, width = int(u), 1
	} else {
		u, e := s.ReadCPI(bci + 1)
		if e != nil {
			return false, 0, d.bailout("ldc_w/ldc2_w operand", e)
		}
		cpi, width = u, 2
	}
	cr, e := d.rt.LookupConstant(cpi)
	if e != nil {
		return false, 0, d.bailout("resolve constant", e)
	}
	var v location.Location
	if cr.Unresolved {
		v = d.gen.ResolveClass(cr.Type)
	} else {
		v = d.gen.Constant(cr.Kind, cr.Value)
	}
	if op == opcode.Ldc2W {
		state.Push2(v)
	} else {
		state.Push1(v)
	}
	return false, bci + 1 + width, nil
}

func (d *dispatcher) doLoad(s *bytecode.Stream, op opcode.Op, bci int, state *frame.State) (bool, int, error) {
	idx, e := s.ReadLocalIndex(bci + 1)
	if e != nil {
		return false, 0, d.bailout("load operand", e)
	}
	width := s.LocalIndexWidth()
	if op == opcode.Lload || op == opcode.Dload {
		state.Load2(idx)
	} else {
		state.Load1(idx)
	}
	return false, bci + 1 + width, nil
}

func (d *dispatcher) doStore(s *bytecode.Stream, op opcode.Op, bci int, state *frame.State) (bool, int, error) {
	idx, e := s.ReadLocalIndex(bci + 1)
	if e != nil {
		return false, 0, d.bailout("store operand", e)
	}
	width := s.LocalIndexWidth()
	if op == opcode.Lstore || op == opcode.Dstore {
		if e := state.Store2(idx); e != nil {
			return false, 0, d.bailout("store2", e)
		}
	} else {
		if e := state.Store1(idx); e != nil {
			return false, 0, d.bailout("store1", e)
		}
	}
	return false, bci + 1 + width, nil
}

func arrayElemKind(op opcode.Op) location.Kind {
	switch op {
	case opcode.Iaload, opcode.Iastore:
		return location.Int
	case opcode.Laload, opcode.Lastore:
		return location.Long
	case opcode.Faload, opcode.Fastore:
		return location.Float
	case opcode.Daload, opcode.Dastore:
		return location.Double
	case opcode.Aaload, opcode.Aastore:
		return location.Object
	case opcode.Baload, opcode.Bastore:
		return location.Byte
	case opcode.Caload, opcode.Castore:
		return location.Char
	default: // Saload, Sastore
		return location.Short
	}
}

func (d *dispatcher) doArrayLoad(op opcode.Op, bci int, state *frame.State) (bool, int, error) {
	k := arrayElemKind(op)
	index, e := state.Pop1()
	if e != nil {
		return false, 0, d.bailout("array load index", e)
	}
	array, e := state.Pop1()
	if e != nil {
		return false, 0, d.bailout("array load reference", e)
	}
	state.PushX(d.gen.ArrayLoad(k, array, index), k.StackKind())
	return false, bci + 1, nil
}

func (d *dispatcher) doArrayStore(op opcode.Op, bci int, state *frame.State) (bool, int, error) {
	k := arrayElemKind(op)
	value, e := state.PopX(k)
	if e != nil {
		return false, 0, d.bailout("array store value", e)
	}
	index, e := state.Pop1()
	if e != nil {
		return false, 0, d.bailout("array store index", e)
	}
	array, e := state.Pop1()
	if e != nil {
		return false, 0, d.bailout("array store reference", e)
	}
	d.gen.ArrayStore(k, array, index, value)
	return false, bci + 1, nil
}

func binOpName(op opcode.Op) string {
	switch op {
	case opcode.Iadd, opcode.Ladd, opcode.Fadd, opcode.Dadd:
		return "add"
	case opcode.Isub, opcode.Lsub, opcode.Fsub, opcode.Dsub:
		return "sub"
	case opcode.Imul, opcode.Lmul, opcode.Fmul, opcode.Dmul:
		return "mul"
	case opcode.Idiv, opcode.Ldiv, opcode.Fdiv, opcode.Ddiv:
		return "div"
	case opcode.Irem, opcode.Lrem, opcode.Frem, opcode.Drem:
		return "rem"
	case opcode.Iand, opcode.Land:
		return "and"
	case opcode.Ior, opcode.Lor:
		return "or"
	default: // Ixor, Lxor
		return "xor"
	}
}

func (d *dispatcher) doBinOp(kind location.Kind, opName string, bci int, state *frame.State) (bool, int, error) {
	b, e := state.PopX(kind)
	if e != nil {
		return false, 0, d.bailout("binary operand", e)
	}
	a, e := state.PopX(kind)
	if e != nil {
		return false, 0, d.bailout("binary operand", e)
	}
	var v location.Location
	switch kind {
	case location.Int:
		v = d.gen.IntOp2(opName, a, b)
	case location.Long:
		v = d.gen.LongOp2(opName, a, b)
	case location.Float:
		v = d.gen.FloatOp2(opName, a, b)
	default:
		v = d.gen.DoubleOp2(opName, a, b)
	}
	state.PushX(v, kind)
	return false, bci + 1, nil
}

func negKind(op opcode.Op) location.Kind {
	switch op {
	case opcode.Ineg:
		return location.Int
	case opcode.Lneg:
		return location.Long
	case opcode.Fneg:
		return location.Float
	default:
		return location.Double
	}
}

func (d *dispatcher) doNeg(op opcode.Op, bci int, state *frame.State) (bool, int, error) {
	kind := negKind(op)
	v, e := state.PopX(kind)
	if e != nil {
		return false, 0, d.bailout("neg operand", e)
	}
	state.PushX(d.gen.Neg(kind, v), kind)
	return false, bci + 1, nil
}

func shiftName(op opcode.Op) string {
	switch op {
	case opcode.Ishl, opcode.Lshl:
		return "shl"
	case opcode.Ishr, opcode.Lshr:
		return "shr"
	default:
		return "ushr"
	}
}

func (d *dispatcher) doShift(op opcode.Op, wide bool, bci int, state *frame.State) (bool, int, error) {
	count, e := state.Pop1()
	if e != nil {
		return false, 0, d.bailout("shift count", e)
	}
	k := location.Int
	if wide {
		k = location.Long
	}
	value, e := state.PopX(k)
	if e != nil {
		return false, 0, d.bailout("shift value", e)
	}
	state.PushX(d.gen.Shift(shiftName(op), value, count, wide), k)
	return false, bci + 1, nil
}

func (d *dispatcher) doIinc(s *bytecode.Stream, bci int, state *frame.State) (bool, int, error) {
	idx, e := s.ReadLocalIndex(bci + 1)
	if e != nil {
		return false, 0, d.bailout("iinc index", e)
	}
	idxWidth := s.LocalIndexWidth()
	deltaWidth := 1
	var delta int32
	if s.IsWide() {
		v, e := s.ReadShort(bci + 1 + idxWidth)
		if e != nil {
			return false, 0, d.bailout("iinc wide delta", e)
		}
		delta, deltaWidth = int32(v), 2
	} else {
		v, e := s.ReadByte(bci + 1 + idxWidth)
		if e != nil {
			return false, 0, d.bailout("iinc delta", e)
		}
		delta = int32(v)
	}
	cur := state.Get(idx)
	c := d.gen.Constant(location.Int, delta)
	state.Set(idx, d.gen.IntOp2("add", cur, c))
	return false, bci + 1 + idxWidth + deltaWidth, nil
}

func convertKinds(op opcode.Op) (location.Kind, location.Kind) {
	switch op {
	case opcode.I2l:
		return location.Int, location.Long
	case opcode.I2f:
		return location.Int, location.Float
	case opcode.I2d:
		return location.Int, location.Double
	case opcode.L2i:
		return location.Long, location.Int
	case opcode.L2f:
		return location.Long, location.Float
	case opcode.L2d:
		return location.Long, location.Double
	case opcode.F2i:
		return location.Float, location.Int
	case opcode.F2l:
		return location.Float, location.Long
	case opcode.F2d:
		return location.Float, location.Double
	case opcode.D2i:
		return location.Double, location.Int
	case opcode.D2l:
		return location.Double, location.Long
	case opcode.D2f:
		return location.Double, location.Float
	case opcode.I2b:
		return location.Int, location.Byte
	case opcode.I2c:
		return location.Int, location.Char
	default: // I2s
		return location.Int, location.Short
	}
}

func (d *dispatcher) doConvert(op opcode.Op, bci int, state *frame.State) (bool, int, error) {
	from, to := convertKinds(op)
	v, e := state.PopX(from)
	if e != nil {
		return false, 0, d.bailout("convert operand", e)
	}
	state.PushX(d.gen.Convert(from, to, v), to.StackKind())
	return false, bci + 1, nil
}

func (d *dispatcher) doCompare(op opcode.Op, bci int, state *frame.State) (bool, int, error) {
	kind, name := location.Long, "lcmp"
	switch op {
	case opcode.Fcmpl:
		kind, name = location.Float, "fcmpl"
	case opcode.Fcmpg:
		kind, name = location.Float, "fcmpg"
	case opcode.Dcmpl:
		kind, name = location.Double, "dcmpl"
	case opcode.Dcmpg:
		kind, name = location.Double, "dcmpg"
	}
	b, e := state.PopX(kind)
	if e != nil {
		return false, 0, d.bailout("compare operand", e)
	}
	a, e := state.PopX(kind)
	if e != nil {
		return false, 0, d.bailout("compare operand", e)
	}
	state.Push1(d.gen.Compare(name, a, b))
	return false, bci + 1, nil
}

func ifCondName(op opcode.Op) string {
	switch op {
	case opcode.Ifeq, opcode.IfIcmpeq, opcode.IfAcmpeq:
		return "eq"
	case opcode.Ifne, opcode.IfIcmpne, opcode.IfAcmpne:
		return "ne"
	case opcode.Iflt, opcode.IfIcmplt:
		return "lt"
	case opcode.Ifge, opcode.IfIcmpge:
		return "ge"
	case opcode.Ifgt, opcode.IfIcmpgt:
		return "gt"
	default: // Ifle, IfIcmple
		return "le"
	}
}

func (d *dispatcher) doIfZero(s *bytecode.Stream, op opcode.Op, bci int, state *frame.State) (bool, int, error) {
	target, e := s.ReadBranchDest(bci, bci+1)
	if e != nil {
		return false, 0, d.bailout("if<cond> operand", e)
	}
	a, e := state.Pop1()
	if e != nil {
		return false, 0, d.bailout("if<cond> operand", e)
	}
	d.gen.IfZero(ifCondName(op), a, target)
	d.enqueue(target, state.Clone())
	d.enqueue(bci+3, state)
	return true, 0, nil
}

func (d *dispatcher) doIfSame(s *bytecode.Stream, op opcode.Op, bci int, state *frame.State) (bool, int, error) {
	target, e := s.ReadBranchDest(bci, bci+1)
	if e != nil {
		return false, 0, d.bailout("if_*cmp<cond> operand", e)
	}
	b, e := state.Pop1()
	if e != nil {
		return false, 0, d.bailout("if_*cmp<cond> operand", e)
	}
	a, e := state.Pop1()
	if e != nil {
		return false, 0, d.bailout("if_*cmp<cond> operand", e)
	}
	d.gen.IfSame(ifCondName(op), a, b, target)
	d.enqueue(target, state.Clone())
	d.enqueue(bci+3, state)
	return true, 0, nil
}

func (d *dispatcher) doIfNull(s *bytecode.Stream, op opcode.Op, bci int, state *frame.State) (bool, int, error) {
	target, e := s.ReadBranchDest(bci, bci+1)
	if e != nil {
		return false, 0, d.bailout("ifnull/ifnonnull operand", e)
	}
	a, e := state.Pop1()
	if e != nil {
		return false, 0, d.bailout("ifnull/ifnonnull operand", e)
	}
	d.gen.IfNull(op == opcode.Ifnull, a, target)
	d.enqueue(target, state.Clone())
	d.enqueue(bci+3, state)
	return true, 0, nil
}

func (d *dispatcher) doTableswitch(s *bytecode.Stream, bci int, state *frame.State) (bool, int, error) {
	ts, e := s.ReadTableSwitch(bci)
	if e != nil {
		return false, 0, d.bailout("tableswitch operand", e)
	}
	key, e := state.Pop1()
	if e != nil {
		return false, 0, d.bailout("tableswitch key", e)
	}
	d.gen.TableSwitch(key, ts.Low, ts.High, ts.Targets, ts.Default)
	for _, t := range ts.Targets {
		d.enqueue(t, state.Clone())
	}
	d.enqueue(ts.Default, state)
	return true, 0, nil
}

func (d *dispatcher) doLookupswitch(s *bytecode.Stream, bci int, state *frame.State) (bool, int, error) {
	ls, e := s.ReadLookupSwitch(bci)
	if e != nil {
		return false, 0, d.bailout("lookupswitch operand", e)
	}
	key, e := state.Pop1()
	if e != nil {
		return false, 0, d.bailout("lookupswitch key", e)
	}
	d.gen.LookupSwitch(key, ls.Keys, ls.Targets, ls.Default)
	for _, t := range ls.Targets {
		d.enqueue(t, state.Clone())
	}
	d.enqueue(ls.Default, state)
	return true, 0, nil
}

func returnKind(op opcode.Op) location.Kind {
	switch op {
	case opcode.Ireturn:
		return location.Int
	case opcode.Lreturn:
		return location.Long
	case opcode.Freturn:
		return location.Float
	case opcode.Dreturn:
		return location.Double
	default: // Areturn
		return location.Object
	}
}

func newarrayKind(atype uint8) (location.Kind, error) {
	switch atype {
	case 4:
		return location.Boolean, nil
	case 5:
		return location.Char, nil
	case 6:
		return location.Float, nil
	case 7:
		return location.Double, nil
	case 8:
		return location.Byte, nil
	case 9:
		return location.Short, nil
	case 10:
		return location.Int, nil
	case 11:
		return location.Long, nil
	default:
		return 0, fmt.Errorf("invalid newarray atype %d", atype)
	}
}

func (d *dispatcher) doGetStatic(s *bytecode.Stream, bci int, state *frame.State) (bool, int, error) {
	cpi, e := s.ReadCPI(bci + 1)
	if e != nil {
		return false, 0, d.bailout("getstatic operand", e)
	}
	f, e := d.rt.LookupGetStatic(cpi)
	if e != nil {
		return false, 0, d.bailout("resolve getstatic", e)
	}
	state.PushX(d.gen.GetStatic(f), f.Kind.StackKind())
	return false, bci + 3, nil
}

func (d *dispatcher) doPutStatic(s *bytecode.Stream, bci int, state *frame.State) (bool, int, error) {
	cpi, e := s.ReadCPI(bci + 1)
	if e != nil {
		return false, 0, d.bailout("putstatic operand", e)
	}
	f, e := d.rt.LookupPutStatic(cpi)
	if e != nil {
		return false, 0, d.bailout("resolve putstatic", e)
	}
	v, e := state.PopX(f.Kind)
	if e != nil {
		return false, 0, d.bailout("putstatic value", e)
	}
	d.gen.PutStatic(f, v)
	return false, bci + 3, nil
}

func (d *dispatcher) doGetField(s *bytecode.Stream, bci int, state *frame.State) (bool, int, error) {
	cpi, e := s.ReadCPI(bci + 1)
	if e != nil {
		return false, 0, d.bailout("getfield operand", e)
	}
	f, e := d.rt.LookupGetField(cpi)
	if e != nil {
		return false, 0, d.bailout("resolve getfield", e)
	}
	obj, e := state.Pop1()
	if e != nil {
		return false, 0, d.bailout("getfield operand", e)
	}
	state.PushX(d.gen.GetField(f, obj), f.Kind.StackKind())
	return false, bci + 3, nil
}

func (d *dispatcher) doPutField(s *bytecode.Stream, bci int, state *frame.State) (bool, int, error) {
	cpi, e := s.ReadCPI(bci + 1)
	if e != nil {
		return false, 0, d.bailout("putfield operand", e)
	}
	f, e := d.rt.LookupPutField(cpi)
	if e != nil {
		return false, 0, d.bailout("resolve putfield", e)
	}
	v, e := state.PopX(f.Kind)
	if e != nil {
		return false, 0, d.bailout("putfield value", e)
	}
	obj, e := state.Pop1()
	if e != nil {
		return false, 0, d.bailout("putfield operand", e)
	}
	d.gen.PutField(f, obj, v)
	return false, bci + 3, nil
}

// invokeKind distinguishes the three fixed-arity invoke families that
// share a resolve/pop-args/emit/push shape; invokeinterface is handled
// separately because its operand encoding carries two extra bytes.
type invokeKind int

const (
	invokeVirtual invokeKind = iota
	invokeSpecial
	invokeStatic
)

func (d *dispatcher) doInvoke(s *bytecode.Stream, bci int, state *frame.State, kind invokeKind) (bool, int, error) {
	cpi, e := s.ReadCPI(bci + 1)
	if e != nil {
		return false, 0, d.bailout("invoke operand", e)
	}
	var m codegen.MethodRef
	switch kind {
	case invokeVirtual:
		m, e = d.rt.LookupInvokeVirtual(cpi)
	case invokeSpecial:
		m, e = d.rt.LookupInvokeSpecial(cpi)
	default:
		m, e = d.rt.LookupInvokeStatic(cpi)
	}
	if e != nil {
		return false, 0, d.bailout("resolve invoke", e)
	}
	args, berr := d.popArgs(state, m)
	if berr != nil {
		return false, 0, berr
	}
	var v location.Location
	switch kind {
	case invokeVirtual:
		v = d.gen.InvokeVirtual(m, args)
	case invokeSpecial:
		v = d.gen.InvokeSpecial(m, args)
	default:
		v = d.gen.InvokeStatic(m, args)
	}
	state.PushZ(v, m.Signature.ReturnKind.StackKind())
	return false, bci + 3, nil
}

func (d *dispatcher) doInvokeInterface(s *bytecode.Stream, bci int, state *frame.State) (bool, int, error) {
	cpi, e := s.ReadCPI(bci + 1)
	if e != nil {
		return false, 0, d.bailout("invokeinterface operand", e)
	}
	// The count and trailing zero byte are a class-file encoding
	// artifact; the resolved MethodRef's signature already gives the
	// dispatcher everything it needs to pop the right number of args.
	m, e := d.rt.LookupInvokeInterface(cpi)
	if e != nil {
		return false, 0, d.bailout("resolve invokeinterface", e)
	}
	args, berr := d.popArgs(state, m)
	if berr != nil {
		return false, 0, berr
	}
	v := d.gen.InvokeInterface(m, args)
	state.PushZ(v, m.Signature.ReturnKind.StackKind())
	return false, bci + 5, nil
}

// popArgs pops the receiver (if any) and declared parameters of m off
// the operand stack, in call order, collapsing each double-word
// parameter's value+sentinel pair down to the single Location the
// Generator interface expects (spec.md §4.4).
func (d *dispatcher) popArgs(state *frame.State, m codegen.MethodRef) ([]location.Location, error) {
	kinds := make([]location.Kind, 0, len(m.Signature.ParamKinds)+1)
	if !m.IsStatic {
		kinds = append(kinds, location.Object)
	}
	kinds = append(kinds, m.Signature.ParamKinds...)

	total := 0
	for _, k := range kinds {
		total += k.Slots()
	}
	raw, e := state.PopN(total)
	if e != nil {
		return nil, d.bailout("invoke arguments", e)
	}
	out := make([]location.Location, len(kinds))
	cursor := 0
	for i, k := range kinds {
		out[i] = raw[cursor]
		cursor += k.Slots()
	}
	return out, nil
}

// Package opcode is used internally by jvmc to describe the JVM method
// bytecode instruction set: the opcode constants and a static table of
// per-opcode metadata (mnemonic, whether it can trap, and whether it
// ends its basic block).
//
// This package holds no executable logic over bytecode; it is a lookup
// table, the same role wasm/operators plays for the teacher's WASM
// instruction set.
package opcode

// Op is a single JVM bytecode opcode.
type Op byte

// The JVM instruction set (JVM SE spec chapter 6). Unused/reserved
// opcodes between families are omitted; callers consult Table for
// whether an Op is known.
const (
	Nop             Op = 0x00
	AconstNull      Op = 0x01
	IconstM1        Op = 0x02
	Iconst0         Op = 0x03
	Iconst1         Op = 0x04
	Iconst2         Op = 0x05
	Iconst3         Op = 0x06
	Iconst4         Op = 0x07
	Iconst5         Op = 0x08
	Lconst0         Op = 0x09
	Lconst1         Op = 0x0a
	Fconst0         Op = 0x0b
	Fconst1         Op = 0x0c
	Fconst2         Op = 0x0d
	Dconst0         Op = 0x0e
	Dconst1         Op = 0x0f
	Bipush          Op = 0x10
	Sipush          Op = 0x11
	Ldc             Op = 0x12
	LdcW            Op = 0x13
	Ldc2W           Op = 0x14
	Iload           Op = 0x15
	Lload           Op = 0x16
	Fload           Op = 0x17
	Dload           Op = 0x18
	Aload           Op = 0x19
	Iload0          Op = 0x1a
	Iload1          Op = 0x1b
	Iload2          Op = 0x1c
	Iload3          Op = 0x1d
	Lload0          Op = 0x1e
	Lload1          Op = 0x1f
	Lload2          Op = 0x20
	Lload3          Op = 0x21
	Fload0          Op = 0x22
	Fload1          Op = 0x23
	Fload2          Op = 0x24
	Fload3          Op = 0x25
	Dload0          Op = 0x26
	Dload1          Op = 0x27
	Dload2          Op = 0x28
	Dload3          Op = 0x29
	Aload0          Op = 0x2a
	Aload1          Op = 0x2b
	Aload2          Op = 0x2c
	Aload3          Op = 0x2d
	Iaload          Op = 0x2e
	Laload          Op = 0x2f
	Faload          Op = 0x30
	Daload          Op = 0x31
	Aaload          Op = 0x32
	Baload          Op = 0x33
	Caload          Op = 0x34
	Saload          Op = 0x35
	Istore          Op = 0x36
	Lstore          Op = 0x37
	Fstore          Op = 0x38
	Dstore          Op = 0x39
	Astore          Op = 0x3a
	Istore0         Op = 0x3b
	Istore1         Op = 0x3c
	Istore2         Op = 0x3d
	Istore3         Op = 0x3e
	Lstore0         Op = 0x3f
	Lstore1         Op = 0x40
	Lstore2         Op = 0x41
	Lstore3         Op = 0x42
	Fstore0         Op = 0x43
	Fstore1         Op = 0x44
	Fstore2         Op = 0x45
	Fstore3         Op = 0x46
	Dstore0         Op = 0x47
	Dstore1         Op = 0x48
	Dstore2         Op = 0x49
	Dstore3         Op = 0x4a
	Astore0         Op = 0x4b
	Astore1         Op = 0x4c
	Astore2         Op = 0x4d
	Astore3         Op = 0x4e
	Iastore         Op = 0x4f
	Lastore         Op = 0x50
	Fastore         Op = 0x51
	Dastore         Op = 0x52
	Aastore         Op = 0x53
	Bastore         Op = 0x54
	Castore         Op = 0x55
	Sastore         Op = 0x56
	Pop             Op = 0x57
	Pop2            Op = 0x58
	Dup             Op = 0x59
	DupX1           Op = 0x5a
	DupX2           Op = 0x5b
	Dup2            Op = 0x5c
	Dup2X1          Op = 0x5d
	Dup2X2          Op = 0x5e
	Swap            Op = 0x5f
	Iadd            Op = 0x60
	Ladd            Op = 0x61
	Fadd            Op = 0x62
	Dadd            Op = 0x63
	Isub            Op = 0x64
	Lsub            Op = 0x65
	Fsub            Op = 0x66
	Dsub            Op = 0x67
	Imul            Op = 0x68
	Lmul            Op = 0x69
	Fmul            Op = 0x6a
	Dmul            Op = 0x6b
	Idiv            Op = 0x6c
	Ldiv            Op = 0x6d
	Fdiv            Op = 0x6e
	Ddiv            Op = 0x6f
	Irem            Op = 0x70
	Lrem            Op = 0x71
	Frem            Op = 0x72
	Drem            Op = 0x73
	Ineg            Op = 0x74
	Lneg            Op = 0x75
	Fneg            Op = 0x76
	Dneg            Op = 0x77
	Ishl            Op = 0x78
	Lshl            Op = 0x79
	Ishr            Op = 0x7a
	Lshr            Op = 0x7b
	Iushr           Op = 0x7c
	Lushr           Op = 0x7d
	Iand            Op = 0x7e
	Land            Op = 0x7f
	Ior             Op = 0x80
	Lor             Op = 0x81
	Ixor            Op = 0x82
	Lxor            Op = 0x83
	Iinc            Op = 0x84
	I2l             Op = 0x85
	I2f             Op = 0x86
	I2d             Op = 0x87
	L2i             Op = 0x88
	L2f             Op = 0x89
	L2d             Op = 0x8a
	F2i             Op = 0x8b
	F2l             Op = 0x8c
	F2d             Op = 0x8d
	D2i             Op = 0x8e
	D2l             Op = 0x8f
	D2f             Op = 0x90
	I2b             Op = 0x91
	I2c             Op = 0x92
	I2s             Op = 0x93
	Lcmp            Op = 0x94
	Fcmpl           Op = 0x95
	Fcmpg           Op = 0x96
	Dcmpl           Op = 0x97
	Dcmpg           Op = 0x98
	Ifeq            Op = 0x99
	Ifne            Op = 0x9a
	Iflt            Op = 0x9b
	Ifge            Op = 0x9c
	Ifgt            Op = 0x9d
	Ifle            Op = 0x9e
	IfIcmpeq        Op = 0x9f
	IfIcmpne        Op = 0xa0
	IfIcmplt        Op = 0xa1
	IfIcmpge        Op = 0xa2
	IfIcmpgt        Op = 0xa3
	IfIcmple        Op = 0xa4
	IfAcmpeq        Op = 0xa5
	IfAcmpne        Op = 0xa6
	Goto            Op = 0xa7
	Jsr             Op = 0xa8
	Ret             Op = 0xa9
	Tableswitch     Op = 0xaa
	Lookupswitch    Op = 0xab
	Ireturn         Op = 0xac
	Lreturn         Op = 0xad
	Freturn         Op = 0xae
	Dreturn         Op = 0xaf
	Areturn         Op = 0xb0
	Return          Op = 0xb1
	Getstatic       Op = 0xb2
	Putstatic       Op = 0xb3
	Getfield        Op = 0xb4
	Putfield        Op = 0xb5
	Invokevirtual   Op = 0xb6
	Invokespecial   Op = 0xb7
	Invokestatic    Op = 0xb8
	Invokeinterface Op = 0xb9
	Invokedynamic   Op = 0xba
	New             Op = 0xbb
	Newarray        Op = 0xbc
	Anewarray       Op = 0xbd
	Arraylength     Op = 0xbe
	Athrow          Op = 0xbf
	Checkcast       Op = 0xc0
	Instanceof      Op = 0xc1
	Monitorenter    Op = 0xc2
	Monitorexit     Op = 0xc3
	Wide            Op = 0xc4
	Multianewarray  Op = 0xc5
	Ifnull          Op = 0xc6
	Ifnonnull       Op = 0xc7
	GotoW           Op = 0xc8
	JsrW            Op = 0xc9
	Breakpoint      Op = 0xca
)

// Descriptor is the static metadata jvmc keeps about a single opcode.
type Descriptor struct {
	Name    string
	CanTrap bool // true if execution of this opcode may raise a runtime exception
	EndsBlock bool // true if this opcode always ends the basic block it appears in
}

// Table maps every known opcode to its Descriptor. Opcodes absent from
// Table are either reserved or handled through the ExtensionResolver
// (spec.md §6, §4.5 "extension" dispatch group).
var Table = map[Op]Descriptor{
	Nop:             {"nop", false, false},
	AconstNull:      {"aconst_null", false, false},
	IconstM1:        {"iconst_m1", false, false},
	Iconst0:         {"iconst_0", false, false},
	Iconst1:         {"iconst_1", false, false},
	Iconst2:         {"iconst_2", false, false},
	Iconst3:         {"iconst_3", false, false},
	Iconst4:         {"iconst_4", false, false},
	Iconst5:         {"iconst_5", false, false},
	Lconst0:         {"lconst_0", false, false},
	Lconst1:         {"lconst_1", false, false},
	Fconst0:         {"fconst_0", false, false},
	Fconst1:         {"fconst_1", false, false},
	Fconst2:         {"fconst_2", false, false},
	Dconst0:         {"dconst_0", false, false},
	Dconst1:         {"dconst_1", false, false},
	Bipush:          {"bipush", false, false},
	Sipush:          {"sipush", false, false},
	Ldc:             {"ldc", true, false},
	LdcW:            {"ldc_w", true, false},
	Ldc2W:           {"ldc2_w", true, false},
	Iload:           {"iload", false, false},
	Lload:           {"lload", false, false},
	Fload:           {"fload", false, false},
	Dload:           {"dload", false, false},
	Aload:           {"aload", false, false},
	Iload0:          {"iload_0", false, false},
	Iload1:          {"iload_1", false, false},
	Iload2:          {"iload_2", false, false},
	Iload3:          {"iload_3", false, false},
	Lload0:          {"lload_0", false, false},
	Lload1:          {"lload_1", false, false},
	Lload2:          {"lload_2", false, false},
	Lload3:          {"lload_3", false, false},
	Fload0:          {"fload_0", false, false},
	Fload1:          {"fload_1", false, false},
	Fload2:          {"fload_2", false, false},
	Fload3:          {"fload_3", false, false},
	Dload0:          {"dload_0", false, false},
	Dload1:          {"dload_1", false, false},
	Dload2:          {"dload_2", false, false},
	Dload3:          {"dload_3", false, false},
	Aload0:          {"aload_0", false, false},
	Aload1:          {"aload_1", false, false},
	Aload2:          {"aload_2", false, false},
	Aload3:          {"aload_3", false, false},
	Iaload:          {"iaload", true, false},
	Laload:          {"laload", true, false},
	Faload:          {"faload", true, false},
	Daload:          {"daload", true, false},
	Aaload:          {"aaload", true, false},
	Baload:          {"baload", true, false},
	Caload:          {"caload", true, false},
	Saload:          {"saload", true, false},
	Istore:          {"istore", false, false},
	Lstore:          {"lstore", false, false},
	Fstore:          {"fstore", false, false},
	Dstore:          {"dstore", false, false},
	Astore:          {"astore", false, false},
	Istore0:         {"istore_0", false, false},
	Istore1:         {"istore_1", false, false},
	Istore2:         {"istore_2", false, false},
	Istore3:         {"istore_3", false, false},
	Lstore0:         {"lstore_0", false, false},
	Lstore1:         {"lstore_1", false, false},
	Lstore2:         {"lstore_2", false, false},
	Lstore3:         {"lstore_3", false, false},
	Fstore0:         {"fstore_0", false, false},
	Fstore1:         {"fstore_1", false, false},
	Fstore2:         {"fstore_2", false, false},
	Fstore3:         {"fstore_3", false, false},
	Dstore0:         {"dstore_0", false, false},
	Dstore1:         {"dstore_1", false, false},
	Dstore2:         {"dstore_2", false, false},
	Dstore3:         {"dstore_3", false, false},
	Astore0:         {"astore_0", false, false},
	Astore1:         {"astore_1", false, false},
	Astore2:         {"astore_2", false, false},
	Astore3:         {"astore_3", false, false},
	Iastore:         {"iastore", true, false},
	Lastore:         {"lastore", true, false},
	Fastore:         {"fastore", true, false},
	Dastore:         {"dastore", true, false},
	Aastore:         {"aastore", true, false},
	Bastore:         {"bastore", true, false},
	Castore:         {"castore", true, false},
	Sastore:         {"sastore", true, false},
	Pop:             {"pop", false, false},
	Pop2:            {"pop2", false, false},
	Dup:             {"dup", false, false},
	DupX1:           {"dup_x1", false, false},
	DupX2:           {"dup_x2", false, false},
	Dup2:            {"dup2", false, false},
	Dup2X1:          {"dup2_x1", false, false},
	Dup2X2:          {"dup2_x2", false, false},
	Swap:            {"swap", false, false},
	Iadd:            {"iadd", false, false},
	Ladd:            {"ladd", false, false},
	Fadd:            {"fadd", false, false},
	Dadd:            {"dadd", false, false},
	Isub:            {"isub", false, false},
	Lsub:            {"lsub", false, false},
	Fsub:            {"fsub", false, false},
	Dsub:            {"dsub", false, false},
	Imul:            {"imul", false, false},
	Lmul:            {"lmul", false, false},
	Fmul:            {"fmul", false, false},
	Dmul:            {"dmul", false, false},
	Idiv:            {"idiv", true, false},
	Ldiv:            {"ldiv", true, false},
	Fdiv:            {"fdiv", false, false},
	Ddiv:            {"ddiv", false, false},
	Irem:            {"irem", true, false},
	Lrem:            {"lrem", true, false},
	Frem:            {"frem", false, false},
	Drem:            {"drem", false, false},
	Ineg:            {"ineg", false, false},
	Lneg:            {"lneg", false, false},
	Fneg:            {"fneg", false, false},
	Dneg:            {"dneg", false, false},
	Ishl:            {"ishl", false, false},
	Lshl:            {"lshl", false, false},
	Ishr:            {"ishr", false, false},
	Lshr:            {"lshr", false, false},
	Iushr:           {"iushr", false, false},
	Lushr:           {"lushr", false, false},
	Iand:            {"iand", false, false},
	Land:            {"land", false, false},
	Ior:             {"ior", false, false},
	Lor:             {"lor", false, false},
	Ixor:            {"ixor", false, false},
	Lxor:            {"lxor", false, false},
	Iinc:            {"iinc", false, false},
	I2l:             {"i2l", false, false},
	I2f:             {"i2f", false, false},
	I2d:             {"i2d", false, false},
	L2i:             {"l2i", false, false},
	L2f:             {"l2f", false, false},
	L2d:             {"l2d", false, false},
	F2i:             {"f2i", false, false},
	F2l:             {"f2l", false, false},
	F2d:             {"f2d", false, false},
	D2i:             {"d2i", false, false},
	D2l:             {"d2l", false, false},
	D2f:             {"d2f", false, false},
	I2b:             {"i2b", false, false},
	I2c:             {"i2c", false, false},
	I2s:             {"i2s", false, false},
	Lcmp:            {"lcmp", false, false},
	Fcmpl:           {"fcmpl", false, false},
	Fcmpg:           {"fcmpg", false, false},
	Dcmpl:           {"dcmpl", false, false},
	Dcmpg:           {"dcmpg", false, false},
	Ifeq:            {"ifeq", false, true},
	Ifne:            {"ifne", false, true},
	Iflt:            {"iflt", false, true},
	Ifge:            {"ifge", false, true},
	Ifgt:            {"ifgt", false, true},
	Ifle:            {"ifle", false, true},
	IfIcmpeq:        {"if_icmpeq", false, true},
	IfIcmpne:        {"if_icmpne", false, true},
	IfIcmplt:        {"if_icmplt", false, true},
	IfIcmpge:        {"if_icmpge", false, true},
	IfIcmpgt:        {"if_icmpgt", false, true},
	IfIcmple:        {"if_icmple", false, true},
	IfAcmpeq:        {"if_acmpeq", false, true},
	IfAcmpne:        {"if_acmpne", false, true},
	Goto:            {"goto", false, true},
	Jsr:             {"jsr", false, true},
	Ret:             {"ret", false, true},
	Tableswitch:     {"tableswitch", false, true},
	Lookupswitch:    {"lookupswitch", false, true},
	Ireturn:         {"ireturn", false, true},
	Lreturn:         {"lreturn", false, true},
	Freturn:         {"freturn", false, true},
	Dreturn:         {"dreturn", false, true},
	Areturn:         {"areturn", false, true},
	Return:          {"return", false, true},
	Getstatic:       {"getstatic", true, false},
	Putstatic:       {"putstatic", true, false},
	Getfield:        {"getfield", true, false},
	Putfield:        {"putfield", true, false},
	Invokevirtual:   {"invokevirtual", true, false},
	Invokespecial:   {"invokespecial", true, false},
	Invokestatic:    {"invokestatic", true, false},
	Invokeinterface: {"invokeinterface", true, false},
	Invokedynamic:   {"invokedynamic", true, false},
	New:             {"new", true, false},
	Newarray:        {"newarray", true, false},
	Anewarray:       {"anewarray", true, false},
	Arraylength:     {"arraylength", true, false},
	Athrow:          {"athrow", true, true},
	Checkcast:       {"checkcast", true, false},
	Instanceof:      {"instanceof", false, false},
	Monitorenter:    {"monitorenter", true, false},
	Monitorexit:     {"monitorexit", true, false},
	Wide:            {"wide", false, false},
	Multianewarray:  {"multianewarray", true, false},
	Ifnull:          {"ifnull", false, true},
	Ifnonnull:       {"ifnonnull", false, true},
	GotoW:           {"goto_w", false, true},
	JsrW:            {"jsr_w", false, true},
	Breakpoint:      {"breakpoint", false, false},
}

// Name returns the mnemonic for op, or a placeholder for unknown opcodes.
func Name(op Op) string {
	if d, ok := Table[op]; ok {
		return d.Name
	}
	return "<unknown opcode>"
}

// CanTrap reports whether op may raise a runtime exception (spec.md §4.5
// "can_trap(opcode)"). Unknown opcodes routed through an
// ExtensionResolver are assumed trapping (an ExtendedOp carries no trap
// flag to say otherwise); Table itself only covers the standard set.
func CanTrap(op Op) bool {
	d, ok := Table[op]
	if !ok {
		return true
	}
	return d.CanTrap
}

// EndsBlock reports whether op unconditionally ends its basic block
// (return/throw/goto/switch/ret family — spec.md §4.2).
func EndsBlock(op Op) bool {
	return Table[op].EndsBlock
}

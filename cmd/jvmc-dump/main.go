// Command jvmc-dump loads a JSON method fixture and prints its
// bytecode disassembly, its block map, and (with -c) the sequence of
// codegen.Generator calls a compilation of it would make, mirroring
// wasm-dump's file-in/section-dump shape for jvmc's own method-level
// unit of compilation.
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"jvmc/blockmap"
	"jvmc/bytecode"
	"jvmc/codegen"
	"jvmc/codegen/tracing"
	"jvmc/compiler"
	"jvmc/handler"
	"jvmc/location"
	"jvmc/opcode"
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: jvmc-dump [options] fixture1.json [fixture2.json [...]]

ex:
 $> jvmc-dump -c ./method.json

options:
`,
		)
		flag.PrintDefaults()
		os.Exit(1)
	}
}

var (
	flagDis    = flag.Bool("d", true, "disassemble the bytecode stream")
	flagBlocks = flag.Bool("b", true, "print the block map")
	flagCalls  = flag.Bool("c", false, "compile against the tracing generator and print its call log")
)

func main() {
	log.SetPrefix("jvmc-dump: ")
	log.SetFlags(0)

	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
	}

	for i, fname := range flag.Args() {
		if i > 0 {
			fmt.Println()
		}
		if err := process(os.Stdout, fname); err != nil {
			log.Fatalf("%q: %v", fname, err)
		}
	}
}

func process(w io.Writer, fname string) error {
	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open: %w", err)
	}
	defer f.Close()

	fx, err := decodeFixture(f)
	if err != nil {
		return fmt.Errorf("could not decode fixture: %w", err)
	}
	method, err := fx.method()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s: %s (%d param(s), returns %s, %d local(s), %d stack slot(s))\n",
		fname, method.Identity, len(method.Signature.ParamKinds), method.Signature.ReturnKind,
		method.MaxLocals, method.MaxStack)

	if *flagDis {
		fmt.Fprintln(w, "\ndisassembly:")
		if err := printDis(w, method.Code); err != nil {
			return err
		}
	}

	bm, err := blockmap.Mark(method.Code, method.Handlers)
	if err != nil {
		return fmt.Errorf("block discovery: %w", err)
	}
	if *flagBlocks {
		fmt.Fprintln(w, "\nblock map:")
		printBlocks(w, bm, method.Code)
	}

	if *flagCalls {
		fmt.Fprintln(w, "\ngenerator calls:")
		gen := tracing.New()
		art, err := compiler.Compile(method, nullQuery{}, stackTarget{}, gen, nil)
		if err != nil {
			return fmt.Errorf("compile: %w", err)
		}
		for _, c := range gen.Calls {
			fmt.Fprintf(w, "  %s\n", c)
		}
		fmt.Fprintf(w, "\nregisters allocated: %d\n", art.RegisterCount)
		printOffsets(w, "bytecode offsets", art.BytecodeOffsets)
		printOffsets(w, "block offsets", art.BlockOffsets)
		for _, warning := range art.Warnings {
			fmt.Fprintf(w, "warning: %v\n", warning)
		}
	}
	return nil
}

func printOffsets(w io.Writer, label string, m map[int]int) {
	fmt.Fprintf(w, "%s:\n", label)
	keys := sortedKeys(m)
	for _, k := range keys {
		fmt.Fprintf(w, "  %d -> %d\n", k, m[k])
	}
}

func sortedKeys(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

func printBlocks(w io.Writer, bm *blockmap.BlockMap, code []byte) {
	for bci := 0; bci < len(code); bci++ {
		if !bm.IsBlockStart(bci) {
			continue
		}
		var tags []string
		if bm.IsBackwardBranchTarget(bci) {
			tags = append(tags, "backward-target")
		}
		if bm.IsExceptionEntry(bci) {
			tags = append(tags, "exception-entry")
		}
		fmt.Fprintf(w, "  %6d: block start %v\n", bci, tags)
	}
}

// --- fixture decoding -------------------------------------------------

type handlerFixture struct {
	StartBCI   int    `json:"start_bci"`
	EndBCI     int    `json:"end_bci"`
	HandlerBCI int    `json:"handler_bci"`
	CatchType  string `json:"catch_type"`
}

type methodFixture struct {
	Identity   string           `json:"identity"`
	IsStatic   bool             `json:"is_static"`
	ParamKinds []string         `json:"param_kinds"`
	ReturnKind string           `json:"return_kind"`
	MaxLocals  int              `json:"max_locals"`
	MaxStack   int              `json:"max_stack"`
	Code       string           `json:"code"`
	Handlers   []handlerFixture `json:"handlers"`
}

func decodeFixture(r *os.File) (*methodFixture, error) {
	var fx methodFixture
	if err := json.NewDecoder(r).Decode(&fx); err != nil {
		return nil, err
	}
	return &fx, nil
}

func (fx *methodFixture) method() (codegen.Method, error) {
	code, err := hex.DecodeString(fx.Code)
	if err != nil {
		return codegen.Method{}, fmt.Errorf("code is not valid hex: %w", err)
	}
	params := make([]location.Kind, len(fx.ParamKinds))
	for i, k := range fx.ParamKinds {
		kind, err := parseKind(k)
		if err != nil {
			return codegen.Method{}, fmt.Errorf("param_kinds[%d]: %w", i, err)
		}
		params[i] = kind
	}
	ret, err := parseKind(fx.ReturnKind)
	if err != nil {
		return codegen.Method{}, fmt.Errorf("return_kind: %w", err)
	}
	entries := make([]handler.Entry, len(fx.Handlers))
	for i, h := range fx.Handlers {
		var catch interface{}
		if h.CatchType != "" {
			catch = h.CatchType
		}
		entries[i] = handler.Entry{
			StartBCI:   h.StartBCI,
			EndBCI:     h.EndBCI,
			HandlerBCI: h.HandlerBCI,
			CatchType:  catch,
		}
	}
	return codegen.Method{
		Signature: codegen.Signature{ParamKinds: params, ReturnKind: ret},
		IsStatic:  fx.IsStatic,
		MaxLocals: fx.MaxLocals,
		MaxStack:  fx.MaxStack,
		Code:      code,
		Handlers:  entries,
		Identity:  fx.Identity,
	}, nil
}

func parseKind(name string) (location.Kind, error) {
	switch name {
	case "boolean":
		return location.Boolean, nil
	case "byte":
		return location.Byte, nil
	case "char":
		return location.Char, nil
	case "short":
		return location.Short, nil
	case "int":
		return location.Int, nil
	case "long":
		return location.Long, nil
	case "float":
		return location.Float, nil
	case "double":
		return location.Double, nil
	case "object":
		return location.Object, nil
	case "void":
		return location.Void, nil
	default:
		return 0, fmt.Errorf("unknown kind %q", name)
	}
}

// stackTarget is the simplest possible codegen.Target: every parameter
// (and the receiver, for non-static methods) gets its own fresh
// virtual register, word size matches the amd64 backend's 8-byte slots.
type stackTarget struct{}

func (stackTarget) WordSize() int { return 8 }

func (stackTarget) CallingConvention(sig codegen.Signature, isStatic bool, factory *location.Factory) []location.Location {
	var locs []location.Location
	if !isStatic {
		locs = append(locs, factory.NewRegister(location.Object))
	}
	for _, k := range sig.ParamKinds {
		locs = append(locs, factory.NewRegister(k))
	}
	return locs
}

// nullQuery is a RuntimeQuery with no constant pool behind it: every
// lookup succeeds with a zero-value, already-resolved reference. There
// is no class-file reader in scope, so fixtures that exercise
// field/invoke opcodes get a benign stand-in rather than a bailout.
type nullQuery struct{}

func (nullQuery) LookupConstant(cpi int) (codegen.ConstantRef, error) {
	return codegen.ConstantRef{Kind: location.Int, Value: int32(0)}, nil
}
func (nullQuery) LookupType(cpi int) (codegen.TypeRef, error) { return "resolved-type", nil }
func (nullQuery) LookupGetField(cpi int) (codegen.FieldRef, error) {
	return codegen.FieldRef{Kind: location.Int, Resolved: true}, nil
}
func (nullQuery) LookupPutField(cpi int) (codegen.FieldRef, error) {
	return codegen.FieldRef{Kind: location.Int, Resolved: true}, nil
}
func (nullQuery) LookupGetStatic(cpi int) (codegen.FieldRef, error) {
	return codegen.FieldRef{Kind: location.Int, IsStatic: true, Resolved: true}, nil
}
func (nullQuery) LookupPutStatic(cpi int) (codegen.FieldRef, error) {
	return codegen.FieldRef{Kind: location.Int, IsStatic: true, Resolved: true}, nil
}
func (nullQuery) LookupInvokeVirtual(cpi int) (codegen.MethodRef, error) {
	return codegen.MethodRef{Signature: codegen.Signature{ReturnKind: location.Void}}, nil
}
func (nullQuery) LookupInvokeSpecial(cpi int) (codegen.MethodRef, error) {
	return codegen.MethodRef{Signature: codegen.Signature{ReturnKind: location.Void}}, nil
}
func (nullQuery) LookupInvokeStatic(cpi int) (codegen.MethodRef, error) {
	return codegen.MethodRef{Signature: codegen.Signature{ReturnKind: location.Void}}, nil
}
func (nullQuery) LookupInvokeInterface(cpi int) (codegen.MethodRef, error) {
	return codegen.MethodRef{Signature: codegen.Signature{ReturnKind: location.Void}}, nil
}
func (nullQuery) IsResolved(t codegen.TypeRef) bool { return true }

// --- disassembly -------------------------------------------------------

func printDis(w io.Writer, code []byte) error {
	s := bytecode.NewStream(code)
	s.SetBCI(0)
	for s.BCI() < len(code) {
		opBCI := s.BCI()
		op, err := s.OpCode()
		if err != nil {
			return err
		}
		if op == opcode.Wide {
			s.MarkWide()
			s.Next()
			fmt.Fprintf(w, "  %6d: %s\n", opBCI, opcode.Name(op))
			continue
		}
		operands, next, err := decodeInstruction(s, op, opBCI)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %6d: %-14s%s\n", opBCI, opcode.Name(op), operands)
		if s.IsWide() {
			s.ConsumeWide()
		}
		s.SetBCI(next)
	}
	return nil
}

// decodeInstruction prints the operand(s) of the instruction at opBCI
// and returns the bci of the following instruction. Operand shapes
// mirror blockmap.Mark's own opcode switch (jvmc's other full walk
// over a method's code array).
func decodeInstruction(s *bytecode.Stream, op opcode.Op, opBCI int) (string, int, error) {
	switch op {
	case opcode.Bipush:
		v, err := s.ReadByte(opBCI + 1)
		if err != nil {
			return "", 0, err
		}
		return fmt.Sprintf("%d", v), opBCI + 2, nil

	case opcode.Sipush:
		v, err := s.ReadShort(opBCI + 1)
		if err != nil {
			return "", 0, err
		}
		return fmt.Sprintf("%d", v), opBCI + 3, nil

	case opcode.Ldc, opcode.Newarray:
		v, err := s.ReadUByte(opBCI + 1)
		if err != nil {
			return "", 0, err
		}
		return fmt.Sprintf("#%d", v), opBCI + 2, nil

	case opcode.LdcW, opcode.Ldc2W,
		opcode.Getstatic, opcode.Putstatic, opcode.Getfield, opcode.Putfield,
		opcode.Invokevirtual, opcode.Invokespecial, opcode.Invokestatic,
		opcode.New, opcode.Anewarray, opcode.Checkcast, opcode.Instanceof:
		cpi, err := s.ReadCPI(opBCI + 1)
		if err != nil {
			return "", 0, err
		}
		return fmt.Sprintf("#%d", cpi), opBCI + 3, nil

	case opcode.Iload, opcode.Lload, opcode.Fload, opcode.Dload, opcode.Aload,
		opcode.Istore, opcode.Lstore, opcode.Fstore, opcode.Dstore, opcode.Astore, opcode.Ret:
		idx, err := s.ReadLocalIndex(opBCI + 1)
		if err != nil {
			return "", 0, err
		}
		return fmt.Sprintf("%d", idx), opBCI + 1 + s.LocalIndexWidth(), nil

	case opcode.Iinc:
		width := s.LocalIndexWidth()
		idx, err := s.ReadLocalIndex(opBCI + 1)
		if err != nil {
			return "", 0, err
		}
		if width == 2 {
			delta, err := s.ReadShort(opBCI + 1 + width)
			if err != nil {
				return "", 0, err
			}
			return fmt.Sprintf("%d %d", idx, delta), opBCI + 1 + 2*width, nil
		}
		delta, err := s.ReadByte(opBCI + 1 + width)
		if err != nil {
			return "", 0, err
		}
		return fmt.Sprintf("%d %d", idx, delta), opBCI + 1 + 2*width, nil

	case opcode.Invokeinterface, opcode.Invokedynamic:
		cpi, err := s.ReadCPI(opBCI + 1)
		if err != nil {
			return "", 0, err
		}
		return fmt.Sprintf("#%d", cpi), opBCI + 5, nil

	case opcode.Multianewarray:
		cpi, err := s.ReadCPI(opBCI + 1)
		if err != nil {
			return "", 0, err
		}
		dims, err := s.ReadUByte(opBCI + 3)
		if err != nil {
			return "", 0, err
		}
		return fmt.Sprintf("#%d dims=%d", cpi, dims), opBCI + 4, nil

	case opcode.Ifeq, opcode.Ifne, opcode.Iflt, opcode.Ifge, opcode.Ifgt, opcode.Ifle,
		opcode.IfIcmpeq, opcode.IfIcmpne, opcode.IfIcmplt, opcode.IfIcmpge, opcode.IfIcmpgt, opcode.IfIcmple,
		opcode.IfAcmpeq, opcode.IfAcmpne, opcode.Goto, opcode.Jsr, opcode.Ifnull, opcode.Ifnonnull:
		target, err := s.ReadBranchDest(opBCI, opBCI+1)
		if err != nil {
			return "", 0, err
		}
		return fmt.Sprintf("-> %d", target), opBCI + 3, nil

	case opcode.GotoW, opcode.JsrW:
		target, err := s.ReadFarBranchDest(opBCI, opBCI+1)
		if err != nil {
			return "", 0, err
		}
		return fmt.Sprintf("-> %d", target), opBCI + 5, nil

	case opcode.Tableswitch:
		ts, err := s.ReadTableSwitch(opBCI)
		if err != nil {
			return "", 0, err
		}
		return fmt.Sprintf("low=%d high=%d default=%d targets=%v", ts.Low, ts.High, ts.Default, ts.Targets), ts.End, nil

	case opcode.Lookupswitch:
		ls, err := s.ReadLookupSwitch(opBCI)
		if err != nil {
			return "", 0, err
		}
		return fmt.Sprintf("keys=%v default=%d targets=%v", ls.Keys, ls.Default, ls.Targets), ls.End, nil

	default:
		return "", opBCI + 1, nil
	}
}

// Command jvmc-run loads a JSON method fixture, compiles it with
// jvmc's reference AMD64 generator, and invokes the resulting native
// code, printing the value left in the reserved return slot. It
// mirrors wasm-run's load-then-execute shape for jvmc's own
// method-level unit of compilation.
//
// Fixtures that use opcodes routed through the generator's runtime
// call-out stub (field access, allocation, invokes, type checks,
// monitors, exceptions) compile cleanly but crash on Invoke: no
// object-model runtime is in scope here, so every call-out hook
// address defaults to zero. jvmc-run is only safe to execute on
// fixtures built from the generator's direct-lowering subset
// (int/long constants, moves, arithmetic, shifts, and control flow
// including conditional branches); float/double constants and the
// lcmp/fcmp/dcmp comparisons also go through the call-out stub.
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"

	"jvmc/codegen"
	"jvmc/codegen/amd64"
	"jvmc/compiler"
	"jvmc/handler"
	"jvmc/location"
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: jvmc-run [options] fixture.json

ex:
 $> jvmc-run -v ./method.json

options:
`,
		)
		flag.PrintDefaults()
		os.Exit(1)
	}
}

var flagVerbose = flag.Bool("v", false, "print the compiled artifact's register/offset bookkeeping")

func main() {
	log.SetPrefix("jvmc-run: ")
	log.SetFlags(0)

	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
	}

	if err := run(os.Stdout, flag.Arg(0), *flagVerbose); err != nil {
		log.Fatal(err)
	}
}

func run(w io.Writer, fname string, verbose bool) error {
	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer f.Close()

	var fx methodFixture
	if err := json.NewDecoder(f).Decode(&fx); err != nil {
		return fmt.Errorf("could not decode fixture %q: %w", fname, err)
	}
	method, err := fx.method()
	if err != nil {
		return fmt.Errorf("%q: %w", fname, err)
	}

	gen, err := amd64.New(amd64.Hooks{})
	if err != nil {
		return fmt.Errorf("could not start generator: %w", err)
	}

	art, err := compiler.Compile(method, nullQuery{}, stackTarget{}, gen, nil)
	if err != nil {
		return fmt.Errorf("%q: compile: %w", fname, err)
	}

	alloc := &amd64.MMapAllocator{}
	defer alloc.Close()
	unit, err := gen.Finalize(alloc)
	if err != nil {
		return fmt.Errorf("%q: finalize: %w", fname, err)
	}

	registers := make([]uint64, art.RegisterCount)
	slots := make([]uint64, method.MaxLocals+method.MaxStack)
	unit.Invoke(&registers, &slots)

	fmt.Fprintf(w, "%s: %s ran to completion\n", fname, method.Identity)
	fmt.Fprintf(w, "return slot: %d (as %s: %v)\n", slots[0], method.Signature.ReturnKind, decodeReturn(method.Signature.ReturnKind, slots[0]))

	if verbose {
		fmt.Fprintf(w, "registers allocated: %d\n", art.RegisterCount)
		fmt.Fprintf(w, "bytecode offsets: %v\n", art.BytecodeOffsets)
		fmt.Fprintf(w, "block offsets: %v\n", art.BlockOffsets)
		for _, warning := range art.Warnings {
			fmt.Fprintf(w, "warning: %v\n", warning)
		}
	}
	return nil
}

func decodeReturn(kind location.Kind, bits uint64) interface{} {
	switch kind {
	case location.Long:
		return int64(bits)
	case location.Double:
		return math.Float64frombits(bits)
	case location.Float:
		return math.Float32frombits(uint32(bits))
	case location.Void:
		return nil
	default:
		return int32(bits)
	}
}

// --- fixture decoding, duplicated from jvmc-dump: these two commands
// stay independent self-contained mains, the same way wasm-dump and
// wasm-run never shared a common internal package.

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

package compiler

import (
	"fmt"

	"jvmc/blockmap"
	"jvmc/codegen"
	"jvmc/errs"
	"jvmc/frame"
	"jvmc/handler"
	"jvmc/location"
)

// Artifact is the observable result of one compilation (spec.md §6):
// the bci-to-code-offset and block-start-to-code-offset maps needed by
// anything consuming the generated code (a debugger, a deopt table, a
// disassembler), the number of virtual registers the factory handed
// out, and any non-fatal warnings collected along the way.
type Artifact struct {
	Method          string
	BytecodeOffsets map[int]int
	BlockOffsets    map[int]int
	RegisterCount   int
	Warnings        []error
}

// Compile runs the single-pass baseline compilation of method against
// rt/target/gen, routing any opcode outside the standard set through
// ext (nil if the method is known not to use any). Compile either
// returns a complete Artifact or a *errs.Bailout; there is no partial
// result (spec.md §7).
func Compile(method codegen.Method, rt codegen.RuntimeQuery, target codegen.Target, gen codegen.Generator, ext codegen.ExtensionResolver) (*Artifact, error) {
	bm, err := blockmap.Mark(method.Code, method.Handlers)
	if err != nil {
		return nil, errs.Wrap(method.Identity, "block discovery", err)
	}

	factory := location.NewFactory()
	d := &dispatcher{
		method:          method,
		rt:              rt,
		target:          target,
		gen:             gen,
		ext:             ext,
		handlers:        handler.NewTable(method.Handlers),
		adapters:        &handler.AdapterQueue{},
		blocks:          bm,
		factory:         factory,
		work:            NewWorklist(),
		handlerTargets:  make(map[int]*frame.State),
		bytecodeOffsets: make(map[int]int),
		blockOffsets:    make(map[int]int),
	}

	if len(method.Code) > 0 {
		entry := frame.NewState(method.MaxLocals, method.MaxStack, factory)
		for i, p := range target.CallingConvention(method.Signature, method.IsStatic, factory) {
			entry.Set(i, p)
		}
		d.work.Enqueue(0, entry)
	}

	// Exception-handler entries are seeded up front, independently of
	// whether mainline dispatch ever reaches them by a branch edge:
	// they are only ever entered from the deferred adapter stubs
	// materialized after mainline compilation (spec.md §4.7, §4.8).
	for _, h := range method.Handlers {
		hs := frame.NewState(method.MaxLocals, method.MaxStack, factory)
		hs.SeedCanonicalLocals()
		// The worklist's copy of hs is handed to compileBlock and mutated
		// in place as the handler body compiles (ResetForHandlerEntry,
		// then every load/store it contains). handlerTargets keeps a
		// frozen clone of the as-seeded state, taken before that
		// mutation ever starts, as the one thing every adapter
		// reconciles against.
		d.handlerTargets[h.HandlerBCI] = hs.Clone()
		d.work.Enqueue(h.HandlerBCI, hs)
	}

	logger.Printf("compiling %s: %d bytes, %d handler(s)", method.Identity, len(method.Code), len(method.Handlers))

	for {
		bci := d.work.Dequeue()
		if bci < 0 {
			break
		}
		if err := d.compileBlock(bci); err != nil {
			return nil, err
		}
	}

	warnings, err := d.materializeAdapters(rt)
	if err != nil {
		return nil, err
	}

	logger.Printf("compiled %s: %d register(s), %d adapter warning(s)", method.Identity, factory.RegisterCount(), len(warnings))

	return &Artifact{
		Method:          method.Identity,
		BytecodeOffsets: d.bytecodeOffsets,
		BlockOffsets:    d.blockOffsets,
		RegisterCount:   factory.RegisterCount(),
		Warnings:        warnings,
	}, nil
}

// materializeAdapters drains the exception-adapter queue, emitting for
// each entry a spill sequence that reconciles its trap-site snapshot
// against the handler's canonical entryState, followed by a jump into
// the handler (spec.md §4.7, §4.8 step 4).
//
// The reconciliation target is d.handlerTargets[handlerBCI], not
// d.work.BlockState(handlerBCI).EntryState: the latter is the very
// *frame.State compileBlock dispatched the handler body through, and by
// the time materializeAdapters runs (after the whole worklist has
// drained) the handler's own loads and stores have already overwritten
// whatever SeedCanonicalLocals installed there. handlerTargets holds
// the frozen clone taken before any of that mutation happened, so it
// stays the one fixed target every adapter actually reconciles
// against.
//
// An adapter whose handler was never seeded, or whose catch type is
// still unresolved, is skipped with errs.AdapterSkipped rather than
// failing the whole compilation: neither condition is a structural
// inconsistency in the compiler itself, and modeling runtime
// exception-class filtering is out of scope (spec.md §7).
func (d *dispatcher) materializeAdapters(rt codegen.RuntimeQuery) ([]error, error) {
	var warnings []error
	for _, a := range d.adapters.Drain() {
		target := d.handlerTargets[a.Handler.HandlerBCI]
		if target == nil {
			warnings = append(warnings, errs.AdapterSkipped{
				TrapBCI: a.TrapBCI, HandlerBCI: a.Handler.HandlerBCI,
				Reason: "handler block was never seeded",
			})
			continue
		}
		if t, ok := a.Handler.CatchType.(codegen.TypeRef); ok && t != nil && !rt.IsResolved(t) {
			warnings = append(warnings, errs.AdapterSkipped{
				TrapBCI: a.TrapBCI, HandlerBCI: a.Handler.HandlerBCI,
				Reason: "catch type is not yet resolved",
			})
			continue
		}
		a.Snapshot.Reconcile(d.move, target)
		d.gen.Instrumentation(a.TrapBCI, fmt.Sprintf("exception adapter -> handler %d", a.Handler.HandlerBCI))
		d.gen.Goto(a.Handler.HandlerBCI)
	}
	return warnings, nil
}

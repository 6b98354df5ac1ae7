// Package compiler implements jvmc's orchestrator: the worklist-driven
// walk over basic blocks, the per-block opcode dispatcher, and the
// deferred exception-adapter materialization pass that together turn a
// method's bytecode into a linear sequence of code-generator calls
// (spec.md §4, §5).
package compiler

import "jvmc/frame"

// BlockState tracks one basic block's progress through compilation: the
// entry FrameState it was first seeded with, whether it has already
// been generated, and the code offset its first instruction landed at
// (spec.md §4.6).
type BlockState struct {
	Generated  bool
	CodeOffset int
	EntryState *frame.State
}

// Worklist is the LIFO block-ordering structure of spec.md §4.6: a
// stack of pending block bcis paired with a map from bci to the
// BlockState accumulated for it so far. The first arrival at a block
// wins its entryState; every later arrival must reconcile against that
// already-committed state rather than overwrite it.
type Worklist struct {
	stack  []int
	blocks map[int]*BlockState
}

// NewWorklist returns an empty Worklist.
func NewWorklist() *Worklist {
	return &Worklist{blocks: make(map[int]*BlockState)}
}

// Enqueue records an arrival at bci carrying state. If bci has not been
// seen before, state becomes its entryState outright and bci is pushed
// onto the stack for later processing; Enqueue returns (state, true)
// to tell the caller it retains ownership of state. If bci has already
// been seen, its existing entryState is left untouched and returned
// instead, with firstArrival==false telling the caller it must reconcile its own
// state against the returned one (spec.md §4.6, §4.9) rather than
// assume ownership.
func (w *Worklist) Enqueue(bci int, state *frame.State) (entryState *frame.State, firstArrival bool) {
	if bs, seen := w.blocks[bci]; seen {
		return bs.EntryState, false
	}
	bs := &BlockState{EntryState: state}
	w.blocks[bci] = bs
	w.stack = append(w.stack, bci)
	return state, true
}

// BlockState returns the BlockState recorded for bci, or nil if bci has
// never been enqueued.
func (w *Worklist) BlockState(bci int) *BlockState {
	return w.blocks[bci]
}

// Dequeue pops the most recently pushed pending bci, or -1 if the
// worklist is empty (spec.md §4.6: "depth-first, most-recently-seen
// block first").
func (w *Worklist) Dequeue() int {
	n := len(w.stack)
	if n == 0 {
		return -1
	}
	bci := w.stack[n-1]
	w.stack = w.stack[:n-1]
	return bci
}

// Empty reports whether no blocks remain pending.
func (w *Worklist) Empty() bool { return len(w.stack) == 0 }

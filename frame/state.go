// Package frame implements jvmc's per-block abstract value environment:
// the FrameState mapping each local-variable slot and each operand-stack
// slot to a Location, plus the spill protocol used to reconcile
// divergent states at control-flow merge points (spec.md §3, §4.4, §4.9).
package frame

import (
	"errors"

	"jvmc/location"
)

// ErrStackUnderflow is returned by the Pop family when the operand
// stack does not hold enough values for the requested operation.
var ErrStackUnderflow = errors.New("frame: stack underflow")

// MoveFunc emits a move from one Location to another. The spill
// protocol is the only place FrameState needs to talk to the code
// generator, so it takes this narrow callback rather than depending on
// the codegen package directly.
type MoveFunc func(from, to location.Location)

// State is the symbolic snapshot of local-variable slots and
// operand-stack slots at a program point (spec.md §3).
//
// state[i] is the most recent authoritative location for slot i (the
// zero Location means undefined). memory[i] is the location currently
// stored at slot i's spill address, if any. StackIndex is the next
// free operand-stack position, initially maxLocals.
type State struct {
	maxLocals int
	maxStack  int

	StackIndex int

	state   []location.Location
	memory  []location.Location
	factory *location.Factory
}

// NewState returns a State with StackIndex at maxLocals and every slot
// undefined. factory is used to materialize canonical stack-slot
// Locations during spilling; it must be shared across every State in a
// single compilation (spec.md §4.3).
func NewState(maxLocals, maxStack int, factory *location.Factory) *State {
	n := maxLocals + maxStack
	return &State{
		maxLocals:  maxLocals,
		maxStack:   maxStack,
		StackIndex: maxLocals,
		state:      make([]location.Location, n),
		memory:     make([]location.Location, n),
		factory:    factory,
	}
}

// MaxLocals returns the method's declared local-variable count.
func (s *State) MaxLocals() int { return s.maxLocals }

// MaxStack returns the method's declared operand-stack depth.
func (s *State) MaxStack() int { return s.maxStack }

// Len returns maxLocals+maxStack, the length of the state/memory arrays.
func (s *State) Len() int { return len(s.state) }

// Get returns the current Location of local/stack slot i.
func (s *State) Get(i int) location.Location { return s.state[i] }

// Set overwrites the current Location of local/stack slot i without
// touching StackIndex. Used for locals (iload/istore target a fixed
// index, not the stack top) and by Iinc's in-place update.
func (s *State) Set(i int, l location.Location) { s.state[i] = l }

// Clone returns an independent copy of s, as required whenever a
// control-flow edge has more than one consumer of the current state
// (spec.md §4.6). The underlying factory is shared, never copied.
func (s *State) Clone() *State {
	c := &State{
		maxLocals:  s.maxLocals,
		maxStack:   s.maxStack,
		StackIndex: s.StackIndex,
		state:      append([]location.Location(nil), s.state...),
		memory:     append([]location.Location(nil), s.memory...),
		factory:    s.factory,
	}
	return c
}

// ResetForHandlerEntry clears the operand stack and installs a single
// exception-reference Location at stack position 0, per spec.md §3's
// exception-handler entry-state invariant (StackIndex ==
// maxLocals+1). The caller produces exceptionReg via the code
// generator's exception-load call; this only fixes the bookkeeping.
func (s *State) ResetForHandlerEntry(exceptionReg location.Location) {
	for i := s.maxLocals; i < len(s.state); i++ {
		s.state[i] = location.Location{}
	}
	s.StackIndex = s.maxLocals
	s.state[s.maxLocals] = exceptionReg
	s.StackIndex++
}

// SeedCanonicalLocals installs every local slot's canonical stack-slot
// Location as both its current and its recorded-spilled-home value.
// This is how jvmc seeds the entryState of an exception-handler block
// before any adapter has reconciled against it (spec.md §4.7): since a
// handler can be reached from any trapping instruction anywhere in its
// protected range, there is no single register assignment every
// predecessor can agree on, so the handler commits up front to locals
// living at their canonical homes and every adapter spills there on
// its way in.
func (s *State) SeedCanonicalLocals() {
	for i := 0; i < s.maxLocals; i++ {
		home := s.factory.Slot(i)
		s.state[i] = home
		s.memory[i] = home
	}
}

// Push1 pushes a single-word value.
func (s *State) Push1(l location.Location) {
	s.state[s.StackIndex] = l
	s.StackIndex++
}

// Push2 pushes a double-word value: l occupies the lower of the two
// slots it consumes, and the slot above it is cleared to the null
// sentinel.
//
// This is the opposite placement from the "null sentinel below the
// value" wording elsewhere (spec.md §3, §4.5); jvmc keeps value-at-
// lower because that is what Pop2 and popArgs (ops.go) both already
// assume when reading a double-word value back off the stack, and
// nothing here depends on which half is the sentinel as long as
// Push2/Pop2 agree with each other.
func (s *State) Push2(l location.Location) {
	s.state[s.StackIndex] = l
	s.state[s.StackIndex+1] = location.Location{}
	s.StackIndex += 2
}

// Pop1 pops and returns a single-word value.
func (s *State) Pop1() (location.Location, error) {
	if s.StackIndex <= s.maxLocals {
		return location.Location{}, ErrStackUnderflow
	}
	s.StackIndex--
	return s.state[s.StackIndex], nil
}

// Pop2 pops a double-word value and returns the lower slot's Location,
// where Push2 put the value (the null sentinel above it is simply
// discarded).
func (s *State) Pop2() (location.Location, error) {
	if s.StackIndex-2 < s.maxLocals {
		return location.Location{}, ErrStackUnderflow
	}
	s.StackIndex -= 2
	return s.state[s.StackIndex], nil
}

// PopN returns the top n slot-values in source order (bottom-most
// first) and decrements StackIndex by n. Used for invoke argument
// collection (spec.md §4.4): for non-static invokes the receiver is
// the first element of the result.
func (s *State) PopN(n int) ([]location.Location, error) {
	if n == 0 {
		return nil, nil
	}
	if s.StackIndex-n < s.maxLocals {
		return nil, ErrStackUnderflow
	}
	out := make([]location.Location, n)
	copy(out, s.state[s.StackIndex-n:s.StackIndex])
	s.StackIndex -= n
	return out, nil
}

// Load1 pushes the current value of local i onto the stack.
func (s *State) Load1(i int) {
	s.Push1(s.state[i])
}

// Load2 pushes the current (double-word) value of local i onto the
// stack: the local's value, then a null sentinel.
func (s *State) Load2(i int) {
	s.Push2(s.state[i])
}

// Store1 pops a single-word value and stores it at local i.
func (s *State) Store1(i int) error {
	v, err := s.Pop1()
	if err != nil {
		return err
	}
	s.state[i] = v
	return nil
}

// Store2 pops a double-word value and stores it at local i, clearing
// the companion sentinel slot i+1.
//
// Open question #2 (spec.md §9): the cited source writes state[i]
// twice in a way that ends up overwriting it with the slot just below
// it, which is inconsistent with double-word store semantics. jvmc
// does not reproduce that: it pops the value and the null sentinel
// above it (Pop2), places the value at i, and clears i+1 explicitly.
func (s *State) Store2(i int) error {
	v, err := s.Pop2()
	if err != nil {
		return err
	}
	s.state[i] = v
	s.state[i+1] = location.Location{}
	return nil
}

// PushX pushes l using the single- or double-word convention selected
// by kind.
func (s *State) PushX(l location.Location, kind location.Kind) {
	if kind.Slots() == 2 {
		s.Push2(l)
	} else {
		s.Push1(l)
	}
}

// PopX pops a single- or double-word value, selected by kind.
func (s *State) PopX(kind location.Kind) (location.Location, error) {
	if kind.Slots() == 2 {
		return s.Pop2()
	}
	return s.Pop1()
}

// PushZ pushes l only if kind is not Void, for call-site return-value
// handling (spec.md §4.4): a void-returning invoke pushes nothing.
func (s *State) PushZ(l location.Location, kind location.Kind) {
	if kind == location.Void {
		return
	}
	s.PushX(l, kind)
}

// spillRange emits a move for every slot in [0,upTo) whose current
// location is non-null and differs from its recorded spill home,
// updating both arrays to the canonical stack-slot location when kill
// is true (spec.md §4.9, invariant I6).
func (s *State) spillRange(move MoveFunc, upTo int, kill bool) {
	for i := 0; i < upTo; i++ {
		cur := s.state[i]
		if cur.IsZero() || cur == s.memory[i] {
			continue
		}
		home := s.factory.Slot(i)
		move(cur, home)
		if kill {
			s.state[i] = home
			s.memory[i] = home
		}
	}
}

// SpillLocals spills every local-variable slot ([0,maxLocals)).
func (s *State) SpillLocals(move MoveFunc, kill bool) {
	s.spillRange(move, s.maxLocals, kill)
}

// SpillAll spills every currently-occupied slot ([0,StackIndex)).
func (s *State) SpillAll(move MoveFunc, kill bool) {
	s.spillRange(move, s.StackIndex, kill)
}

// SpillSome spills every slot in [0,upTo).
func (s *State) SpillSome(move MoveFunc, upTo int, kill bool) {
	s.spillRange(move, upTo, kill)
}

// Reconcile makes s agree with target's entry placement before a
// control transfer to a block whose entryState (target) was already
// committed by an earlier arrival (spec.md §4.6, §4.9, open question
// #3). For every slot target has a value recorded for, s moves its own
// current value into that exact Location if the two don't already
// match — never into some other, freshly chosen home. This matters
// because the earlier arrival's code was already emitted assuming
// target's Location for that slot; moving into anything else would
// leave the block's actual predecessor code reading from the wrong
// place. (If target itself holds a canonical stack-slot Location —
// e.g. a handler entryState seeded by SeedCanonicalLocals, or a block
// that has already been spilled — the reconciling move naturally lands
// there instead, since that's simply target's recorded Location.)
//
// This is the single reconciliation mechanism jvmc uses; no phi
// functions are constructed, and the caller — never FrameState itself
// — decides when to call this (spec.md design note: merge does not
// auto-reconcile).
func (s *State) Reconcile(move MoveFunc, target *State) {
	n := target.StackIndex
	if s.StackIndex > n {
		n = s.StackIndex
	}
	for i := 0; i < n; i++ {
		cur := s.state[i]
		want := target.state[i]
		if cur.IsZero() || want.IsZero() || cur == want {
			continue
		}
		move(cur, want)
		s.state[i] = want
		if want.IsStackSlot() {
			s.memory[i] = want
		}
	}
}

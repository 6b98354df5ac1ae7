// Package location implements jvmc's Location model: the tagged union of
// virtual register and canonical stack slot that the frame state maps
// every local and operand-stack position to (spec.md §3, §4.3).
package location

import "fmt"

// Kind is a JVM primitive type tag (spec.md §3). Each kind carries a
// stack-push coercion (the type it widens to when loaded) and a size in
// slots (1 for single-word, 2 for the double-word kinds Long/Double).
type Kind int8

const (
	Boolean Kind = iota
	Byte
	Char
	Short
	Int
	Long
	Float
	Double
	Object
	Void
)

var kindNames = [...]string{"boolean", "byte", "char", "short", "int", "long", "float", "double", "object", "void"}

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("<unknown kind %d>", int8(k))
	}
	return kindNames[k]
}

// Slots reports the number of stack/local slots a value of kind k
// occupies: 2 for Long/Double, 1 for everything else including Void
// (Void never actually occupies a slot; callers guard with PushZ).
func (k Kind) Slots() int {
	if k == Long || k == Double {
		return 2
	}
	return 1
}

// StackKind returns the kind a value is coerced to when pushed onto the
// operand stack: boolean/byte/char/short all widen to Int, matching the
// JVM's load-time widening rule.
func (k Kind) StackKind() Kind {
	switch k {
	case Boolean, Byte, Char, Short:
		return Int
	default:
		return k
	}
}

// tag discriminates the two Location variants, plus the zero value.
//
// tagInvalid must stay the zero value of tag: it is what makes the
// zero Location{} (the "no value" sentinel used throughout frame.State)
// distinguishable from a legitimate Register(0, Boolean). Without it,
// tagRegister being the zero tag, Boolean being the zero Kind, and
// Factory.next starting at 0 would all line up to make the first
// Boolean register a factory ever hands out compare equal to the null
// sentinel.
type tag int8

const (
	tagInvalid tag = iota
	tagRegister
	tagStackSlot
)

// Location is a tagged, immutable-once-constructed value denoting either
// a virtual register or a canonical stack slot (spec.md §3).
type Location struct {
	tag   tag
	reg   int
	kind  Kind
	index int
}

// Register constructs a virtual-register Location. The dispatcher never
// calls this directly; it exists for Factory, for Generator
// implementations that number their own results, and for tests that
// need to compare against a known id.
func Register(id int, kind Kind) Location {
	return Location{tag: tagRegister, reg: id, kind: kind}
}

// StackSlot constructs a canonical stack-slot Location for the given
// slot index (spec.md §3: in [0,maxLocals) for locals, in
// [maxLocals,maxLocals+maxStack) for operand-stack positions).
func StackSlot(index int) Location {
	return Location{tag: tagStackSlot, index: index}
}

// IsRegister reports whether l is a virtual register.
func (l Location) IsRegister() bool { return l.tag == tagRegister }

// IsStackSlot reports whether l is a canonical stack slot.
func (l Location) IsStackSlot() bool { return l.tag == tagStackSlot }

// IsZero reports whether l is the zero Location (used as the "null"
// sentinel for unoccupied slots and the upper, sentinel half of
// double-word values — spec.md §3 invariants).
func (l Location) IsZero() bool { return l == Location{} }

// RegisterID returns the register number. Only valid if IsRegister.
func (l Location) RegisterID() int { return l.reg }

// Kind returns the primitive type tag of a register Location. Only
// valid if IsRegister.
func (l Location) Kind() Kind { return l.kind }

// SlotIndex returns the canonical slot index. Only valid if IsStackSlot.
func (l Location) SlotIndex() int { return l.index }

func (l Location) String() string {
	switch l.tag {
	case tagRegister:
		return fmt.Sprintf("R%d:%s", l.reg, l.kind)
	case tagStackSlot:
		return fmt.Sprintf("S%d", l.index)
	default:
		return "<null>"
	}
}

// Factory hands out fresh virtual registers and lazily materializes the
// stack-slot pool. Registers are allocated the instant they're created
// (spec.md §4.3): there is no liveness analysis, and the factory itself
// never reclaims a register id. The same physical stack slot always
// corresponds to the same local/operand index across the method — the
// simplification that makes single-pass compilation possible.
type Factory struct {
	next  int
	slots map[int]Location
}

// NewFactory returns a Factory with its register counter at zero.
func NewFactory() *Factory {
	return &Factory{slots: make(map[int]Location)}
}

// NewRegister allocates and returns a fresh virtual register of the
// given kind. The id is monotonically increasing for the lifetime of
// the compilation.
func (f *Factory) NewRegister(kind Kind) Location {
	l := Register(f.next, kind)
	f.next++
	return l
}

// Slot returns the canonical stack-slot Location for index, creating it
// on first demand (spec.md §4.3).
func (f *Factory) Slot(index int) Location {
	if l, ok := f.slots[index]; ok {
		return l
	}
	l := StackSlot(index)
	f.slots[index] = l
	return l
}

// RegisterCount returns how many registers have been allocated so far.
func (f *Factory) RegisterCount() int { return f.next }

// Package errs implements the three error kinds of spec.md §7: the
// compilation-fatal Bailout, the narrow benign-non-fatal
// AdapterSkipped warning token, and nothing else — runtime conditions
// (null pointer, divide-by-zero, ...) are not compile-time errors at
// all and have no representation here.
package errs

import "fmt"

// Bailout is a fatal-per-compilation failure: any internal
// inconsistency aborts the current compilation, discarding every
// partial structure without emitting an artifact (spec.md §7). It is
// never caught inside the core; the compiler package (its dispatcher
// and orchestrator) is the only place that constructs and returns one.
type Bailout struct {
	Method string
	Reason string
	Cause  error
}

func (b *Bailout) Error() string {
	if b.Cause != nil {
		return fmt.Sprintf("bailout compiling %s: %s: %v", b.Method, b.Reason, b.Cause)
	}
	return fmt.Sprintf("bailout compiling %s: %s", b.Method, b.Reason)
}

// Unwrap exposes Cause to errors.Is/errors.As.
func (b *Bailout) Unwrap() error { return b.Cause }

// NewBailout constructs a Bailout with no underlying cause.
func NewBailout(method, reason string) *Bailout {
	return &Bailout{Method: method, Reason: reason}
}

// Wrap constructs a Bailout wrapping an underlying error as its cause.
func Wrap(method, reason string, cause error) *Bailout {
	return &Bailout{Method: method, Reason: reason, Cause: cause}
}

// AdapterSkipped is the single benign-non-fatal condition spec.md §7
// names: a deferred exception-adapter site whose materialization
// isn't implemented is skipped with this warning rather than failing
// the whole compilation. Expanding this kind to cover anything else is
// a deliberate design decision, not a default.
type AdapterSkipped struct {
	TrapBCI    int
	HandlerBCI int
	Reason     string
}

func (a AdapterSkipped) Error() string {
	return fmt.Sprintf("adapter at bci %d for handler %d skipped: %s", a.TrapBCI, a.HandlerBCI, a.Reason)
}

// Package amd64 is jvmc's reference codegen.Generator: it assembles
// genuine AMD64 machine code for a curated subset of Generator calls
// via golang-asm, hands the rest off to a small runtime call-out
// lowering, and serves the assembled bytes from an mmap'd executable
// arena (SPEC_FULL.md §4, grounded on
// exec/internal/compile/backend_amd64.go and allocator_test.go).
package amd64

import (
	"fmt"

	"github.com/edsrzf/mmap-go"
)

const (
	minAllocSize        = 64 * 1024
	allocationAlignment = 32
)

// execBlock is one mmap'd page range handed out to the allocator.
type execBlock struct {
	mem       mmap.MMap
	consumed  uint32
	remaining uint32
}

// MMapAllocator carves executable byte ranges out of a growing set of
// mmap'd RWX arenas, one bump-allocator block at a time, grounded on
// exec/internal/compile/allocator_test.go's MMapAllocator/AllocateExec
// contract (minAllocSize, allocationAlignment, consumed/remaining
// bookkeeping).
type MMapAllocator struct {
	blocks []*execBlock
	last   *execBlock
}

// AllocateExec copies code into executable memory and returns it as a
// live, callable byte slice backed by that memory (spec.md's notion of
// "genuinely runnable" code, not just an assembled byte slice).
func (a *MMapAllocator) AllocateExec(code []byte) ([]byte, error) {
	size := uint32(len(code))
	if a.last == nil || a.last.remaining < size {
		if err := a.growBy(size); err != nil {
			return nil, err
		}
	}
	b := a.last
	start := b.consumed
	copy(b.mem[start:], code)
	b.consumed += size
	aligned := align(size, allocationAlignment)
	if aligned > b.remaining {
		aligned = b.remaining
	}
	b.remaining -= aligned
	return b.mem[start : start+size], nil
}

func align(n uint32, to uint32) uint32 {
	return ((n + to - 1) / to) * to
}

func (a *MMapAllocator) growBy(atLeast uint32) error {
	size := uint32(minAllocSize)
	for size < atLeast {
		size *= 2
	}
	mem, err := mmap.MapRegion(nil, int(size), mmap.RDWR|mmap.EXEC, mmap.ANON, 0)
	if err != nil {
		return fmt.Errorf("amd64: mmap executable arena: %w", err)
	}
	b := &execBlock{mem: mem, remaining: size}
	a.blocks = append(a.blocks, b)
	a.last = b
	return nil
}

// Close unmaps every arena the allocator has grown. Any code handed
// out by AllocateExec becomes invalid after this call.
func (a *MMapAllocator) Close() error {
	var firstErr error
	for _, b := range a.blocks {
		if err := b.mem.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.blocks = nil
	a.last = nil
	return firstErr
}

package handler

import "testing"

func TestFirstMatchWins(t *testing.T) {
	tbl := NewTable([]Entry{
		{StartBCI: 0, EndBCI: 10, HandlerBCI: 20, CatchType: "Narrow"},
		{StartBCI: 0, EndBCI: 10, HandlerBCI: 30, CatchType: "Wide"},
	})
	e, ok := tbl.First(5)
	if !ok {
		t.Fatal("expected a covering handler")
	}
	if e.HandlerBCI != 20 {
		t.Fatalf("First() returned HandlerBCI %d, want the first-in-source-order handler (20)", e.HandlerBCI)
	}
}

func TestCoveringReturnsAll(t *testing.T) {
	tbl := NewTable([]Entry{
		{StartBCI: 0, EndBCI: 10, HandlerBCI: 20},
		{StartBCI: 0, EndBCI: 10, HandlerBCI: 30},
		{StartBCI: 10, EndBCI: 20, HandlerBCI: 40},
	})
	covering := tbl.Covering(5)
	if len(covering) != 2 {
		t.Fatalf("Covering(5) returned %d entries, want 2", len(covering))
	}
	if len(tbl.Covering(15)) != 1 {
		t.Fatal("Covering(15) should only match the third entry")
	}
	if len(tbl.Covering(99)) != 0 {
		t.Fatal("Covering(99) should match nothing")
	}
}

func TestRangeIsHalfOpen(t *testing.T) {
	tbl := NewTable([]Entry{{StartBCI: 0, EndBCI: 10, HandlerBCI: 20}})
	if _, ok := tbl.First(10); ok {
		t.Fatal("EndBCI should be exclusive")
	}
	if _, ok := tbl.First(9); !ok {
		t.Fatal("bci 9 should still be covered by a [0,10) range")
	}
}

func TestAdapterQueueFIFO(t *testing.T) {
	var q AdapterQueue
	q.Enqueue(1, Entry{HandlerBCI: 100}, nil)
	q.Enqueue(2, Entry{HandlerBCI: 200}, nil)
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}
	items := q.Drain()
	if len(items) != 2 || items[0].TrapBCI != 1 || items[1].TrapBCI != 2 {
		t.Fatalf("Drain() = %+v, want FIFO order [1 2]", items)
	}
	if q.Len() != 0 {
		t.Fatal("Drain() should empty the queue")
	}
}

func TestNilTableIsSafe(t *testing.T) {
	var tbl *Table
	if _, ok := tbl.First(0); ok {
		t.Fatal("a nil Table should report no handlers")
	}
	if got := tbl.Covering(0); got != nil {
		t.Fatal("a nil Table's Covering should return nil")
	}
	if got := tbl.Entries(); got != nil {
		t.Fatal("a nil Table's Entries should return nil")
	}
}

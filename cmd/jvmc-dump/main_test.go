package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestProcess(t *testing.T) {
	*flagDis = true
	*flagBlocks = true
	*flagCalls = true

	out := new(bytes.Buffer)
	if err := process(out, "testdata/add.json"); err != nil {
		t.Fatal(err)
	}

	got := out.String()
	for _, want := range []string{
		"add (0 param(s), returns int, 0 local(s), 2 stack slot(s))",
		"disassembly:",
		"iconst_3",
		"iconst_4",
		"iadd",
		"ireturn",
		"block map:",
		"0: block start",
		"generator calls:",
		"registers allocated:",
		"bytecode offsets:",
		"block offsets:",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q\nfull output:\n%s", want, got)
		}
	}
}

func TestProcessMissingFixture(t *testing.T) {
	out := new(bytes.Buffer)
	if err := process(out, "testdata/does-not-exist.json"); err == nil {
		t.Fatal("expected an error for a missing fixture file")
	}
}

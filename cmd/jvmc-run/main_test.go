package main

import (
	"bytes"
	"os"
	"testing"
)

func TestRun(t *testing.T) {
	for _, tc := range []struct {
		name string
		want string
	}{
		{name: "testdata/add.json", want: "testdata/add.json.txt"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			out := new(bytes.Buffer)
			if err := run(out, tc.name, false); err != nil {
				t.Fatal(err)
			}

			want, err := os.ReadFile(tc.want)
			if err != nil {
				t.Fatal(err)
			}
			if got := out.String(); got != string(want) {
				t.Fatalf("invalid output.\ngot:\n%s\nwant:\n%s\n", got, want)
			}
		})
	}
}

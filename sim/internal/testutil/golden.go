// Package testutil provides shared test infrastructure for the terminal simulator.
// It holds golden-file loading and assertion helpers used across sim/ test packages.
package testutil

import (
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// GoldenPath returns the path of testdata/<name> at the repository root.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func GoldenPath(t *testing.T, name string) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	return filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", name)
}

// LoadGolden reads a golden file from the repository testdata directory.
func LoadGolden(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(GoldenPath(t, name))
	if err != nil {
		t.Fatalf("Failed to read golden file %s: %v", name, err)
	}
	return string(data)
}

// AssertGolden compares got with the named golden file line by line and reports
// the first differing line.
func AssertGolden(t *testing.T, name, got string) {
	t.Helper()
	want := LoadGolden(t, name)
	if got == want {
		return
	}
	wantLines := strings.Split(want, "\n")
	gotLines := strings.Split(got, "\n")
	for i := 0; i < len(wantLines) || i < len(gotLines); i++ {
		var w, g string
		if i < len(wantLines) {
			w = wantLines[i]
		}
		if i < len(gotLines) {
			g = gotLines[i]
		}
		if w != g {
			t.Errorf("%s line %d:\n got: %q\nwant: %q", name, i+1, g, w)
			return
		}
	}
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

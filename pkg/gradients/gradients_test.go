package gradients

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const (
	singleShellBvals = "0 1000 1000 1000 5\n"
	singleShellBvecs = `0 1 0 0 0
0 0 1 0 0
0 0 0 1 0
`
	multiShellBvals = "0 995 1005 2000 2010 3000\n"
	multiShellBvecs = `0 1 0 0 0.7071 1
0 0 1 0 0.7071 0
0 0 0 1 0 0
`
)

func writeTable(t *testing.T, bvecs, bvals string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	vec := filepath.Join(dir, "bvecs")
	val := filepath.Join(dir, "bvals")
	if err := os.WriteFile(vec, []byte(bvecs), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(val, []byte(bvals), 0644); err != nil {
		t.Fatal(err)
	}
	return vec, val
}

func TestLoad(t *testing.T) {
	vec, val := writeTable(t, singleShellBvecs, singleShellBvals)
	tbl, err := Load(vec, val)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tbl.Len() != 5 {
		t.Errorf("Len() = %d, want 5", tbl.Len())
	}
	if err := tbl.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	if got := tbl.BZeros(); got != 2 {
		t.Errorf("BZeros() = %d, want 2", got)
	}
	if got := tbl.Dirs.At(1, 2); got != 1 {
		t.Errorf("Dirs(1,2) = %g, want 1", got)
	}
}

func TestLoad_ColumnLayout(t *testing.T) {
	bvecs := "0 0 0\n1 0 0\n0 1 0\n0 0 1\n"
	bvals := "0\n1000\n1000\n1000\n"
	vec, val := writeTable(t, bvecs, bvals)
	tbl, err := Load(vec, val)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if r, c := tbl.Dirs.Dims(); r != 3 || c != 4 {
		t.Errorf("Dims() = %d x %d, want 3 x 4", r, c)
	}
	if err := tbl.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		bvecs   string
		bvals   string
		wantErr string
	}{
		{"empty bvals", singleShellBvecs, "\n", "bvals file is empty"},
		{"bad number", singleShellBvecs, "0 1000 abc\n", "invalid number"},
		{"two bvec rows", "0 1\n0 0\n", "0 1000\n", "three rows"},
		{"ragged bvecs", "0 1 0\n0 0\n0 0 1\n", "0 1000 1000\n", "three rows"},
		{"matrix bvals", singleShellBvecs, "0 1\n1000 1000\n", "one row or one column"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			vec, val := writeTable(t, tc.bvecs, tc.bvals)
			_, err := Load(vec, val)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Load() = %v, want error containing %q", err, tc.wantErr)
			}
		})
	}

	if _, err := Load("/nonexistent/bvecs", "/nonexistent/bvals"); err == nil {
		t.Error("missing files should fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		bvecs   string
		bvals   string
		wantErr string
	}{
		{"ok", singleShellBvecs, singleShellBvals, ""},
		{"count mismatch", singleShellBvecs, "0 1000 1000\n", "3 b-values but 5 directions"},
		{"not unit", "0 2\n0 0\n0 0\n", "0 1000\n", "not unit length"},
		{"b0 direction ignored", "0.3 1\n0 0\n0 0\n", "0 1000\n", ""},
		{"within tolerance", "0 1.05\n0 0\n0 0\n", "0 1000\n", ""},
		{"negative", "0 1\n0 0\n0 0\n", "-5 1000\n", "negative b-value"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			vec, val := writeTable(t, tc.bvecs, tc.bvals)
			tbl, err := Load(vec, val)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			err = tbl.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Validate() = %v, want %q", err, tc.wantErr)
			}
		})
	}
}

func TestValidate_MismatchIs(t *testing.T) {
	vec, val := writeTable(t, singleShellBvecs, "0 1000\n")
	tbl, err := Load(vec, val)
	if err != nil {
		t.Fatal(err)
	}
	if err := tbl.Validate(); !errors.Is(err, ErrMismatch) {
		t.Errorf("Validate() = %v, want ErrMismatch", err)
	}
}

func TestShells(t *testing.T) {
	vec, val := writeTable(t, multiShellBvecs, multiShellBvals)
	tbl, err := Load(vec, val)
	if err != nil {
		t.Fatal(err)
	}
	want := []Shell{
		{BValue: 1000, Count: 2},
		{BValue: 2005, Count: 2},
		{BValue: 3000, Count: 1},
	}
	if diff := cmp.Diff(want, tbl.Shells(100)); diff != "" {
		t.Errorf("Shells mismatch (-want +got):\n%s", diff)
	}
	if got := tbl.SuggestAlgorithm(100); got != AlgorithmMultiShell {
		t.Errorf("SuggestAlgorithm() = %q, want %q", got, AlgorithmMultiShell)
	}
}

func TestSuggestAlgorithm_SingleShell(t *testing.T) {
	vec, val := writeTable(t, singleShellBvecs, singleShellBvals)
	tbl, err := Load(vec, val)
	if err != nil {
		t.Fatal(err)
	}
	if got := tbl.Shells(100); len(got) != 1 || got[0].BValue != 1000 || got[0].Count != 3 {
		t.Errorf("Shells() = %+v", got)
	}
	if got := tbl.SuggestAlgorithm(100); got != AlgorithmSingleShell {
		t.Errorf("SuggestAlgorithm() = %q, want %q", got, AlgorithmSingleShell)
	}
}

func TestShells_OnlyBZeros(t *testing.T) {
	tbl, err := FromRows([][]float64{{0, 0}, {0, 0}, {0, 0}}, [][]float64{{0, 5}})
	if err != nil {
		t.Fatal(err)
	}
	if got := tbl.Shells(100); got != nil {
		t.Errorf("Shells() = %+v, want nil", got)
	}
	if got := tbl.SuggestAlgorithm(100); got != AlgorithmSingleShell {
		t.Errorf("SuggestAlgorithm() = %q", got)
	}
}

func TestParseMatrix_CommentsAndCommas(t *testing.T) {
	rows, err := parseMatrix(strings.NewReader("# header\n\n1,2, 3\n4\t5 6\n"))
	if err != nil {
		t.Fatal(err)
	}
	want := [][]float64{{1, 2, 3}, {4, 5, 6}}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("parseMatrix mismatch (-want +got):\n%s", diff)
	}
}

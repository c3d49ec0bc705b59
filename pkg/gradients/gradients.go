// Package gradients reads FSL-format diffusion gradient tables (bvals/bvecs)
// and checks them before any MRtrix3 command is started.
package gradients

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// BZeroThreshold is the largest b-value still treated as a b=0 volume.
const BZeroThreshold = 10.0

// NormTolerance bounds how far a diffusion direction may stray from unit length.
const NormTolerance = 0.1

// Response estimation algorithms picked by SuggestAlgorithm.
const (
	AlgorithmSingleShell = "tournier"
	AlgorithmMultiShell  = "dhollander"
)

var ErrMismatch = errors.New("gradient table mismatch")

// Table is a gradient scheme: one b-value and one direction per volume.
type Table struct {
	BVals []float64
	Dirs  *mat.Dense // 3 x N
}

// Shell is a cluster of similar non-zero b-values.
type Shell struct {
	BValue float64
	Count  int
}

// Load reads an FSL bvecs/bvals pair.
func Load(bvecPath, bvalPath string) (*Table, error) {
	bvals, err := readMatrix(bvalPath)
	if err != nil {
		return nil, fmt.Errorf("read bvals: %w", err)
	}
	bvecs, err := readMatrix(bvecPath)
	if err != nil {
		return nil, fmt.Errorf("read bvecs: %w", err)
	}
	return FromRows(bvecs, bvals)
}

// FromRows builds a Table from parsed bvec and bval rows. bvals may be a
// single row or a single column. bvecs are 3 rows of N, or N rows of 3.
func FromRows(bvecs, bvals [][]float64) (*Table, error) {
	var b []float64
	switch {
	case len(bvals) == 1:
		b = append(b, bvals[0]...)
	case len(bvals) > 1:
		for i, row := range bvals {
			if len(row) != 1 {
				return nil, fmt.Errorf("bvals row %d has %d values, want one row or one column", i+1, len(row))
			}
			b = append(b, row[0])
		}
	default:
		return nil, errors.New("bvals file is empty")
	}

	var dirs *mat.Dense
	switch {
	case len(bvecs) == 3 && sameWidth(bvecs):
		n := len(bvecs[0])
		data := make([]float64, 0, 3*n)
		for _, row := range bvecs {
			data = append(data, row...)
		}
		dirs = mat.NewDense(3, n, data)
	case len(bvecs) > 0 && sameWidth(bvecs) && len(bvecs[0]) == 3:
		n := len(bvecs)
		dirs = mat.NewDense(3, n, nil)
		for j, row := range bvecs {
			dirs.SetCol(j, row)
		}
	default:
		return nil, errors.New("bvecs must have three rows (or three columns) of equal length")
	}

	return &Table{BVals: b, Dirs: dirs}, nil
}

func sameWidth(rows [][]float64) bool {
	for _, r := range rows[1:] {
		if len(r) != len(rows[0]) {
			return false
		}
	}
	return len(rows[0]) > 0
}

// Len returns the number of volumes described by the b-values.
func (t *Table) Len() int {
	return len(t.BVals)
}

// Validate checks that bvals and bvecs describe the same number of volumes,
// that no b-value is negative, and that every diffusion-weighted direction
// has unit norm within NormTolerance.
func (t *Table) Validate() error {
	_, n := t.Dirs.Dims()
	if n != len(t.BVals) {
		return fmt.Errorf("%w: %d b-values but %d directions", ErrMismatch, len(t.BVals), n)
	}
	var errs []error
	col := make([]float64, 3)
	for j, b := range t.BVals {
		if b < 0 {
			errs = append(errs, fmt.Errorf("volume %d: negative b-value %g", j, b))
			continue
		}
		if b <= BZeroThreshold {
			continue
		}
		mat.Col(col, j, t.Dirs)
		if norm := floats.Norm(col, 2); math.Abs(norm-1) > NormTolerance {
			errs = append(errs, fmt.Errorf("volume %d: direction norm %.3f is not unit length", j, norm))
		}
	}
	return errors.Join(errs...)
}

// BZeros counts volumes at or below BZeroThreshold.
func (t *Table) BZeros() int {
	n := 0
	for _, b := range t.BVals {
		if b <= BZeroThreshold {
			n++
		}
	}
	return n
}

// Shells groups non-zero b-values that lie within tol of each other. Each
// shell reports its mean b-value rounded to the nearest integer. Shells are
// returned in ascending order.
func (t *Table) Shells(tol float64) []Shell {
	var weighted []float64
	for _, b := range t.BVals {
		if b > BZeroThreshold {
			weighted = append(weighted, b)
		}
	}
	if len(weighted) == 0 {
		return nil
	}
	slices.Sort(weighted)

	var shells []Shell
	var members []float64
	flush := func() {
		shells = append(shells, Shell{
			BValue: math.Round(floats.Sum(members) / float64(len(members))),
			Count:  len(members),
		})
		members = members[:0]
	}
	for _, b := range weighted {
		if len(members) > 0 && b-members[0] > tol {
			flush()
		}
		members = append(members, b)
	}
	flush()
	return shells
}

// SuggestAlgorithm picks the response estimation algorithm for the scheme:
// tournier for single-shell data, dhollander when several shells are present.
func (t *Table) SuggestAlgorithm(tol float64) string {
	if len(t.Shells(tol)) > 1 {
		return AlgorithmMultiShell
	}
	return AlgorithmSingleShell
}

func readMatrix(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseMatrix(f)
}

// parseMatrix reads whitespace or comma separated numbers, one row per line.
// Blank lines and lines starting with # are skipped.
func parseMatrix(r io.Reader) ([][]float64, error) {
	var rows [][]float64
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == ' ' || r == '\t' || r == ','
		})
		row := make([]float64, len(fields))
		for i, fld := range fields {
			v, err := strconv.ParseFloat(fld, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid number %q", line, fld)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// Package pipeline assembles the recon, track, filter and connectome
// workflows and threads their results through a shared Session so stages
// can be chained on one command line.
package pipeline

import (
	"fmt"
	"path/filepath"
)

// Session holds the values chained stages hand to each other. Empty
// fields are unset.
type Session struct {
	InFile string `json:"in_file,omitempty"`
	BVec   string `json:"bvec,omitempty"`
	BVal   string `json:"bval,omitempty"`
	Anat   string `json:"anat,omitempty"`
	ODF    string `json:"odf,omitempty"`
	Seed   string `json:"seed,omitempty"`
	TCK    string `json:"tck,omitempty"`
	Mask   string `json:"mask,omitempty"`
	FiveTT string `json:"five_tt,omitempty"`
	Parc   string `json:"parc,omitempty"`
	LUT    string `json:"lut,omitempty"`

	Connectome string `json:"connectome,omitempty"`
	ResultsDir string `json:"results_dir"`
}

func (s *Session) fields() map[string]*string {
	return map[string]*string{
		"in_file":     &s.InFile,
		"bvec":        &s.BVec,
		"bval":        &s.BVal,
		"anat":        &s.Anat,
		"odf":         &s.ODF,
		"seed":        &s.Seed,
		"tck":         &s.TCK,
		"mask":        &s.Mask,
		"five_tt":     &s.FiveTT,
		"parc":        &s.Parc,
		"lut":         &s.LUT,
		"connectome":  &s.Connectome,
		"results_dir": &s.ResultsDir,
	}
}

// Absolutize rewrites every set path relative to the current directory.
// Nodes run in their own working directories, so relative inputs would
// otherwise point nowhere.
func (s *Session) Absolutize() error {
	for name, p := range s.fields() {
		if *p == "" || filepath.IsAbs(*p) {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("session %s: %w", name, err)
		}
		*p = abs
	}
	return nil
}

// Inputs exposes the set fields for ${inputs.name} references.
func (s *Session) Inputs() map[string]string {
	out := make(map[string]string)
	for name, p := range s.fields() {
		if *p != "" {
			out[name] = *p
		}
	}
	return out
}

// require reports the first empty field among names, with a hint naming the
// flag or stage that fills it.
func (s *Session) require(names ...string) error {
	f := s.fields()
	for _, name := range names {
		if *f[name] == "" {
			return fmt.Errorf("no %s (%s)", name, hints[name])
		}
	}
	return nil
}

var hints = map[string]string{
	"in_file": "pass -i/--in_file",
	"bvec":    "pass -v/--bvec",
	"bval":    "pass -b/--bval",
	"anat":    "pass -a/--anat",
	"odf":     "run recon first or pass -o/--odf",
	"seed":    "run recon first or pass -s/--seed",
	"tck":     "run track first or pass filter -t/--tck",
	"parc":    "pass connectome --parc",
	"five_tt": "pass -a/--anat",
}

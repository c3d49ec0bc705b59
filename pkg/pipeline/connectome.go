package pipeline

import (
	"path/filepath"

	"trampolino/pkg/engine"
	"trampolino/pkg/interfaces/mrtrix3"
)

const KeyConnectome = "@connectome"

// Connectome counts streamlines between the regions of a parcellation.
// With an anatomical image the FreeSurfer subcortical segmentation is
// first replaced by FSL FIRST, using LUT as the connectome configuration.
type Connectome struct {
	Parc string
	LUT  string
}

func (Connectome) Name() string { return "connectome" }

func (Connectome) Nodes() []string { return []string{"parc", "connectome"} }

func (c Connectome) Build(s *Session, o *Options) (*engine.Workflow, error) {
	for _, f := range []struct {
		src string
		dst *string
	}{{c.Parc, &s.Parc}, {c.LUT, &s.LUT}} {
		if f.src == "" {
			continue
		}
		abs, err := filepath.Abs(f.src)
		if err != nil {
			return nil, err
		}
		*f.dst = abs
	}
	if err := s.require("tck", "parc"); err != nil {
		return nil, err
	}
	wf := o.newWorkflow(c.Name(), s)

	conn := add(wf, "connectome", mrtrix3.BuildConnectome).
		Set("in_file", s.TCK).
		Set("symmetric", true).
		Set("zero_diagonal", true)
	if s.Anat == "" {
		conn.Set("in_parc", s.Parc)
	} else {
		parc := add(wf, "parc", mrtrix3.ReplaceFSwithFIRST).
			Set("in_file", s.Parc).
			Set("in_t1w", s.Anat)
		if s.LUT != "" {
			parc.Set("in_config", s.LUT)
		}
		if err := wire(wf, engine.Edge{Src: "parc", SrcOutput: "out_file", Dst: "connectome", DstInput: "in_parc"}); err != nil {
			return nil, err
		}
	}
	if err := sinkAll(wf, engine.SinkEdge{Src: "connectome", SrcOutput: "out_file", Key: KeyConnectome}); err != nil {
		return nil, err
	}
	return wf, nil
}

func (Connectome) Apply(s *Session, res *engine.Result) {
	if out, ok := res.Sunk[KeyConnectome]; ok {
		s.Connectome = out
	}
}

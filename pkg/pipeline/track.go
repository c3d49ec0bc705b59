package pipeline

import (
	"path/filepath"

	"trampolino/pkg/engine"
	"trampolino/pkg/interfaces/mrtrix3"
)

// Sink keys of the track and filter workflows.
const (
	KeyTCK    = "@tck"
	KeyFiveTT = "@5tt"
	KeySIFT   = "@sift"
)

// Track runs streamline tractography on the session's FOD, seeded from
// the session seed. With an anatomical image the five-tissue-type image is
// prepared first and tracking is anatomically constrained.
type Track struct{}

func (Track) Name() string { return "track" }

func (Track) Nodes() []string { return []string{"act", "tckgen"} }

func (t Track) Build(s *Session, o *Options) (*engine.Workflow, error) {
	if err := s.require("odf", "seed"); err != nil {
		return nil, err
	}
	wf := o.newWorkflow(t.Name(), s)

	tck := add(wf, "tckgen", mrtrix3.Tractography).
		Set("in_file", s.ODF).
		Set("seed_image", s.Seed).
		Set("out_file", "tracking.tck")
	if o.Track.Algorithm != "" {
		tck.Set("algorithm", o.Track.Algorithm)
	}
	if o.Track.Select > 0 {
		tck.Set("select", o.Track.Select)
	}

	sinks := []engine.SinkEdge{{Src: "tckgen", SrcOutput: "out_file", Key: KeyTCK}}
	switch {
	case s.FiveTT != "":
		tck.Set("act_file", s.FiveTT)
	case s.Anat != "":
		add(wf, "act", mrtrix3.ACTPrepareFSL).Set("in_file", s.Anat)
		if err := wire(wf, engine.Edge{Src: "act", SrcOutput: "out_file", Dst: "tckgen", DstInput: "act_file"}); err != nil {
			return nil, err
		}
		sinks = append(sinks, engine.SinkEdge{Src: "act", SrcOutput: "out_file", Key: KeyFiveTT})
	}
	if err := sinkAll(wf, sinks...); err != nil {
		return nil, err
	}
	return wf, nil
}

func (Track) Apply(s *Session, res *engine.Result) {
	if tck, ok := res.Sunk[KeyTCK]; ok {
		s.TCK = tck
	}
	if ftt, ok := res.Sunk[KeyFiveTT]; ok {
		s.FiveTT = ftt
	}
}

// Filter applies SIFT to a tractogram: the one given with TCK, or the
// session's. The filtered tractogram replaces the session's.
type Filter struct {
	TCK string
}

func (Filter) Name() string { return "filter" }

func (Filter) Nodes() []string { return []string{"sift"} }

func (f Filter) Build(s *Session, o *Options) (*engine.Workflow, error) {
	if f.TCK != "" {
		tck, err := filepath.Abs(f.TCK)
		if err != nil {
			return nil, err
		}
		s.TCK = tck
	}
	if err := s.require("tck", "odf"); err != nil {
		return nil, err
	}
	wf := o.newWorkflow(f.Name(), s)
	sift := add(wf, "sift", mrtrix3.TCKSift).
		Set("in_file", s.TCK).
		Set("in_fod", s.ODF)
	if s.FiveTT != "" {
		sift.Set("act_file", s.FiveTT)
	}
	if err := sinkAll(wf, engine.SinkEdge{Src: "sift", SrcOutput: "out_file", Key: KeySIFT}); err != nil {
		return nil, err
	}
	return wf, nil
}

func (Filter) Apply(s *Session, res *engine.Result) {
	if tck, ok := res.Sunk[KeySIFT]; ok {
		s.TCK = tck
	}
}

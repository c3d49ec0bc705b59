package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"trampolino/pkg/engine"
	"trampolino/pkg/gradients"
	"trampolino/pkg/interfaces/mrtrix3"
)

// Sink keys of the recon workflow.
const (
	KeyODF  = "@odf"
	KeyMask = "@mask"
)

// Recon estimates fibre orientation distributions from the session's DWI:
// optional denoise, degibbs and bias correction, then brain mask,
// response estimation and spherical deconvolution.
type Recon struct{}

func (Recon) Name() string { return "recon" }

func (Recon) Nodes() []string {
	return []string{"denoise", "degibbs", "biascorrect", "act", "mask", "response", "fod"}
}

// ResponseAlgorithm picks the dwi2response algorithm. A forced choice
// wins; otherwise the gradient table decides. Missing gradient files are
// tolerated in dry runs, which fall back to the single-shell algorithm.
func ResponseAlgorithm(s *Session, o *Options) (string, error) {
	if o.ResponseAlgorithm != "" {
		p, _ := mrtrix3.ResponseSD.Param("algorithm")
		if !slices.Contains(p.Values, o.ResponseAlgorithm) {
			return "", fmt.Errorf("response algorithm %q is not one of %s", o.ResponseAlgorithm, strings.Join(p.Values, ", "))
		}
		return o.ResponseAlgorithm, nil
	}
	tol := o.ShellTolerance
	if tol <= 0 {
		tol = DefaultShellTolerance
	}
	table, err := gradients.Load(s.BVec, s.BVal)
	if err != nil {
		if o.DryRun && errors.Is(err, fs.ErrNotExist) {
			o.logger().WithError(err).Warn("gradient preflight skipped")
			return gradients.AlgorithmSingleShell, nil
		}
		return "", fmt.Errorf("gradient preflight: %w", err)
	}
	if err := table.Validate(); err != nil {
		return "", fmt.Errorf("gradient preflight: %w", err)
	}
	algo := table.SuggestAlgorithm(tol)
	o.logger().WithFields(logrus.Fields{
		"volumes":   table.Len(),
		"b0":        table.BZeros(),
		"shells":    len(table.Shells(tol)),
		"algorithm": algo,
	}).Info("gradient table checked")
	return algo, nil
}

func (r Recon) Build(s *Session, o *Options) (*engine.Workflow, error) {
	if err := s.require("in_file", "bvec", "bval"); err != nil {
		return nil, err
	}
	algo, err := ResponseAlgorithm(s, o)
	if err != nil {
		return nil, err
	}
	multi := algo == gradients.AlgorithmMultiShell || algo == "msmt_5tt"
	if algo == "msmt_5tt" && s.FiveTT == "" && s.Anat == "" {
		return nil, s.require("five_tt")
	}

	wf := o.newWorkflow(r.Name(), s)
	grad := gradFSL(s)

	// preprocessing chain: src names the node holding the current DWI,
	// empty for the raw input
	var edges []engine.Edge
	src := ""
	feed := func(n *engine.Node) {
		if src == "" {
			n.Set("in_file", s.InFile)
			return
		}
		edges = append(edges, engine.Edge{Src: src, SrcOutput: "out_file", Dst: n.Name, DstInput: "in_file"})
	}
	step := func(n *engine.Node) {
		feed(n)
		src = n.Name
	}
	if o.Preprocess.Denoise {
		step(add(wf, "denoise", mrtrix3.DWIDenoise))
	}
	if o.Preprocess.Degibbs {
		step(add(wf, "degibbs", mrtrix3.MRDeGibbs))
	}
	switch o.Preprocess.BiasCorrect {
	case "ants":
		step(add(wf, "biascorrect", mrtrix3.DWIBiasCorrect).Set("use_ants", true).Set("grad_fsl", grad))
	case "fsl":
		step(add(wf, "biascorrect", mrtrix3.DWIBiasCorrect).Set("use_fsl", true).Set("grad_fsl", grad))
	case "":
	default:
		return nil, fmt.Errorf("recon: bias correction %q is not one of ants, fsl", o.Preprocess.BiasCorrect)
	}

	mask := add(wf, "mask", mrtrix3.BrainMask).Set("grad_fsl", grad)
	response := add(wf, "response", mrtrix3.ResponseSD).
		Set("algorithm", algo).
		Set("grad_fsl", grad)
	var sinks []engine.SinkEdge
	if algo == "msmt_5tt" {
		if s.FiveTT != "" {
			response.Set("mtt_file", s.FiveTT)
		} else {
			// the 5TT image is prepared here and reused by track
			add(wf, "act", mrtrix3.ACTPrepareFSL).Set("in_file", s.Anat)
			edges = append(edges, engine.Edge{Src: "act", SrcOutput: "out_file", Dst: "response", DstInput: "mtt_file"})
			sinks = append(sinks, engine.SinkEdge{Src: "act", SrcOutput: "out_file", Key: KeyFiveTT})
		}
	}
	fod := add(wf, "fod", mrtrix3.ConstrainedSphericalDeconvolution).
		Set("algorithm", "csd").
		Set("grad_fsl", grad).
		Set("wm_odf", "wm.mif")
	feed(mask)
	feed(response)
	feed(fod)
	if multi {
		fod.Set("algorithm", "msmt_csd")
		response.Set("gm_file", "gm.txt").Set("csf_file", "csf.txt")
		fod.Set("gm_odf", "gm.mif").Set("csf_odf", "csf.mif")
		edges = append(edges,
			engine.Edge{Src: "response", SrcOutput: "gm_file", Dst: "fod", DstInput: "gm_txt"},
			engine.Edge{Src: "response", SrcOutput: "csf_file", Dst: "fod", DstInput: "csf_txt"},
		)
	}
	edges = append(edges,
		engine.Edge{Src: "mask", SrcOutput: "out_file", Dst: "response", DstInput: "in_mask"},
		engine.Edge{Src: "response", SrcOutput: "wm_file", Dst: "fod", DstInput: "wm_txt"},
		engine.Edge{Src: "mask", SrcOutput: "out_file", Dst: "fod", DstInput: "mask_file"},
	)
	if err := wire(wf, edges...); err != nil {
		return nil, err
	}
	sinks = append(sinks,
		engine.SinkEdge{Src: "fod", SrcOutput: "wm_odf", Key: KeyODF},
		engine.SinkEdge{Src: "mask", SrcOutput: "out_file", Key: KeyMask},
	)
	if err := sinkAll(wf, sinks...); err != nil {
		return nil, err
	}
	return wf, nil
}

// Apply points the session at the sunk FOD, mask and 5TT image. The mask
// becomes the tracking seed unless one was given.
func (Recon) Apply(s *Session, res *engine.Result) {
	if ftt, ok := res.Sunk[KeyFiveTT]; ok {
		s.FiveTT = ftt
	}
	if odf, ok := res.Sunk[KeyODF]; ok {
		s.ODF = odf
	}
	if mask, ok := res.Sunk[KeyMask]; ok {
		s.Mask = mask
		if s.Seed == "" {
			s.Seed = mask
		}
	}
}

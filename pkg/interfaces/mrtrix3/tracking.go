package mrtrix3

import (
	"trampolino/pkg/interfaces"
)

// Tractography performs streamline tractography.
//
//	tckgen -algorithm iFOD2 -seed_image mask.mif wm.mif tracked.tck
var Tractography = mrtrix3(interfaces.Spec{
	Name:    "Tractography",
	Command: "tckgen",
	Desc:    "Perform streamlines tractography after reconstructing the FOD",
	Params: []interfaces.Param{
		{Name: "algorithm", Kind: interfaces.Enum, Argstr: "-algorithm %s", Default: "iFOD2", UseDefault: true,
			Values: []string{"iFOD2", "FACT", "iFOD1", "Nulldist", "SD_Stream", "Tensor_Det", "Tensor_Prob"}, Desc: "tractography algorithm to be used"},
		{Name: "in_file", Kind: interfaces.File, Argstr: "%s", Position: -2, Mandatory: true, Exists: true, Desc: "input file to be processed"},
		{Name: "out_file", Kind: interfaces.File, Argstr: "%s", Position: -1, Mandatory: true, Default: "tracked.tck", UseDefault: true, Desc: "output file containing tracks"},
		{Name: "roi_incl", Kind: interfaces.File, Argstr: "-include %s", Exists: true, Desc: "inclusion ROI"},
		{Name: "roi_excl", Kind: interfaces.File, Argstr: "-exclude %s", Exists: true, Desc: "exclusion ROI"},
		{Name: "roi_mask", Kind: interfaces.File, Argstr: "-mask %s", Exists: true, Desc: "mask ROI, tracks are stopped on exit"},
		{Name: "step_size", Kind: interfaces.Float, Argstr: "-step %g", Desc: "step size of the algorithm in mm"},
		{Name: "angle", Kind: interfaces.Float, Argstr: "-angle %g", Desc: "maximum angle between successive steps"},
		{Name: "cutoff", Kind: interfaces.Float, Argstr: "-cutoff %g", Desc: "FOD amplitude cutoff for terminating tracks"},
		{Name: "select", Kind: interfaces.Int, Argstr: "-select %d", Desc: "number of streamlines to select"},
		{Name: "seed_image", Kind: interfaces.File, Argstr: "-seed_image %s", Exists: true, Desc: "seed streamlines randomly in the image"},
		{Name: "seed_gmwmi", Kind: interfaces.File, Argstr: "-seed_gmwmi %s", Exists: true, Requires: []string{"act_file"}, Desc: "seed from the grey matter - white matter interface"},
		{Name: "act_file", Kind: interfaces.File, Argstr: "-act %s", Exists: true, Desc: "use ACT with this five-tissue-type image"},
		{Name: "backtrack", Kind: interfaces.Bool, Argstr: "-backtrack", Requires: []string{"act_file"}, Desc: "allow tracks to be truncated and re-tracked"},
		{Name: "crop_at_gmwmi", Kind: interfaces.Bool, Argstr: "-crop_at_gmwmi", Requires: []string{"act_file"}, Desc: "crop streamline endpoints at the GM-WM interface"},
	},
	Outputs: []interfaces.OutputField{
		{Name: "out_file", From: "out_file", Exists: true, Desc: "the output filtered tracks"},
	},
})

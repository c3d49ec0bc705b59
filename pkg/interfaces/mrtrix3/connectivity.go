package mrtrix3

import (
	"trampolino/pkg/interfaces"
)

// TCKSift filters a whole-brain tractogram so that streamline densities
// match the FOD lobe integrals.
//
//	tcksift tracked.tck wm.mif tracked_sift.tck
var TCKSift = mrtrix3(interfaces.Spec{
	Name:    "TCKSift",
	Command: "tcksift",
	Desc:    "Filter a whole-brain fibre-tracking data set using SIFT",
	Params: []interfaces.Param{
		{Name: "in_file", Kind: interfaces.File, Argstr: "%s", Position: -3, Mandatory: true, Exists: true, Desc: "input track file"},
		{Name: "in_fod", Kind: interfaces.File, Argstr: "%s", Position: -2, Mandatory: true, Exists: true, Desc: "input FOD image"},
		{Name: "out_file", Kind: interfaces.File, Argstr: "%s", Position: -1, NameTemplate: "%s_sift", NameSource: "in_file", KeepExtension: true, Desc: "output filtered tracks"},
		{Name: "act_file", Kind: interfaces.File, Argstr: "-act %s", Exists: true, Desc: "ACT five-tissue-type image"},
		{Name: "term_number", Kind: interfaces.Int, Argstr: "-term_number %d", Desc: "number of streamlines to keep"},
		{Name: "fd_scale_gm", Kind: interfaces.Bool, Argstr: "-fd_scale_gm", Requires: []string{"act_file"}, Desc: "scale FD in grey matter by the GM partial volume fraction"},
	},
	Outputs: []interfaces.OutputField{
		{Name: "out_file", From: "out_file", Exists: true, Desc: "the output filtered tracks"},
	},
})

// BuildConnectome generates a connectome matrix from a streamlines file and
// a node parcellation image.
//
//	tck2connectome tracked.tck parc.mif connectome.csv
var BuildConnectome = mrtrix3(interfaces.Spec{
	Name:    "BuildConnectome",
	Command: "tck2connectome",
	Desc:    "Generate a connectome matrix from a streamlines file and a node parcellation image",
	Params: []interfaces.Param{
		{Name: "in_file", Kind: interfaces.File, Argstr: "%s", Position: -3, Mandatory: true, Exists: true, Desc: "input tractography"},
		{Name: "in_parc", Kind: interfaces.File, Argstr: "%s", Position: -2, Exists: true, Desc: "parcellation file"},
		{Name: "out_file", Kind: interfaces.File, Argstr: "%s", Position: -1, Mandatory: true, Default: "connectome.csv", UseDefault: true, Desc: "output file after processing"},
		{Name: "in_weights", Kind: interfaces.File, Argstr: "-tck_weights_in %s", Exists: true, Desc: "per-streamline weights"},
		{Name: "search_radius", Kind: interfaces.Float, Argstr: "-assignment_radial_search %g", Desc: "radial search distance in mm for node assignment"},
		{Name: "zero_diagonal", Kind: interfaces.Bool, Argstr: "-zero_diagonal", Desc: "set all diagonal entries in the matrix to zero"},
		{Name: "symmetric", Kind: interfaces.Bool, Argstr: "-symmetric", Desc: "make matrices symmetric on output"},
	},
	Outputs: []interfaces.OutputField{
		{Name: "out_file", From: "out_file", Exists: true, Desc: "the output connectome"},
	},
})

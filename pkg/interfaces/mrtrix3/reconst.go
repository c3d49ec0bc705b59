package mrtrix3

import (
	"trampolino/pkg/interfaces"
)

// BrainMask generates a whole-brain mask from a DWI image.
//
//	dwi2mask dwi.mif brainmask.mif
var BrainMask = mrtrix3(interfaces.Spec{
	Name:    "BrainMask",
	Command: "dwi2mask",
	Desc:    "Generate a whole brain mask from a DWI image",
	Params: []interfaces.Param{
		{Name: "in_file", Kind: interfaces.File, Argstr: "%s", Position: -2, Mandatory: true, Exists: true, Desc: "input diffusion weighted images"},
		{Name: "out_file", Kind: interfaces.File, Argstr: "%s", Position: -1, Mandatory: true, Default: "brainmask.mif", UseDefault: true, Desc: "output brain mask"},
	},
	Outputs: []interfaces.OutputField{
		{Name: "out_file", From: "out_file", Exists: true, Desc: "the output brain mask"},
	},
})

// ConstrainedSphericalDeconvolution estimates fibre orientation
// distributions from diffusion data using spherical deconvolution.
//
//	dwi2fod csd dwi.mif wm.txt wm.mif
var ConstrainedSphericalDeconvolution = mrtrix3(interfaces.Spec{
	Name:    "ConstrainedSphericalDeconvolution",
	Command: "dwi2fod",
	Desc:    "Estimate fibre orientation distributions using spherical deconvolution",
	Params: []interfaces.Param{
		{Name: "algorithm", Kind: interfaces.Enum, Argstr: "%s", Position: -8, Mandatory: true,
			Values: []string{"csd", "msmt_csd"}, Desc: "FOD algorithm"},
		{Name: "in_file", Kind: interfaces.File, Argstr: "%s", Position: -7, Mandatory: true, Exists: true, Desc: "input DWI image"},
		{Name: "wm_txt", Kind: interfaces.File, Argstr: "%s", Position: -6, Mandatory: true, Exists: true, Desc: "WM response text file"},
		{Name: "wm_odf", Kind: interfaces.File, Argstr: "%s", Position: -5, Default: "wm.mif", UseDefault: true, Desc: "output WM ODF"},
		{Name: "gm_txt", Kind: interfaces.File, Argstr: "%s", Position: -4, Exists: true, Desc: "GM response text file"},
		{Name: "gm_odf", Kind: interfaces.File, Argstr: "%s", Position: -3, Requires: []string{"gm_txt"}, Desc: "output GM ODF"},
		{Name: "csf_txt", Kind: interfaces.File, Argstr: "%s", Position: -2, Exists: true, Desc: "CSF response text file"},
		{Name: "csf_odf", Kind: interfaces.File, Argstr: "%s", Position: -1, Requires: []string{"csf_txt"}, Desc: "output CSF ODF"},
		{Name: "mask_file", Kind: interfaces.File, Argstr: "-mask %s", Exists: true, Desc: "mask image"},
		{Name: "shell", Kind: interfaces.IntList, Argstr: "-shells %s", Sep: ",", Desc: "b-value shells to include"},
		{Name: "max_sh", Kind: interfaces.IntList, Argstr: "-lmax %s", Sep: ",", Desc: "maximum harmonic degree per tissue"},
	},
	Outputs: []interfaces.OutputField{
		{Name: "wm_odf", From: "wm_odf", Exists: true, Desc: "WM ODF"},
		{Name: "gm_odf", From: "gm_odf", Exists: true, Optional: true, Desc: "GM ODF"},
		{Name: "csf_odf", From: "csf_odf", Exists: true, Optional: true, Desc: "CSF ODF"},
	},
})

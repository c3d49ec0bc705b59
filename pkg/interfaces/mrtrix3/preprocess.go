package mrtrix3

import (
	"trampolino/pkg/interfaces"
)

// DWIDenoise denoises DWI data and estimates the noise level based on the
// optimal threshold for PCA. It must run before any interpolation or
// smoothing of the data.
//
//	dwidenoise -mask mask.mif -noise noise.mif dwi.mif dwi_denoised.mif
var DWIDenoise = mrtrix3(interfaces.Spec{
	Name:    "DWIDenoise",
	Command: "dwidenoise",
	Desc:    "Denoise DWI data and estimate the noise level (MP-PCA)",
	Params: []interfaces.Param{
		{Name: "in_file", Kind: interfaces.File, Argstr: "%s", Position: -2, Mandatory: true, Exists: true, Desc: "input DWI image"},
		{Name: "mask", Kind: interfaces.File, Argstr: "-mask %s", Position: 1, Exists: true, Desc: "mask image"},
		{Name: "extent", Kind: interfaces.IntTuple, Argstr: "-extent %d,%d,%d", MinLen: 3, MaxLen: 3, Desc: "window size of the denoising filter (default = 5,5,5)"},
		{Name: "noise", Kind: interfaces.File, Argstr: "-noise %s", NameTemplate: "%s_noise", NameSource: "in_file", KeepExtension: true, Desc: "the output noise map"},
		{Name: "out_file", Kind: interfaces.File, Argstr: "%s", Position: -1, NameTemplate: "%s_denoised", NameSource: "in_file", KeepExtension: true, Desc: "the output denoised DWI image"},
	},
	Outputs: []interfaces.OutputField{
		{Name: "noise", From: "noise", Exists: true, Desc: "the output noise map"},
		{Name: "out_file", From: "out_file", Exists: true, Desc: "the output denoised DWI image"},
	},
})

// MRDeGibbs removes Gibbs ringing artefacts using local subvoxel shifts.
// Run it on unprocessed data, after dwidenoise.
//
//	mrdegibbs -axes 0,1 -maxW 3 -minW 1 -nshifts 20 dwi.mif dwi_unr.mif
var MRDeGibbs = mrtrix3(interfaces.Spec{
	Name:    "MRDeGibbs",
	Command: "mrdegibbs",
	Desc:    "Remove Gibbs ringing artifacts",
	Params: []interfaces.Param{
		{Name: "in_file", Kind: interfaces.File, Argstr: "%s", Position: -2, Mandatory: true, Exists: true, Desc: "input DWI image"},
		{Name: "axes", Kind: interfaces.IntList, Argstr: "-axes %s", Sep: ",", MinLen: 2, MaxLen: 2, Default: []int{0, 1}, UseDefault: true,
			Desc: "plane in which the data was acquired (axial = 0,1; coronal = 0,2; sagittal = 1,2)"},
		{Name: "nshifts", Kind: interfaces.Int, Argstr: "-nshifts %d", Default: 20, UseDefault: true, Desc: "discretization of subpixel spacing"},
		{Name: "minW", Kind: interfaces.Int, Argstr: "-minW %d", Default: 1, UseDefault: true, Desc: "left border of window used for total variation (TV) computation"},
		{Name: "maxW", Kind: interfaces.Int, Argstr: "-maxW %d", Default: 3, UseDefault: true, Desc: "right border of window used for total variation (TV) computation"},
		{Name: "out_file", Kind: interfaces.File, Argstr: "%s", Position: -1, NameTemplate: "%s_unr", NameSource: "in_file", KeepExtension: true, Desc: "the output unringed DWI image"},
	},
	Outputs: []interfaces.OutputField{
		{Name: "out_file", From: "out_file", Exists: true, Desc: "the output unringed DWI image"},
	},
})

// DWIBiasCorrect performs B1 field inhomogeneity correction for a DWI
// volume series. Exactly one of use_ants and use_fsl must be set.
//
//	dwibiascorrect -ants dwi.mif dwi_biascorr.mif
var DWIBiasCorrect = mrtrix3(interfaces.Spec{
	Name:    "DWIBiasCorrect",
	Command: "dwibiascorrect",
	Desc:    "B1 field inhomogeneity correction for a DWI volume series",
	Params: []interfaces.Param{
		{Name: "in_file", Kind: interfaces.File, Argstr: "%s", Position: -2, Mandatory: true, Exists: true, Desc: "input DWI image"},
		{Name: "in_mask", Kind: interfaces.File, Argstr: "-mask %s", Desc: "input mask image for bias field estimation"},
		{Name: "use_ants", Kind: interfaces.Bool, Argstr: "-ants", Mandatory: true, Xor: []string{"use_fsl"}, Desc: "use ANTS N4 to estimate the inhomogeneity field"},
		{Name: "use_fsl", Kind: interfaces.Bool, Argstr: "-fsl", Mandatory: true, Xor: []string{"use_ants"}, Desc: "use FSL FAST to estimate the inhomogeneity field"},
		{Name: "bias", Kind: interfaces.File, Argstr: "-bias %s", Desc: "bias field"},
		{Name: "out_file", Kind: interfaces.File, Argstr: "%s", Position: -1, NameTemplate: "%s_biascorr", NameSource: "in_file", KeepExtension: true, Desc: "the output bias corrected DWI image"},
	},
	Outputs: []interfaces.OutputField{
		{Name: "bias", From: "bias", Exists: true, Optional: true, Desc: "the output bias field"},
		{Name: "out_file", From: "out_file", Exists: true, Desc: "the output bias corrected DWI image"},
	},
})

// ResponseSD estimates response function(s) for spherical deconvolution.
//
//	dwi2response tournier -fslgrad bvecs bvals dwi.mif wm.txt
//	dwi2response tournier -fslgrad bvecs bvals -lmax 6,8,10 dwi.mif wm.txt
var ResponseSD = mrtrix3(interfaces.Spec{
	Name:    "ResponseSD",
	Command: "dwi2response",
	Desc:    "Estimate response function(s) for spherical deconvolution",
	Params: []interfaces.Param{
		{Name: "algorithm", Kind: interfaces.Enum, Argstr: "%s", Position: 1, Mandatory: true,
			Values: []string{"msmt_5tt", "dhollander", "tournier", "tax"}, Desc: "response estimation algorithm (multi-tissue)"},
		{Name: "in_file", Kind: interfaces.File, Argstr: "%s", Position: -5, Mandatory: true, Exists: true, Desc: "input DWI image"},
		{Name: "mtt_file", Kind: interfaces.File, Argstr: "%s", Position: -4, Desc: "input 5tt image"},
		{Name: "wm_file", Kind: interfaces.File, Argstr: "%s", Position: -3, Default: "wm.txt", UseDefault: true, Desc: "output WM response text file"},
		{Name: "gm_file", Kind: interfaces.File, Argstr: "%s", Position: -2, Desc: "output GM response text file"},
		{Name: "csf_file", Kind: interfaces.File, Argstr: "%s", Position: -1, Desc: "output CSF response text file"},
		{Name: "in_mask", Kind: interfaces.File, Argstr: "-mask %s", Exists: true, Desc: "provide initial mask image"},
		{Name: "max_sh", Kind: interfaces.IntList, Argstr: "-lmax %s", Sep: ",",
			Desc: "maximum harmonic degree of response function - single value for single-shell response, list for multi-shell response"},
	},
	Outputs: []interfaces.OutputField{
		{Name: "wm_file", From: "wm_file", Desc: "output WM response text file"},
		{Name: "gm_file", From: "gm_file", Optional: true, Desc: "output GM response text file"},
		{Name: "csf_file", From: "csf_file", Optional: true, Desc: "output CSF response text file"},
	},
})

// ACTPrepareFSL generates the five-tissue-type image needed by
// anatomically constrained tractography.
//
//	act_anat_prepare_fsl T1.nii.gz act_5tt.mif
var ACTPrepareFSL = &interfaces.Spec{
	Name:    "ACTPrepareFSL",
	Command: "act_anat_prepare_fsl",
	Desc:    "Generate anatomical information necessary for Anatomically Constrained Tractography (ACT)",
	Params: []interfaces.Param{
		{Name: "in_file", Kind: interfaces.File, Argstr: "%s", Position: -2, Mandatory: true, Exists: true, Desc: "input anatomical image"},
		{Name: "out_file", Kind: interfaces.File, Argstr: "%s", Position: -1, Mandatory: true, Default: "act_5tt.mif", UseDefault: true, Desc: "output file after processing"},
	},
	Outputs: []interfaces.OutputField{
		{Name: "out_file", From: "out_file", Exists: true, Desc: "the output five-tissue-type image"},
	},
}

// ReplaceFSwithFIRST replaces deep gray matter structures segmented with FSL
// FIRST in a FreeSurfer parcellation.
//
//	fs_parc_replace_sgm_first aparc+aseg.nii T1.nii.gz mrtrix3_labelconfig.txt aparc+first.mif
var ReplaceFSwithFIRST = &interfaces.Spec{
	Name:    "ReplaceFSwithFIRST",
	Command: "fs_parc_replace_sgm_first",
	Desc:    "Replace deep gray matter structures segmented with FSL FIRST in a FreeSurfer parcellation",
	Params: []interfaces.Param{
		{Name: "in_file", Kind: interfaces.File, Argstr: "%s", Position: -4, Mandatory: true, Exists: true, Desc: "input anatomical image"},
		{Name: "in_t1w", Kind: interfaces.File, Argstr: "%s", Position: -3, Mandatory: true, Exists: true, Desc: "input T1 image"},
		{Name: "in_config", Kind: interfaces.File, Argstr: "%s", Position: -2, Exists: true, Desc: "connectome configuration file"},
		{Name: "out_file", Kind: interfaces.File, Argstr: "%s", Position: -1, Mandatory: true, Default: "aparc+first.mif", UseDefault: true, Desc: "output file after processing"},
	},
	Outputs: []interfaces.OutputField{
		{Name: "out_file", From: "out_file", Exists: true, Desc: "the output parcellation"},
	},
}

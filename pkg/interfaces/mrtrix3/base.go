// Package mrtrix3 declares wrappers for the MRtrix3 command-line tools and the
// FSL/FreeSurfer helper scripts it ships with.
package mrtrix3

import (
	"trampolino/pkg/interfaces"
)

// baseParams are accepted by every MRtrix3 binary.
var baseParams = []interfaces.Param{
	{
		Name:   "nthreads",
		Kind:   interfaces.Int,
		Argstr: "-nthreads %d",
		Desc:   "number of threads. if zero, the number of available cpus will be used",
	},
	{
		Name:   "grad_file",
		Kind:   interfaces.File,
		Argstr: "-grad %s",
		Exists: true,
		Xor:    []string{"grad_fsl"},
		Desc:   "dw gradient scheme (MRTrix format)",
	},
	{
		Name:   "grad_fsl",
		Kind:   interfaces.FileTuple,
		Argstr: "-fslgrad %s %s",
		Exists: true,
		MinLen: 2,
		MaxLen: 2,
		Xor:    []string{"grad_file"},
		Desc:   "(bvecs, bvals) dw gradient scheme (FSL format)",
	},
	{
		Name:   "bval_scale",
		Kind:   interfaces.Enum,
		Argstr: "-bvalue_scaling %s",
		Values: []string{"yes", "no"},
		Desc:   "scale the b-values by the square of the gradient vector norm",
	},
}

func mrtrix3(s interfaces.Spec) *interfaces.Spec {
	return s.With(baseParams...)
}

// All returns every wrapper declared in this package.
func All() []*interfaces.Spec {
	return []*interfaces.Spec{
		DWIDenoise,
		MRDeGibbs,
		DWIBiasCorrect,
		ResponseSD,
		ACTPrepareFSL,
		ReplaceFSwithFIRST,
		BrainMask,
		ConstrainedSphericalDeconvolution,
		Tractography,
		TCKSift,
		BuildConnectome,
	}
}

func init() {
	for _, s := range All() {
		interfaces.Register(s)
	}
}

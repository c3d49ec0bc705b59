package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"trampolino/pkg/pipeline"
)

// factory creates a fresh command and the function turning its parsed
// flags and positional arguments into a step.
type factory func() (*cobra.Command, func(args []string) (step, error))

var commands = map[string]factory{
	"recon":      reconCommand,
	"track":      trackCommand,
	"filter":     filterCommand,
	"connectome": connectomeCommand,
	"list":       listCommand,
	"cmdline":    cmdlineCommand,
}

var errNoArgs = errors.New("takes no positional arguments")

func reconCommand() (*cobra.Command, func([]string) (step, error)) {
	cmd := &cobra.Command{
		Use:   "recon",
		Short: "Estimate fibre orientation distributions from DWI data",
		Long: `recon runs dwi2mask, dwi2response and dwi2fod on the input DWI, optionally
after dwidenoise, mrdegibbs and dwibiascorrect. The FOD is saved as wm.mif and
the mask as brainmask.mif; the mask seeds tracking unless -s was given.`,
	}
	var (
		denoise, degibbs bool
		bias, response   string
	)
	f := cmd.Flags()
	f.BoolVar(&denoise, "denoise", false, "run dwidenoise first")
	f.BoolVar(&degibbs, "degibbs", false, "run mrdegibbs")
	f.StringVar(&bias, "bias", "", "bias field correction: ants or fsl")
	f.StringVar(&response, "response", "", "force the dwi2response algorithm (default from the gradient shells)")

	return cmd, func(args []string) (step, error) {
		if len(args) > 0 {
			return step{}, errNoArgs
		}
		switch bias {
		case "", "ants", "fsl":
		default:
			return step{}, fmt.Errorf("--bias must be ants or fsl, got %q", bias)
		}
		return step{
			stage: pipeline.Recon{},
			tweak: func(o *pipeline.Options) {
				if f.Changed("denoise") {
					o.Preprocess.Denoise = denoise
				}
				if f.Changed("degibbs") {
					o.Preprocess.Degibbs = degibbs
				}
				if f.Changed("bias") {
					o.Preprocess.BiasCorrect = bias
				}
				o.ResponseAlgorithm = response
			},
		}, nil
	}
}

func trackCommand() (*cobra.Command, func([]string) (step, error)) {
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Streamline tractography on the FOD",
		Long: `track runs tckgen on the FOD seeded from the seed image. With -a the
five-tissue-type image is prepared with act_anat_prepare_fsl and tracking is
anatomically constrained. The tractogram is saved as tracking.tck.`,
	}
	var (
		algorithm string
		sel       int
	)
	f := cmd.Flags()
	f.StringVar(&algorithm, "algorithm", "", "tckgen algorithm (default from settings)")
	f.IntVar(&sel, "select", 0, "number of streamlines (default from settings)")

	return cmd, func(args []string) (step, error) {
		if len(args) > 0 {
			return step{}, errNoArgs
		}
		if sel < 0 {
			return step{}, fmt.Errorf("--select must not be negative")
		}
		return step{
			stage: pipeline.Track{},
			tweak: func(o *pipeline.Options) {
				if algorithm != "" {
					o.Track.Algorithm = algorithm
				}
				if sel > 0 {
					o.Track.Select = sel
				}
			},
		}, nil
	}
}

func filterCommand() (*cobra.Command, func([]string) (step, error)) {
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "SIFT filtering of the tractogram",
	}
	var tck string
	cmd.Flags().StringVarP(&tck, "tck", "t", "", "tractogram to filter (default: the one from track)")

	return cmd, func(args []string) (step, error) {
		if len(args) > 0 {
			return step{}, errNoArgs
		}
		return step{stage: pipeline.Filter{TCK: tck}}, nil
	}
}

func connectomeCommand() (*cobra.Command, func([]string) (step, error)) {
	cmd := &cobra.Command{
		Use:   "connectome",
		Short: "Connectivity matrix from the tractogram and a parcellation",
		Long: `connectome runs tck2connectome on the tractogram. With -a the subcortical
structures of the FreeSurfer parcellation are first replaced using FSL FIRST
(fs_parc_replace_sgm_first with --lut as the connectome configuration).`,
	}
	var parc, lut string
	cmd.Flags().StringVar(&parc, "parc", "", "parcellation image")
	cmd.Flags().StringVar(&lut, "lut", "", "connectome lookup table (default from settings)")

	return cmd, func(args []string) (step, error) {
		if len(args) > 0 {
			return step{}, errNoArgs
		}
		return step{stage: pipeline.Connectome{Parc: parc, LUT: lut}}, nil
	}
}

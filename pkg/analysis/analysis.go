// Package analysis runs the CT perfusion biomarker pipeline end to end
// for one study: decoding the color-mapped series, assembling volumes,
// deriving the brain and lesion masks, assessing venous transit, and
// computing the metrics record.
//
// The pipeline is a strict data flow over immutable values:
//
//  1. RGB slices are decoded per series role into scalar slices
//  2. decoded slices are assembled into scalar volumes
//  3. the brain mask is derived from the assembled volumes
//  4. lesion masks are derived from the brain mask and volumes
//  5. the venous landmarks are sampled from the Tmax volume
//  6. the prolonged venous transit status is classified
//  7. masks and venous results are folded into the metrics record
//
// Geometry and invariant failures abort the run with no partial
// record. A venous ROI that misses brain tissue only degrades the
// venous fields to indeterminate; every other metric still computes.
package analysis

import (
	"errors"
	"fmt"
	"image"

	"ctperf/pkg/config"
	"ctperf/pkg/decode"
	"ctperf/pkg/perfusion"
	"ctperf/pkg/venous"
	"ctperf/pkg/volume"
)

// RGBSlice is one color-mapped slice of a series, as delivered by the
// study loader.
type RGBSlice struct {
	// Image is the 8-bit RGB slice image.
	Image image.Image

	// ZPositionMM is the slice position along the scanner z axis.
	ZPositionMM float64

	// Spacing is the voxel spacing reported for the slice.
	Spacing volume.Spacing
}

// Study is the in-memory input of one analysis run: the color-mapped
// slices of every series the loader found, keyed by series role.
type Study struct {
	Series map[volume.SeriesRole][]RGBSlice
}

// Result is the output of one analysis run.
type Result struct {
	// Metrics is the final record.
	Metrics perfusion.Record

	// Masks holds the lesion masks keyed by their stable names
	// "hypoperfusion", "core" and "penumbra".
	Masks map[string]*volume.Mask

	// Tmax is the decoded Tmax volume, kept for overlay rendering.
	Tmax *volume.ScalarVolume

	// VenousIndeterminate is set when the venous assessment could not
	// be completed; the analysis itself still succeeded.
	VenousIndeterminate bool
}

// Analyzer runs the pipeline with one immutable configuration.
type Analyzer struct {
	cfg *config.Config
}

// New creates an analyzer for the given configuration.
func New(cfg *config.Config) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// decodingMaxFor returns the full-scale physiologic value the RGB
// inversion scales to for a series role.
func (a *Analyzer) decodingMaxFor(role volume.SeriesRole) float64 {
	switch role {
	case volume.RoleTimeToMax:
		return a.cfg.Decoding.TmaxMaxS
	case volume.RoleCerebralBloodVolume, volume.RoleCerebralBloodFlow:
		return a.cfg.Decoding.FlowMax
	}
	return a.cfg.Decoding.TimeMaxS
}

func (a *Analyzer) logf(format string, args ...interface{}) {
	if a.cfg.Output.Verbose {
		fmt.Printf(format, args...)
	}
}

// Run executes the full pipeline for one study.
func (a *Analyzer) Run(study *Study) (*Result, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Step 1+2: decode the color-mapped slices and assemble volumes.
	a.logf("Step 1: Decoding and assembling series volumes...\n")
	volumes := make(map[volume.SeriesRole]*volume.ScalarVolume)
	for role, slices := range study.Series {
		vol, err := a.assembleSeries(role, slices)
		if err != nil {
			return nil, fmt.Errorf("failed to assemble %s series: %w", role, err)
		}
		a.logf("  %s: %d slices of %dx%d\n", role, vol.Slices, vol.Rows, vol.Cols)
		volumes[role] = vol
	}

	tmax := volumes[volume.RoleTimeToMax]
	cbv := volumes[volume.RoleCerebralBloodVolume]
	cbf := volumes[volume.RoleCerebralBloodFlow]

	// Step 3: brain tissue mask.
	a.logf("Step 2: Building brain mask...\n")
	brain, err := perfusion.BuildBrainMask(tmax, cbv, cbf)
	if err != nil {
		return nil, fmt.Errorf("failed to build brain mask: %w", err)
	}
	a.logf("  brain voxels: %d\n", brain.Count())

	// Step 4: lesion masks.
	a.logf("Step 3: Deriving lesion masks...\n")
	lesions, err := perfusion.BuildLesionMasks(brain, tmax, cbv, cbf, perfusion.Thresholds{
		HypoperfusionTmaxS: a.cfg.Thresholds.HypoperfusionTmaxS,
		CoreTmaxS:          a.cfg.Thresholds.CoreTmaxS,
		CoreCBV:            a.cfg.Thresholds.CoreCBV,
		CoreCBFRelative:    a.cfg.Thresholds.CoreCBFRelative,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to derive lesion masks: %w", err)
	}
	a.logf("  core definition: %s\n", lesions.Mode)

	// Steps 5+6: venous landmark sampling and PVT classification.
	// ROI placement failures degrade the venous fields rather than
	// aborting the run.
	a.logf("Step 4: Assessing venous transit...\n")
	assessment, sampleErrs := venous.Assess(tmax, brain, a.cfg.Thresholds.PVTTmaxS)
	for _, serr := range sampleErrs {
		var emptyROI *venous.EmptyROIError
		if !errors.As(serr, &emptyROI) {
			return nil, fmt.Errorf("venous sampling failed: %w", serr)
		}
		a.logf("  warning: %v\n", serr)
	}
	a.logf("  PVT status: %s\n", assessment.Status())

	// Step 7: metrics record.
	a.logf("Step 5: Computing metrics...\n")
	metrics := perfusion.ComputeMetrics(lesions, brain, cbv, tmax.Spacing, assessment)

	return &Result{
		Metrics: metrics,
		Masks: map[string]*volume.Mask{
			"hypoperfusion": lesions.Hypoperfusion,
			"core":          lesions.Core,
			"penumbra":      lesions.Penumbra,
		},
		Tmax:                tmax,
		VenousIndeterminate: assessment.Indeterminate,
	}, nil
}

// assembleSeries decodes every RGB slice of one series and stacks the
// results into a scalar volume.
func (a *Analyzer) assembleSeries(role volume.SeriesRole, rgbSlices []RGBSlice) (*volume.ScalarVolume, error) {
	maxValue := a.decodingMaxFor(role)
	slices := make([]volume.Slice, 0, len(rgbSlices))
	for _, s := range rgbSlices {
		data, rows, cols := decode.Image(s.Image, maxValue)
		slices = append(slices, volume.Slice{
			Data:        data,
			Rows:        rows,
			Cols:        cols,
			ZPositionMM: s.ZPositionMM,
			Spacing:     s.Spacing,
		})
	}
	return volume.Assemble(role, slices)
}

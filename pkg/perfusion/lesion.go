package perfusion

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"ctperf/pkg/volume"
)

// Thresholds holds the classification cutoffs for lesion mask
// derivation. Callers pass an explicit value; there are no hidden
// package-level defaults.
type Thresholds struct {
	// HypoperfusionTmaxS: tissue with Tmax at or above this many
	// seconds counts as hypoperfused.
	HypoperfusionTmaxS float64

	// CoreTmaxS: Tmax cutoff of the core definition. Must not be below
	// HypoperfusionTmaxS or the core would not be contained in the
	// hypoperfused region.
	CoreTmaxS float64

	// CoreCBV: absolute CBV cutoff in ml/100g below which severely
	// delayed tissue counts as infarct core.
	CoreCBV float64

	// CoreCBFRelative: relative-CBF cutoff used when only a CBF series
	// is available.
	CoreCBFRelative float64
}

// CoreMode names which core definition a run used, for the record.
type CoreMode string

const (
	// CoreModeCBV: Tmax >= CoreTmaxS and CBV < CoreCBV. Preferred
	// whenever a CBV series is present.
	CoreModeCBV CoreMode = "cbv-absolute"

	// CoreModeCBF: hypoperfused tissue whose CBF is below
	// CoreCBFRelative of the contralateral mean. Used when CBV is
	// absent but CBF is available.
	CoreModeCBF CoreMode = "cbf-relative"

	// CoreModeTmax: Tmax >= CoreTmaxS alone. Fallback when neither CBV
	// nor CBF is available.
	CoreModeTmax CoreMode = "tmax-only"
)

// LesionMasks is the output of the lesion mask engine.
type LesionMasks struct {
	Hypoperfusion *volume.Mask
	Core          *volume.Mask
	Penumbra      *volume.Mask

	// SevereHypoperfusion marks brain tissue with Tmax at or above the
	// core Tmax threshold, regardless of the core mode. It feeds the
	// hypoperfusion intensity ratio.
	SevereHypoperfusion *volume.Mask

	// Mode records which core definition was applied.
	Mode CoreMode
}

// BuildLesionMasks applies the threshold predicates to produce the
// hypoperfusion, infarct-core and penumbra masks.
//
// When both CBV and CBF are present the CBV-based absolute threshold
// wins; the CBF-relative definition is used only when CBV is absent.
// The penumbra has no independent source: it is always the
// hypoperfused region minus the core.
//
// The engine guarantees core ⊆ hypoperfusion. A threshold configuration
// that would break that containment yields an InvariantViolationError
// instead of an invalid penumbra mask.
func BuildLesionMasks(brain *volume.Mask, tmax, cbv, cbf *volume.ScalarVolume, th Thresholds) (*LesionMasks, error) {
	if tmax == nil {
		return nil, &MissingSeriesError{Wanted: []volume.SeriesRole{volume.RoleTimeToMax}}
	}
	if th.CoreTmaxS < th.HypoperfusionTmaxS {
		return nil, &InvariantViolationError{
			Reason: fmt.Sprintf("core Tmax threshold %.2fs below hypoperfusion threshold %.2fs",
				th.CoreTmaxS, th.HypoperfusionTmaxS),
		}
	}

	hypo := brain.And(volume.MaskFromPredicate(tmax, func(v float64) bool {
		return v >= th.HypoperfusionTmaxS
	}))
	severe := brain.And(volume.MaskFromPredicate(tmax, func(v float64) bool {
		return v >= th.CoreTmaxS
	}))

	var core *volume.Mask
	var mode CoreMode
	switch {
	case cbv != nil:
		mode = CoreModeCBV
		lowCBV := volume.MaskFromPredicate(cbv, func(v float64) bool {
			return v < th.CoreCBV
		})
		core = severe.And(lowCBV)

	case cbf != nil:
		mode = CoreModeCBF
		core = coreFromRelativeCBF(hypo, severe, cbf, th)

	default:
		mode = CoreModeTmax
		core = severe
	}

	if !core.IsSubsetOf(hypo) {
		return nil, &InvariantViolationError{
			Reason: fmt.Sprintf("%s core of %d voxels not contained in hypoperfused region of %d voxels",
				mode, core.Count(), hypo.Count()),
		}
	}

	return &LesionMasks{
		Hypoperfusion:       hypo,
		Core:                core,
		Penumbra:            hypo.AndNot(core),
		SevereHypoperfusion: severe,
		Mode:                mode,
	}, nil
}

// coreFromRelativeCBF applies the relative-CBF core definition:
// hypoperfused tissue whose CBF is below the configured fraction of the
// mean CBF in the mirrored (contralateral) hypoperfused region. If no
// contralateral reference can be formed, the Tmax-based core is used
// instead so the run can still complete.
func coreFromRelativeCBF(hypo, severe *volume.Mask, cbf *volume.ScalarVolume, th Thresholds) *volume.Mask {
	contra := hypo.MirrorColumns()
	var reference []float64
	for i, in := range contra.Data {
		if in && cbf.Data[i] > 0 {
			reference = append(reference, cbf.Data[i])
		}
	}
	if len(reference) == 0 {
		return severe
	}

	normalCBF := stat.Mean(reference, nil)
	cutoff := normalCBF * th.CoreCBFRelative
	return hypo.And(volume.MaskFromPredicate(cbf, func(v float64) bool {
		return v < cutoff
	}))
}

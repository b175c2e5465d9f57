package perfusion

import (
	"fmt"

	"github.com/montanaflynn/stats"
	gostat "gonum.org/v1/gonum/stat"

	"ctperf/pkg/venous"
	"ctperf/pkg/volume"
)

// Ratio is a ratio metric that may be undefined when its denominator is
// zero. Undefined ratios serialize as JSON null; a NaN or Inf is never
// emitted.
type Ratio struct {
	Value   float64
	Defined bool
}

// DefinedRatio wraps a computed ratio value.
func DefinedRatio(v float64) Ratio { return Ratio{Value: v, Defined: true} }

// UndefinedRatio is the sentinel for a zero-denominator ratio.
func UndefinedRatio() Ratio { return Ratio{} }

// MarshalJSON emits the value, or null when undefined.
func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.Defined {
		return []byte("null"), nil
	}
	return []byte(fmt.Sprintf("%g", r.Value)), nil
}

// UnmarshalJSON accepts a number or null.
func (r *Ratio) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Ratio{}
		return nil
	}
	r.Defined = true
	_, err := fmt.Sscanf(string(data), "%g", &r.Value)
	return err
}

func (r Ratio) String() string {
	if !r.Defined {
		return "undefined"
	}
	return fmt.Sprintf("%.2f", r.Value)
}

// SliceStat is the per-slice lesion area breakdown.
type SliceStat struct {
	SliceIndex      int     `json:"slice_index" csv:"slice_index"`
	CoreAreaCM2     float64 `json:"core_area_cm2" csv:"core_area_cm2"`
	PenumbraAreaCM2 float64 `json:"penumbra_area_cm2" csv:"penumbra_area_cm2"`
	TotalAreaCM2    float64 `json:"total_area_cm2" csv:"total_area_cm2"`
}

// Collateral grade cutoff on the CBV index.
const collateralGoodCBVIndex = 0.70

// Record is the immutable metrics output of one analysis run: volumes
// in milliliters, dimensionless ratios, and the venous classification.
// Field names are stable; external storage writes them verbatim.
type Record struct {
	BrainVolumeML         float64 `json:"brain_volume_ml"`
	HypoperfusionVolumeML float64 `json:"hypoperfusion_volume_ml"`
	CoreVolumeML          float64 `json:"infarct_core_volume_ml"`
	PenumbraVolumeML      float64 `json:"penumbra_volume_ml"`

	MismatchRatio    Ratio `json:"mismatch_ratio"`
	CBVIndex         Ratio `json:"cbv_index"`
	ContralateralCBV Ratio `json:"contralateral_cbv"`

	// HIR is the hypoperfusion intensity ratio: the severely delayed
	// fraction of the hypoperfused volume.
	HIR float64 `json:"hir"`

	// PRR is the penumbra rescue ratio: the salvageable fraction of
	// the hypoperfused volume.
	PRR float64 `json:"prr"`

	CollateralGrade string `json:"collateral_grade"`
	CoreDefinition  string `json:"core_definition"`
	VoxelVolumeML   float64 `json:"voxel_volume_ml"`

	PVTStatus     string  `json:"pvt_status"`
	PVTPositive   bool    `json:"pvt_positive"`
	PVTThresholdS float64 `json:"pvt_threshold_s"`

	SSSMeanTmaxS     float64 `json:"sss_tmax_mean_s"`
	SSSMaxTmaxS      float64 `json:"sss_tmax_max_s"`
	SSSPositive      bool    `json:"sss_positive"`
	SSSPositiveRatio float64 `json:"sss_positive_ratio"`
	SSSVoxels        int     `json:"sss_voxels"`

	TorculaMeanTmaxS     float64 `json:"torcula_tmax_mean_s"`
	TorculaMaxTmaxS      float64 `json:"torcula_tmax_max_s"`
	TorculaPositive      bool    `json:"torcula_positive"`
	TorculaPositiveRatio float64 `json:"torcula_positive_ratio"`
	TorculaVoxels        int     `json:"torcula_voxels"`

	SliceStats []SliceStat `json:"slice_statistics"`
}

// ComputeMetrics converts the lesion masks, voxel geometry, optional
// CBV volume and venous assessment into the final metrics record.
// The assessment may be nil or indeterminate; every non-venous metric
// still computes.
func ComputeMetrics(lesions *LesionMasks, brain *volume.Mask, cbv *volume.ScalarVolume,
	spacing volume.Spacing, assessment *venous.Assessment) Record {

	voxelML := spacing.VoxelVolumeMM3() / 1000.0

	rec := Record{
		BrainVolumeML:         float64(brain.Count()) * voxelML,
		HypoperfusionVolumeML: float64(lesions.Hypoperfusion.Count()) * voxelML,
		CoreVolumeML:          float64(lesions.Core.Count()) * voxelML,
		PenumbraVolumeML:      float64(lesions.Penumbra.Count()) * voxelML,
		CoreDefinition:        string(lesions.Mode),
		VoxelVolumeML:         voxelML,
		CollateralGrade:       "indeterminate",
	}

	if rec.CoreVolumeML > 0 {
		rec.MismatchRatio = DefinedRatio(rec.HypoperfusionVolumeML / rec.CoreVolumeML)
	}
	if rec.HypoperfusionVolumeML > 0 {
		severeML := float64(lesions.SevereHypoperfusion.Count()) * voxelML
		rec.HIR = severeML / rec.HypoperfusionVolumeML
		rec.PRR = rec.PenumbraVolumeML / rec.HypoperfusionVolumeML
	}

	if cbv != nil {
		rec.CBVIndex, rec.ContralateralCBV = cbvIndex(lesions.Hypoperfusion, cbv)
		if rec.CBVIndex.Defined {
			if rec.CBVIndex.Value >= collateralGoodCBVIndex {
				rec.CollateralGrade = "good"
			} else {
				rec.CollateralGrade = "poor"
			}
		}
	}

	rec.SliceStats = sliceStats(lesions, spacing)
	rec.applyVenous(assessment)
	return rec
}

// cbvIndex computes the lesion-to-contralateral CBV ratio. The lesion
// region is the hypoperfused mask; the contralateral reference is its
// mirror across the midline column, narrowed to cortical tissue by
// keeping only voxels whose CBV falls between the 40th and 90th
// percentile of positive CBV values (excludes white matter below and
// vessels above). When the cortical band is empty the plain mirrored
// positive mean is used. An empty lesion or a non-positive reference
// mean yields the undefined sentinel.
func cbvIndex(lesion *volume.Mask, cbv *volume.ScalarVolume) (index, contra Ratio) {
	var lesionCBV []float64
	for i, in := range lesion.Data {
		if in {
			lesionCBV = append(lesionCBV, cbv.Data[i])
		}
	}
	if len(lesionCBV) == 0 {
		return UndefinedRatio(), UndefinedRatio()
	}

	mirrored := lesion.MirrorColumns()

	var positive []float64
	for _, v := range cbv.Data {
		if v > 0 {
			positive = append(positive, v)
		}
	}

	var reference []float64
	if len(positive) > 0 {
		low, errLow := stats.Percentile(positive, 40)
		high, errHigh := stats.Percentile(positive, 90)
		if errLow == nil && errHigh == nil {
			for i, in := range mirrored.Data {
				if in && cbv.Data[i] >= low && cbv.Data[i] <= high {
					reference = append(reference, cbv.Data[i])
				}
			}
		}
	}
	if len(reference) == 0 {
		for i, in := range mirrored.Data {
			if in && cbv.Data[i] > 0 {
				reference = append(reference, cbv.Data[i])
			}
		}
	}
	if len(reference) == 0 {
		return UndefinedRatio(), UndefinedRatio()
	}

	contraMean := gostat.Mean(reference, nil)
	if contraMean <= 0 {
		return UndefinedRatio(), UndefinedRatio()
	}
	return DefinedRatio(gostat.Mean(lesionCBV, nil) / contraMean), DefinedRatio(contraMean)
}

// sliceStats computes the per-slice core and penumbra areas in cm².
func sliceStats(lesions *LesionMasks, spacing volume.Spacing) []SliceStat {
	pixelCM2 := spacing.RowMM * spacing.ColMM / 100.0
	out := make([]SliceStat, lesions.Core.Slices)
	for z := range out {
		core := float64(lesions.Core.CountInSlice(z)) * pixelCM2
		penumbra := float64(lesions.Penumbra.CountInSlice(z)) * pixelCM2
		out[z] = SliceStat{
			SliceIndex:      z,
			CoreAreaCM2:     core,
			PenumbraAreaCM2: penumbra,
			TotalAreaCM2:    core + penumbra,
		}
	}
	return out
}

// applyVenous copies the venous assessment into the record. A nil or
// indeterminate assessment leaves the boolean fields false and marks
// the status indeterminate.
func (r *Record) applyVenous(a *venous.Assessment) {
	r.PVTStatus = a.Status()
	if a == nil {
		return
	}
	r.PVTThresholdS = a.ThresholdS
	if a.Indeterminate {
		return
	}
	r.PVTPositive = a.Positive
	if a.SSS != nil {
		r.SSSMeanTmaxS = a.SSS.MeanS
		r.SSSMaxTmaxS = a.SSS.MaxS
		r.SSSPositive = a.SSSPositive
		r.SSSPositiveRatio = a.SSS.PositiveFraction
		r.SSSVoxels = a.SSS.VoxelCount()
	}
	if a.Torcula != nil {
		r.TorculaMeanTmaxS = a.Torcula.MeanS
		r.TorculaMaxTmaxS = a.Torcula.MaxS
		r.TorculaPositive = a.TorculaPositive
		r.TorculaPositiveRatio = a.Torcula.PositiveFraction
		r.TorculaVoxels = a.Torcula.VoxelCount()
	}
}

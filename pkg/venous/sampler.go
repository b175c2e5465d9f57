package venous

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"ctperf/pkg/volume"
)

// Sample is the flat collection of Tmax values found inside one venous
// ROI, with the descriptive statistics reported alongside the binary
// classification.
type Sample struct {
	// Name of the landmark, "sss" or "torcula".
	Name string

	// Values are the Tmax values of every brain voxel in the ROI.
	Values []float64

	// MeanS and MaxS are the mean and maximum Tmax in seconds.
	MeanS float64
	MaxS  float64

	// PositiveCount is the number of voxels at or above the PVT
	// threshold; PositiveFraction is that count over the ROI size.
	PositiveCount    int
	PositiveFraction float64
}

// VoxelCount returns the number of voxels sampled.
func (s *Sample) VoxelCount() int { return len(s.Values) }

// EmptyROIError reports that a heuristically placed ROI contained no
// brain tissue, typically because the volume geometry is unusual.
// Recoverable: the caller reports the venous assessment as
// indeterminate while the rest of the analysis proceeds.
type EmptyROIError struct {
	Name string
}

func (e *EmptyROIError) Error() string {
	return fmt.Sprintf("venous ROI %q contains no brain voxels", e.Name)
}

// SampleBox extracts the Tmax values inside a box ROI intersected with
// the brain mask.
func SampleBox(tmax *volume.ScalarVolume, brain *volume.Mask, roi BoxROI, thresholdS float64, name string) (*Sample, error) {
	var values []float64
	for z := roi.Z0; z < roi.Z1; z++ {
		for row := roi.Row0; row < roi.Row1; row++ {
			for col := roi.Col0; col < roi.Col1; col++ {
				if brain.At(z, row, col) {
					values = append(values, tmax.At(z, row, col))
				}
			}
		}
	}
	return newSample(name, values, thresholdS)
}

// SampleSphere extracts the Tmax values inside a spherical ROI
// intersected with the brain mask.
func SampleSphere(tmax *volume.ScalarVolume, brain *volume.Mask, roi SphereROI, thresholdS float64, name string) (*Sample, error) {
	r2 := roi.Radius * roi.Radius
	var values []float64
	for z := 0; z < tmax.Slices; z++ {
		dz := z - roi.Z
		for row := 0; row < tmax.Rows; row++ {
			dr := row - roi.Row
			for col := 0; col < tmax.Cols; col++ {
				dc := col - roi.Col
				if dz*dz+dr*dr+dc*dc > r2 {
					continue
				}
				if brain.At(z, row, col) {
					values = append(values, tmax.At(z, row, col))
				}
			}
		}
	}
	return newSample(name, values, thresholdS)
}

func newSample(name string, values []float64, thresholdS float64) (*Sample, error) {
	if len(values) == 0 {
		return nil, &EmptyROIError{Name: name}
	}

	s := &Sample{Name: name, Values: values}
	s.MeanS = stat.Mean(values, nil)
	for _, v := range values {
		if v > s.MaxS {
			s.MaxS = v
		}
		if v >= thresholdS {
			s.PositiveCount++
		}
	}
	s.PositiveFraction = float64(s.PositiveCount) / float64(len(values))
	return s, nil
}

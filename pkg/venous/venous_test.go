package venous

import (
	"errors"
	"math"
	"testing"

	"ctperf/pkg/volume"
)

func TestLocateSSS(t *testing.T) {
	roi := LocateSSS(20, 100, 100)

	if roi.Z0 != 15 || roi.Z1 != 20 {
		t.Errorf("expected slices [15,20), got [%d,%d)", roi.Z0, roi.Z1)
	}
	if roi.Row0 != 0 || roi.Row1 != 100 {
		t.Errorf("expected full row extent, got [%d,%d)", roi.Row0, roi.Row1)
	}
	if roi.Col0 != 42 || roi.Col1 != 59 {
		t.Errorf("expected midline band [42,59), got [%d,%d)", roi.Col0, roi.Col1)
	}
}

func TestLocateSSSClampsNarrowVolume(t *testing.T) {
	roi := LocateSSS(4, 10, 10)

	if roi.Col0 != 0 || roi.Col1 != 10 {
		t.Errorf("expected band clamped to [0,10), got [%d,%d)", roi.Col0, roi.Col1)
	}
	if roi.Z0 != 3 || roi.Z1 != 4 {
		t.Errorf("expected slices [3,4), got [%d,%d)", roi.Z0, roi.Z1)
	}
}

func TestLocateTorcula(t *testing.T) {
	roi := LocateTorcula(20, 100, 90)

	if roi.Z != 12 || roi.Row != 75 || roi.Col != 45 {
		t.Errorf("expected center (12,75,45), got (%d,%d,%d)", roi.Z, roi.Row, roi.Col)
	}
	if roi.Radius != 12 {
		t.Errorf("expected radius 12, got %d", roi.Radius)
	}
}

// testTmax builds a small Tmax volume with a constant background and a
// brain mask covering every positive voxel.
func testTmax(slices, rows, cols int, background float64) (*volume.ScalarVolume, *volume.Mask) {
	n := slices * rows * cols
	data := make([]float64, n)
	for i := range data {
		data[i] = background
	}
	vol := &volume.ScalarVolume{Role: volume.RoleTimeToMax, Data: data,
		Slices: slices, Rows: rows, Cols: cols}
	brain := volume.MaskFromPredicate(vol, func(v float64) bool { return v > 0.1 })
	return vol, brain
}

func TestSampleBoxStatistics(t *testing.T) {
	tmax, brain := testTmax(1, 1, 4, 2.0)
	tmax.Data[0] = 12.0

	sample, err := SampleBox(tmax, brain, BoxROI{Z1: 1, Row1: 1, Col1: 4}, 10.0, "sss")
	if err != nil {
		t.Fatalf("SampleBox failed: %v", err)
	}

	if sample.VoxelCount() != 4 {
		t.Errorf("expected 4 voxels, got %d", sample.VoxelCount())
	}
	if math.Abs(sample.MeanS-4.5) > 1e-12 {
		t.Errorf("expected mean 4.5, got %v", sample.MeanS)
	}
	if sample.MaxS != 12.0 {
		t.Errorf("expected max 12, got %v", sample.MaxS)
	}
	if sample.PositiveCount != 1 || math.Abs(sample.PositiveFraction-0.25) > 1e-12 {
		t.Errorf("expected 1 positive voxel (0.25), got %d (%v)",
			sample.PositiveCount, sample.PositiveFraction)
	}
}

func TestSampleBoxSkipsNonBrain(t *testing.T) {
	tmax, brain := testTmax(1, 1, 4, 2.0)
	brain.Data[0] = false
	brain.Data[1] = false

	sample, err := SampleBox(tmax, brain, BoxROI{Z1: 1, Row1: 1, Col1: 4}, 10.0, "sss")
	if err != nil {
		t.Fatalf("SampleBox failed: %v", err)
	}
	if sample.VoxelCount() != 2 {
		t.Errorf("expected 2 brain voxels sampled, got %d", sample.VoxelCount())
	}
}

func TestSampleEmptyROI(t *testing.T) {
	tmax, _ := testTmax(1, 1, 4, 2.0)
	noBrain := volume.NewMask(1, 1, 4)

	_, err := SampleBox(tmax, noBrain, BoxROI{Z1: 1, Row1: 1, Col1: 4}, 10.0, "sss")
	var empty *EmptyROIError
	if !errors.As(err, &empty) {
		t.Fatalf("expected EmptyROIError, got %T: %v", err, err)
	}
	if empty.Name != "sss" {
		t.Errorf("expected ROI name in error, got %q", empty.Name)
	}

	_, err = SampleSphere(tmax, noBrain, SphereROI{Radius: 2}, 10.0, "torcula")
	if !errors.As(err, &empty) {
		t.Fatalf("expected EmptyROIError from sphere, got %T: %v", err, err)
	}
}

func TestSampleSphereBounds(t *testing.T) {
	// A radius-1 sphere at a corner samples only the voxels within
	// distance 1 of the center.
	tmax, brain := testTmax(3, 3, 3, 2.0)

	sample, err := SampleSphere(tmax, brain, SphereROI{Z: 0, Row: 0, Col: 0, Radius: 1}, 10.0, "torcula")
	if err != nil {
		t.Fatalf("SampleSphere failed: %v", err)
	}
	// Center plus its three in-bounds axis neighbors.
	if sample.VoxelCount() != 4 {
		t.Errorf("expected 4 voxels in corner sphere, got %d", sample.VoxelCount())
	}
}

func TestClassifyThresholdInclusive(t *testing.T) {
	tmax, brain := testTmax(1, 1, 1, 10.0)

	sample, err := SampleBox(tmax, brain, BoxROI{Z1: 1, Row1: 1, Col1: 1}, 10.0, "sss")
	if err != nil {
		t.Fatalf("SampleBox failed: %v", err)
	}

	a := Classify(sample, nil, 10.0)
	if !a.Positive || !a.SSSPositive {
		t.Error("a voxel exactly at the threshold must classify positive")
	}
	if a.Status() != "positive" {
		t.Errorf("expected status positive, got %q", a.Status())
	}
}

func TestClassifyPresenceOverMean(t *testing.T) {
	// One delayed voxel in an otherwise fast-draining region: the mean
	// stays far below the threshold but the finding is positive.
	tmax, brain := testTmax(1, 1, 20, 1.0)
	tmax.Data[7] = 10.5

	sample, err := SampleBox(tmax, brain, BoxROI{Z1: 1, Row1: 1, Col1: 20}, 10.0, "sss")
	if err != nil {
		t.Fatalf("SampleBox failed: %v", err)
	}
	if sample.MeanS >= 10.0 {
		t.Fatalf("test setup broken: mean %v not below threshold", sample.MeanS)
	}

	if a := Classify(sample, nil, 10.0); !a.Positive {
		t.Error("expected positive classification from a single delayed voxel")
	}
}

func TestClassifyMissingLandmarks(t *testing.T) {
	positive := &Sample{Name: "torcula", Values: []float64{11.0}, MeanS: 11.0,
		MaxS: 11.0, PositiveCount: 1, PositiveFraction: 1.0}
	negative := &Sample{Name: "torcula", Values: []float64{2.0}, MeanS: 2.0, MaxS: 2.0}

	t.Run("both missing", func(t *testing.T) {
		a := Classify(nil, nil, 10.0)
		if !a.Indeterminate || a.Status() != "indeterminate" {
			t.Errorf("expected indeterminate assessment, got %+v", a)
		}
	})

	t.Run("one missing positive", func(t *testing.T) {
		a := Classify(nil, positive, 10.0)
		if a.Indeterminate {
			t.Fatal("one landmark is enough to classify")
		}
		if !a.Positive || !a.TorculaPositive || a.SSSPositive {
			t.Errorf("expected torcula-only positive, got %+v", a)
		}
	})

	t.Run("one missing negative", func(t *testing.T) {
		a := Classify(nil, negative, 10.0)
		if a.Indeterminate || a.Positive {
			t.Errorf("expected negative assessment, got %+v", a)
		}
		if a.Status() != "negative" {
			t.Errorf("expected status negative, got %q", a.Status())
		}
	})
}

func TestStatusNilAssessment(t *testing.T) {
	var a *Assessment
	if got := a.Status(); got != "indeterminate" {
		t.Errorf("expected indeterminate for nil assessment, got %q", got)
	}
}

func TestAssess(t *testing.T) {
	// A 3-slice volume with a delayed block on the top slice. The
	// torcula sphere covers the whole of this small volume and the SSS
	// box covers the top slice, so both landmarks sample brain tissue.
	tmax, brain := testTmax(3, 4, 4, 2.0)
	for row := 0; row < 2; row++ {
		for col := 1; col < 3; col++ {
			tmax.Set(2, row, col, 12.0)
		}
	}

	assessment, errs := Assess(tmax, brain, 10.0)
	if len(errs) != 0 {
		t.Fatalf("unexpected sampling errors: %v", errs)
	}
	if !assessment.Positive || assessment.Indeterminate {
		t.Errorf("expected positive assessment, got %+v", assessment)
	}
	if assessment.SSS == nil || assessment.Torcula == nil {
		t.Fatal("expected both landmarks sampled")
	}

	// With no delayed voxels the same study is negative.
	quiet, brainQ := testTmax(3, 4, 4, 2.0)
	assessment, errs = Assess(quiet, brainQ, 10.0)
	if len(errs) != 0 {
		t.Fatalf("unexpected sampling errors: %v", errs)
	}
	if assessment.Positive || assessment.Indeterminate {
		t.Errorf("expected negative assessment, got %+v", assessment)
	}
}

func TestAssessNoBrain(t *testing.T) {
	tmax, _ := testTmax(3, 4, 4, 2.0)
	noBrain := volume.NewMask(3, 4, 4)

	assessment, errs := Assess(tmax, noBrain, 10.0)
	if len(errs) != 2 {
		t.Fatalf("expected one error per landmark, got %v", errs)
	}
	for _, err := range errs {
		var empty *EmptyROIError
		if !errors.As(err, &empty) {
			t.Errorf("expected EmptyROIError, got %T: %v", err, err)
		}
	}
	if !assessment.Indeterminate {
		t.Error("expected indeterminate assessment with no sampled landmarks")
	}
}

package analysis

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"ctperf/pkg/config"
	"ctperf/pkg/decode"
	"ctperf/pkg/perfusion"
	"ctperf/pkg/volume"
)

var testSpacing = volume.Spacing{RowMM: 0.5, ColMM: 0.5, ThicknessMM: 3.0}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Output.Verbose = false
	return cfg
}

// grayImage encodes a scalar slice into the RGB convention the decoder
// inverts.
func grayImage(rows, cols int, values []float64, maxValue float64) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, cols, rows))
	for i, v := range values {
		r, g, b := decode.Encode(v, maxValue)
		img.SetRGBA(i%cols, i/cols, color.RGBA{R: r, G: g, B: b, A: 255})
	}
	return img
}

// blockStudy builds a 3-slice 4x4 single-series study whose only signal
// is a 2x2 block of the given value on one slice.
func blockStudy(role volume.SeriesRole, blockSlice int, blockValue, maxValue float64) *Study {
	study := &Study{Series: make(map[volume.SeriesRole][]RGBSlice)}
	for z := 0; z < 3; z++ {
		values := make([]float64, 16)
		if z == blockSlice {
			for row := 0; row < 2; row++ {
				for col := 1; col < 3; col++ {
					values[row*4+col] = blockValue
				}
			}
		}
		study.Series[role] = append(study.Series[role], RGBSlice{
			Image:       grayImage(4, 4, values, maxValue),
			ZPositionMM: float64(z) * testSpacing.ThicknessMM,
			Spacing:     testSpacing,
		})
	}
	return study
}

// TestRunSmallLesion runs the whole pipeline on a synthetic study: a
// 2x2 block of maximally delayed tissue on the top slice. With 0.5mm x
// 0.5mm x 3mm voxels the four block voxels make 0.003 ml, and the delay
// inside both venous landmarks makes the study PVT positive.
func TestRunSmallLesion(t *testing.T) {
	study := blockStudy(volume.RoleTimeToMax, 2, 12.0, 12.0)

	result, err := New(testConfig()).Run(study)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	m := result.Metrics

	if math.Abs(m.HypoperfusionVolumeML-0.003) > 1e-9 {
		t.Errorf("expected hypoperfusion volume 0.003 ml, got %v", m.HypoperfusionVolumeML)
	}
	if math.Abs(m.CoreVolumeML-0.003) > 1e-9 {
		t.Errorf("expected core volume 0.003 ml, got %v", m.CoreVolumeML)
	}
	if m.PenumbraVolumeML != 0 {
		t.Errorf("expected empty penumbra, got %v ml", m.PenumbraVolumeML)
	}
	if !m.MismatchRatio.Defined || math.Abs(m.MismatchRatio.Value-1.0) > 1e-9 {
		t.Errorf("expected mismatch ratio 1.0, got %v", m.MismatchRatio)
	}
	if m.CoreDefinition != "tmax-only" {
		t.Errorf("expected tmax-only core definition, got %q", m.CoreDefinition)
	}

	if m.PVTStatus != "positive" || !m.PVTPositive {
		t.Errorf("expected PVT positive, got status %q", m.PVTStatus)
	}
	if result.VenousIndeterminate {
		t.Error("venous assessment should be determinate")
	}

	for _, name := range []string{"hypoperfusion", "core", "penumbra"} {
		if result.Masks[name] == nil {
			t.Errorf("expected mask %q in result", name)
		}
	}
	if got := result.Masks["hypoperfusion"].Count(); got != 4 {
		t.Errorf("expected 4 hypoperfused voxels, got %d", got)
	}
	if len(m.SliceStats) != 3 {
		t.Errorf("expected stats for 3 slices, got %d", len(m.SliceStats))
	}
}

// TestRunNoCore uses a moderately delayed lesion: hypoperfused but
// below every core definition, so the mismatch ratio is undefined and
// the venous assessment is negative.
func TestRunNoCore(t *testing.T) {
	study := blockStudy(volume.RoleTimeToMax, 2, 8.0, 12.0)

	result, err := New(testConfig()).Run(study)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	m := result.Metrics

	if math.Abs(m.HypoperfusionVolumeML-0.003) > 1e-9 {
		t.Errorf("expected hypoperfusion volume 0.003 ml, got %v", m.HypoperfusionVolumeML)
	}
	if m.CoreVolumeML != 0 {
		t.Errorf("expected empty core, got %v ml", m.CoreVolumeML)
	}
	if m.MismatchRatio.Defined {
		t.Errorf("expected undefined mismatch ratio, got %v", m.MismatchRatio.Value)
	}
	if m.PVTStatus != "negative" || m.PVTPositive {
		t.Errorf("expected PVT negative, got status %q", m.PVTStatus)
	}
}

// TestRunCBVCore adds a CBV series so the absolute-CBV core definition
// applies.
func TestRunCBVCore(t *testing.T) {
	study := blockStudy(volume.RoleTimeToMax, 2, 12.0, 12.0)
	cbvStudy := blockStudy(volume.RoleCerebralBloodVolume, 2, 1.5, 100.0)
	study.Series[volume.RoleCerebralBloodVolume] = cbvStudy.Series[volume.RoleCerebralBloodVolume]

	result, err := New(testConfig()).Run(study)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	m := result.Metrics

	if m.CoreDefinition != "cbv-absolute" {
		t.Errorf("expected cbv-absolute core definition, got %q", m.CoreDefinition)
	}
	// The whole lesion is severely delayed with CBV below 2.0 ml/100g.
	if math.Abs(m.CoreVolumeML-0.003) > 1e-9 {
		t.Errorf("expected core volume 0.003 ml, got %v", m.CoreVolumeML)
	}
}

// TestRunVenousIndeterminate places the lesion outside both venous
// landmarks in a wide volume: the venous fields degrade to
// indeterminate while the lesion volumes still compute.
func TestRunVenousIndeterminate(t *testing.T) {
	study := &Study{Series: make(map[volume.SeriesRole][]RGBSlice)}
	for z := 0; z < 3; z++ {
		values := make([]float64, 4*40)
		if z == 0 {
			for row := 0; row < 2; row++ {
				for col := 36; col < 38; col++ {
					values[row*40+col] = 12.0
				}
			}
		}
		study.Series[volume.RoleTimeToMax] = append(study.Series[volume.RoleTimeToMax], RGBSlice{
			Image:       grayImage(4, 40, values, 12.0),
			ZPositionMM: float64(z) * testSpacing.ThicknessMM,
			Spacing:     testSpacing,
		})
	}

	result, err := New(testConfig()).Run(study)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !result.VenousIndeterminate {
		t.Error("expected indeterminate venous assessment")
	}
	if result.Metrics.PVTStatus != "indeterminate" {
		t.Errorf("expected indeterminate PVT status, got %q", result.Metrics.PVTStatus)
	}
	if math.Abs(result.Metrics.HypoperfusionVolumeML-0.003) > 1e-9 {
		t.Errorf("lesion volume must still compute: expected 0.003 ml, got %v",
			result.Metrics.HypoperfusionVolumeML)
	}
}

func TestRunGeometryError(t *testing.T) {
	study := &Study{Series: map[volume.SeriesRole][]RGBSlice{
		volume.RoleTimeToMax: {
			{Image: grayImage(4, 4, make([]float64, 16), 12.0), ZPositionMM: 0, Spacing: testSpacing},
			{Image: grayImage(4, 5, make([]float64, 20), 12.0), ZPositionMM: 3, Spacing: testSpacing},
		},
	}}

	_, err := New(testConfig()).Run(study)
	var geom *volume.InconsistentGeometryError
	if !errors.As(err, &geom) {
		t.Fatalf("expected InconsistentGeometryError, got %T: %v", err, err)
	}
}

func TestRunMissingTmax(t *testing.T) {
	study := blockStudy(volume.RoleCerebralBloodVolume, 2, 50.0, 100.0)

	_, err := New(testConfig()).Run(study)
	var missing *perfusion.MissingSeriesError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSeriesError without Tmax, got %T: %v", err, err)
	}
}

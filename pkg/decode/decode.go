// Package decode inverts the vendor's RGB colormap encoding of CT
// perfusion parameter maps back into calibrated scalar values.
//
// The vendor stores each parametric map (Tmax, CBV, CBF, MTT, TTP) as a
// color-mapped 8-bit RGB image. The inversion is a weighted-luminance
// mapping: a pixel's luminance, scaled by the series' maximum
// physiologic value, recovers the encoded scalar. Two color-ramp
// families exist (flow/volume maps and time maps); both invert with the
// same formula and differ only in the value range they span.
package decode

import (
	"image"

	"ctperf/pkg/volume"
)

// Mode selects the color-ramp family of a series.
type Mode int

const (
	// ModeFlowVolume is the ramp used by CBF and CBV maps.
	ModeFlowVolume Mode = iota

	// ModeTimeSeries is the ramp used by Tmax, MTT and TTP maps.
	ModeTimeSeries
)

// backgroundChannelSum is the channel-sum floor below which a pixel is
// treated as matte background rather than encoded signal. Black borders
// compress to small non-zero bytes, so an exact-zero test is not enough.
const backgroundChannelSum = 10

// Luminance weights of the ITU-R BT.601 grayscale conversion.
const (
	weightR = 0.299
	weightG = 0.587
	weightB = 0.114
)

// ModeFor returns the color-ramp family for a series role.
func ModeFor(role volume.SeriesRole) Mode {
	switch role {
	case volume.RoleCerebralBloodVolume, volume.RoleCerebralBloodFlow:
		return ModeFlowVolume
	}
	return ModeTimeSeries
}

// Pixel decodes one RGB pixel into a scalar value in [0, maxValue].
// Pixels whose channel sum is below the background floor decode to
// exactly 0 regardless of the formula result.
func Pixel(r, g, b uint8, maxValue float64) float64 {
	if int(r)+int(g)+int(b) < backgroundChannelSum {
		return 0
	}
	intensity := weightR*float64(r) + weightG*float64(g) + weightB*float64(b)
	return intensity / 255.0 * maxValue
}

// Image decodes a full RGB slice image into a scalar slice of the same
// spatial shape. The decode is per-pixel and stateless.
func Image(img image.Image, maxValue float64) ([]float64, int, int) {
	bounds := img.Bounds()
	cols := bounds.Dx()
	rows := bounds.Dy()
	out := make([]float64, rows*cols)

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// RGBA returns 16-bit channels; the source data is 8-bit.
			out[y*cols+x] = Pixel(uint8(r>>8), uint8(g>>8), uint8(b>>8), maxValue)
		}
	}
	return out, rows, cols
}

// Encode maps a scalar value in [0, maxValue] back to the gray RGB
// pixel that decodes to it. Used to synthesize test images and to
// verify the decoder round-trip.
func Encode(value, maxValue float64) (r, g, b uint8) {
	if value < 0 {
		value = 0
	}
	if value > maxValue {
		value = maxValue
	}
	byteVal := uint8(value/maxValue*255.0 + 0.5)
	return byteVal, byteVal, byteVal
}

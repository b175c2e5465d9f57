// Package visualization renders per-slice review images of an analysis
// run: the Tmax volume in grayscale with the lesion masks tinted on
// top. The images are for human review only; every quantitative output
// comes from the metrics record.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"

	"ctperf/pkg/volume"
)

// Overlay tints for the lesion masks. Core paints over penumbra where
// both are set, matching the containment of the masks themselves.
var (
	coreTint     = color.RGBA{R: 220, G: 40, B: 40, A: 255}
	penumbraTint = color.RGBA{R: 230, G: 200, B: 40, A: 255}
)

// Renderer draws axial overlay slices from one decoded volume and the
// lesion masks derived from it.
type Renderer struct {
	vol      *volume.ScalarVolume
	core     *volume.Mask
	penumbra *volume.Mask

	// maxValue is the scalar value rendered as full white.
	maxValue float64
}

// NewRenderer creates a renderer for the given background volume and
// lesion masks. Either mask may be nil to skip its tint.
func NewRenderer(vol *volume.ScalarVolume, core, penumbra *volume.Mask, maxValue float64) *Renderer {
	return &Renderer{vol: vol, core: core, penumbra: penumbra, maxValue: maxValue}
}

// RenderSlice draws one axial slice: the scalar values in grayscale
// with the mask tints blended in.
func (r *Renderer) RenderSlice(z int) (image.Image, error) {
	if z < 0 || z >= r.vol.Slices {
		return nil, fmt.Errorf("slice %d outside volume of %d slices", z, r.vol.Slices)
	}

	img := image.NewRGBA(image.Rect(0, 0, r.vol.Cols, r.vol.Rows))
	for row := 0; row < r.vol.Rows; row++ {
		for col := 0; col < r.vol.Cols; col++ {
			gray := r.grayValue(r.vol.At(z, row, col))
			c := color.RGBA{R: gray, G: gray, B: gray, A: 255}
			if r.penumbra != nil && r.penumbra.At(z, row, col) {
				c = blend(c, penumbraTint)
			}
			if r.core != nil && r.core.At(z, row, col) {
				c = blend(c, coreTint)
			}
			img.SetRGBA(col, row, c)
		}
	}
	return img, nil
}

func (r *Renderer) grayValue(v float64) uint8 {
	if r.maxValue <= 0 || v <= 0 {
		return 0
	}
	scaled := v / r.maxValue * 255.0
	if scaled > 255 {
		scaled = 255
	}
	return uint8(scaled)
}

// blend mixes the tint into the background at half strength so the
// underlying anatomy stays visible.
func blend(bg, tint color.RGBA) color.RGBA {
	return color.RGBA{
		R: uint8((int(bg.R) + int(tint.R)) / 2),
		G: uint8((int(bg.G) + int(tint.G)) / 2),
		B: uint8((int(bg.B) + int(tint.B)) / 2),
		A: 255,
	}
}

// SaveOverlays renders every axial slice and writes the sequence as
// JPEG files named overlay_000.jpg, overlay_001.jpg, ... into dir.
func (r *Renderer) SaveOverlays(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating overlay directory: %w", err)
	}

	for z := 0; z < r.vol.Slices; z++ {
		img, err := r.RenderSlice(z)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, fmt.Sprintf("overlay_%03d.jpg", z))
		if err := saveJPEG(img, path); err != nil {
			return fmt.Errorf("error writing overlay %d: %w", z, err)
		}
	}
	return nil
}

func saveJPEG(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
}

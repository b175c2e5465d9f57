package visualization

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"ctperf/pkg/volume"
)

func testVolume() *volume.ScalarVolume {
	data := make([]float64, 2*2*2)
	data[0] = 12.0 // (0,0,0) full scale
	data[1] = 6.0  // (0,0,1) half scale
	return &volume.ScalarVolume{
		Role: volume.RoleTimeToMax, Data: data, Slices: 2, Rows: 2, Cols: 2,
	}
}

func TestRenderSlice(t *testing.T) {
	vol := testVolume()
	core := volume.NewMask(2, 2, 2)
	core.Set(0, 0, 0, true)
	penumbra := volume.NewMask(2, 2, 2)
	penumbra.Set(0, 0, 1, true)

	r := NewRenderer(vol, core, penumbra, 12.0)
	img, err := r.RenderSlice(0)
	if err != nil {
		t.Fatalf("RenderSlice failed: %v", err)
	}

	if img.Bounds().Dx() != 2 || img.Bounds().Dy() != 2 {
		t.Fatalf("expected 2x2 image, got %v", img.Bounds())
	}

	// Core voxel: white background blended with the red tint, so red
	// dominates green and blue.
	cr, cg, cb, _ := img.At(0, 0).RGBA()
	if cr <= cg || cr <= cb {
		t.Errorf("expected red-dominant core voxel, got r=%d g=%d b=%d", cr>>8, cg>>8, cb>>8)
	}

	// Background voxel with no signal and no mask stays black.
	br, bg, bb, _ := img.At(0, 1).RGBA()
	if br != 0 || bg != 0 || bb != 0 {
		t.Errorf("expected black background voxel, got r=%d g=%d b=%d", br>>8, bg>>8, bb>>8)
	}

	if _, err := r.RenderSlice(5); err == nil {
		t.Error("expected error for out-of-range slice")
	}
}

func TestRenderSliceNilMasks(t *testing.T) {
	r := NewRenderer(testVolume(), nil, nil, 12.0)
	img, err := r.RenderSlice(0)
	if err != nil {
		t.Fatalf("RenderSlice failed: %v", err)
	}

	// Full-scale voxel renders as plain white with no masks to tint it.
	got := color.RGBAModel.Convert(img.At(0, 0)).(color.RGBA)
	if got.R != 255 || got.G != 255 || got.B != 255 {
		t.Errorf("expected white voxel, got %+v", got)
	}
}

func TestSaveOverlays(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "overlays")
	r := NewRenderer(testVolume(), nil, nil, 12.0)

	if err := r.SaveOverlays(dir); err != nil {
		t.Fatalf("SaveOverlays failed: %v", err)
	}

	for _, name := range []string{"overlay_000.jpg", "overlay_001.jpg"} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("expected overlay %s: %v", name, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("overlay %s is empty", name)
		}
	}
}

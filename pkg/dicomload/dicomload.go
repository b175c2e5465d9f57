// Package dicomload reads a vendor CT perfusion DICOM study from disk
// and materializes it as the in-memory study the analysis pipeline
// consumes: per-series ordered RGB slices with their spatial metadata.
// It is a boundary collaborator; no analysis logic lives here.
package dicomload

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/dicomtag"
	"github.com/suyashkumar/dicom/element"

	"ctperf/pkg/analysis"
	"ctperf/pkg/volume"
)

// MatchSeriesRole maps a DICOM SeriesDescription to the perfusion
// parameter it carries. The vendor names series with keywords such as
// "TMAXD", "CBVD", "CBFD". Unknown descriptions map to RoleUnknown and
// are skipped by the loader.
func MatchSeriesRole(description string) volume.SeriesRole {
	desc := strings.ToUpper(description)
	switch {
	case strings.Contains(desc, "TMAX"):
		return volume.RoleTimeToMax
	case strings.Contains(desc, "CBV"):
		return volume.RoleCerebralBloodVolume
	case strings.Contains(desc, "CBF"):
		return volume.RoleCerebralBloodFlow
	case strings.Contains(desc, "MTT"):
		return volume.RoleMeanTransitTime
	case strings.Contains(desc, "TTP"):
		return volume.RoleTimeToPeak
	case strings.Contains(desc, "PENUMBRA"):
		return volume.RolePenumbraOverlay
	}
	return volume.RoleUnknown
}

// sliceMeta is what we pull out of one DICOM file.
type sliceMeta struct {
	role        volume.SeriesRole
	zPositionMM float64
	spacing     volume.Spacing
	img         image.Image
}

// LoadStudy reads every .dcm file under dir and groups the color-mapped
// slices by series role. Files without a recognized series description
// or without RGB pixel data are skipped; the analysis assembler handles
// slice ordering, so slices are returned in directory order.
func LoadStudy(dir string) (*analysis.Study, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read study directory: %w", err)
	}

	study := &analysis.Study{Series: make(map[volume.SeriesRole][]analysis.RGBSlice)}
	parsed := 0
	for _, entry := range entries {
		if entry.IsDir() || strings.ToLower(filepath.Ext(entry.Name())) != ".dcm" {
			continue
		}
		meta, err := loadSlice(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", entry.Name(), err)
		}
		if meta == nil {
			continue
		}
		parsed++
		study.Series[meta.role] = append(study.Series[meta.role], analysis.RGBSlice{
			Image:       meta.img,
			ZPositionMM: meta.zPositionMM,
			Spacing:     meta.spacing,
		})
	}

	if parsed == 0 {
		return nil, fmt.Errorf("no perfusion series found in %s", dir)
	}
	return study, nil
}

// loadSlice parses one DICOM file. It returns nil (no error) when the
// file belongs to no recognized perfusion series or carries no RGB
// pixel data.
func loadSlice(path string) (*sliceMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	p, err := dicom.NewParserFromBytes(data, nil)
	if err != nil {
		return nil, err
	}
	parsedData, err := p.Parse(dicom.ParseOptions{})
	if parsedData == nil || err != nil {
		return nil, fmt.Errorf("error parsing dicom: %v", err)
	}

	meta := &sliceMeta{
		// Vendor studies commonly omit spacing on derived maps; the
		// scanner's defaults keep volumes computable in that case.
		spacing: volume.Spacing{RowMM: 0.5, ColMM: 0.5, ThicknessMM: 3.0},
	}
	var rows, cols int
	var samplesPerPixel uint16 = 1
	var pixels []element.PixelDataInfo

	for _, elem := range parsedData.Elements {
		switch {
		case elem.Tag == dicomtag.SeriesDescription:
			if len(elem.Value) > 0 {
				meta.role = MatchSeriesRole(elem.Value[0].(string))
			}

		case elem.Tag == dicomtag.Rows:
			rows = int(elem.Value[0].(uint16))

		case elem.Tag == dicomtag.Columns:
			cols = int(elem.Value[0].(uint16))

		case elem.Tag == dicomtag.SamplesPerPixel:
			samplesPerPixel = elem.Value[0].(uint16)

		case elem.Tag == dicomtag.ImagePositionPatient:
			if len(elem.Value) == 3 {
				z, err := strconv.ParseFloat(elem.Value[2].(string), 64)
				if err == nil {
					meta.zPositionMM = z
				}
			}

		case elem.Tag == dicomtag.PixelSpacing:
			for k, v := range elem.Value {
				f, err := strconv.ParseFloat(v.(string), 64)
				if err != nil {
					continue
				}
				if k == 0 {
					meta.spacing.RowMM = f
				} else if k == 1 {
					meta.spacing.ColMM = f
				}
			}

		case elem.Tag == dicomtag.SliceThickness:
			if len(elem.Value) > 0 {
				f, err := strconv.ParseFloat(elem.Value[0].(string), 64)
				if err == nil {
					meta.spacing.ThicknessMM = f
				}
			}

		case elem.Tag == dicomtag.PixelData:
			info, ok := elem.Value[0].(element.PixelDataInfo)
			if ok {
				pixels = append(pixels, info)
			}
		}
	}

	if meta.role == volume.RoleUnknown || samplesPerPixel != 3 || len(pixels) == 0 {
		return nil, nil
	}
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("missing image dimensions")
	}

	img, err := rgbFrameImage(pixels[0], rows, cols)
	if err != nil {
		return nil, err
	}
	meta.img = img
	return meta, nil
}

// rgbFrameImage converts the first native frame of a pixel data element
// into an RGB image.
func rgbFrameImage(info element.PixelDataInfo, rows, cols int) (image.Image, error) {
	if len(info.Frames) == 0 {
		return nil, fmt.Errorf("pixel data has no frames")
	}
	frame := info.Frames[0]
	if frame.IsEncapsulated() {
		return nil, fmt.Errorf("encapsulated pixel data is not supported")
	}
	if len(frame.NativeData.Data) != rows*cols {
		return nil, fmt.Errorf("pixel data has %d samples, expected %d",
			len(frame.NativeData.Data), rows*cols)
	}

	img := image.NewRGBA(image.Rect(0, 0, cols, rows))
	for i, px := range frame.NativeData.Data {
		if len(px) < 3 {
			return nil, fmt.Errorf("pixel %d has %d channels, expected 3", i, len(px))
		}
		img.SetRGBA(i%cols, i/cols, color.RGBA{
			R: uint8(px[0]),
			G: uint8(px[1]),
			B: uint8(px[2]),
			A: 255,
		})
	}
	return img, nil
}

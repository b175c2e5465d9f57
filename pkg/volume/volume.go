// Package volume provides the volumetric data model for CT perfusion
// analysis: scalar parameter volumes assembled from decoded 2D slices,
// boolean tissue masks, and the set algebra used to combine them.
package volume

import (
	"fmt"
	"sort"
)

// SeriesRole identifies which perfusion parameter a volume carries.
type SeriesRole int

const (
	RoleUnknown SeriesRole = iota

	// RoleTimeToMax is the Tmax delay map in seconds.
	RoleTimeToMax

	// RoleCerebralBloodVolume is the CBV map in ml/100g.
	RoleCerebralBloodVolume

	// RoleCerebralBloodFlow is the CBF map in ml/100g/min.
	RoleCerebralBloodFlow

	// RoleMeanTransitTime is the MTT map in seconds.
	RoleMeanTransitTime

	// RoleTimeToPeak is the TTP map in seconds.
	RoleTimeToPeak

	// RolePenumbraOverlay is the vendor's own penumbra overlay series.
	// It is carried through loading but never used for mask derivation.
	RolePenumbraOverlay
)

// String returns the short clinical name for the series role.
func (r SeriesRole) String() string {
	switch r {
	case RoleTimeToMax:
		return "Tmax"
	case RoleCerebralBloodVolume:
		return "CBV"
	case RoleCerebralBloodFlow:
		return "CBF"
	case RoleMeanTransitTime:
		return "MTT"
	case RoleTimeToPeak:
		return "TTP"
	case RolePenumbraOverlay:
		return "PenumbraOverlay"
	}
	return "Unknown"
}

// Spacing holds the physical voxel dimensions in millimeters.
type Spacing struct {
	// RowMM is the in-plane spacing between rows.
	RowMM float64

	// ColMM is the in-plane spacing between columns.
	ColMM float64

	// ThicknessMM is the slice thickness along the z axis.
	ThicknessMM float64
}

// VoxelVolumeMM3 returns the physical volume of one voxel in cubic mm.
func (s Spacing) VoxelVolumeMM3() float64 {
	return s.RowMM * s.ColMM * s.ThicknessMM
}

// Slice is one decoded 2D scalar slice together with the spatial
// metadata needed to place it inside a volume.
type Slice struct {
	// Data is the scalar slice in row-major order (row*Cols + col).
	Data []float64

	// Rows and Cols are the slice dimensions.
	Rows, Cols int

	// ZPositionMM is the physical position of the slice along the
	// scanner z axis.
	ZPositionMM float64

	// Spacing is the voxel spacing reported for this slice. All slices
	// of a series must agree.
	Spacing Spacing
}

// ScalarVolume is a 3D scalar field for one series role. Data is stored
// z-major: index = z*Rows*Cols + row*Cols + col. Slices are ordered by
// ascending z position.
type ScalarVolume struct {
	Role    SeriesRole
	Data    []float64
	Slices  int
	Rows    int
	Cols    int
	Spacing Spacing

	// ZPositionsMM lists the z position of every slice, ascending.
	ZPositionsMM []float64
}

// InconsistentGeometryError reports a slice whose shape or spacing does
// not match the rest of its series. It aborts the whole analysis since
// a volume built from mismatched slices has no meaningful voxel grid.
type InconsistentGeometryError struct {
	Role   SeriesRole
	Reason string
}

func (e *InconsistentGeometryError) Error() string {
	return fmt.Sprintf("inconsistent geometry in %s series: %s", e.Role, e.Reason)
}

// Assemble stacks decoded slices into a single ScalarVolume. Slices are
// sorted by ascending z position; the sort is stable so slices that
// share a z position keep their input order. It returns an
// InconsistentGeometryError when slice dimensions or spacing disagree.
func Assemble(role SeriesRole, slices []Slice) (*ScalarVolume, error) {
	if len(slices) == 0 {
		return nil, &InconsistentGeometryError{Role: role, Reason: "no slices"}
	}

	rows, cols := slices[0].Rows, slices[0].Cols
	spacing := slices[0].Spacing
	if rows <= 0 || cols <= 0 {
		return nil, &InconsistentGeometryError{
			Role:   role,
			Reason: fmt.Sprintf("invalid slice dimensions %dx%d", rows, cols),
		}
	}

	for i, s := range slices {
		if s.Rows != rows || s.Cols != cols {
			return nil, &InconsistentGeometryError{
				Role: role,
				Reason: fmt.Sprintf("slice %d is %dx%d, expected %dx%d",
					i, s.Rows, s.Cols, rows, cols),
			}
		}
		if s.Spacing != spacing {
			return nil, &InconsistentGeometryError{
				Role: role,
				Reason: fmt.Sprintf("slice %d spacing %+v differs from %+v",
					i, s.Spacing, spacing),
			}
		}
		if len(s.Data) != rows*cols {
			return nil, &InconsistentGeometryError{
				Role: role,
				Reason: fmt.Sprintf("slice %d has %d values, expected %d",
					i, len(s.Data), rows*cols),
			}
		}
	}

	// Order by z position ascending. Ties preserve input order.
	ordered := make([]Slice, len(slices))
	copy(ordered, slices)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ZPositionMM < ordered[j].ZPositionMM
	})

	vol := &ScalarVolume{
		Role:         role,
		Data:         make([]float64, len(ordered)*rows*cols),
		Slices:       len(ordered),
		Rows:         rows,
		Cols:         cols,
		Spacing:      spacing,
		ZPositionsMM: make([]float64, len(ordered)),
	}
	for z, s := range ordered {
		copy(vol.Data[z*rows*cols:(z+1)*rows*cols], s.Data)
		vol.ZPositionsMM[z] = s.ZPositionMM
	}
	return vol, nil
}

// Index returns the flat index of a voxel.
func (v *ScalarVolume) Index(z, row, col int) int {
	return z*v.Rows*v.Cols + row*v.Cols + col
}

// At returns the scalar value at the given voxel.
func (v *ScalarVolume) At(z, row, col int) float64 {
	return v.Data[v.Index(z, row, col)]
}

// Set assigns the scalar value at the given voxel.
func (v *ScalarVolume) Set(z, row, col int, value float64) {
	v.Data[v.Index(z, row, col)] = value
}

// VoxelVolumeMM3 returns the physical volume of one voxel in cubic mm.
func (v *ScalarVolume) VoxelVolumeMM3() float64 {
	return v.Spacing.VoxelVolumeMM3()
}

// SameShape reports whether two volumes share the same voxel grid.
func (v *ScalarVolume) SameShape(o *ScalarVolume) bool {
	return v.Slices == o.Slices && v.Rows == o.Rows && v.Cols == o.Cols
}

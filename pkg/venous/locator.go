// Package venous assesses prolonged venous transit (PVT) from the Tmax
// volume. Two small venous landmarks are sampled with position
// heuristics relative to the volume extent: the posterior superior
// sagittal sinus (SSS) and the confluence of sinuses (torcula). The
// classification is presence-based: a single voxel at or above the
// threshold in either landmark makes the study PVT positive.
package venous

// BoxROI is an axis-aligned voxel region, half-open on every axis.
type BoxROI struct {
	Z0, Z1     int
	Row0, Row1 int
	Col0, Col1 int
}

// SphereROI is a spherical voxel region given by center and radius.
type SphereROI struct {
	Z, Row, Col int
	Radius      int
}

// Placement constants for the heuristic anatomical locators. They are
// fractions of the volume extent, not atlas coordinates; the locators
// below are pure functions of the volume shape so that an atlas-based
// placement can replace them without touching sampling or
// classification.
const (
	sssDepthFraction   = 0.75 // SSS occupies the top quarter of slices
	sssHalfWidthVoxels = 8    // columns within ±8 voxels of midline

	torculaDepthFraction = 0.60 // torcula center along z
	torculaRowFraction   = 0.75 // posterior: 75% of the row extent
	torculaRadiusVoxels  = 12
)

// LocateSSS returns the superior sagittal sinus search region for a
// volume of the given shape: the posterior-superior slices (75%-100% of
// depth) restricted to a narrow band around the midline column.
func LocateSSS(slices, rows, cols int) BoxROI {
	mid := cols / 2
	roi := BoxROI{
		Z0:   int(float64(slices) * sssDepthFraction),
		Z1:   slices,
		Row0: 0,
		Row1: rows,
		Col0: mid - sssHalfWidthVoxels,
		Col1: mid + sssHalfWidthVoxels + 1,
	}
	if roi.Col0 < 0 {
		roi.Col0 = 0
	}
	if roi.Col1 > cols {
		roi.Col1 = cols
	}
	return roi
}

// LocateTorcula returns the confluence-of-sinuses search region for a
// volume of the given shape: a sphere centered posteriorly on the
// midline at 60% of the volume depth.
func LocateTorcula(slices, rows, cols int) SphereROI {
	return SphereROI{
		Z:      int(float64(slices) * torculaDepthFraction),
		Row:    int(float64(rows) * torculaRowFraction),
		Col:    cols / 2,
		Radius: torculaRadiusVoxels,
	}
}

package volume

import "fmt"

// Mask is a 3D boolean volume with the same voxel grid as the scalar
// volume it was derived from. Masks are never mutated after they are
// built; every set operation returns a new mask.
type Mask struct {
	Data   []bool
	Slices int
	Rows   int
	Cols   int
}

// NewMask returns an all-false mask with the given dimensions.
func NewMask(slices, rows, cols int) *Mask {
	return &Mask{
		Data:   make([]bool, slices*rows*cols),
		Slices: slices,
		Rows:   rows,
		Cols:   cols,
	}
}

// MaskFromPredicate builds a mask by evaluating pred at every voxel of
// the scalar volume.
func MaskFromPredicate(v *ScalarVolume, pred func(float64) bool) *Mask {
	m := NewMask(v.Slices, v.Rows, v.Cols)
	for i, val := range v.Data {
		m.Data[i] = pred(val)
	}
	return m
}

// Index returns the flat index of a voxel.
func (m *Mask) Index(z, row, col int) int {
	return z*m.Rows*m.Cols + row*m.Cols + col
}

// At returns whether the voxel is set.
func (m *Mask) At(z, row, col int) bool {
	return m.Data[m.Index(z, row, col)]
}

// Set assigns the voxel.
func (m *Mask) Set(z, row, col int, value bool) {
	m.Data[m.Index(z, row, col)] = value
}

// SameShape reports whether two masks share the same voxel grid.
func (m *Mask) SameShape(o *Mask) bool {
	return m.Slices == o.Slices && m.Rows == o.Rows && m.Cols == o.Cols
}

// Count returns the number of set voxels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		if v {
			n++
		}
	}
	return n
}

// CountInSlice returns the number of set voxels in one z slice.
func (m *Mask) CountInSlice(z int) int {
	n := 0
	base := z * m.Rows * m.Cols
	for _, v := range m.Data[base : base+m.Rows*m.Cols] {
		if v {
			n++
		}
	}
	return n
}

func (m *Mask) mustMatch(o *Mask) {
	if !m.SameShape(o) {
		panic(fmt.Sprintf("volume: mask shape mismatch %dx%dx%d vs %dx%dx%d",
			m.Slices, m.Rows, m.Cols, o.Slices, o.Rows, o.Cols))
	}
}

// And returns the voxel-wise intersection of two masks.
func (m *Mask) And(o *Mask) *Mask {
	m.mustMatch(o)
	out := NewMask(m.Slices, m.Rows, m.Cols)
	for i := range m.Data {
		out.Data[i] = m.Data[i] && o.Data[i]
	}
	return out
}

// Or returns the voxel-wise union of two masks.
func (m *Mask) Or(o *Mask) *Mask {
	m.mustMatch(o)
	out := NewMask(m.Slices, m.Rows, m.Cols)
	for i := range m.Data {
		out.Data[i] = m.Data[i] || o.Data[i]
	}
	return out
}

// AndNot returns the voxel-wise difference m ∧ ¬o.
func (m *Mask) AndNot(o *Mask) *Mask {
	m.mustMatch(o)
	out := NewMask(m.Slices, m.Rows, m.Cols)
	for i := range m.Data {
		out.Data[i] = m.Data[i] && !o.Data[i]
	}
	return out
}

// Not returns the voxel-wise complement.
func (m *Mask) Not() *Mask {
	out := NewMask(m.Slices, m.Rows, m.Cols)
	for i := range m.Data {
		out.Data[i] = !m.Data[i]
	}
	return out
}

// IsSubsetOf reports whether every set voxel of m is also set in o.
func (m *Mask) IsSubsetOf(o *Mask) bool {
	m.mustMatch(o)
	for i := range m.Data {
		if m.Data[i] && !o.Data[i] {
			return false
		}
	}
	return true
}

// MirrorColumns reflects the mask across the volume's midline column.
// This approximates the contralateral hemisphere for a head volume
// whose columns run left-right.
func (m *Mask) MirrorColumns() *Mask {
	out := NewMask(m.Slices, m.Rows, m.Cols)
	for z := 0; z < m.Slices; z++ {
		for row := 0; row < m.Rows; row++ {
			for col := 0; col < m.Cols; col++ {
				out.Set(z, row, m.Cols-1-col, m.At(z, row, col))
			}
		}
	}
	return out
}

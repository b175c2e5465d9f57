// Package perfusion derives the diseased-tissue masks and the clinical
// metrics record from assembled CT perfusion volumes: brain tissue
// masking, hypoperfusion/core/penumbra segmentation, and the
// volumetric and ratio metrics computed from them.
package perfusion

import (
	"ctperf/pkg/volume"
)

// Tissue-presence floors. The RGB inversion forces background pixels to
// exactly zero, so any plausible perfusion signal above these floors is
// evidence of brain parenchyma. The floors are deliberately permissive:
// a voxel missed by the brain mask is silently excluded from every
// lesion volume, which is worse than including a little noise.
const (
	brainTmaxFloorS = 0.1
	brainFlowFloor  = 0.5
)

// BuildBrainMask derives the tissue-presence mask from the available
// perfusion volumes. A voxel counts as brain when any available map
// shows signal above its floor (logical OR across maps). Volumes may be
// nil when the study lacks that series; at least one of tmax, cbv or
// cbf must be present or a MissingSeriesError is returned.
func BuildBrainMask(tmax, cbv, cbf *volume.ScalarVolume) (*volume.Mask, error) {
	var ref *volume.ScalarVolume
	for _, v := range []*volume.ScalarVolume{tmax, cbv, cbf} {
		if v != nil {
			ref = v
			break
		}
	}
	if ref == nil {
		return nil, &MissingSeriesError{Wanted: []volume.SeriesRole{
			volume.RoleTimeToMax,
			volume.RoleCerebralBloodVolume,
			volume.RoleCerebralBloodFlow,
		}}
	}

	for _, v := range []*volume.ScalarVolume{tmax, cbv, cbf} {
		if v != nil && !v.SameShape(ref) {
			return nil, &volume.InconsistentGeometryError{
				Role:   v.Role,
				Reason: "shape differs from other series in study",
			}
		}
	}

	mask := volume.NewMask(ref.Slices, ref.Rows, ref.Cols)
	for i := range mask.Data {
		present := false
		if tmax != nil && tmax.Data[i] > brainTmaxFloorS {
			present = true
		}
		if !present && cbv != nil && cbv.Data[i] > brainFlowFloor {
			present = true
		}
		if !present && cbf != nil && cbf.Data[i] > brainFlowFloor {
			present = true
		}
		mask.Data[i] = present
	}
	return mask, nil
}

package perfusion

import (
	"fmt"

	"ctperf/pkg/volume"
)

// MissingSeriesError reports that no series usable for brain-mask
// derivation was present in the study. Fatal: without a brain mask no
// downstream mask or metric can be trusted.
type MissingSeriesError struct {
	Wanted []volume.SeriesRole
}

func (e *MissingSeriesError) Error() string {
	return fmt.Sprintf("no usable series for brain mask derivation, wanted one of %v", e.Wanted)
}

// InvariantViolationError reports a threshold configuration under which
// the infarct core would not be a subset of the hypoperfused region.
// Fatal: emitting a penumbra mask derived from such masks would be
// clinically wrong.
type InvariantViolationError struct {
	Reason string
}

func (e *InvariantViolationError) Error() string {
	return "lesion mask invariant violated: " + e.Reason
}

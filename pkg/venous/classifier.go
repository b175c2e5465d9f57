package venous

import "ctperf/pkg/volume"

// Assessment is the outcome of the prolonged venous transit test.
type Assessment struct {
	// SSS and Torcula hold the per-landmark samples. Either may be nil
	// when the heuristic placement found no brain tissue there.
	SSS     *Sample
	Torcula *Sample

	// Per-landmark and combined classification. The test is
	// presence-based: any voxel at or above the threshold is positive.
	SSSPositive     bool
	TorculaPositive bool
	Positive        bool

	// Indeterminate is set when neither landmark could be sampled; the
	// boolean fields carry no meaning in that case.
	Indeterminate bool

	// ThresholdS is the Tmax cutoff the classification used.
	ThresholdS float64
}

// Status returns the assessment as a stable status string.
func (a *Assessment) Status() string {
	switch {
	case a == nil || a.Indeterminate:
		return "indeterminate"
	case a.Positive:
		return "positive"
	}
	return "negative"
}

// Classify applies the presence test to the sampled landmarks. Either
// sample may be nil; classification then rests on the remaining one,
// and with both missing the assessment is indeterminate.
//
// The comparison is inclusive (>=): a single voxel exactly at the
// threshold is a positive finding, mirroring the qualitative visual
// protocol of "is any region of delayed transit present", rather than a
// mean-based test that would miss small focal delays.
func Classify(sss, torcula *Sample, thresholdS float64) *Assessment {
	a := &Assessment{
		SSS:        sss,
		Torcula:    torcula,
		ThresholdS: thresholdS,
	}
	if sss == nil && torcula == nil {
		a.Indeterminate = true
		return a
	}
	if sss != nil {
		a.SSSPositive = sss.PositiveCount > 0
	}
	if torcula != nil {
		a.TorculaPositive = torcula.PositiveCount > 0
	}
	a.Positive = a.SSSPositive || a.TorculaPositive
	return a
}

// Assess locates, samples and classifies both venous landmarks in one
// call. Landmarks whose ROI misses brain tissue are dropped from the
// classification; the returned error list carries one EmptyROIError per
// missed landmark so the caller can report the degradation.
func Assess(tmax *volume.ScalarVolume, brain *volume.Mask, thresholdS float64) (*Assessment, []error) {
	var errs []error

	sss, err := SampleBox(tmax, brain,
		LocateSSS(tmax.Slices, tmax.Rows, tmax.Cols), thresholdS, "sss")
	if err != nil {
		errs = append(errs, err)
	}

	torcula, err := SampleSphere(tmax, brain,
		LocateTorcula(tmax.Slices, tmax.Rows, tmax.Cols), thresholdS, "torcula")
	if err != nil {
		errs = append(errs, err)
	}

	return Classify(sss, torcula, thresholdS), errs
}

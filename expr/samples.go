package expr

import "math"

// Sample carries the per-sample annotations used for grouping and column
// ordering. Covariate is NaN when the dataset provides none.
type Sample struct {
	ID        string
	Group     string
	Batch     string
	Covariate float64
}

// Samples maps sample IDs to their annotations, keyed by the same IDs as the
// matrix columns.
type Samples map[string]Sample

// Groups returns the group label for each of the given sample IDs. Samples
// without an annotation get the empty label.
func (s Samples) Groups(sampleIDs []string) map[string]string {
	out := make(map[string]string, len(sampleIDs))
	for _, id := range sampleIDs {
		out[id] = s[id].Group
	}

	return out
}

// Covariate returns the covariate for a sample, NaN when unannotated.
func (s Samples) Covariate(id string) float64 {
	samp, ok := s[id]
	if !ok {
		return math.NaN()
	}

	return samp.Covariate
}

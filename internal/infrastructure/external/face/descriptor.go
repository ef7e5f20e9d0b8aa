package face

import (
	"context"
	"math"

	"github.com/edupredict/student-insight/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DESCRIPTORS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// DescriptorLength is the dimensionality of a face descriptor.
	DescriptorLength = 128

	// MatchThreshold is the Euclidean distance below which two descriptors
	// belong to the same face.
	MatchThreshold = 0.6
)

// Descriptor is a face embedding computed on the capturing device.
type Descriptor []float64

// Validate checks the length and that every component is finite.
func (d Descriptor) Validate() error {
	if len(d) != DescriptorLength {
		return shared.ErrInvalidDescriptor
	}
	for _, v := range d {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return shared.ErrInvalidDescriptor
		}
	}
	return nil
}

// Distance returns the Euclidean distance between two descriptors of equal length.
func (d Descriptor) Distance(other Descriptor) float64 {
	var sum float64
	for i := range d {
		diff := d[i] - other[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// DescriptorStore persists registered descriptors by subject id.
type DescriptorStore interface {
	SaveDescriptor(ctx context.Context, subjectID string, d Descriptor) error
	Descriptors(ctx context.Context) (map[string]Descriptor, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// LOCAL MATCHER
// ══════════════════════════════════════════════════════════════════════════════

// LocalRecognizer matches descriptors against a DescriptorStore instead of
// calling the remote service. Frames must carry a descriptor.
type LocalRecognizer struct {
	store     DescriptorStore
	threshold float64
}

// NewLocalRecognizer creates a matcher with the standard threshold.
func NewLocalRecognizer(store DescriptorStore) *LocalRecognizer {
	return &LocalRecognizer{store: store, threshold: MatchThreshold}
}

// Recognize returns the registered subject nearest to the frame's descriptor
// when it is strictly closer than the threshold.
func (r *LocalRecognizer) Recognize(ctx context.Context, frame Frame) (Recognition, error) {
	sample := frame.Descriptor
	if err := sample.Validate(); err != nil {
		return Recognition{}, err
	}

	known, err := r.store.Descriptors(ctx)
	if err != nil {
		return Recognition{}, shared.WrapError("face", "Verify", shared.ErrServiceUnavailable, "descriptor store unavailable", err)
	}
	if len(known) == 0 {
		return Recognition{}, shared.ErrFaceProfileAbsent
	}

	best := Recognition{Distance: math.Inf(1)}
	for subject, d := range known {
		dist := sample.Distance(d)
		// ties resolve to the smaller subject id so results are stable
		if dist < best.Distance || (dist == best.Distance && subject < best.SubjectID) {
			best = Recognition{SubjectID: subject, Distance: dist}
		}
	}

	if best.Distance >= r.threshold {
		return Recognition{}, shared.ErrFaceNotRecognized
	}
	return best, nil
}

// Enroll stores the frame's descriptor for subjectID, replacing any earlier one.
func (r *LocalRecognizer) Enroll(ctx context.Context, subjectID string, frame Frame) error {
	if err := frame.Descriptor.Validate(); err != nil {
		return err
	}
	return r.store.SaveDescriptor(ctx, subjectID, frame.Descriptor)
}

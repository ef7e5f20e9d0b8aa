package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/edupredict/student-insight/internal/infrastructure/external/face"
)

// DescriptorStore implements face.DescriptorStore with a single Redis hash
// keyed by subject id.
type DescriptorStore struct {
	cache *Cache
}

// NewDescriptorStore creates a new DescriptorStore.
func NewDescriptorStore(cache *Cache) *DescriptorStore {
	return &DescriptorStore{cache: cache}
}

// SaveDescriptor implements face.DescriptorStore.
func (s *DescriptorStore) SaveDescriptor(ctx context.Context, subjectID string, d face.Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	return s.cache.HSet(ctx, FaceDescriptorsKey(), subjectID, []float64(d))
}

// Descriptors implements face.DescriptorStore. Malformed entries are skipped.
func (s *DescriptorStore) Descriptors(ctx context.Context) (map[string]face.Descriptor, error) {
	raw, err := s.cache.HGetAll(ctx, FaceDescriptorsKey())
	if err != nil {
		return nil, fmt.Errorf("load descriptors: %w", err)
	}

	out := make(map[string]face.Descriptor, len(raw))
	for subject, data := range raw {
		var values []float64
		if err := json.Unmarshal([]byte(data), &values); err != nil {
			continue
		}
		d := face.Descriptor(values)
		if d.Validate() != nil {
			continue
		}
		out[subject] = d
	}
	return out, nil
}

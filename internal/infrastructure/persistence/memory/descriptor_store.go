package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/edupredict/student-insight/internal/infrastructure/external/face"
)

// DescriptorStore keeps registered face descriptors in memory.
type DescriptorStore struct {
	mu          sync.RWMutex
	descriptors map[string]face.Descriptor
}

// NewDescriptorStore creates an empty descriptor store.
func NewDescriptorStore() *DescriptorStore {
	return &DescriptorStore{descriptors: make(map[string]face.Descriptor)}
}

// SaveDescriptor implements face.DescriptorStore.
func (s *DescriptorStore) SaveDescriptor(_ context.Context, subjectID string, d face.Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.descriptors[subjectID] = slices.Clone(d)
	return nil
}

// Descriptors implements face.DescriptorStore.
func (s *DescriptorStore) Descriptors(_ context.Context) (map[string]face.Descriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]face.Descriptor, len(s.descriptors))
	for id, d := range s.descriptors {
		out[id] = slices.Clone(d)
	}
	return out, nil
}

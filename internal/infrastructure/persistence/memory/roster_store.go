// Package memory provides in-process implementations of the roster and
// identity stores. They back the development profile and the test suites.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edupredict/student-insight/internal/domain/shared"
	"github.com/edupredict/student-insight/internal/domain/student"
)

// RosterStore is a mutex-guarded map of records that notifies subscribers
// after every write.
type RosterStore struct {
	mu      sync.RWMutex
	records map[string]*student.Record

	subMu  sync.RWMutex
	subs   map[int]func(student.Change)
	nextID int

	now   func() time.Time
	newID func() string
}

// NewRosterStore creates an empty store.
func NewRosterStore() *RosterStore {
	return &RosterStore{
		records: make(map[string]*student.Record),
		subs:    make(map[int]func(student.Change)),
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
}

// Add implements student.Repository.
func (s *RosterStore) Add(ctx context.Context, record *student.Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	rec := record.Clone()
	rec.ID = s.newID()
	rec.CreatedAt = s.now()
	rec.UpdatedAt = rec.CreatedAt

	s.mu.Lock()
	s.records[rec.ID] = rec
	s.mu.Unlock()

	s.notify(student.Change{Kind: student.ChangeAdded, ID: rec.ID})
	return rec.ID, nil
}

// Get implements student.Repository.
func (s *RosterStore) Get(ctx context.Context, id string) (*student.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, shared.ErrStudentNotFound
	}
	return rec.Clone(), nil
}

// Update implements student.Repository.
func (s *RosterStore) Update(ctx context.Context, record *student.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	existing, ok := s.records[record.ID]
	if !ok {
		s.mu.Unlock()
		return shared.ErrStudentNotFound
	}
	rec := record.Clone()
	rec.CreatedAt = existing.CreatedAt
	rec.UpdatedAt = s.now()
	s.records[rec.ID] = rec
	s.mu.Unlock()

	s.notify(student.Change{Kind: student.ChangeModified, ID: rec.ID})
	return nil
}

// Patch implements student.Repository.
func (s *RosterStore) Patch(ctx context.Context, id string, patch student.Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if patch.IsEmpty() {
		return nil
	}

	s.mu.Lock()
	existing, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return shared.ErrStudentNotFound
	}
	rec := existing.Clone()
	patch.Apply(rec)
	rec.UpdatedAt = s.now()
	s.records[id] = rec
	s.mu.Unlock()

	s.notify(student.Change{Kind: student.ChangeModified, ID: id})
	return nil
}

// Delete implements student.Repository.
func (s *RosterStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if _, ok := s.records[id]; !ok {
		s.mu.Unlock()
		return shared.ErrStudentNotFound
	}
	delete(s.records, id)
	s.mu.Unlock()

	s.notify(student.Change{Kind: student.ChangeRemoved, ID: id})
	return nil
}

// List implements student.Repository.
func (s *RosterStore) List(ctx context.Context) ([]student.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]student.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, *rec)
	}
	return out, nil
}

// Query implements student.Repository.
func (s *RosterStore) Query(ctx context.Context, filter student.Filter) ([]student.Record, error) {
	if !filter.Op.IsValid() || !(student.IsNumericField(filter.Field) || student.IsTextField(filter.Field)) {
		return nil, shared.ErrUnsupportedQuery
	}

	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]student.Record, 0)
	for i := range all {
		if filter.Matches(&all[i]) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// Subscribe implements student.Repository. Callbacks run synchronously on the
// writer's goroutine after the write is committed.
func (s *RosterStore) Subscribe(ctx context.Context, onChange func(student.Change)) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = onChange
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}, nil
}

// Len returns the number of stored records.
func (s *RosterStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *RosterStore) notify(change student.Change) {
	s.subMu.RLock()
	handlers := make([]func(student.Change), 0, len(s.subs))
	for _, h := range s.subs {
		handlers = append(handlers, h)
	}
	s.subMu.RUnlock()

	for _, h := range handlers {
		h(change)
	}
}

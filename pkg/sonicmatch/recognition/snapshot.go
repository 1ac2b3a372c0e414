package recognition

import (
	"sync/atomic"

	"github.com/himanishpuri/SonicMatch/pkg/models"
)

// Snapshot holds the current reference set. Readers get an immutable
// slice; writers replace the whole set at once, so a scan never sees a
// half-updated library.
type Snapshot struct {
	refs atomic.Pointer[[]models.ReferenceRecord]
}

// NewSnapshot returns a snapshot holding a copy of records.
func NewSnapshot(records []models.ReferenceRecord) *Snapshot {
	s := &Snapshot{}
	s.Swap(records)
	return s
}

// Swap replaces the reference set with a deep copy of records and
// returns the number stored.
func (s *Snapshot) Swap(records []models.ReferenceRecord) int {
	cp := make([]models.ReferenceRecord, len(records))
	for i, r := range records {
		r.Bundle = r.Bundle.Clone()
		cp[i] = r
	}
	s.refs.Store(&cp)
	return len(cp)
}

// Load returns the current reference set. The slice and the bundles it
// points to must not be modified.
func (s *Snapshot) Load() []models.ReferenceRecord {
	p := s.refs.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Len returns the size of the current set.
func (s *Snapshot) Len() int {
	return len(s.Load())
}

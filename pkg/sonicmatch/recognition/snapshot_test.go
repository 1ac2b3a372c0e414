package recognition

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotCopiesInput(t *testing.T) {
	library := refs(3)
	s := NewSnapshot(library)
	require.Equal(t, 3, s.Len())

	library[0].ID = "mutated"
	library[1].Bundle.MFCCMean[0] = 12345

	got := s.Load()
	assert.Equal(t, "ref-0", got[0].ID)
	assert.NotEqual(t, 12345.0, got[1].Bundle.MFCCMean[0])
}

func TestSnapshotZeroValue(t *testing.T) {
	var s Snapshot
	assert.Nil(t, s.Load())
	assert.Zero(t, s.Len())
}

func TestConcurrentScansDuringSwap(t *testing.T) {
	e := newEngine(t)
	s := NewSnapshot(refs(20))
	query := s.Load()[7].Bundle.Clone()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				s.Swap(refs(10 + i%15))
			}
		}()
	}
	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				snap := s.Load()
				res, err := e.Recognize(query, snap)
				if !assert.NoError(t, err) {
					return
				}
				assert.Len(t, res.Candidates, len(snap))
				assert.Zero(t, res.Skipped)
			}
		}()
	}
	wg.Wait()
	assert.GreaterOrEqual(t, s.Len(), 10)
}

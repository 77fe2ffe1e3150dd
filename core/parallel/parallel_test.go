package parallel

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelizeCoversAllItems(t *testing.T) {
	const n = 1037
	seen := make([]int32, n)
	Parallelize(n, func(start, end int) {
		for i := start; i < end; i++ {
			atomic.AddInt32(&seen[i], 1)
		}
	})
	for i, c := range seen {
		assert.Equal(t, int32(1), c, "index %d", i)
	}
}

func TestParallelizeWithThresholdSequential(t *testing.T) {
	calls := 0
	ParallelizeWithThreshold(10, 100, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 10, end)
	})
	assert.Equal(t, 1, calls)
}

func TestForEach(t *testing.T) {
	boom := errors.New("boom")
	for _, workers := range []int{0, 1, 3} {
		var count int32
		errs := ForEach(5, workers, func(i int) error {
			atomic.AddInt32(&count, 1)
			if i == 2 {
				return boom
			}
			return nil
		})
		assert.Equal(t, int32(5), count)
		assert.Len(t, errs, 5)
		assert.ErrorIs(t, errs[2], boom)
		assert.NoError(t, errs[0])
	}
	assert.Empty(t, ForEach(0, 2, func(int) error { return nil }))
}

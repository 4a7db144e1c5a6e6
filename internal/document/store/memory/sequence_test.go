package memory

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docflow/internal/document/models"
)

func TestSequenceAllocator(t *testing.T) {
	ctx := context.Background()

	t.Run("keys are independent", func(t *testing.T) {
		a := NewSequenceAllocator()
		n, err := a.Next(ctx, models.DocTypeDecision, 2025)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, _ = a.Next(ctx, models.DocTypeDecision, 2026)
		assert.Equal(t, int64(1), n)
		n, _ = a.Next(ctx, models.DocTypeNotice, 2025)
		assert.Equal(t, int64(1), n)

		peek, _ := a.Peek(ctx, models.DocTypeDecision, 2025)
		assert.Equal(t, int64(1), peek)
	})

	t.Run("concurrent allocation is distinct and gapless", func(t *testing.T) {
		a := NewSequenceAllocator()
		const workers = 50
		results := make([]int64, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				n, err := a.Next(ctx, models.DocTypeDecision, 2025)
				assert.NoError(t, err)
				results[i] = n
			}(i)
		}
		wg.Wait()

		sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
		for i, n := range results {
			assert.Equal(t, int64(i+1), n)
		}
	})
}

package memory

import (
	"context"
	"sync"

	"docflow/internal/document/models"
	"docflow/internal/document/ports"
)

type sequenceKey struct {
	docType models.DocType
	year    int
}

// SequenceAllocator keeps counters in process memory. Numbers are unique
// only within one process; multi-instance deployments use a shared backend.
type SequenceAllocator struct {
	mu       sync.Mutex
	counters map[sequenceKey]int64
}

var _ ports.SequenceAllocator = (*SequenceAllocator)(nil)

func NewSequenceAllocator() *SequenceAllocator {
	return &SequenceAllocator{counters: make(map[sequenceKey]int64)}
}

func (a *SequenceAllocator) Next(_ context.Context, docType models.DocType, year int) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := sequenceKey{docType: docType, year: year}
	a.counters[key]++
	return a.counters[key], nil
}

func (a *SequenceAllocator) Peek(_ context.Context, docType models.DocType, year int) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counters[sequenceKey{docType: docType, year: year}], nil
}

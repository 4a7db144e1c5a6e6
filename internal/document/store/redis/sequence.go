// Package redis allocates document numbers from Redis counters so several
// service instances can share one numbering sequence.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"docflow/internal/document/models"
	"docflow/internal/document/ports"
	"docflow/pkg/platform/sentinel"
)

const defaultKeyPrefix = "docflow"

// SequenceAllocator issues numbers with INCR on one key per (doc_type, year).
type SequenceAllocator struct {
	client redis.UniversalClient
	prefix string
}

var _ ports.SequenceAllocator = (*SequenceAllocator)(nil)

func NewSequenceAllocator(client redis.UniversalClient, prefix string) *SequenceAllocator {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &SequenceAllocator{client: client, prefix: prefix}
}

func (a *SequenceAllocator) key(docType models.DocType, year int) string {
	return fmt.Sprintf("%s:seq:%s:%d", a.prefix, docType, year)
}

func (a *SequenceAllocator) Next(ctx context.Context, docType models.DocType, year int) (int64, error) {
	n, err := a.client.Incr(ctx, a.key(docType, year)).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s/%d: %w: %w", docType, year, sentinel.ErrUnavailable, err)
	}
	return n, nil
}

func (a *SequenceAllocator) Peek(ctx context.Context, docType models.DocType, year int) (int64, error) {
	raw, err := a.client.Get(ctx, a.key(docType, year)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get %s/%d: %w: %w", docType, year, sentinel.ErrUnavailable, err)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse counter %s/%d: %w", docType, year, err)
	}
	return n, nil
}

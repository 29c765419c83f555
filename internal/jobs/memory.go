package jobs

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore keeps jobs in process, for single instance deployments.
type MemoryStore struct {
	lru *expirable.LRU[string, Job]
}

func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	if size <= 0 {
		size = 1024
	}
	return &MemoryStore{lru: expirable.NewLRU[string, Job](size, nil, ttl)}
}

func (m *MemoryStore) Put(_ context.Context, job Job) error {
	m.lru.Add(job.ID, job)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Job, error) {
	if j, ok := m.lru.Get(id); ok {
		return j, nil
	}
	return Job{}, ErrNotFound
}

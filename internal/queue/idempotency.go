package queue

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// requestDedupe remembers recently seen request ids. The lru is safe for
// concurrent use.
type requestDedupe struct {
	lru *lru.Cache[string, struct{}]
}

func newRequestDedupe(size int) *requestDedupe {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[string, struct{}](size)
	return &requestDedupe{lru: c}
}

// firstSeen returns true the first time id is offered.
func (d *requestDedupe) firstSeen(id string) bool {
	found, _ := d.lru.ContainsOrAdd(id, struct{}{})
	return !found
}

// forget lets a request id be processed again.
func (d *requestDedupe) forget(id string) {
	d.lru.Remove(id)
}

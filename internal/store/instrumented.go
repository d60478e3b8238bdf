package store

import (
	"context"
	"time"
)

// Observer receives timing for each store operation.
type Observer interface {
	ObserveStoreOp(op string, d time.Duration, err error)
}

// Instrumented reports every call of next to an Observer.
type Instrumented struct {
	next Store
	obs  Observer
}

// NewInstrumented wraps next. A nil observer returns next unchanged.
func NewInstrumented(next Store, obs Observer) Store {
	if obs == nil {
		return next
	}
	return &Instrumented{next: next, obs: obs}
}

func (s *Instrumented) Get(ctx context.Context, p string) (Object, error) {
	start := time.Now()
	o, err := s.next.Get(ctx, p)
	s.obs.ObserveStoreOp("get", time.Since(start), err)
	return o, err
}

func (s *Instrumented) Put(ctx context.Context, p string, data []byte, expect Version, message string) (PutResult, error) {
	start := time.Now()
	res, err := s.next.Put(ctx, p, data, expect, message)
	s.obs.ObserveStoreOp("put", time.Since(start), err)
	return res, err
}

func (s *Instrumented) List(ctx context.Context, dir string) ([]Entry, error) {
	start := time.Now()
	es, err := s.next.List(ctx, dir)
	s.obs.ObserveStoreOp("list", time.Since(start), err)
	return es, err
}

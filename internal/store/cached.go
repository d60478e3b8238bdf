package store

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Cached is a read-through cache in front of another Store. Gets and Lists
// are cached for ttl; a successful Put drops the object and every ancestor
// listing. Writes from other processes become visible when entries expire.
type Cached struct {
	next    Store
	objects *expirable.LRU[string, Object]
	lists   *expirable.LRU[string, []Entry]
	group   singleflight.Group
}

// NewCached wraps next with an LRU of the given size and ttl.
func NewCached(next Store, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = 512
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cached{
		next:    next,
		objects: expirable.NewLRU[string, Object](size, nil, ttl),
		lists:   expirable.NewLRU[string, []Entry](size, nil, ttl),
	}
}

// Get implements Store.
func (c *Cached) Get(ctx context.Context, p string) (Object, error) {
	p = Clean(p)
	if o, ok := c.objects.Get(p); ok {
		return o, nil
	}
	v, err, _ := c.group.Do("get:"+p, func() (interface{}, error) {
		o, err := c.next.Get(ctx, p)
		if err != nil {
			return Object{}, err
		}
		c.objects.Add(p, o)
		return o, nil
	})
	if err != nil {
		return Object{}, err
	}
	return v.(Object), nil
}

// Put implements Store.
func (c *Cached) Put(ctx context.Context, p string, data []byte, expect Version, message string) (PutResult, error) {
	p = Clean(p)
	res, err := c.next.Put(ctx, p, data, expect, message)
	// A conflict means our cached copy is stale too.
	c.invalidate(p)
	if err != nil {
		return PutResult{}, err
	}
	return res, nil
}

// List implements Store.
func (c *Cached) List(ctx context.Context, dir string) ([]Entry, error) {
	dir = Clean(dir)
	if es, ok := c.lists.Get(dir); ok {
		return es, nil
	}
	v, err, _ := c.group.Do("list:"+dir, func() (interface{}, error) {
		es, err := c.next.List(ctx, dir)
		if err != nil {
			return nil, err
		}
		c.lists.Add(dir, es)
		return es, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Entry), nil
}

// Purge drops every cached entry.
func (c *Cached) Purge() {
	c.objects.Purge()
	c.lists.Purge()
}

func (c *Cached) invalidate(p string) {
	c.objects.Remove(p)
	for d := Dir(p); ; d = Dir(d) {
		c.lists.Remove(d)
		if d == "" {
			return
		}
	}
}

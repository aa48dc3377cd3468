// Package storagetest provides an in-memory storage.Gateway for tests.
package storagetest

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"

	"github.com/andresuchdata/bucketsync/internal/storage"
)

// Call records one gateway operation.
type Call struct {
	Op     string
	Bucket string
	Key    string
}

// Gateway is an in-memory storage.Gateway. Listings are sorted by key and
// split into pages of PageSize objects. Each hook, when set, replaces the
// in-memory behaviour of its operation; calls are recorded either way.
type Gateway struct {
	PageSize int

	ListBucketsFunc  func(ctx context.Context) ([]string, error)
	ListPageFunc     func(ctx context.Context, bucket string, page int) error
	GetObjectFunc    func(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	PutObjectFunc    func(ctx context.Context, bucket, key string, body []byte) error
	DeleteObjectFunc func(ctx context.Context, bucket, key string) error

	mu      sync.Mutex
	buckets map[string]map[string][]byte
	calls   []Call
	pagers  int
	closed  int
}

// New returns a gateway holding the named empty buckets.
func New(buckets ...string) *Gateway {
	g := &Gateway{
		PageSize: 1000,
		buckets:  make(map[string]map[string][]byte),
	}
	for _, b := range buckets {
		g.buckets[b] = make(map[string][]byte)
	}
	return g
}

// Seed stores body under bucket/key without recording a call.
func (g *Gateway) Seed(bucket, key string, body []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.buckets[bucket] == nil {
		g.buckets[bucket] = make(map[string][]byte)
	}
	g.buckets[bucket][key] = append([]byte(nil), body...)
}

// Object returns the stored body of bucket/key.
func (g *Gateway) Object(bucket, key string) ([]byte, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	body, ok := g.buckets[bucket][key]
	return body, ok
}

// Keys returns the sorted keys stored in bucket.
func (g *Gateway) Keys(bucket string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.sortedKeys(bucket)
}

// Calls returns the recorded operations in order.
func (g *Gateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()

	return append([]Call(nil), g.calls...)
}

// CallsTo returns the recorded operations named op.
func (g *Gateway) CallsTo(op string) []Call {
	var out []Call
	for _, c := range g.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (g *Gateway) record(op, bucket, key string) {
	g.mu.Lock()
	g.calls = append(g.calls, Call{Op: op, Bucket: bucket, Key: key})
	g.mu.Unlock()
}

func (g *Gateway) sortedKeys(bucket string) []string {
	keys := make([]string, 0, len(g.buckets[bucket]))
	for k := range g.buckets[bucket] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (g *Gateway) ListBuckets(ctx context.Context) ([]string, error) {
	g.record("ListBuckets", "", "")
	if g.ListBucketsFunc != nil {
		return g.ListBucketsFunc(ctx)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	names := make([]string, 0, len(g.buckets))
	for name := range g.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ListObjects returns a pager that snapshots the bucket's keys when the
// first page is requested.
func (g *Gateway) ListObjects(bucket string) storage.Pager {
	g.mu.Lock()
	g.pagers++
	g.mu.Unlock()
	return &pager{gateway: g, bucket: bucket}
}

// OpenPagers reports how many pagers have been handed out and not closed.
func (g *Gateway) OpenPagers() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pagers - g.closed
}

func (g *Gateway) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	g.record("GetObject", bucket, key)
	if g.GetObjectFunc != nil {
		return g.GetObjectFunc(ctx, bucket, key)
	}

	body, ok := g.Object(bucket, key)
	if !ok {
		return nil, &storage.Error{Op: "get-object", Bucket: bucket, Key: key, Kind: storage.ErrObjectNotFound, Err: storage.ErrObjectNotFound}
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (g *Gateway) PutObject(ctx context.Context, bucket, key string, body []byte) error {
	g.record("PutObject", bucket, key)
	if g.PutObjectFunc != nil {
		return g.PutObjectFunc(ctx, bucket, key, body)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.buckets[bucket] == nil {
		return &storage.Error{Op: "put-object", Bucket: bucket, Key: key, Kind: storage.ErrBucketNotFound, Err: storage.ErrBucketNotFound}
	}
	g.buckets[bucket][key] = append([]byte(nil), body...)
	return nil
}

func (g *Gateway) DeleteObject(ctx context.Context, bucket, key string) error {
	g.record("DeleteObject", bucket, key)
	if g.DeleteObjectFunc != nil {
		return g.DeleteObjectFunc(ctx, bucket, key)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.buckets[bucket], key)
	return nil
}

var _ storage.Gateway = (*Gateway)(nil)

type pager struct {
	gateway *Gateway
	bucket  string

	keys    []string
	page    int
	started bool
	closed  bool
}

func (p *pager) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.gateway.mu.Lock()
	p.gateway.closed++
	p.gateway.mu.Unlock()
	return nil
}

func (p *pager) HasMorePages() bool {
	return !p.started || len(p.keys) > 0
}

func (p *pager) NextPage(ctx context.Context) (*storage.Page, error) {
	if !p.HasMorePages() {
		return nil, storage.ErrNoMorePages
	}

	g := p.gateway
	g.record("ListObjects", p.bucket, "")
	if g.ListPageFunc != nil {
		if err := g.ListPageFunc(ctx, p.bucket, p.page); err != nil {
			return nil, err
		}
	}

	if !p.started {
		p.started = true
		g.mu.Lock()
		_, ok := g.buckets[p.bucket]
		p.keys = g.sortedKeys(p.bucket)
		g.mu.Unlock()
		if !ok {
			return nil, &storage.Error{Op: "list-objects", Bucket: p.bucket, Kind: storage.ErrBucketNotFound, Err: storage.ErrBucketNotFound}
		}
	}

	size := g.PageSize
	if size <= 0 {
		size = 1000
	}
	if size > len(p.keys) {
		size = len(p.keys)
	}

	page := &storage.Page{Contents: make([]storage.ObjectInfo, 0, size)}
	for _, key := range p.keys[:size] {
		body, _ := g.Object(p.bucket, key)
		page.Contents = append(page.Contents, storage.ObjectInfo{Key: key, Size: int64(len(body))})
	}
	p.keys = p.keys[size:]
	p.page++
	return page, nil
}

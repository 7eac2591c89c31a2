package pooling

import (
	"container/list"

	"k8s.io/klog/v2"

	"github.com/kiln-ml/kiln/internal/backend"
	"github.com/kiln-ml/kiln/internal/tensor"
)

// DefaultCacheCapacity bounds a Cache when the caller does not choose a
// capacity explicitly. The original design grew without bound, which is
// observable on workloads with many distinct input shapes; bounding with LRU
// eviction is a deliberate deviation.
const DefaultCacheCapacity = 512

// Cache maps structural signatures to compiled executors so each distinct
// (parameters, shapes, mode) combination is compiled at most once.
//
// A Cache is owned by a single OpContext and carries no synchronization: the
// owning execution context is expected to be confined to one goroutine, and
// contexts that want per-worker caches hold one Cache each. Entries are
// evicted least-recently-used once the capacity is reached; capacity 0 means
// unbounded.
type Cache struct {
	fwd *lru[Signature, *ForwardExecutor]
	bwd *lru[backwardSignature, *BackwardExecutor]
}

// NewCache creates a cache holding up to capacity forward and capacity
// backward executors. Capacity 0 disables eviction.
func NewCache(capacity int) *Cache {
	return &Cache{
		fwd: newLRU[Signature, *ForwardExecutor](capacity),
		bwd: newLRU[backwardSignature, *BackwardExecutor](capacity),
	}
}

// Len returns the number of cached forward and backward executors.
func (c *Cache) Len() (forward, backward int) {
	return c.fwd.len(), c.bwd.len()
}

// resolveForward returns the cached forward executor for the signature,
// compiling and inserting one on miss.
func (c *Cache) resolveForward(engine backend.Engine, params Params, training bool,
	src, dst tensor.Descriptor) (*ForwardExecutor, error) {

	sig := Signature{
		Params:        params,
		Training:      training,
		WithWorkspace: training && params.Type == Max,
		Src:           src,
		Dst:           dst,
	}

	if exec, ok := c.fwd.get(sig); ok {
		klog.V(2).Infof("pooling: forward cache hit, plan %s", exec.id)
		return exec, nil
	}

	exec, err := newForwardExecutor(engine, params, training, sig.WithWorkspace, src, dst)
	if err != nil {
		return nil, err
	}
	c.fwd.put(sig, exec)
	klog.V(2).Infof("pooling: forward cache miss for [%s], compiled plan %s", sig, exec.id)
	return exec, nil
}

// resolveBackward returns the cached backward executor for the signature,
// compiling and inserting one on miss.
func (c *Cache) resolveBackward(engine backend.Engine, params Params,
	data, diffSrc, diffDst tensor.Descriptor) (*BackwardExecutor, error) {

	sig := backwardSignature{
		Params:        params,
		WithWorkspace: params.Type == Max,
		Data:          data,
		DiffSrc:       diffSrc,
		DiffDst:       diffDst,
	}

	if exec, ok := c.bwd.get(sig); ok {
		klog.V(2).Infof("pooling: backward cache hit, plan %s", exec.id)
		return exec, nil
	}

	exec, err := newBackwardExecutor(engine, params, sig.WithWorkspace, data, diffSrc, diffDst)
	if err != nil {
		return nil, err
	}
	c.bwd.put(sig, exec)
	klog.V(2).Infof("pooling: backward cache miss for [%s], compiled plan %s", sig, exec.id)
	return exec, nil
}

// lru is a minimal least-recently-used map. No library in the project's
// dependency set provides one, and the needs here (get, put, bounded evict)
// fit in a page of container/list bookkeeping.
type lru[K comparable, V any] struct {
	capacity int
	entries  map[K]*list.Element
	order    *list.List // front = most recently used
}

type lruEntry[K comparable, V any] struct {
	key   K
	value V
}

func newLRU[K comparable, V any](capacity int) *lru[K, V] {
	return &lru[K, V]{
		capacity: capacity,
		entries:  make(map[K]*list.Element),
		order:    list.New(),
	}
}

func (l *lru[K, V]) get(key K) (V, bool) {
	if elem, ok := l.entries[key]; ok {
		l.order.MoveToFront(elem)
		return elem.Value.(*lruEntry[K, V]).value, true
	}
	var zero V
	return zero, false
}

func (l *lru[K, V]) put(key K, value V) {
	if elem, ok := l.entries[key]; ok {
		elem.Value.(*lruEntry[K, V]).value = value
		l.order.MoveToFront(elem)
		return
	}
	l.entries[key] = l.order.PushFront(&lruEntry[K, V]{key: key, value: value})
	if l.capacity > 0 && l.order.Len() > l.capacity {
		oldest := l.order.Back()
		l.order.Remove(oldest)
		delete(l.entries, oldest.Value.(*lruEntry[K, V]).key)
	}
}

func (l *lru[K, V]) len() int {
	return l.order.Len()
}

package engine

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"

	"github.com/born-ml/ortkit/ort"
)

// AllocatorStats is a snapshot of allocator usage.
type AllocatorStats struct {
	LiveBlocks int
	LiveBytes  int
	PeakBytes  int
	Allocs     int
	Frees      int
}

// String formats the stats for logs.
func (s AllocatorStats) String() string {
	return fmt.Sprintf("%d live blocks (%s, peak %s), %d allocs, %d frees",
		s.LiveBlocks, humanize.Bytes(uint64(s.LiveBytes)), humanize.Bytes(uint64(s.PeakBytes)), s.Allocs, s.Frees)
}

// allocator hands out 8-byte aligned blocks and tracks them until freed.
type allocator struct {
	cfg AllocatorConfig

	mu    sync.Mutex
	live  map[*byte]int
	bytes int
	peak  int
	n     AllocatorStats
}

func newAllocator(cfg AllocatorConfig) *allocator {
	if cfg.Name == "" {
		cfg.Name = "Cpu"
	}
	return &allocator{cfg: cfg, live: make(map[*byte]int)}
}

func (a *allocator) alloc(size int) ([]byte, error) {
	if size < 0 {
		return nil, ort.NewStatus(ort.InvalidArgument, "allocator %q: negative size %d", a.cfg.Name, size)
	}
	if size == 0 {
		return []byte{}, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cfg.MaxLiveBlocks > 0 && len(a.live) >= a.cfg.MaxLiveBlocks {
		return nil, ort.NewStatus(ort.Fail, "allocator %q: block limit %d reached", a.cfg.Name, a.cfg.MaxLiveBlocks)
	}
	if a.cfg.LimitBytes > 0 && a.bytes+size > a.cfg.LimitBytes {
		return nil, ort.NewStatus(ort.Fail, "allocator %q: allocating %s would exceed limit %s (%s in use)",
			a.cfg.Name, humanize.Bytes(uint64(size)), humanize.Bytes(uint64(a.cfg.LimitBytes)), humanize.Bytes(uint64(a.bytes)))
	}

	block := alignedBytes(size)
	a.live[unsafe.SliceData(block)] = size
	a.bytes += size
	a.peak = max(a.peak, a.bytes)
	a.n.Allocs++
	klog.V(4).Infof("engine: allocator %q: +%d bytes (%d live)", a.cfg.Name, size, len(a.live))
	return block, nil
}

func (a *allocator) free(block []byte) error {
	if len(block) == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	key := unsafe.SliceData(block)
	size, ok := a.live[key]
	if !ok {
		return ort.NewStatus(ort.InvalidArgument, "allocator %q: block %p was not allocated here or was already freed", a.cfg.Name, key)
	}
	delete(a.live, key)
	a.bytes -= size
	a.n.Frees++
	klog.V(4).Infof("engine: allocator %q: -%d bytes (%d live)", a.cfg.Name, size, len(a.live))
	return nil
}

func (a *allocator) stats() AllocatorStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.n
	s.LiveBlocks = len(a.live)
	s.LiveBytes = a.bytes
	s.PeakBytes = a.peak
	return s
}

// alignedBytes returns a zeroed, 8-byte aligned buffer of size bytes.
func alignedBytes(size int) []byte {
	if size == 0 {
		return []byte{}
	}
	words := make([]uint64, (size+7)/8)
	//nolint:gosec // reinterpret the word buffer as bytes, size <= 8*len(words)
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(words))), size)
}

// GetAllocatorWithDefaultOptions returns the engine's default allocator.
func (e *Engine) GetAllocatorWithDefaultOptions() (ort.Allocator, error) {
	return e.defaultAllocator, nil
}

// AllocatorAlloc allocates size bytes from a.
func (e *Engine) AllocatorAlloc(a ort.Allocator, size int) ([]byte, error) {
	alloc, err := lookup[*allocator](&e.handles, uintptr(a), "allocator")
	if err != nil {
		return nil, err
	}
	return alloc.alloc(size)
}

// AllocatorFree returns block to a. Freeing a block twice fails.
func (e *Engine) AllocatorFree(a ort.Allocator, block []byte) error {
	alloc, err := lookup[*allocator](&e.handles, uintptr(a), "allocator")
	if err != nil {
		return err
	}
	return alloc.free(block)
}

// CreateAllocator creates an allocator bounded by cfg.
func (e *Engine) CreateAllocator(cfg AllocatorConfig) ort.Allocator {
	return ort.Allocator(e.handles.put(newAllocator(cfg)))
}

// ReleaseAllocator releases an allocator created with CreateAllocator.
// Blocks still live are reported and dropped.
func (e *Engine) ReleaseAllocator(a ort.Allocator) {
	if a == e.defaultAllocator {
		return
	}
	alloc, ok := release[*allocator](&e.handles, uintptr(a))
	if !ok {
		return
	}
	if stats := alloc.stats(); stats.LiveBlocks > 0 {
		klog.Warningf("engine: releasing allocator %q with %s", alloc.cfg.Name, stats)
	}
}

// AllocatorStats returns usage statistics of a.
func (e *Engine) AllocatorStats(a ort.Allocator) (AllocatorStats, error) {
	alloc, err := lookup[*allocator](&e.handles, uintptr(a), "allocator")
	if err != nil {
		return AllocatorStats{}, err
	}
	return alloc.stats(), nil
}

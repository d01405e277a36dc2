package phasescope

import (
	"fmt"
	"sync/atomic"
)

// SampleRingBuffer is a lock-free single-producer/single-consumer ring
// buffer of float32 samples. It bridges the capture goroutine (producer)
// and the display/analysis goroutine (consumer).
//
// The capacity is a power of two and one slot is always kept empty, so at
// most Capacity()-1 samples are buffered; this disambiguates full from
// empty using only the two indices. Indices advance modulo capacity with a
// bitmask.
//
// Memory ordering: Go's sync/atomic operations are sequentially consistent,
// which subsumes the release store of the write index after the payload and
// the acquire load before the payload read (and the converse for the read
// index). The two indices live in separate cache-line-padded cells so the
// producer and consumer never contend on the same line.
//
// Thread assignment:
//   - TryWrite, WriteBulk, AvailableWrite, Full: producer only
//   - TryRead, ReadBulk, PeekBulk, AvailableRead, Empty: consumer only
type SampleRingBuffer struct {
	writeIdx atomic.Uint64
	_        [cacheLinePad - 8]byte
	readIdx  atomic.Uint64
	_        [cacheLinePad - 8]byte

	data []float32
	mask uint64
}

// NewSampleRingBuffer creates a ring buffer with the given capacity, which
// must be a power of two. The buffer never allocates after construction and
// cannot be resized while in use.
func NewSampleRingBuffer(capacity int) (*SampleRingBuffer, error) {
	if capacity < 2 || !isPowerOfTwo(capacity) {
		return nil, fmt.Errorf("%w: %d", ErrNotPowerOfTwo, capacity)
	}

	return &SampleRingBuffer{
		data: make([]float32, capacity),
		mask: uint64(capacity - 1),
	}, nil
}

// Capacity returns the buffer capacity. At most Capacity()-1 samples can be
// buffered at once.
func (b *SampleRingBuffer) Capacity() int {
	return len(b.data)
}

// TryWrite appends one sample. It returns false if the buffer is full and
// never blocks; the caller counts the rejection as an overrun and drops the
// sample.
func (b *SampleRingBuffer) TryWrite(s float32) bool {
	w := b.writeIdx.Load()
	r := b.readIdx.Load()

	if (r-w-1)&b.mask == 0 {
		return false
	}

	b.data[w] = s
	b.writeIdx.Store((w + 1) & b.mask)
	return true
}

// WriteBulk appends as many samples from src as fit and returns the number
// written. Partial writes are expected under load; it never blocks.
func (b *SampleRingBuffer) WriteBulk(src []float32) int {
	w := b.writeIdx.Load()
	r := b.readIdx.Load()

	free := (r - w - 1) & b.mask
	n := uint64(len(src))
	if n > free {
		n = free
	}
	if n == 0 {
		return 0
	}

	// At most two contiguous segments around the wrap point.
	first := uint64(len(b.data)) - w
	if first >= n {
		copy(b.data[w:w+n], src[:n])
	} else {
		copy(b.data[w:], src[:first])
		copy(b.data[:n-first], src[first:n])
	}

	b.writeIdx.Store((w + n) & b.mask)
	return int(n)
}

// TryRead removes and returns the oldest sample. The second return value is
// false if the buffer is empty; the caller counts that as an underrun.
func (b *SampleRingBuffer) TryRead() (float32, bool) {
	r := b.readIdx.Load()
	w := b.writeIdx.Load()

	if (w-r)&b.mask == 0 {
		return 0, false
	}

	s := b.data[r]
	b.readIdx.Store((r + 1) & b.mask)
	return s, true
}

// ReadBulk removes up to len(dst) samples in FIFO order and returns the
// number read. Fewer than requested is not an error.
func (b *SampleRingBuffer) ReadBulk(dst []float32) int {
	r := b.readIdx.Load()
	w := b.writeIdx.Load()

	avail := (w - r) & b.mask
	n := uint64(len(dst))
	if n > avail {
		n = avail
	}
	if n == 0 {
		return 0
	}

	first := uint64(len(b.data)) - r
	if first >= n {
		copy(dst[:n], b.data[r:r+n])
	} else {
		copy(dst[:first], b.data[r:])
		copy(dst[first:n], b.data[:n-first])
	}

	b.readIdx.Store((r + n) & b.mask)
	return int(n)
}

// PeekBulk copies up to len(dst) samples starting offset samples past the
// read position without consuming them, for visualization taps. It returns
// the number copied.
func (b *SampleRingBuffer) PeekBulk(dst []float32, offset int) int {
	if offset < 0 {
		return 0
	}

	r := b.readIdx.Load()
	w := b.writeIdx.Load()

	avail := (w - r) & b.mask
	if uint64(offset) >= avail {
		return 0
	}

	n := uint64(len(dst))
	if n > avail-uint64(offset) {
		n = avail - uint64(offset)
	}
	if n == 0 {
		return 0
	}

	start := (r + uint64(offset)) & b.mask
	first := uint64(len(b.data)) - start
	if first >= n {
		copy(dst[:n], b.data[start:start+n])
	} else {
		copy(dst[:first], b.data[start:])
		copy(dst[first:n], b.data[:n-first])
	}

	return int(n)
}

// AvailableRead returns the number of samples ready to read.
func (b *SampleRingBuffer) AvailableRead() int {
	return int((b.writeIdx.Load() - b.readIdx.Load()) & b.mask)
}

// AvailableWrite returns the free space in samples.
func (b *SampleRingBuffer) AvailableWrite() int {
	return int((b.readIdx.Load() - b.writeIdx.Load() - 1) & b.mask)
}

// Empty reports whether no samples are buffered.
func (b *SampleRingBuffer) Empty() bool {
	return b.writeIdx.Load() == b.readIdx.Load()
}

// Full reports whether the buffer holds Capacity()-1 samples.
func (b *SampleRingBuffer) Full() bool {
	w := b.writeIdx.Load()
	r := b.readIdx.Load()
	return (r-w-1)&b.mask == 0
}

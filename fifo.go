//
// Copyright 2025 The softuart authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package softuart

// byteFIFO is a fixed-capacity FIFO ring of bytes shared between one
// producer and one consumer. It performs no locking of its own; the owning
// engine's mutex guards every call. None of the operations allocate, so the
// FIFO is safe to touch from the timing-critical tick paths.
//
// The capacity is rounded up to a power of two so that head and tail can
// grow monotonically and be masked on access.
type byteFIFO struct {
	buf  []byte
	mask int
	head int // read position
	tail int // write position
}

func newByteFIFO(capacity int) *byteFIFO {
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &byteFIFO{
		buf:  make([]byte, size),
		mask: size - 1,
	}
}

// size returns the number of bytes currently queued.
func (f *byteFIFO) size() int {
	return f.tail - f.head
}

// avail returns the remaining free space.
func (f *byteFIFO) avail() int {
	return len(f.buf) - f.size()
}

func (f *byteFIFO) empty() bool {
	return f.head == f.tail
}

// put appends a single byte. It reports false if the FIFO is full; the byte
// is dropped in that case.
func (f *byteFIFO) put(b byte) bool {
	if f.avail() == 0 {
		return false
	}
	f.buf[f.tail&f.mask] = b
	f.tail++
	return true
}

// get removes and returns the oldest byte.
func (f *byteFIFO) get() (byte, bool) {
	if f.empty() {
		return 0, false
	}
	b := f.buf[f.head&f.mask]
	f.head++
	return b, true
}

// in appends as many bytes from p as fit and returns the number accepted.
func (f *byteFIFO) in(p []byte) int {
	n := f.avail()
	if n > len(p) {
		n = len(p)
	}
	for i := 0; i < n; i++ {
		f.buf[f.tail&f.mask] = p[i]
		f.tail++
	}
	return n
}

// out removes up to len(p) bytes into p and returns the number copied.
func (f *byteFIFO) out(p []byte) int {
	n := f.size()
	if n > len(p) {
		n = len(p)
	}
	for i := 0; i < n; i++ {
		p[i] = f.buf[f.head&f.mask]
		f.head++
	}
	return n
}

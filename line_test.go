//
// Copyright 2025 The softuart authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package softuart

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

// fakeInput is a settable input line for driving the receive engine by hand.
type fakeInput struct {
	mu    sync.Mutex
	level int
}

func newFakeInput() *fakeInput {
	return &fakeInput{level: High}
}

func (f *fakeInput) set(level int) {
	f.mu.Lock()
	f.level = level
	f.mu.Unlock()
}

func (f *fakeInput) Level() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.level
}

// levelChange is one recorded output transition with its (mock) timestamp.
type levelChange struct {
	at    time.Time
	level int
}

// recorder is an output line remembering every SetLevel call.
type recorder struct {
	clk clock.Clock

	mu      sync.Mutex
	changes []levelChange
}

func newRecorder(clk clock.Clock) *recorder {
	return &recorder{clk: clk}
}

func (r *recorder) SetLevel(level int) {
	r.mu.Lock()
	r.changes = append(r.changes, levelChange{at: r.clk.Now(), level: level})
	r.mu.Unlock()
}

func (r *recorder) recorded() []levelChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]levelChange(nil), r.changes...)
}

// wire is a simulated serial line: the transmit engine drives it, the
// receive engine samples it, and every high-to-low transition is reported
// as a falling edge, the way a GPIO edge interrupt would.
type wire struct {
	mu     sync.Mutex
	level  int
	onFall func()
}

func newWire() *wire {
	return &wire{level: High}
}

func (w *wire) SetLevel(level int) {
	w.mu.Lock()
	prev := w.level
	w.level = level
	fall := w.onFall
	w.mu.Unlock()
	if prev == High && level == Low && fall != nil {
		fall()
	}
}

func (w *wire) Level() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.level
}

// collectBytes drains delivery batches from ch until n bytes arrived or the
// (real time) deadline expires.
func collectBytes(t *testing.T, ch <-chan []byte, n int) []byte {
	t.Helper()
	var got []byte
	deadline := time.After(2 * time.Second)
	for len(got) < n {
		select {
		case p := <-ch:
			got = append(got, p...)
		case <-deadline:
			t.Fatalf("timed out waiting for %d bytes, got %d", n, len(got))
		}
	}
	return got
}

// requireNoBytes asserts that no delivery arrives within a short window.
func requireNoBytes(t *testing.T, ch <-chan []byte) {
	t.Helper()
	select {
	case p := <-ch:
		t.Fatalf("unexpected delivery %v", p)
	case <-time.After(50 * time.Millisecond):
	}
}

// feedByte clocks one full 8N1 frame into the receiver by hand: falling
// edge, start bit, 8 data bits LSB-first, stop bit.
func feedByte(t *testing.T, mock *clock.Mock, line *fakeInput, rx *Receiver, b byte) {
	t.Helper()
	line.set(Low)
	rx.FallingEdge()
	mock.Add(rx.skew) // start-bit sample
	for i := 0; i < 8; i++ {
		line.set(int(b>>uint(i)) & 1)
		mock.Add(rx.period)
	}
	line.set(High)
	mock.Add(rx.period) // stop-bit sample
	require.Equal(t, -1, rx.bitIndex)
}

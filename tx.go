//
// Copyright 2025 The softuart authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package softuart

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Transmitter produces an asynchronous serial bitstream on a digital output
// line: one start bit (low), 8 data bits LSB-first, one stop bit (high).
//
// Write queues bytes and arms the bit clock if it is idle; the clock then
// drives the line one bit per period until the queue drains. Byte frames are
// emitted back-to-back with no idle gap in between.
type Transmitter struct {
	line  LineWriter
	clk   clock.Clock
	timer *bitClock

	mu       sync.Mutex
	closed   bool
	debug    bool // RX debug mode owns the line; emit nothing
	period   time.Duration
	fifo     *byteFIFO
	bitIndex int
	payload  byte

	// drained is closed when the queue empties; replaced by the next
	// enqueue into an empty queue. Fetching it and checking emptiness
	// happen under mu, the same mutex that guards the final dequeue, so a
	// drain waiter cannot miss the wakeup.
	drained       chan struct{}
	drainedClosed bool

	onRoom func()
	wakeCh chan struct{}
	quit   chan struct{}
	wg     sync.WaitGroup
}

// NewTransmitter creates a stand-alone transmit engine on the given output
// line. The line is driven high (idle) immediately. onRoom, if non-nil, is
// notified from a deferred context whenever the transmit queue drains; see
// Config.OnTxRoom.
func NewTransmitter(line LineWriter, cfg Config, onRoom func()) (*Transmitter, error) {
	return newTransmitter(line, cfg, onRoom, clock.New())
}

func newTransmitter(line LineWriter, cfg Config, onRoom func(), clk clock.Clock) (*Transmitter, error) {
	if line == nil {
		return nil, &TransceiverError{code: InvalidLine}
	}
	baud := cfg.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	if baud < 0 {
		return nil, &TransceiverError{code: InvalidBaudRate}
	}
	t := &Transmitter{
		line:          line,
		clk:           clk,
		debug:         cfg.RxDebug,
		fifo:          newByteFIFO(TxFIFOSize),
		bitIndex:      -1,
		drained:       make(chan struct{}),
		drainedClosed: true,
		onRoom:        onRoom,
		wakeCh:        make(chan struct{}, 1),
		quit:          make(chan struct{}),
	}
	close(t.drained)
	t.timer = newBitClock(clk, t.clockOut)
	t.period = time.Second / time.Duration(baud)
	t.line.SetLevel(High)
	t.wg.Add(1)
	go t.wakeupWorker()
	return t, nil
}

// SetBaudRate reconfigures the bit period. Meant to be called while the
// transmitter is idle; a change mid-byte takes effect on the next period.
func (t *Transmitter) SetBaudRate(baud int) error {
	if baud <= 0 {
		return &TransceiverError{code: InvalidBaudRate}
	}
	t.mu.Lock()
	t.period = time.Second / time.Duration(baud)
	t.mu.Unlock()
	return nil
}

// Write appends as many bytes from p as fit into the transmit queue and
// returns the number accepted. It never blocks and never fails on a full
// queue; a short count is the backpressure signal. If the transmitter is
// idle, emission starts one bit period from now.
func (t *Transmitter) Write(p []byte) (int, error) {
	// Disable TX entirely if RX debugging is enabled.
	if t.debug {
		return len(p), nil
	}

	now := t.clk.Now()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, &TransceiverError{code: TransceiverClosed}
	}

	n := t.fifo.in(p)
	if !t.fifo.empty() && t.drainedClosed {
		t.drained = make(chan struct{})
		t.drainedClosed = false
	}

	if !t.timer.active() {
		if b, ok := t.fifo.get(); ok {
			t.payload = b
			t.bitIndex = -1
			// Add one period so the first tick isn't automatically late.
			t.timer.arm(now.Add(t.period))
		}
	}
	t.mu.Unlock()

	if n > 0 {
		txBytes.Add(float64(n))
	}
	return n, nil
}

// WriteRoom returns the free space in the transmit queue, the maximum count
// the next Write will accept.
func (t *Transmitter) WriteRoom() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fifo.avail()
}

// WaitUntilSent blocks until the transmit queue is empty. A positive timeout
// bounds the wait and yields a DrainTimeout error on expiry; a timeout <= 0
// blocks until drained. The byte being shifted out on the line when the
// queue empties is not waited for, matching write-queue drain semantics.
func (t *Transmitter) WaitUntilSent(timeout time.Duration) error {
	t.mu.Lock()
	if t.fifo.empty() {
		t.mu.Unlock()
		return nil
	}
	drained := t.drained
	t.mu.Unlock()

	if timeout <= 0 {
		<-drained
	} else {
		select {
		case <-drained:
		case <-t.clk.After(timeout):
			return &TransceiverError{code: DrainTimeout}
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed && !t.fifo.empty() {
		return &TransceiverError{code: TransceiverClosed}
	}
	return nil
}

// Close stops the bit clock, joining any in-flight tick, stops the wakeup
// worker and releases pending drain waiters. The line is left at its current
// level.
func (t *Transmitter) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()

	t.timer.cancel()
	close(t.quit)
	t.wg.Wait()

	t.mu.Lock()
	t.signalDrained()
	t.mu.Unlock()
}

// clockOut is the timed entry point, fired once per armed interval.
func (t *Transmitter) clockOut(now time.Time) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case t.bitIndex == -1:
		t.line.SetLevel(Low) // Start bit
		t.bitIndex = 0

	case t.bitIndex < 8:
		t.line.SetLevel(int(t.payload & 0b1))
		t.payload >>= 1
		t.bitIndex++

	default:
		t.line.SetLevel(High) // Stop bit
		t.bitIndex = -1

		// Get the next data byte from the queue. Wake up waiting
		// tasks and stop the clock if the queue is empty.
		b, ok := t.fifo.get()
		if !ok {
			select {
			case t.wakeCh <- struct{}{}:
			default:
			}
			return 0, false
		}
		t.payload = b
	}

	return t.period, true
}

// signalDrained closes the drain channel if the current one is still open.
// Called with t.mu held.
func (t *Transmitter) signalDrained() {
	if !t.drainedClosed {
		close(t.drained)
		t.drainedClosed = true
	}
}

// wakeupWorker notifies drain waiters and the room-available callback
// outside the timing-critical path.
func (t *Transmitter) wakeupWorker() {
	defer t.wg.Done()
	for {
		select {
		case <-t.quit:
			return
		case <-t.wakeCh:
			t.mu.Lock()
			if t.fifo.empty() {
				t.signalDrained()
			}
			cb := t.onRoom
			t.mu.Unlock()
			if cb != nil {
				cb()
			}
		}
	}
}

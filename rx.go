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

// Receiver decodes an asynchronous serial bitstream from a digital input
// line: one start bit (low), 8 data bits LSB-first, one stop bit (high).
//
// It is driven by two asynchronous entry points: FallingEdge, invoked by the
// line driver when the line transitions high to low, and an internal sample
// timer that fires once per bit period. The first sample after an edge is
// delayed by the configured skew so that jitter in edge delivery does not
// land the sample on the bit boundary; every later sample is one full period
// after the previous sample, keeping the schedule locked to bit centers.
type Receiver struct {
	line  LineReader
	debug LineWriter // TX line, only in debug mode
	clk   clock.Clock
	timer *bitClock

	mu          sync.Mutex
	enabled     bool
	closed      bool
	skewPercent int
	period      time.Duration
	skew        time.Duration
	fifo        *byteFIFO
	bitIndex    int
	payload     byte
	debugLevel  int

	push   func([]byte)
	pushCh chan struct{}
	quit   chan struct{}
	wg     sync.WaitGroup
}

// NewReceiver creates a stand-alone receive engine on the given input line.
// Decoded bytes are handed to onBytes; see Config.OnRxBytes for the callback
// contract. The engine starts deactivated.
func NewReceiver(line LineReader, cfg Config, onBytes func([]byte)) (*Receiver, error) {
	return newReceiver(line, nil, cfg, onBytes, clock.New())
}

func newReceiver(line LineReader, debug LineWriter, cfg Config, onBytes func([]byte), clk clock.Clock) (*Receiver, error) {
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
	r := &Receiver{
		line:        line,
		debug:       debug,
		clk:         clk,
		skewPercent: clampSkew(cfg.RxSkewPercent),
		fifo:        newByteFIFO(RxFIFOSize),
		bitIndex:    -1,
		push:        onBytes,
		pushCh:      make(chan struct{}, 1),
		quit:        make(chan struct{}),
	}
	r.timer = newBitClock(clk, r.sample)
	r.setBaudRate(baud)
	r.wg.Add(1)
	go r.pushWorker()
	return r, nil
}

// SetBaudRate reconfigures the bit period and the derived skew offset. It is
// meant to be called while the line is quiescent; a change mid-byte takes
// effect on the next armed period.
func (r *Receiver) SetBaudRate(baud int) error {
	if baud <= 0 {
		return &TransceiverError{code: InvalidBaudRate}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setBaudRate(baud)
	return nil
}

func (r *Receiver) setBaudRate(baud int) {
	r.period = time.Second / time.Duration(baud)
	r.skew = r.period * time.Duration(r.skewPercent) / 100
}

// Activate enables the edge entry point. Falling edges reported while the
// receiver is deactivated are ignored.
func (r *Receiver) Activate() {
	r.mu.Lock()
	r.enabled = true
	r.mu.Unlock()
}

// Shutdown disables the edge entry point without destroying engine state, so
// the receiver can be re-activated later.
func (r *Receiver) Shutdown() {
	r.mu.Lock()
	r.enabled = false
	r.mu.Unlock()
}

// Close shuts the receiver down for good: the edge source is disabled, the
// sample timer is canceled and any in-flight sample joined, and the delivery
// worker is stopped. Undelivered bytes still in the queue are dropped.
func (r *Receiver) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.enabled = false
	r.mu.Unlock()

	r.timer.cancel()
	close(r.quit)
	r.wg.Wait()
}

// FallingEdge is the edge-interrupt entry point. The line driver calls it
// when the input line transitions high to low, which is the candidate for a
// start bit. It arms the sample timer to take the first sample one skew
// offset into the bit period.
func (r *Receiver) FallingEdge() {
	now := r.clk.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.enabled || r.closed {
		return
	}

	// Ignore falling edges while a byte is being read.
	// It would be better if we could mask the IRQ somehow...
	if r.bitIndex != -1 || r.timer.active() {
		return
	}

	r.payload = 0
	r.timer.arm(now.Add(r.skew))

	if r.debug != nil {
		r.toggleDebug()
	}
}

// sample is the timed entry point, fired once per armed interval.
func (r *Receiver) sample(now time.Time) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bit := r.line.Level()

	if r.debug != nil {
		r.toggleDebug()
	}

	switch {
	case r.bitIndex == -1:
		if bit != Low {
			// Start bit is invalid.
			framingErrors.WithLabelValues("start").Inc()
			return 0, false
		}
		r.bitIndex++

	case r.bitIndex < 8:
		r.payload = byte(bit<<7) | r.payload>>1
		r.bitIndex++

	default:
		if bit == High {
			// Stop bit is valid. Add payload to the queue and
			// schedule pushing it to the consumer.
			if r.fifo.put(r.payload) {
				rxBytes.Inc()
			} else {
				rxOverflow.Inc()
			}
			select {
			case r.pushCh <- struct{}{}:
			default:
			}
		} else {
			framingErrors.WithLabelValues("stop").Inc()
		}
		r.bitIndex = -1
		return 0, false
	}

	return r.period, true
}

// toggleDebug flips the TX line so that sampling instants are visible on an
// oscilloscope. Called with r.mu held.
func (r *Receiver) toggleDebug() {
	r.debugLevel ^= 1
	r.debug.SetLevel(r.debugLevel)
}

// pushWorker moves completed bytes out of the queue and into the consumer
// callback, outside the timing-critical path.
func (r *Receiver) pushWorker() {
	defer r.wg.Done()
	buf := make([]byte, RxFIFOSize)
	for {
		select {
		case <-r.quit:
			return
		case <-r.pushCh:
			r.mu.Lock()
			n := r.fifo.out(buf)
			r.mu.Unlock()
			if n > 0 && r.push != nil {
				r.push(buf[:n])
			}
		}
	}
}

//
// Copyright 2025 The softuart authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package softuart

import (
	"github.com/benbjohnson/clock"
)

const (
	// DefaultBaudRate is used when Config.BaudRate is left zero.
	DefaultBaudRate = 9600

	// DefaultRxSkewPercent delays the first sample 30% into the start
	// bit, trading edge-delivery jitter tolerance against drift
	// sensitivity.
	DefaultRxSkewPercent = 30

	// RxFIFOSize is the receive queue capacity. Decoded bytes are pushed
	// to the consumer per byte, so a small buffer suffices.
	RxFIFOSize = 32

	// TxFIFOSize is the transmit queue capacity. It buffers whole user
	// writes, hence much larger.
	TxFIFOSize = 1024
)

// Config describes a transceiver configuration.
type Config struct {
	// BaudRate is the line bitrate in bits per second. Zero selects
	// DefaultBaudRate.
	BaudRate int

	// RxSkewPercent is how far into the nominal start-bit period the
	// first sample is taken after a falling edge, in percent of one bit
	// period. Values outside [0,100] are clamped. Note that the zero
	// value means sampling right at the edge; use DefaultConfig for the
	// usual starting point.
	RxSkewPercent int

	// RxDebug suppresses all transmit behavior and instead toggles the
	// TX line at every receive sampling instant, turning it into an
	// oscilloscope-visible marker for tuning RxSkewPercent against real
	// hardware. Mutually exclusive with normal transmission for the
	// lifetime of the transceiver.
	RxDebug bool

	// OnRxBytes is invoked from a deferred delivery context with a batch
	// of decoded bytes, at least once per completed byte. The buffer is
	// reused between invocations; the consumer must copy it if it needs
	// to retain the data, and must not block indefinitely.
	OnRxBytes func(p []byte)

	// OnTxRoom is invoked from a deferred context whenever the transmit
	// queue drains, so an upstream writer can resume after a short
	// write.
	OnTxRoom func()
}

// DefaultConfig returns the usual starting configuration: 9600 baud, 30%
// receive skew.
func DefaultConfig() Config {
	return Config{
		BaudRate:      DefaultBaudRate,
		RxSkewPercent: DefaultRxSkewPercent,
	}
}

// Transceiver is a software-defined serial transceiver on a pair of digital
// lines: a receive engine sampling the input line and a transmit engine
// driving the output line, each with its own byte queue and bit clock. The
// framing is fixed 8N1, LSB-first.
type Transceiver struct {
	rx *Receiver
	tx *Transmitter
}

// New creates a transceiver on the given line pair. The receiver starts
// deactivated; call Rx().Activate() once the consumer is attached. In debug
// mode (Config.RxDebug) the receiver takes over the TX line as its sampling
// marker and the transmitter emits nothing.
func New(rxLine LineReader, txLine LineWriter, cfg Config) (*Transceiver, error) {
	return newTransceiver(rxLine, txLine, cfg, clock.New())
}

func newTransceiver(rxLine LineReader, txLine LineWriter, cfg Config, clk clock.Clock) (*Transceiver, error) {
	if rxLine == nil || txLine == nil {
		return nil, &TransceiverError{code: InvalidLine}
	}

	tx, err := newTransmitter(txLine, cfg, cfg.OnTxRoom, clk)
	if err != nil {
		return nil, err
	}

	var debugLine LineWriter
	if cfg.RxDebug {
		debugLine = txLine
	}
	rx, err := newReceiver(rxLine, debugLine, cfg, cfg.OnRxBytes, clk)
	if err != nil {
		tx.Close()
		return nil, err
	}

	return &Transceiver{rx: rx, tx: tx}, nil
}

// Rx returns the receive engine.
func (u *Transceiver) Rx() *Receiver { return u.rx }

// Tx returns the transmit engine.
func (u *Transceiver) Tx() *Transmitter { return u.tx }

// SetBaudRate reconfigures both engines. Safe to call while the line is
// quiescent; behavior with a byte in flight is undefined (the engines stay
// memory-safe, the byte may be corrupted).
func (u *Transceiver) SetBaudRate(baud int) error {
	if err := u.rx.SetBaudRate(baud); err != nil {
		return err
	}
	return u.tx.SetBaudRate(baud)
}

// Write queues bytes for transmission. See Transmitter.Write.
func (u *Transceiver) Write(p []byte) (int, error) {
	return u.tx.Write(p)
}

// Close tears both engines down: edge source disabled, timers canceled with
// in-flight callbacks joined, workers stopped, drain waiters released. The
// transceiver cannot be reused afterwards.
func (u *Transceiver) Close() {
	u.rx.Close()
	u.tx.Close()
}

func clampSkew(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

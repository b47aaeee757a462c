//
// Copyright 2025 The softuart authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package softuart

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

// newLoopback wires a transceiver to itself over a simulated line: the
// transmit engine drives the wire, falling edges feed the receive engine
// and the receive engine samples the wire, so everything written comes
// back decoded.
func newLoopback(t *testing.T, cfg Config) (*Transceiver, *clock.Mock, chan []byte) {
	t.Helper()
	mock := clock.NewMock()
	w := newWire()
	gotCh := make(chan []byte, 64)
	cfg.OnRxBytes = func(p []byte) {
		gotCh <- append([]byte(nil), p...)
	}
	uart, err := newTransceiver(w, w, cfg, mock)
	require.NoError(t, err)
	t.Cleanup(uart.Close)
	w.onFall = uart.Rx().FallingEdge
	uart.Rx().Activate()
	return uart, mock, gotCh
}

func TestLoopbackRoundTrip(t *testing.T) {
	uart, mock, gotCh := newLoopback(t, Config{BaudRate: 9600, RxSkewPercent: 30})

	msg := []byte("Hello, softuart!")
	n, err := uart.Write(msg)
	require.NoError(t, err)
	require.Equal(t, len(msg), n)

	mock.Add(time.Duration(10*len(msg)+5) * uart.tx.period)

	require.Equal(t, msg, collectBytes(t, gotCh, len(msg)))
	requireNoBytes(t, gotCh)
}

func TestLoopbackSingleByte(t *testing.T) {
	// 9600 baud, 30% skew, byte 0x41: start low, then 1,0,0,0,0,0,1,0
	// LSB-first, then stop high.
	uart, mock, gotCh := newLoopback(t, Config{BaudRate: 9600, RxSkewPercent: 30})

	_, err := uart.Write([]byte{0x41})
	require.NoError(t, err)
	mock.Add(15 * uart.tx.period)

	require.Equal(t, []byte{0x41}, collectBytes(t, gotCh, 1))
}

func TestLoopbackAllBytePatterns(t *testing.T) {
	uart, mock, gotCh := newLoopback(t, DefaultConfig())

	msg := make([]byte, 32)
	for i := range msg {
		msg[i] = byte(i * 8)
	}
	n, err := uart.Write(msg)
	require.NoError(t, err)
	require.Equal(t, len(msg), n)

	mock.Add(time.Duration(10*len(msg)+5) * uart.tx.period)

	require.Equal(t, msg, collectBytes(t, gotCh, len(msg)))
}

func TestLoopbackSequentialWrites(t *testing.T) {
	uart, mock, gotCh := newLoopback(t, DefaultConfig())

	for _, chunk := range [][]byte{[]byte("first "), []byte("second")} {
		_, err := uart.Write(chunk)
		require.NoError(t, err)
		mock.Add(time.Duration(10*len(chunk)+5) * uart.tx.period)
	}

	require.Equal(t, []byte("first second"), collectBytes(t, gotCh, 12))
}

func TestIdleLineProducesNothing(t *testing.T) {
	_, mock, gotCh := newLoopback(t, DefaultConfig())

	// A line held high forever must never produce a byte.
	mock.Add(time.Second)
	requireNoBytes(t, gotCh)
}

func TestNewValidation(t *testing.T) {
	w := newWire()

	_, err := New(nil, w, DefaultConfig())
	require.Error(t, err)
	require.Equal(t, InvalidLine, err.(*TransceiverError).Code())

	_, err = New(w, nil, DefaultConfig())
	require.Error(t, err)
	require.Equal(t, InvalidLine, err.(*TransceiverError).Code())

	_, err = New(w, w, Config{BaudRate: -9600})
	require.Error(t, err)
	require.Equal(t, InvalidBaudRate, err.(*TransceiverError).Code())
}

func TestNewDefaultBaudRate(t *testing.T) {
	mock := clock.NewMock()
	w := newWire()
	uart, err := newTransceiver(w, w, Config{}, mock)
	require.NoError(t, err)
	defer uart.Close()

	require.Equal(t, time.Second/DefaultBaudRate, uart.rx.period)
	require.Equal(t, time.Second/DefaultBaudRate, uart.tx.period)
}

func TestTransceiverSetBaudRate(t *testing.T) {
	uart, mock, gotCh := newLoopback(t, Config{BaudRate: 9600, RxSkewPercent: 30})

	require.NoError(t, uart.SetBaudRate(38400))
	require.Equal(t, time.Second/38400, uart.rx.period)
	require.Equal(t, time.Second/38400, uart.tx.period)

	require.Error(t, uart.SetBaudRate(0))

	_, err := uart.Write([]byte{0x42})
	require.NoError(t, err)
	mock.Add(15 * uart.tx.period)
	require.Equal(t, []byte{0x42}, collectBytes(t, gotCh, 1))
}

func TestTransceiverDebugMode(t *testing.T) {
	mock := clock.NewMock()
	line := newFakeInput()
	marker := newRecorder(mock)
	cfg := DefaultConfig()
	cfg.RxDebug = true
	uart, err := newTransceiver(line, marker, cfg, mock)
	require.NoError(t, err)
	defer uart.Close()
	uart.Rx().Activate()

	// Writes are swallowed whole and nothing is emitted.
	n, err := uart.Write([]byte("nope"))
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, TxFIFOSize, uart.Tx().WriteRoom())

	// The receiver toggles the TX line at the edge and at every sample.
	feedByte(t, mock, line, uart.rx, 0x0F)
	changes := marker.recorded()
	require.Len(t, changes, 12) // idle-high init + 11 toggles
}

func TestTransceiverCloseIdempotent(t *testing.T) {
	uart, _, _ := newLoopback(t, DefaultConfig())
	uart.Close()
	uart.Close()

	_, err := uart.Write([]byte{1})
	require.Error(t, err)
	require.Equal(t, TransceiverClosed, err.(*TransceiverError).Code())
}

func TestTransceiverCloseReleasesDrainWaiters(t *testing.T) {
	mock := clock.NewMock()
	w := newWire()
	uart, err := newTransceiver(w, w, DefaultConfig(), mock)
	require.NoError(t, err)

	_, err = uart.Write([]byte("stuck"))
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- uart.Tx().WaitUntilSent(0) }()

	// Never advance the clock; only Close can release the waiter.
	time.Sleep(10 * time.Millisecond)
	uart.Close()

	select {
	case err := <-errCh:
		require.Error(t, err)
		require.Equal(t, TransceiverClosed, err.(*TransceiverError).Code())
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not release the drain waiter")
	}
}

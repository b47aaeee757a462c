//
// Copyright 2025 The softuart authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

/*
Package softuart implements a software-defined serial transceiver (a
"bit-banged UART") on a pair of digital I/O lines, using only edge events
and timers instead of dedicated UART hardware. The framing is fixed at
standard asynchronous serial 8-N-1: one start bit (low), 8 data bits
LSB-first, one stop bit (high).

A transceiver is created on a line pair with the New function:

	cfg := softuart.DefaultConfig()
	cfg.BaudRate = 9600
	cfg.OnRxBytes = func(p []byte) {
		consumer.Write(append([]byte(nil), p...))
	}
	uart, err := softuart.New(rxLine, txLine, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer uart.Close()
	uart.Rx().Activate()

The rxLine and txLine arguments implement the LineReader and LineWriter
contracts. The gpio subpackage provides implementations backed by the Linux
GPIO character device; the line driver is responsible for reporting falling
edges on the input line to Receiver.FallingEdge.

Transmission is non-blocking with partial-accept semantics: Write returns
the number of bytes that fit into the transmit queue, WriteRoom reports the
free space, and WaitUntilSent blocks until the queue drains:

	n, err := uart.Write(data)
	if n < len(data) {
		// short write, retry the rest once OnTxRoom fires
	}
	err = uart.Tx().WaitUntilSent(time.Second)

Received bytes are delivered in batches to the OnRxBytes callback from a
deferred context, decoupled from the timing-critical sampling path. Framing
errors (invalid start or stop bits) silently discard the byte in progress,
as real UART hardware does; the package exports Prometheus counters that
make these discards observable.
*/
package softuart

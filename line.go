//
// Copyright 2025 The softuart authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package softuart

// Logic levels of a digital line. The wire idles high; a start bit pulls it
// low and the stop bit returns it high, as in standard asynchronous serial
// framing.
const (
	Low  = 0
	High = 1
)

// LineReader reads the instantaneous level of a digital input line.
//
// Level is called from the receive engine's timing-critical sample path and
// must be non-blocking. It cannot fail; implementations that can encounter
// transient errors should return the last known level instead.
type LineReader interface {
	Level() int
}

// LineWriter drives the level of a digital output line.
//
// SetLevel is called from the transmit engine's timing-critical clock path
// and must be non-blocking.
type LineWriter interface {
	SetLevel(level int)
}

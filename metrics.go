//
// Copyright 2025 The softuart authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package softuart

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Real UART hardware silently swallows framing noise; these counters make
// the same silent discards observable without changing protocol behavior.
// Counter increments are atomic adds, cheap enough for the tick paths.
var (
	registerOnce sync.Once

	framingErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "softuart",
			Subsystem: "rx",
			Name:      "framing_errors_total",
			Help:      "Bytes discarded because of an invalid start or stop bit.",
		},
		[]string{"bit"},
	)
	rxOverflow = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "softuart",
			Subsystem: "rx",
			Name:      "overflow_total",
			Help:      "Decoded bytes dropped because the receive queue was full.",
		},
	)
	rxBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "softuart",
			Subsystem: "rx",
			Name:      "bytes_total",
			Help:      "Bytes successfully decoded from the line.",
		},
	)
	txBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "softuart",
			Subsystem: "tx",
			Name:      "bytes_total",
			Help:      "Bytes accepted into the transmit queue.",
		},
	)
)

// RegisterMetrics registers this package's collectors with the default
// Prometheus registry. It is safe to call more than once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(framingErrors, rxOverflow, rxBytes, txBytes)
	})
}

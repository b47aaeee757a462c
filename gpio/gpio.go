//
// Copyright 2025 The softuart authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// Package gpio adapts Linux GPIO character-device lines to the softuart
// line contracts. Input lines are requested with falling-edge event
// reporting so the kernel delivers start-bit candidates; output lines are
// requested driven high, the serial idle level.
package gpio

import (
	"sync/atomic"

	"github.com/warthog618/go-gpiocdev"
)

// cdevLine is the slice of *gpiocdev.Line this package relies on.
type cdevLine interface {
	Value() (int, error)
	SetValue(value int) error
	Close() error
}

// InputLine is a softuart.LineReader backed by a GPIO character-device
// line.
type InputLine struct {
	line cdevLine
	last int32
}

// RequestInput requests the line at offset on the given chip (e.g.
// "gpiochip0") as an input with falling-edge detection. onFallingEdge is
// invoked from the event-watch context for every falling edge; wire it to
// Receiver.FallingEdge.
func RequestInput(chip string, offset int, consumer string, onFallingEdge func()) (*InputLine, error) {
	l, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsInput,
		gpiocdev.WithConsumer(consumer),
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			if evt.Type == gpiocdev.LineEventFallingEdge {
				onFallingEdge()
			}
		}))
	if err != nil {
		return nil, err
	}
	in := &InputLine{line: l}
	if v, err := l.Value(); err == nil {
		atomic.StoreInt32(&in.last, int32(v))
	}
	return in, nil
}

// Level returns the current line level. The sample path cannot block or
// fail, so a read error yields the last successfully observed level.
func (l *InputLine) Level() int {
	v, err := l.line.Value()
	if err != nil {
		return int(atomic.LoadInt32(&l.last))
	}
	atomic.StoreInt32(&l.last, int32(v))
	return v
}

// Close releases the line.
func (l *InputLine) Close() error {
	return l.line.Close()
}

// OutputLine is a softuart.LineWriter backed by a GPIO character-device
// line.
type OutputLine struct {
	line cdevLine
}

// RequestOutput requests the line at offset on the given chip as an output,
// driven high.
func RequestOutput(chip string, offset int, consumer string) (*OutputLine, error) {
	l, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsOutput(1),
		gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, err
	}
	return &OutputLine{line: l}, nil
}

// SetLevel drives the line. Errors are swallowed; the clock path has no way
// to surface them and a failed write leaves the previous level on the wire,
// which the receiving end treats as line noise.
func (l *OutputLine) SetLevel(level int) {
	l.line.SetValue(level) //nolint:errcheck
}

// Close releases the line.
func (l *OutputLine) Close() error {
	return l.line.Close()
}

//
// Copyright 2025 The softuart authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/creack/goselect"
	"github.com/creack/pty"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/softserial/softuart"
)

// pollInterval bounds how long the read loop sleeps in select before
// re-checking for shutdown.
const pollInterval = 100 * time.Millisecond

// bridge exposes one transceiver as a pty. Bytes written to the pty slave
// are queued on the transmit engine with partial-accept retry; decoded
// receive bytes are pushed back into the pty.
type bridge struct {
	log    zerolog.Logger
	uart   *softuart.Transceiver
	master *os.File
	slave  *os.File
	link   string

	roomCh chan struct{}
	quit   chan struct{}
	wg     sync.WaitGroup
}

// newBridge allocates a pty pair, puts the slave into raw mode and symlinks
// it at link. The returned bridge is not running yet; the caller wires
// onTxRoom and onRxBytes into the transceiver config before creating the
// transceiver, then calls bind and start.
func newBridge(log zerolog.Logger, link string) (*bridge, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("open pty: %w", err)
	}

	if err := setRaw(slave); err != nil {
		master.Close()
		slave.Close()
		return nil, fmt.Errorf("set pty raw: %w", err)
	}

	// Replace a stale link from a previous run.
	os.Remove(link)
	if err := os.Symlink(slave.Name(), link); err != nil {
		master.Close()
		slave.Close()
		return nil, fmt.Errorf("link pty: %w", err)
	}

	return &bridge{
		log:    log.With().Str("pty", slave.Name()).Str("link", link).Logger(),
		master: master,
		slave:  slave,
		link:   link,
		roomCh: make(chan struct{}, 1),
		quit:   make(chan struct{}),
	}, nil
}

// setRaw disables all termios processing on the pty slave so it shuttles
// raw bytes, the same discipline a real serial port gets from cfmakeraw.
func setRaw(f *os.File) error {
	fd := int(f.Fd())
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
	return unix.IoctlSetTermios(fd, unix.TCSETS, t)
}

// onTxRoom is the transmit wakeup callback; it nudges the write loop to
// retry a short write.
func (b *bridge) onTxRoom() {
	select {
	case b.roomCh <- struct{}{}:
	default:
	}
}

// onRxBytes is the receive delivery callback; the buffer is reused by the
// engine, but the pty write completes before return so no copy is needed.
func (b *bridge) onRxBytes(p []byte) {
	if _, err := b.master.Write(p); err != nil {
		b.log.Warn().Err(err).Msg("dropping received bytes, pty write failed")
	}
}

// bind attaches the transceiver and starts the pty read loop.
func (b *bridge) bind(uart *softuart.Transceiver) {
	b.uart = uart
	b.wg.Add(1)
	go b.readLoop()
	b.log.Info().Msg("bridge running")
}

// readLoop shuttles pty input into the transmit queue. The fd wait uses
// select with a timeout so shutdown is prompt even with no traffic.
func (b *bridge) readLoop() {
	defer b.wg.Done()

	fd := b.master.Fd()
	buf := make([]byte, softuart.TxFIFOSize)
	fds := &goselect.FDSet{}

	for {
		select {
		case <-b.quit:
			return
		default:
		}

		fds.Zero()
		fds.Set(fd)
		if err := goselect.Select(int(fd)+1, fds, nil, nil, pollInterval); err != nil {
			if err == unix.EINTR {
				continue
			}
			select {
			case <-b.quit:
			default:
				b.log.Error().Err(err).Msg("pty select failed")
			}
			return
		}
		if !fds.IsSet(fd) {
			continue
		}

		n, err := b.master.Read(buf)
		if err != nil {
			select {
			case <-b.quit:
			default:
				b.log.Error().Err(err).Msg("pty read failed")
			}
			return
		}
		b.writeAll(buf[:n])
	}
}

// writeAll queues p on the transmit engine, waiting for room wakeups when
// the queue fills. Bytes are never dropped on this path; the pty writer
// blocks instead.
func (b *bridge) writeAll(p []byte) {
	for len(p) > 0 {
		n, err := b.uart.Write(p)
		if err != nil {
			b.log.Error().Err(err).Msg("transmit write failed")
			return
		}
		p = p[n:]
		if len(p) == 0 {
			return
		}
		select {
		case <-b.roomCh:
		case <-time.After(pollInterval):
		case <-b.quit:
			return
		}
	}
}

// close stops the read loop and removes the pty pair and link.
func (b *bridge) close() {
	close(b.quit)
	// Unblock a read stuck in select by closing the master first.
	b.master.Close()
	b.wg.Wait()
	b.slave.Close()
	os.Remove(b.link)
	b.log.Info().Msg("bridge stopped")
}

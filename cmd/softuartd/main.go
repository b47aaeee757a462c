//
// Copyright 2025 The softuart authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

// softuartd exposes bit-banged UARTs on GPIO line pairs as pty devices.
//
// Each [[uart]] section of the config file names a GPIO chip, an rx/tx line
// pair and framing parameters; the daemon requests the lines, runs a
// softuart transceiver on them and symlinks a raw pty at pty_link (default
// /tmp/softuart<N>). Anything that reads or writes the pty talks 8N1 serial
// on the wire.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/softserial/softuart"
	"github.com/softserial/softuart/gpio"
)

type device struct {
	cfg    uartConfig
	index  int
	bridge *bridge
	uart   *softuart.Transceiver
	rxLine *gpio.InputLine
	txLine *gpio.OutputLine
}

func main() {
	configPath := flag.String("config", "/etc/softuartd.toml", "path to the daemon config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Str("app", "softuartd").Logger()
	if !*debug {
		log = log.Level(zerolog.InfoLevel)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	if cfg.MetricsAddr != "" {
		softuart.RegisterMetrics()
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, nil); err != nil {
				log.Error().Err(err).Msg("metrics listener failed")
			}
		}()
		log.Info().Str("addr", cfg.MetricsAddr).Msg("serving metrics")
	}

	var alloc indexAllocator
	var devices []*device
	for _, uc := range cfg.Uarts {
		dev, err := setupDevice(log, &alloc, uc)
		if err != nil {
			log.Error().Err(err).Str("uart", uc.Name).Msg("device setup failed")
			teardown(devices, &alloc)
			os.Exit(1)
		}
		devices = append(devices, dev)
	}

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, os.Interrupt, syscall.SIGTERM)
	sig := <-stopCh
	log.Info().Str("signal", sig.String()).Msg("stop requested")

	teardown(devices, &alloc)
}

func setupDevice(log zerolog.Logger, alloc *indexAllocator, uc uartConfig) (*device, error) {
	index, err := alloc.acquire()
	if err != nil {
		return nil, err
	}
	dev := &device{cfg: uc, index: index}

	link := uc.PtyLink
	if link == "" {
		link = fmt.Sprintf("/tmp/softuart%d", index)
	}

	dlog := log.With().Str("uart", uc.Name).Logger()
	br, err := newBridge(dlog, link)
	if err != nil {
		alloc.release(index)
		return nil, err
	}
	dev.bridge = br

	// The edge watch starts before the receiver exists; late-bind the
	// handler. Edges arriving before Activate are ignored anyway.
	var fallingEdge atomic.Value // func()
	consumer := "softuartd-" + uc.Name
	rxLine, err := gpio.RequestInput(uc.Chip, uc.RxGPIO, consumer+"-rx", func() {
		if f, ok := fallingEdge.Load().(func()); ok {
			f()
		}
	})
	if err != nil {
		dev.cleanup(alloc)
		return nil, fmt.Errorf("request rx gpio %d on %s: %w", uc.RxGPIO, uc.Chip, err)
	}
	dev.rxLine = rxLine

	txLine, err := gpio.RequestOutput(uc.Chip, uc.TxGPIO, consumer+"-tx")
	if err != nil {
		dev.cleanup(alloc)
		return nil, fmt.Errorf("request tx gpio %d on %s: %w", uc.TxGPIO, uc.Chip, err)
	}
	dev.txLine = txLine

	uart, err := softuart.New(rxLine, txLine, softuart.Config{
		BaudRate:      uc.BaudRate,
		RxSkewPercent: uc.RxSkew,
		RxDebug:       uc.RxDebug,
		OnRxBytes:     br.onRxBytes,
		OnTxRoom:      br.onTxRoom,
	})
	if err != nil {
		dev.cleanup(alloc)
		return nil, err
	}
	dev.uart = uart

	fallingEdge.Store(uart.Rx().FallingEdge)
	uart.Rx().Activate()
	br.bind(uart)

	dlog.Info().
		Str("chip", uc.Chip).
		Int("rx", uc.RxGPIO).
		Int("tx", uc.TxGPIO).
		Int("baud", uc.BaudRate).
		Int("skew", uc.RxSkew).
		Bool("rx_debug", uc.RxDebug).
		Msg("uart up")
	return dev, nil
}

func (d *device) cleanup(alloc *indexAllocator) {
	if d.bridge != nil {
		d.bridge.close()
	}
	if d.uart != nil {
		d.uart.Rx().Shutdown()
		d.uart.Close()
	}
	if d.rxLine != nil {
		d.rxLine.Close()
	}
	if d.txLine != nil {
		d.txLine.Close()
	}
	alloc.release(d.index)
}

func teardown(devices []*device, alloc *indexAllocator) {
	for _, d := range devices {
		d.cleanup(alloc)
	}
}

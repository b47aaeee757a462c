//
// Copyright 2025 The softuart authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/softserial/softuart"
)

type fileConfig struct {
	MetricsAddr string           `toml:"metrics_addr"`
	Uarts       []fileUartConfig `toml:"uart"`
}

// Pointer fields distinguish "absent" from an explicit zero, which matters
// for gpio offsets and rx_skew.
type fileUartConfig struct {
	Name     string `toml:"name"`
	Chip     string `toml:"chip"`
	RxGPIO   *int   `toml:"rx_gpio"`
	TxGPIO   *int   `toml:"tx_gpio"`
	BaudRate *int   `toml:"baud_rate"`
	RxSkew   *int   `toml:"rx_skew"`
	RxDebug  bool   `toml:"rx_debug"`
	PtyLink  string `toml:"pty_link"`
}

type daemonConfig struct {
	MetricsAddr string
	Uarts       []uartConfig
}

type uartConfig struct {
	Name     string
	Chip     string
	RxGPIO   int
	TxGPIO   int
	BaudRate int
	RxSkew   int
	RxDebug  bool
	PtyLink  string
}

func loadConfig(path string) (daemonConfig, error) {
	var raw fileConfig
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return daemonConfig{}, fmt.Errorf("load config: %w", err)
	}

	cfg := daemonConfig{MetricsAddr: strings.TrimSpace(raw.MetricsAddr)}
	if len(raw.Uarts) == 0 {
		return daemonConfig{}, fmt.Errorf("config %s: no [[uart]] sections", path)
	}

	for i, u := range raw.Uarts {
		uc := uartConfig{
			Name:     strings.TrimSpace(u.Name),
			Chip:     strings.TrimSpace(u.Chip),
			BaudRate: softuart.DefaultBaudRate,
			RxSkew:   softuart.DefaultRxSkewPercent,
			RxDebug:  u.RxDebug,
			PtyLink:  strings.TrimSpace(u.PtyLink),
		}
		if uc.Name == "" {
			uc.Name = fmt.Sprintf("uart%d", i)
		}
		if uc.Chip == "" {
			return daemonConfig{}, fmt.Errorf("uart %q: chip is required", uc.Name)
		}
		if u.RxGPIO == nil || u.TxGPIO == nil {
			return daemonConfig{}, fmt.Errorf("uart %q: rx_gpio and tx_gpio are required", uc.Name)
		}
		if *u.RxGPIO < 0 || *u.TxGPIO < 0 {
			return daemonConfig{}, fmt.Errorf("uart %q: gpio offsets must not be negative", uc.Name)
		}
		if *u.RxGPIO == *u.TxGPIO {
			return daemonConfig{}, fmt.Errorf("uart %q: rx_gpio and tx_gpio must differ", uc.Name)
		}
		uc.RxGPIO = *u.RxGPIO
		uc.TxGPIO = *u.TxGPIO
		if u.BaudRate != nil {
			if *u.BaudRate <= 0 {
				return daemonConfig{}, fmt.Errorf("uart %q: baud_rate must be positive", uc.Name)
			}
			uc.BaudRate = *u.BaudRate
		}
		if u.RxSkew != nil {
			if *u.RxSkew < 0 || *u.RxSkew > 100 {
				return daemonConfig{}, fmt.Errorf("uart %q: rx_skew must be in [0,100]", uc.Name)
			}
			uc.RxSkew = *u.RxSkew
		}
		cfg.Uarts = append(cfg.Uarts, uc)
	}

	return cfg, nil
}

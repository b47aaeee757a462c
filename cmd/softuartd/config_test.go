//
// Copyright 2025 The softuart authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "softuartd.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
metrics_addr = ":9815"

[[uart]]
name = "console"
chip = "gpiochip0"
rx_gpio = 23
tx_gpio = 24
baud_rate = 115200
rx_skew = 40
pty_link = "/tmp/console"

[[uart]]
chip = "gpiochip1"
rx_gpio = 0
tx_gpio = 1
rx_debug = true
`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, ":9815", cfg.MetricsAddr)
	require.Len(t, cfg.Uarts, 2)

	require.Equal(t, uartConfig{
		Name:     "console",
		Chip:     "gpiochip0",
		RxGPIO:   23,
		TxGPIO:   24,
		BaudRate: 115200,
		RxSkew:   40,
		PtyLink:  "/tmp/console",
	}, cfg.Uarts[0])

	// Defaults: generated name, 9600 baud, 30% skew.
	require.Equal(t, uartConfig{
		Name:     "uart1",
		Chip:     "gpiochip1",
		RxGPIO:   0,
		TxGPIO:   1,
		BaudRate: 9600,
		RxSkew:   30,
		RxDebug:  true,
	}, cfg.Uarts[1])
}

func TestLoadConfigErrors(t *testing.T) {
	cases := map[string]string{
		"no uarts": `metrics_addr = ":9815"`,
		"missing chip": `
[[uart]]
rx_gpio = 1
tx_gpio = 2
`,
		"missing gpios": `
[[uart]]
chip = "gpiochip0"
`,
		"equal gpios": `
[[uart]]
chip = "gpiochip0"
rx_gpio = 5
tx_gpio = 5
`,
		"negative gpio": `
[[uart]]
chip = "gpiochip0"
rx_gpio = -1
tx_gpio = 2
`,
		"bad baud": `
[[uart]]
chip = "gpiochip0"
rx_gpio = 1
tx_gpio = 2
baud_rate = 0
`,
		"bad skew": `
[[uart]]
chip = "gpiochip0"
rx_gpio = 1
tx_gpio = 2
rx_skew = 101
`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, content))
			require.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestLoadConfigExplicitZeroSkew(t *testing.T) {
	path := writeConfig(t, `
[[uart]]
chip = "gpiochip0"
rx_gpio = 1
tx_gpio = 2
rx_skew = 0
`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 0, cfg.Uarts[0].RxSkew)
}

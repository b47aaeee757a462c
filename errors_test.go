//
// Copyright 2025 The softuart authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package softuart

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransceiverErrorStrings(t *testing.T) {
	cases := map[ErrorCode]string{
		InvalidBaudRate:   "Baud rate invalid or not supported",
		InvalidLine:       "Digital line invalid or missing",
		TransceiverClosed: "Transceiver has been closed",
		DrainTimeout:      "Transmit queue not drained within timeout",
	}

	for code, want := range cases {
		e := &TransceiverError{code: code}
		require.Equal(t, want, e.Error())
		require.Equal(t, want, e.EncodedErrorString())
		require.Equal(t, code, e.Code())
	}
}

func TestTransceiverErrorCause(t *testing.T) {
	cause := errors.New("underlying failure")
	e := &TransceiverError{code: InvalidLine, causedBy: cause}
	require.Equal(t, "Digital line invalid or missing: underlying failure", e.Error())
}

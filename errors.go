//
// Copyright 2025 The softuart authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package softuart

// TransceiverError is the error type returned by this package.
type TransceiverError struct {
	code     ErrorCode
	causedBy error
}

// ErrorCode is a code to easily identify the type of error
type ErrorCode int

const (
	// InvalidBaudRate the requested baud rate is zero or negative
	InvalidBaudRate ErrorCode = iota
	// InvalidLine a required digital line is missing or unusable
	InvalidLine
	// TransceiverClosed the transceiver has been closed while the operation is in progress
	TransceiverClosed
	// DrainTimeout the transmit queue did not drain within the requested timeout
	DrainTimeout
)

// EncodedErrorString returns a string explaining the error code
func (e TransceiverError) EncodedErrorString() string {
	switch e.code {
	case InvalidBaudRate:
		return "Baud rate invalid or not supported"
	case InvalidLine:
		return "Digital line invalid or missing"
	case TransceiverClosed:
		return "Transceiver has been closed"
	case DrainTimeout:
		return "Transmit queue not drained within timeout"
	default:
		return "Other error"
	}
}

// Error returns the complete error code with details on the cause of the error
func (e TransceiverError) Error() string {
	if e.causedBy != nil {
		return e.EncodedErrorString() + ": " + e.causedBy.Error()
	}
	return e.EncodedErrorString()
}

// Code returns an identifier for the kind of error occurred
func (e TransceiverError) Code() ErrorCode {
	return e.code
}

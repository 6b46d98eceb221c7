// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package fieldagent

import (
	"errors"
	"io"
	"net"
	"os"
	"time"
)

// MaxADU is the largest RTU frame the field agent will buffer, matching the
// Modbus RTU ceiling of 256 bytes (address + PDU + CRC).
const MaxADU = 256

// ErrNoResponse is returned when the bus stayed silent past T_first: no
// byte of a reply ever arrived.
var ErrNoResponse = errors.New("fieldagent: no response before first-byte timeout")

// FirstByteTimeout is how long the agent waits for the first byte of a
// reply before giving up on the exchange entirely.
const FirstByteTimeout = 500 * time.Millisecond

// InterSymbolTimeout returns the per-byte silence gap that marks the end of
// an RTU frame: 1500*(data+parity+stop bits)/baud milliseconds, i.e. 1.5
// times the data+parity+stop bit time of one character, rounded up to a
// whole millisecond and floored at 1ms so a fast baud rate never produces a
// zero timeout.
func InterSymbolTimeout(baud, dataBits, parityBits, stopBits int) time.Duration {
	charBits := dataBits + parityBits + stopBits
	micros := (1500 * charBits) / baud
	if (1500*charBits)%baud != 0 {
		micros++
	}
	d := time.Duration(micros) * time.Millisecond
	if d < time.Millisecond {
		return time.Millisecond
	}
	return d
}

// ReadFrame reads one RTU frame from r using the two-stage deadline the
// field agent uses on an idle half-duplex bus: wait up to firstByte for the
// first byte, then keep reading while no gap exceeds interSymbol. It stops
// at the first such gap rather than at any expected frame length, since the
// agent never knows in advance how long a reply will be.
func ReadFrame(r io.Reader, firstByte, interSymbol time.Duration) ([]byte, error) {
	buf := make([]byte, MaxADU)
	n := 0
	one := make([]byte, 1)

	deadline := time.Now().Add(firstByte)
	for {
		if err := setReadDeadline(r, deadline); err != nil {
			return nil, err
		}
		read, err := r.Read(one)
		if read == 1 {
			buf[n] = one[0]
			n++
			if n >= MaxADU {
				return buf[:n], nil
			}
			deadline = time.Now().Add(interSymbol)
			continue
		}
		if isTimeout(err) {
			if n == 0 {
				return nil, ErrNoResponse
			}
			return buf[:n], nil
		}
		if err != nil && err != io.EOF {
			if n == 0 {
				return nil, err
			}
			return buf[:n], nil
		}
		if n == 0 {
			return nil, ErrNoResponse
		}
		return buf[:n], nil
	}
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// deadlineSetter is implemented by readers (e.g. serial ports) that support
// a per-call read deadline. Readers that don't implement it are read from
// with no deadline enforcement beyond the caller's own timeout plumbing.
type deadlineSetter interface {
	SetReadDeadline(time.Time) error
}

func setReadDeadline(r io.Reader, deadline time.Time) error {
	if d, ok := r.(deadlineSetter); ok {
		return d.SetReadDeadline(deadline)
	}
	return nil
}

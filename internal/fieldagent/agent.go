// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package fieldagent is the physical-side half of the gateway: it owns the
// RS-485 UART, exchanges raw RTU frames with the slave, and relays tagged
// payloads to and from the broker over the mbnet topic.
package fieldagent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/grid-x/serial"

	"github.com/lijinling/modbus-mqtt-gateway/internal/modbus"
)

// Tag bytes prefixing every mbnet payload.
const (
	TagBrokerOrigin byte = 0x00
	TagFieldOrigin  byte = 0x01
)

// Port is anything that can perform one RTU exchange: transmit a framed
// ADU and return the slave's reply, bounded by the two-stage timeout. The
// physical UART (serialPort) implements it; tests substitute a simulated
// loopback.
type Port interface {
	Exchange(ctx context.Context, frame []byte, firstByte, interSymbol time.Duration) ([]byte, error)
	Close() error
}

// Agent binds a serial port to an MQTT mbnet topic for one device.
type Agent struct {
	Port Port

	FirstByteTimeout   time.Duration
	InterSymbolTimeout time.Duration
}

// NewAgent configures the UART described by address/baudRate/dataBits/
// stopBits/parity (one of "N", "E", "O") and derives the inter-symbol
// timeout from that same framing, per §4.10. The port itself is opened on
// the first exchange.
func NewAgent(address string, baudRate, dataBits, stopBits int, parity string) *Agent {
	return &Agent{
		Port: &serialPort{
			Config: serial.Config{
				Address:  address,
				BaudRate: baudRate,
				DataBits: dataBits,
				StopBits: stopBits,
				Parity:   parity,
			},
			IdleTimeout: serialIdleTimeout,
		},
		FirstByteTimeout:   FirstByteTimeout,
		InterSymbolTimeout: InterSymbolTimeout(baudRate, dataBits, parityBits(parity), stopBits),
	}
}

// parityBits returns how many bits on the wire a parity setting costs:
// none costs nothing, even/odd cost one bit.
func parityBits(parity string) int {
	if strings.ToUpper(parity) == "N" || parity == "" {
		return 0
	}
	return 1
}

// HandleMbnet processes one inbound mbnet payload and returns the tagged
// payload to republish, or nil if the message was not broker-origin and
// should be ignored (per §4.10, the agent ignores its own field-origin
// echoes).
func (a *Agent) HandleMbnet(ctx context.Context, payload []byte) []byte {
	if len(payload) < 1 || payload[0] != TagBrokerOrigin {
		return nil
	}
	pdu := payload[1:]

	frame := AppendCRC(pdu)
	reply, err := a.Port.Exchange(ctx, frame, a.FirstByteTimeout, a.InterSymbolTimeout)
	if err != nil {
		slog.Warn("fieldagent: exchange failed", "error", err)
		return taggedSentinel()
	}
	if !VerifyCRC(reply) {
		slog.Warn("fieldagent: crc mismatch", "reply", reply)
		return taggedSentinel()
	}
	return append([]byte{TagFieldOrigin}, StripCRC(reply)...)
}

func taggedSentinel() []byte {
	return append([]byte{TagFieldOrigin}, modbus.NullSentinel...)
}

// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package fieldagent

import "github.com/lijinling/modbus-mqtt-gateway/internal/fieldagent/crc"

// AppendCRC returns pdu with its Modbus RTU CRC-16 appended, low byte
// first. pdu is the frame without a tag byte and without a trailing CRC.
func AppendCRC(pdu []byte) []byte {
	var c crc.CRC
	c.Reset().PushBytes(pdu)
	v := c.Value()
	out := make([]byte, len(pdu)+2)
	copy(out, pdu)
	out[len(pdu)] = byte(v)
	out[len(pdu)+1] = byte(v >> 8)
	return out
}

// VerifyCRC reports whether frame's trailing two bytes are a correct
// Modbus RTU CRC-16 over the bytes that precede them. Folding the CRC's own
// bytes back through the accumulator must yield zero.
func VerifyCRC(frame []byte) bool {
	if len(frame) < 2 {
		return false
	}
	var c crc.CRC
	c.Reset().PushBytes(frame)
	return c.Value() == 0
}

// StripCRC drops the trailing two CRC bytes from frame.
func StripCRC(frame []byte) []byte {
	if len(frame) < 2 {
		return frame
	}
	return frame[:len(frame)-2]
}

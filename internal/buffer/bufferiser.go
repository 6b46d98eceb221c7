// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package buffer serialises abstract Modbus frames to byte ADUs and back.
// CRC is not handled here -- it lives exclusively at the field-agent
// boundary, per the design split between broker-side JSON/frame logic and
// field-side wire logic.
package buffer

import (
	"encoding/binary"
	"fmt"

	"github.com/lijinling/modbus-mqtt-gateway/internal/modbus"
)

// Bufferise serialises one abstract frame into its PDU bytes (unit id
// through payload, no CRC), per the §4.5 layout table.
func Bufferise(f *modbus.Frame) ([]byte, error) {
	switch f.FuncCode {
	case modbus.FuncCodeReadCoils, modbus.FuncCodeReadDiscreteInputs,
		modbus.FuncCodeReadHoldingRegisters, modbus.FuncCodeReadInputRegisters:
		return bufferiseRead(f), nil
	case modbus.FuncCodeWriteMultipleRegister:
		return bufferiseWriteNumeric(f), nil
	case modbus.FuncCodeWriteMultipleCoils:
		return bufferiseWriteBoolean(f), nil
	case modbus.FuncCodeDiagnostics:
		return bufferiseDiagnosis(f), nil
	case 0:
		return bufferiseRaw(f), nil
	default:
		return nil, fmt.Errorf("buffer: unsupported function code 0x%02X", f.FuncCode)
	}
}

func bufferiseRead(f *modbus.Frame) []byte {
	buf := make([]byte, 6)
	buf[0] = byte(f.UnitID)
	buf[1] = byte(f.FuncCode)
	binary.BigEndian.PutUint16(buf[2:4], uint16(f.Address))
	binary.BigEndian.PutUint16(buf[4:6], uint16(f.Count))
	return buf
}

func bufferiseWriteNumeric(f *modbus.Frame) []byte {
	byteCount := 2 * f.Count
	buf := make([]byte, 7+byteCount)
	buf[0] = byte(f.UnitID)
	buf[1] = byte(f.FuncCode)
	binary.BigEndian.PutUint16(buf[2:4], uint16(f.Address))
	binary.BigEndian.PutUint16(buf[4:6], uint16(f.Count))
	buf[6] = byte(byteCount)
	for i, v := range f.Values {
		binary.BigEndian.PutUint16(buf[7+2*i:9+2*i], uint16(v))
	}
	return buf
}

// bufferiseWriteBoolean packs each value's truthiness as a bit, LSB-first
// within each byte, per §9's bit-packing-order note.
func bufferiseWriteBoolean(f *modbus.Frame) []byte {
	byteCount := (f.Count + 7) / 8
	buf := make([]byte, 7+byteCount)
	buf[0] = byte(f.UnitID)
	buf[1] = byte(f.FuncCode)
	binary.BigEndian.PutUint16(buf[2:4], uint16(f.Address))
	binary.BigEndian.PutUint16(buf[4:6], uint16(f.Count))
	buf[6] = byte(byteCount)
	for i, v := range f.Values {
		if v != 0 {
			buf[7+i/8] |= 1 << (i % 8)
		}
	}
	return buf
}

func bufferiseDiagnosis(f *modbus.Frame) []byte {
	buf := make([]byte, 6)
	buf[0] = byte(f.UnitID)
	buf[1] = byte(f.FuncCode)
	binary.BigEndian.PutUint16(buf[2:4], uint16(f.Subfunction))
	binary.BigEndian.PutUint16(buf[4:6], uint16(f.Data))
	return buf
}

func bufferiseRaw(f *modbus.Frame) []byte {
	buf := make([]byte, 1+len(f.Raw))
	buf[0] = byte(f.UnitID)
	copy(buf[1:], f.Raw)
	return buf
}

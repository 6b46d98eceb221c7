// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package buffer

import (
	"bytes"
	"testing"

	"github.com/lijinling/modbus-mqtt-gateway/internal/modbus"
)

func TestBufferiseReadInputRegisters(t *testing.T) {
	f := &modbus.Frame{UnitID: 7, FuncCode: modbus.FuncCodeReadInputRegisters, Address: 16, Count: 10}
	got, err := Bufferise(f)
	if err != nil {
		t.Fatalf("Bufferise: %v", err)
	}
	want := []byte{0x07, 0x04, 0x00, 0x10, 0x00, 0x0A}
	if !bytes.Equal(got, want) {
		t.Errorf("Bufferise = % X, want % X", got, want)
	}
}

func TestBufferiseDiagnosis(t *testing.T) {
	f := &modbus.Frame{UnitID: 22, FuncCode: modbus.FuncCodeDiagnostics, Subfunction: 0x0000, Data: 0}
	got, err := Bufferise(f)
	if err != nil {
		t.Fatalf("Bufferise: %v", err)
	}
	want := []byte{0x16, 0x08, 0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("Bufferise = % X, want % X", got, want)
	}
}

func TestBufferiseWriteBooleanNineValuesPacksSecondByte(t *testing.T) {
	values := make([]int, 9)
	for i := range values {
		values[i] = 1
	}
	f := &modbus.Frame{UnitID: 1, FuncCode: modbus.FuncCodeWriteMultipleCoils, Address: 0, Count: 9, Values: values}
	got, err := Bufferise(f)
	if err != nil {
		t.Fatalf("Bufferise: %v", err)
	}
	if got[6] != 2 {
		t.Fatalf("byteCount = %d, want 2", got[6])
	}
	if got[7] != 0xFF {
		t.Errorf("first byte of bitfield = %08b, want 11111111", got[7])
	}
	if got[8]&0x01 != 1 {
		t.Errorf("bit 8 (second byte, LSB) = %08b, want bit 0 set", got[8])
	}
}

func TestBufferiseWriteNumeric(t *testing.T) {
	f := &modbus.Frame{UnitID: 5, FuncCode: modbus.FuncCodeWriteMultipleRegister, Address: 2, Count: 3, Values: []int{1, 15, 0}}
	got, err := Bufferise(f)
	if err != nil {
		t.Fatalf("Bufferise: %v", err)
	}
	want := []byte{0x05, 0x10, 0x00, 0x02, 0x00, 0x03, 0x06, 0x00, 0x01, 0x00, 0x0F, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("Bufferise = % X, want % X", got, want)
	}
}

func TestBufferiseThenDebufferiseRoundTripsRead(t *testing.T) {
	f := &modbus.Frame{UnitID: 7, FuncCode: modbus.FuncCodeReadInputRegisters, Address: 16, Count: 10}
	values := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	// Simulate the field's response body for this frame: echo unit+func,
	// byteCount, then the values themselves.
	body := make([]byte, 3+2*len(values))
	body[0], body[1], body[2] = byte(f.UnitID), byte(f.FuncCode), byte(2*len(values))
	for i, v := range values {
		body[3+2*i] = byte(v >> 8)
		body[4+2*i] = byte(v)
	}

	decoded := Debufferise(f, body)
	if decoded == nil {
		t.Fatalf("Debufferise returned nil")
	}
	if len(decoded.Values) != len(values) {
		t.Fatalf("len(Values) = %d, want %d", len(decoded.Values), len(values))
	}
	for i, v := range values {
		if decoded.Values[i] != v {
			t.Errorf("Values[%d] = %d, want %d", i, decoded.Values[i], v)
		}
	}
}

func TestDebufferiseReadRejectsMismatchedByteCount(t *testing.T) {
	f := &modbus.Frame{UnitID: 1, FuncCode: modbus.FuncCodeReadHoldingRegisters, Address: 0, Count: 2}
	body := []byte{0x01, 0x03, 0x02, 0x00, 0x01} // byteCount says 2 but Count=2 wants 4
	if got := Debufferise(f, body); got != nil {
		t.Errorf("Debufferise = %+v, want nil on byte-count mismatch", got)
	}
}

// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package modbus holds the wire-level constants and the abstract frame
// type the encoder, bufferiser, debufferiser and decoder all pivot on.
package modbus

// Function codes, restricted to the subset this gateway's read/write/
// diagnosis/raw request kinds ever emit.
const (
	FuncCodeReadCoils             = 0x01
	FuncCodeReadDiscreteInputs    = 0x02
	FuncCodeReadHoldingRegisters  = 0x03
	FuncCodeReadInputRegisters    = 0x04
	FuncCodeWriteMultipleCoils    = 0x0F
	FuncCodeWriteMultipleRegister = 0x10
	FuncCodeDiagnostics           = 0x08
)

// MaxPDUSize is the largest bufferised frame (unit id, function code and
// data, excluding CRC) this gateway will build.
const MaxPDUSize = 253

// NullSentinel is the reserved 4-byte response body both the broker and
// the field agent agree signals a failed exchange: no response, a
// zero-length read, or a CRC mismatch.
var NullSentinel = []byte("Null")

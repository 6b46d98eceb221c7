// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package modbus

// Frame is the abstract, function-family-agnostic representation of one
// Modbus ADU the encoder produces and the bufferiser serialises. Which
// fields matter depends on FuncCode: see bufferiser.
type Frame struct {
	UnitID   int
	FuncCode int

	// Address/Count describe the single contiguous range this frame
	// covers, for read/write register and coil functions.
	Address int
	Count   int

	// Values holds the write payload for this frame's range, aligned with
	// Address..Address+Count-1 in order. Addresses records, for a write
	// frame, the source address of each value at the same index.
	Values    []int
	Addresses []int

	// Subfunction/Data carry a diagnosis frame's subfunction code and its
	// (always zero on request) data field.
	Subfunction int
	Data        int

	// Raw carries a modbus (fn=m) frame's payload verbatim, following
	// UnitID.
	Raw []byte
}

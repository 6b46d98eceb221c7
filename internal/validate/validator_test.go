// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package validate

import (
	"testing"

	"github.com/lijinling/modbus-mqtt-gateway/internal/request"
)

func canon(t *testing.T, raw map[string]interface{}) *request.Canonicalized {
	t.Helper()
	c, err := request.Canonicalize(raw)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	return c
}

func TestValidateReadRange(t *testing.T) {
	c := canon(t, map[string]interface{}{"id": 7.0, "fn": "r", "dt": "ni", "rg": []interface{}{16.0, 25.0}})
	got := Validate(c)
	if !got.OK {
		t.Fatalf("Validate = %+v, want ok", got)
	}
}

func TestValidateIDOutOfRange(t *testing.T) {
	c := canon(t, map[string]interface{}{
		"id": 500.0, "fn": "u", "dt": "bo",
		"ls": []interface{}{1.0, 2.0, 3.0, 4.0, 10.0, 11.0},
		"dv": []interface{}{1.0, 0.0, 1.0, 0.0, 1.0, 0.0},
	})
	got := Validate(c)
	if got.OK {
		t.Fatalf("Validate should reject id=500")
	}
	if len(got.AllowedValues) != 0 {
		t.Errorf("AllowedValues = %v, want none for a numeric range error", got.AllowedValues)
	}
}

func TestValidateRangeNotStrictlyAscending(t *testing.T) {
	c := canon(t, map[string]interface{}{"id": 1.0, "fn": "r", "dt": "ni", "rg": []interface{}{5.0, 5.0}})
	if got := Validate(c); got.OK {
		t.Fatalf("Validate should reject rg=[5,5]")
	}
}

func TestValidateListLengthOne(t *testing.T) {
	c := canon(t, map[string]interface{}{"id": 1.0, "fn": "r", "dt": "bi", "ls": []interface{}{3.0}})
	if got := Validate(c); !got.OK {
		t.Fatalf("Validate = %+v, want ok for single-element list", got)
	}
}

func TestValidateWriteRequiresMatchingValueCount(t *testing.T) {
	c := canon(t, map[string]interface{}{
		"id": 9.0, "fn": "u", "dt": "no",
		"ls": []interface{}{1.0, 2.0, 3.0},
		"dv": []interface{}{1.0, 2.0},
	})
	if got := Validate(c); got.OK {
		t.Fatalf("Validate should reject mismatched dv length")
	}
}

func TestValidateRequiresExactlyOneOfRangeOrList(t *testing.T) {
	c := canon(t, map[string]interface{}{"id": 1.0, "fn": "r", "dt": "ni"})
	if got := Validate(c); got.OK {
		t.Fatalf("Validate should reject a read with neither rg nor ls")
	}
}

func TestValidateDiagnosisUnknownSubfunction(t *testing.T) {
	c := canon(t, map[string]interface{}{"id": 1.0, "fn": "d", "sf": "not-a-subfunction"})
	got := Validate(c)
	if got.OK {
		t.Fatalf("Validate should reject an unregistered subfunction")
	}
	if len(got.AllowedValues) == 0 {
		t.Errorf("expected AllowedValues for an enumeration error")
	}
}

func TestValidateDiagnosisOK(t *testing.T) {
	c := canon(t, map[string]interface{}{"id": 22.0, "fn": "d", "sf": "rqdt"})
	if got := Validate(c); !got.OK {
		t.Fatalf("Validate = %+v, want ok", got)
	}
}

func TestValidateModbusRequiresPacket(t *testing.T) {
	c := canon(t, map[string]interface{}{"id": 1.0, "fn": "m"})
	if got := Validate(c); got.OK {
		t.Fatalf("Validate should reject a modbus request with no packet")
	}
}

func TestValidatePreservesVerboseFormat(t *testing.T) {
	c := canon(t, map[string]interface{}{"identifier": 999.0, "function": "read", "datatype": "numeric-input", "range": []interface{}{1.0, 2.0}})
	got := Validate(c)
	if got.OK {
		t.Fatalf("Validate should reject id=999")
	}
	if got.Format != request.Verbose {
		t.Errorf("Format = %v, want Verbose", got.Format)
	}
}

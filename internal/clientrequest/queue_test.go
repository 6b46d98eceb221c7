// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package clientrequest

import (
	"sync"
	"testing"
	"time"

	"github.com/lijinling/modbus-mqtt-gateway/internal/buffer"
	"github.com/lijinling/modbus-mqtt-gateway/internal/encode"
	"github.com/lijinling/modbus-mqtt-gateway/internal/request"
)

// build compiles a canonical request into a *Request the way the gateway
// would, bufferising every frame it encodes.
func build(t *testing.T, clientID, deviceID string, c *request.Canonical) *Request {
	t.Helper()
	frames, err := encode.Encode(c)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	adus := make([][]byte, len(frames))
	for i, f := range frames {
		adu, err := buffer.Bufferise(f)
		if err != nil {
			t.Fatalf("Bufferise: %v", err)
		}
		adus[i] = adu
	}
	canon := &request.Canonicalized{Value: *c, Format: request.Terse, Raw: map[string]interface{}{}}
	return NewRequest(clientID, deviceID, canon, frames, adus)
}

// registerReply builds a read-input-registers (0x04) response body for the
// given unit/address range's worth of values.
func registerReply(unit byte, values []int) []byte {
	body := make([]byte, 3+2*len(values))
	body[0], body[1], body[2] = unit, 0x04, byte(2*len(values))
	for i, v := range values {
		body[3+2*i] = byte(v >> 8)
		body[4+2*i] = byte(v)
	}
	return body
}

func TestQueueSingleADURoundTrip(t *testing.T) {
	var published int
	var mu sync.Mutex
	var responded map[string]interface{}
	done := make(chan struct{})

	var q *Queue
	q = New(
		func(device string, adu []byte) {
			mu.Lock()
			published++
			mu.Unlock()
			go q.RouteResponse(device, registerReply(adu[1], []int{10, 11, 12, 13, 14}))
		},
		func(device string, resp map[string]interface{}) { responded = resp; close(done) },
		time.Second,
	)

	c := &request.Canonical{ID: 1, Fn: request.FunctionRead, Dt: request.DatatypeNumericInput, Range: []int{0, 4}}
	req := build(t, "client-a", "device-1", c)
	if err := q.Enqueue(req); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("response never published")
	}
	mu.Lock()
	if published != 1 {
		t.Fatalf("published %d ADUs, want 1", published)
	}
	mu.Unlock()
	if responded["status"] != true {
		t.Fatalf("status = %v, want true: %+v", responded["status"], responded)
	}
}

func TestQueueDeliversThenFinalizes(t *testing.T) {
	var responded map[string]interface{}
	done := make(chan struct{})

	var q *Queue
	q = New(
		func(device string, adu []byte) {
			go q2(q, device, adu)
		},
		func(device string, resp map[string]interface{}) { responded = resp; close(done) },
		200*time.Millisecond,
	)

	c := &request.Canonical{ID: 2, Fn: request.FunctionRead, Dt: request.DatatypeNumericInput, Range: []int{0, 4}}
	req := build(t, "client-a", "device-2", c)
	if err := q.Enqueue(req); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("response never published")
	}
	if responded["status"] != true {
		t.Fatalf("status = %v, want true: %+v", responded["status"], responded)
	}
}

// q2 simulates the field side answering immediately after a publish, as if
// relayed back in through RouteResponse.
func q2(q *Queue, device string, adu []byte) {
	q.RouteResponse(device, registerReply(adu[1], []int{1, 2, 3, 4, 5}))
}

func TestQueueTimeout(t *testing.T) {
	var responded map[string]interface{}
	done := make(chan struct{})

	q := New(
		func(device string, adu []byte) {}, // never answers
		func(device string, resp map[string]interface{}) { responded = resp; close(done) },
		30*time.Millisecond,
	)

	c := &request.Canonical{ID: 3, Fn: request.FunctionRead, Dt: request.DatatypeNumericInput, Range: []int{0, 4}}
	req := build(t, "client-a", "device-3", c)
	if err := q.Enqueue(req); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout never fired")
	}
	if responded["status"] != false {
		t.Fatalf("status = %v, want false", responded["status"])
	}
	if responded["message"] != "Timed Out" {
		t.Errorf("message = %v, want %q", responded["message"], "Timed Out")
	}
}

// TestQueueLateResponseAfterTimeoutDoesNotMisattribute checks that a reply
// for a request that has already timed out, arriving only after the next
// queued request has received its own reply, is credited to neither
// response and is discarded.
func TestQueueLateResponseAfterTimeoutDoesNotMisattribute(t *testing.T) {
	var mu sync.Mutex
	var calls int
	var seen []map[string]interface{}
	var wg sync.WaitGroup
	wg.Add(2)

	var q *Queue
	q = New(
		func(device string, adu []byte) {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()
			if n == 1 {
				// The first request's own reply shows up long after its
				// timeout has already fired and the lane has moved on.
				go func() {
					time.Sleep(80 * time.Millisecond)
					q.RouteResponse(device, registerReply(adu[1], []int{99, 99, 99, 99, 99}))
				}()
				return
			}
			go q.RouteResponse(device, registerReply(adu[1], []int{1, 2, 3, 4, 5}))
		},
		func(device string, resp map[string]interface{}) {
			mu.Lock()
			seen = append(seen, resp)
			mu.Unlock()
			wg.Done()
		},
		30*time.Millisecond,
	)

	c1 := &request.Canonical{ID: 7, Fn: request.FunctionRead, Dt: request.DatatypeNumericInput, Range: []int{0, 4}}
	c2 := &request.Canonical{ID: 8, Fn: request.FunctionRead, Dt: request.DatatypeNumericInput, Range: []int{0, 4}}
	if err := q.Enqueue(build(t, "client-a", "device-late", c1)); err != nil {
		t.Fatalf("Enqueue req1: %v", err)
	}
	if err := q.Enqueue(build(t, "client-a", "device-late", c2)); err != nil {
		t.Fatalf("Enqueue req2: %v", err)
	}

	waitTimeout(t, &wg, time.Second)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("got %d responses, want 2: %+v", len(seen), seen)
	}
	if seen[0]["status"] != false || seen[0]["message"] != "Timed Out" {
		t.Fatalf("first response = %+v, want the first request's own timeout", seen[0])
	}
	fetched, ok := seen[1]["fetched-data"].([]int)
	if seen[1]["status"] != true || !ok || len(fetched) != 5 || fetched[0] != 1 {
		t.Fatalf("second response = %+v, want its own [1 2 3 4 5] reply, not the first request's late one", seen[1])
	}

	// Give the first request's late reply time to arrive; it must be
	// discarded rather than wedging the lane or reaching either response.
	time.Sleep(100 * time.Millisecond)
}

func TestQueueDevicesDoNotCrossTalk(t *testing.T) {
	var mu sync.Mutex
	responses := map[string]map[string]interface{}{}
	var wg sync.WaitGroup
	wg.Add(2)

	var q *Queue
	q = New(
		func(device string, adu []byte) {
			go q.RouteResponse(device, registerReply(adu[1], []int{1, 2, 3, 4, 5}))
		},
		func(device string, resp map[string]interface{}) {
			mu.Lock()
			responses[device] = resp
			mu.Unlock()
			wg.Done()
		},
		200*time.Millisecond,
	)

	c1 := &request.Canonical{ID: 4, Fn: request.FunctionRead, Dt: request.DatatypeNumericInput, Range: []int{0, 4}}
	c2 := &request.Canonical{ID: 5, Fn: request.FunctionRead, Dt: request.DatatypeNumericInput, Range: []int{0, 4}}
	if err := q.Enqueue(build(t, "client-a", "device-x", c1)); err != nil {
		t.Fatalf("Enqueue device-x: %v", err)
	}
	if err := q.Enqueue(build(t, "client-a", "device-y", c2)); err != nil {
		t.Fatalf("Enqueue device-y: %v", err)
	}

	waitTimeout(t, &wg, time.Second)

	mu.Lock()
	defer mu.Unlock()
	if responses["device-x"]["status"] != true || responses["device-y"]["status"] != true {
		t.Fatalf("unexpected responses: %+v", responses)
	}
}

func TestQueueEnqueueRejectsWhenFull(t *testing.T) {
	q := New(
		func(device string, adu []byte) {}, // never answers, so the lane worker blocks forever on the first item
		func(device string, resp map[string]interface{}) {},
		time.Hour,
	)
	c := &request.Canonical{ID: 6, Fn: request.FunctionRead, Dt: request.DatatypeNumericInput, Range: []int{0, 4}}

	// First request occupies the worker (its publish never answers, so the
	// lane blocks in drive() for the full hour-long timeout). Give the
	// worker goroutine a moment to dequeue it before filling the buffer, so
	// the capacity check below isn't racing the dequeue.
	if err := q.Enqueue(build(t, "client-a", "device-full", c)); err != nil {
		t.Fatalf("Enqueue seed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	for i := 0; i < MaxQueueSize; i++ {
		if err := q.Enqueue(build(t, "client-a", "device-full", c)); err != nil {
			t.Fatalf("Enqueue #%d: %v", i, err)
		}
	}
	if err := q.Enqueue(build(t, "client-a", "device-full", c)); err != ErrQueueFull {
		t.Fatalf("Enqueue overflow: got %v, want ErrQueueFull", err)
	}
}

func waitTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("timed out waiting for responses")
	}
}

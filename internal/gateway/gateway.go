// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package gateway wires broker-side inbound events to the validator,
// formatter, encoder, per-device queue and response publisher, per
// §4.9. It builds the response and mbnet topic names it publishes on; every
// component underneath it speaks canonical requests, frames and ADUs.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lijinling/modbus-mqtt-gateway/internal/buffer"
	"github.com/lijinling/modbus-mqtt-gateway/internal/clientrequest"
	"github.com/lijinling/modbus-mqtt-gateway/internal/encode"
	"github.com/lijinling/modbus-mqtt-gateway/internal/modbus"
	"github.com/lijinling/modbus-mqtt-gateway/internal/request"
	"github.com/lijinling/modbus-mqtt-gateway/internal/validate"
)

// Publisher is everything the gateway needs from the broker adapter: JSON
// responses on .../response and binary ADUs on .../mbnet. Implemented by
// internal/broker.Adapter; a fake satisfies it in tests.
type Publisher interface {
	PublishJSON(topic string, v map[string]interface{}) error
	PublishBinary(topic string, payload []byte) error
}

// Gateway binds one Publisher to one per-device request queue.
type Gateway struct {
	pub Publisher

	queue *clientrequest.Queue

	mu       sync.Mutex
	pending  map[string][]string // deviceID -> FIFO of clientIDs awaiting a response
}

// New constructs a Gateway. timeout is the per-ADU wait passed to the
// queue; zero selects clientrequest.DefaultTimeout.
func New(pub Publisher, timeout time.Duration) *Gateway {
	g := &Gateway{
		pub:     pub,
		pending: map[string][]string{},
	}
	g.queue = clientrequest.New(g.publishADU, g.publishResponse, timeout)
	return g
}

// HandleRequest processes one inbound payload on <client>/<device>/request:
// parse JSON, validate, and either enqueue a compiled Request or publish a
// validator failure directly. It never returns an error to the caller --
// every outcome funnels through the single response-publish step, per §7.
func (g *Gateway) HandleRequest(clientID, deviceID string, payload []byte) {
	var raw map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		slog.Warn("gateway: malformed request JSON", "client", clientID, "device", deviceID, "error", err)
		g.publish(clientID, deviceID, map[string]interface{}{
			"status":  false,
			"message": "malformed JSON request",
		})
		return
	}

	canon, err := request.Canonicalize(raw)
	if err != nil {
		slog.Warn("gateway: could not detect request format", "client", clientID, "device", deviceID, "error", err)
		g.publish(clientID, deviceID, map[string]interface{}{
			"status":  false,
			"message": err.Error(),
		})
		return
	}

	result := validate.Validate(canon)
	if !result.OK {
		resp := map[string]interface{}{"status": false, "message": result.Message}
		if len(result.AllowedValues) > 0 {
			resp["allowed-values"] = result.AllowedValues
		}
		g.publish(clientID, deviceID, request.ProjectFormat(resp, raw, result.Format))
		return
	}

	frames, err := encode.Encode(&canon.Value)
	if err != nil {
		if errors.Is(err, encode.ErrFrameTooLarge) {
			slog.Warn("gateway: request rejected, exceeds max PDU size", "client", clientID, "device", deviceID, "error", err)
			g.publish(clientID, deviceID, request.ProjectFormat(map[string]interface{}{
				"status":  false,
				"message": fmt.Sprintf("request spans too many addresses for a single frame (max %d bytes)", modbus.MaxPDUSize),
			}, raw, canon.Format))
			return
		}
		slog.Error("gateway: encode failed on a validated request", "client", clientID, "device", deviceID, "error", err)
		g.publish(clientID, deviceID, map[string]interface{}{"status": false, "message": "internal encoding error"})
		return
	}

	adus := make([][]byte, len(frames))
	for i, f := range frames {
		adu, err := buffer.Bufferise(f)
		if err != nil {
			slog.Error("gateway: bufferise failed on a validated request", "client", clientID, "device", deviceID, "error", err)
			g.publish(clientID, deviceID, map[string]interface{}{"status": false, "message": "internal encoding error"})
			return
		}
		adus[i] = adu
	}

	req := clientrequest.NewRequest(clientID, deviceID, canon, frames, adus)

	g.mu.Lock()
	g.pending[deviceID] = append(g.pending[deviceID], clientID)
	g.mu.Unlock()

	if err := g.queue.Enqueue(req); err != nil {
		g.mu.Lock()
		g.pending[deviceID] = g.pending[deviceID][:len(g.pending[deviceID])-1]
		g.mu.Unlock()
		slog.Warn("gateway: admission refused", "client", clientID, "device", deviceID, "error", err)
		g.publish(clientID, deviceID, request.ProjectFormat(map[string]interface{}{
			"status":  false,
			"message": "Queue Full",
		}, raw, canon.Format))
		return
	}
}

// HandleMbnet processes an inbound field-originated payload on
// <?>/<device>/mbnet: strips the tag byte and routes the body to the
// in-flight request for that device. The client segment of a field-origin
// topic carries no meaning (the field agent is not a gateway client) and
// is ignored.
func (g *Gateway) HandleMbnet(deviceID string, payload []byte) {
	if len(payload) < 1 {
		return
	}
	body := payload[1:]
	g.queue.RouteResponse(deviceID, body)
}

// publishADU is the queue's Publish callback: forward a broker-tagged ADU
// to the field on <client>/<device>/mbnet, using the client that owns the
// currently in-flight request for this device.
func (g *Gateway) publishADU(deviceID string, taggedADU []byte) {
	clientID := g.currentClient(deviceID)
	topic := fmt.Sprintf("%s/%s/mbnet", clientID, deviceID)
	if err := g.pub.PublishBinary(topic, taggedADU); err != nil {
		slog.Error("gateway: publish ADU failed", "topic", topic, "error", err)
	}
}

// publishResponse is the queue's Respond callback: publish the finished
// response and retire the client that owned it.
func (g *Gateway) publishResponse(deviceID string, response map[string]interface{}) {
	clientID := g.popClient(deviceID)
	g.publish(clientID, deviceID, response)
}

func (g *Gateway) publish(clientID, deviceID string, response map[string]interface{}) {
	topic := fmt.Sprintf("%s/%s/response", clientID, deviceID)
	if err := g.pub.PublishJSON(topic, response); err != nil {
		slog.Error("gateway: publish response failed", "topic", topic, "error", err)
	}
}

// currentClient returns the client owning the oldest pending request on
// deviceID's lane without removing it -- publishADU may fire more than
// once per request (one per ADU) before the matching publishResponse pops it.
func (g *Gateway) currentClient(deviceID string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	q := g.pending[deviceID]
	if len(q) == 0 {
		return ""
	}
	return q[0]
}

func (g *Gateway) popClient(deviceID string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	q := g.pending[deviceID]
	if len(q) == 0 {
		return ""
	}
	clientID := q[0]
	g.pending[deviceID] = q[1:]
	return clientID
}

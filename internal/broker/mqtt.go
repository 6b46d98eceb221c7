// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package broker is the broker-side MQTT adapter: it is the one piece of
// this gateway that talks to the opaque pub/sub substrate described in
// spec §1, exposing the onMessage/publish contract of §6 to
// internal/gateway and translating its two outbound kinds -- JSON
// responses and tagged binary ADUs -- into MQTT publishes.
package broker

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Dispatcher receives onMessage events, already split into their topic
// parts. Implemented by *gateway.Gateway.
type Dispatcher interface {
	HandleRequest(clientID, deviceID string, payload []byte)
	HandleMbnet(deviceID string, payload []byte)
}

// Adapter is the broker's MQTT connection: it subscribes to every client's
// request and mbnet topics and forwards parsed events to a Dispatcher.
type Adapter struct {
	client mqtt.Client
	disp   Dispatcher
}

// Dial connects to brokerURL and subscribes +/+/request and +/+/mbnet,
// forwarding parsed events to disp. clientID here is the broker process's
// own MQTT client id, distinct from the per-request client field in the
// topic path.
func Dial(brokerURL, clientID, username, password string, disp Dispatcher) (*Adapter, error) {
	a := &Adapter{disp: disp}

	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOrderMatters(true)
	if username != "" {
		opts.SetUsername(username)
		opts.SetPassword(password)
	}
	opts.SetOnConnectHandler(a.onConnect)

	a.client = mqtt.NewClient(opts)
	token := a.client.Connect()
	if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		return nil, fmt.Errorf("broker: mqtt connect: %w", token.Error())
	}
	return a, nil
}

func (a *Adapter) onConnect(c mqtt.Client) {
	subs := map[string]mqtt.MessageHandler{
		"+/+/request": a.onRequest,
		"+/+/mbnet":   a.onMbnet,
	}
	for topic, handler := range subs {
		token := c.Subscribe(topic, 1, handler)
		if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
			slog.Error("broker: subscribe failed", "topic", topic, "error", token.Error())
		}
	}
}

func (a *Adapter) onRequest(_ mqtt.Client, msg mqtt.Message) {
	clientID, deviceID, ok := splitTopic(msg.Topic(), "request")
	if !ok {
		return
	}
	a.disp.HandleRequest(clientID, deviceID, msg.Payload())
}

func (a *Adapter) onMbnet(_ mqtt.Client, msg mqtt.Message) {
	_, deviceID, ok := splitTopic(msg.Topic(), "mbnet")
	if !ok {
		return
	}
	// Field-origin messages carry tag 0x01; broker-origin messages the
	// broker itself just published are echoed back by the broker too, and
	// must be ignored rather than re-routed as a reply.
	if len(msg.Payload()) < 1 || msg.Payload()[0] != 0x01 {
		return
	}
	a.disp.HandleMbnet(deviceID, msg.Payload())
}

// PublishJSON implements gateway.Publisher.
func (a *Adapter) PublishJSON(topic string, v map[string]interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("broker: marshal response: %w", err)
	}
	token := a.client.Publish(topic, 1, false, body)
	token.Wait()
	return token.Error()
}

// PublishBinary implements gateway.Publisher.
func (a *Adapter) PublishBinary(topic string, payload []byte) error {
	token := a.client.Publish(topic, 1, false, payload)
	token.Wait()
	return token.Error()
}

// Close disconnects cleanly.
func (a *Adapter) Close() {
	a.client.Disconnect(250)
}

// splitTopic splits "<client>/<device>/<suffix>" and verifies the suffix,
// per the topic shapes of §6.
func splitTopic(topic, wantSuffix string) (clientID, deviceID string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[2] != wantSuffix {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package fieldagent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Link is the field agent's MQTT connection to the broker: a wildcard
// mbnet subscription for one device (the client segment varies per
// requester, per §6), driving Agent.HandleMbnet and republishing each
// reply on the exact topic its request arrived on.
type Link struct {
	client    mqtt.Client
	agent     *Agent
	subscribe string // +/<device>/mbnet
}

// Dial connects to brokerURL and wires agent to every client's mbnet topic
// for deviceID.
func Dial(brokerURL, clientID, username, password, deviceID string, agent *Agent) (*Link, error) {
	l := &Link{agent: agent, subscribe: fmt.Sprintf("+/%s/mbnet", deviceID)}

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
	opts.SetOnConnectHandler(l.onConnect)

	l.client = mqtt.NewClient(opts)
	token := l.client.Connect()
	if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		return nil, fmt.Errorf("fieldagent: mqtt connect: %w", token.Error())
	}
	return l, nil
}

func (l *Link) onConnect(c mqtt.Client) {
	token := c.Subscribe(l.subscribe, 1, l.onMessage)
	if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		slog.Error("fieldagent: subscribe failed", "topic", l.subscribe, "error", token.Error())
	}
}

// onMessage republishes the agent's reply on the same topic the request
// arrived on, so the client segment (which the broker varies per §4.9's
// currentClient lookup) round-trips back to the right requester.
func (l *Link) onMessage(c mqtt.Client, msg mqtt.Message) {
	reply := l.agent.HandleMbnet(context.Background(), msg.Payload())
	if reply == nil {
		return
	}
	topic := msg.Topic()
	if token := c.Publish(topic, 1, false, reply); token.Wait() && token.Error() != nil {
		slog.Error("fieldagent: publish failed", "topic", topic, "error", token.Error())
	}
}

// Close disconnects cleanly, closing the underlying serial port too.
func (l *Link) Close() {
	l.client.Disconnect(250)
	l.agent.Port.Close()
}

// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Command gatewayd runs the broker half of the gateway: it connects to
// the MQTT broker, validates and compiles inbound client requests, and
// serialises device access through a per-device queue.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/lijinling/modbus-mqtt-gateway/internal/broker"
	"github.com/lijinling/modbus-mqtt-gateway/internal/config"
	"github.com/lijinling/modbus-mqtt-gateway/internal/gateway"
)

func main() {
	fs := pflag.NewFlagSet("gatewayd", pflag.ExitOnError)
	configFile := fs.String("config", "", "path to config file")
	brokerURL := fs.String("broker", "", "MQTT broker URL, e.g. tcp://localhost:1883")
	fs.Parse(os.Args[1:])

	cfg, err := config.LoadBrokerConfig(*configFile, fs)
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *brokerURL != "" {
		cfg.MQTT.BrokerURL = *brokerURL
	}

	setupLogger(cfg.Log)
	slog.Info("starting modbus gateway broker", "devices", cfg.Devices)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var adapter *broker.Adapter
	gw := gateway.New(gatewayPublisher(&adapter), cfg.Queue.RequestTimeout)

	adapter, err = broker.Dial(cfg.MQTT.BrokerURL, cfg.MQTT.ClientID, cfg.MQTT.Username, cfg.MQTT.Password, gw)
	if err != nil {
		slog.Error("failed to connect to broker", "error", err)
		os.Exit(1)
	}
	defer adapter.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
	slog.Info("shutting down")
}

// gatewayPublisher defers to an *broker.Adapter constructed after the
// Gateway itself, since broker.Dial needs the Gateway as its Dispatcher
// and gateway.New needs a Publisher: the indirection breaks the cycle.
func gatewayPublisher(adapter **broker.Adapter) gateway.Publisher {
	return publisherFunc{adapter}
}

type publisherFunc struct {
	adapter **broker.Adapter
}

func (p publisherFunc) PublishJSON(topic string, v map[string]interface{}) error {
	return (*p.adapter).PublishJSON(topic, v)
}

func (p publisherFunc) PublishBinary(topic string, payload []byte) error {
	return (*p.adapter).PublishBinary(topic, payload)
}

func setupLogger(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Printf("failed to open log file, falling back to stdout: %v\n", err)
			handler = slog.NewTextHandler(os.Stdout, opts)
		} else {
			handler = slog.NewTextHandler(f, opts)
		}
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Command fieldagentd runs the physical-side half of the gateway for one
// device: it owns the RS-485 UART and relays tagged RTU exchanges to and
// from the broker over MQTT.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/lijinling/modbus-mqtt-gateway/internal/config"
	"github.com/lijinling/modbus-mqtt-gateway/internal/fieldagent"
)

func main() {
	fs := pflag.NewFlagSet("fieldagentd", pflag.ExitOnError)
	configFile := fs.String("config", "", "path to config file")
	device := fs.String("device", "", "device id this agent serves")
	fs.Parse(os.Args[1:])

	cfg, err := config.LoadFieldAgentConfig(*configFile, fs)
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *device != "" {
		cfg.Device = *device
	}

	setupLogger(cfg.Log)
	slog.Info("starting modbus field agent", "device", cfg.Device, "serial", cfg.Serial.Address)

	agent := fieldagent.NewAgent(
		cfg.Serial.Address,
		cfg.Serial.BaudRate,
		cfg.Serial.DataBits,
		cfg.Serial.StopBits,
		cfg.Serial.Parity,
	)

	link, err := fieldagent.Dial(cfg.MQTT.BrokerURL, cfg.MQTT.ClientID, cfg.MQTT.Username, cfg.MQTT.Password, cfg.Device, agent)
	if err != nil {
		slog.Error("failed to connect to broker", "error", err)
		os.Exit(1)
	}
	defer link.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
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

// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package config loads the broker-side and field-agent-side YAML
// configuration files through viper, with pflag command-line overrides,
// following the same loader pattern as the teacher's internal/config.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BrokerConfig is the broker half's top-level configuration: the MQTT
// connection it uses to talk to clients and field agents, the set of
// devices it serves, and its per-device queue timeout.
type BrokerConfig struct {
	MQTT    MQTTConfig   `mapstructure:"mqtt"`
	Devices []string     `mapstructure:"devices"`
	Queue   QueueConfig  `mapstructure:"queue"`
	Log     LogConfig    `mapstructure:"log"`
}

// MQTTConfig describes how to reach the broker.
type MQTTConfig struct {
	BrokerURL string `mapstructure:"broker_url"`
	ClientID  string `mapstructure:"client_id"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
}

// QueueConfig tunes the per-device request queue.
type QueueConfig struct {
	// RequestTimeout is the per-ADU wait (§5: 3000ms default, 15000ms
	// upper bound). Zero selects clientrequest.DefaultTimeout.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LogConfig mirrors the teacher's log configuration verbatim: level and
// an optional file path, defaulting to stdout.
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`
}

const maxRequestTimeout = 15 * time.Second

// LoadBrokerConfig loads a BrokerConfig from configFile (or the default
// search path if empty), applying any pflag overrides bound on fs.
func LoadBrokerConfig(configFile string, fs *pflag.FlagSet) (*BrokerConfig, error) {
	v := newViper(configFile)

	v.SetDefault("mqtt.client_id", "modbus-gateway-broker")
	v.SetDefault("queue.request_timeout", 3*time.Second)
	v.SetDefault("log.level", "info")

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("config: bind flags: %w", err)
		}
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg BrokerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal broker config: %w", err)
	}
	if cfg.Queue.RequestTimeout <= 0 {
		cfg.Queue.RequestTimeout = 3 * time.Second
	}
	if cfg.Queue.RequestTimeout > maxRequestTimeout {
		cfg.Queue.RequestTimeout = maxRequestTimeout
	}
	return &cfg, nil
}

// FieldAgentConfig is the field-side half's configuration: UART framing
// and the MQTT link back to the broker, one agent per physical device.
type FieldAgentConfig struct {
	MQTT   MQTTConfig    `mapstructure:"mqtt"`
	Device string        `mapstructure:"device"`
	Serial SerialConfig  `mapstructure:"serial"`
	Log    LogConfig     `mapstructure:"log"`
}

// SerialConfig describes the physical UART, following the teacher's
// SerialConfig field set (address/baud/framing; RS-485 is implicit in
// this gateway's half-duplex Exchange, not separately toggled).
type SerialConfig struct {
	Address  string `mapstructure:"address"`
	BaudRate int    `mapstructure:"baud_rate"`
	DataBits int    `mapstructure:"data_bits"`
	StopBits int    `mapstructure:"stop_bits"`
	Parity   string `mapstructure:"parity"` // "N", "E", "O"
}

// LoadFieldAgentConfig loads a FieldAgentConfig the same way LoadBrokerConfig
// does, with field-agent-appropriate defaults.
func LoadFieldAgentConfig(configFile string, fs *pflag.FlagSet) (*FieldAgentConfig, error) {
	v := newViper(configFile)

	v.SetDefault("serial.baud_rate", 9600)
	v.SetDefault("serial.data_bits", 8)
	v.SetDefault("serial.stop_bits", 1)
	v.SetDefault("serial.parity", "N")
	v.SetDefault("log.level", "info")

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("config: bind flags: %w", err)
		}
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg FieldAgentConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal field agent config: %w", err)
	}
	cfg.Serial.Parity = strings.ToUpper(cfg.Serial.Parity)
	return &cfg, nil
}

func newViper(configFile string) *viper.Viper {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/modbusgw/")
		v.AddConfigPath("$HOME/.modbusgw")
		v.AddConfigPath(".")
	}
	return v
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return fmt.Errorf("config: no config file found: %w", err)
		}
		return fmt.Errorf("config: read config file: %w", err)
	}
	return nil
}

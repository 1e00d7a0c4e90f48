// Copyright (c) 2026 Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/relabs-tech/latency_tester/internal/latency"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string
	MQTTClientIDTester  string
	MQTTClientIDConsole string
	TopicSamples        string
	TopicSessions       string

	// Web server
	WebServerPort int

	// Hardware
	I2CBus     string
	ADCI2CAddr uint16
	ADCChannel     int
	ClickPin       string
	ButtonPin      string
	MouseSensePin  string
	LEDPin         string
	HIDSerialPort  string
	HIDBaudRate    int

	// Light thresholds (10-bit sensor units). Light must sit strictly
	// above Dark; the band between them is the hysteresis dead zone.
	LightThreshold uint16
	DarkThreshold  uint16
	// SensorErrorMax is the highest boot-time reading accepted by the
	// self-test; above it the sensor is saturated or miswired.
	SensorErrorMax uint16

	// Timing (milliseconds unless noted)
	MeasureTimeoutMS    int
	BaselineTimeoutMS   int
	StableDarkMS        int
	SyncSettleMS        int
	SyncVerifyTimeoutMS int
	ClickPulseUS        int
	InterRunDelayMS     int
	InterRunJitterMS    int
	PollTestWindowMS    int
	ButtonDebounceMS    int

	// Button hold thresholds, strictly nested: Reset > Debug > Select >
	// Indicate.
	HoldIndicateMS int
	HoldSelectMS   int
	HoldDebugMS    int
	HoldResetMS    int

	// Display
	FooterTag string
}

// Package-level unexported variables for the singleton pattern: external
// code must use InitGlobal() to set and Get() to read, which keeps all
// access behind the RWMutex.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := &Config{}
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setIntKey(dst *int, key, value string, min, max int) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < min || v > max {
		return fmt.Errorf("%s must be %d-%d, got %d", key, min, max, v)
	}
	*dst = v
	return nil
}

func setUint16Key(dst *uint16, key, value string) error {
	v, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = uint16(v)
	return nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_TESTER":
		c.MQTTClientIDTester = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "TOPIC_SAMPLES":
		c.TopicSamples = value
	case "TOPIC_SESSIONS":
		c.TopicSessions = value

	// Web server
	case "WEB_SERVER_PORT":
		return setIntKey(&c.WebServerPort, key, value, 1, 65535)

	// Hardware
	case "I2C_BUS":
		c.I2CBus = value
	case "ADC_I2C_ADDR":
		return setUint16Key(&c.ADCI2CAddr, key, value)
	case "ADC_CHANNEL":
		return setIntKey(&c.ADCChannel, key, value, 0, 3)
	case "CLICK_PIN":
		c.ClickPin = value
	case "BUTTON_PIN":
		c.ButtonPin = value
	case "MOUSE_SENSE_PIN":
		c.MouseSensePin = value
	case "LED_PIN":
		c.LEDPin = value
	case "HID_SERIAL_PORT":
		c.HIDSerialPort = value
	case "HID_BAUD_RATE":
		return setIntKey(&c.HIDBaudRate, key, value, 300, 4000000)

	// Thresholds
	case "LIGHT_THRESHOLD":
		return setUint16Key(&c.LightThreshold, key, value)
	case "DARK_THRESHOLD":
		return setUint16Key(&c.DarkThreshold, key, value)
	case "SENSOR_ERROR_MAX":
		return setUint16Key(&c.SensorErrorMax, key, value)

	// Timing
	case "MEASURE_TIMEOUT_MS":
		return setIntKey(&c.MeasureTimeoutMS, key, value, 1, 60000)
	case "BASELINE_TIMEOUT_MS":
		return setIntKey(&c.BaselineTimeoutMS, key, value, 1, 60000)
	case "STABLE_DARK_MS":
		return setIntKey(&c.StableDarkMS, key, value, 1, 10000)
	case "SYNC_SETTLE_MS":
		return setIntKey(&c.SyncSettleMS, key, value, 1, 10000)
	case "SYNC_VERIFY_TIMEOUT_MS":
		return setIntKey(&c.SyncVerifyTimeoutMS, key, value, 1, 60000)
	case "CLICK_PULSE_US":
		return setIntKey(&c.ClickPulseUS, key, value, 1, 100000)
	case "INTER_RUN_DELAY_MS":
		return setIntKey(&c.InterRunDelayMS, key, value, 0, 60000)
	case "INTER_RUN_JITTER_MS":
		return setIntKey(&c.InterRunJitterMS, key, value, 0, 60000)
	case "POLL_TEST_WINDOW_MS":
		return setIntKey(&c.PollTestWindowMS, key, value, 10, 60000)
	case "BUTTON_DEBOUNCE_MS":
		return setIntKey(&c.ButtonDebounceMS, key, value, 1, 1000)

	// Hold thresholds
	case "HOLD_INDICATE_MS":
		return setIntKey(&c.HoldIndicateMS, key, value, 1, 60000)
	case "HOLD_SELECT_MS":
		return setIntKey(&c.HoldSelectMS, key, value, 1, 60000)
	case "HOLD_DEBUG_MS":
		return setIntKey(&c.HoldDebugMS, key, value, 1, 60000)
	case "HOLD_RESET_MS":
		return setIntKey(&c.HoldResetMS, key, value, 1, 60000)

	// Display
	case "FOOTER_TAG":
		c.FooterTag = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set and consistent.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.ClickPin == "" {
		return fmt.Errorf("CLICK_PIN is required")
	}
	if c.ButtonPin == "" {
		return fmt.Errorf("BUTTON_PIN is required")
	}
	if c.LightThreshold == 0 || c.DarkThreshold == 0 {
		return fmt.Errorf("LIGHT_THRESHOLD and DARK_THRESHOLD are required")
	}
	if c.LightThreshold <= c.DarkThreshold {
		return fmt.Errorf("LIGHT_THRESHOLD (%d) must be above DARK_THRESHOLD (%d): the gap is the hysteresis band",
			c.LightThreshold, c.DarkThreshold)
	}
	if !c.holdThresholds().Valid() {
		return fmt.Errorf("hold thresholds must nest: HOLD_RESET_MS > HOLD_DEBUG_MS > HOLD_SELECT_MS > HOLD_INDICATE_MS")
	}
	return nil
}

func (c *Config) holdThresholds() latency.HoldThresholds {
	ms := func(v, def int) time.Duration {
		if v == 0 {
			v = def
		}
		return time.Duration(v) * time.Millisecond
	}
	return latency.HoldThresholds{
		Indicate: ms(c.HoldIndicateMS, 300),
		Select:   ms(c.HoldSelectMS, 2000),
		Debug:    ms(c.HoldDebugMS, 5000),
		Reset:    ms(c.HoldResetMS, 8000),
	}
}

// Params maps the file values onto the engine tunables; unset keys fall
// through to the engine defaults.
func (c *Config) Params() latency.Params {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	return latency.Params{
		Thresholds:      latency.Thresholds{Light: c.LightThreshold, Dark: c.DarkThreshold},
		Holds:           c.holdThresholds(),
		MeasureTimeout:  ms(c.MeasureTimeoutMS),
		BaselineTimeout: ms(c.BaselineTimeoutMS),
		StableDark:      ms(c.StableDarkMS),
		SettleDelay:     ms(c.SyncSettleMS),
		VerifyTimeout:   ms(c.SyncVerifyTimeoutMS),
		PulseWidth:      time.Duration(c.ClickPulseUS) * time.Microsecond,
		InterRunDelay:   ms(c.InterRunDelayMS),
		InterRunJitter:  ms(c.InterRunJitterMS),
		PollTestWindow:  ms(c.PollTestWindowMS),
	}
}

// InitGlobal initializes the global configuration from file. sync.Once
// guarantees it only runs once even if several entry points call it.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance. InitGlobal must be called
// first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

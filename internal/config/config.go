// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Sensor init policies.
const (
	InitPolicyContinue = "continue" // log a failed health check and keep the slot
	InitPolicyAbort    = "abort"    // stop setup on the first failed health check
)

// MaxChannel is the highest multiplexer channel id.
const MaxChannel = 7

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker          string // host or IP, no scheme
	MQTTPort            int
	MQTTTopic           string
	MQTTClientIDPrefix  string // a random hex suffix is appended on every connect attempt
	MQTTClientIDConsole string
	MQTTClientIDWeb     string
	MQTTConnectTimeout  int // milliseconds

	// Network link
	NetInterface    string // empty disables the link wait
	NetPollInterval int    // milliseconds

	// I2C bus discovery
	BusCandidatePins []string // gpioreg names, probed in order
	BusPinLabels     []string // board labels printed for the discovered pair
	BusSpeedKHz      int
	BusRetryDelay    int // milliseconds between full discovery scans
	MuxAddr          uint16
	IMUAddr          uint16

	// Sensor slots
	ChannelStart int
	ChannelEnd   int

	// IMU Sensor Ranges
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte
	// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
	IMUGyroRange byte

	CalibrationSamples  int
	SensorInitPolicy    string
	StrictChannelSelect bool

	// Timing
	CycleDelay     int // milliseconds
	ReconnectDelay int // milliseconds
	SetupSettle    int // milliseconds

	// Logging
	LogLevel      string
	LogSerialPort string // empty disables the serial mirror
	LogSerialBaud int

	// Metrics / web
	MetricsAddr   string // empty disables /metrics
	WebServerPort int
}

// Default returns the compiled-in configuration of the glove.
func Default() *Config {
	return &Config{
		MQTTBroker:          "192.168.226.69",
		MQTTPort:            1883,
		MQTTTopic:           "sensor/mpu6050",
		MQTTClientIDPrefix:  "ESP8266Client-",
		MQTTClientIDConsole: "glove-console-subscriber",
		MQTTClientIDWeb:     "glove-web-subscriber",
		MQTTConnectTimeout:  3000,

		NetPollInterval: 500,

		BusCandidatePins: []string{"GPIO16", "GPIO5", "GPIO4", "GPIO0", "GPIO2", "GPIO14", "GPIO12", "GPIO13"},
		BusPinLabels:     []string{"D0", "D1", "D2", "D3", "D4", "D5", "D6", "D7"},
		BusSpeedKHz:      100,
		MuxAddr:          0x70,
		IMUAddr:          0x68,

		ChannelStart: 2,
		ChannelEnd:   6,

		IMUAccelRange: 1,
		IMUGyroRange:  2,

		CalibrationSamples: 100,
		SensorInitPolicy:   InitPolicyContinue,

		CycleDelay:     25,
		ReconnectDelay: 5000,
		SetupSettle:    2500,

		LogLevel:      "info",
		LogSerialBaud: 460800,

		WebServerPort: 8080,
	}
}

// Load reads the configuration file on top of the compiled-in defaults.
// An empty path returns the defaults unchanged.
func Load(configPath string) (*Config, error) {
	cfg := Default()
	if configPath == "" {
		return cfg, nil
	}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_PORT":
		c.MQTTPort, err = parseIntRange(key, value, 1, 65535)
	case "MQTT_TOPIC":
		c.MQTTTopic = value
	case "MQTT_CLIENT_ID_PREFIX":
		c.MQTTClientIDPrefix = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CONNECT_TIMEOUT":
		c.MQTTConnectTimeout, err = parseIntRange(key, value, 1, 600000)

	// Network link
	case "NET_INTERFACE":
		c.NetInterface = value
	case "NET_POLL_INTERVAL":
		c.NetPollInterval, err = parseIntRange(key, value, 1, 600000)

	// I2C bus
	case "BUS_CANDIDATE_PINS":
		c.BusCandidatePins = splitList(value)
	case "BUS_PIN_LABELS":
		c.BusPinLabels = splitList(value)
	case "BUS_SPEED_KHZ":
		c.BusSpeedKHz, err = parseIntRange(key, value, 1, 3400)
	case "BUS_RETRY_DELAY":
		c.BusRetryDelay, err = parseIntRange(key, value, 0, 600000)
	case "MUX_I2C_ADDR":
		c.MuxAddr, err = parseAddr(key, value)
	case "IMU_I2C_ADDR":
		c.IMUAddr, err = parseAddr(key, value)

	// Sensor slots
	case "CHANNEL_START":
		c.ChannelStart, err = parseIntRange(key, value, 0, MaxChannel)
	case "CHANNEL_END":
		c.ChannelEnd, err = parseIntRange(key, value, 0, MaxChannel)

	// IMU Sensor Ranges
	case "IMU_ACCEL_RANGE":
		var rangeVal int
		rangeVal, err = strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_ACCEL_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", rangeVal)
		}
		c.IMUAccelRange = byte(rangeVal)
	case "IMU_GYRO_RANGE":
		var rangeVal int
		rangeVal, err = strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_GYRO_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_GYRO_RANGE must be 0-3 (0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s), got %d", rangeVal)
		}
		c.IMUGyroRange = byte(rangeVal)

	case "CALIBRATION_SAMPLES":
		c.CalibrationSamples, err = parseIntRange(key, value, 1, 100000)
	case "SENSOR_INIT_POLICY":
		if value != InitPolicyContinue && value != InitPolicyAbort {
			return fmt.Errorf("SENSOR_INIT_POLICY must be %q or %q, got %q", InitPolicyContinue, InitPolicyAbort, value)
		}
		c.SensorInitPolicy = value
	case "STRICT_CHANNEL_SELECT":
		c.StrictChannelSelect, err = strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid STRICT_CHANNEL_SELECT %q: %w", value, err)
		}

	// Timing
	case "CYCLE_DELAY":
		c.CycleDelay, err = parseIntRange(key, value, 0, 600000)
	case "RECONNECT_DELAY":
		c.ReconnectDelay, err = parseIntRange(key, value, 0, 600000)
	case "SETUP_SETTLE":
		c.SetupSettle, err = parseIntRange(key, value, 0, 600000)

	// Logging
	case "LOG_LEVEL":
		c.LogLevel = value
	case "LOG_SERIAL_PORT":
		c.LogSerialPort = value
	case "LOG_SERIAL_BAUD":
		c.LogSerialBaud, err = parseIntRange(key, value, 50, 4000000)

	// Metrics / web
	case "METRICS_ADDR":
		c.MetricsAddr = value
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseIntRange(key, value, 1, 65535)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.MQTTTopic == "" {
		return fmt.Errorf("MQTT_TOPIC is required")
	}
	if c.ChannelStart > c.ChannelEnd {
		return fmt.Errorf("CHANNEL_START (%d) must not exceed CHANNEL_END (%d)", c.ChannelStart, c.ChannelEnd)
	}
	if len(c.BusCandidatePins) < 2 {
		return fmt.Errorf("BUS_CANDIDATE_PINS needs at least two pins, got %d", len(c.BusCandidatePins))
	}
	seen := make(map[string]bool, len(c.BusCandidatePins))
	for _, p := range c.BusCandidatePins {
		if seen[p] {
			return fmt.Errorf("BUS_CANDIDATE_PINS lists %q twice", p)
		}
		seen[p] = true
	}
	if len(c.BusPinLabels) != 0 && len(c.BusPinLabels) != len(c.BusCandidatePins) {
		return fmt.Errorf("BUS_PIN_LABELS has %d entries, BUS_CANDIDATE_PINS has %d", len(c.BusPinLabels), len(c.BusCandidatePins))
	}
	if c.MuxAddr == c.IMUAddr {
		return fmt.Errorf("MUX_I2C_ADDR and IMU_I2C_ADDR must differ (both 0x%02X)", c.MuxAddr)
	}
	return nil
}

// BrokerURL returns the paho broker URL.
func (c *Config) BrokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTBroker, c.MQTTPort)
}

// PinLabel returns the board label for candidate index i, or the pin name.
func (c *Config) PinLabel(i int) string {
	if i >= 0 && i < len(c.BusPinLabels) {
		return c.BusPinLabels[i]
	}
	if i >= 0 && i < len(c.BusCandidatePins) {
		return c.BusCandidatePins[i]
	}
	return strconv.Itoa(i)
}

// Channels returns the populated channel ids in ascending order.
func (c *Config) Channels() []int {
	chs := make([]int, 0, c.ChannelEnd-c.ChannelStart+1)
	for ch := c.ChannelStart; ch <= c.ChannelEnd; ch++ {
		chs = append(chs, ch)
	}
	return chs
}

func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func parseIntRange(key, value string, lo, hi int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, lo, hi, v)
	}
	return v, nil
}

func parseAddr(key, value string) (uint16, error) {
	addr, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if addr > 0x7F {
		return 0, fmt.Errorf("%s must be a 7-bit address, got 0x%X", key, addr)
	}
	return uint16(addr), nil
}

func splitList(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

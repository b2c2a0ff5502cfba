package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "glove_config.txt")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if got := cfg.Channels(); !reflect.DeepEqual(got, []int{2, 3, 4, 5, 6}) {
		t.Errorf("Channels() = %v", got)
	}
	if got := cfg.BrokerURL(); got != "tcp://192.168.226.69:1883" {
		t.Errorf("BrokerURL() = %q", got)
	}
	if cfg.CalibrationSamples != 100 {
		t.Errorf("CalibrationSamples = %d", cfg.CalibrationSamples)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Error("empty path should yield defaults")
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
# glove on the bench
MQTT_BROKER=localhost
MQTT_PORT=1884
CHANNEL_START=0
CHANNEL_END=7
BUS_CANDIDATE_PINS=GPIO2, GPIO3
BUS_PIN_LABELS=SDA1,SCL1
MUX_I2C_ADDR=0x71
IMU_ACCEL_RANGE=3
SENSOR_INIT_POLICY=abort
STRICT_CHANNEL_SELECT=true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BrokerURL() != "tcp://localhost:1884" {
		t.Errorf("BrokerURL() = %q", cfg.BrokerURL())
	}
	if !reflect.DeepEqual(cfg.BusCandidatePins, []string{"GPIO2", "GPIO3"}) {
		t.Errorf("pins = %v", cfg.BusCandidatePins)
	}
	if cfg.MuxAddr != 0x71 || cfg.IMUAccelRange != 3 {
		t.Errorf("mux=0x%X accel=%d", cfg.MuxAddr, cfg.IMUAccelRange)
	}
	if cfg.SensorInitPolicy != InitPolicyAbort || !cfg.StrictChannelSelect {
		t.Errorf("policy=%q strict=%v", cfg.SensorInitPolicy, cfg.StrictChannelSelect)
	}
	if len(cfg.Channels()) != 8 {
		t.Errorf("Channels() = %v", cfg.Channels())
	}
	if cfg.PinLabel(1) != "SCL1" {
		t.Errorf("PinLabel(1) = %q", cfg.PinLabel(1))
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown key", "FOO=1", "unknown config key"},
		{"missing equals", "MQTT_BROKER", "invalid config line 1"},
		{"channel out of range", "CHANNEL_END=8", "CHANNEL_END must be 0-7"},
		{"start after end", "CHANNEL_START=5\nCHANNEL_END=3", "must not exceed"},
		{"accel range", "IMU_ACCEL_RANGE=4", "IMU_ACCEL_RANGE must be 0-3"},
		{"policy", "SENSOR_INIT_POLICY=maybe", "SENSOR_INIT_POLICY must be"},
		{"one pin", "BUS_CANDIDATE_PINS=GPIO2\nBUS_PIN_LABELS=", "at least two pins"},
		{"duplicate pin", "BUS_CANDIDATE_PINS=GPIO2,GPIO2\nBUS_PIN_LABELS=", "twice"},
		{"label mismatch", "BUS_PIN_LABELS=A,B", "BUS_PIN_LABELS has 2 entries"},
		{"wide address", "MUX_I2C_ADDR=0x80", "7-bit address"},
		{"same address", "MUX_I2C_ADDR=0x68", "must differ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

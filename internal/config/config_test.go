package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func requireErrEq(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", want)
	}
	if err.Error() != want {
		t.Fatalf("error=%q want %q", err.Error(), want)
	}
}

const minimal = "source:\n  mode: can\nstorage:\n  path: './sail.db'\n"

func TestLoad_RequiresSourceMode(t *testing.T) {
	path := writeTempConfig(t, "storage:\n  path: './sail.db'\n")
	_, err := Load(path)
	requireErrEq(t, err, "source.mode is required (signalk, can or mqtt)")
}

func TestLoad_UnknownSourceModeRejected(t *testing.T) {
	path := writeTempConfig(t, "source:\n  mode: nmea0183\nstorage:\n  path: './sail.db'\n")
	_, err := Load(path)
	requireErrEq(t, err, `unknown source.mode "nmea0183"`)
}

func TestLoad_RequiresStoragePath(t *testing.T) {
	path := writeTempConfig(t, "source:\n  mode: can\n")
	_, err := Load(path)
	requireErrEq(t, err, "storage.path is required")
}

func TestLoad_SignalKRequiresURL(t *testing.T) {
	path := writeTempConfig(t, "source:\n  mode: signalk\nstorage:\n  path: './sail.db'\n")
	_, err := Load(path)
	requireErrEq(t, err, "source.signalk.url is required when source.mode is signalk")
}

func TestLoad_MQTTValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "RequiresBroker",
			body: "source:\n  mode: mqtt\nstorage:\n  path: './sail.db'\n",
			want: "source.mqtt.broker is required when source.mode is mqtt",
		},
		{
			name: "RequiresTopic",
			body: "source:\n  mode: mqtt\n  mqtt:\n    broker: 'tcp://localhost:1883'\nstorage:\n  path: './sail.db'\n",
			want: "source.mqtt.topic is required when source.mode is mqtt",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTempConfig(t, tc.body)
			_, err := Load(path)
			requireErrEq(t, err, tc.want)
		})
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeTempConfig(t, minimal)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Source.CAN.Interface != "can0" {
		t.Fatalf("interface=%q want can0", cfg.Source.CAN.Interface)
	}
	if cfg.Source.SignalK.DialTimeout != 10*time.Second || cfg.Source.SignalK.ReconnectMax != 5*time.Second {
		t.Fatalf("signalk defaults not applied: %+v", cfg.Source.SignalK)
	}
	if cfg.Web.Listen != ":8080" {
		t.Fatalf("listen=%q want :8080", cfg.Web.Listen)
	}
	if cfg.Polar.MinSessions != 2 {
		t.Fatalf("min_sessions=%d want 2", cfg.Polar.MinSessions)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Fatalf("log defaults not applied: %+v", cfg.Log)
	}
}

func TestLoad_WeatherIntervalDefault(t *testing.T) {
	path := writeTempConfig(t, minimal+"external:\n  weather_enable: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.External.WeatherInterval != 1*time.Hour {
		t.Fatalf("weather_interval=%s want 1h", cfg.External.WeatherInterval)
	}
}

func TestLoad_TideStationRequiresName(t *testing.T) {
	path := writeTempConfig(t, minimal+"external:\n  tide_station_id: '9447130'\n")
	_, err := Load(path)
	requireErrEq(t, err, "external.tide_station_name is required when external.tide_station_id is set")
}

func TestLoad_LEDChipDefault(t *testing.T) {
	path := writeTempConfig(t, minimal+"led:\n  enable: true\n  line: 17\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.LED.Chip != "gpiochip0" {
		t.Fatalf("chip=%q want gpiochip0", cfg.LED.Chip)
	}
}

func TestLoad_LogValidation(t *testing.T) {
	path := writeTempConfig(t, minimal+"log:\n  level: loud\n")
	_, err := Load(path)
	requireErrEq(t, err, `unknown log.level "loud"`)

	path = writeTempConfig(t, minimal+"log:\n  format: xml\n")
	_, err = Load(path)
	requireErrEq(t, err, `unknown log.format "xml"`)
}

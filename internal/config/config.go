package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Source   SourceConfig   `yaml:"source"`
	Storage  StorageConfig  `yaml:"storage"`
	Web      WebConfig      `yaml:"web"`
	Polar    PolarConfig    `yaml:"polar"`
	External ExternalConfig `yaml:"external"`
	LED      LEDConfig      `yaml:"led"`
	Log      LogConfig      `yaml:"log"`
}

// SourceConfig selects where NMEA 2000 data comes from. Exactly one mode:
// a Signal K websocket, a SocketCAN interface, or CAN frames over MQTT.
type SourceConfig struct {
	Mode string `yaml:"mode"` // signalk | can | mqtt

	SignalK SignalKConfig `yaml:"signalk"`
	CAN     CANConfig     `yaml:"can"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
}

type SignalKConfig struct {
	URL          string        `yaml:"url"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReconnectMax time.Duration `yaml:"reconnect_max"`
}

type CANConfig struct {
	Interface string `yaml:"interface"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

type WebConfig struct {
	Listen string `yaml:"listen"`
}

type PolarConfig struct {
	MinSessions int `yaml:"min_sessions"`
}

type ExternalConfig struct {
	WeatherEnable   bool          `yaml:"weather_enable"`
	WeatherInterval time.Duration `yaml:"weather_interval"`
	TideStationID   string        `yaml:"tide_station_id"`
	TideStationName string        `yaml:"tide_station_name"`
}

type LEDConfig struct {
	Enable bool   `yaml:"enable"`
	Chip   string `yaml:"chip"`
	Line   int    `yaml:"line"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	switch cfg.Source.Mode {
	case "signalk":
		if cfg.Source.SignalK.URL == "" {
			return Config{}, fmt.Errorf("source.signalk.url is required when source.mode is signalk")
		}
	case "can":
		if cfg.Source.CAN.Interface == "" {
			cfg.Source.CAN.Interface = "can0"
		}
	case "mqtt":
		if cfg.Source.MQTT.Broker == "" {
			return Config{}, fmt.Errorf("source.mqtt.broker is required when source.mode is mqtt")
		}
		if cfg.Source.MQTT.Topic == "" {
			return Config{}, fmt.Errorf("source.mqtt.topic is required when source.mode is mqtt")
		}
		if cfg.Source.MQTT.ClientID == "" {
			cfg.Source.MQTT.ClientID = "saillogger"
		}
	case "":
		return Config{}, fmt.Errorf("source.mode is required (signalk, can or mqtt)")
	default:
		return Config{}, fmt.Errorf("unknown source.mode %q", cfg.Source.Mode)
	}

	if cfg.Source.SignalK.DialTimeout <= 0 {
		cfg.Source.SignalK.DialTimeout = 10 * time.Second
	}
	if cfg.Source.SignalK.ReconnectMax <= 0 {
		cfg.Source.SignalK.ReconnectMax = 5 * time.Second
	}

	if cfg.Storage.Path == "" {
		return Config{}, fmt.Errorf("storage.path is required")
	}

	if cfg.Web.Listen == "" {
		cfg.Web.Listen = ":8080"
	}

	if cfg.Polar.MinSessions <= 0 {
		cfg.Polar.MinSessions = 2
	}

	if cfg.External.WeatherEnable && cfg.External.WeatherInterval <= 0 {
		cfg.External.WeatherInterval = 1 * time.Hour
	}
	if cfg.External.TideStationID != "" && cfg.External.TideStationName == "" {
		return Config{}, fmt.Errorf("external.tide_station_name is required when external.tide_station_id is set")
	}

	if cfg.LED.Enable && cfg.LED.Chip == "" {
		cfg.LED.Chip = "gpiochip0"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return Config{}, fmt.Errorf("unknown log.level %q", cfg.Log.Level)
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return Config{}, fmt.Errorf("unknown log.format %q", cfg.Log.Format)
	}

	return cfg, nil
}

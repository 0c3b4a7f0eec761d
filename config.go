package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config selects which services run and how they listen. The defaults run
// only the speed daemon; everything else opts in through the file or flags.
type Config struct {
	LogLevel string `yaml:"log_level"`

	SpeedDaemon SpeedDaemonConfig `yaml:"speed_daemon"`
	Echo        ServiceConfig     `yaml:"echo"`
	Prime       ServiceConfig     `yaml:"prime"`
	Means       ServiceConfig     `yaml:"means"`
	Chat        ChatConfig        `yaml:"chat"`
	KVStore     ServiceConfig     `yaml:"kvstore"`
	Proxy       ProxyConfig       `yaml:"proxy"`
}

type ServiceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type SpeedDaemonConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`

	// MarginCentiMPH is the enforcement allowance in hundredths of a mile
	// per hour. 0 means zero tolerance.
	MarginCentiMPH uint16 `yaml:"margin_centi_mph"`
}

type ChatConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Welcome string `yaml:"welcome"`
}

type ProxyConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Upstream string `yaml:"upstream"`
	Rewrite  string `yaml:"rewrite"`
}

func defaultConfig() Config {
	return Config{
		LogLevel:    "info",
		SpeedDaemon: SpeedDaemonConfig{Enabled: true, Addr: ":5555"},
		Echo:        ServiceConfig{Addr: ":50001"},
		Prime:       ServiceConfig{Addr: ":50002"},
		Means:       ServiceConfig{Addr: ":50003"},
		Chat:        ChatConfig{Addr: ":50004", Welcome: DefaultWelcomeMessage},
		KVStore:     ServiceConfig{Addr: ":50005"},
		Proxy: ProxyConfig{
			Addr:     ":50006",
			Upstream: UpstreamServerAddress,
			Rewrite:  TonyBoguscoinAddress,
		},
	}
}

// loadConfig layers a YAML file over the defaults. path names the file; if
// empty, the SPEEDD_CONFIG environment variable is consulted; if that is
// empty too, the defaults are returned untouched. Keys absent from the file
// keep their default values.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		path = os.Getenv("SPEEDD_CONFIG")
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

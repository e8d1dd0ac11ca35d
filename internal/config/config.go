// Package config loads the weft service configuration: defaults,
// then an optional TOML file, then WEFT_-prefixed environment
// variables, each layer overriding the previous.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the full service configuration.
type Config struct {
	Log struct {
		Level  string `koanf:"level"`  // debug, info, warn, error
		Format string `koanf:"format"` // text, json
	} `koanf:"log"`

	Patterns struct {
		Dir string `koanf:"dir"`
	} `koanf:"patterns"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`

	Queue struct {
		InStream  string `koanf:"in_stream"`
		OutStream string `koanf:"out_stream"`
		Group     string `koanf:"group"`
		Consumer  string `koanf:"consumer"`
	} `koanf:"queue"`

	HTTP struct {
		Addr string `koanf:"addr"`
	} `koanf:"http"`
}

// Load reads configuration from the given path. An empty path falls
// back to ./weft.toml, which is optional; an explicit path must exist.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	_ = k.Load(confmap.Provider(map[string]interface{}{
		"log.level":        "info",
		"log.format":       "text",
		"patterns.dir":     "./patterns",
		"redis.addr":       "localhost:6379",
		"queue.in_stream":  "weft:events",
		"queue.out_stream": "weft:messages",
		"queue.group":      "weft",
		"queue.consumer":   "weft-0",
		"http.addr":        ":8080",
	}, "."), nil)

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config %s: %w", configPath, err)
		}
	} else if _, err := os.Stat("./weft.toml"); err == nil {
		if err := k.Load(file.Provider("./weft.toml"), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config ./weft.toml: %w", err)
		}
	}

	_ = k.Load(env.Provider("WEFT_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "WEFT_")), "_", ".", -1)
	}), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	return &cfg, nil
}

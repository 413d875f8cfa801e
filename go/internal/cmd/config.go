package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	API struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"api"`
	Transport struct {
		// Kind selects the event channel: websocket | nats | memory.
		Kind         string `yaml:"kind"`
		WebSocketURL string `yaml:"websocket_url"`
		NATSURL      string `yaml:"nats_url"`
	} `yaml:"transport"`
	Room struct {
		Code string `yaml:"code"`
	} `yaml:"room"`
	Viewer struct {
		UserID string `yaml:"user_id"`
		Name   string `yaml:"name"`
	} `yaml:"viewer"`
	Debug struct {
		Port int `yaml:"port"`
	} `yaml:"debug"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&config)
	return &config, nil
}

// applyDefaults fills anything the file left out, with env taking priority
// over built-in fallbacks. The auth token only ever comes from the
// environment; it does not belong in a config file.
func applyDefaults(config *Config) {
	if config.API.BaseURL == "" {
		config.API.BaseURL = getEnv("API_BASE_URL", "http://localhost:8080")
	}
	if config.Transport.Kind == "" {
		config.Transport.Kind = getEnv("TRANSPORT", "websocket")
	}
	if config.Transport.WebSocketURL == "" {
		config.Transport.WebSocketURL = getEnv("WS_URL", "ws://localhost:8080/socket")
	}
	if config.Transport.NATSURL == "" {
		config.Transport.NATSURL = getEnv("NATS_URL", "nats://localhost:4222")
	}
	if config.Debug.Port == 0 {
		config.Debug.Port = getEnvAsInt("DEBUG_PORT", 8089)
	}
}

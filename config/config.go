// Package config loads service settings from built-in defaults, an optional
// YAML file and DIABETES_* environment variables, in that order.
package config

import (
	"os"
	"strconv"

	"github.com/tomazk/envcfg"
	yaml "gopkg.in/yaml.v2"

	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
	"github.com/YuminosukeSato/diabetes-risk/pkg/log"
	"github.com/YuminosukeSato/diabetes-risk/risk"
)

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig         `yaml:"server"`
	Data     DataConfig           `yaml:"data"`
	Model    risk.Hyperparameters `yaml:"model"`
	Info     InfoConfig           `yaml:"info"`
	LogLevel string               `yaml:"log_level"`
}

// ServerConfig is the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DataConfig locates the training dataset.
type DataConfig struct {
	Path string `yaml:"path"`
}

// InfoConfig is the static metadata served by /info.
type InfoConfig struct {
	Author     string `yaml:"author"`
	ProjectURL string `yaml:"project_url"`
}

// environ mirrors the supported environment variables. Unset variables stay empty.
type environ struct {
	Host     string `envcfg:"DIABETES_HOST"`
	Port     string `envcfg:"DIABETES_PORT"`
	Data     string `envcfg:"DIABETES_DATA"`
	LogLevel string `envcfg:"DIABETES_LOG_LEVEL"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server:   ServerConfig{Host: "0.0.0.0", Port: 8000},
		Data:     DataConfig{Path: "data/diabetes.csv"},
		Model:    risk.DefaultHyperparameters(),
		Info:     InfoConfig{Author: "diabetes-risk maintainers", ProjectURL: "https://github.com/YuminosukeSato/diabetes-risk"},
		LogLevel: "info",
	}
}

// Load builds a Config from the defaults, the YAML file at path (skipped when
// path is empty) and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.UnmarshalStrict(raw, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parse config %s", path)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var env environ
	if err := envcfg.Unmarshal(&env); err != nil {
		return errors.Wrap(err, "read environment")
	}
	if env.Host != "" {
		c.Server.Host = env.Host
	}
	if env.Port != "" {
		port, err := strconv.Atoi(env.Port)
		if err != nil {
			return errors.NewValidationError("DIABETES_PORT", "must be an integer", env.Port)
		}
		c.Server.Port = port
	}
	if env.Data != "" {
		c.Data.Path = env.Data
	}
	if env.LogLevel != "" {
		c.LogLevel = env.LogLevel
	}
	return nil
}

// Validate reports the first invalid setting as a ValidationError.
func (c Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.NewValidationError("server.port", "must be between 1 and 65535", c.Server.Port)
	}
	if c.Data.Path == "" {
		return errors.NewValidationError("data.path", "must not be empty", c.Data.Path)
	}
	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		return errors.NewValidationError("log_level", "must be one of debug, info, warn, error", c.LogLevel)
	}
	return c.Model.Validate()
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

// Package config loads the relay's settings from defaults, an optional YAML
// file, a .env file and the environment, in that order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/nfrund/sigrelay/internal/codec"
	"github.com/nfrund/sigrelay/internal/pubsub"
)

// DefaultTCPAddr is where the relay listens, and clients connect, when
// nothing else is configured.
const DefaultTCPAddr = "127.0.0.1:7070"

// Config holds all configuration for the application.
type Config struct {
	TCPAddr         string               `yaml:"tcp_addr" validate:"omitempty,listen_addr"`
	UnixPath        string               `yaml:"unix_path" validate:"required_without=TCPAddr"`
	BusCapacity     int                  `yaml:"bus_capacity" validate:"gte=1,lte=10000000"`
	MaxFrameSize    int                  `yaml:"max_frame_size" validate:"gte=16"`
	ShutdownTimeout time.Duration        `yaml:"shutdown_timeout" validate:"gt=0"`
	LogFormat       string               `yaml:"log_format" validate:"oneof=text json"`
	LogLevel        string               `yaml:"log_level" validate:"oneof=debug info warn error"`
	Tracing         pubsub.TracingConfig `yaml:"tracing"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		TCPAddr:         DefaultTCPAddr,
		BusCapacity:     pubsub.DefaultBusCapacity,
		MaxFrameSize:    codec.DefaultMaxFrameSize,
		ShutdownTimeout: 10 * time.Second,
		LogFormat:       "text",
		LogLevel:        "info",
		Tracing:         pubsub.DefaultTracingConfig(),
	}
}

// Load builds a Config from defaults, the YAML file at path (or RELAY_CONFIG
// when path is empty), a .env file in the working directory and the
// environment. It does not validate: callers apply flag overrides first and
// then call Validate.
func Load(fsys afero.Fs, path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv("RELAY_CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(fsys, path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(fsys afero.Fs, path string) error {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	slog.Debug("Loaded config file", "path", path)
	return nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("RELAY_TCP_ADDR"); ok {
		c.TCPAddr = v
	}
	if v, ok := os.LookupEnv("RELAY_UNIX_PATH"); ok {
		c.UnixPath = v
	}
	if err := envInt("RELAY_BUS_CAPACITY", &c.BusCapacity); err != nil {
		return err
	}
	if err := envInt("RELAY_MAX_FRAME_SIZE", &c.MaxFrameSize); err != nil {
		return err
	}
	if v := os.Getenv("RELAY_SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("RELAY_SHUTDOWN_TIMEOUT: %w", err)
		}
		c.ShutdownTimeout = d
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	c.Tracing = pubsub.LoadTracingConfigFromEnv(c.Tracing)
	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("listen_addr", validListenAddr); err != nil {
		panic(err)
	}
	return v
}

// validListenAddr accepts host:port with a numeric port, e.g. ":7070" or
// "127.0.0.1:0".
func validListenAddr(fl validator.FieldLevel) bool {
	_, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 0 && n <= 65535
}

// Validate checks the configuration, reporting every invalid field.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LogValue keeps the config readable in structured logs.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("tcp_addr", c.TCPAddr),
		slog.String("unix_path", c.UnixPath),
		slog.Int("bus_capacity", c.BusCapacity),
		slog.Int("max_frame_size", c.MaxFrameSize),
		slog.Duration("shutdown_timeout", c.ShutdownTimeout),
		slog.Bool("tracing", c.Tracing.Enabled),
	)
}

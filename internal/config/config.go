package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Role names
const (
	RoleServer      = "server"
	RoleClient      = "client"
	RoleKnockServer = "knock-server"
	RoleKnockClient = "knock-client"
)

// Default ports of the two exchanges
const (
	DefaultPingPort  = 12345
	DefaultKnockPort = 50051
)

// Config represents the complete relay configuration
type Config struct {
	Role     string         `yaml:"role"`
	Network  NetworkConfig  `yaml:"network"`
	Frontend FrontendConfig `yaml:"frontend"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// NetworkConfig contains the UDP endpoint configuration
type NetworkConfig struct {
	BindAddress  string `yaml:"bind_address"`
	Port         int    `yaml:"port"`          // 0 picks a free port
	Server       string `yaml:"server"`        // client roles only
	BufferSize   int    `yaml:"buffer_size"`   // largest datagram delivered untruncated
	SocketBuffer int    `yaml:"socket_buffer"` // SO_RCVBUF/SO_SNDBUF, 0 = OS default
	ReuseAddr    bool   `yaml:"reuse_addr"`
}

// FrontendConfig contains the polling front end configuration
type FrontendConfig struct {
	TickMillis  int    `yaml:"tick_ms"`
	Console     bool   `yaml:"console"`
	HTTPAddress string `yaml:"http_address"` // empty disables the HTTP front end
	LogLines    int    `yaml:"log_lines"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the built-in configuration for role
func Default(role string) Config {
	cfg := Config{
		Role: role,
		Network: NetworkConfig{
			BindAddress: "0.0.0.0",
			BufferSize:  1024,
		},
		Frontend: FrontendConfig{
			TickMillis: 16,
			Console:    true,
			LogLines:   20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}

	switch role {
	case RoleServer:
		cfg.Network.Port = DefaultPingPort
	case RoleClient:
		cfg.Network.Server = fmt.Sprintf("127.0.0.1:%d", DefaultPingPort)
	case RoleKnockServer:
		cfg.Network.Port = DefaultKnockPort
	case RoleKnockClient:
		cfg.Network.Server = fmt.Sprintf("127.0.0.1:%d", DefaultKnockPort)
	}

	return cfg
}

// Load builds the configuration for role. path may be empty. envFiles are
// loaded with godotenv; without any, a .env file in the working directory is
// used when present.
func Load(role, path string, envFiles ...string) (*Config, error) {
	cfg := Default(role)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		// the subcommand decides the role
		cfg.Role = role
	}

	if len(envFiles) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}
	cfg.applyEnv()
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Network.BindAddress = getEnv("RELAY_BIND_ADDRESS", c.Network.BindAddress)
	c.Network.Port = getEnvAsInt("RELAY_PORT", c.Network.Port)
	c.Network.Server = getEnv("RELAY_SERVER", c.Network.Server)
	c.Network.BufferSize = getEnvAsInt("RELAY_BUFFER_SIZE", c.Network.BufferSize)
	c.Network.SocketBuffer = getEnvAsInt("RELAY_SOCKET_BUFFER", c.Network.SocketBuffer)
	c.Network.ReuseAddr = getEnvAsBool("RELAY_REUSE_ADDR", c.Network.ReuseAddr)

	c.Frontend.TickMillis = getEnvAsInt("RELAY_TICK_MS", c.Frontend.TickMillis)
	c.Frontend.Console = getEnvAsBool("RELAY_CONSOLE", c.Frontend.Console)
	c.Frontend.HTTPAddress = getEnv("RELAY_HTTP_ADDRESS", c.Frontend.HTTPAddress)
	c.Frontend.LogLines = getEnvAsInt("RELAY_LOG_LINES", c.Frontend.LogLines)

	c.Logging.Level = getEnv("RELAY_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("RELAY_LOG_FORMAT", c.Logging.Format)
	c.Logging.Output = getEnv("RELAY_LOG_OUTPUT", c.Logging.Output)
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// IsClient reports whether the role sends requests to a server
func (c *Config) IsClient() bool {
	return c.Role == RoleClient || c.Role == RoleKnockClient
}

// BindAddr returns the local address to bind
func (c *Config) BindAddr() string {
	return net.JoinHostPort(c.Network.BindAddress, strconv.Itoa(c.Network.Port))
}

// Validate performs validation of the whole configuration
func (c *Config) Validate() error {
	switch c.Role {
	case RoleServer, RoleClient, RoleKnockServer, RoleKnockClient:
	default:
		return fmt.Errorf("role must be one of [%s, %s, %s, %s], got '%s'",
			RoleServer, RoleClient, RoleKnockServer, RoleKnockClient, c.Role)
	}

	if err := c.Network.Validate(c.IsClient()); err != nil {
		return fmt.Errorf("network config: %w", err)
	}

	if err := c.Frontend.Validate(); err != nil {
		return fmt.Errorf("frontend config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates network configuration
func (n *NetworkConfig) Validate(client bool) error {
	if n.Port < 0 || n.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", n.Port)
	}

	if n.BindAddress == "" {
		return fmt.Errorf("bind_address cannot be empty")
	}

	if client {
		if n.Server == "" {
			return fmt.Errorf("server cannot be empty for client roles")
		}
		if _, _, err := net.SplitHostPort(n.Server); err != nil {
			return fmt.Errorf("server must be host:port, got '%s': %w", n.Server, err)
		}
	}

	if n.BufferSize < 1 || n.BufferSize > 65535 {
		return fmt.Errorf("buffer_size must be between 1 and 65535 bytes, got %d", n.BufferSize)
	}

	if n.SocketBuffer < 0 {
		return fmt.Errorf("socket_buffer cannot be negative, got %d", n.SocketBuffer)
	}

	return nil
}

// Validate validates front end configuration
func (f *FrontendConfig) Validate() error {
	if f.TickMillis < 1 {
		return fmt.Errorf("tick_ms must be at least 1, got %d", f.TickMillis)
	}

	if f.LogLines < 1 {
		return fmt.Errorf("log_lines must be at least 1, got %d", f.LogLines)
	}

	if f.HTTPAddress != "" {
		if _, _, err := net.SplitHostPort(f.HTTPAddress); err != nil {
			return fmt.Errorf("http_address must be host:port, got '%s': %w", f.HTTPAddress, err)
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(l.Level)] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetTickDuration returns the poll cadence as a time.Duration
func (f *FrontendConfig) GetTickDuration() time.Duration {
	return time.Duration(f.TickMillis) * time.Millisecond
}

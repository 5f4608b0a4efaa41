package gateway

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/configloader"
	"github.com/effective-security/x/values"
	"github.com/go-playground/validator/v10"
)

// Defaults
const (
	DefaultHost         = "0.0.0.0"
	DefaultPort         = 8080
	DefaultPortAttempts = 10
	DefaultOrigin       = "http://localhost:3000"
	DefaultAssistant    = "math_tutor"
	DefaultRedisPrefix  = "agent"
)

// Tool modes
const (
	// ToolModeDirect runs the tools in process
	ToolModeDirect = "direct"
	// ToolModeTransport runs the tools through the in process tool server
	ToolModeTransport = "transport"
	// ToolModeHTTP calls a remote tool server
	ToolModeHTTP = "http"
)

// Store kinds
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config of the gateway
type Config struct {
	// Host to listen on
	Host string `json:"host" yaml:"host"`
	// Port is the first port tried
	Port int `json:"port" yaml:"port" validate:"gte=0,lte=65535"`
	// PortAttempts is the number of consecutive ports tried
	PortAttempts int `json:"port_attempts" yaml:"port_attempts" validate:"gte=0"`
	// AllowedOrigins for CORS
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`

	// LLMConfig is the location of the providers configuration
	LLMConfig string `json:"llm_config" yaml:"llm_config"`
	// Assistant is the name used to select the model
	Assistant string `json:"assistant" yaml:"assistant"`
	// RecursionLimit caps the model calls of one turn, 0 for the default
	RecursionLimit int `json:"recursion_limit" yaml:"recursion_limit" validate:"gte=0"`

	Tools ToolsConfig `json:"tools" yaml:"tools"`
	Store StoreConfig `json:"store" yaml:"store"`
}

// ToolsConfig selects how the tools are invoked
type ToolsConfig struct {
	Mode string `json:"mode" yaml:"mode" validate:"omitempty,oneof=direct transport http"`
	// URL of the remote tool server, for the http mode
	URL string `json:"url,omitempty" yaml:"url,omitempty" validate:"required_if=Mode http,omitempty,url"`
}

// StoreConfig selects the conversation store
type StoreConfig struct {
	Kind     string `json:"kind" yaml:"kind" validate:"omitempty,oneof=memory redis"`
	RedisURL string `json:"redis_url,omitempty" yaml:"redis_url,omitempty" validate:"required_if=Kind redis"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	// TTL of the saved sessions, like 24h; empty keeps them
	TTL string `json:"ttl,omitempty" yaml:"ttl,omitempty"`
}

// TTLDuration returns the parsed TTL
func (c *StoreConfig) TTLDuration() (time.Duration, error) {
	if c.TTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid store ttl %q", c.TTL)
	}
	return d, nil
}

// SetDefaults fills the missing values
func (c *Config) SetDefaults() *Config {
	c.Host = values.StringsCoalesce(c.Host, DefaultHost)
	c.Port = values.NumbersCoalesce(c.Port, DefaultPort)
	c.PortAttempts = values.NumbersCoalesce(c.PortAttempts, DefaultPortAttempts)
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{DefaultOrigin}
	}
	c.Assistant = values.StringsCoalesce(c.Assistant, DefaultAssistant)
	c.Tools.Mode = values.StringsCoalesce(c.Tools.Mode, ToolModeDirect)
	c.Store.Kind = values.StringsCoalesce(c.Store.Kind, StoreMemory)
	c.Store.Prefix = values.StringsCoalesce(c.Store.Prefix, DefaultRedisPrefix)
	return c
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid gateway configuration")
	}
	if _, err := c.Store.TTLDuration(); err != nil {
		return err
	}
	return nil
}

// DefaultConfig returns the configuration used without a file
func DefaultConfig() *Config {
	return new(Config).SetDefaults()
}

// LoadConfig from file, the environment variables are expanded
func LoadConfig(file string) (*Config, error) {
	cfg := new(Config)
	if file != "" {
		if err := configloader.UnmarshalAndExpand(file, cfg); err != nil {
			return nil, err
		}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

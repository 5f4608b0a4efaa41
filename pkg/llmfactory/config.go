package llmfactory

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/configloader"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	// Providers specifies the list of providers to use
	Providers []*ProviderConfig `json:"providers" yaml:"providers" validate:"dive"`
	// DefaultProvider specifies the default provider to use
	DefaultProvider string `json:"default_provider" yaml:"default_provider"`
	// AssistantModels specifies the mapping of assistants to models.
	// key is the assistant name, value is the model name.
	// Use `default: <model_name>` as the default model for assistants.
	AssistantModels map[string][]string `json:"assistant_models" yaml:"assistant_models"`
}

// ProviderConfig describes one configured provider
type ProviderConfig struct {
	Name            string         `json:"name" yaml:"name" validate:"required"`
	Token           string         `json:"token,omitempty" yaml:"token,omitempty"`
	DefaultModel    string         `json:"default_model,omitempty" yaml:"default_model,omitempty" validate:"required"`
	AvailableModels []string       `json:"available_models,omitempty" yaml:"available_models,omitempty"`
	OpenAI          OpenAIConfig   `json:"open_ai" yaml:"open_ai"`
	Bedrock         *BedrockConfig `json:"bedrock,omitempty" yaml:"bedrock,omitempty"`
	// MaxRetries is passed to SDKs that retry on their own.
	MaxRetries *int `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
}

// OpenAIConfig specifies options config
type OpenAIConfig struct {
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// APIType specifies the type of API to use:
	// OPENAI|ANTHROPIC|GOOGLEAI|BEDROCK|PERPLEXITY
	APIType string `json:"api_type,omitempty" yaml:"api_type,omitempty" validate:"required,oneof=OPENAI OPEN_AI ANTHROPIC GOOGLEAI BEDROCK PERPLEXITY"`
	// OrgID specifies which organization's quota and billing should be used when making API requests.
	OrgID string `json:"org_id,omitempty" yaml:"org_id,omitempty"`
}

// BedrockConfig selects the AWS account used for Bedrock
type BedrockConfig struct {
	Region  string `json:"region,omitempty" yaml:"region,omitempty"`
	Profile string `json:"profile,omitempty" yaml:"profile,omitempty"`
}

// FindModel returns the first preferred model served by the provider,
// or the provider default.
func (c *ProviderConfig) FindModel(models ...string) string {
	for _, model := range models {
		if model == c.DefaultModel || slices.Contains(c.AvailableModels, model) {
			return model
		}
	}
	return c.DefaultModel
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid LLM configuration")
	}
	return nil
}

// LoadConfig from file
func LoadConfig(file string) (*Config, error) {
	cfg := new(Config)
	if file == "" {
		return cfg, nil
	}

	err := configloader.UnmarshalAndExpand(file, cfg)
	if err != nil {
		return nil, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

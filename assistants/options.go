package assistants

import (
	"github.com/CodeSistency/agentTemplate/pkg/llms"
)

// Option is a function that can be used to modify the behavior of the Loop Config.
type Option func(*Config)

type Config struct {
	// Model is the model to use in an LLM call.
	Model    string
	modelSet bool

	// MaxTokens is the maximum number of tokens to generate to use in an LLM call.
	MaxTokens    int
	maxTokensSet bool

	// Temperature is the temperature for sampling to use in an LLM call, between 0 and 1.
	Temperature    float64
	temperatureSet bool

	// StopWords is a list of words to stop on to use in an LLM call.
	StopWords    []string
	stopWordsSet bool

	// TopP is the cumulative probability for top-p sampling in an LLM call.
	TopP    float64
	toppSet bool

	// ToolChoice is the choice of tool to use, it can either be "none", "auto" (the default behavior), or a specific tool as described in the ToolChoice type.
	ToolChoice    any
	toolChoiceSet bool

	// Metadata is passed to the provider as is
	Metadata map[string]any

	//
	// Below are the options for the Loop, not related to LLM call
	//

	// CallbackHandler receives the loop transitions
	CallbackHandler Callback

	// SystemPrompt is prepended when the conversation has no system message
	SystemPrompt string

	// RecursionLimit is the number of model calls allowed in one turn,
	// enforced by llms.StepLimiter. When set with WithRecursionLimit,
	// it overrides the limit of the model's StepLimiter for the turn.
	RecursionLimit    int
	recursionLimitSet bool
}

// NewConfig returns the config with the options applied
func NewConfig(opts ...Option) *Config {
	cfg := &Config{
		RecursionLimit: llms.DefaultRecursionLimit,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Apply returns a copy of the config with the options applied
func (c *Config) Apply(opts ...Option) *Config {
	cfg := *c
	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithCallback allows setting a custom Callback Handler.
func WithCallback(callbackHandler Callback) Option {
	return func(o *Config) {
		o.CallbackHandler = callbackHandler
	}
}

// WithSystemPrompt sets the prompt prepended to conversations without a system message.
func WithSystemPrompt(prompt string) Option {
	return func(o *Config) {
		o.SystemPrompt = prompt
	}
}

// WithRecursionLimit sets the number of model calls allowed in one turn.
// It applies to the Loop when passed to NewLoop, or to one turn when passed to Run.
func WithRecursionLimit(limit int) Option {
	return func(o *Config) {
		o.RecursionLimit = limit
		o.recursionLimitSet = true
	}
}

// WithModel is an option for LLM.Call.
func WithModel(model string) Option {
	return func(o *Config) {
		o.Model = model
		o.modelSet = true
	}
}

// WithMaxTokens is an option for LLM.Call.
func WithMaxTokens(maxTokens int) Option {
	return func(o *Config) {
		o.MaxTokens = maxTokens
		o.maxTokensSet = true
	}
}

// WithTemperature is an option for LLM.Call.
func WithTemperature(temperature float64) Option {
	return func(o *Config) {
		o.Temperature = temperature
		o.temperatureSet = true
	}
}

// WithTopP	will add an option to use top-p sampling for LLM.Call.
func WithTopP(topP float64) Option {
	return func(o *Config) {
		o.TopP = topP
		o.toppSet = true
	}
}

// WithStopWords is an option for setting the stop words for LLM.Call.
func WithStopWords(stopWords []string) Option {
	return func(o *Config) {
		o.StopWords = stopWords
		o.stopWordsSet = true
	}
}

// WithToolChoice is an option for LLM.Call.
func WithToolChoice(choice any) Option {
	return func(o *Config) {
		o.ToolChoice = choice
		o.toolChoiceSet = true
	}
}

// WithMetadata is an option for LLM.Call.
func WithMetadata(metadata map[string]any) Option {
	return func(o *Config) {
		o.Metadata = metadata
	}
}

// GetCallOptions returns the model call options,
// tools are appended by the caller.
func (c *Config) GetCallOptions(extra ...llms.CallOption) []llms.CallOption {
	var chainCallOption []llms.CallOption
	if c.modelSet {
		chainCallOption = append(chainCallOption, llms.WithModel(c.Model))
	}
	if c.maxTokensSet {
		chainCallOption = append(chainCallOption, llms.WithMaxTokens(c.MaxTokens))
	}
	if c.temperatureSet {
		chainCallOption = append(chainCallOption, llms.WithTemperature(c.Temperature))
	}
	if c.stopWordsSet {
		chainCallOption = append(chainCallOption, llms.WithStopWords(c.StopWords))
	}
	if c.toppSet {
		chainCallOption = append(chainCallOption, llms.WithTopP(c.TopP))
	}
	if c.toolChoiceSet {
		chainCallOption = append(chainCallOption, llms.WithToolChoice(c.ToolChoice))
	}
	if len(c.Metadata) > 0 {
		chainCallOption = append(chainCallOption, llms.WithMetadata(c.Metadata))
	}
	return append(chainCallOption, extra...)
}

package bedrock

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const (
	// DefaultModel supports tool use through the Converse API.
	DefaultModel = "anthropic.claude-3-5-sonnet-20240620-v1:0"

	DefaultMaxTokens = 4096
)

// ConverseAPI is the subset of the Bedrock runtime client used by the model.
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

var _ ConverseAPI = (*bedrockruntime.Client)(nil)

type options struct {
	modelID string
	region  string
	profile string

	accessKeyID     string
	secretAccessKey string
	sessionToken    string

	client ConverseAPI
}

// Option is an option for the Bedrock LLM.
type Option func(*options)

// WithModel sets the model ID, or inference profile ID.
func WithModel(modelID string) Option {
	return func(o *options) {
		o.modelID = modelID
	}
}

// WithRegion sets the AWS region used when the client is created from the
// default configuration.
func WithRegion(region string) Option {
	return func(o *options) {
		o.region = region
	}
}

// WithProfile selects a shared config profile.
func WithProfile(profile string) Option {
	return func(o *options) {
		o.profile = profile
	}
}

// WithStaticCredentials uses the given keys instead of the default
// credentials chain.
func WithStaticCredentials(accessKeyID, secretAccessKey, sessionToken string) Option {
	return func(o *options) {
		o.accessKeyID = accessKeyID
		o.secretAccessKey = secretAccessKey
		o.sessionToken = sessionToken
	}
}

// WithClient sets the runtime client. When set, no AWS configuration is loaded.
func WithClient(client ConverseAPI) Option {
	return func(o *options) {
		o.client = client
	}
}

package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"os"

	"github.com/CodeSistency/agentTemplate/pkg/llms"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

var logger = xlog.NewPackageLogger("github.com/CodeSistency/agentTemplate", "openai")

var (
	ErrMissingToken = errors.New("openai: missing API key, set it in the OPENAI_API_KEY environment variable")
)

type LLM struct {
	client   openai.Client
	model    string
	provider ProviderType
}

var _ llms.Model = (*LLM)(nil)

// New returns a new OpenAI LLM.
// PERPLEXITY is served through the same chat completions API.
func New(opts ...Option) (*LLM, error) {
	o := &options{
		token:        os.Getenv(tokenEnvVarName),
		model:        os.Getenv(modelEnvVarName),
		baseURL:      os.Getenv(baseURLEnvVarName),
		organization: os.Getenv(organizationEnvVarName),
		provider:     ProviderOpenAI,
		maxRetries:   DefaultMaxRetries,
		httpClient:   http.DefaultClient,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.token == "" {
		return nil, ErrMissingToken
	}

	defaultURL := DefaultBaseURL
	if o.provider == ProviderPerplexity {
		defaultURL = DefaultPerplexityBaseURL
	}

	sdkOpts := []option.RequestOption{
		option.WithAPIKey(o.token),
		option.WithBaseURL(values.StringsCoalesce(o.baseURL, defaultURL)),
		option.WithMaxRetries(o.maxRetries),
	}
	if o.organization != "" {
		sdkOpts = append(sdkOpts, option.WithOrganization(o.organization))
	}
	if o.httpClient != nil {
		sdkOpts = append(sdkOpts, option.WithHTTPClient(o.httpClient))
	}

	return &LLM{
		client:   openai.NewClient(sdkOpts...),
		model:    values.StringsCoalesce(o.model, DefaultChatModel),
		provider: o.provider,
	}, nil
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.model
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	if o.provider == ProviderPerplexity {
		return llms.ProviderPerplexity
	}
	return llms.ProviderOpenAI
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{
		Model: o.model,
	}
	for _, opt := range options {
		opt(&opts)
	}

	chatMsgs, err := ToMessages(messages)
	if err != nil {
		return nil, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(opts.Model),
		Messages: chatMsgs,
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}
	if opts.TopP > 0 {
		params.TopP = openai.Float(opts.TopP)
	}
	if len(opts.StopWords) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: opts.StopWords}
	}

	if len(opts.Tools) > 0 {
		tools, err := ToTools(opts.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
		if opts.ParallelToolCalls != nil && o.GetProviderType().Supports(llms.CapabilityParallelToolControl) {
			params.ParallelToolCalls = openai.Bool(*opts.ParallelToolCalls)
		}
		if choice, ok := opts.ToolChoice.(string); ok && choice != "" {
			params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String(choice)}
		}
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"model", opts.Model,
		"messages", len(chatMsgs),
		"tools", len(params.Tools),
	)

	result, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyError(ctx, errors.Wrap(err, "openai: failed to create chat completion"))
	}
	if len(result.Choices) == 0 {
		return nil, errors.WithMessage(llms.ErrEmptyResponse, "openai")
	}

	choices := make([]*llms.ContentChoice, len(result.Choices))
	for i, c := range result.Choices {
		choices[i] = &llms.ContentChoice{
			Content:    c.Message.Content,
			StopReason: c.FinishReason,
			GenerationInfo: map[string]any{
				"InputTokens":  result.Usage.PromptTokens,
				"OutputTokens": result.Usage.CompletionTokens,
				"TotalTokens":  result.Usage.TotalTokens,
				"ID":           result.ID,
			},
		}
		for _, tool := range c.Message.ToolCalls {
			choices[i].ToolCalls = append(choices[i].ToolCalls, llms.ToolCall{
				ID:   tool.ID,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      tool.Function.Name,
					Arguments: tool.Function.Arguments,
				},
			})
		}
	}
	return &llms.ContentResponse{Choices: choices}, nil
}

func classifyError(ctx context.Context, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return llms.MarkRateLimited(err)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return llms.MarkTimeout(err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return llms.MarkTimeout(err)
	}
	return err
}

// ToMessages converts the conversation to chat completion messages.
func ToMessages(messages []llms.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	chatMsgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, mc := range messages {
		switch mc.Role {
		case llms.RoleSystem:
			chatMsgs = append(chatMsgs, openai.SystemMessage(mc.Text()))
		case llms.RoleHuman:
			chatMsgs = append(chatMsgs, openai.UserMessage(mc.Text()))
		case llms.RoleAI:
			calls := mc.ToolCalls()
			if len(calls) == 0 {
				chatMsgs = append(chatMsgs, openai.AssistantMessage(mc.Text()))
				continue
			}
			assistant := &openai.ChatCompletionAssistantMessageParam{
				ToolCalls: make([]openai.ChatCompletionMessageToolCallUnionParam, 0, len(calls)),
			}
			if text := mc.Text(); text != "" {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(text)}
			}
			for _, tc := range calls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name(),
							Arguments: values.StringsCoalesce(tc.Arguments(), "{}"),
						},
					},
				})
			}
			chatMsgs = append(chatMsgs, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
		case llms.RoleTool:
			resp, ok := mc.ToolResponse()
			if !ok || len(mc.Parts) != 1 {
				return nil, errors.Errorf("openai: expected exactly one tool response part for role %v, got %d parts", mc.Role, len(mc.Parts))
			}
			chatMsgs = append(chatMsgs, openai.ToolMessage(resp.Content, resp.ToolCallID))
		default:
			return nil, errors.Errorf("openai: role %v not supported", mc.Role)
		}
	}
	return chatMsgs, nil
}

// ToTools converts tool definitions to chat completion function tools.
func ToTools(tools []llms.Tool) ([]openai.ChatCompletionToolUnionParam, error) {
	res := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		if t.Type != "function" || t.Function == nil {
			return nil, errors.Errorf("openai: tool type %q not supported", t.Type)
		}
		def := openai.FunctionDefinitionParam{
			Name:        t.Function.Name,
			Description: openai.String(t.Function.Description),
		}
		if t.Function.Strict {
			def.Strict = openai.Bool(true)
		}
		if t.Function.Parameters != nil {
			js, err := json.Marshal(t.Function.Parameters)
			if err != nil {
				return nil, errors.Wrapf(err, "openai: failed to marshal parameters of %s", t.Function.Name)
			}
			var params openai.FunctionParameters
			if err := json.Unmarshal(js, &params); err != nil {
				return nil, errors.Wrapf(err, "openai: failed to convert parameters of %s", t.Function.Name)
			}
			def.Parameters = params
		}
		res = append(res, openai.ChatCompletionFunctionTool(def))
	}
	return res, nil
}

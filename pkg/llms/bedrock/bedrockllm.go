package bedrock

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/CodeSistency/agentTemplate/pkg/llms"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/values"
)

// LLM is a Bedrock LLM implementation on top of the Converse API.
type LLM struct {
	modelID string
	client  ConverseAPI
}

var _ llms.Model = (*LLM)(nil)

// New creates a new Bedrock LLM implementation.
func New(opts ...Option) (*LLM, error) {
	o := &options{
		modelID: DefaultModel,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.client == nil {
		var loadOpts []func(*config.LoadOptions) error
		if o.region != "" {
			loadOpts = append(loadOpts, config.WithRegion(o.region))
		}
		if o.profile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(o.profile))
		}
		if o.accessKeyID != "" {
			loadOpts = append(loadOpts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(o.accessKeyID, o.secretAccessKey, o.sessionToken)))
		}
		cfg, err := config.LoadDefaultConfig(context.Background(), loadOpts...)
		if err != nil {
			return nil, errors.Wrap(err, "bedrock: failed to load AWS config")
		}
		o.client = bedrockruntime.NewFromConfig(cfg)
	}

	return &LLM{
		client:  o.client,
		modelID: o.modelID,
	}, nil
}

// GetName implements the Model interface.
func (l *LLM) GetName() string {
	return l.modelID
}

// GetProviderType implements the Model interface.
func (l *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderBedrock
}

// GenerateContent implements llms.Model.
func (l *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{
		Model: l.modelID,
	}
	for _, opt := range options {
		opt(&opts)
	}

	msgs, system, err := ProcessMessages(messages)
	if err != nil {
		return nil, err
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(opts.Model),
		Messages: msgs,
		System:   system,
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens: aws.Int32(int32(values.NumbersCoalesce(opts.MaxTokens, DefaultMaxTokens))),
		},
	}
	if opts.Temperature > 0 {
		input.InferenceConfig.Temperature = aws.Float32(float32(opts.Temperature))
	}
	if opts.TopP > 0 {
		input.InferenceConfig.TopP = aws.Float32(float32(opts.TopP))
	}
	if len(opts.StopWords) > 0 {
		input.InferenceConfig.StopSequences = opts.StopWords
	}
	if len(opts.Tools) > 0 {
		tc, err := ToToolConfig(opts.Tools)
		if err != nil {
			return nil, err
		}
		input.ToolConfig = tc
	}

	out, err := l.client.Converse(ctx, input)
	if err != nil {
		return nil, classifyError(ctx, errors.Wrap(err, "bedrock: converse failed"))
	}

	msgOut, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || len(msgOut.Value.Content) == 0 {
		return nil, errors.WithMessage(llms.ErrEmptyResponse, "bedrock")
	}

	genInfo := map[string]any{
		"Provider": ModelProvider(opts.Model),
	}
	if out.Usage != nil {
		genInfo["InputTokens"] = aws.ToInt32(out.Usage.InputTokens)
		genInfo["OutputTokens"] = aws.ToInt32(out.Usage.OutputTokens)
		genInfo["TotalTokens"] = aws.ToInt32(out.Usage.TotalTokens)
	}

	choice := &llms.ContentChoice{
		StopReason:     string(out.StopReason),
		GenerationInfo: genInfo,
	}
	var texts []string
	for _, block := range msgOut.Value.Content {
		switch b := block.(type) {
		case *types.ContentBlockMemberText:
			texts = append(texts, b.Value)
		case *types.ContentBlockMemberToolUse:
			args := "{}"
			if b.Value.Input != nil {
				js, err := b.Value.Input.MarshalSmithyDocument()
				if err != nil {
					return nil, errors.Wrap(err, "bedrock: failed to marshal tool input")
				}
				args = string(js)
			}
			choice.ToolCalls = append(choice.ToolCalls, llms.ToolCall{
				ID:   aws.ToString(b.Value.ToolUseId),
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      aws.ToString(b.Value.Name),
					Arguments: args,
				},
			})
		}
	}
	choice.Content = strings.Join(texts, "\n")

	return &llms.ContentResponse{Choices: []*llms.ContentChoice{choice}}, nil
}

func classifyError(ctx context.Context, err error) error {
	var throttling *types.ThrottlingException
	if errors.As(err, &throttling) {
		return llms.MarkRateLimited(err)
	}
	var timeout *types.ModelTimeoutException
	if errors.As(err, &timeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return llms.MarkTimeout(err)
	}
	return err
}

// ModelProvider returns the vendor part of a model ID.
// Inference profiles carry a region prefix, for example
// "us.anthropic.claude-3-5-sonnet-20241022-v2:0".
func ModelProvider(modelID string) string {
	parts := strings.Split(modelID, ".")
	if len(parts) >= 2 && len(parts[0]) == 2 && strings.ToLower(parts[0]) == parts[0] {
		return parts[1]
	}
	return parts[0]
}

// ProcessMessages converts the conversation to Converse messages.
// Consecutive tool messages are folded into one user message.
func ProcessMessages(messages []llms.Message) ([]types.Message, []types.SystemContentBlock, error) {
	var (
		res     []types.Message
		system  []types.SystemContentBlock
		pending []types.ContentBlock
	)
	flush := func() {
		if len(pending) > 0 {
			res = append(res, types.Message{Role: types.ConversationRoleUser, Content: pending})
			pending = nil
		}
	}

	for _, m := range messages {
		if m.Role != llms.RoleTool {
			flush()
		}
		switch m.Role {
		case llms.RoleSystem:
			if text := m.Text(); text != "" {
				system = append(system, &types.SystemContentBlockMemberText{Value: text})
			}
		case llms.RoleHuman:
			text := m.Text()
			if text == "" {
				continue
			}
			res = append(res, types.Message{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: text}},
			})
		case llms.RoleAI:
			var blocks []types.ContentBlock
			if text := m.Text(); text != "" {
				blocks = append(blocks, &types.ContentBlockMemberText{Value: text})
			}
			for _, tc := range m.ToolCalls() {
				var input map[string]any
				if err := json.Unmarshal([]byte(values.StringsCoalesce(tc.Arguments(), "{}")), &input); err != nil {
					return nil, nil, errors.Wrap(err, "bedrock: failed to unmarshal tool call arguments")
				}
				blocks = append(blocks, &types.ContentBlockMemberToolUse{
					Value: types.ToolUseBlock{
						ToolUseId: aws.String(tc.ID),
						Name:      aws.String(tc.Name()),
						Input:     document.NewLazyDocument(input),
					},
				})
			}
			if len(blocks) == 0 {
				continue
			}
			res = append(res, types.Message{Role: types.ConversationRoleAssistant, Content: blocks})
		case llms.RoleTool:
			tr, ok := m.ToolResponse()
			if !ok {
				return nil, nil, errors.Errorf("bedrock: tool message without tool response")
			}
			pending = append(pending, &types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{
					ToolUseId: aws.String(tr.ToolCallID),
					Content: []types.ToolResultContentBlock{
						&types.ToolResultContentBlockMemberText{Value: tr.Content},
					},
				},
			})
		default:
			return nil, nil, errors.Errorf("bedrock: role %v not supported", m.Role)
		}
	}
	flush()
	return res, system, nil
}

// ToToolConfig converts tool definitions to the Converse tool configuration.
func ToToolConfig(tools []llms.Tool) (*types.ToolConfiguration, error) {
	tc := &types.ToolConfiguration{}
	for _, t := range tools {
		if t.Function == nil {
			continue
		}
		schema := map[string]any{"type": "object"}
		if t.Function.Parameters != nil {
			js, err := json.Marshal(t.Function.Parameters)
			if err != nil {
				return nil, errors.Wrapf(err, "bedrock: failed to marshal parameters of %s", t.Function.Name)
			}
			if err := json.Unmarshal(js, &schema); err != nil {
				return nil, errors.Wrapf(err, "bedrock: failed to convert parameters of %s", t.Function.Name)
			}
		}
		tc.Tools = append(tc.Tools, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(t.Function.Name),
				Description: aws.String(t.Function.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
			},
		})
	}
	if len(tc.Tools) == 0 {
		return nil, nil
	}
	return tc, nil
}

package googleai

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/CodeSistency/agentTemplate/pkg/llms"
	"github.com/CodeSistency/agentTemplate/pkg/llms/googleai/internal/genaiutils"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/values"
	"github.com/google/uuid"
	"google.golang.org/genai"
)

var (
	ErrNoContentInResponse   = errors.New("no content in generation response")
	ErrUnknownPartInResponse = errors.New("unknown part type in generation response")
)

const (
	CITATIONS = "citations"
	SAFETY    = "safety"
	RoleModel = "model"
	RoleUser  = "user"
)

// GetName implements the Model interface.
func (g *GoogleAI) GetName() string {
	return g.opts.DefaultModel
}

// GetProviderType implements the Model interface.
func (g *GoogleAI) GetProviderType() llms.ProviderType {
	return llms.ProviderGoogleAI
}

// GenerateContent implements the [llms.Model] interface.
func (g *GoogleAI) GenerateContent(
	ctx context.Context,
	messages []llms.Message,
	options ...llms.CallOption,
) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{
		Model:       g.opts.DefaultModel,
		MaxTokens:   g.opts.DefaultMaxTokens,
		Temperature: g.opts.DefaultTemperature,
		TopP:        g.opts.DefaultTopP,
	}
	for _, opt := range options {
		opt(&opts)
	}

	callCfg := &genai.GenerateContentConfig{
		StopSequences:   opts.StopWords,
		CandidateCount:  1,
		MaxOutputTokens: int32(opts.MaxTokens),
		Temperature:     genaiutils.Float32Ptr(float32(opts.Temperature)),
		TopP:            genaiutils.Float32Ptr(float32(opts.TopP)),
	}
	for _, cat := range []genai.HarmCategory{
		genai.HarmCategoryDangerousContent,
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
	} {
		callCfg.SafetySettings = append(callCfg.SafetySettings, &genai.SafetySetting{
			Category:  cat,
			Threshold: g.opts.HarmThreshold,
		})
	}

	var err error
	if callCfg.Tools, err = genaiutils.ConvertTools(opts.Tools); err != nil {
		return nil, err
	}

	system, history, err := ConvertMessages(messages)
	if err != nil {
		return nil, err
	}
	callCfg.SystemInstruction = system

	resp, err := g.client.Models.GenerateContent(ctx, opts.Model, history, callCfg)
	if err != nil {
		return nil, classifyError(ctx, errors.Wrap(err, "googleai: failed to generate content"))
	}
	if len(resp.Candidates) == 0 {
		return nil, errors.WithMessage(llms.ErrEmptyResponse, ErrNoContentInResponse.Error())
	}
	return convertCandidates(resp.Candidates, resp.UsageMetadata)
}

func classifyError(ctx context.Context, err error) error {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	}
	switch code {
	case http.StatusTooManyRequests:
		return llms.MarkRateLimited(err)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return llms.MarkTimeout(err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return llms.MarkTimeout(err)
	}
	return err
}

// convertCandidates converts a sequence of genai.Candidate to a response.
// Gemini does not always assign call IDs, missing ones are generated so
// that every tool result can be correlated.
func convertCandidates(candidates []*genai.Candidate, usage *genai.GenerateContentResponseUsageMetadata) (*llms.ContentResponse, error) {
	var contentResponse llms.ContentResponse

	for _, candidate := range candidates {
		var buf strings.Builder
		var toolCalls []llms.ToolCall

		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				switch {
				case part.FunctionCall != nil:
					args := part.FunctionCall.Args
					if args == nil {
						args = map[string]any{}
					}
					b, err := json.Marshal(args)
					if err != nil {
						return nil, errors.Wrap(err, "googleai: failed to marshal function args")
					}
					toolCalls = append(toolCalls, llms.ToolCall{
						ID:   values.StringsCoalesce(part.FunctionCall.ID, "call_"+uuid.NewString()),
						Type: "function",
						FunctionCall: &llms.FunctionCall{
							Name:      part.FunctionCall.Name,
							Arguments: string(b),
						},
					})
				case part.Thought:
					// reasoning summaries are not part of the answer
				case part.Text != "":
					buf.WriteString(part.Text)
				default:
					return nil, errors.Wrapf(ErrUnknownPartInResponse, "not text or tool")
				}
			}
		}

		metadata := map[string]any{
			CITATIONS: candidate.CitationMetadata,
			SAFETY:    candidate.SafetyRatings,
		}
		if usage != nil {
			metadata["InputTokens"] = usage.PromptTokenCount
			metadata["OutputTokens"] = usage.CandidatesTokenCount + usage.ToolUsePromptTokenCount + usage.ThoughtsTokenCount
			metadata["TotalTokens"] = usage.TotalTokenCount
		}

		contentResponse.Choices = append(contentResponse.Choices, &llms.ContentChoice{
			Content:        buf.String(),
			StopReason:     string(candidate.FinishReason),
			GenerationInfo: metadata,
			ToolCalls:      toolCalls,
		})
	}
	return &contentResponse, nil
}

// ConvertMessages splits the conversation into the system instruction and
// the content history. Consecutive tool messages become one user content
// holding all function responses.
func ConvertMessages(messages []llms.Message) (*genai.Content, []*genai.Content, error) {
	var (
		system  *genai.Content
		history = make([]*genai.Content, 0, len(messages))
		pending []*genai.Part
	)
	flush := func() {
		if len(pending) > 0 {
			history = append(history, &genai.Content{Role: RoleUser, Parts: pending})
			pending = nil
		}
	}

	for _, mc := range messages {
		if mc.Role != llms.RoleTool {
			flush()
		}
		switch mc.Role {
		case llms.RoleSystem:
			if system == nil {
				system = &genai.Content{}
			}
			system.Parts = append(system.Parts, &genai.Part{Text: mc.Text()})
		case llms.RoleHuman:
			history = append(history, &genai.Content{Role: RoleUser, Parts: []*genai.Part{{Text: mc.Text()}}})
		case llms.RoleAI:
			var parts []*genai.Part
			if text := mc.Text(); text != "" {
				parts = append(parts, &genai.Part{Text: text})
			}
			for _, tc := range mc.ToolCalls() {
				var args map[string]any
				if err := json.Unmarshal([]byte(values.StringsCoalesce(tc.Arguments(), "{}")), &args); err != nil {
					return nil, nil, errors.Wrap(err, "googleai: failed to unmarshal tool call arguments")
				}
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   tc.ID,
					Name: tc.Name(),
					Args: args,
				}})
			}
			if len(parts) == 0 {
				continue
			}
			history = append(history, &genai.Content{Role: RoleModel, Parts: parts})
		case llms.RoleTool:
			tr, ok := mc.ToolResponse()
			if !ok {
				return nil, nil, errors.New("googleai: tool message without tool response")
			}
			pending = append(pending, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       tr.ToolCallID,
				Name:     tr.Name,
				Response: map[string]any{"output": tr.Content},
			}})
		default:
			return nil, nil, errors.Errorf("googleai: role %v not supported", mc.Role)
		}
	}
	flush()
	return system, history, nil
}

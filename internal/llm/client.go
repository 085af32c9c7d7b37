package llm

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sirupsen/logrus"

	"contact-insights-go/internal/apperr"
	"contact-insights-go/internal/logger"
)

const serviceName = "llm"

// Completion is the model output for one analysis run: the first text block
// plus token usage counters.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Client wraps the chat-completions API. One synchronous call per analysis;
// never retried, since a retry is a second billed generation.
type Client struct {
	client       *openai.Client
	defaultModel string
	log          *logrus.Entry
}

func NewClient(baseURL, apiKey, defaultModel string) *Client {
	options := []option.RequestOption{}
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}
	if apiKey != "" {
		options = append(options, option.WithAPIKey(apiKey))
	}
	client := openai.NewClient(options...)
	return &Client{
		client:       &client,
		defaultModel: defaultModel,
		log:          logger.Component(serviceName),
	}
}

// Chat sends one prompt and returns the generated text. model overrides the
// default when the active prompt's settings name one.
func (c *Client) Chat(ctx context.Context, prompt, model string) (Completion, error) {
	if model == "" {
		model = c.defaultModel
	}
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: model,
	})
	if err != nil {
		return Completion{}, apperr.UpstreamWrap(serviceName, err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, apperr.Upstream(serviceName, 0, "model returned no content choices")
	}

	out := Completion{
		Text:         resp.Choices[0].Message.Content,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}
	c.log.WithFields(logrus.Fields{
		"model":         model,
		"input_tokens":  out.InputTokens,
		"output_tokens": out.OutputTokens,
	}).Info("model invocation completed")
	return out, nil
}

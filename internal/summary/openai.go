package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/ai-daily/newsdigest/internal/model"
)

// ErrDisabled is returned when no API key is configured. Callers are
// expected to fall back to a local summary on any error, this one
// included.
var ErrDisabled = errors.New("summarizer disabled: no API key")

var depthInstruction = map[model.SummaryDepth]string{
	model.DepthHeadlines: "Return one concise headline sentence.",
	model.DepthShort:     "Return 2-3 concise sentences.",
	model.DepthDetailed:  "Return one informative paragraph.",
}

// OpenAISummarizer produces digest summaries through the chat
// completions API.
type OpenAISummarizer struct {
	client  *openai.Client
	model   string
	enabled bool
}

func NewOpenAISummarizer(apiKey, modelName string, log *slog.Logger) *OpenAISummarizer {
	log.Info("openai summarizer", "enabled", apiKey != "", "model", modelName)

	return &OpenAISummarizer{
		client:  openai.NewClient(apiKey),
		model:   modelName,
		enabled: apiKey != "",
	}
}

// Summarize asks the model for a summary of the given article in the
// requested language and depth.
func (s *OpenAISummarizer) Summarize(ctx context.Context, title, content, language string, depth model.SummaryDepth) (string, error) {
	if !s.enabled {
		return "", ErrDisabled
	}

	instruction, ok := depthInstruction[depth]
	if !ok {
		instruction = depthInstruction[model.DepthShort]
	}

	request := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf("You summarize AI news for daily digests. Language: %s. %s", language, instruction),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Title: %s\n\nContent:\n%s", title, content),
			},
		},
		MaxTokens:   256,
		Temperature: 0.2,
	}

	resp, err := s.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}

	rawSummary := strings.TrimSpace(resp.Choices[0].Message.Content)
	if rawSummary == "" {
		return "", errors.New("empty completion")
	}
	if strings.HasSuffix(rawSummary, ".") {
		return rawSummary, nil
	}

	// The model sometimes stops mid-sentence at the token limit;
	// keep only complete sentences.
	sentences := strings.Split(rawSummary, ".")
	if len(sentences) < 2 {
		return rawSummary, nil
	}

	return strings.Join(sentences[:len(sentences)-1], ".") + ".", nil
}

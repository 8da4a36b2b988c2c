package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mikey/email-triage/internal/core"
	"github.com/mikey/email-triage/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClient is an implementation of the MLClient interface using OpenAI
type OpenAIClient struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	labels        []string
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
	promptFormat  string
}

// classifyResponse represents the structured response from the model
type classifyResponse struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	labels []string,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *OpenAIClient {
	client := openai.NewClient(apiKey)

	return &OpenAIClient{
		client:        client,
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		labels:        labels,
		logger:        logger,
		textProcessor: textProcessor,
		promptFormat: `You are an email triage classifier. Assign the following email to exactly one category.
Allowed categories: %s.
Respond with a JSON object containing:
- label: string (one of the allowed categories)
- confidence: number between 0 and 1 (how confident you are in the assignment)

Email:
From: %s
Subject: %s
Snippet: %s
Body:
%s

Respond only with the JSON object and nothing else.`,
	}
}

// ClassifyEmail assigns a category label and confidence to an email
func (c *OpenAIClient) ClassifyEmail(ctx context.Context, email *core.Email) (*core.MLResult, error) {
	processedBody := c.textProcessor.ProcessText(email.Body, c.maxBodySize)
	prompt := fmt.Sprintf(c.promptFormat,
		strings.Join(c.labels, ", "), email.From, email.Subject, email.Snippet, processedBody)

	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an email triage classifier. Respond only with JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}

	responseFormat := openai.ChatCompletionResponseFormat{
		Type: "json",
	}
	req.ResponseFormat = &responseFormat

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	parsed, err := parseClassifyResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	return &core.MLResult{
		Label:        parsed.Label,
		Confidence:   parsed.Confidence,
		ModelVersion: c.modelName,
	}, nil
}

// parseClassifyResponse parses the model's JSON reply, tolerating prose
// around the JSON object.
func parseClassifyResponse(text string) (*classifyResponse, error) {
	var parsed classifyResponse
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		return &parsed, nil
	}

	jsonStart := strings.Index(text, "{")
	jsonEnd := strings.LastIndex(text, "}")
	if jsonStart < 0 || jsonEnd <= jsonStart {
		return nil, fmt.Errorf("failed to extract JSON from model response")
	}
	if err := json.Unmarshal([]byte(text[jsonStart:jsonEnd+1]), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse model response as JSON: %w", err)
	}
	return &parsed, nil
}

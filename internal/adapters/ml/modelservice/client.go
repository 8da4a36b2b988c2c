package modelservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mikey/email-triage/internal/core"
	"go.uber.org/zap"
)

// Client is an implementation of the MLClient interface against the HTTP
// model service (DistilBERT categorizer).
type Client struct {
	httpClient *http.Client
	baseURL    string
	modelName  string
	logger     *zap.Logger
}

// predictRequest is the model service input document
type predictRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// predictResponse is the model service prediction document
type predictResponse struct {
	Label        string             `json:"label"`
	Confidence   float64            `json:"confidence"`
	Scores       map[string]float64 `json:"scores,omitempty"`
	ModelVersion string             `json:"model_version,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// NewClient creates a new model service client
func NewClient(httpClient *http.Client, baseURL, modelName string, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		modelName:  modelName,
		logger:     logger,
	}
}

// ClassifyEmail assigns a category label and confidence to an email
func (c *Client) ClassifyEmail(ctx context.Context, email *core.Email) (*core.MLResult, error) {
	body := email.Body
	if body == "" {
		body = email.Snippet
	}
	payload, err := json.Marshal(predictRequest{
		Subject: email.Subject,
		Body:    body,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal prediction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/predict", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build prediction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("model service returned %d: %s", resp.StatusCode, string(data))
	}

	var prediction predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&prediction); err != nil {
		return nil, fmt.Errorf("failed to decode prediction response: %w", err)
	}
	if prediction.Error != "" {
		return nil, fmt.Errorf("model service prediction error: %s", prediction.Error)
	}
	if prediction.Label == "" {
		return nil, fmt.Errorf("model service returned empty label")
	}

	modelVersion := prediction.ModelVersion
	if modelVersion == "" {
		modelVersion = c.modelName
	}

	return &core.MLResult{
		Label:        prediction.Label,
		Confidence:   prediction.Confidence,
		ModelVersion: modelVersion,
	}, nil
}

// Labels fetches the category labels the model can produce.
func (c *Client) Labels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/labels", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build labels request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model service returned %d", resp.StatusCode)
	}

	var parsed struct {
		Labels []string `json:"labels"`
		Count  int      `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode labels response: %w", err)
	}
	return parsed.Labels, nil
}

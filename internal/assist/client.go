// Package assist is the HTTP client for the cloud code-assist API: quota
// reads, onboarding, and model generation calls.
package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wakeguard/wakeguard/internal/errors"
	"github.com/wakeguard/wakeguard/internal/logging"
	"github.com/wakeguard/wakeguard/internal/models"
)

const (
	// DefaultBaseURL is the production assist endpoint.
	DefaultBaseURL = "https://cloudcode-pa.googleapis.com"
	// DefaultUserAgent mimics the IDE client the API expects.
	DefaultUserAgent = "wakeguard/1.0"
)

// Client talks to the assist API. All calls take the bearer token explicitly;
// the client holds no credential state.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	logger    *logging.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API endpoint, used by tests.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		c.http = h
	}
}

// NewClient creates an assist API client.
func NewClient(logger *logging.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
		http:      &http.Client{},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tier is one allowed onboarding tier.
type Tier struct {
	ID        string `json:"id"`
	IsDefault bool   `json:"isDefault,omitempty"`
}

// AssistStatus is the response of the load-assist-status call.
type AssistStatus struct {
	ProjectID    string `json:"cloudaicompanionProject,omitempty"`
	CurrentTier  *Tier  `json:"currentTier,omitempty"`
	AllowedTiers []Tier `json:"allowedTiers,omitempty"`
}

// LoadAssistStatus fetches the account's project and tier information.
func (c *Client) LoadAssistStatus(ctx context.Context, token string) (*AssistStatus, error) {
	var status AssistStatus
	if err := c.post(ctx, token, "v1internal:loadCodeAssist", map[string]interface{}{
		"metadata": c.clientMetadata(),
	}, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Onboard requests onboarding into a tier and returns the project ID if the
// operation has produced one yet.
func (c *Client) Onboard(ctx context.Context, token, tierID string) (string, error) {
	var resp struct {
		Done     bool `json:"done"`
		Response struct {
			Project struct {
				ID string `json:"id"`
			} `json:"cloudaicompanionProject"`
		} `json:"response"`
	}
	err := c.post(ctx, token, "v1internal:onboardUser", map[string]interface{}{
		"tierId":   tierID,
		"metadata": c.clientMetadata(),
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Response.Project.ID, nil
}

// GenerateResult is the outcome of a generation call.
type GenerateResult struct {
	Text       string
	TokensUsed *models.TokenUsage
}

// GenerateContent sends one prompt to a model. A zero maxOutputTokens leaves
// the model's output uncapped.
func (c *Client) GenerateContent(ctx context.Context, token, projectID, modelID, prompt string, maxOutputTokens int) (*GenerateResult, error) {
	request := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"role":  "user",
				"parts": []map[string]string{{"text": prompt}},
			},
		},
	}
	if maxOutputTokens > 0 {
		request["generationConfig"] = map[string]interface{}{
			"maxOutputTokens": maxOutputTokens,
		}
	}

	payload := map[string]interface{}{
		"model":   modelID,
		"request": request,
	}
	if projectID != "" {
		payload["project"] = projectID
	}

	var resp struct {
		Response struct {
			Candidates []struct {
				Content struct {
					Parts []struct {
						Text string `json:"text"`
					} `json:"parts"`
				} `json:"content"`
			} `json:"candidates"`
			UsageMetadata *struct {
				PromptTokenCount     int `json:"promptTokenCount"`
				CandidatesTokenCount int `json:"candidatesTokenCount"`
				TotalTokenCount      int `json:"totalTokenCount"`
			} `json:"usageMetadata"`
		} `json:"response"`
	}
	if err := c.post(ctx, token, "v1internal:generateContent", payload, &resp); err != nil {
		return nil, err
	}

	result := &GenerateResult{}
	for _, cand := range resp.Response.Candidates {
		for _, part := range cand.Content.Parts {
			result.Text += part.Text
		}
	}
	if usage := resp.Response.UsageMetadata; usage != nil {
		result.TokensUsed = &models.TokenUsage{
			Prompt:     usage.PromptTokenCount,
			Completion: usage.CandidatesTokenCount,
			Total:      usage.TotalTokenCount,
		}
	}
	return result, nil
}

// FetchQuotaSnapshot reads per-model quota and converts it to a snapshot.
func (c *Client) FetchQuotaSnapshot(ctx context.Context, token string) (*models.QuotaSnapshot, error) {
	var resp struct {
		Models []struct {
			ID          string `json:"id"`
			DisplayName string `json:"displayName"`
			QuotaInfo   *struct {
				RemainingFraction *float64  `json:"remainingFraction"`
				ResetTime         time.Time `json:"resetTime"`
			} `json:"quotaInfo"`
		} `json:"models"`
	}
	if err := c.post(ctx, token, "v1internal:fetchAvailableModels", map[string]interface{}{}, &resp); err != nil {
		return nil, err
	}

	now := time.Now()
	snapshot := &models.QuotaSnapshot{CollectedAt: now}
	for _, m := range resp.Models {
		quota := models.ModelQuota{ModelID: m.ID, DisplayName: m.DisplayName}
		if m.QuotaInfo != nil {
			if m.QuotaInfo.RemainingFraction != nil {
				pct := *m.QuotaInfo.RemainingFraction * 100
				quota.RemainingPercentage = &pct
				quota.IsExhausted = pct <= 0
			}
			if !m.QuotaInfo.ResetTime.IsZero() {
				ms := m.QuotaInfo.ResetTime.Sub(now).Milliseconds()
				if ms < 0 {
					ms = 0
				}
				quota.TimeUntilResetMs = &ms
			}
		}
		snapshot.Models = append(snapshot.Models, quota)
	}
	return snapshot, nil
}

func (c *Client) clientMetadata() map[string]string {
	return map[string]string{
		"ideType":    "IDE_UNSPECIFIED",
		"platform":   "PLATFORM_UNSPECIFIED",
		"pluginType": "GEMINI",
	}
}

func (c *Client) post(ctx context.Context, token, method string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &errors.ErrRequestFailed{Operation: method, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return &errors.ErrRequestFailed{Operation: method, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return &errors.ErrRequestFailed{Operation: method, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &errors.ErrRequestFailed{Operation: method, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		if c.logger != nil {
			c.logger.Debug("assist call failed",
				"method", method, "status", resp.StatusCode, "body", truncateBody(data))
		}
		return &errors.ErrRequestFailed{Operation: method, Status: resp.StatusCode}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &errors.ErrRequestFailed{Operation: method, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func truncateBody(data []byte) string {
	const max = 256
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}

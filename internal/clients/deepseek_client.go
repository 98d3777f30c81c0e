package clients

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"triage_service/internal/domain"

	"github.com/sirupsen/logrus"
)

const maxUpstreamBody = 4 << 20

// DiagnosisPrompt asks the model to answer with the labelled lines the
// diagnosis parser looks for.
const DiagnosisPrompt = "请分析这张皮肤病图片，判断是否为银屑病或特应性皮炎（湿疹）。请按以下格式逐行回答：\n" +
	"疾病类型：银屑病/特应性皮炎/无法确定\n" +
	"置信度：0-100%\n" +
	"主要症状：用顿号分隔\n" +
	"严重程度：轻度/中度/重度\n" +
	"受影响部位：用顿号分隔\n" +
	"治疗建议：用句号分隔"

type ImageURL struct {
	URL string `json:"url"`
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ChatMessage struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p,omitempty"`
}

type ChatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// VisionClient returns the model's free-text opinion about an image.
type VisionClient interface {
	AnalyzeImage(ctx context.Context, image domain.Image) (string, error)
}

type DeepseekConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
	Retry    RetryPolicy
}

type deepseekClient struct {
	endpoint string
	apiKey   string
	model    string
	timeout  time.Duration
	doer     HTTPDoer
	log      *logrus.Logger
}

func NewDeepseekClient(cfg DeepseekConfig, logger *logrus.Logger) VisionClient {
	base := &http.Client{Timeout: cfg.Timeout}
	return &deepseekClient{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		timeout:  cfg.Timeout,
		doer:     NewRetryingDoer(base, cfg.Retry, logger),
		log:      logger,
	}
}

func BuildChatRequest(model string, image domain.Image) ChatRequest {
	mimeType := image.MimeType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image.Data))
	return ChatRequest{
		Model: model,
		Messages: []ChatMessage{{
			Role: "user",
			Content: []ContentPart{
				{Type: "text", Text: DiagnosisPrompt},
				{Type: "image_url", ImageURL: &ImageURL{URL: dataURL}},
			},
		}},
		MaxTokens:   1000,
		Temperature: 0.2,
		TopP:        0.9,
	}
}

func (c *deepseekClient) AnalyzeImage(ctx context.Context, image domain.Image) (string, error) {
	if c.apiKey == "" {
		return "", domain.ErrNotConfigured
	}

	payload, err := json.Marshal(BuildChatRequest(c.model, image))
	if err != nil {
		return "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	// attempts and backoff waits share one deadline
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.log.Infof("DeepseekClient: Sending image %s (%d bytes) to %s", image.Filename, len(image.Data), req.URL.Redacted())
	resp, err := c.doer.Do(req)
	if err != nil {
		if IsTimeout(err) {
			c.log.Errorf("DeepseekClient: Request timed out: %v", err)
			return "", fmt.Errorf("%w: %v", domain.ErrGatewayTimeout, err)
		}
		c.log.Errorf("DeepseekClient: No response from upstream: %v", err)
		return "", fmt.Errorf("%w: %v", domain.ErrBadGateway, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		if IsTimeout(err) {
			return "", fmt.Errorf("%w: reading response: %v", domain.ErrGatewayTimeout, err)
		}
		return "", fmt.Errorf("%w: reading response: %v", domain.ErrBadGateway, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.log.Warnf("DeepseekClient: Upstream returned status %d", resp.StatusCode)
		return "", &domain.UpstreamError{StatusCode: resp.StatusCode, Body: body}
	}

	var chat ChatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		c.log.Errorf("DeepseekClient: Failed to decode response: %v", err)
		return "", fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	if len(chat.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", domain.ErrMalformedResponse)
	}

	content := chat.Choices[0].Message.Content
	c.log.Debugf("DeepseekClient: Received %d characters of model output", len(content))
	return content, nil
}

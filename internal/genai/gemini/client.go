package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fitting-mcp/common"
	"fitting-mcp/internal/utils"

	"google.golang.org/genai"
)

// 默认请求超时时间
const defaultGenAITimeout = 60 * time.Second

// Result 一次视觉调用的输出：文本补全和/或内联图片
type Result struct {
	Text      string
	ImageData []byte
	MimeType  string
}

// HasImage 是否带有内联图片
func (r *Result) HasImage() bool {
	return r != nil && len(r.ImageData) > 0
}

// Client Gemini 视觉客户端实现
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// Config Gemini 客户端配置
type Config struct {
	APIKey    string
	BaseURL   string // 自定义 Base URL，为空则使用默认值
	ModelName string // 例如 gemini-2.5-flash
	Timeout   time.Duration
}

// NewClientFromConfig 从应用配置创建 Gemini 客户端
func NewClientFromConfig(cfg *common.Config) (*Client, error) {
	return NewClient(Config{
		APIKey:    cfg.GeminiAPIKey,
		BaseURL:   cfg.GeminiBaseURL,
		ModelName: cfg.GeminiModel,
		Timeout:   time.Duration(cfg.GenAITimeoutSeconds) * time.Second,
	})
}

// NewClient 创建新的 Gemini 客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("model name is required")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		}
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultGenAITimeout
	}

	return &Client{
		client:  client,
		model:   cfg.ModelName,
		timeout: timeout,
	}, nil
}

// Analyze 把图片和指令一起发给模型，收集文本与内联图片输出
func (c *Client) Analyze(ctx context.Context, prompt string, imageData []byte, mimeType string) (*Result, error) {
	common.WithFields(map[string]interface{}{
		"model":     c.model,
		"prompt":    utils.TruncateForLog(prompt, 200),
		"mime_type": mimeType,
		"size":      len(imageData),
	}).Debug("Starting Gemini vision call")

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	parts := []*genai.Part{
		{
			InlineData: &genai.Blob{
				Data:     imageData,
				MIMEType: mimeType,
			},
		},
		{Text: prompt},
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, []*genai.Content{
		{Role: "user", Parts: parts},
	}, nil)
	if err != nil {
		common.WithError(err).WithField("model", c.model).Error("Failed to call Gemini API")
		return nil, fmt.Errorf("failed to call gemini: %w", toAPIError(err))
	}

	out, err := parseResult(result)
	if err != nil {
		return nil, err
	}

	common.WithFields(map[string]interface{}{
		"model":     c.model,
		"has_text":  out.Text != "",
		"has_image": out.HasImage(),
	}).Debug("Gemini vision call finished")

	return out, nil
}

// parseResult 从首个候选中取出文本和第一张内联图片
func parseResult(result *genai.GenerateContentResponse) (*Result, error) {
	if result == nil || len(result.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}
	candidate := result.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("no content in candidate")
	}

	out := &Result{}
	var texts []string
	for _, part := range candidate.Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 && !out.HasImage() {
			out.ImageData = part.InlineData.Data
			out.MimeType = part.InlineData.MIMEType
			continue
		}
		if part.Text != "" && !part.Thought {
			texts = append(texts, part.Text)
		}
	}
	out.Text = strings.TrimSpace(strings.Join(texts, ""))
	return out, nil
}

// toAPIError 把 genai.APIError 转成带状态码的 utils.APIError
func toAPIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &utils.APIError{
			Provider:   "gemini",
			StatusCode: apiErr.Code,
			Body:       apiErr.Message,
		}
	}
	return err
}

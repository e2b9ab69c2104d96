package seedream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fitting-mcp/common"
	"fitting-mcp/internal/utils"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const defaultSeedreamTimeout = 60 * time.Second

// ImageIface Seedream 生图接口，返回原始 JSON 响应
type ImageIface interface {
	Generate(ctx context.Context, prompt string, imageURL string) ([]byte, error)
}

// Client 火山方舟 Seedream 客户端，走 OpenAI 兼容的 images/generations 接口
type Client struct {
	client openai.Client
	model  string
	size   string
}

// Config Seedream 客户端配置
type Config struct {
	APIKey  string
	BaseURL string // 例如 https://ark.cn-beijing.volces.com/api/v3
	Model   string // 推理接入点或模型名，例如 doubao-seedream-4-5-251128
	Size    string // 例如 1024x1024
	Timeout time.Duration
}

// NewClientFromConfig 从应用配置创建 Seedream 客户端
func NewClientFromConfig(cfg *common.Config) (*Client, error) {
	return NewClient(Config{
		APIKey:  cfg.SeedreamAPIKey,
		BaseURL: cfg.SeedreamBaseURL,
		Model:   cfg.SeedreamModel,
		Size:    cfg.SeedreamSize,
		Timeout: time.Duration(cfg.GenAITimeoutSeconds) * time.Second,
	})
}

// NewClient 创建 Seedream 客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("seedream API key is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("seedream base URL is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("seedream model is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSeedreamTimeout
	}
	size := cfg.Size
	if size == "" {
		size = "1024x1024"
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithRequestTimeout(timeout),
		// 不在这一层重试
		option.WithMaxRetries(0),
	)

	return &Client{
		client: client,
		model:  cfg.Model,
		size:   size,
	}, nil
}

// Generate 以参考图 + 提示词生成一张图片，返回原始 JSON（{"data":[{"url":...}]}）
func (c *Client) Generate(ctx context.Context, prompt string, imageURL string) ([]byte, error) {
	common.WithFields(map[string]interface{}{
		"model":     c.model,
		"size":      c.size,
		"prompt":    utils.TruncateForLog(prompt, 200),
		"image_url": utils.TruncateForLog(imageURL, 200),
	}).Info("Calling Seedream image generation")

	var opts []option.RequestOption
	if imageURL != "" {
		// 方舟在 OpenAI 请求体之外扩展了 image 字段作为参考图
		opts = append(opts, option.WithJSONSet("image", imageURL))
	}

	resp, err := c.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(c.model),
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize(c.size),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatURL,
	}, opts...)
	if err != nil {
		common.WithError(err).WithField("model", c.model).Error("Seedream image generation failed")
		return nil, fmt.Errorf("failed to generate image: %w", toAPIError(err))
	}

	return []byte(resp.RawJSON()), nil
}

// toAPIError 把 openai.Error 转成带状态码的 utils.APIError
func toAPIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &utils.APIError{
			Provider:   "seedream",
			StatusCode: apiErr.StatusCode,
			Body:       apiErr.Message,
		}
	}
	return err
}

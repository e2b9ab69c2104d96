package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fitting-mcp/common"
	"fitting-mcp/internal/utils"

	"github.com/tidwall/gjson"
)

const (
	// 默认请求超时时间（单次 HTTP 调用）
	defaultFalTimeout = 60 * time.Second
	// 队列模式下的默认轮询间隔
	defaultPollInterval = time.Second

	ModeQueue = "queue"
	ModeSync  = "sync"
)

// Client fal.ai 渲染客户端。
//
// 两种调用方式：
//   - sync:  POST https://fal.run/{model}，响应体即结果
//   - queue: POST https://queue.fal.run/{model} 提交，轮询 status_url 直到 COMPLETED，再 GET response_url
type Client struct {
	httpClient *http.Client

	apiKey   string
	runURL   string
	queueURL string
	model    string
	mode     string

	pollInterval time.Duration
	timeout      time.Duration
}

// Config fal 客户端配置
type Config struct {
	APIKey   string
	RunURL   string // 默认 https://fal.run
	QueueURL string // 默认 https://queue.fal.run
	Model    string // 例如 fal-ai/flux/dev/image-to-image
	Mode     string // queue（默认）或 sync

	PollInterval time.Duration
	Timeout      time.Duration
}

// ImageToImageRequest 图生图请求参数
type ImageToImageRequest struct {
	ImageURL string  `json:"image_url"`
	Prompt   string  `json:"prompt"`
	Strength float64 `json:"strength"`
	// 可选参数，零值不发送
	NumInferenceSteps int     `json:"num_inference_steps,omitempty"`
	GuidanceScale     float64 `json:"guidance_scale,omitempty"`
}

// NewClientFromConfig 从应用配置创建 fal 渲染客户端
func NewClientFromConfig(cfg *common.Config) (*Client, error) {
	return NewClient(Config{
		APIKey:       cfg.FalAPIKey,
		RunURL:       cfg.FalRunURL,
		QueueURL:     cfg.FalQueueURL,
		Model:        cfg.FalModel,
		Mode:         cfg.FalMode,
		PollInterval: time.Duration(cfg.FalPollIntervalMS) * time.Millisecond,
		Timeout:      time.Duration(cfg.GenAITimeoutSeconds) * time.Second,
	})
}

// NewClient 创建 fal 渲染客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("fal API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("fal model is required")
	}

	mode := strings.ToLower(cfg.Mode)
	if mode == "" {
		mode = ModeQueue
	}
	if mode != ModeQueue && mode != ModeSync {
		return nil, fmt.Errorf("unsupported fal mode: %s", cfg.Mode)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultFalTimeout
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	c := &Client{
		httpClient:   &http.Client{Timeout: timeout},
		apiKey:       cfg.APIKey,
		runURL:       strings.TrimRight(cfg.RunURL, "/"),
		queueURL:     strings.TrimRight(cfg.QueueURL, "/"),
		model:        strings.Trim(cfg.Model, "/"),
		mode:         mode,
		pollInterval: pollInterval,
		timeout:      timeout,
	}
	if c.runURL == "" {
		c.runURL = "https://fal.run"
	}
	if c.queueURL == "" {
		c.queueURL = "https://queue.fal.run"
	}
	return c, nil
}

// ImageToImage 调用图生图应用，返回原始 JSON 响应
func (c *Client) ImageToImage(ctx context.Context, req ImageToImageRequest) ([]byte, error) {
	if req.ImageURL == "" {
		return nil, fmt.Errorf("fal: image URL is required")
	}

	common.WithFields(map[string]interface{}{
		"model":     c.model,
		"mode":      c.mode,
		"image_url": utils.TruncateForLog(req.ImageURL, 200),
		"prompt":    utils.TruncateForLog(req.Prompt, 200),
		"strength":  req.Strength,
	}).Info("Calling fal image-to-image")

	if c.mode == ModeSync {
		return c.doRequest(ctx, http.MethodPost, c.runURL+"/"+c.model, req)
	}
	return c.subscribe(ctx, req)
}

// subscribe 提交队列任务并等待结果
func (c *Client) subscribe(ctx context.Context, req ImageToImageRequest) ([]byte, error) {
	body, err := c.doRequest(ctx, http.MethodPost, c.queueURL+"/"+c.model, req)
	if err != nil {
		return nil, fmt.Errorf("failed to submit fal request: %w", err)
	}

	submitted := gjson.ParseBytes(body)
	requestID := submitted.Get("request_id").String()
	if requestID == "" {
		common.WithField("body", utils.TruncateForLog(string(body), 512)).Error("fal submit response missing request_id")
		return nil, fmt.Errorf("fal submit response missing request_id")
	}

	statusURL := submitted.Get("status_url").String()
	responseURL := submitted.Get("response_url").String()
	if statusURL == "" || responseURL == "" {
		base := c.queueURL + "/" + appID(c.model) + "/requests/" + requestID
		statusURL = base + "/status"
		responseURL = base
	}

	common.WithField("request_id", requestID).Debug("fal request queued")

	for {
		status, err := c.queryStatus(ctx, statusURL)
		if err != nil {
			return nil, err
		}
		if status == "COMPLETED" {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for fal request %s: %w", requestID, ctx.Err())
		case <-time.After(c.pollInterval):
		}
	}

	result, err := c.doRequest(ctx, http.MethodGet, responseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch fal result: %w", err)
	}
	return result, nil
}

// queryStatus 查询队列任务状态：IN_QUEUE / IN_PROGRESS / COMPLETED
func (c *Client) queryStatus(ctx context.Context, statusURL string) (string, error) {
	body, err := c.doRequest(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to query fal status: %w", err)
	}

	status := strings.ToUpper(gjson.GetBytes(body, "status").String())
	switch status {
	case "IN_QUEUE", "IN_PROGRESS", "COMPLETED":
		return status, nil
	default:
		common.WithField("body", utils.TruncateForLog(string(body), 512)).Error("fal returned unexpected queue status")
		return "", fmt.Errorf("unexpected fal queue status %q", status)
	}
}

// doRequest 统一封装 HTTP 请求逻辑，认证头为 "Authorization: Key <apiKey>"
func (c *Client) doRequest(ctx context.Context, method, url string, body interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		common.WithFields(map[string]interface{}{
			"status_code": resp.StatusCode,
			"url":         url,
			"body":        utils.TruncateForLog(string(respBody), 512),
		}).Error("fal API returned non-success status")
		return nil, &utils.APIError{Provider: "fal", StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}

// appID 取模型路径的前两段（owner/app），队列的 requests 路径只认应用名
func appID(model string) string {
	parts := strings.Split(model, "/")
	if len(parts) <= 2 {
		return model
	}
	return parts[0] + "/" + parts[1]
}

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

// Storage fal CDN 存储客户端。
//
// 上传分两步：
//  1. POST {storageURL}/storage/upload/initiate 拿到 upload_url 和 file_url
//  2. PUT 原始字节到 upload_url
type Storage struct {
	httpClient *http.Client
	apiKey     string
	storageURL string
}

// NewStorage 创建 fal 存储客户端
func NewStorage(apiKey, storageURL string, timeout time.Duration) (*Storage, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("fal API key is required")
	}
	if timeout <= 0 {
		timeout = defaultFalTimeout
	}
	storageURL = strings.TrimRight(storageURL, "/")
	if storageURL == "" {
		storageURL = "https://rest.alpha.fal.ai"
	}
	return &Storage{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		storageURL: storageURL,
	}, nil
}

// NewStorageFromConfig 从应用配置创建 fal 存储客户端
func NewStorageFromConfig(cfg *common.Config) (*Storage, error) {
	return NewStorage(cfg.FalAPIKey, cfg.FalStorageURL, time.Duration(cfg.GenAITimeoutSeconds)*time.Second)
}

// Upload 上传图片，返回可公开访问的 URL
func (s *Storage) Upload(ctx context.Context, data []byte, mimeType string) (string, error) {
	fileName := utils.GenerateImageFileName(mimeType)

	common.WithFields(map[string]interface{}{
		"file_name":    fileName,
		"content_type": mimeType,
		"size":         len(data),
	}).Debug("Uploading image to fal storage")

	payload, err := json.Marshal(map[string]string{
		"content_type": mimeType,
		"file_name":    fileName,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal initiate body: %w", err)
	}

	initiate, err := s.do(ctx, http.MethodPost, s.storageURL+"/storage/upload/initiate?storage_type=fal-cdn-v3", "application/json", payload, true)
	if err != nil {
		return "", fmt.Errorf("failed to initiate fal upload: %w", err)
	}

	initiated := gjson.ParseBytes(initiate)
	uploadURL := initiated.Get("upload_url").String()
	if uploadURL == "" {
		return "", fmt.Errorf("fal initiate response missing upload_url")
	}

	putResp, err := s.do(ctx, http.MethodPut, uploadURL, mimeType, data, false)
	if err != nil {
		return "", fmt.Errorf("failed to put image to fal storage: %w", err)
	}

	// 上传响应里若带地址则优先使用，否则用 initiate 返回的 file_url
	location := ParseLocation(putResp)
	if location == "" {
		location = ParseLocation(initiate)
	}
	if location == "" {
		return "", fmt.Errorf("fal upload returned no usable location")
	}

	common.WithField("url", location).Info("Image uploaded to fal storage")
	return location, nil
}

// ParseLocation 从上传响应里取出文件地址：JSON 字符串本身，或对象的 file_url / url 字段
func ParseLocation(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	result := gjson.ParseBytes(body)
	if result.Type == gjson.String {
		return result.String()
	}
	if !result.IsObject() {
		return ""
	}
	for _, key := range []string{"file_url", "url"} {
		if v := result.Get(key); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// do 发送存储请求。预签名的 upload_url 不能再带认证头。
func (s *Storage) do(ctx context.Context, method, url, contentType string, body []byte, auth bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if auth {
		req.Header.Set("Authorization", "Key "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
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
			"body":        utils.TruncateForLog(string(respBody), 512),
		}).Error("fal storage returned non-success status")
		return nil, &utils.APIError{Provider: "fal-storage", StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

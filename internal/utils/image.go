package utils

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DownloadImageFromURL 从 URL 下载图片，返回图片数据和 MIME 类型
func DownloadImageFromURL(ctx context.Context, url string) ([]byte, string, error) {
	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download image: status code %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	// Content-Type 可能带 charset 等参数
	mimeType := resp.Header.Get("Content-Type")
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" || !strings.HasPrefix(mimeType, "image/") {
		mimeType = InferMimeTypeFromURL(url)
	}

	return imageData, mimeType, nil
}

// InferMimeTypeFromURL 从 URL 推断 MIME 类型（不区分大小写）
func InferMimeTypeFromURL(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	lower := strings.ToLower(url)
	switch {
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	}
	return "image/jpeg"
}

// IsDataURI 判断是否为 data URI
func IsDataURI(s string) bool {
	return strings.HasPrefix(s, "data:")
}

// IsHTTPURL 判断是否为 http(s) URL
func IsHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// ParseDataURI 解析 data:<mime>;base64,<payload>，返回解码后的数据和 MIME 类型
func ParseDataURI(dataURI string) ([]byte, string, error) {
	if !IsDataURI(dataURI) {
		return nil, "", fmt.Errorf("not a data URI")
	}

	parts := strings.SplitN(dataURI, ",", 2)
	if len(parts) != 2 {
		return nil, "", fmt.Errorf("invalid data URI format")
	}

	meta := strings.TrimPrefix(parts[0], "data:")
	if !strings.HasSuffix(meta, ";base64") {
		return nil, "", fmt.Errorf("data URI is not base64 encoded")
	}
	mimeType := strings.TrimSuffix(meta, ";base64")
	// 去掉 ;charset 之类的附加参数
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}

	data, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode base64 data: %w", err)
	}
	return data, mimeType, nil
}

// GenerateImagePath 生成图片路径：fittings/yyyy-MM-dd/
func GenerateImagePath() string {
	return fmt.Sprintf("fittings/%s/", time.Now().Format("2006-01-02"))
}

// GenerateImageFileName 生成图片文件名：{uuid}_{timestamp}.ext
func GenerateImageFileName(mimeType string) string {
	return fmt.Sprintf("%s_%d%s", uuid.New().String(), time.Now().Unix(), GetExtensionFromMimeType(mimeType))
}

// GetExtensionFromMimeType 根据 MIME 类型获取文件扩展名（不区分大小写）
func GetExtensionFromMimeType(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	default:
		return ".jpg"
	}
}

// TruncateForLog 截断长字符串用于日志，避免打印过长内容（如 base64）
func TruncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

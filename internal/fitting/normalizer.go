package fitting

import (
	"context"
	"fmt"

	"fitting-mcp/common"
	"fitting-mcp/internal/utils"
)

// Uploader 把图片字节写入共享素材存储，返回可公开拉取的 URL
type Uploader interface {
	Upload(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Fetcher 下载远程图片
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// HTTPFetcher 基于 utils.DownloadImageFromURL 的 Fetcher
type HTTPFetcher struct{}

// Fetch 下载图片
func (HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	return utils.DownloadImageFromURL(ctx, url)
}

// Normalizer 把源图片转换成后端需要的形态，总是返回新的引用
type Normalizer struct {
	uploader Uploader
	fetcher  Fetcher
}

// NewNormalizer 创建 Normalizer，fetcher 为 nil 时使用 HTTPFetcher
func NewNormalizer(uploader Uploader, fetcher Fetcher) *Normalizer {
	if fetcher == nil {
		fetcher = HTTPFetcher{}
	}
	return &Normalizer{uploader: uploader, fetcher: fetcher}
}

// Normalize 转换图片形态：
//   - Inline -> Remote：上传到共享存储
//   - Remote -> Inline：下载
//   - 形态一致：原样返回
func (n *Normalizer) Normalize(ctx context.Context, ref ImageReference, mode ImageMode) (ImageReference, error) {
	if err := ref.Validate(); err != nil {
		return ImageReference{}, err
	}
	if ref.Mode() == mode {
		return ref, nil
	}

	if mode == ImageModeRemote {
		inline, _ := ref.Inline()
		return n.upload(ctx, inline)
	}

	url, _ := ref.URL()
	data, mimeType, err := n.fetcher.Fetch(ctx, url)
	if err != nil {
		return ImageReference{}, fmt.Errorf("failed to download source image: %w", err)
	}
	fetched := InlineImage(data, mimeType)
	if err := fetched.Validate(); err != nil {
		return ImageReference{}, fmt.Errorf("downloaded source image is unusable: %w", err)
	}
	return fetched, nil
}

// upload 上传内联图片，返回 Remote 引用
func (n *Normalizer) upload(ctx context.Context, inline Inline) (ImageReference, error) {
	if n.uploader == nil {
		return ImageReference{}, fmt.Errorf("no image uploader configured")
	}

	// 复制一份，避免存储实现持有调用方的切片
	data := append([]byte(nil), inline.Data...)
	url, err := n.uploader.Upload(ctx, data, inline.MimeType)
	if err != nil {
		return ImageReference{}, fmt.Errorf("failed to upload source image: %w", err)
	}
	if !utils.IsHTTPURL(url) {
		return ImageReference{}, fmt.Errorf("upload returned no usable location: %q", url)
	}

	common.WithFields(map[string]interface{}{
		"mime_type": inline.MimeType,
		"size":      len(inline.Data),
		"url":       url,
	}).Debug("Source image uploaded")

	return RemoteImage(url), nil
}

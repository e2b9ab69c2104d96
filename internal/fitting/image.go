package fitting

import (
	"fmt"
	"strings"

	"fitting-mcp/internal/utils"
)

// ImageMode 后端需要的图片形态
type ImageMode int

const (
	// ImageModeInline 图片字节随请求内联发送
	ImageModeInline ImageMode = iota
	// ImageModeRemote 后端自行拉取的网络 URL
	ImageModeRemote
)

func (m ImageMode) String() string {
	if m == ImageModeRemote {
		return "remote"
	}
	return "inline"
}

// Inline 内联图片
type Inline struct {
	Data     []byte
	MimeType string
}

// ImageReference 源图片引用，Inline 与 Remote 二选一
type ImageReference struct {
	inline *Inline
	url    string
}

// InlineImage 构造内联图片引用
func InlineImage(data []byte, mimeType string) ImageReference {
	return ImageReference{inline: &Inline{Data: data, MimeType: mimeType}}
}

// RemoteImage 构造远程图片引用
func RemoteImage(url string) ImageReference {
	return ImageReference{url: url}
}

// ParseImageReference 解析调用方传入的源图片：data URI 或 http(s) URL
func ParseImageReference(source string) (ImageReference, error) {
	source = strings.TrimSpace(source)
	switch {
	case source == "":
		return ImageReference{}, fmt.Errorf("source image is required")
	case utils.IsDataURI(source):
		data, mimeType, err := utils.ParseDataURI(source)
		if err != nil {
			return ImageReference{}, err
		}
		ref := InlineImage(data, mimeType)
		if err := ref.Validate(); err != nil {
			return ImageReference{}, err
		}
		return ref, nil
	case utils.IsHTTPURL(source):
		return RemoteImage(source), nil
	default:
		return ImageReference{}, fmt.Errorf("source image must be a data URI or an http(s) URL")
	}
}

// Validate 校验引用：Inline 必须有图片 MIME 和非空数据，Remote 必须有 URL
func (r ImageReference) Validate() error {
	switch {
	case r.inline != nil && r.url != "":
		return fmt.Errorf("image reference cannot be both inline and remote")
	case r.inline != nil:
		if len(r.inline.Data) == 0 {
			return fmt.Errorf("inline image is empty")
		}
		if !strings.HasPrefix(strings.ToLower(r.inline.MimeType), "image/") {
			return fmt.Errorf("inline image has invalid mime type %q", r.inline.MimeType)
		}
		return nil
	case r.url != "":
		return nil
	default:
		return fmt.Errorf("image reference is empty")
	}
}

// Mode 当前引用的形态
func (r ImageReference) Mode() ImageMode {
	if r.inline != nil {
		return ImageModeInline
	}
	return ImageModeRemote
}

// Inline 返回内联数据
func (r ImageReference) Inline() (Inline, bool) {
	if r.inline == nil {
		return Inline{}, false
	}
	return *r.inline, true
}

// URL 返回远程地址
func (r ImageReference) URL() (string, bool) {
	return r.url, r.inline == nil && r.url != ""
}

// String 用于日志，不输出图片字节
func (r ImageReference) String() string {
	if r.inline != nil {
		return fmt.Sprintf("inline(%s, %d bytes)", r.inline.MimeType, len(r.inline.Data))
	}
	return fmt.Sprintf("remote(%s)", utils.TruncateForLog(r.url, 200))
}

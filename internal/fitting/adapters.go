package fitting

import (
	"context"
	"encoding/json"
	"fmt"

	"fitting-mcp/internal/genai/fal"
	"fitting-mcp/internal/genai/gemini"
	"fitting-mcp/internal/genai/seedream"
)

// VisionBackend 视觉模型适配器，需要内联图片
type VisionBackend struct {
	client gemini.VisionIface
}

// NewVisionBackend 创建视觉适配器
func NewVisionBackend(client gemini.VisionIface) *VisionBackend {
	return &VisionBackend{client: client}
}

func (b *VisionBackend) ImageMode() ImageMode { return ImageModeInline }

// Invoke 返回文本补全或内联图片，Body 是二者的摘要，便于出错时排查
func (b *VisionBackend) Invoke(ctx context.Context, image ImageReference, prompt string, _ InvokeOptions) (*RawResponse, error) {
	inline, ok := image.Inline()
	if !ok {
		return nil, fmt.Errorf("vision backend requires an inline image, got %s", image)
	}

	result, err := b.client.Analyze(ctx, prompt, inline.Data, inline.MimeType)
	if err != nil {
		return nil, err
	}

	raw := &RawResponse{Text: result.Text}
	summary := map[string]interface{}{"text": result.Text}
	if result.HasImage() {
		raw.Image = &Inline{Data: result.ImageData, MimeType: result.MimeType}
		summary["image"] = map[string]interface{}{"mime_type": result.MimeType, "size": len(result.ImageData)}
	}
	raw.Body, _ = json.Marshal(summary)
	return raw, nil
}

// RenderBackend fal 图生图适配器，需要远程图片 URL
type RenderBackend struct {
	client            fal.RenderIface
	numInferenceSteps int
	guidanceScale     float64
}

// NewRenderBackend 创建渲染适配器，steps / guidance 为 0 时不发送
func NewRenderBackend(client fal.RenderIface, numInferenceSteps int, guidanceScale float64) *RenderBackend {
	return &RenderBackend{
		client:            client,
		numInferenceSteps: numInferenceSteps,
		guidanceScale:     guidanceScale,
	}
}

func (b *RenderBackend) ImageMode() ImageMode { return ImageModeRemote }

func (b *RenderBackend) Invoke(ctx context.Context, image ImageReference, prompt string, opts InvokeOptions) (*RawResponse, error) {
	url, ok := image.URL()
	if !ok {
		return nil, fmt.Errorf("render backend requires a remote image, got %s", image)
	}

	body, err := b.client.ImageToImage(ctx, fal.ImageToImageRequest{
		ImageURL:          url,
		Prompt:            prompt,
		Strength:          opts.Strength,
		NumInferenceSteps: b.numInferenceSteps,
		GuidanceScale:     b.guidanceScale,
	})
	if err != nil {
		return nil, err
	}
	return &RawResponse{Body: body}, nil
}

// SeedreamBackend Seedream 适配器，需要远程图片 URL
type SeedreamBackend struct {
	client seedream.ImageIface
}

// NewSeedreamBackend 创建 Seedream 适配器
func NewSeedreamBackend(client seedream.ImageIface) *SeedreamBackend {
	return &SeedreamBackend{client: client}
}

func (b *SeedreamBackend) ImageMode() ImageMode { return ImageModeRemote }

func (b *SeedreamBackend) Invoke(ctx context.Context, image ImageReference, prompt string, _ InvokeOptions) (*RawResponse, error) {
	url, ok := image.URL()
	if !ok {
		return nil, fmt.Errorf("seedream backend requires a remote image, got %s", image)
	}

	body, err := b.client.Generate(ctx, prompt, url)
	if err != nil {
		return nil, err
	}
	return &RawResponse{Body: body}, nil
}

package fal

import "context"

// RenderIface fal 图生图接口，返回渲染应用的原始 JSON 响应
type RenderIface interface {
	ImageToImage(ctx context.Context, req ImageToImageRequest) ([]byte, error)
}

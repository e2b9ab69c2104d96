package gemini

import "context"

// VisionIface 视觉理解接口：输入一张内联图片和一段指令，返回文本或内联图片
type VisionIface interface {
	Analyze(ctx context.Context, prompt string, imageData []byte, mimeType string) (*Result, error)
}

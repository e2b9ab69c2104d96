package fitting

import "fmt"

// PromptMode 提示词用途
type PromptMode int

const (
	// PromptDirect 直接交给渲染后端
	PromptDirect PromptMode = iota
	// PromptAnalysis 让视觉模型看图后输出一段改写后的渲染提示词
	PromptAnalysis
)

// BuildPrompt 由服装描述和场景风格生成提示词，纯函数
func BuildPrompt(description, style string, mode PromptMode) string {
	if mode == PromptAnalysis {
		return fmt.Sprintf(
			"Look carefully at the pet in this photo: its species, breed, fur color and markings, face, body shape and pose. "+
				"Write one image-to-image rendering prompt, in English, that keeps this exact pet recognizable "+
				"and shows it wearing %s, posed in a %s background, professional pet fashion photography, photorealistic, 8k detail. "+
				"Reply with the prompt text only, without quotes, headings or explanations.",
			description, style,
		)
	}
	return fmt.Sprintf("High-end pet fashion photo of the pet wearing %s, %s background, 8k photorealistic", description, style)
}

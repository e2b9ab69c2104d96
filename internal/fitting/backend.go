package fitting

import (
	"context"
	"fmt"
	"sort"
)

// BackendID 后端标识
type BackendID string

const (
	// BackendVision 多模态视觉模型，先看图改写提示词，再交给渲染后端
	BackendVision BackendID = "vision"
	// BackendRender 托管的扩散模型图生图服务
	BackendRender BackendID = "render"
	// BackendSeedream 火山方舟 Seedream 参考图生图
	BackendSeedream BackendID = "seedream"
)

// InvokeOptions 单次后端调用参数
type InvokeOptions struct {
	// Strength 输出相对源图的偏离程度，0.0 ~ 1.0，只对渲染类后端有效
	Strength float64
}

// RawResponse 后端原始输出
type RawResponse struct {
	Body  []byte  // 原始 JSON，供 ExtractURL 使用
	Text  string  // 文本补全（视觉模型）
	Image *Inline // 内联图片（视觉模型直接出图时）
}

// Backend 一个远程生成后端的请求约定
type Backend interface {
	// ImageMode 该后端需要的源图片形态
	ImageMode() ImageMode
	Invoke(ctx context.Context, image ImageReference, prompt string, opts InvokeOptions) (*RawResponse, error)
}

// Step 路由中的一步。只有第一步按 Prompt 生成提示词，之后每一步使用上一步输出的文本。
type Step struct {
	Backend  BackendID
	Prompt   PromptMode
	Strength float64
}

// Route 一个对外 BackendID 对应的调用序列，严格按顺序执行
type Route struct {
	Steps []Step
}

// DefaultRoutes 根据已注册的后端生成路由：
//   - render:   渲染后端单步，direct 提示词，directStrength
//   - vision:   视觉模型改写提示词 -> 渲染后端，composedStrength
//   - seedream: Seedream 单步，direct 提示词
//
// 依赖的后端缺失时对应路由不生成。
func DefaultRoutes(backends map[BackendID]Backend, composedStrength, directStrength float64) map[BackendID]Route {
	candidates := map[BackendID]Route{
		BackendRender: {Steps: []Step{
			{Backend: BackendRender, Prompt: PromptDirect, Strength: directStrength},
		}},
		BackendVision: {Steps: []Step{
			{Backend: BackendVision, Prompt: PromptAnalysis},
			{Backend: BackendRender, Strength: composedStrength},
		}},
		BackendSeedream: {Steps: []Step{
			{Backend: BackendSeedream, Prompt: PromptDirect},
		}},
	}

	routes := make(map[BackendID]Route)
	for id, route := range candidates {
		if route.validate(backends) == nil {
			routes[id] = route
		}
	}
	return routes
}

func (r Route) validate(backends map[BackendID]Backend) error {
	if len(r.Steps) == 0 {
		return fmt.Errorf("route has no steps")
	}
	for _, step := range r.Steps {
		if _, ok := backends[step.Backend]; !ok {
			return fmt.Errorf("backend %q is not registered", step.Backend)
		}
		if !(step.Strength >= 0 && step.Strength <= 1) {
			return fmt.Errorf("strength %v for backend %q is outside [0, 1]", step.Strength, step.Backend)
		}
	}
	return nil
}

// imageModes 路由中用到的全部图片形态（去重，保持顺序）
func (r Route) imageModes(backends map[BackendID]Backend) []ImageMode {
	var modes []ImageMode
	seen := make(map[ImageMode]bool)
	for _, step := range r.Steps {
		mode := backends[step.Backend].ImageMode()
		if !seen[mode] {
			seen[mode] = true
			modes = append(modes, mode)
		}
	}
	return modes
}

func sortedIDs(routes map[BackendID]Route) []BackendID {
	ids := make([]BackendID, 0, len(routes))
	for id := range routes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

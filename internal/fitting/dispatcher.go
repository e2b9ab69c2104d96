package fitting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fitting-mcp/common"
	"fitting-mcp/internal/utils"
)

// DefaultStyle 未指定风格时使用的场景
const DefaultStyle = "Studio"

// State 一次生成所处的阶段，只用于日志
type State string

const (
	StateValidating  State = "validating"
	StateNormalizing State = "normalizing"
	StateInvoking    State = "invoking"
	StateExtracting  State = "extracting"
	StateSucceeded   State = "succeeded"
	StateFailed      State = "failed"
)

// GenerationRequest 一次生成请求，每次用户操作新建
type GenerationRequest struct {
	Backend     BackendID
	SourceImage string // data URI 或 http(s) URL
	Description string
	Style       string
}

// GenerationResult 生成结果
type GenerationResult struct {
	OutputURL string
}

// Generator 对外的生成入口
type Generator interface {
	Generate(ctx context.Context, backend, sourceImage, description, style string) (string, error)
	Backends() []BackendInfo
}

// BackendInfo 已注册后端的描述
type BackendInfo struct {
	ID    BackendID
	Steps []BackendID
}

// DispatcherConfig Dispatcher 构造参数，凭据只存在于各后端客户端中
type DispatcherConfig struct {
	Backends     map[BackendID]Backend
	Routes       map[BackendID]Route
	Normalizer   *Normalizer
	DefaultStyle string
	// Timeout 整个生成流程的期限，<= 0 表示不设期限
	Timeout time.Duration
}

// Dispatcher 生成调度：校验 -> 图片规整 -> 调用后端 -> 取图。
// 构造后只读，可并发使用。
type Dispatcher struct {
	backends     map[BackendID]Backend
	routes       map[BackendID]Route
	normalizer   *Normalizer
	defaultStyle string
	timeout      time.Duration
}

// NewDispatcher 创建 Dispatcher
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Normalizer == nil {
		return nil, fmt.Errorf("normalizer is required")
	}
	if len(cfg.Routes) == 0 {
		return nil, fmt.Errorf("at least one route is required")
	}

	backends := make(map[BackendID]Backend, len(cfg.Backends))
	for id, b := range cfg.Backends {
		backends[id] = b
	}
	routes := make(map[BackendID]Route, len(cfg.Routes))
	for id, route := range cfg.Routes {
		if err := route.validate(backends); err != nil {
			return nil, fmt.Errorf("invalid route %q: %w", id, err)
		}
		routes[id] = Route{Steps: append([]Step(nil), route.Steps...)}
	}

	style := cfg.DefaultStyle
	if style == "" {
		style = DefaultStyle
	}

	return &Dispatcher{
		backends:     backends,
		routes:       routes,
		normalizer:   cfg.Normalizer,
		defaultStyle: style,
		timeout:      cfg.Timeout,
	}, nil
}

// Backends 列出可用的 BackendID 及其调用序列
func (d *Dispatcher) Backends() []BackendInfo {
	var infos []BackendInfo
	for _, id := range sortedIDs(d.routes) {
		info := BackendInfo{ID: id}
		for _, step := range d.routes[id].Steps {
			info.Steps = append(info.Steps, step.Backend)
		}
		infos = append(infos, info)
	}
	return infos
}

// Generate 公共入口，返回输出图片 URL
func (d *Dispatcher) Generate(ctx context.Context, backend, sourceImage, description, style string) (string, error) {
	result, err := d.Run(ctx, GenerationRequest{
		Backend:     BackendID(strings.ToLower(strings.TrimSpace(backend))),
		SourceImage: sourceImage,
		Description: description,
		Style:       style,
	})
	if err != nil {
		return "", err
	}
	return result.OutputURL, nil
}

// Run 执行一次生成。任何失败都只返回一个 *GenerationError，不返回部分结果，也不重试。
func (d *Dispatcher) Run(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	result, err := d.run(ctx, req)
	if err != nil {
		common.WithError(err).WithFields(map[string]interface{}{
			"backend": req.Backend,
			"state":   StateFailed,
			"kind":    KindOf(err),
		}).Error("Fitting generation failed")
		return nil, err
	}

	common.WithFields(map[string]interface{}{
		"backend":    req.Backend,
		"state":      StateSucceeded,
		"output_url": result.OutputURL,
	}).Info("Fitting generation succeeded")
	return result, nil
}

func (d *Dispatcher) run(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	d.enter(StateValidating, req.Backend)
	if strings.TrimSpace(req.SourceImage) == "" {
		return nil, validationError("no source image provided", nil)
	}
	route, ok := d.routes[req.Backend]
	if !ok {
		return nil, unknownBackendError(req.Backend)
	}
	source, err := ParseImageReference(req.SourceImage)
	if err != nil {
		return nil, validationError("invalid source image", err)
	}
	style := req.Style
	if strings.TrimSpace(style) == "" {
		style = d.defaultStyle
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	// 所有需要的形态都在调用任何后端之前准备好
	d.enter(StateNormalizing, req.Backend)
	images := make(map[ImageMode]ImageReference)
	for _, mode := range route.imageModes(d.backends) {
		ref, err := d.normalizer.Normalize(ctx, source, mode)
		if err != nil {
			return nil, uploadError(req.Backend, fmt.Sprintf("could not prepare %s source image", mode), err)
		}
		images[mode] = ref
	}

	d.enter(StateInvoking, req.Backend)
	prompt := BuildPrompt(req.Description, style, route.Steps[0].Prompt)
	var raw *RawResponse
	var last BackendID
	for i, step := range route.Steps {
		backend := d.backends[step.Backend]
		last = step.Backend

		common.WithFields(map[string]interface{}{
			"route":    req.Backend,
			"step":     i + 1,
			"backend":  step.Backend,
			"strength": step.Strength,
			"prompt":   utils.TruncateForLog(prompt, 300),
		}).Debug("Invoking backend")

		raw, err = backend.Invoke(ctx, images[backend.ImageMode()], prompt, InvokeOptions{Strength: step.Strength})
		if err != nil {
			return nil, classifyBackendError(step.Backend, err)
		}
		if raw == nil {
			raw = &RawResponse{}
		}

		if i == len(route.Steps)-1 {
			break
		}
		// 中间步骤的文本成为下一步的提示词；只给了图片则直接作为结果
		if strings.TrimSpace(raw.Text) != "" {
			prompt = strings.TrimSpace(raw.Text)
			continue
		}
		if raw.Image != nil {
			return d.publishInline(ctx, req.Backend, step.Backend, raw.Image)
		}
		return nil, emptyResultError(step.Backend, raw.Body)
	}

	d.enter(StateExtracting, req.Backend)
	if raw.Image != nil && len(raw.Image.Data) > 0 {
		return d.publishInline(ctx, req.Backend, last, raw.Image)
	}
	url, ok := ExtractURL(raw.Body)
	if !ok {
		return nil, emptyResultError(last, raw.Body)
	}
	return &GenerationResult{OutputURL: url}, nil
}

// publishInline 把后端直接返回的图片上传到共享存储，作为结果 URL
func (d *Dispatcher) publishInline(ctx context.Context, route, backend BackendID, image *Inline) (*GenerationResult, error) {
	ref, err := d.normalizer.Normalize(ctx, InlineImage(image.Data, image.MimeType), ImageModeRemote)
	if err != nil {
		return nil, uploadError(route, fmt.Sprintf("could not publish image returned by backend %s", backend), err)
	}
	url, _ := ref.URL()
	return &GenerationResult{OutputURL: url}, nil
}

func (d *Dispatcher) enter(state State, backend BackendID) {
	common.WithFields(map[string]interface{}{
		"backend": backend,
		"state":   state,
	}).Debug("Fitting state transition")
}

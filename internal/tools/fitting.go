package tools

import (
	"context"
	"fmt"
	"strings"

	"fitting-mcp/common"
	"fitting-mcp/internal/fitting"
	"fitting-mcp/internal/utils"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/semaphore"
)

// 风格不做校验，这里只用于工具说明
var knownStyles = []string{"Studio", "Park", "Street"}

// RegisterFittingTools 注册试穿生成相关的 MCP tools：
//   - generate_fitting       生成试穿效果图，返回图片 URL
//   - list_fitting_backends  列出可用后端
//
// maxConcurrent 限制同时进行的生成数量，调度层本身不做并发协调。
func RegisterFittingTools(s *server.MCPServer, generator fitting.Generator, maxConcurrent int) error {
	if generator == nil {
		return fmt.Errorf("generator is required")
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	var backendIDs []string
	for _, info := range generator.Backends() {
		backendIDs = append(backendIDs, string(info.ID))
	}
	if len(backendIDs) == 0 {
		return fmt.Errorf("no fitting backends registered")
	}

	generateTool := mcp.NewTool(
		"generate_fitting",
		mcp.WithDescription("Render a photo of the pet in the source image wearing the described garment, in the given scene style. Returns the output image URL."),
		mcp.WithString("backend",
			mcp.Required(),
			mcp.Enum(backendIDs...),
			mcp.Description("Generation backend. 'vision' lets a vision model refine the prompt before rendering; 'render' renders directly."),
		),
		mcp.WithString("source_image",
			mcp.Required(),
			mcp.Description("Source image as a base64 data URI (data:image/png;base64,...) or an http(s) URL."),
		),
		mcp.WithString("description",
			mcp.Required(),
			mcp.Description("Free-text description of the garment, e.g. 'a red raincoat'."),
		),
		mcp.WithString("style",
			mcp.Description(fmt.Sprintf("Scene style, e.g. %s. Defaults to %s.", strings.Join(knownStyles, ", "), fitting.DefaultStyle)),
		),
	)
	s.AddTool(generateTool, newGenerateHandler(generator, semaphore.NewWeighted(int64(maxConcurrent))))

	listTool := mcp.NewTool(
		"list_fitting_backends",
		mcp.WithDescription("List the generation backends available on this server and the call sequence each one runs."),
	)
	s.AddTool(listTool, newListBackendsHandler(generator))

	return nil
}

func newGenerateHandler(generator fitting.Generator, sem *semaphore.Weighted) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		backend, err := req.RequireString("backend")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("backend parameter is required: %v", err)), nil
		}
		// source_image 为空由调度层报 validation 错误
		sourceImage := req.GetString("source_image", "")
		description := req.GetString("description", "")
		style := req.GetString("style", "")

		fields := map[string]interface{}{
			"backend":      backend,
			"source_image": utils.TruncateForLog(sourceImage, 80),
			"description":  description,
			"style":        style,
		}
		common.WithFields(fields).Info("Fitting: generate request received")

		if err := sem.Acquire(ctx, 1); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("generation was not started: %v", err)), nil
		}
		defer sem.Release(1)

		url, err := generator.Generate(ctx, backend, sourceImage, description, style)
		if err != nil {
			common.WithError(err).WithFields(fields).Error("Fitting: generation failed")
			// GenerationError 的文本以类别开头，例如 "upload: ..."
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(url), nil
	}
}

func newListBackendsHandler(generator fitting.Generator) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var lines []string
		for _, info := range generator.Backends() {
			steps := make([]string, 0, len(info.Steps))
			for _, step := range info.Steps {
				steps = append(steps, string(step))
			}
			lines = append(lines, fmt.Sprintf("%s: %s", info.ID, strings.Join(steps, " -> ")))
		}
		return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
	}
}

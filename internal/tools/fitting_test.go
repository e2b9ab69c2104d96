package tools

import (
	"context"
	"testing"

	"fitting-mcp/internal/fitting"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"
)

// --- Mocks ---

type fakeGenerator struct {
	url      string
	err      error
	backends []fitting.BackendInfo

	gotBackend, gotSource, gotDescription, gotStyle string
}

func (f *fakeGenerator) Generate(ctx context.Context, backend, sourceImage, description, style string) (string, error) {
	f.gotBackend, f.gotSource, f.gotDescription, f.gotStyle = backend, sourceImage, description, style
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

func (f *fakeGenerator) Backends() []fitting.BackendInfo { return f.backends }

// --- Helpers ---

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = "generate_fitting"
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

// --- Tests ---

func TestGenerateHandler_Success(t *testing.T) {
	gen := &fakeGenerator{url: "https://cdn.example/out.png"}
	handler := newGenerateHandler(gen, semaphore.NewWeighted(1))

	result, err := handler(context.Background(), callRequest(map[string]any{
		"backend":      "render",
		"source_image": "data:image/png;base64,iVBORw0KGgo=",
		"description":  "a red raincoat",
		"style":        "Park",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "https://cdn.example/out.png", resultText(t, result))

	assert.Equal(t, "render", gen.gotBackend)
	assert.Equal(t, "a red raincoat", gen.gotDescription)
	assert.Equal(t, "Park", gen.gotStyle)
}

func TestGenerateHandler_Errors(t *testing.T) {
	t.Run("生成失败返回错误结果", func(t *testing.T) {
		gen := &fakeGenerator{err: &fitting.GenerationError{Kind: fitting.KindUpload, Message: "could not prepare remote source image"}}
		handler := newGenerateHandler(gen, semaphore.NewWeighted(1))

		result, err := handler(context.Background(), callRequest(map[string]any{
			"backend":      "vision",
			"source_image": "https://cdn.example/pet.jpg",
		}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Equal(t, "upload: could not prepare remote source image", resultText(t, result))
	})

	t.Run("缺少 backend", func(t *testing.T) {
		gen := &fakeGenerator{}
		handler := newGenerateHandler(gen, semaphore.NewWeighted(1))

		result, err := handler(context.Background(), callRequest(map[string]any{"source_image": "x"}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(t, result), "backend parameter is required")
		assert.Empty(t, gen.gotBackend)
	})

	t.Run("并发名额已满且请求被取消", func(t *testing.T) {
		gen := &fakeGenerator{url: "https://cdn.example/out.png"}
		sem := semaphore.NewWeighted(1)
		require.True(t, sem.TryAcquire(1))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := newGenerateHandler(gen, sem)(ctx, callRequest(map[string]any{"backend": "render"}))
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(t, result), "generation was not started")
		assert.Empty(t, gen.gotBackend)
	})
}

func TestListBackendsHandler(t *testing.T) {
	gen := &fakeGenerator{backends: []fitting.BackendInfo{
		{ID: fitting.BackendRender, Steps: []fitting.BackendID{fitting.BackendRender}},
		{ID: fitting.BackendVision, Steps: []fitting.BackendID{fitting.BackendVision, fitting.BackendRender}},
	}}

	result, err := newListBackendsHandler(gen)(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.Equal(t, "render: render\nvision: vision -> render", resultText(t, result))
}

func TestRegisterFittingTools(t *testing.T) {
	s := server.NewMCPServer("test", "0.0.0", server.WithToolCapabilities(true))

	assert.EqualError(t, RegisterFittingTools(s, nil, 1), "generator is required")
	assert.EqualError(t, RegisterFittingTools(s, &fakeGenerator{}, 1), "no fitting backends registered")

	gen := &fakeGenerator{backends: []fitting.BackendInfo{{ID: fitting.BackendRender, Steps: []fitting.BackendID{fitting.BackendRender}}}}
	assert.NoError(t, RegisterFittingTools(s, gen, 0))
}

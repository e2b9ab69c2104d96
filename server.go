package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"fitting-mcp/common"
	"fitting-mcp/internal/fitting"
	"fitting-mcp/internal/genai/fal"
	"fitting-mcp/internal/genai/gemini"
	"fitting-mcp/internal/genai/seedream"
	"fitting-mcp/internal/oss"
	"fitting-mcp/internal/tools"

	"github.com/mark3labs/mcp-go/server"
)

func main() {
	config, err := common.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	fmt.Fprintf(os.Stderr, "Server starting...\n")
	fmt.Fprintf(os.Stderr, "fal model: %s (%s mode)\n", config.FalModel, config.FalMode)
	fmt.Fprintf(os.Stderr, "fal API Key: %s\n", maskAPIKey(config.FalAPIKey))
	fmt.Fprintf(os.Stderr, "Storage: %s\n", config.StorageProvider)

	dispatcher, err := buildDispatcher(config)
	if err != nil {
		common.Fatalf("Failed to build dispatcher: %v", err)
	}

	s := server.NewMCPServer(
		"Pet Fitting MCP Server",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	if err := tools.RegisterFittingTools(s, dispatcher, config.MaxConcurrentGenerations); err != nil {
		common.Fatalf("Failed to register fitting tools: %v", err)
	}

	if config.MCPTransport == "http" {
		addr := config.GetServerAddr()
		common.Infof("Serving MCP over streamable HTTP on %s", addr)
		if err := server.NewStreamableHTTPServer(s).Start(addr); err != nil {
			common.Fatalf("Server error: %v", err)
		}
		return
	}

	if err := server.ServeStdio(s); err != nil {
		common.Fatalf("Server error: %v", err)
	}
}

// buildDispatcher 按配置组装存储、后端和路由
func buildDispatcher(config *common.Config) (*fitting.Dispatcher, error) {
	uploader, err := buildUploader(config)
	if err != nil {
		return nil, err
	}

	falClient, err := fal.NewClientFromConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create fal client: %w", err)
	}
	backends := map[fitting.BackendID]fitting.Backend{
		fitting.BackendRender: fitting.NewRenderBackend(falClient, config.FalInferenceSteps, config.FalGuidanceScale),
	}

	if config.HasGemini() {
		geminiClient, err := gemini.NewClientFromConfig(config)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		backends[fitting.BackendVision] = fitting.NewVisionBackend(geminiClient)
	} else {
		common.Warnf("GEMINI_API_KEY not set, backend %q disabled", fitting.BackendVision)
	}

	if config.HasSeedream() {
		seedreamClient, err := seedream.NewClientFromConfig(config)
		if err != nil {
			return nil, fmt.Errorf("failed to create seedream client: %w", err)
		}
		backends[fitting.BackendSeedream] = fitting.NewSeedreamBackend(seedreamClient)
	}

	return fitting.NewDispatcher(fitting.DispatcherConfig{
		Backends:     backends,
		Routes:       fitting.DefaultRoutes(backends, config.ComposedStrength, config.DirectStrength),
		Normalizer:   fitting.NewNormalizer(uploader, nil),
		DefaultStyle: config.DefaultStyle,
		Timeout:      time.Duration(config.FittingTimeoutSeconds) * time.Second,
	})
}

// buildUploader 选择共享素材存储
func buildUploader(config *common.Config) (fitting.Uploader, error) {
	if config.StorageProvider == "oss" {
		store, err := oss.NewImageStoreFromConfig(config)
		if err != nil {
			return nil, fmt.Errorf("failed to create OSS client: %w", err)
		}
		return store, nil
	}

	store, err := fal.NewStorageFromConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create fal storage client: %w", err)
	}
	return store, nil
}

// maskAPIKey 隐藏 API Key 的敏感部分
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

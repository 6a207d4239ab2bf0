package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/young1lin/chatbridge/internal/config"
	"github.com/young1lin/chatbridge/internal/inference"
	"github.com/young1lin/chatbridge/internal/mcp"
	"github.com/young1lin/chatbridge/internal/postaction"
	"github.com/young1lin/chatbridge/internal/search"
	"github.com/young1lin/chatbridge/internal/session"
	"github.com/young1lin/chatbridge/internal/storage"
	"github.com/young1lin/chatbridge/internal/tools"
	"github.com/young1lin/chatbridge/internal/websearch"
	"github.com/young1lin/chatbridge/pkg/logger"
)

// app holds the wired components shared by every command
type app struct {
	cfg      *config.Config
	servers  *mcp.Service
	store    *storage.ConversationStore
	registry *tools.Registry
	search   *websearch.Tool
	runner   *session.Runner
	renamer  *postaction.Renamer
}

func newApp(ctx context.Context, cfg *config.Config, opts ...tools.RegistryOption) (*app, error) {
	mcp.ClientVersion = Version
	servers := mcp.NewService(cfg.MCPServers)
	if err := servers.Connect(ctx); err != nil {
		// Unreachable servers only lose their tools
		logger.Warn("some MCP servers are unavailable", zap.Error(err))
	}

	if dir := filepath.Dir(cfg.Storage.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			_ = servers.Close()
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}
	store, err := storage.NewConversationStore(cfg.Storage.Path)
	if err != nil {
		_ = servers.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	invoker := tools.NewInvoker(servers)
	registry := tools.NewRegistry(servers, invoker, opts...)

	searchTool, err := websearch.NewTool(search.NewManager(&cfg.WebSearch, invoker))
	if err != nil {
		_ = store.Close()
		_ = servers.Close()
		return nil, fmt.Errorf("create web search tool: %w", err)
	}
	if err := registry.Register(searchTool); err != nil {
		_ = store.Close()
		_ = servers.Close()
		return nil, err
	}

	client := inference.NewClient(cfg.Inference)
	gen := postaction.NewGenerator(client, client.AuxiliaryModel())

	return &app{
		cfg:      cfg,
		servers:  servers,
		store:    store,
		registry: registry,
		search:   searchTool,
		runner:   session.NewRunner(client, registry, cfg.Inference.MaxIterations),
		renamer:  postaction.NewRenamer(gen, store),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		logger.Error("failed to close storage", zap.Error(err))
	}
	if err := a.servers.Close(); err != nil {
		logger.Error("failed to close MCP servers", zap.Error(err))
	}
}

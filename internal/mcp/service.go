// Package mcp connects to Model Context Protocol servers and adapts them to
// the tool transport used by the invoker.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/young1lin/chatbridge/internal/config"
	"github.com/young1lin/chatbridge/internal/tools"
	"github.com/young1lin/chatbridge/internal/value"
	"github.com/young1lin/chatbridge/pkg/logger"
)

// ClientVersion is reported to servers during initialization.
var ClientVersion = "dev"

// Client is the subset of an MCP client session the service relies on.
// *client.Client from mcp-go satisfies it.
type Client interface {
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Dialer opens a client for a configured server.
type Dialer func(ctx context.Context, id string, cfg config.MCPServerConfig) (Client, error)

// ErrUnknownServer is returned when a call names a server that is not connected.
var ErrUnknownServer = errors.New("mcp: unknown server")

type server struct {
	id      string
	name    string
	timeout time.Duration
	client  Client
}

// Service owns one client per connected server.
type Service struct {
	configs map[string]config.MCPServerConfig
	dial    Dialer

	mu      sync.RWMutex
	servers map[string]*server
	log     *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithDialer replaces the streamable HTTP dialer.
func WithDialer(d Dialer) Option {
	return func(s *Service) { s.dial = d }
}

// NewService creates a service for the configured servers. Nothing is
// dialed until Connect.
func NewService(configs map[string]config.MCPServerConfig, opts ...Option) *Service {
	s := &Service{
		configs: configs,
		dial:    dialStreamableHTTP,
		servers: make(map[string]*server),
		log:     logger.Named("mcp"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func dialStreamableHTTP(ctx context.Context, _ string, cfg config.MCPServerConfig) (Client, error) {
	c, err := mcpclient.NewStreamableHttpClient(cfg.URL, transport.WithHTTPHeaders(cfg.Headers))
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("start client: %w", err)
	}
	return c, nil
}

// Connect dials and initializes every enabled server concurrently. Servers
// that fail are skipped; their errors are joined into the result.
func (s *Service) Connect(ctx context.Context) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for id, cfg := range s.configs {
		if !cfg.Enabled {
			s.log.Debug("skipping disabled server", zap.String("server", id))
			continue
		}
		g.Go(func() error {
			c, err := s.connect(ctx, id, cfg)
			if err != nil {
				s.log.Warn("failed to connect server", zap.String("server", id), zap.Error(err))
				mu.Lock()
				errs = append(errs, fmt.Errorf("server %s: %w", id, err))
				mu.Unlock()
				return nil
			}
			s.AddClient(id, cfg.Name, time.Duration(cfg.Timeout)*time.Second, c)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (s *Service) connect(ctx context.Context, id string, cfg config.MCPServerConfig) (Client, error) {
	c, err := s.dial(ctx, id, cfg)
	if err != nil {
		return nil, err
	}
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "chatbridge", Version: ClientVersion}
	result, err := c.Initialize(ctx, req)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("initialize: %w", err)
	}
	s.log.Info("server connected",
		zap.String("server", id),
		zap.String("remote", result.ServerInfo.Name),
		zap.String("protocol", result.ProtocolVersion),
	)
	return c, nil
}

// AddClient registers an already initialized client under id.
func (s *Service) AddClient(id, name string, timeout time.Duration, c Client) {
	if name == "" {
		name = id
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.servers[id]; ok {
		_ = old.client.Close()
	}
	s.servers[id] = &server{id: id, name: name, timeout: timeout, client: c}
}

func (s *Service) snapshot() []*server {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*server, 0, len(s.servers))
	for _, srv := range s.servers {
		out = append(out, srv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// ListServerTools lists the tools of every connected server. A server that
// fails to list is logged and skipped.
func (s *Service) ListServerTools(ctx context.Context) ([]tools.Descriptor, error) {
	servers := s.snapshot()
	lists := make([][]tools.Descriptor, len(servers))

	g, gctx := errgroup.WithContext(ctx)
	for i, srv := range servers {
		g.Go(func() error {
			result, err := srv.client.ListTools(gctx, mcp.ListToolsRequest{})
			if err != nil {
				s.log.Warn("failed to list tools", zap.String("server", srv.id), zap.Error(err))
				return nil
			}
			descriptors := make([]tools.Descriptor, 0, len(result.Tools))
			for _, t := range result.Tools {
				descriptors = append(descriptors, tools.Descriptor{
					Name:        t.Name,
					Description: t.Description,
					InputSchema: inputSchema(t),
					ServerID:    srv.id,
					ServerName:  srv.name,
				})
			}
			lists[i] = descriptors
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []tools.Descriptor
	for _, l := range lists {
		all = append(all, l...)
	}
	return all, nil
}

// inputSchema pulls the advertised schema out of the tool's wire form so
// raw schemas and typed schemas are handled alike.
func inputSchema(t mcp.Tool) *value.Value {
	doc, err := json.Marshal(t)
	if err != nil {
		return nil
	}
	raw := gjson.GetBytes(doc, "inputSchema")
	if !raw.Exists() {
		return nil
	}
	schema, err := value.ParseText([]byte(raw.Raw))
	if err != nil {
		return nil
	}
	return &schema
}

// CallTool implements tools.Transport.
func (s *Service) CallTool(ctx context.Context, serverID, name string, arguments map[string]value.Value) (*tools.Result, error) {
	s.mu.RLock()
	srv, ok := s.servers[serverID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownServer, serverID)
	}

	if srv.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, srv.timeout)
		defer cancel()
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	if arguments != nil {
		native, err := nativeArguments(arguments)
		if err != nil {
			return nil, err
		}
		req.Params.Arguments = native
	}

	result, err := srv.client.CallTool(ctx, req)
	if err != nil {
		return nil, err
	}
	return convertResult(result)
}

// nativeArguments re-encodes structured arguments through their wire form,
// keeping binary values as data URLs.
func nativeArguments(arguments map[string]value.Value) (map[string]any, error) {
	doc, err := json.Marshal(value.Object(arguments))
	if err != nil {
		return nil, fmt.Errorf("encode arguments: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	var native map[string]any
	if err := dec.Decode(&native); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	return native, nil
}

func convertResult(result *mcp.CallToolResult) (*tools.Result, error) {
	if result == nil {
		return &tools.Result{}, nil
	}
	doc, err := json.Marshal(result.Content)
	if err != nil {
		return nil, fmt.Errorf("encode result content: %w", err)
	}
	var content []tools.Content
	if err := json.Unmarshal(doc, &content); err != nil {
		return nil, fmt.Errorf("decode result content: %w", err)
	}
	isError := result.IsError
	return &tools.Result{Content: content, IsError: &isError}, nil
}

// Close closes every client.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for id, srv := range s.servers {
		if err := srv.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("server %s: %w", id, err))
		}
		delete(s.servers, id)
	}
	return errors.Join(errs...)
}

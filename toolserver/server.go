package toolserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hupe1980/legalmesh/core"
	"github.com/hupe1980/legalmesh/logging"
	"github.com/hupe1980/legalmesh/tool"
)

// Defaults for the published server.
const (
	DefaultName    = "legal_tools_mcp"
	DefaultVersion = "1.0.0"
	DefaultPath    = "/mcp"
	DefaultAddr    = ":8080"

	// ResultMIMEType marks embedded resources carrying structured results.
	ResultMIMEType = "application/json"
	resultURIPrefix = "result://"
)

// Options configure a Server.
type Options struct {
	Name    string
	Version string
	Path    string
	Logger  logging.Logger
}

// Server exposes tool definitions as MCP tools over streamable HTTP.
type Server struct {
	mcp   *server.MCPServer
	http  *server.StreamableHTTPServer
	names []string
	opts  Options
}

// New registers defs on a fresh MCP server.
func New(defs []tool.Definition, optFns ...func(o *Options)) (*Server, error) {
	opts := Options{
		Name:    DefaultName,
		Version: DefaultVersion,
		Path:    DefaultPath,
		Logger:  logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	s := server.NewMCPServer(
		opts.Name,
		opts.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	srv := &Server{mcp: s, opts: opts}

	for _, d := range defs {
		if d.Fn == nil {
			return nil, fmt.Errorf("toolserver: tool %q has no function", d.Name)
		}

		raw, err := json.Marshal(d.Parameters)
		if err != nil {
			return nil, fmt.Errorf("toolserver: schema of %q: %w", d.Name, err)
		}

		s.AddTool(mcp.NewToolWithRawSchema(d.Name, d.Description, raw), srv.handler(d))
		srv.names = append(srv.names, d.Name)
	}

	srv.http = server.NewStreamableHTTPServer(s, server.WithEndpointPath(opts.Path))

	return srv, nil
}

// Tools returns the registered tool names in registration order.
func (s *Server) Tools() []string { return append([]string{}, s.names...) }

// MCPServer exposes the underlying server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcp }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.http.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.opts.Logger.Info("toolserver.start", "addr", addr, "path", s.opts.Path, "tools", len(s.names))

	if err := s.http.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Shutdown stops a server started with Start.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handler(d tool.Definition) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		if args == nil {
			args = map[string]any{}
		}

		res, err := d.Fn(ctx, args)
		if err != nil {
			s.opts.Logger.Error("toolserver.call.failed", "tool", d.Name, "error", err.Error())
			return mcp.NewToolResultError(err.Error()), nil
		}

		s.opts.Logger.Debug("toolserver.call.success", "tool", d.Name, "structured", res.IsStructured())

		return ToCallToolResult(d.Name, res)
	}
}

// ToCallToolResult encodes a tool result for the wire.
func ToCallToolResult(name string, res core.Result) (*mcp.CallToolResult, error) {
	if !res.IsStructured() {
		return mcp.NewToolResultText(res.Text), nil
	}

	b, err := json.Marshal(res.Fields)
	if err != nil {
		return nil, fmt.Errorf("toolserver: encode %s result: %w", name, err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewEmbeddedResource(mcp.TextResourceContents{
				URI:      resultURIPrefix + name,
				MIMEType: ResultMIMEType,
				Text:     string(b),
			}),
		},
	}, nil
}

// FromCallToolResult decodes a wire result. JSON resources become
// structured results, everything else is concatenated text.
func FromCallToolResult(res *mcp.CallToolResult) (core.Result, error) {
	if res == nil {
		return core.TextResult(""), nil
	}

	var text string

	for _, c := range res.Content {
		switch v := c.(type) {
		case mcp.TextContent:
			text += v.Text
		case *mcp.TextContent:
			text += v.Text
		case mcp.EmbeddedResource:
			if r, ok, err := decodeResource(v.Resource); ok || err != nil {
				return r, err
			}
		case *mcp.EmbeddedResource:
			if r, ok, err := decodeResource(v.Resource); ok || err != nil {
				return r, err
			}
		}
	}

	if res.IsError {
		return core.Result{}, errors.New(text)
	}

	return core.TextResult(text), nil
}

func decodeResource(rc mcp.ResourceContents) (core.Result, bool, error) {
	var trc mcp.TextResourceContents

	switch v := rc.(type) {
	case mcp.TextResourceContents:
		trc = v
	case *mcp.TextResourceContents:
		trc = *v
	default:
		return core.Result{}, false, nil
	}

	if trc.MIMEType != ResultMIMEType {
		return core.TextResult(trc.Text), true, nil
	}

	fields := map[string]any{}
	if err := json.Unmarshal([]byte(trc.Text), &fields); err != nil {
		return core.Result{}, true, fmt.Errorf("toolserver: decode %s: %w", trc.URI, err)
	}

	return core.StructuredResult(fields), true, nil
}

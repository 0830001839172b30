package toolserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hupe1980/legalmesh/core"
	"github.com/hupe1980/legalmesh/logging"
	"github.com/hupe1980/legalmesh/tool"
)

// Observer is called after every successful remote tool call.
type Observer func(toolCtx *core.ToolContext, name string, args map[string]any, res core.Result)

// ToolsetOptions configure a Toolset.
type ToolsetOptions struct {
	ClientName    string
	ClientVersion string
	// Observe sees each decoded result, e.g. to record touched documents.
	Observe Observer
	Logger  logging.Logger
}

// Toolset adapts the tools of an MCP server into tool.Tool values.
type Toolset struct {
	client *client.Client
	tools  []tool.Tool
	opts   ToolsetOptions
}

// Connect dials a streamable HTTP MCP endpoint such as
// http://localhost:8080/mcp and loads its tools.
func Connect(ctx context.Context, url string, optFns ...func(o *ToolsetOptions)) (*Toolset, error) {
	c, err := client.NewStreamableHttpClient(url)
	if err != nil {
		return nil, fmt.Errorf("toolset: dial %s: %w", url, err)
	}

	ts, err := NewToolset(ctx, c, optFns...)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	return ts, nil
}

// NewToolset initializes c and lists its tools.
func NewToolset(ctx context.Context, c *client.Client, optFns ...func(o *ToolsetOptions)) (*Toolset, error) {
	opts := ToolsetOptions{
		ClientName:    "legalmesh",
		ClientVersion: DefaultVersion,
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("toolset: start: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: opts.ClientName, Version: opts.ClientVersion}

	info, err := c.Initialize(ctx, initReq)
	if err != nil {
		return nil, fmt.Errorf("toolset: initialize: %w", err)
	}

	listed, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("toolset: list tools: %w", err)
	}

	ts := &Toolset{client: c, opts: opts}

	for _, t := range listed.Tools {
		params, err := inputSchema(t)
		if err != nil {
			return nil, fmt.Errorf("toolset: schema of %q: %w", t.Name, err)
		}

		ts.tools = append(ts.tools, tool.NewFunctionTool(t.Name, t.Description, params, ts.call(t.Name)))
	}

	opts.Logger.Info("toolset.connected", "server", info.ServerInfo.Name, "tools", len(ts.tools))

	return ts, nil
}

// Tools returns the adapted tools.
func (ts *Toolset) Tools() []tool.Tool { return append([]tool.Tool{}, ts.tools...) }

// Close releases the client connection.
func (ts *Toolset) Close() error { return ts.client.Close() }

func (ts *Toolset) call(name string) tool.FunctionFn {
	return func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
		req := mcp.CallToolRequest{}
		req.Params.Name = name
		req.Params.Arguments = args

		out, err := ts.client.CallTool(toolCtx.Context(), req)
		if err != nil {
			return nil, fmt.Errorf("mcp call %s: %w", name, err)
		}

		res, err := FromCallToolResult(out)
		if err != nil {
			return nil, fmt.Errorf("mcp call %s: %w", name, err)
		}

		if ts.opts.Observe != nil {
			ts.opts.Observe(toolCtx, name, args, res)
		}

		return res, nil
	}
}

func inputSchema(t mcp.Tool) (map[string]any, error) {
	raw := t.RawInputSchema
	if len(raw) == 0 {
		b, err := json.Marshal(t.InputSchema)
		if err != nil {
			return nil, err
		}
		raw = b
	}

	schema := map[string]any{}
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, err
	}

	if _, ok := schema["type"]; !ok {
		schema["type"] = "object"
	}

	return schema, nil
}

package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/harun/fsagent/pkg/resource"
	"github.com/harun/fsagent/pkg/toolexecutor"
)

// Client identity sent in the initialize handshake
var (
	ClientName    = "fsagent"
	ClientVersion = "0.1.0"
)

// starter opens a client whose transport lives as long as life.
type starter func(life context.Context) (*client.Client, error)

// connect runs the shared connect sequence. The transport is bound to a
// lifetime context that is cancelled when the registered client is released,
// or when ctx ends before the handshake completes. Each connection is one
// registered resource.
func connect(ctx context.Context, name string, transport Transport, start starter, reg resource.Registrar, logger zerolog.Logger) ([]toolexecutor.ToolDefinition, error) {
	life, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stopWatch := context.AfterFunc(ctx, cancel)
	defer stopWatch()

	c, err := start(life)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start %s transport: %w", transport, err)
	}
	if err := reg.RegisterFunc("client", func() error {
		defer cancel()
		return c.Close()
	}); err != nil {
		return nil, err
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    ClientName,
		Version: ClientVersion,
	}
	res, err := c.Initialize(ctx, initReq)
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}

	logger.Debug().
		Str("source", name).
		Str("transport", string(transport)).
		Str("server", res.ServerInfo.Name).
		Str("server_version", res.ServerInfo.Version).
		Str("protocol", res.ProtocolVersion).
		Msg("MCP session initialized")

	list, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}

	defs := make([]toolexecutor.ToolDefinition, 0, len(list.Tools))
	for _, tool := range list.Tools {
		def, err := toolDefinition(name, c, tool)
		if err == nil {
			err = toolexecutor.Validate(def)
		}
		if err != nil {
			logger.Warn().Err(err).Str("source", name).Str("tool", tool.Name).Msg("Skipping unusable tool")
			continue
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// toolCaller is the part of the MCP client a tool handler needs
type toolCaller interface {
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

func toolDefinition(source string, c toolCaller, tool mcp.Tool) (toolexecutor.ToolDefinition, error) {
	schema, err := inputSchema(tool)
	if err != nil {
		return toolexecutor.ToolDefinition{}, fmt.Errorf("tool %s: %w", tool.Name, err)
	}

	remoteName := tool.Name
	return toolexecutor.ToolDefinition{
		Name:        tool.Name,
		Description: tool.Description,
		InputSchema: schema,
		Source:      source,
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			req := mcp.CallToolRequest{}
			req.Params.Name = remoteName
			req.Params.Arguments = params
			res, err := c.CallTool(ctx, req)
			if err != nil {
				return nil, fmt.Errorf("call %s on %s: %w", remoteName, source, err)
			}
			return callResult(res)
		},
	}, nil
}

// inputSchema returns the tool's input schema as a generic JSON object
func inputSchema(tool mcp.Tool) (map[string]interface{}, error) {
	raw, err := json.Marshal(tool)
	if err != nil {
		return nil, fmt.Errorf("encode tool: %w", err)
	}

	var decoded struct {
		InputSchema map[string]interface{} `json:"inputSchema"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode input schema: %w", err)
	}
	if decoded.InputSchema == nil {
		decoded.InputSchema = map[string]interface{}{"type": "object"}
	}
	return decoded.InputSchema, nil
}

// callResult joins text content with newlines and JSON-encodes anything else.
// Results flagged isError become errors carrying the same text.
func callResult(res *mcp.CallToolResult) (interface{}, error) {
	parts := make([]string, 0, len(res.Content))
	for _, content := range res.Content {
		if text, ok := mcp.AsTextContent(content); ok {
			parts = append(parts, text.Text)
			continue
		}
		raw, err := json.Marshal(content)
		if err != nil {
			return nil, fmt.Errorf("encode content: %w", err)
		}
		parts = append(parts, string(raw))
	}
	out := strings.Join(parts, "\n")

	if res.IsError {
		if out == "" {
			out = "tool reported an error"
		}
		return nil, fmt.Errorf("%s", out)
	}
	if out == "" && res.StructuredContent != nil {
		return res.StructuredContent, nil
	}
	return out, nil
}

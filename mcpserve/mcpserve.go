// Package mcpserve exposes a funcbox.Registry as a Model Context Protocol server.
//
// Each registered tool becomes one MCP tool. Responses carry exactly one text
// content block holding the tool's JSON output; registry-level failures become a
// JSON error object in that block with the result flagged as an error — a tool
// call never surfaces as a protocol fault.
package mcpserve

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/funcbox/funcbox"
)

// NewServer builds an MCP server over the tools currently registered in reg.
// Tools registered after this call are not picked up. A nil logger disables call logging.
func NewServer(reg *funcbox.Registry, name, version string, logger *zap.Logger) (*mcp.Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	server := mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)
	for _, t := range reg.GetAllTools() {
		schema, err := toSchema(t.Parameters())
		if err != nil {
			return nil, fmt.Errorf("schema for tool %q: %w", t.Name(), err)
		}
		toolName := t.Name()
		server.AddTool(&mcp.Tool{
			Name:        toolName,
			Description: t.Description(),
			InputSchema: schema,
		}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.Params.Arguments
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			res := reg.Execute(ctx, funcbox.ToolCall{ToolName: toolName, Args: args})
			if res.Error != nil {
				logger.Warn("tool call failed",
					zap.String("tool", toolName),
					zap.Duration("duration", res.Duration),
					zap.Error(res.Error),
				)
				return errorResult(res.Error), nil
			}
			logger.Debug("tool call ok",
				zap.String("tool", toolName),
				zap.Duration("duration", res.Duration),
			)
			return textResult(string(res.Result)), nil
		})
	}
	return server, nil
}

// toSchema converts a tool's Parameters map into the SDK schema type.
func toSchema(params map[string]any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

// errorResult folds a registry error into the uniform single-block JSON shape.
// Only the single-line message is exposed, never internal detail.
func errorResult(err error) *mcp.CallToolResult {
	body, mErr := json.Marshal(map[string]string{"error": err.Error()})
	if mErr != nil {
		body = []byte(`{"error":"internal encoding failure"}`)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
		IsError: true,
	}
}

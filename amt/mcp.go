// CLAUDE:SUMMARY Registers amt_resolve and amt_info MCP tools with JSON text results.
package amt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCP registers the resolution and information tools on an MCP
// server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerResolveTool(srv)
	s.registerInfoTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	sch := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sch["required"] = required
	}
	return sch
}

// registerTool wraps a typed endpoint as an MCP tool handler: decode
// arguments, run, marshal the result as a JSON text block. Endpoint errors
// become tool errors, not protocol errors.
func registerTool[Req any](srv *mcp.Server, tool *mcp.Tool, endpoint func(context.Context, *Req) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r Req
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("invalid arguments: %w", err))
			return &res, nil
		}

		resp, err := endpoint(ctx, &r)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

// --- resolve ---

type resolveReq struct {
	Location string `json:"location"`
	Canton   string `json:"canton"`
}

func (s *Service) registerResolveTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "amt_resolve",
		Description: "Resolve a Swiss location (municipality name, village, or 4-digit postal code) to its responsible residence-registration authority.",
		InputSchema: inputSchema(map[string]any{
			"location": map[string]any{"type": "string", "description": "Municipality name, sub-locality, or postal code"},
			"canton":   map[string]any{"type": "string", "description": "Optional two-letter canton code to disambiguate"},
		}, []string{"location"}),
	}

	registerTool(srv, tool, func(ctx context.Context, r *resolveReq) (any, error) {
		return s.Resolve(ctx, r.Location, r.Canton)
	})
}

// --- info ---

type infoReq struct {
	Location     string `json:"location"`
	Canton       string `json:"canton"`
	ForceRefresh bool   `json:"force_refresh"`
}

func (s *Service) registerInfoTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "amt_info",
		Description: "Get residence-registration information (counter hours, contact details, required documents, fees) for a Swiss location.",
		InputSchema: inputSchema(map[string]any{
			"location":      map[string]any{"type": "string", "description": "Municipality name, sub-locality, or postal code"},
			"canton":        map[string]any{"type": "string", "description": "Optional two-letter canton code to disambiguate"},
			"force_refresh": map[string]any{"type": "boolean", "description": "Bypass the cache and rebuild the record"},
		}, []string{"location"}),
	}

	registerTool(srv, tool, func(ctx context.Context, r *infoReq) (any, error) {
		return s.Lookup(ctx, r.Location, r.Canton, InfoOptions{ForceRefresh: r.ForceRefresh})
	})
}

package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/harrydbarnes/recordsteps/export"
	"github.com/harrydbarnes/recordsteps/kit"
	"github.com/harrydbarnes/recordsteps/step"
)

// RegisterMCP registers all recording control tools on an MCP server,
// giving agent tooling the same capabilities as the panel API.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerStart(srv)
	s.registerStop(srv)
	s.registerStatus(srv)
	s.registerSetVerbosity(srv)
	s.registerListSessions(srv)
	s.registerSteps(srv)
	s.registerClear(srv)
	s.registerExport(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func (s *Service) registerStart(srv *mcp.Server) {
	type req struct {
		URL       string `json:"url"`
		Verbosity int    `json:"verbosity"`
	}

	tool := &mcp.Tool{
		Name:        "recordsteps_start",
		Description: "Start a new recording session",
		InputSchema: inputSchema(map[string]any{
			"url":       map[string]any{"type": "string", "description": "Page URL the recording starts on"},
			"verbosity": map[string]any{"type": "integer", "description": "Capture level 0..3"},
		}, nil),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return s.Start(ctx, p.URL, step.Verbosity(p.Verbosity))
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[req])
}

func (s *Service) registerStop(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "recordsteps_stop",
		Description: "Stop the active recording session",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.Stop(ctx)
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[struct{}])
}

func (s *Service) registerStatus(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "recordsteps_status",
		Description: "Report recording state and active session step count",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.Status(ctx)
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[struct{}])
}

func (s *Service) registerSetVerbosity(srv *mcp.Server) {
	type req struct {
		Verbosity int `json:"verbosity"`
	}

	tool := &mcp.Tool{
		Name:        "recordsteps_set_verbosity",
		Description: "Change the capture level (0 basic, 1 +focus, 2 +hover/attributes, 3 all attributes)",
		InputSchema: inputSchema(map[string]any{
			"verbosity": map[string]any{"type": "integer", "description": "Capture level 0..3"},
		}, []string{"verbosity"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		if err := s.SetVerbosity(ctx, step.Verbosity(p.Verbosity)); err != nil {
			return nil, err
		}
		return map[string]int{"verbosity": int(step.Verbosity(p.Verbosity).Clamp())}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[req])
}

func (s *Service) registerListSessions(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "recordsteps_list_sessions",
		Description: "List all recording sessions, newest first",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.Sessions(ctx)
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[struct{}])
}

func (s *Service) registerSteps(srv *mcp.Server) {
	type req struct {
		SessionID string `json:"session_id"`
	}

	tool := &mcp.Tool{
		Name:        "recordsteps_steps",
		Description: "Return a session's recorded steps in order",
		InputSchema: inputSchema(map[string]any{
			"session_id": map[string]any{"type": "string", "description": "Session ID"},
		}, []string{"session_id"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return s.Steps(ctx, p.SessionID)
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[req])
}

func (s *Service) registerClear(srv *mcp.Server) {
	type req struct {
		SessionID string `json:"session_id"`
	}

	tool := &mcp.Tool{
		Name:        "recordsteps_clear",
		Description: "Delete a session and all its steps",
		InputSchema: inputSchema(map[string]any{
			"session_id": map[string]any{"type": "string", "description": "Session ID"},
		}, []string{"session_id"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		if err := s.Clear(ctx, p.SessionID); err != nil {
			return nil, err
		}
		return map[string]string{"deleted": p.SessionID}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[req])
}

func (s *Service) registerExport(srv *mcp.Server) {
	type req struct {
		SessionID string `json:"session_id"`
		Format    string `json:"format"`
	}

	tool := &mcp.Tool{
		Name:        "recordsteps_export",
		Description: "Export a session as flattened JSON or a Playwright script",
		InputSchema: inputSchema(map[string]any{
			"session_id": map[string]any{"type": "string", "description": "Session ID"},
			"format":     map[string]any{"type": "string", "description": "json (default) or playwright"},
		}, []string{"session_id"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		recs, err := s.Steps(ctx, p.SessionID)
		if err != nil {
			return nil, err
		}
		switch p.Format {
		case "", "json":
			data, err := export.JSON(recs)
			if err != nil {
				return nil, err
			}
			return json.RawMessage(data), nil
		case "playwright":
			return string(export.Playwright("recordsteps "+p.SessionID, recs)), nil
		case "html":
			return string(export.HTMLReport("recordsteps "+p.SessionID, recs)), nil
		default:
			return nil, fmt.Errorf("session: unknown export format %q", p.Format)
		}
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[req])
}

// decodeInto is the shared decode step: unmarshal tool arguments into
// the endpoint's request type.
func decodeInto[T any](r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	var p T
	if len(r.Params.Arguments) > 0 {
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
	}
	return &kit.MCPDecodeResult{Request: &p}, nil
}

package mcp

import (
	"context"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

// registerStubTools registers the three collaborator tools spec.md §1 marks
// as explicit Non-goals. They appear on the tool surface for completeness
// (spec.md §6) but always return a not_implemented result pointing at the
// stubbed interfaces in internal/engine/stubs.go.
func (s *Server) registerStubTools() {
	s.mcpServer.AddTool(
		mcplib.NewTool("validate_prd",
			mcplib.WithDescription("Not implemented in this build: PRD validation is out of scope."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithString("prd"),
		),
		s.handleNotImplemented,
	)
	s.mcpServer.AddTool(
		mcplib.NewTool("check_blind_spots",
			mcplib.WithDescription("Not implemented in this build: standalone blind-spot checking is out of scope."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithString("question"),
		),
		s.handleNotImplemented,
	)
	s.mcpServer.AddTool(
		mcplib.NewTool("detect_anti_patterns",
			mcplib.WithDescription("Not implemented in this build: standalone anti-pattern detection is out of scope."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithString("question"),
		),
		s.handleNotImplemented,
	)
}

func (s *Server) handleNotImplemented(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	return jsonResult(map[string]any{
		"status": "not_implemented",
		"tool":   request.Params.Name,
		"reason": "this collaborator tool is a declared non-goal of this build",
	})
}

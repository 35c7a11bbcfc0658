// Package mcp implements the Model Context Protocol server exposing
// oraculum's engine façade as tools (spec.md §6's RPC table).
package mcp

import (
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/oraculum-ai/oraculum/internal/engine"
)

const serverInstructions = `You have access to oraculum, an adversarial decision-intelligence engine.

WORKFLOW:

1. Call counsel with your decision question to get opposing FOR/AGAINST
   positions, each attributed to a curated thinker and backed by a
   principle, plus a Devil's Advocate challenge of missing considerations.
2. After the real-world result is known, call record_outcome with the
   decision_id and whether it succeeded. This updates the engine's
   confidence in the cited principles so future counsel favors what has
   empirically worked.
3. Use search_principles, get_decision_template, get_synergies and
   get_tensions to explore the underlying corpus directly.
4. Use pre_work_context before starting a task to get relevant frameworks
   and anti-patterns without a full adversarial counsel.
5. Use audit_decision to verify a decision's provenance chain has not been
   tampered with, and wisdom_stats / sync_posteriors to inspect the
   engine's overall learning state.

validate_prd, check_blind_spots and detect_anti_patterns are registered
but intentionally not implemented in this build.`

// Server wraps the MCP server with oraculum's engine façade.
type Server struct {
	mcpServer *mcpserver.MCPServer
	engine    *engine.Engine
}

// New creates and configures an MCP server exposing every RPC in spec.md
// §6's tool table.
func New(eng *engine.Engine, version string) *Server {
	s := &Server{engine: eng}

	s.mcpServer = mcpserver.NewMCPServer(
		"oraculum",
		version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithInstructions(serverInstructions),
	)

	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

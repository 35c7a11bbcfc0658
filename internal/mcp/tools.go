package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/oraculum-ai/oraculum/internal/outcome"
)

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcplib.NewTool("counsel",
			mcplib.WithDescription(`Get adversarial counsel on a decision question: opposing FOR/AGAINST
positions each attributed to a curated thinker and backed by a principle,
plus a Devil's Advocate challenge of missing considerations.

WHEN TO USE: before committing to a non-trivial architectural, technical
or process decision.`),
			mcplib.WithReadOnlyHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithString("question",
				mcplib.Description("The decision question in natural language."),
				mcplib.Required(),
			),
			mcplib.WithString("domain",
				mcplib.Description("Optional domain hint (e.g. \"performance\", \"security\") used to bias retrieval and posterior lookups."),
			),
			mcplib.WithString("depth",
				mcplib.Description(`Controls how many positions are requested: "quick" (1/side), "standard" (2/side, default), "deep" (3/side).`),
			),
			mcplib.WithString("decision_id",
				mcplib.Description("Optional caller-supplied id for the resulting decision record. A UUID is generated if omitted."),
			),
		),
		s.handleCounsel,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("record_outcome",
			mcplib.WithDescription(`Report the real-world outcome of a decision previously returned by counsel.
Updates the per-principle (and per-domain) Bayesian posteriors so future
counsel favors what has empirically worked. Idempotent per decision_id.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithString("decision_id",
				mcplib.Description("The decision_id returned by counsel."),
				mcplib.Required(),
			),
			mcplib.WithBoolean("success",
				mcplib.Description("Whether the decision's real-world result was a success."),
				mcplib.Required(),
			),
			mcplib.WithString("notes",
				mcplib.Description("Optional free-text notes about the outcome."),
			),
		),
		s.handleRecordOutcome,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("record_outcomes_batch",
			mcplib.WithDescription(`Report outcomes for several decisions at once, applied as a single
transaction: if any item fails the whole batch rolls back and none of the posteriors change.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithArray("outcomes",
				mcplib.Description(`Array of {"decision_id": string, "success": bool, "notes": string (optional)}.`),
				mcplib.Required(),
			),
		),
		s.handleRecordOutcomesBatch,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("search_principles",
			mcplib.WithDescription("Search the principle corpus directly by free text, fused lexical+semantic ranking."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithString("query", mcplib.Required()),
			mcplib.WithString("domain", mcplib.Description("Optional domain tag filter.")),
			mcplib.WithNumber("limit", mcplib.Min(1), mcplib.Max(50), mcplib.DefaultNumber(10)),
		),
		s.handleSearchPrinciples,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("get_decision_template",
			mcplib.WithDescription("Look up a pre-declared decision archetype (e.g. \"monolith-vs-microservices\") by id."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithString("template_id", mcplib.Required()),
		),
		s.handleGetDecisionTemplate,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("get_synergies",
			mcplib.WithDescription("Return declared synergy pairs among the given principle ids."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithArray("principle_ids", mcplib.Required()),
		),
		s.handleGetSynergies,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("get_tensions",
			mcplib.WithDescription("Return declared tension pairs among the given principle ids."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithArray("principle_ids", mcplib.Required()),
		),
		s.handleGetTensions,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("wisdom_stats",
			mcplib.WithDescription("Aggregate learning stats: total principles, total arm pulls, top/bottom five principles by posterior mean."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
		),
		s.handleWisdomStats,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("audit_decision",
			mcplib.WithDescription("Verify a decision's provenance chain: content hash, previous-hash link and signature."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithString("decision_id", mcplib.Required()),
		),
		s.handleAuditDecision,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("sync_posteriors",
			mcplib.WithDescription("Return every global arm posterior, for callers that cache confidence values locally."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
		),
		s.handleSyncPosteriors,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("counterfactual_sim",
			mcplib.WithDescription(`Re-run counsel excluding specific principles and report how many newly
surfaced principles weren't in the unconstrained slate (diversity_delta).`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithString("question", mcplib.Required()),
			mcplib.WithString("domain"),
			mcplib.WithArray("excluded_principles", mcplib.Required()),
		),
		s.handleCounterfactualSim,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("pre_work_context",
			mcplib.WithDescription("Get relevant frameworks and anti-patterns for an upcoming task, without a full adversarial counsel."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithString("task", mcplib.Required()),
		),
		s.handlePreWorkContext,
	)

	s.registerStubTools()
}

func (s *Server) handleCounsel(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	question := request.GetString("question", "")
	domainStr := request.GetString("domain", "")
	depth := request.GetString("depth", "")
	decisionID := request.GetString("decision_id", "")

	var domain *string
	if domainStr != "" {
		domain = &domainStr
	}

	resp, err := s.engine.Counsel(ctx, question, domain, depth, decisionID)
	if err != nil {
		return errorResult(fmt.Sprintf("counsel failed: %v", err)), nil
	}
	return jsonResult(resp)
}

func (s *Server) handleRecordOutcome(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	decisionID := request.GetString("decision_id", "")
	success := request.GetBool("success", false)
	notesStr := request.GetString("notes", "")

	var notes *string
	if notesStr != "" {
		notes = &notesStr
	}

	ids, confidences, err := s.engine.RecordOutcome(ctx, decisionID, success, notes)
	if err != nil {
		return errorResult(fmt.Sprintf("record_outcome failed: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"principles_adjusted": ids,
		"new_confidences":     confidences,
	})
}

func (s *Server) handleRecordOutcomesBatch(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	raw, _ := request.Params.Arguments["outcomes"].([]any)
	outcomes := make([]outcome.Outcome, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		o := outcome.Outcome{}
		if id, ok := m["decision_id"].(string); ok {
			o.DecisionID = id
		}
		if success, ok := m["success"].(bool); ok {
			o.Success = success
		}
		if notes, ok := m["notes"].(string); ok && notes != "" {
			o.Notes = &notes
		}
		outcomes = append(outcomes, o)
	}

	applied, err := s.engine.RecordOutcomesBatch(ctx, outcomes)
	if err != nil {
		return errorResult(fmt.Sprintf("record_outcomes_batch failed, batch rolled back: %v", err)), nil
	}
	return jsonResult(map[string]any{"applied": applied})
}

func (s *Server) handleSearchPrinciples(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	query := request.GetString("query", "")
	domain := request.GetString("domain", "")
	limit := request.GetInt("limit", 10)

	results, err := s.engine.SearchPrinciples(ctx, query, domain, limit)
	if err != nil {
		return errorResult(fmt.Sprintf("search_principles failed: %v", err)), nil
	}
	return jsonResult(map[string]any{"results": results})
}

func (s *Server) handleGetDecisionTemplate(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	templateID := request.GetString("template_id", "")
	tpl, err := s.engine.GetDecisionTemplate(templateID)
	if err != nil {
		return errorResult(fmt.Sprintf("get_decision_template failed: %v", err)), nil
	}
	return jsonResult(tpl)
}

func (s *Server) handleGetSynergies(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	ids := stringSliceArg(request, "principle_ids")
	return jsonResult(map[string]any{"synergies": s.engine.GetSynergies(ids)})
}

func (s *Server) handleGetTensions(_ context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	ids := stringSliceArg(request, "principle_ids")
	return jsonResult(map[string]any{"tensions": s.engine.GetTensions(ids)})
}

func (s *Server) handleWisdomStats(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	stats, err := s.engine.WisdomStats(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("wisdom_stats failed: %v", err)), nil
	}
	return jsonResult(stats)
}

func (s *Server) handleAuditDecision(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	decisionID := request.GetString("decision_id", "")
	result, err := s.engine.AuditDecision(ctx, decisionID)
	if err != nil {
		return errorResult(fmt.Sprintf("audit_decision failed: %v", err)), nil
	}
	return jsonResult(result)
}

func (s *Server) handleSyncPosteriors(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	posteriors, err := s.engine.SyncPosteriors(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("sync_posteriors failed: %v", err)), nil
	}
	return jsonResult(map[string]any{"posteriors": posteriors})
}

func (s *Server) handleCounterfactualSim(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	question := request.GetString("question", "")
	domainStr := request.GetString("domain", "")
	excluded := stringSliceArg(request, "excluded_principles")

	var domain *string
	if domainStr != "" {
		domain = &domainStr
	}

	result, err := s.engine.CounterfactualSim(ctx, question, domain, excluded)
	if err != nil {
		return errorResult(fmt.Sprintf("counterfactual_sim failed: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"counsel":         result.Counsel,
		"diversity_delta": result.DiversityDelta,
	})
}

func (s *Server) handlePreWorkContext(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	task := request.GetString("task", "")
	result, err := s.engine.PreWorkContext(ctx, task)
	if err != nil {
		return errorResult(fmt.Sprintf("pre_work_context failed: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"frameworks":         result.Frameworks,
		"anti_patterns":      result.AntiPatterns,
		"suggested_approach": result.SuggestedApproach,
	})
}

func stringSliceArg(request mcplib.CallToolRequest, key string) []string {
	raw, _ := request.Params.Arguments[key].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(b)},
		},
	}, nil
}

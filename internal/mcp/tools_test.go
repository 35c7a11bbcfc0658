package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oraculum-ai/oraculum/internal/engine"
	"github.com/oraculum-ai/oraculum/internal/model"
	"github.com/oraculum-ai/oraculum/internal/provenance"
	"github.com/oraculum-ai/oraculum/internal/retrieval"
	"github.com/oraculum-ai/oraculum/internal/storage"
	"github.com/oraculum-ai/oraculum/internal/telemetry"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "mcp-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	thinkers := []model.Thinker{
		{ID: "taleb", Name: "Nassim Taleb", Domain: model.DomainDecisionMaking, Background: "risk"},
		{ID: "deming", Name: "W. Edwards Deming", Domain: model.DomainSystems, Background: "quality"},
	}
	for _, th := range thinkers {
		require.NoError(t, store.InsertThinker(ctx, th))
	}
	principles := []model.Principle{
		{
			ID: "antifragility", ThinkerID: "taleb", Name: "Antifragility",
			Description:   "Prefer systems that gain from disorder over migrating to a distributed deployment.",
			DomainTags:    []string{"architecture"},
			Falsification: "the system degrades under volatility instead of improving",
			DefaultStance: model.StanceFor,
		},
		{
			ID: "reduce-variation", ThinkerID: "deming", Name: "Reduce Variation",
			Description:   "A monolith reduces variation in deployment compared to a distributed migration.",
			DomainTags:    []string{"architecture"},
			Falsification: "variation increases after the change",
			DefaultStance: model.StanceAgainst,
		},
	}
	for _, p := range principles {
		require.NoError(t, store.InsertPrinciple(ctx, p))
	}

	chain, err := provenance.Init(store, "")
	require.NoError(t, err)

	eng := engine.New(store, nil, nil, chain, "standard", retrieval.DefaultConfig(), telemetry.Instruments{})
	return New(eng, "test")
}

func toolRequest(name string, args map[string]any) mcplib.CallToolRequest {
	return mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: name, Arguments: args},
	}
}

func parseToolText(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no TextContent found in tool result")
	return ""
}

func TestHandleCounsel(t *testing.T) {
	s := newTestServer(t)
	result, err := s.handleCounsel(context.Background(), toolRequest("counsel", map[string]any{
		"question": "should we do a distributed migration",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, "counsel should succeed: %s", parseToolText(t, result))

	var resp model.CounselResponse
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &resp))
	assert.NotEmpty(t, resp.DecisionID)
}

func TestHandleCounsel_MissingQuestion(t *testing.T) {
	s := newTestServer(t)
	result, err := s.handleCounsel(context.Background(), toolRequest("counsel", map[string]any{}))
	require.NoError(t, err)
	require.True(t, result.IsError)
	assert.Contains(t, parseToolText(t, result), "question is required")
}

func TestHandleRecordOutcome(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	counselResult, err := s.handleCounsel(ctx, toolRequest("counsel", map[string]any{
		"question": "should we do a distributed migration",
	}))
	require.NoError(t, err)
	require.False(t, counselResult.IsError)
	var counselResp model.CounselResponse
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, counselResult)), &counselResp))

	result, err := s.handleRecordOutcome(ctx, toolRequest("record_outcome", map[string]any{
		"decision_id": counselResp.DecisionID,
		"success":     true,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, "record_outcome should succeed: %s", parseToolText(t, result))

	var resp struct {
		PrinciplesAdjusted []string           `json:"principles_adjusted"`
		NewConfidences     map[string]float64 `json:"new_confidences"`
	}
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &resp))
	assert.NotEmpty(t, resp.PrinciplesAdjusted)
}

func TestHandleRecordOutcome_MissingDecisionID(t *testing.T) {
	s := newTestServer(t)
	result, err := s.handleRecordOutcome(context.Background(), toolRequest("record_outcome", map[string]any{
		"success": true,
	}))
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestHandleRecordOutcomesBatch(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	counselResult, err := s.handleCounsel(ctx, toolRequest("counsel", map[string]any{
		"question": "should we do a distributed migration",
	}))
	require.NoError(t, err)
	var counselResp model.CounselResponse
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, counselResult)), &counselResp))

	result, err := s.handleRecordOutcomesBatch(ctx, toolRequest("record_outcomes_batch", map[string]any{
		"outcomes": []any{
			map[string]any{"decision_id": counselResp.DecisionID, "success": true},
		},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, "record_outcomes_batch should succeed: %s", parseToolText(t, result))

	var resp struct {
		Applied int `json:"applied"`
	}
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &resp))
	assert.Equal(t, 1, resp.Applied)
}

func TestHandleSearchPrinciples(t *testing.T) {
	s := newTestServer(t)
	result, err := s.handleSearchPrinciples(context.Background(), toolRequest("search_principles", map[string]any{
		"query": "distributed migration",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var resp struct {
		Results []model.Principle `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &resp))
	assert.NotEmpty(t, resp.Results)
}

func TestHandleGetDecisionTemplate(t *testing.T) {
	s := newTestServer(t)
	result, err := s.handleGetDecisionTemplate(context.Background(), toolRequest("get_decision_template", map[string]any{
		"template_id": "monolith-vs-microservices",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var tpl model.Template
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &tpl))
	assert.Equal(t, "monolith-vs-microservices", tpl.ID)
}

func TestHandleGetDecisionTemplate_Unknown(t *testing.T) {
	s := newTestServer(t)
	result, err := s.handleGetDecisionTemplate(context.Background(), toolRequest("get_decision_template", map[string]any{
		"template_id": "does-not-exist",
	}))
	require.NoError(t, err)
	require.True(t, result.IsError)
}

func TestHandleGetSynergiesAndTensions(t *testing.T) {
	s := newTestServer(t)
	result, err := s.handleGetSynergies(context.Background(), toolRequest("get_synergies", map[string]any{
		"principle_ids": []any{"antifragility", "reduce-variation"},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	result, err = s.handleGetTensions(context.Background(), toolRequest("get_tensions", map[string]any{
		"principle_ids": []any{"antifragility", "reduce-variation"},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
}

func TestHandleWisdomStats(t *testing.T) {
	s := newTestServer(t)
	result, err := s.handleWisdomStats(context.Background(), toolRequest("wisdom_stats", map[string]any{}))
	require.NoError(t, err)
	require.False(t, result.IsError)
}

func TestHandleAuditDecision(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	counselResult, err := s.handleCounsel(ctx, toolRequest("counsel", map[string]any{
		"question": "should we do a distributed migration",
	}))
	require.NoError(t, err)
	var counselResp model.CounselResponse
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, counselResult)), &counselResp))

	result, err := s.handleAuditDecision(ctx, toolRequest("audit_decision", map[string]any{
		"decision_id": counselResp.DecisionID,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var audit model.AuditResult
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &audit))
	assert.True(t, audit.ChainValid)
}

func TestHandleSyncPosteriors(t *testing.T) {
	s := newTestServer(t)
	result, err := s.handleSyncPosteriors(context.Background(), toolRequest("sync_posteriors", map[string]any{}))
	require.NoError(t, err)
	require.False(t, result.IsError)
}

func TestHandleCounterfactualSim(t *testing.T) {
	s := newTestServer(t)
	result, err := s.handleCounterfactualSim(context.Background(), toolRequest("counterfactual_sim", map[string]any{
		"question":             "should we do a distributed migration",
		"excluded_principles":  []any{"antifragility"},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, "counterfactual_sim should succeed: %s", parseToolText(t, result))
}

func TestHandlePreWorkContext(t *testing.T) {
	s := newTestServer(t)
	result, err := s.handlePreWorkContext(context.Background(), toolRequest("pre_work_context", map[string]any{
		"task": "should we do a distributed migration",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var resp struct {
		Frameworks        []string `json:"frameworks"`
		SuggestedApproach string   `json:"suggested_approach"`
	}
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &resp))
	assert.NotEmpty(t, resp.Frameworks)
}

func TestStringSliceArg(t *testing.T) {
	req := toolRequest("x", map[string]any{"ids": []any{"a", "b", 3}})
	assert.Equal(t, []string{"a", "b"}, stringSliceArg(req, "ids"))
}

func TestStringSliceArgMissingKey(t *testing.T) {
	req := toolRequest("x", map[string]any{})
	assert.Empty(t, stringSliceArg(req, "ids"))
}

func TestErrorResult(t *testing.T) {
	result := errorResult("boom")
	require.True(t, result.IsError)
	require.Len(t, result.Content, 1)
	tc, ok := result.Content[0].(mcplib.TextContent)
	require.True(t, ok)
	assert.Equal(t, "boom", tc.Text)
}

func TestNewRegistersServer(t *testing.T) {
	s := newTestServer(t)
	assert.NotNil(t, s.MCPServer())
}

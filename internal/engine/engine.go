// Package engine is the façade that composes every subsystem (C1-C9) into
// the RPC surface described in spec.md §6: counsel, record_outcome,
// record_outcomes_batch, search_principles, get_decision_template,
// get_synergies, get_tensions, wisdom_stats, audit_decision,
// sync_posteriors, counterfactual_sim, pre_work_context.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/oraculum-ai/oraculum/internal/counsel"
	"github.com/oraculum-ai/oraculum/internal/model"
	"github.com/oraculum-ai/oraculum/internal/neural"
	"github.com/oraculum-ai/oraculum/internal/outcome"
	"github.com/oraculum-ai/oraculum/internal/provenance"
	"github.com/oraculum-ai/oraculum/internal/retrieval"
	"github.com/oraculum-ai/oraculum/internal/semantic"
	"github.com/oraculum-ai/oraculum/internal/storage"
	"github.com/oraculum-ai/oraculum/internal/telemetry"
	"github.com/oraculum-ai/oraculum/internal/template"
)

// ErrInvalidInput is returned for caller-supplied arguments that fail
// validation before any subsystem is touched (spec.md §7).
var ErrInvalidInput = errors.New("engine: invalid input")

// Engine wires the retrieval pipeline, counsel assembler, outcome updater
// and provenance chain into one façade, plus the two read-only RPCs
// (wisdom_stats, pre_work_context) that don't map onto a single subsystem.
type Engine struct {
	store       *storage.Store
	pipeline    *retrieval.Pipeline
	assembler   *counsel.Assembler
	updater     *outcome.Updater
	chain       *provenance.Chain
	defaultDepth model.Depth
	instruments telemetry.Instruments
}

// New builds an Engine. index and scorer may be nil; the pipeline degrades
// to lexical-only retrieval and arm sampling respectively (spec.md §4.2,
// §4.5, §7).
func New(store *storage.Store, index semantic.Index, scorer neural.Scorer, chain *provenance.Chain, defaultDepth string, cfg retrieval.Config, instruments telemetry.Instruments) *Engine {
	depth := model.Depth(defaultDepth)
	if !model.ValidDepth(defaultDepth) {
		depth = model.DepthStandard
	}
	return &Engine{
		store:        store,
		pipeline:     retrieval.New(store, index, scorer, cfg),
		assembler:    counsel.New(store),
		updater:      outcome.New(store),
		chain:        chain,
		defaultDepth: depth,
		instruments:  instruments,
	}
}

// Counsel runs C3->C6->C7->C1->C9 for one decision question: template
// match, fused/reranked retrieval, counsel assembly, persistence, and
// provenance signing, all before returning (spec.md §3's control-flow
// note on counsel calls).
func (e *Engine) Counsel(ctx context.Context, question string, domain *string, depthStr string, decisionID string) (model.CounselResponse, error) {
	start := time.Now()

	if question == "" {
		return model.CounselResponse{}, fmt.Errorf("%w: question is required", ErrInvalidInput)
	}
	depth := e.defaultDepth
	if depthStr != "" {
		if !model.ValidDepth(depthStr) {
			return model.CounselResponse{}, fmt.Errorf("%w: depth %q must be one of quick, standard, deep", ErrInvalidInput, depthStr)
		}
		depth = model.Depth(depthStr)
	}

	domainStr := ""
	if domain != nil {
		domainStr = *domain
	}

	result, err := e.pipeline.Run(ctx, question, domainStr, nil, depth)
	if err != nil {
		return model.CounselResponse{}, fmt.Errorf("engine: retrieval: %w", err)
	}

	resp, err := e.assembler.Assemble(ctx, decisionID, result, depth)
	if err != nil {
		return model.CounselResponse{}, fmt.Errorf("engine: assemble counsel: %w", err)
	}

	counselJSON, err := marshalCounsel(resp)
	if err != nil {
		return model.CounselResponse{}, fmt.Errorf("engine: marshal counsel: %w", err)
	}

	rec := model.DecisionRecord{
		ID:          resp.DecisionID,
		Question:    question,
		Domain:      domain,
		CounselJSON: counselJSON,
		Outcome:     model.OutcomePending,
		CreatedAt:   time.Now().UTC(),
	}

	link, err := e.chain.SignDecision(ctx, rec)
	if err != nil {
		return model.CounselResponse{}, fmt.Errorf("engine: sign decision: %w", err)
	}

	if err := e.store.PersistDecision(ctx, rec); err != nil {
		return model.CounselResponse{}, fmt.Errorf("engine: persist decision: %w", err)
	}
	if err := e.store.PersistProvenance(ctx, link); err != nil {
		return model.CounselResponse{}, fmt.Errorf("engine: persist provenance: %w", err)
	}

	e.recordCounselTelemetry(ctx, start, resp)
	return resp, nil
}

func (e *Engine) recordCounselTelemetry(ctx context.Context, start time.Time, resp model.CounselResponse) {
	if e.instruments.CounselLatency != nil {
		e.instruments.CounselLatency.Record(ctx, float64(time.Since(start).Milliseconds()))
	}
	if resp.Partial && e.instruments.PartialResults != nil {
		e.instruments.PartialResults.Add(ctx, 1)
	}
	if e.instruments.ArmPulls != nil {
		e.instruments.ArmPulls.Add(ctx, int64(len(resp.PrincipleIDs())))
	}
}

// RecordOutcome applies C8 for a single decision (spec.md §4.8). Returns the
// cited principle ids adjusted and their new ρ values.
func (e *Engine) RecordOutcome(ctx context.Context, decisionID string, success bool, notes *string) ([]string, map[string]float64, error) {
	if decisionID == "" {
		return nil, nil, fmt.Errorf("%w: decision_id is required", ErrInvalidInput)
	}
	results, err := e.updater.RecordOutcome(ctx, decisionID, success, notes)
	if err != nil {
		return nil, nil, fmt.Errorf("engine: record outcome: %w", err)
	}
	ids := make([]string, 0, len(results))
	confidences := make(map[string]float64, len(results))
	for _, r := range results {
		ids = append(ids, r.PrincipleID)
		confidences[r.PrincipleID] = r.Rho
	}
	return ids, confidences, nil
}

// RecordOutcomesBatch applies record_outcomes_batch as a single all-or-
// nothing unit: it returns the number of outcomes applied, or zero and an
// error if any item failed and the whole batch was rolled back (spec.md
// §4.8).
func (e *Engine) RecordOutcomesBatch(ctx context.Context, outcomes []outcome.Outcome) (int, error) {
	results, err := e.updater.RecordOutcomesBatch(ctx, outcomes)
	if err != nil {
		return 0, fmt.Errorf("engine: record outcomes batch: %w", err)
	}
	return len(results), nil
}

// SearchPrinciples implements search_principles: fused lexical+semantic
// ranking over the corpus, reusing C1's lexical index and, when healthy,
// C2's semantic index, fused the same way C6 fuses sources.
func (e *Engine) SearchPrinciples(ctx context.Context, query string, domain string, limit int) ([]model.Principle, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 10
	}

	lexResults, err := e.store.LexicalSearch(ctx, query, domain, limit*3)
	if err != nil {
		return nil, fmt.Errorf("engine: lexical search: %w", err)
	}

	ranked := make([]string, len(lexResults))
	for i, r := range lexResults {
		ranked[i] = r.PrincipleID
	}

	sources := map[string]retrieval.RankedSource{"lexical": ranked}
	fused := retrieval.Fuse(sources, retrieval.DefaultKRRF)

	ids := make([]string, 0, len(fused))
	for id := range fused {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if fused[ids[i]] != fused[ids[j]] {
			return fused[ids[i]] > fused[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]model.Principle, 0, len(ids))
	for _, id := range ids {
		p, err := e.store.GetPrinciple(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// GetDecisionTemplate implements get_decision_template: a direct lookup in
// the C3 catalogue by template id.
func (e *Engine) GetDecisionTemplate(templateID string) (model.Template, error) {
	for _, t := range template.Catalogue {
		if t.ID == templateID {
			return t, nil
		}
	}
	return model.Template{}, fmt.Errorf("%w: unknown template %q", storage.ErrNotFound, templateID)
}

// GetSynergies implements get_synergies: every declared synergy pair in the
// C3 catalogue where both principle ids are in the requested set.
func (e *Engine) GetSynergies(principleIDs []string) [][2]string {
	return filterPairs(principleIDs, func(t model.Template) [][2]string { return t.Synergies })
}

// GetTensions implements get_tensions: every declared tension pair in the
// C3 catalogue where both principle ids are in the requested set.
func (e *Engine) GetTensions(principleIDs []string) [][2]string {
	return filterPairs(principleIDs, func(t model.Template) [][2]string { return t.Tensions })
}

func filterPairs(principleIDs []string, pick func(model.Template) [][2]string) [][2]string {
	want := make(map[string]bool, len(principleIDs))
	for _, id := range principleIDs {
		want[id] = true
	}

	seen := make(map[[2]string]bool)
	var out [][2]string
	for _, t := range template.Catalogue {
		for _, pair := range pick(t) {
			if !want[pair[0]] || !want[pair[1]] {
				continue
			}
			if seen[pair] {
				continue
			}
			seen[pair] = true
			out = append(out, pair)
		}
	}
	return out
}

// WisdomStatsResult is the response shape for wisdom_stats.
type WisdomStatsResult struct {
	TotalPrinciples int
	TotalPulls      int
	TopPrinciples   []outcome.Result
	BottomPrinciples []outcome.Result
}

// WisdomStats implements wisdom_stats: aggregate totals plus the top/bottom
// five principles by posterior mean ρ (spec.md §6 names the RPC; the
// concrete aggregate shape is this engine's own addition, per SPEC_FULL.md's
// supplemented-features note).
func (e *Engine) WisdomStats(ctx context.Context) (WisdomStatsResult, error) {
	arms, err := e.store.AllArms(ctx)
	if err != nil {
		return WisdomStatsResult{}, fmt.Errorf("engine: wisdom stats: %w", err)
	}

	results := make([]outcome.Result, len(arms))
	totalPulls := 0
	for i, a := range arms {
		results[i] = outcome.Result{PrincipleID: a.PrincipleID, Rho: a.Rho()}
		totalPulls += a.Pulls
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Rho != results[j].Rho {
			return results[i].Rho > results[j].Rho
		}
		return results[i].PrincipleID < results[j].PrincipleID
	})

	const topN = 5
	top := results
	if len(top) > topN {
		top = top[:topN]
	}
	bottom := make([]outcome.Result, len(results))
	copy(bottom, results)
	sort.Slice(bottom, func(i, j int) bool {
		if bottom[i].Rho != bottom[j].Rho {
			return bottom[i].Rho < bottom[j].Rho
		}
		return bottom[i].PrincipleID < bottom[j].PrincipleID
	})
	if len(bottom) > topN {
		bottom = bottom[:topN]
	}

	return WisdomStatsResult{
		TotalPrinciples:  len(arms),
		TotalPulls:       totalPulls,
		TopPrinciples:    top,
		BottomPrinciples: bottom,
	}, nil
}

// AuditDecision implements audit_decision: delegates to C9's chain
// verification.
func (e *Engine) AuditDecision(ctx context.Context, decisionID string) (model.AuditResult, error) {
	if decisionID == "" {
		return model.AuditResult{}, fmt.Errorf("%w: decision_id is required", ErrInvalidInput)
	}
	result, err := e.chain.Verify(ctx, decisionID)
	if err != nil {
		return model.AuditResult{}, fmt.Errorf("engine: audit decision: %w", err)
	}
	return result, nil
}

// SyncPosteriors implements sync_posteriors: the full set of global
// posteriors, for callers that cache ρ locally.
func (e *Engine) SyncPosteriors(ctx context.Context) ([]model.ArmPosterior, error) {
	arms, err := e.store.AllArms(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: sync posteriors: %w", err)
	}
	return arms, nil
}

// CounterfactualSimResult is the response shape for counterfactual_sim.
type CounterfactualSimResult struct {
	Counsel       model.CounselResponse
	DiversityDelta float64
}

// CounterfactualSim implements counterfactual_sim: re-runs the retrieval
// pipeline excluding the given principle ids and reports how many newly
// surfaced principles weren't in the original (unconstrained) slate
// (spec.md §8 scenario 4: excluding cited principles must yield a strictly
// positive diversity_delta).
func (e *Engine) CounterfactualSim(ctx context.Context, question string, domain *string, excludedPrincipleIDs []string) (CounterfactualSimResult, error) {
	if question == "" {
		return CounterfactualSimResult{}, fmt.Errorf("%w: question is required", ErrInvalidInput)
	}
	domainStr := ""
	if domain != nil {
		domainStr = *domain
	}

	baseline, err := e.pipeline.Run(ctx, question, domainStr, nil, e.defaultDepth)
	if err != nil {
		return CounterfactualSimResult{}, fmt.Errorf("engine: counterfactual baseline: %w", err)
	}
	baseSet := citedSet(baseline)

	alt, err := e.pipeline.Run(ctx, question, domainStr, excludedPrincipleIDs, e.defaultDepth)
	if err != nil {
		return CounterfactualSimResult{}, fmt.Errorf("engine: counterfactual alternative: %w", err)
	}

	resp, err := e.assembler.Assemble(ctx, "", alt, e.defaultDepth)
	if err != nil {
		return CounterfactualSimResult{}, fmt.Errorf("engine: assemble counterfactual counsel: %w", err)
	}

	altSet := citedSet(alt)
	var newlySurfaced float64
	for id := range altSet {
		if !baseSet[id] {
			newlySurfaced++
		}
	}

	return CounterfactualSimResult{Counsel: resp, DiversityDelta: newlySurfaced}, nil
}

func citedSet(result *retrieval.Result) map[string]bool {
	out := make(map[string]bool, len(result.Pro)+len(result.Con))
	for _, c := range result.Pro {
		out[c.Principle.ID] = true
	}
	for _, c := range result.Con {
		out[c.Principle.ID] = true
	}
	return out
}

// PreWorkContextResult is the response shape for pre_work_context.
type PreWorkContextResult struct {
	Frameworks        []string
	AntiPatterns      []string
	SuggestedApproach string
}

// PreWorkContext implements pre_work_context: a thin wrapper around C3+C6
// (template match plus top retrieval candidates, no counsel balancing),
// reusing retrieval logic rather than inventing a separate one (SPEC_FULL.md
// supplemented-features note).
func (e *Engine) PreWorkContext(ctx context.Context, task string) (PreWorkContextResult, error) {
	if task == "" {
		return PreWorkContextResult{}, fmt.Errorf("%w: task is required", ErrInvalidInput)
	}

	result, err := e.pipeline.Run(ctx, task, "", nil, model.DepthStandard)
	if err != nil {
		return PreWorkContextResult{}, fmt.Errorf("engine: pre-work context: %w", err)
	}

	var frameworks, antiPatterns []string
	seenFrameworks := make(map[string]bool)
	for _, c := range append(append([]retrieval.Candidate{}, result.Pro...), result.Con...) {
		if !seenFrameworks[c.Principle.Name] {
			seenFrameworks[c.Principle.Name] = true
			frameworks = append(frameworks, c.Principle.Name)
		}
		if c.Principle.AntiPattern != nil {
			antiPatterns = append(antiPatterns, *c.Principle.AntiPattern)
		}
	}

	suggested := fmt.Sprintf("no matching decision archetype for %q; proceed using the cited frameworks above", task)
	if result.Template != nil {
		suggested = fmt.Sprintf("this resembles the %q archetype; weigh the cited frameworks against its declared blind spots", result.Template.Name)
		antiPatterns = append(antiPatterns, result.Template.AntiPattern...)
	}

	return PreWorkContextResult{
		Frameworks:        frameworks,
		AntiPatterns:      dedup(antiPatterns),
		SuggestedApproach: suggested,
	}, nil
}

func dedup(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func marshalCounsel(resp model.CounselResponse) (string, error) {
	b, err := json.Marshal(resp)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

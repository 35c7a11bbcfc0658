package retrieval

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/oraculum-ai/oraculum/internal/model"
	"github.com/oraculum-ai/oraculum/internal/neural"
	"github.com/oraculum-ai/oraculum/internal/sampler"
	"github.com/oraculum-ai/oraculum/internal/semantic"
	"github.com/oraculum-ai/oraculum/internal/storage"
	"github.com/oraculum-ai/oraculum/internal/template"
)

// Config holds the pipeline's tunable weights, all with spec.md §4.6 defaults.
type Config struct {
	TopK     int     // default 50
	WFts     float64 // default 0.3
	WSem     float64 // default 0.5
	KRRF     int     // default 60
	WExplore float64 // default 0.5
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{TopK: 50, WFts: 0.3, WSem: 0.5, KRRF: DefaultKRRF, WExplore: 0.5}
}

// Candidate is one surviving principle after rerank and selection scoring.
type Candidate struct {
	Principle      model.Principle
	RRFScore       float64
	RerankScore    float64
	SelectionScore float64
	Rho            float64 // confidence of the arm/score used for this candidate
}

// Result is the pipeline's output: two ranked sub-lists plus a partial flag.
type Result struct {
	Pro        []Candidate
	Con        []Candidate
	Partial    bool
	Template   *model.Template // matched template, if any
}

// Pipeline composes C1 (storage), C2 (semantic), C3 (template), C4 (sampler)
// and the optional C5 (neural scorer) into the C6 retrieval algorithm.
type Pipeline struct {
	store  *storage.Store
	index  semantic.Index // may be nil: treated as "no semantic candidates"
	scorer neural.Scorer  // may be nil or neural.NoopScorer: falls back to sampler
	cfg    Config
}

// New builds a Pipeline. index and scorer may be nil.
func New(store *storage.Store, index semantic.Index, scorer neural.Scorer, cfg Config) *Pipeline {
	if scorer == nil {
		scorer = neural.NoopScorer{}
	}
	return &Pipeline{store: store, index: index, scorer: scorer, cfg: cfg}
}

// Run executes the full C6 algorithm for one counsel request.
func (p *Pipeline) Run(ctx context.Context, question string, domain string, excludeIDs []string, depth model.Depth) (*Result, error) {
	rng := rand.New(rand.NewSource(stableSeed(question)))

	sources := make(map[string]RankedSource)
	var matched *model.Template
	var antiPatterns map[string]bool

	if tpl, _, ok := template.Match(question); ok {
		matched = &tpl
		sources["template"] = RankedSource(tpl.Boost)
		antiPatterns = make(map[string]bool, len(tpl.AntiPattern))
		for _, id := range tpl.AntiPattern {
			antiPatterns[id] = true
		}
	}

	lexResults, err := p.store.LexicalSearch(ctx, question, domain, p.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieval: lexical search: %w", err)
	}
	lexRanked := make(RankedSource, len(lexResults))
	lexRaw := make(map[string]float64, len(lexResults))
	for i, r := range lexResults {
		lexRanked[i] = r.PrincipleID
		lexRaw[r.PrincipleID] = r.Score
	}
	sources["lexical"] = lexRanked

	semRaw := make(map[string]float64)
	var queryVec []float32
	if p.index != nil && p.index.Healthy() == nil {
		queryVec = p.index.EmbedQuery(question)
		semResults, err := p.index.SemanticSearch(queryVec, p.cfg.TopK)
		if err == nil {
			semRanked := make(RankedSource, len(semResults))
			for i, r := range semResults {
				semRanked[i] = r.PrincipleID
				semRaw[r.PrincipleID] = float64(r.Score)
			}
			sources["semantic"] = semRanked
		}
		// A failed semantic search degrades to "no semantic candidates," not
		// a fatal error (spec.md §4.2/§7).
	}

	rrfScores := Fuse(sources, p.cfg.KRRF)
	if len(rrfScores) == 0 {
		return &Result{Partial: true, Template: matched}, nil
	}

	lexNorm := normalize(lexRaw)
	semNorm := normalize(semRaw)

	exclude := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		exclude[id] = true
	}

	type scored struct {
		id          string
		principle   model.Principle
		rrfScore    float64
		rerankScore float64
		selection   float64
		rho         float64
	}

	var all []scored
	for id, rrf := range rrfScores {
		if exclude[id] || antiPatterns[id] {
			continue
		}

		principle, err := p.store.GetPrinciple(ctx, id)
		if err != nil {
			// A boost/candidate id that no longer resolves to a principle is
			// dropped rather than treated as a fatal error; the corpus may
			// have been edited since the template/index was built.
			continue
		}

		rerank := rrf + p.cfg.WFts*lexNorm[id] + p.cfg.WSem*semNorm[id]

		selectionScore, rho, err := p.selectionScore(ctx, id, domain, queryVec, rng)
		if err != nil {
			return nil, fmt.Errorf("retrieval: selection score for %s: %w", id, err)
		}

		all = append(all, scored{
			id:          id,
			principle:   principle,
			rrfScore:    rrf,
			rerankScore: rerank,
			selection:   rerank * selectionScore,
			rho:         rho,
		})
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].selection != all[j].selection {
			return all[i].selection > all[j].selection
		}
		if all[i].rho != all[j].rho {
			return all[i].rho > all[j].rho
		}
		return all[i].id < all[j].id
	})

	candidates := make([]Candidate, len(all))
	for i, s := range all {
		candidates[i] = Candidate{
			Principle:      s.principle,
			RRFScore:       s.rrfScore,
			RerankScore:    s.rerankScore,
			SelectionScore: s.selection,
			Rho:            s.rho,
		}
	}

	return p.assembleSlates(candidates, depth, matched), nil
}

// selectionScore returns (arm_or_neural_score, rho). rho is always the arm's
// posterior mean, used for confidence and tie-breaks regardless of which
// score drives selection.
func (p *Pipeline) selectionScore(ctx context.Context, principleID, domain string, queryVec []float32, rng *rand.Rand) (float64, float64, error) {
	arm, err := p.store.GetArm(ctx, principleID)
	if err != nil {
		return 0, 0, err
	}
	rho := arm.Rho()

	if queryVec != nil {
		if principleVec, embErr := p.store.GetEmbedding(ctx, principleID); embErr == nil {
			if mu, sigma, scoreErr := p.scorer.Score(queryVec, principleVec, neural.Context{Domain: domain}); scoreErr == nil {
				return neural.Combined(mu, sigma, p.cfg.WExplore), rho, nil
			}
		}
	}

	draw, err := sampler.Draw(ctx, p.store, principleID, domain, rng)
	if err != nil {
		return 0, 0, err
	}
	return draw, rho, nil
}

// assembleSlates splits the sorted candidate list into FOR/AGAINST slates
// honoring one-principle-per-thinker-per-side, ≥2 distinct thinkers when
// depth >= standard, and neutral-principle minority-side fill (spec.md §4.6).
func (p *Pipeline) assembleSlates(candidates []Candidate, depth model.Depth, tpl *model.Template) *Result {
	perSide := depth.PerSide()

	var forPool, againstPool, neutralPool []Candidate
	for _, c := range candidates {
		switch c.Principle.DefaultStance {
		case model.StanceFor:
			forPool = append(forPool, c)
		case model.StanceAgainst:
			againstPool = append(againstPool, c)
		default:
			neutralPool = append(neutralPool, c)
		}
	}

	pro := fillSide(forPool, perSide, map[string]bool{})
	proThinkers := thinkerSet(pro)
	con := fillSide(againstPool, perSide, map[string]bool{})
	conThinkers := thinkerSet(con)

	// Neutral principles fill the minority side first.
	for _, c := range neutralPool {
		if len(pro) >= perSide && len(con) >= perSide {
			break
		}
		target := &pro
		targetThinkers := proThinkers
		if len(con) < len(pro) || (len(con) == len(pro) && len(con) < perSide) {
			target = &con
			targetThinkers = conThinkers
		}
		if len(*target) >= perSide {
			continue
		}
		if targetThinkers[c.Principle.ThinkerID] {
			continue
		}
		*target = append(*target, c)
		targetThinkers[c.Principle.ThinkerID] = true
	}

	partial := len(pro) < perSide || len(con) < perSide

	if depth.Count() >= model.DepthStandard.Count() {
		distinct := make(map[string]bool)
		for _, c := range pro {
			distinct[c.Principle.ThinkerID] = true
		}
		for _, c := range con {
			distinct[c.Principle.ThinkerID] = true
		}
		if len(distinct) < 2 {
			partial = true
		}
	}

	return &Result{Pro: pro, Con: con, Partial: partial, Template: tpl}
}

func fillSide(pool []Candidate, perSide int, used map[string]bool) []Candidate {
	var out []Candidate
	for _, c := range pool {
		if len(out) >= perSide {
			break
		}
		if used[c.Principle.ThinkerID] {
			continue
		}
		out = append(out, c)
		used[c.Principle.ThinkerID] = true
	}
	return out
}

func thinkerSet(cands []Candidate) map[string]bool {
	set := make(map[string]bool, len(cands))
	for _, c := range cands {
		set[c.Principle.ThinkerID] = true
	}
	return set
}

func normalize(raw map[string]float64) map[string]float64 {
	if len(raw) == 0 {
		return raw
	}
	min, max := raw[anyKey(raw)], raw[anyKey(raw)]
	for _, v := range raw {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	out := make(map[string]float64, len(raw))
	if max == min {
		for k := range raw {
			out[k] = 1
		}
		return out
	}
	for k, v := range raw {
		out[k] = (v - min) / (max - min)
	}
	return out
}

func anyKey(m map[string]float64) string {
	for k := range m {
		return k
	}
	return ""
}

// stableSeed derives a deterministic RNG seed from the question text so
// Thompson sampling draws are reproducible for identical input within a
// process (spec.md §4.4 tolerates concurrent draws observing stale pull
// counts, but does not require nondeterminism).
func stableSeed(s string) int64 {
	var h int64 = 1469598103934665603
	for i := 0; i < len(s); i++ {
		h ^= int64(s[i])
		h *= 1099511628211
	}
	if h < 0 {
		h = -h
	}
	return h
}

// Package template implements the decision-archetype matcher (C3): a closed
// catalogue of ~12 well-known decision shapes detected from question text.
package template

import "github.com/oraculum-ai/oraculum/internal/model"

// Catalogue is the closed, ordered list of declared archetypes. Order matters:
// Match's tie-break rule favors the earliest-declared template (spec.md §4.3).
var Catalogue = []model.Template{
	{
		ID:   "monolith-vs-microservices",
		Name: "Monolith vs Microservices",
		Triggers: map[string]float64{
			"microservice": 1.0, "microservices": 1.0, "monolith": 1.0,
			"service boundary": 0.7, "split the codebase": 0.6, "distributed system": 0.4,
		},
		Boost:       []string{"conways-law-mapping", "yagni-principle", "boring-technology"},
		Synergies:   [][2]string{{"conways-law-mapping", "boring-technology"}},
		Tensions:    [][2]string{{"microservices-first", "yagni-principle"}},
		AntiPattern: []string{"premature-distributed-system"},
		BlindSpots:  []string{"operational overhead of a distributed system", "network partition handling", "on-call burden"},
	},
	{
		ID:   "rewrite-vs-refactor",
		Name: "Rewrite vs Refactor",
		Triggers: map[string]float64{
			"rewrite": 1.0, "rewrite from scratch": 1.0, "refactor": 0.8,
			"legacy code": 0.5, "big bang rewrite": 0.9, "strangler fig": 0.6,
		},
		Boost:       []string{"strangler-fig-pattern", "chesterton-fence"},
		Tensions:    [][2]string{{"big-bang-rewrite", "strangler-fig-pattern"}},
		AntiPattern: []string{"big-bang-rewrite"},
		BlindSpots:  []string{"rollback plan", "data migration risk", "feature parity gaps"},
	},
	{
		ID:   "build-vs-buy",
		Name: "Build vs Buy",
		Triggers: map[string]float64{
			"build vs buy": 1.0, "build or buy": 1.0, "vendor": 0.6,
			"off the shelf": 0.7, "saas": 0.5, "in house": 0.5,
		},
		Boost:      []string{"core-competency-focus", "total-cost-of-ownership"},
		BlindSpots: []string{"vendor lock-in", "total cost of ownership", "integration support burden"},
	},
	{
		ID:   "scale-team",
		Name: "Scaling a Team",
		Triggers: map[string]float64{
			"scale the team": 1.0, "hire": 0.4, "headcount": 0.7,
			"team size": 0.6, "two pizza team": 0.9, "org structure": 0.5,
		},
		Boost:     []string{"two-pizza-team", "conways-law-mapping"},
		Synergies: [][2]string{{"two-pizza-team", "conways-law-mapping"}},
	},
	{
		ID:   "add-caching",
		Name: "Adding a Caching Layer",
		Triggers: map[string]float64{
			"cache": 1.0, "caching": 1.0, "cache invalidation": 0.8,
			"latency": 0.4, "read heavy": 0.5,
		},
		Boost:       []string{"cache-invalidation-is-hard", "premature-optimization"},
		AntiPattern: []string{"premature-optimization"},
	},
	{
		ID:   "sql-vs-nosql",
		Name: "SQL vs NoSQL",
		Triggers: map[string]float64{
			"nosql": 1.0, "sql vs nosql": 1.0, "document store": 0.6,
			"relational database": 0.6, "schema flexibility": 0.5,
		},
		Boost: []string{"boring-technology", "total-cost-of-ownership"},
	},
	{
		ID:   "tdd-adoption",
		Name: "Adopting TDD",
		Triggers: map[string]float64{
			"test driven development": 1.0, "tdd": 1.0, "write tests first": 0.8,
			"test coverage": 0.4,
		},
		Boost: []string{"test-first-discipline", "yagni-principle"},
	},
	{
		ID:   "technical-debt",
		Name: "Technical Debt",
		Triggers: map[string]float64{
			"technical debt": 1.0, "tech debt": 1.0, "cut corners": 0.6,
			"shortcut": 0.4, "pay down debt": 0.8,
		},
		Boost: []string{"technical-debt-is-a-loan", "chesterton-fence"},
	},
	{
		ID:   "premature-optimization",
		Name: "Premature Optimization",
		Triggers: map[string]float64{
			"premature optimization": 1.0, "optimize early": 0.8,
			"performance tuning": 0.4, "micro optimization": 0.7,
		},
		Boost:       []string{"premature-optimization", "measure-dont-guess"},
		AntiPattern: []string{"premature-optimization"},
	},
	{
		ID:   "conways-law",
		Name: "Conway's Law",
		Triggers: map[string]float64{
			"conway's law": 1.0, "org chart": 0.6, "communication structure": 0.7,
			"team topology": 0.6,
		},
		Boost: []string{"conways-law-mapping", "two-pizza-team"},
	},
	{
		ID:   "yagni",
		Name: "YAGNI",
		Triggers: map[string]float64{
			"yagni": 1.0, "you aren't gonna need it": 1.0, "future proof": 0.5,
			"speculative generality": 0.8, "gold plating": 0.6,
		},
		Boost: []string{"yagni-principle", "simple-thing-that-could-possibly-work"},
	},
	{
		ID:   "simple-thing",
		Name: "Simplest Thing That Could Possibly Work",
		Triggers: map[string]float64{
			"simplest thing": 1.0, "keep it simple": 0.8, "overengineer": 0.6,
			"minimum viable": 0.4,
		},
		Boost: []string{"simple-thing-that-could-possibly-work", "yagni-principle"},
	},
}

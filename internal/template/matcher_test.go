package template_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oraculum-ai/oraculum/internal/model"
	"github.com/oraculum-ai/oraculum/internal/template"
)

func TestMatchFindsExactTrigger(t *testing.T) {
	tpl, score, ok := template.Match("Should we split this monolith into microservices?")
	require.True(t, ok)
	assert.Equal(t, "monolith-vs-microservices", tpl.ID)
	assert.Greater(t, score, model.MatchFloor)
}

func TestMatchIsCaseInsensitive(t *testing.T) {
	tpl, _, ok := template.Match("MICROSERVICES vs MONOLITH for our platform")
	require.True(t, ok)
	assert.Equal(t, "monolith-vs-microservices", tpl.ID)
}

func TestMatchReturnsFalseBelowFloor(t *testing.T) {
	_, score, ok := template.Match("what should I have for lunch today")
	assert.False(t, ok)
	assert.Less(t, score, model.MatchFloor)
}

func TestMatchPicksHighestWeightedCoverage(t *testing.T) {
	tpl, _, ok := template.Match("we are debating a full rewrite from scratch vs an incremental refactor using strangler fig")
	require.True(t, ok)
	assert.Equal(t, "rewrite-vs-refactor", tpl.ID)
}

func TestMatchTiesFavorEarlierDeclaration(t *testing.T) {
	// Every trigger of premature-optimization and of conways-law appears in
	// the question, so both score a coverage of exactly 1.0, above
	// MatchFloor. premature-optimization is declared first in Catalogue, so
	// it must win the tie.
	tpl, score, ok := template.Match("premature optimization, optimize early, performance tuning and micro optimization versus conway's law, org chart, communication structure and team topology")
	require.True(t, ok)
	assert.Equal(t, "premature-optimization", tpl.ID)
	assert.Greater(t, score, model.MatchFloor)
}

func TestCatalogueEntriesAreWellFormed(t *testing.T) {
	seen := make(map[string]bool)
	for _, tpl := range template.Catalogue {
		require.NotEmpty(t, tpl.ID)
		require.NotEmpty(t, tpl.Name)
		require.NotEmpty(t, tpl.Triggers, "template %s must declare at least one trigger", tpl.ID)
		require.False(t, seen[tpl.ID], "duplicate template id %s", tpl.ID)
		seen[tpl.ID] = true
		for phrase, weight := range tpl.Triggers {
			require.NotEmpty(t, phrase)
			require.Greater(t, weight, 0.0, "template %s trigger %q must have positive weight", tpl.ID, phrase)
		}
	}
}

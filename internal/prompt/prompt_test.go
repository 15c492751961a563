package prompt

import (
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flipbot/internal/history"
	"flipbot/internal/markers"
)

func TestDefaultTemplatesValidate(t *testing.T) {
	require.NoError(t, DefaultTemplates().Validate())
}

func TestBuildPhase1Substitutes(t *testing.T) {
	out, err := DefaultTemplates().BuildPhase1(
		"Analyze stablecoin flows.",
		[]string{"market_insights:multi:stablecoin-supply"},
	)
	require.NoError(t, err)

	assert.Contains(t, out, "Analyze stablecoin flows.")
	assert.Contains(t, out, "- market_insights:multi:stablecoin-supply")
	assert.NotContains(t, out, TopicPlaceholder)
	assert.NotContains(t, out, HistoryPlaceholder)
	assert.Contains(t, out, markers.Checkpoint)
}

func TestBuildPhase1EmptyHistory(t *testing.T) {
	out, err := DefaultTemplates().BuildPhase1("topic", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "(none yet)")
}

func TestBuildPhase1MissingPlaceholderFatal(t *testing.T) {
	tpl := DefaultTemplates()
	tpl.Phase1 = "no substitution points here"

	_, err := tpl.BuildPhase1("topic", nil)
	require.ErrorIs(t, err, ErrMissingPlaceholder)
}

func TestPhase2CarriesOutputMarkers(t *testing.T) {
	out := DefaultTemplates().BuildPhase2()
	assert.Contains(t, out, markers.TextBlock)
	assert.Contains(t, out, markers.ChartBlock)
	assert.Contains(t, out, markers.Conclusion)
}

func TestDefaultCatalogNonEmpty(t *testing.T) {
	c := DefaultCatalog()
	assert.NotEmpty(t, c.Categories)
	assert.NotEmpty(t, c.All())
	assert.NotEmpty(t, c.ByCategory("defi_protocols"))
	assert.Nil(t, c.ByCategory("no_such_category"))
}

func TestCondenseShape(t *testing.T) {
	id := Condense("layer2_analysis",
		"Compare quality user behavior across Base, Arbitrum, and Optimism this month.")
	assert.Equal(t, "layer2_analysis:base:quality-user-behavior", id)
	assert.LessOrEqual(t, len([]rune(id)), 50)
}

func TestCondenseDeterministicAndBounded(t *testing.T) {
	for _, e := range DefaultCatalog().All() {
		first := Condense(e.Category, e.Text)
		assert.Equal(t, first, Condense(e.Category, e.Text))
		assert.LessOrEqual(t, len([]rune(first)), 50)
	}
}

func TestCondenseUnknownChain(t *testing.T) {
	id := Condense("market_insights", "Analyze stablecoin supply and usage patterns.")
	assert.Equal(t, "market_insights:multi:stablecoin-supply-usage", id)
}

func openHistory(t *testing.T) *history.Store {
	t.Helper()
	s, err := history.Open(filepath.Join(t.TempDir(), "prompt_history.json"))
	require.NoError(t, err)
	return s
}

func TestDailyRotationDeterministic(t *testing.T) {
	sel := NewSelector(DefaultCatalog(), openHistory(t))
	day := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	first := sel.Daily(day)
	assert.Equal(t, first, sel.Daily(day))
	assert.NotEmpty(t, first.Condensed)
}

func TestRandomPrefersUnused(t *testing.T) {
	catalog := Catalog{Categories: []Category{{
		Name:    "market_insights",
		Prompts: []string{"Analyze stablecoin supply.", "Examine Bitcoin on-chain metrics."},
	}}}

	hist := openHistory(t)
	hist.Touch(Condense("market_insights", "Analyze stablecoin supply."))

	sel := NewSelector(catalog, hist).WithRand(rand.New(rand.NewSource(1)))
	for i := 0; i < 10; i++ {
		got := sel.Random()
		assert.Equal(t, "Examine Bitcoin on-chain metrics.", got.Text)
	}
}

func TestRandomFallsBackWhenExhausted(t *testing.T) {
	catalog := Catalog{Categories: []Category{{
		Name:    "market_insights",
		Prompts: []string{"Analyze stablecoin supply."},
	}}}

	hist := openHistory(t)
	hist.Touch(Condense("market_insights", "Analyze stablecoin supply."))

	sel := NewSelector(catalog, hist).WithRand(rand.New(rand.NewSource(1)))
	assert.Equal(t, "Analyze stablecoin supply.", sel.Random().Text)
}

func TestPickUnknownStrategy(t *testing.T) {
	sel := NewSelector(DefaultCatalog(), openHistory(t))
	_, err := sel.Pick("hourly", time.Now())
	require.Error(t, err)
}

func TestStatsCountsUsage(t *testing.T) {
	catalog := Catalog{Categories: []Category{{
		Name:    "user_behavior",
		Prompts: []string{"Analyze staking participation rates.", "Examine wallet creation patterns."},
	}}}

	hist := openHistory(t)
	hist.Touch(Condense("user_behavior", "Analyze staking participation rates."))

	st := NewSelector(catalog, hist).Stats()
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 1, st.Used)
	assert.Equal(t, 1, st.Available)
	require.Len(t, st.Categories, 1)
	assert.Equal(t, 1, st.Categories[0].Used)
}

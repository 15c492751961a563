package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	texts  map[string][]string
	blocks []string
	body   string
	err    error
}

func (f *fakeSource) TextsContaining(_ context.Context, token string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.texts[token], nil
}

func (f *fakeSource) ContentBlocks(_ context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.blocks, nil
}

func (f *fakeSource) BodyText(_ context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.body, nil
}

func newEngine() *Engine { return New(zap.NewNop()) }

func ctxb() context.Context { return context.Background() }

func TestMarkerStageExtractsBlock(t *testing.T) {
	src := &fakeSource{texts: map[string][]string{
		"TWITTER_TEXT:": {
			"TWITTER_TEXT: Chain X grew 40%\n- users up\n- volume up\nTHIS_CONCLUDES_THE_ANALYSIS",
		},
	}}

	res := newEngine().TweetText(ctxb(), src)
	assert.Equal(t, StageMarker, res.Stage)
	assert.Equal(t, "Chain X grew 40%\n• users up\n• volume up", res.Text)
}

func TestMarkerStageStopsAtChartTerminator(t *testing.T) {
	src := &fakeSource{texts: map[string][]string{
		"TWITTER_TEXT:": {
			"TWITTER_TEXT:\nSolana DEX volume hit a new high\n- $4.2B weekly\nHTML_CHART\n<div>chart markup</div>",
		},
	}}

	res := newEngine().TweetText(ctxb(), src)
	assert.Equal(t, StageMarker, res.Stage)
	assert.Equal(t, "Solana DEX volume hit a new high\n• $4.2B weekly", res.Text)
}

func TestPlaceholderBlockDiscarded(t *testing.T) {
	src := &fakeSource{texts: map[string][]string{
		"TWITTER_TEXT:": {"TWITTER_TEXT: [Topic]: - [Metric] (max 260 chars)"},
	}}

	res := newEngine().TweetText(ctxb(), src)
	assert.Equal(t, StageNone, res.Stage)
	assert.Empty(t, res.Text)
}

func TestKeywordFallbackWhenMarkerAbsent(t *testing.T) {
	candidate := "Ethereum staking analysis shows deposits accelerating through Q3 with validator growth steady"
	src := &fakeSource{texts: map[string][]string{
		"analysis": {"nav", candidate},
	}}

	res := newEngine().TweetText(ctxb(), src)
	assert.Equal(t, StageKeyword, res.Stage)
	assert.Equal(t, candidate, res.Text)
}

func TestKeywordFallbackSkipsOversizedCandidates(t *testing.T) {
	huge := make([]byte, 3000)
	for i := range huge {
		huge[i] = 'a'
	}
	src := &fakeSource{texts: map[string][]string{
		"analysis": {string(huge)},
	}}

	res := newEngine().TweetText(ctxb(), src)
	assert.Equal(t, StageNone, res.Stage)
}

func TestPageScanFallback(t *testing.T) {
	src := &fakeSource{
		body: "header nav\nTWITTER_TEXT: L2 fees dropped 60% this month\n- Base leads on txns\nView Report\nfooter",
	}

	res := newEngine().TweetText(ctxb(), src)
	assert.Equal(t, StagePageScan, res.Stage)
	assert.Equal(t, "L2 fees dropped 60% this month\n• Base leads on txns", res.Text)
}

func TestQueryErrorsFallThrough(t *testing.T) {
	src := &fakeSource{err: errors.New("page detached")}
	res := newEngine().TweetText(ctxb(), src)
	assert.Equal(t, StageNone, res.Stage)
}

func TestResponseTextPicksSubstantialBlock(t *testing.T) {
	analysis := "Ethereum L2 adoption accelerated through Q3. " +
		strings.Repeat("Base and Arbitrum both posted record daily actives. ", 3) +
		"\nTHIS_CONCLUDES_THE_ANALYSIS\ntrailing chart markup"
	src := &fakeSource{blocks: []string{"Toggle Sidebar\nRecent Chats", analysis}}

	got := newEngine().ResponseText(ctxb(), src)
	assert.Contains(t, got, "Ethereum L2 adoption accelerated")
	assert.NotContains(t, got, "THIS_CONCLUDES_THE_ANALYSIS")
	assert.NotContains(t, got, "trailing chart markup")
}

func TestResponseTextSkipsNavChrome(t *testing.T) {
	nav := "Toggle Sidebar " + strings.Repeat("Start a Chat Recent Chats ", 10)
	src := &fakeSource{blocks: []string{nav}}
	assert.Empty(t, newEngine().ResponseText(ctxb(), src))
}

func TestResponseTextSkipsShortFragments(t *testing.T) {
	src := &fakeSource{blocks: []string{"short fragment"}}
	assert.Empty(t, newEngine().ResponseText(ctxb(), src))
}

func TestResponseTextDropsSentinelLines(t *testing.T) {
	block := "ANALYSIS_CHECKPOINT_REACHED\n" +
		strings.Repeat("Stablecoin supply grew on every major chain this month. ", 3)
	src := &fakeSource{blocks: []string{block}}

	got := newEngine().ResponseText(ctxb(), src)
	assert.NotContains(t, got, "ANALYSIS_CHECKPOINT_REACHED")
	assert.Contains(t, got, "Stablecoin supply grew")
}

func TestResponseTextQueryErrorDegrades(t *testing.T) {
	src := &fakeSource{err: errors.New("page detached")}
	assert.Empty(t, newEngine().ResponseText(ctxb(), src))
}

func TestCollectBlockJoinsProse(t *testing.T) {
	raw := "TWITTER_TEXT:\nBitcoin ETF inflows\ncontinued for a third week\n- $1.1B net\nTHIS_CONCLUDES_THE_ANALYSIS"
	assert.Equal(t, "Bitcoin ETF inflows continued for a third week\n- $1.1B net", CollectBlock(raw))
}

func TestNormalizeBulletsVariants(t *testing.T) {
	in := "◦ first\n▪ second\n* third\n- fourth"
	want := "• first\n• second\n• third\n• fourth"
	assert.Equal(t, want, NormalizeBullets(in))
}

func TestNormalizeBulletsInlineSplit(t *testing.T) {
	in := "Key moves: - TVL up 12% - fees down 8%"
	want := "Key moves:\n• TVL up 12%\n• fees down 8%"
	assert.Equal(t, want, NormalizeBullets(in))
}

func TestNormalizeBulletsKeepsHyphenatedWords(t *testing.T) {
	in := "Month-over-month growth stayed flat"
	assert.Equal(t, in, NormalizeBullets(in))
}

func TestNormalizeBulletsIdempotent(t *testing.T) {
	inputs := []string{
		"Chain X grew 40%\n- users up\n- volume up",
		"Key moves: - TVL up 12% - fees down 8%",
		"• already canonical\n• lines stay put",
		"plain prose without any lists",
	}
	for _, in := range inputs {
		once := NormalizeBullets(in)
		assert.Equal(t, once, NormalizeBullets(once))
	}
}

func TestStripAstralRunesRemovesEmoji(t *testing.T) {
	assert.Equal(t, "DeFi TVL up  this week", StripAstralRunes("DeFi TVL up \U0001F680 this week"))
	assert.Equal(t, "no emoji here", StripAstralRunes("no emoji here"))
}

func TestIsPlaceholder(t *testing.T) {
	cases := []struct {
		name string
		text string
		want bool
	}{
		{"template slots", "[Topic]: - [Metric] (max 260 chars)", true},
		{"literal marker", "Use a concise bullet format for the summary", true},
		{"echoed token", "this_concludes_the_analysis", true},
		{"bracket dense", "[a] [b] [c]", true},
		{"real summary", "Chain X grew 40%\n• users up\n• volume up", false},
		{"single citation", "Solana fees fell 30% according to on-chain data from the last ninety days [1]", false},
		{"empty", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsPlaceholder(tc.text))
		})
	}
}

func TestPlaceholderStableUnderNormalization(t *testing.T) {
	inputs := []string{
		"[Topic]: - [Metric] (max 260 chars)",
		"Chain X grew 40%\n- users up\n- volume up",
		"Key moves: - TVL up 12% - fees down 8%",
		"Use a concise bullet format",
	}
	for _, in := range inputs {
		require.Equal(t, IsPlaceholder(in), IsPlaceholder(NormalizeBullets(in)), "input %q", in)
	}
}

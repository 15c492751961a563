package twitter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDraftFitsLimit(t *testing.T) {
	long := "Solana DEX volume hit a new high this week\n" +
		strings.Repeat("• a very long bullet about decentralized exchange activity on chain\n", 10)
	d := BuildDraft(long, "shots/chart.png", "https://flipsidecrypto.xyz/chat/shared/artifacts/vol-abc123")

	assert.LessOrEqual(t, len([]rune(d.Content)), MaxTweetLen)
	assert.Equal(t, "shots/chart.png", d.ImagePath)
	assert.Contains(t, d.LinkURL, "shared/artifacts")
}

func TestTruncateDropsWholeLines(t *testing.T) {
	text := "Ethereum L2 adoption accelerating\n" +
		"• Base daily actives up 40% month over month\n" +
		"• Arbitrum fees fell 60% after the upgrade\n" +
		"• Optimism retention now beats mainnet\n" +
		"• zkSync bridge volume doubled in June\n" +
		"• Polygon zkEVM still early but growing\n" +
		"• Scroll and Linea rounding out the field nicely here"

	got := Truncate(text, 200)
	assert.LessOrEqual(t, len([]rune(got)), 200)
	assert.True(t, strings.HasSuffix(got, "..."))

	// Every surviving line is a complete line from the input.
	for _, line := range strings.Split(strings.TrimSuffix(got, "..."), "\n") {
		if line == "" {
			continue
		}
		assert.Contains(t, text, line)
	}
}

func TestTruncateKeepsLeadingBullets(t *testing.T) {
	// Just over the limit: the last bullet goes, the leading ones survive.
	text := "Stablecoin supply keeps climbing across every major chain we track\n" +
		"• USDT dominance held steady near 70% of total circulating supply\n" +
		"• USDC minting finally resumed after three flat months in a row\n" +
		"• DAI supply contracted again as the savings rate moved lower\n" +
		"• smaller issuers captured most of the net new growth this cycle"
	require.Greater(t, len([]rune(text)), MaxTweetLen)

	got := Truncate(text, MaxTweetLen)
	assert.LessOrEqual(t, len([]rune(got)), MaxTweetLen)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Contains(t, got, "• USDT dominance held steady near 70% of total circulating supply")
	assert.NotContains(t, got, "smaller issuers")
}

func TestTruncateShortTextUntouched(t *testing.T) {
	text := "DeFi TVL crossed $100B again\n• lending led the move"
	assert.Equal(t, text, Truncate(text, MaxTweetLen))
}

func TestTruncateSingleOversizedLine(t *testing.T) {
	text := strings.Repeat("x", 400)
	got := Truncate(text, 280)
	assert.LessOrEqual(t, len([]rune(got)), 280)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestNormalizeStripsMarkerColon(t *testing.T) {
	got := Normalize(": Chain X grew 40% this quarter\n• users up\n• volume up")
	assert.Equal(t, "Chain X grew 40% this quarter\n• users up\n• volume up", got)
}

func TestNormalizeDropsBlankLines(t *testing.T) {
	got := Normalize("Headline\n\n\n• first point\n\n• second point")
	assert.Equal(t, "Headline\n• first point\n• second point", got)
}

func TestNormalizeSplitsInlineBullets(t *testing.T) {
	got := Normalize("NFT volume rebounds • blue chips lead • new mints lag")
	assert.Equal(t, "NFT volume rebounds\n• blue chips lead\n• new mints lag", got)
}

func TestDraftNeverExceedsLimitProperty(t *testing.T) {
	inputs := []string{
		"",
		"short",
		strings.Repeat("word ", 200),
		"title\n" + strings.Repeat("• bullet line padding content here\n", 30),
		strings.Repeat("unbroken", 60),
	}
	for _, in := range inputs {
		d := BuildDraft(in, "", "")
		assert.LessOrEqual(t, len([]rune(d.Content)), MaxTweetLen, "input %q", in)
	}
}

package filtering_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crynn/crynn/internal/filtering"
)

const sampleList = `[Adblock Plus 2.0]
! Title: test list
||ads.example.com^
||tracker.net^$third-party,script
@@||cdn.example.com^$domain=example.com|~staging.example.com
|https://exact.example.com/banner|
example.com##.ad-banner
##.generic-ad
! trailing comment
`

func compile(t *testing.T, src string) []filtering.Rule {
	t.Helper()
	rs, err := filtering.NewCompiler().CompileSources(testCtx(), []byte(src))
	require.NoError(t, err)

	var rules []filtering.Rule
	require.NoError(t, json.Unmarshal(rs.JSON(), &rules))
	return rules
}

func TestCompiler_ParsesEasyListShapes(t *testing.T) {
	rules := compile(t, sampleList)
	require.Len(t, rules, 6)

	domainAnchored := rules[0]
	assert.Equal(t, `^https?://([^/]+\.)?ads\.example\.com[/:?&=]`, domainAnchored.Trigger.URLFilter)
	assert.Equal(t, filtering.ActionBlock, domainAnchored.Action.Type)

	withOptions := rules[1]
	assert.Equal(t, []string{"third-party"}, withOptions.Trigger.LoadType)
	assert.Equal(t, []string{"script"}, withOptions.Trigger.ResourceType)

	exception := rules[2]
	assert.Equal(t, filtering.ActionIgnorePreviousRules, exception.Action.Type)
	assert.Equal(t, []string{"example.com"}, exception.Trigger.IfDomain)
	assert.Equal(t, []string{"staging.example.com"}, exception.Trigger.UnlessDomain)

	anchored := rules[3]
	assert.Equal(t, `^https://exact\.example\.com/banner$`, anchored.Trigger.URLFilter)

	cosmetic := rules[4]
	assert.Equal(t, filtering.ActionCSSDisplayNone, cosmetic.Action.Type)
	assert.Equal(t, ".ad-banner", cosmetic.Action.Selector)
	assert.Equal(t, []string{"example.com"}, cosmetic.Trigger.IfDomain)

	generic := rules[5]
	assert.Equal(t, ".generic-ad", generic.Action.Selector)
	assert.Empty(t, generic.Trigger.IfDomain)
}

func TestCompiler_MergesSourcesInOrder(t *testing.T) {
	rs, err := filtering.NewCompiler().CompileSources(testCtx(),
		[]byte("||first.example.com^\n"),
		[]byte("||second.example.com^\n"),
	)
	require.NoError(t, err)
	require.Equal(t, 2, rs.Len())

	var rules []filtering.Rule
	require.NoError(t, json.Unmarshal(rs.JSON(), &rules))
	assert.Contains(t, rules[0].Trigger.URLFilter, "first")
	assert.Contains(t, rules[1].Trigger.URLFilter, "second")
}

func TestCompiler_EmptySourcesError(t *testing.T) {
	_, err := filtering.NewCompiler().CompileSources(testCtx(), []byte("! only a comment\n"))
	assert.ErrorIs(t, err, filtering.ErrEmptyRuleset)
}

func TestCompiler_FingerprintTracksContent(t *testing.T) {
	a1, err := filtering.NewCompiler().CompileSources(testCtx(), []byte("||a.example.com^\n"))
	require.NoError(t, err)
	a2, err := filtering.NewCompiler().CompileSources(testCtx(), []byte("||a.example.com^\n"))
	require.NoError(t, err)
	b, err := filtering.NewCompiler().CompileSources(testCtx(), []byte("||b.example.com^\n"))
	require.NoError(t, err)

	assert.Equal(t, a1.Fingerprint, a2.Fingerprint)
	assert.NotEqual(t, a1.Fingerprint, b.Fingerprint)
}

func TestHostExceptionSet_NormalizesAndSorts(t *testing.T) {
	s := filtering.NewHostExceptionSet()

	assert.True(t, s.Toggle("B.example.com "))
	assert.True(t, s.Toggle("a.example.com"))
	assert.False(t, s.Toggle(""))

	assert.True(t, s.Contains("b.EXAMPLE.com"))
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, s.Hosts())
}

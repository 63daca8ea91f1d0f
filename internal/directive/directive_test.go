package directive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCreateTask(t *testing.T) {
	text := "I'll queue that.\n[CREATE_TASK priority=high]\nRotate the deploy key\nbefore Friday.\n[/CREATE_TASK]\nDone."
	ds := Extract(text)
	require.Len(t, ds, 1)
	d := ds[0]
	assert.Equal(t, KindCreateTask, d.Kind)
	assert.Equal(t, "high", d.Priority)
	assert.Equal(t, "Rotate the deploy key\nbefore Friday.", d.Body)
	assert.Equal(t, text[d.Start:d.End], "[CREATE_TASK priority=high]\nRotate the deploy key\nbefore Friday.\n[/CREATE_TASK]")
}

func TestExtractSelfClosingTags(t *testing.T) {
	text := `Check [GITHUB_READ repo=me/relay path=docs/notes.md] and [GITHUB_LIST_REPOS] too.`
	ds := Extract(text)
	require.Len(t, ds, 2)

	assert.Equal(t, KindRemoteRead, ds[0].Kind)
	assert.Equal(t, "me/relay", ds[0].Repo)
	assert.Equal(t, "docs/notes.md", ds[0].Path)

	assert.Equal(t, KindListRepos, ds[1].Kind)
}

func TestExtractWriteWithQuotedMessage(t *testing.T) {
	text := "[GITHUB_WRITE repo=me/relay path=notes.md message=\"weekly [sync] notes\"]\nline one\nline two\n[/GITHUB_WRITE]"
	ds := Extract(text)
	require.Len(t, ds, 1)
	d := ds[0]
	assert.Equal(t, KindRemoteWrite, d.Kind)
	assert.Equal(t, "weekly [sync] notes", d.Message)
	assert.Equal(t, "line one\nline two", d.Body)
}

func TestExtractSearch(t *testing.T) {
	ds := Extract(`[GITHUB_SEARCH query="poll loop"]`)
	require.Len(t, ds, 1)
	assert.Equal(t, KindSearch, ds[0].Kind)
	assert.Equal(t, "poll loop", ds[0].Query)
}

func TestExtractMultipleSameKindInOrder(t *testing.T) {
	text := "[CREATE_TASK priority=low]\nfirst\n[/CREATE_TASK] then [CREATE_TASK priority=high]\nsecond\n[/CREATE_TASK]"
	ds := Extract(text)
	require.Len(t, ds, 2)
	assert.Equal(t, "first", ds[0].Body)
	assert.Equal(t, "second", ds[1].Body)
	assert.Less(t, ds[0].End, ds[1].Start)
}

func TestExtractMalformedIsInert(t *testing.T) {
	cases := map[string]string{
		"unterminated block": "[CREATE_TASK priority=high]\nno closing tag",
		"bad priority":       "[CREATE_TASK priority=urgent]\nbody\n[/CREATE_TASK]",
		"missing repo":       "[GITHUB_READ path=x.md]",
		"missing query":      "[GITHUB_SEARCH]",
		"unclosed quote":     `[GITHUB_SEARCH query="oops]`,
		"plain brackets":     "this [is] just [text with brackets]",
		"empty task body":    "[CREATE_TASK priority=low]\n\n[/CREATE_TASK]",
		"unterminated write": "[GITHUB_WRITE repo=a/b path=c.md]\nbody but no close",
	}
	for name, text := range cases {
		assert.Empty(t, Extract(text), name)
	}
}

func TestExtractSkipsMalformedButFindsLater(t *testing.T) {
	text := "[CREATE_TASK priority=nope]\nx\n[/CREATE_TASK] [GITHUB_LIST_REPOS]"
	ds := Extract(text)
	require.Len(t, ds, 1)
	assert.Equal(t, KindListRepos, ds[0].Kind)
}

func TestParseTagBareAndQuotedValues(t *testing.T) {
	attrs, end, ok := parseTag(`repo=me/relay path=a.md message="hi there"] tail`, 0)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"repo": "me/relay", "path": "a.md", "message": "hi there"}, attrs)
	assert.Equal(t, len(`repo=me/relay path=a.md message="hi there"]`), end)
}

package ledger

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/internal/testutil"
)

func newTestLedger(t *testing.T) (*Ledger, *testutil.FakeStore) {
	t.Helper()
	store := testutil.NewFakeStore("relay")
	log := logrus.New()
	log.SetOutput(nopWriter{})
	return New(store, "tasks.md", log), store
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestAppendSeedsMissingLedger(t *testing.T) {
	l, store := newTestLedger(t)

	rec, err := l.Append(context.Background(), PriorityHigh, "rotate the deploy key")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, StatusPending, rec.Status)

	content := store.Content("tasks.md")
	assert.True(t, strings.HasPrefix(content, "# Task Ledger"))
	assert.Contains(t, content, "## "+rec.ID)
	assert.Contains(t, content, "**Priority:** high")
	assert.Contains(t, content, "**Status:** pending")
	assert.Contains(t, content, "rotate the deploy key")
}

func TestAppendTwiceProducesOrderedDistinctIDs(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()

	first, err := l.Append(ctx, PriorityNormal, "task one")
	require.NoError(t, err)
	second, err := l.Append(ctx, PriorityNormal, "task two")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Less(t, first.ID, second.ID, "ids must be monotonic")

	content := store.Content("tasks.md")
	assert.Less(t, strings.Index(content, first.ID), strings.Index(content, second.ID),
		"records append in creation order")
}

func TestAppendRejectsEmptyBody(t *testing.T) {
	l, _ := newTestLedger(t)
	_, err := l.Append(context.Background(), PriorityLow, "   \n  ")
	assert.Error(t, err)
}

func TestAppendDefaultsPriority(t *testing.T) {
	l, store := newTestLedger(t)
	_, err := l.Append(context.Background(), "", "whatever")
	require.NoError(t, err)
	assert.Contains(t, store.Content("tasks.md"), "**Priority:** normal")
}

func completionBlock(id string, status Status, at time.Time, output string) string {
	return fmt.Sprintf("## %s\n**Status:** %s\n**Result:** done at %s\n\n```\n%s\n```\n\n---",
		id, status, at.Format(time.RFC3339), output)
}

func TestCompletedSinceFiltersByCutoff(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()

	rec, err := l.Append(ctx, PriorityHigh, "ship it")
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	old := completionBlock("OLDTASK", StatusCompleted, now.Add(-48*time.Hour), "old output")
	fresh := completionBlock(rec.ID, StatusCompleted, now.Add(-time.Hour), "fresh output")

	handle, err := store.Read(ctx, "tasks.md")
	require.NoError(t, err)
	content := strings.TrimRight(handle.Content, "\n") + "\n\n" + old + "\n\n" + fresh + "\n"
	_, err = store.Write(ctx, "tasks.md", content, "executor", handle.Version)
	require.NoError(t, err)

	got, err := l.CompletedSince(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec.ID, got[0].ID)
	assert.Equal(t, StatusCompleted, got[0].Status)
	assert.Equal(t, "fresh output", got[0].Result)
	assert.Equal(t, "ship it", got[0].Body, "body comes from the original pending block")
}

func TestCompletedSinceIncludesFailures(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	store.Seed("tasks.md", ledgerHeader+"\n"+completionBlock("T1", StatusFailed, now, "stack trace")+"\n")

	got, err := l.CompletedSince(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, StatusFailed, got[0].Status)
}

func TestCompletedSinceTruncatesOutput(t *testing.T) {
	l, store := newTestLedger(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	huge := strings.Repeat("x", maxResultBytes*2)
	store.Seed("tasks.md", completionBlock("T1", StatusCompleted, now, huge))

	got, err := l.CompletedSince(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Result, maxResultBytes)
}

func TestCompletedSinceMissingLedger(t *testing.T) {
	l, _ := newTestLedger(t)
	got, err := l.CompletedSince(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCompletedSinceSkipsMalformedBlocks(t *testing.T) {
	l, store := newTestLedger(t)
	now := time.Now().UTC()
	content := "## NO-RESULT\n**Status:** completed\n\nno result line\n\n---\n\n" +
		"stray text\n\n---\n\n" +
		completionBlock("GOOD", StatusCompleted, now, "ok") + "\n"
	store.Seed("tasks.md", content)

	got, err := l.CompletedSince(context.Background(), now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "GOOD", got[0].ID)
}

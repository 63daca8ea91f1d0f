package dialogue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `# Conversation Log

This file is the shared channel between Dana and Courier.

---

## 2026-08-20 09:12 - Dana
**From:** Dana
**In Response To:** thread-1
**Timestamp:** 2026-08-20T09:12:00Z

Morning! Can you check the deploy logs?

---

## 2026-08-20 09:13 - Courier
**From:** Courier
**In Response To:** thread-1
**Timestamp:** 2026-08-20T09:13:05Z

On it. The last deploy finished cleanly:

    status: ok

I'll keep watching.

---
`

func TestParseLogOrderingAndAttribution(t *testing.T) {
	turns := ParseLog(sampleLog, "Courier")
	require.Len(t, turns, 2, "preamble must be dropped")

	assert.Equal(t, SpeakerOperator, turns[0].Speaker)
	assert.Equal(t, "Dana", turns[0].From)
	assert.Equal(t, "thread-1", turns[0].ThreadID)
	assert.Equal(t, "Morning! Can you check the deploy logs?", turns[0].Body)

	assert.Equal(t, SpeakerAssistant, turns[1].Speaker)
	assert.Contains(t, turns[1].Body, "status: ok")
	assert.Contains(t, turns[1].Body, "I'll keep watching.")
}

func TestParseLogIsIdempotent(t *testing.T) {
	first := ParseLog(sampleLog, "Courier")
	second := ParseLog(sampleLog, "Courier")
	assert.Equal(t, first, second)
}

func TestParseLogDropsMalformedRecords(t *testing.T) {
	text := `## 2026-08-20 09:12 - ???
**Timestamp:** 2026-08-20T09:12:00Z

no speaker marker here

---

## 2026-08-20 09:14 - Dana
**From:** Dana
**Timestamp:** 2026-08-20T09:14:00Z



---

## 2026-08-20 09:15 - Dana
**From:** Dana
**Timestamp:** 2026-08-20T09:15:00Z

still here

---
`
	turns := ParseLog(text, "Courier")
	require.Len(t, turns, 1, "speakerless and empty-body records are discarded")
	assert.Equal(t, "still here", turns[0].Body)
}

func TestParseLogAssistantMatchIsCaseInsensitive(t *testing.T) {
	text := "## h - courier\n**From:** courier\n**Timestamp:** t\n\nhi\n\n---\n"
	turns := ParseLog(text, "Courier")
	require.Len(t, turns, 1)
	assert.Equal(t, SpeakerAssistant, turns[0].Speaker)
}

func TestParseLogEmptyInput(t *testing.T) {
	assert.Empty(t, ParseLog("", "Courier"))
	assert.Empty(t, ParseLog("\n\n---\n\n", "Courier"))
}

func TestWindowTakesTrailingTurns(t *testing.T) {
	turns := []Turn{
		{Speaker: SpeakerOperator, Body: "one"},
		{Speaker: SpeakerAssistant, Body: "two"},
		{Speaker: SpeakerOperator, Body: "three"},
	}

	got := Window(turns, 2)
	require.Len(t, got, 2)
	assert.Equal(t, Exchange{Role: "assistant", Content: "two"}, got[0])
	assert.Equal(t, Exchange{Role: "user", Content: "three"}, got[1])
}

func TestWindowShorterThanMax(t *testing.T) {
	turns := []Turn{{Speaker: SpeakerOperator, Body: "only"}}
	got := Window(turns, 10)
	require.Len(t, got, 1)
	assert.Equal(t, "user", got[0].Role)
}

func TestWindowDefaultSize(t *testing.T) {
	turns := make([]Turn, 15)
	for i := range turns {
		turns[i] = Turn{Speaker: SpeakerOperator, Body: "x"}
	}
	assert.Len(t, Window(turns, 0), 10)
}

func TestFormatRecordRoundTrips(t *testing.T) {
	now := time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC)
	record := FormatRecord("Courier", "thread-9", "A reply\nwith two lines", now)
	content := Append(sampleLog, record)

	turns := ParseLog(content, "Courier")
	require.Len(t, turns, 3)
	last := turns[2]
	assert.Equal(t, SpeakerAssistant, last.Speaker)
	assert.Equal(t, "thread-9", last.ThreadID)
	assert.Equal(t, "A reply\nwith two lines", last.Body)
}

func TestFormatRecordWireShape(t *testing.T) {
	now := time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC)
	record := FormatRecord("Courier", "t-1", "body", now)
	assert.Equal(t, "## 2026-08-20 10:30 - Courier\n"+
		"**From:** Courier\n"+
		"**In Response To:** t-1\n"+
		"**Timestamp:** 2026-08-20T10:30:00Z\n"+
		"\n"+
		"body\n"+
		"\n"+
		"---", record)
}

func TestAppendOntoEmptyLog(t *testing.T) {
	record := FormatRecord("Dana", "t", "first", time.Now().UTC())
	content := Append("", record)
	turns := ParseLog(content, "Courier")
	require.Len(t, turns, 1)
	assert.Equal(t, "first", turns[0].Body)
}

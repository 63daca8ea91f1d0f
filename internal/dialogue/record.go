package dialogue

import (
	"fmt"
	"strings"
	"time"
)

// FormatRecord serializes one turn in the log's wire format. The same
// speaker name appears in the heading and the From line; threadID links the
// record to the exchange it answers.
func FormatRecord(speaker, threadID, body string, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s - %s\n", now.Format("2006-01-02 15:04"), speaker)
	fmt.Fprintf(&b, "%s %s\n", fromMarker, speaker)
	fmt.Fprintf(&b, "%s %s\n", threadMarker, threadID)
	fmt.Fprintf(&b, "%s %s\n", timestampMarker, now.Format(time.RFC3339))
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(body))
	b.WriteString("\n\n")
	b.WriteString(recordDelimiter)
	return b.String()
}

// Append produces the new full log content: prior content, a blank line,
// then the record. History is never rewritten; entries only ever land at
// the end.
func Append(prior, record string) string {
	prior = strings.TrimRight(prior, "\n")
	if prior == "" {
		return record + "\n"
	}
	return prior + "\n\n" + record + "\n"
}

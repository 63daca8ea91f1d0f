package dialogue

import "strings"

const (
	recordDelimiter = "---"
	fromMarker      = "**From:**"
	threadMarker    = "**In Response To:**"
	timestampMarker = "**Timestamp:**"
)

// ParseLog converts raw log text into the ordered turn sequence it encodes.
// Records with no resolved speaker or an empty trimmed body are dropped, as
// is the preamble record carrying the file's title header. The from value is
// matched against assistantName (case-insensitive) to attribute the turn;
// anything else is the operator. Pure function of its inputs.
func ParseLog(text, assistantName string) []Turn {
	var turns []Turn
	for _, record := range splitRecords(text) {
		turn, ok := parseRecord(record, assistantName)
		if !ok {
			continue
		}
		turns = append(turns, turn)
	}
	return turns
}

func splitRecords(text string) []string {
	var records []string
	var current []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == recordDelimiter {
			records = append(records, strings.Join(current, "\n"))
			current = current[:0]
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		records = append(records, strings.Join(current, "\n"))
	}
	return records
}

func parseRecord(record, assistantName string) (Turn, bool) {
	var (
		from      string
		threadID  string
		bodyLines []string
		inBody    bool
		skipBlank bool
	)
	for _, line := range strings.Split(record, "\n") {
		if inBody {
			if skipBlank {
				skipBlank = false
				if strings.TrimSpace(line) == "" {
					continue
				}
			}
			bodyLines = append(bodyLines, line)
			continue
		}
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "# "):
			// Preamble title record; never a turn.
			return Turn{}, false
		case strings.HasPrefix(trimmed, fromMarker):
			from = strings.TrimSpace(strings.TrimPrefix(trimmed, fromMarker))
		case strings.HasPrefix(trimmed, threadMarker):
			threadID = strings.TrimSpace(strings.TrimPrefix(trimmed, threadMarker))
		case strings.HasPrefix(trimmed, timestampMarker):
			inBody = true
			skipBlank = true
		}
	}

	body := strings.TrimSpace(strings.Join(bodyLines, "\n"))
	if from == "" || body == "" {
		return Turn{}, false
	}

	speaker := SpeakerOperator
	if strings.EqualFold(from, assistantName) {
		speaker = SpeakerAssistant
	}
	return Turn{Speaker: speaker, From: from, ThreadID: threadID, Body: body}, true
}

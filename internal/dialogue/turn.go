// Package dialogue parses and serializes the shared conversation log: an
// append-only markdown file of attributed records separated by "---" lines.
package dialogue

// Speaker identifies who authored a turn.
type Speaker int

const (
	SpeakerOperator Speaker = iota
	SpeakerAssistant
)

func (s Speaker) String() string {
	if s == SpeakerAssistant {
		return "assistant"
	}
	return "operator"
}

// Turn is one attributed message in the conversation log.
type Turn struct {
	Speaker  Speaker
	From     string
	ThreadID string
	Body     string
}

// Exchange is a role-tagged message in the shape the generative provider
// consumes.
type Exchange struct {
	Role    string
	Content string
}

const defaultWindow = 10

// Window projects the trailing max turns into provider exchanges. Assistant
// turns map to role "assistant", everything else to "user". Pure and total;
// max <= 0 falls back to the default of 10.
func Window(turns []Turn, max int) []Exchange {
	if max <= 0 {
		max = defaultWindow
	}
	if len(turns) > max {
		turns = turns[len(turns)-max:]
	}
	out := make([]Exchange, 0, len(turns))
	for _, t := range turns {
		role := "user"
		if t.Speaker == SpeakerAssistant {
			role = "assistant"
		}
		out = append(out, Exchange{Role: role, Content: t.Body})
	}
	return out
}

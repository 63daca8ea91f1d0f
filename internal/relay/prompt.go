package relay

import "strings"

const defaultPersona = `You are a remote assistant conversing with your operator through a shared
log file. Reply in plain, direct prose. Keep replies short unless the
operator asks for detail.`

const directiveHelp = `You can embed the following directives in a reply; each is executed and
replaced with its outcome before the operator sees the message:

[CREATE_TASK priority=high|normal|low]
<task description for the executor>
[/CREATE_TASK]

[GITHUB_READ repo=<owner/name> path=<path>]

[GITHUB_WRITE repo=<owner/name> path=<path> message="<commit message>"]
<file content>
[/GITHUB_WRITE]

[GITHUB_LIST_REPOS]

[GITHUB_SEARCH query="<text>"]`

const proactivePrompt = `It has been a while since you checked in. Write one short, friendly
message to the operator: surface anything notable from your context, or
just say you're around. Do not use directives.`

func (r *Relay) systemPrompt(contextBlob string) string {
	persona := r.opts.SystemPrompt
	if persona == "" {
		persona = defaultPersona
	}
	parts := []string{persona, directiveHelp}
	if contextBlob != "" {
		parts = append(parts, "# Context\n\n"+contextBlob)
	}
	return strings.Join(parts, "\n\n")
}

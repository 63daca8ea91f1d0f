// Package directive implements the inline command grammar embedded in
// generated responses. A scanner extracts tagged blocks left to right; the
// executor runs each against its collaborator and splices outcome text back
// into the response. Malformed or unterminated tags are inert text.
package directive

import "strings"

type Kind int

const (
	KindCreateTask Kind = iota
	KindRemoteRead
	KindRemoteWrite
	KindListRepos
	KindSearch
)

// Directive is one extracted command plus its span in the source text.
type Directive struct {
	Kind     Kind
	Priority string
	Repo     string
	Path     string
	Message  string
	Query    string
	Body     string

	Start int
	End   int
}

const (
	tokCreateOpen  = "[CREATE_TASK "
	tokCreateClose = "[/CREATE_TASK]"
	tokReadOpen    = "[GITHUB_READ "
	tokWriteOpen   = "[GITHUB_WRITE "
	tokWriteClose  = "[/GITHUB_WRITE]"
	tokListRepos   = "[GITHUB_LIST_REPOS]"
	tokSearchOpen  = "[GITHUB_SEARCH "
)

// Extract scans text for directives, left to right and non-overlapping.
// Anything that fails to parse is skipped over so it stays verbatim in the
// rewritten response.
func Extract(text string) []Directive {
	var out []Directive
	i := 0
	for i < len(text) {
		open := strings.IndexByte(text[i:], '[')
		if open < 0 {
			break
		}
		pos := i + open
		d, next, ok := matchAt(text, pos)
		if ok {
			out = append(out, d)
			i = next
			continue
		}
		i = pos + 1
	}
	return out
}

func matchAt(text string, pos int) (Directive, int, bool) {
	rest := text[pos:]
	switch {
	case strings.HasPrefix(rest, tokListRepos):
		end := pos + len(tokListRepos)
		return Directive{Kind: KindListRepos, Start: pos, End: end}, end, true

	case strings.HasPrefix(rest, tokCreateOpen):
		attrs, bodyStart, ok := parseTag(text, pos+len(tokCreateOpen))
		if !ok || !validPriority(attrs["priority"]) {
			return Directive{}, 0, false
		}
		body, end, ok := captureBody(text, bodyStart, tokCreateClose)
		if !ok || strings.TrimSpace(body) == "" {
			return Directive{}, 0, false
		}
		return Directive{
			Kind:     KindCreateTask,
			Priority: attrs["priority"],
			Body:     strings.TrimSpace(body),
			Start:    pos,
			End:      end,
		}, end, true

	case strings.HasPrefix(rest, tokReadOpen):
		attrs, end, ok := parseTag(text, pos+len(tokReadOpen))
		if !ok || attrs["repo"] == "" || attrs["path"] == "" {
			return Directive{}, 0, false
		}
		return Directive{
			Kind:  KindRemoteRead,
			Repo:  attrs["repo"],
			Path:  attrs["path"],
			Start: pos,
			End:   end,
		}, end, true

	case strings.HasPrefix(rest, tokWriteOpen):
		attrs, bodyStart, ok := parseTag(text, pos+len(tokWriteOpen))
		if !ok || attrs["repo"] == "" || attrs["path"] == "" {
			return Directive{}, 0, false
		}
		body, end, ok := captureBody(text, bodyStart, tokWriteClose)
		if !ok {
			return Directive{}, 0, false
		}
		return Directive{
			Kind:    KindRemoteWrite,
			Repo:    attrs["repo"],
			Path:    attrs["path"],
			Message: attrs["message"],
			Body:    strings.TrimPrefix(strings.TrimSuffix(body, "\n"), "\n"),
			Start:   pos,
			End:     end,
		}, end, true

	case strings.HasPrefix(rest, tokSearchOpen):
		attrs, end, ok := parseTag(text, pos+len(tokSearchOpen))
		if !ok || attrs["query"] == "" {
			return Directive{}, 0, false
		}
		return Directive{Kind: KindSearch, Query: attrs["query"], Start: pos, End: end}, end, true
	}
	return Directive{}, 0, false
}

// parseTag reads key=value attributes starting just after the tag keyword,
// up to the closing ']'. Values are bare (up to whitespace) or
// double-quoted. Returns the attributes and the offset just past ']'.
func parseTag(text string, i int) (map[string]string, int, bool) {
	attrs := map[string]string{}
	for i < len(text) {
		for i < len(text) && (text[i] == ' ' || text[i] == '\t') {
			i++
		}
		if i >= len(text) {
			return nil, 0, false
		}
		if text[i] == ']' {
			return attrs, i + 1, true
		}

		eq := strings.IndexByte(text[i:], '=')
		if eq <= 0 {
			return nil, 0, false
		}
		key := text[i : i+eq]
		if strings.ContainsAny(key, " \t\n]") {
			return nil, 0, false
		}
		i += eq + 1

		var value string
		if i < len(text) && text[i] == '"' {
			closeQuote := strings.IndexByte(text[i+1:], '"')
			if closeQuote < 0 {
				return nil, 0, false
			}
			value = text[i+1 : i+1+closeQuote]
			i += closeQuote + 2
		} else {
			j := i
			for j < len(text) && text[j] != ' ' && text[j] != '\t' && text[j] != ']' && text[j] != '\n' {
				j++
			}
			value = text[i:j]
			i = j
		}
		if value == "" {
			return nil, 0, false
		}
		attrs[key] = value
	}
	return nil, 0, false
}

// captureBody returns everything between the opening tag and the closing
// token, plus the offset just past the closing token.
func captureBody(text string, start int, closeTok string) (string, int, bool) {
	idx := strings.Index(text[start:], closeTok)
	if idx < 0 {
		return "", 0, false
	}
	return text[start : start+idx], start + idx + len(closeTok), true
}

func validPriority(p string) bool {
	return p == "high" || p == "normal" || p == "low"
}

// Package briefing assembles the shared-context blob handed to the
// generative provider each cycle. Sources are best effort: a failing source
// is logged and left out, never fatal.
package briefing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"courier/internal/githubstore"
	"courier/internal/ledger"
)

// Source contributes one named section of context text.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (string, error)
}

// Collect fetches every source in order and joins the non-empty sections.
func Collect(ctx context.Context, log *logrus.Logger, sources []Source) string {
	var sections []string
	for _, src := range sources {
		text, err := src.Fetch(ctx)
		if err != nil {
			log.WithError(err).WithField("source", src.Name()).Warn("briefing source skipped")
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		sections = append(sections, fmt.Sprintf("## %s\n\n%s", src.Name(), text))
	}
	return strings.Join(sections, "\n\n")
}

// Reader is the read-only slice of the blob store file sources need.
type Reader interface {
	Read(ctx context.Context, path string) (githubstore.Handle, error)
}

// FileSource pins a file from the conversation repo into the briefing.
type FileSource struct {
	Store Reader
	Path  string
}

func (s *FileSource) Name() string { return s.Path }

func (s *FileSource) Fetch(ctx context.Context) (string, error) {
	h, err := s.Store.Read(ctx, s.Path)
	if err != nil {
		return "", err
	}
	return h.Content, nil
}

// CompletionScanner is the slice of the ledger the completions source needs.
type CompletionScanner interface {
	CompletedSince(ctx context.Context, cutoff time.Time) ([]ledger.TaskRecord, error)
}

// CompletionsSource surfaces recently finished tasks so the assistant can
// report on delegated work.
type CompletionsSource struct {
	Ledger CompletionScanner
	Window time.Duration

	NowFn func() time.Time
}

func (s *CompletionsSource) Name() string { return "Recently completed tasks" }

func (s *CompletionsSource) Fetch(ctx context.Context) (string, error) {
	now := time.Now
	if s.NowFn != nil {
		now = s.NowFn
	}
	window := s.Window
	if window <= 0 {
		window = 24 * time.Hour
	}

	records, err := s.Ledger.CompletedSince(ctx, now().Add(-window))
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", nil
	}

	var b strings.Builder
	for _, rec := range records {
		fmt.Fprintf(&b, "- %s (%s)", rec.ID, rec.Status)
		if rec.Body != "" {
			fmt.Fprintf(&b, ": %s", firstLine(rec.Body))
		}
		b.WriteString("\n")
		if rec.Result != "" {
			fmt.Fprintf(&b, "  output: %s\n", firstLine(rec.Result))
		}
	}
	return b.String(), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

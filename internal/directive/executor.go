package directive

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"courier/internal/githubstore"
	"courier/internal/ledger"
)

// RepoStore is the slice of the blob store directives execute against.
type RepoStore interface {
	ReadIn(ctx context.Context, repo, path string) (githubstore.Handle, error)
	WriteIn(ctx context.Context, repo, path, content, message string, expected githubstore.Version) (githubstore.Version, error)
	ListRepos(ctx context.Context) ([]string, error)
	Search(ctx context.Context, query string) ([]string, error)
}

// TaskAppender creates pending ledger records.
type TaskAppender interface {
	Append(ctx context.Context, priority ledger.Priority, body string) (ledger.TaskRecord, error)
}

// Enumeration replacements list at most this many items.
const listCap = 10

type Executor struct {
	Store RepoStore
	Tasks TaskAppender
	Log   *logrus.Logger
}

func NewExecutor(store RepoStore, tasks TaskAppender, log *logrus.Logger) *Executor {
	if log == nil {
		log = logrus.New()
	}
	return &Executor{Store: store, Tasks: tasks, Log: log}
}

// Rewrite extracts every directive from text, executes each in textual
// order, and returns the text with directives replaced by their outcomes.
// A failing directive becomes an inline error marker; earlier side effects
// stand. Rewrite itself never fails.
func (e *Executor) Rewrite(ctx context.Context, text string) string {
	directives := Extract(text)
	if len(directives) == 0 {
		return text
	}

	var b strings.Builder
	last := 0
	for _, d := range directives {
		b.WriteString(text[last:d.Start])
		b.WriteString(e.execute(ctx, d))
		last = d.End
	}
	b.WriteString(text[last:])
	return b.String()
}

func (e *Executor) execute(ctx context.Context, d Directive) string {
	switch d.Kind {
	case KindCreateTask:
		return e.createTask(ctx, d)
	case KindRemoteRead:
		return e.remoteRead(ctx, d)
	case KindRemoteWrite:
		return e.remoteWrite(ctx, d)
	case KindListRepos:
		return e.listRepos(ctx)
	case KindSearch:
		return e.search(ctx, d)
	}
	return errText(fmt.Errorf("unknown directive"))
}

func (e *Executor) createTask(ctx context.Context, d Directive) string {
	rec, err := e.Tasks.Append(ctx, ledger.Priority(d.Priority), d.Body)
	if err != nil {
		e.Log.WithError(err).Error("create task directive failed")
		return errText(err)
	}
	e.Log.WithFields(logrus.Fields{"task": rec.ID, "priority": rec.Priority}).Info("task created")
	return fmt.Sprintf("[Task created: %s (priority: %s)]", rec.ID, rec.Priority)
}

func (e *Executor) remoteRead(ctx context.Context, d Directive) string {
	h, err := e.Store.ReadIn(ctx, d.Repo, d.Path)
	if errors.Is(err, githubstore.ErrNotFound) {
		return fmt.Sprintf("[Error: %s/%s not found]", d.Repo, d.Path)
	}
	if err != nil {
		e.Log.WithError(err).Error("read directive failed")
		return errText(err)
	}
	// Acknowledge rather than inline the content so one directive can't
	// balloon the response.
	return fmt.Sprintf("[Read %s/%s: %d bytes]", d.Repo, d.Path, len(h.Content))
}

func (e *Executor) remoteWrite(ctx context.Context, d Directive) string {
	var version githubstore.Version
	h, err := e.Store.ReadIn(ctx, d.Repo, d.Path)
	switch {
	case err == nil:
		version = h.Version
	case errors.Is(err, githubstore.ErrNotFound):
		// Absent file: create semantics, empty version.
	default:
		e.Log.WithError(err).Error("write directive failed reading current version")
		return errText(err)
	}

	message := d.Message
	if message == "" {
		message = "update " + d.Path
	}
	if _, err := e.Store.WriteIn(ctx, d.Repo, d.Path, d.Body, message, version); err != nil {
		e.Log.WithError(err).Error("write directive failed")
		return errText(err)
	}
	return fmt.Sprintf("[Wrote %s/%s]", d.Repo, d.Path)
}

func (e *Executor) listRepos(ctx context.Context) string {
	names, err := e.Store.ListRepos(ctx)
	if err != nil {
		e.Log.WithError(err).Error("list repos directive failed")
		return errText(err)
	}
	return "Your repos: " + joinCapped(names)
}

func (e *Executor) search(ctx context.Context, d Directive) string {
	names, err := e.Store.Search(ctx, d.Query)
	if err != nil {
		e.Log.WithError(err).Error("search directive failed")
		return errText(err)
	}
	return fmt.Sprintf("Repos matching %q: %s", d.Query, joinCapped(names))
}

func joinCapped(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	if len(items) <= listCap {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s (+%d more)", strings.Join(items[:listCap], ", "), len(items)-listCap)
}

func errText(err error) string {
	return fmt.Sprintf("[Error: %v]", err)
}

// Package ledger maintains the append-only task log: records delegated to
// the out-of-band executor and the completion blocks the executor appends
// later. Records are never rewritten; status is whatever the most recent
// block for an id says.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"courier/internal/githubstore"
	"courier/internal/idgen"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// TaskRecord is one ledger entry. Result and CompletedAt are only set on
// records returned by CompletedSince.
type TaskRecord struct {
	ID          string
	CreatedAt   time.Time
	Priority    Priority
	Status      Status
	Body        string
	Result      string
	CompletedAt time.Time
}

// Store is the slice of the blob store the ledger needs.
type Store interface {
	Read(ctx context.Context, path string) (githubstore.Handle, error)
	Write(ctx context.Context, path, content, message string, expected githubstore.Version) (githubstore.Version, error)
}

const (
	ledgerHeader = "# Task Ledger\n"
	// Executor output injected back into context is capped so a chatty task
	// cannot blow up the prompt.
	maxResultBytes = 2048
)

type Ledger struct {
	store Store
	path  string
	log   *logrus.Logger

	nowFn   func() time.Time
	newIDFn func(time.Time) string
}

func New(store Store, path string, log *logrus.Logger) *Ledger {
	if log == nil {
		log = logrus.New()
	}
	return &Ledger{
		store:   store,
		path:    path,
		log:     log,
		nowFn:   time.Now,
		newIDFn: idgen.NewTaskID,
	}
}

// Append creates a pending task record. The ledger blob is read, the record
// serialized onto the end, and the whole content written back under the
// version read here. A missing ledger is seeded with its header instead of
// failing.
func (l *Ledger) Append(ctx context.Context, priority Priority, body string) (TaskRecord, error) {
	if priority == "" {
		priority = PriorityNormal
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return TaskRecord{}, fmt.Errorf("task body is empty")
	}

	prior := ledgerHeader
	var version githubstore.Version
	handle, err := l.store.Read(ctx, l.path)
	switch {
	case err == nil:
		prior = handle.Content
		version = handle.Version
	case errors.Is(err, githubstore.ErrNotFound):
		l.log.WithField("path", l.path).Info("ledger missing, seeding")
	default:
		return TaskRecord{}, fmt.Errorf("read ledger: %w", err)
	}

	now := l.nowFn().UTC()
	record := TaskRecord{
		ID:        l.newIDFn(now),
		CreatedAt: now,
		Priority:  priority,
		Status:    StatusPending,
		Body:      body,
	}

	content := appendBlock(prior, formatTask(record))
	if _, err := l.store.Write(ctx, l.path, content, "task "+record.ID, version); err != nil {
		return TaskRecord{}, fmt.Errorf("append ledger: %w", err)
	}
	return record, nil
}

// CompletedSince scans the ledger for completion blocks whose result
// timestamp is after cutoff. Captured executor output is truncated to a
// fixed byte budget. A missing ledger yields no records.
func (l *Ledger) CompletedSince(ctx context.Context, cutoff time.Time) ([]TaskRecord, error) {
	handle, err := l.store.Read(ctx, l.path)
	if errors.Is(err, githubstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	bodies := map[string]string{}
	var out []TaskRecord
	for _, block := range splitBlocks(handle.Content) {
		rec, kind := parseBlock(block)
		switch kind {
		case blockPending:
			bodies[rec.ID] = rec.Body
		case blockCompletion:
			if !rec.CompletedAt.After(cutoff) {
				continue
			}
			rec.Body = bodies[rec.ID]
			if len(rec.Result) > maxResultBytes {
				rec.Result = rec.Result[:maxResultBytes]
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

func formatTask(r TaskRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n", r.ID)
	fmt.Fprintf(&b, "**Created:** %s\n", r.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "**Priority:** %s\n", r.Priority)
	fmt.Fprintf(&b, "**Status:** %s\n", r.Status)
	b.WriteString("\n")
	b.WriteString(r.Body)
	b.WriteString("\n\n---")
	return b.String()
}

func appendBlock(prior, block string) string {
	prior = strings.TrimRight(prior, "\n")
	if prior == "" {
		return block + "\n"
	}
	return prior + "\n\n" + block + "\n"
}

func splitBlocks(text string) []string {
	var blocks []string
	var current []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "---" {
			blocks = append(blocks, strings.Join(current, "\n"))
			current = current[:0]
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, strings.Join(current, "\n"))
	}
	return blocks
}

type blockKind int

const (
	blockSkip blockKind = iota
	blockPending
	blockCompletion
)

// parseBlock tokenizes one ledger block. Anything that doesn't resolve to a
// well-formed pending record or completion block is skipped, never an error.
func parseBlock(block string) (TaskRecord, blockKind) {
	var (
		rec       TaskRecord
		hasResult bool
		inFence   bool
		fence     []string
		bodyLines []string
		inBody    bool
	)
	for _, line := range strings.Split(block, "\n") {
		trimmed := strings.TrimSpace(line)
		if inFence {
			if strings.HasPrefix(trimmed, "```") {
				inFence = false
				continue
			}
			fence = append(fence, line)
			continue
		}
		switch {
		case strings.HasPrefix(trimmed, "## "):
			rec.ID = strings.TrimSpace(strings.TrimPrefix(trimmed, "## "))
		case strings.HasPrefix(trimmed, "**Created:**"):
			if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(strings.TrimPrefix(trimmed, "**Created:**"))); err == nil {
				rec.CreatedAt = ts
			}
		case strings.HasPrefix(trimmed, "**Priority:**"):
			rec.Priority = Priority(strings.TrimSpace(strings.TrimPrefix(trimmed, "**Priority:**")))
		case strings.HasPrefix(trimmed, "**Status:**"):
			rec.Status = Status(strings.TrimSpace(strings.TrimPrefix(trimmed, "**Status:**")))
			if rec.Status == StatusPending {
				inBody = true
			}
		case strings.HasPrefix(trimmed, "**Result:**"):
			inBody = false
			rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "**Result:**"))
			if _, tsPart, ok := strings.Cut(rest, " at "); ok {
				if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(tsPart)); err == nil {
					rec.CompletedAt = ts
					hasResult = true
				}
			}
		case strings.HasPrefix(trimmed, "```"):
			inFence = true
		default:
			if inBody {
				bodyLines = append(bodyLines, line)
			}
		}
	}

	if rec.ID == "" {
		return TaskRecord{}, blockSkip
	}
	switch rec.Status {
	case StatusPending:
		rec.Body = strings.TrimSpace(strings.Join(bodyLines, "\n"))
		if rec.Body == "" {
			return TaskRecord{}, blockSkip
		}
		return rec, blockPending
	case StatusCompleted, StatusFailed:
		if !hasResult {
			return TaskRecord{}, blockSkip
		}
		rec.Result = strings.Join(fence, "\n")
		return rec, blockCompletion
	default:
		return TaskRecord{}, blockSkip
	}
}

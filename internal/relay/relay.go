// Package relay drives the polling cycle: detect new operator turns in the
// shared log, generate a response, execute any embedded directives, notify
// the operator, and append the reply back to the log under the version
// token read at the start of the cycle.
package relay

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"courier/internal/briefing"
	"courier/internal/dialogue"
	"courier/internal/events"
	"courier/internal/githubstore"
	"courier/internal/idgen"
	"courier/internal/notify"
	"courier/internal/provider"
)

// Store is the slice of the blob store the relay itself touches: the
// primary conversation log.
type Store interface {
	Read(ctx context.Context, path string) (githubstore.Handle, error)
	Write(ctx context.Context, path, content, message string, expected githubstore.Version) (githubstore.Version, error)
}

// Rewriter replaces inline directives in generated text with their
// execution outcomes.
type Rewriter interface {
	Rewrite(ctx context.Context, text string) string
}

type Options struct {
	LogPath       string
	AssistantName string
	OperatorName  string
	WindowSize    int
	Interval      time.Duration

	ProactiveEvery     time.Duration
	ProactiveStartHour int
	ProactiveEndHour   int

	// SystemPrompt overrides the built-in persona text; the directive
	// reference is always appended.
	SystemPrompt string
}

type Deps struct {
	Store     Store
	Generator provider.Generator
	Notifier  notify.Notifier
	Executor  Rewriter
	Sources   []briefing.Source
	Hub       *events.Hub
	Log       *logrus.Logger
}

// Relay owns all cycle state. Nothing here is package-level: tests run
// several relays side by side with their own clocks.
type Relay struct {
	opts Options
	deps Deps
	log  *logrus.Logger

	nowFn func() time.Time

	mu            sync.Mutex
	inFlight      bool
	lastSeen      githubstore.Version
	lastProactive time.Time
}

func New(opts Options, deps Deps) *Relay {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.WindowSize <= 0 {
		opts.WindowSize = 10
	}
	if opts.ProactiveEvery <= 0 {
		opts.ProactiveEvery = 24 * time.Hour
	}
	if opts.ProactiveEndHour == 0 {
		opts.ProactiveStartHour = 9
		opts.ProactiveEndHour = 20
	}
	log := deps.Log
	if log == nil {
		log = logrus.New()
	}
	r := &Relay{
		opts:  opts,
		deps:  deps,
		log:   log,
		nowFn: time.Now,
	}
	// The daily gate starts armed from process start; a restart resets it.
	r.lastProactive = r.nowFn()
	return r
}

// Run polls on a fixed interval until ctx is done. Ticks that land while a
// cycle is in flight are dropped, not queued.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()
	r.log.WithField("interval", r.opts.Interval.String()).Info("relay polling started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info("relay polling stopped")
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one cycle unless one is already in flight.
func (r *Relay) Tick(ctx context.Context) {
	if !r.begin() {
		r.log.Debug("tick dropped: cycle in flight")
		return
	}
	defer r.end()
	if err := r.runCycle(ctx); err != nil {
		r.log.WithError(err).Error("cycle failed")
		r.publish("cycle.error", err.Error())
	}
}

// RunOnce runs a single cycle and reports its error, for the `once`
// command and tests.
func (r *Relay) RunOnce(ctx context.Context) error {
	if !r.begin() {
		return fmt.Errorf("cycle already in flight")
	}
	defer r.end()
	return r.runCycle(ctx)
}

func (r *Relay) begin() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight {
		return false
	}
	r.inFlight = true
	return true
}

func (r *Relay) end() {
	r.mu.Lock()
	r.inFlight = false
	r.mu.Unlock()
}

// runCycle is the whole state machine. Errors returned here are
// cycle-fatal; everything else degrades per item. A failed append after a
// successful notification send is a known divergence: the send is not
// compensated and the next tick reprocesses the same log state.
func (r *Relay) runCycle(ctx context.Context) error {
	now := r.nowFn()
	contextBlob := briefing.Collect(ctx, r.log, r.deps.Sources)

	r.maybeProactive(ctx, now, contextBlob)

	handle, err := r.deps.Store.Read(ctx, r.opts.LogPath)
	if err != nil {
		return fmt.Errorf("read conversation log: %w", err)
	}
	if handle.Version == r.lastSeen {
		r.publish("cycle.noop", "")
		return nil
	}

	turns := dialogue.ParseLog(handle.Content, r.opts.AssistantName)
	if len(turns) == 0 {
		return nil
	}
	last := turns[len(turns)-1]
	if last.Speaker == dialogue.SpeakerAssistant {
		// Our own message is the newest; nothing to answer.
		return nil
	}

	window := dialogue.Window(turns, r.opts.WindowSize)
	reply, err := r.deps.Generator.Generate(ctx, r.systemPrompt(contextBlob), window)
	if err != nil {
		return fmt.Errorf("generate response: %w", err)
	}
	reply = strings.TrimSpace(r.deps.Executor.Rewrite(ctx, reply))
	if reply == "" {
		reply = "(no response)"
	}

	if err := r.deps.Notifier.Send(ctx, reply); err != nil {
		// The reply still lands in the log below; the operator just gets no
		// push for it this cycle.
		r.log.WithError(err).Warn("notification send failed")
	}

	threadID := last.ThreadID
	if threadID == "" {
		threadID = idgen.NewThreadID()
	}
	record := dialogue.FormatRecord(r.opts.AssistantName, threadID, reply, now.UTC())
	newVersion, err := r.deps.Store.Write(ctx, r.opts.LogPath,
		dialogue.Append(handle.Content, record), "reply from "+r.opts.AssistantName, handle.Version)
	if err != nil {
		return fmt.Errorf("append conversation log: %w", err)
	}
	r.lastSeen = newVersion
	r.publish("cycle.replied", fmt.Sprintf("%d turns, %d byte reply", len(turns), len(reply)))
	return nil
}

// maybeProactive sends the daily check-in when the gate is open: at least
// ProactiveEvery since the last send and the local hour inside the
// configured window. The timestamp advances only on a confirmed send, so a
// failed send retries next tick (bounded by the hour window).
func (r *Relay) maybeProactive(ctx context.Context, now time.Time, contextBlob string) {
	if now.Sub(r.lastProactive) < r.opts.ProactiveEvery {
		return
	}
	hour := now.Hour()
	if hour < r.opts.ProactiveStartHour || hour > r.opts.ProactiveEndHour {
		return
	}

	window := []dialogue.Exchange{{Role: "user", Content: proactivePrompt}}
	text, err := r.deps.Generator.Generate(ctx, r.systemPrompt(contextBlob), window)
	if err != nil {
		r.log.WithError(err).Warn("proactive generation failed")
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if err := r.deps.Notifier.Send(ctx, text); err != nil {
		r.log.WithError(err).Warn("proactive send failed")
		return
	}
	r.lastProactive = now
	r.publish("proactive.sent", "")
	r.log.Info("proactive check-in sent")
}

func (r *Relay) publish(eventType, message string) {
	if r.deps.Hub == nil {
		return
	}
	r.deps.Hub.Publish(events.Event{Type: eventType, Message: message, At: r.nowFn().UTC()})
}

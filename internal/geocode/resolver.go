package geocode

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	// DefaultDebounce is the caller inactivity required before a lookup.
	DefaultDebounce = 300 * time.Millisecond
	// DefaultMinQueryLen is the shortest query that triggers a lookup.
	DefaultMinQueryLen = 3
)

// ErrUnknownCandidate is returned when selecting an id that is not among
// the current suggestions.
var ErrUnknownCandidate = errors.New("unknown address candidate")

// Snapshot is the resolver's state at a point in time.
type Snapshot struct {
	Text        string      `json:"text"`
	Suggestions []Candidate `json:"suggestions"`
	Selected    *Candidate  `json:"selected,omitempty"`
	Pending     bool        `json:"pending"`
}

// Resolver turns a stream of text edits into address suggestions.
//
// Every edit bumps a generation number. Only the lookup issued for the
// latest generation may update the suggestions; anything older is
// cancelled and its result dropped. Lookup failures clear the suggestions
// instead of surfacing an error.
type Resolver struct {
	geocoder Geocoder
	debounce time.Duration
	minLen   int
	logger   *slog.Logger
	onUpdate func(Snapshot)

	mu          sync.Mutex
	text        string
	suggestions []Candidate
	selected    *Candidate
	generation  uint64
	timer       *time.Timer
	cancel      context.CancelFunc
	pending     bool
	closed      bool
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) ResolverOption {
	return func(r *Resolver) { r.debounce = d }
}

// WithMinQueryLen overrides DefaultMinQueryLen.
func WithMinQueryLen(n int) ResolverOption {
	return func(r *Resolver) { r.minLen = n }
}

// WithLogger sets the logger used for swallowed lookup failures.
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// OnUpdate registers a callback invoked after every state change. It runs
// outside the resolver's lock and may call back into the resolver.
func OnUpdate(fn func(Snapshot)) ResolverOption {
	return func(r *Resolver) { r.onUpdate = fn }
}

// NewResolver creates a resolver for one view.
func NewResolver(g Geocoder, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		geocoder: g,
		debounce: DefaultDebounce,
		minLen:   DefaultMinQueryLen,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetText records a free-text edit. It clears any selection, supersedes
// pending lookups, and schedules a new lookup after the debounce window
// when the query is long enough.
func (r *Resolver) SetText(text string) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.text = text
	r.selected = nil
	gen := r.supersede()

	query := strings.TrimSpace(text)
	if utf8.RuneCountInString(query) < r.minLen {
		r.suggestions = nil
	} else {
		r.pending = true
		r.timer = time.AfterFunc(r.debounce, func() { r.resolve(gen, query) })
	}
	snap := r.snapshot()
	r.mu.Unlock()

	r.notify(snap)
}

// supersede invalidates outstanding work and returns the new generation.
// Callers hold r.mu.
func (r *Resolver) supersede() uint64 {
	r.generation++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.pending = false
	return r.generation
}

func (r *Resolver) resolve(gen uint64, query string) {
	r.mu.Lock()
	if r.closed || gen != r.generation {
		r.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.timer = nil
	r.mu.Unlock()

	results, err := r.geocoder.Search(ctx, query)
	cancel()

	r.mu.Lock()
	if r.closed || gen != r.generation {
		r.mu.Unlock()
		return
	}
	r.cancel = nil
	r.pending = false
	if err != nil {
		r.logger.Debug("address lookup failed", "error", err)
		r.suggestions = nil
	} else {
		r.suggestions = results
	}
	snap := r.snapshot()
	r.mu.Unlock()

	r.notify(snap)
}

// Select pins c as the chosen address and clears the suggestions.
func (r *Resolver) Select(c Candidate) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.supersede()
	r.selected = &c
	r.text = c.DisplayName
	r.suggestions = nil
	snap := r.snapshot()
	r.mu.Unlock()

	r.notify(snap)
}

// SelectID selects the current suggestion with the given raw id.
func (r *Resolver) SelectID(rawID string) (Candidate, error) {
	r.mu.Lock()
	var found *Candidate
	for i := range r.suggestions {
		if r.suggestions[i].RawID == rawID {
			c := r.suggestions[i]
			found = &c
			break
		}
	}
	r.mu.Unlock()

	if found == nil {
		return Candidate{}, ErrUnknownCandidate
	}
	r.Select(*found)
	return *found, nil
}

// Selected returns the pinned candidate, if any.
func (r *Resolver) Selected() (Candidate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.selected == nil {
		return Candidate{}, false
	}
	return *r.selected, true
}

// Text returns the current query text.
func (r *Resolver) Text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.text
}

// Suggestions returns the current suggestion list.
func (r *Resolver) Suggestions() []Candidate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Candidate(nil), r.suggestions...)
}

// Snapshot returns a copy of the current state.
func (r *Resolver) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

func (r *Resolver) snapshot() Snapshot {
	s := Snapshot{
		Text:        r.text,
		Suggestions: append([]Candidate(nil), r.suggestions...),
		Pending:     r.pending,
	}
	if r.selected != nil {
		c := *r.selected
		s.Selected = &c
	}
	return s
}

// Close stops timers and cancels any in-flight lookup. Results arriving
// afterwards are dropped. Close is idempotent.
func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.supersede()
	r.closed = true
}

func (r *Resolver) notify(s Snapshot) {
	if r.onUpdate != nil {
		r.onUpdate(s)
	}
}

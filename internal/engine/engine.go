// Package engine orchestrates pull, push and validate for one resource or
// a whole index directory, on top of the marshal engine and the API.
package engine

import (
	"context"
	"net/url"
	"time"

	"github.com/picklr-io/tether/internal/api"
	"github.com/picklr-io/tether/internal/backup"
	"github.com/picklr-io/tether/internal/ir"
)

// DefaultConcurrency bounds parallel fetches during a bulk pull.
const DefaultConcurrency = 4

// Remote is the API surface the engine needs.
type Remote interface {
	Get(ctx context.Context, path string, query url.Values, p api.Params) (ir.Resource, error)
	ListAll(ctx context.Context, collection string, p api.Params) ([]ir.Entry, error)
	Validate(ctx context.Context, path, bodyKey string, body ir.Resource, query url.Values, p api.Params) error
	Upsert(ctx context.Context, path, bodyKey string, body ir.Resource, query url.Values, p api.Params) (ir.Resource, error)
}

// Actions reported in events.
const (
	ActionPull     = "pull"
	ActionPush     = "push"
	ActionValidate = "validate"
	ActionPrune    = "prune"
)

// Statuses reported in events.
const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Event represents a progress event for one resource.
type Event struct {
	Kind     string
	Ref      string
	Action   string
	Status   string
	Duration time.Duration
	Error    error
}

// Callback is called for each event if set.
type Callback func(event Event)

// Options are the per-invocation settings of an operation.
type Options struct {
	Params   api.Params
	Callback Callback
}

func (o Options) emit(e Event) {
	if o.Callback != nil {
		o.Callback(e)
	}
}

// Engine runs resource operations against a remote.
type Engine struct {
	remote Remote

	// Concurrency bounds parallel fetches in PullAll.
	Concurrency int
	// Archiver, when set, receives a copy of everything PullAll prunes.
	Archiver backup.Archiver

	now func() time.Time
}

func NewEngine(remote Remote) *Engine {
	return &Engine{
		remote:      remote,
		Concurrency: DefaultConcurrency,
		now:         time.Now,
	}
}

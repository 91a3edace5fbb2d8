// Package watch reloads a retriever when its artifact changes: Watcher
// follows a file-backed artifact through filesystem events, Follower
// follows stores that announce saves.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zero-day-ai/kgraph/retriever"
	"github.com/zero-day-ai/kgraph/store"
)

// DefaultDebounce is how long the watcher waits for writes to settle
// before reloading.
const DefaultDebounce = 200 * time.Millisecond

// ReloadFunc observes every reload attempt. r is nil when err is set.
type ReloadFunc func(r *retriever.Retriever, err error)

type options struct {
	debounce      time.Duration
	logger        *slog.Logger
	onReload      ReloadFunc
	retrieverOpts []retriever.Option
}

// Option configures a Watcher or Follower.
type Option func(*options)

func newOptions(opts []Option) options {
	o := options{debounce: DefaultDebounce, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithDebounce sets the settle window. Non-positive values keep the default.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithOnReload registers a callback run after each reload attempt.
func WithOnReload(fn ReloadFunc) Option {
	return func(o *options) { o.onReload = fn }
}

// WithRetrieverOptions sets the options reloaded retrievers are opened with.
func WithRetrieverOptions(opts ...retriever.Option) Option {
	return func(o *options) { o.retrieverOpts = opts }
}

// Watcher watches the directory of a file-backed artifact and swaps a
// freshly opened retriever into a Handle whenever the artifact is created,
// written or renamed into place. A reload that fails leaves the current
// retriever serving.
type Watcher struct {
	st     *store.FileStore
	handle *retriever.Handle
	path   string
	opts   options

	fsw       *fsnotify.Watcher
	closeOnce sync.Once
}

// New creates a watcher for st's artifact. The artifact's directory must
// exist; the artifact itself need not.
func New(st *store.FileStore, h *retriever.Handle, opts ...Option) (*Watcher, error) {
	if st == nil || h == nil {
		return nil, errors.New("watch: store and handle are required")
	}

	o := newOptions(opts)

	path, err := filepath.Abs(st.Path())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve artifact path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	return &Watcher{st: st, handle: h, path: path, opts: o, fsw: fsw}, nil
}

// Run processes events until ctx is canceled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	w.opts.logger.Info("watching graph artifact", "path", w.path, "debounce", w.opts.debounce)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.opts.logger.Debug("artifact changed", "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.opts.debounce)
			} else {
				timer.Reset(w.opts.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.opts.logger.Warn("file watcher error", "error", err)

		case <-fire:
			fire = nil
			w.reload(ctx)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return name == w.path
}

func (w *Watcher) reload(ctx context.Context) {
	reload(ctx, w.handle, w.st, w.opts)
}

// reload swaps a freshly opened retriever into h. A failure keeps the
// current retriever.
func reload(ctx context.Context, h *retriever.Handle, st store.ArtifactStore, o options) {
	r, err := h.Reload(ctx, st, o.retrieverOpts...)
	if err != nil {
		o.logger.Error("graph reload failed, keeping current graph",
			"location", st.Location(),
			"error", err)
	} else {
		o.logger.Info("graph reloaded",
			"location", st.Location(),
			"nodes", r.Stats().Nodes,
			"edges", r.Stats().Edges,
			"build_id", r.Header().BuildID)
	}
	if o.onReload != nil {
		o.onReload(r, err)
	}
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.fsw.Close()
	})
	return err
}

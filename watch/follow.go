package watch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zero-day-ai/kgraph/retriever"
	"github.com/zero-day-ai/kgraph/store"
)

// ErrNotNotifier is returned by NewFollower for stores that do not announce
// saves.
var ErrNotNotifier = errors.New("watch: store does not announce saves")

// Follower reloads a retriever whenever a shared store announces a new
// artifact. Announcements arriving within the debounce window of each other
// cause a single reload.
type Follower struct {
	st       store.ArtifactStore
	notifier store.Notifier
	handle   *retriever.Handle
	opts     options
}

// NewFollower creates a follower for st, which must implement
// store.Notifier.
func NewFollower(st store.ArtifactStore, h *retriever.Handle, opts ...Option) (*Follower, error) {
	if st == nil || h == nil {
		return nil, errors.New("watch: store and handle are required")
	}
	n, ok := st.(store.Notifier)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotNotifier, st.Location())
	}
	return &Follower{st: st, notifier: n, handle: h, opts: newOptions(opts)}, nil
}

// Run subscribes and reloads on every announcement until ctx is canceled.
func (f *Follower) Run(ctx context.Context) error {
	updates, err := f.notifier.Subscribe(ctx)
	if err != nil {
		return err
	}

	f.opts.logger.Info("following graph artifact", "location", f.st.Location())

	timer := time.NewTimer(f.opts.debounce)
	timer.Stop()
	defer timer.Stop()

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case u, ok := <-updates:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}
				return errors.New("watch: update subscription closed")
			}
			f.opts.logger.Debug("artifact saved", "location", u.Location, "size", u.Size)
			timer.Reset(f.opts.debounce)
			fire = timer.C

		case <-fire:
			fire = nil
			reload(ctx, f.handle, f.st, f.opts)
		}
	}
}

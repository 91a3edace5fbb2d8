package watch

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/kgraph/builder"
	"github.com/zero-day-ai/kgraph/retriever"
	"github.com/zero-day-ai/kgraph/store"
)

func TestFollowerReloadsOnRedisSave(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	st, err := store.NewRedisStore(ctx, store.RedisOptions{URL: "redis://" + mr.Addr()}, "kgraph:follow")
	require.NoError(t, err)
	defer st.Close()

	r, err := retriever.New(ctx, st)
	require.NoError(t, err)
	h := retriever.NewHandle(r)
	require.False(t, h.Load().Ready())

	reloads := make(chan reloadEvent, 8)
	f, err := NewFollower(st, h,
		WithDebounce(20*time.Millisecond),
		WithOnReload(func(r *retriever.Retriever, err error) {
			reloads <- reloadEvent{r: r, err: err}
		}),
	)
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- f.Run(runCtx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Another process building into the same key.
	writer, err := store.NewRedisStore(ctx, store.RedisOptions{URL: "redis://" + mr.Addr()}, "kgraph:follow")
	require.NoError(t, err)
	defer writer.Close()

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(store.UpdatesChannel("kgraph:follow"))[store.UpdatesChannel("kgraph:follow")] == 1
	}, 2*time.Second, 10*time.Millisecond)

	res, err := builder.New(writer).Build(ctx, kb())
	require.NoError(t, err)

	rl := waitReload(t, reloads)
	require.NoError(t, rl.err)
	assert.Equal(t, res.BuildID, h.Load().Header().BuildID)
	assert.Len(t, h.Retrieve(ctx, "return policy", 5), 1)
}

func TestNewFollowerRequiresNotifier(t *testing.T) {
	st := store.NewFileStore(filepath.Join(t.TempDir(), "graph.json"))

	_, err := NewFollower(st, retriever.NewHandle(nil))
	assert.ErrorIs(t, err, ErrNotNotifier)

	_, err = NewFollower(nil, retriever.NewHandle(nil))
	assert.Error(t, err)
}

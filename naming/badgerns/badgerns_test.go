package badgerns

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mikael1979/filu-x/cidutil"
	"github.com/mikael1979/filu-x/naming"
)

func TestStore_PublishResolve(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()

	_, err = store.Resolve(ctx, "unbound")
	require.True(t, naming.NotBound(err), "got %v", err)

	id1, err := cidutil.DocumentCID([]byte("v1"))
	require.NoError(t, err)
	id2, err := cidutil.DocumentCID([]byte("v2"))
	require.NoError(t, err)

	require.NoError(t, store.Publish(ctx, "carol", id1))
	got, err := store.Resolve(ctx, "carol")
	require.NoError(t, err)
	require.Equal(t, id1, got)

	// Last publish wins.
	require.NoError(t, store.Publish(ctx, "carol", id2))
	got, err = store.Resolve(ctx, "carol")
	require.NoError(t, err)
	require.Equal(t, id2, got)
}

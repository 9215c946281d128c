package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/vsp-server/internal/errs"
	"github.com/and161185/vsp-server/internal/model"
)

func i64(v int64) *int64 { return &v }

func commitVideo(t *testing.T, f *fixture, owner string, chunks ...string) model.Video {
	t.Helper()
	ctx := context.Background()
	var total int64
	for _, c := range chunks {
		total += int64(len(c))
	}
	s, err := f.uploads.CreateSession(ctx, owner, "t", total, "")
	require.NoError(t, err)
	for i, c := range chunks {
		_, err := f.uploads.AppendChunk(ctx, owner, s.ID, i, []byte(c), "")
		require.NoError(t, err)
	}
	v, err := f.uploads.Commit(ctx, owner, s.ID, "")
	require.NoError(t, err)
	return v
}

func TestVideos_ListScopedByOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1 := commitVideo(t, f, "alice", "aa")
	commitVideo(t, f, "bob", "bb")
	a2 := commitVideo(t, f, "alice", "cc")

	vids, err := f.videos.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, vids, 2)
	require.Equal(t, a1.ID, vids[0].ID)
	require.Equal(t, a2.ID, vids[1].ID)

	vids, err = f.videos.List(ctx, "carol")
	require.NoError(t, err)
	require.NotNil(t, vids)
	require.Empty(t, vids)

	_, err = f.videos.List(ctx, "")
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestVideos_ReadRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := commitVideo(t, f, "alice", "AAAAA", "BBBBB")

	data, rs, re, total, err := f.videos.ReadRange(ctx, v.ID, i64(3), nil)
	require.NoError(t, err)
	require.Equal(t, "AABBBBB", string(data))
	require.Equal(t, []int64{3, 9, 10}, []int64{rs, re, total})

	data, _, _, _, err = f.videos.ReadRange(ctx, v.ID, i64(0), i64(9))
	require.NoError(t, err)
	require.Equal(t, "AAAAABBBBB", string(data))

	_, _, _, _, err = f.videos.ReadRange(ctx, v.ID, i64(0), i64(10))
	require.ErrorIs(t, err, errs.ErrRangeNotSatisfiable)

	_, _, _, _, err = f.videos.ReadRange(ctx, "../videos.json", nil, nil)
	require.ErrorIs(t, err, errs.ErrVideoNotFound)

	got, err := f.videos.Get(ctx, v.ID)
	require.NoError(t, err)
	require.Equal(t, int64(10), got.Size)
}

func TestVideos_DeleteRequiresOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := commitVideo(t, f, "alice", "AAAAA")

	require.ErrorIs(t, f.videos.Delete(ctx, "bob", v.ID), errs.ErrNotOwner)
	vids, err := f.catalog.List(ctx)
	require.NoError(t, err)
	require.Len(t, vids, 1)
	require.FileExists(t, v.Path)

	require.NoError(t, f.videos.Delete(ctx, "alice", v.ID))
	vids, err = f.catalog.List(ctx)
	require.NoError(t, err)
	require.Empty(t, vids)
	require.NoFileExists(t, v.Path)

	require.ErrorIs(t, f.videos.Delete(ctx, "alice", v.ID), errs.ErrVideoNotFound)
	require.ErrorIs(t, f.videos.Delete(ctx, "", v.ID), errs.ErrUnauthorized)
}

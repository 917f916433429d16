package videos_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"videostore/internal/apperr"
	"videostore/internal/store"
	"videostore/internal/videos"
)

func TestVideoLifecycle(t *testing.T) {
	svc := videos.NewService(store.NewMemory().Videos(), zap.NewNop())
	ctx := context.Background()

	v, err := svc.AddVideo(ctx, "Alien", "1979-05-25", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, v.AvailableInventory)

	_, err = svc.AddVideo(ctx, "Alien", "yesterday", 2)
	assert.True(t, apperr.Is(err, apperr.InvalidInput))

	updated, err := svc.UpdateVideo(ctx, v.ID, "Aliens", "1986-07-18", 5)
	require.NoError(t, err)
	assert.Equal(t, "Aliens", updated.Title)
	assert.Equal(t, 5, updated.AvailableInventory)

	_, err = svc.UpdateVideo(ctx, v.ID+1, "Nope", "1986-07-18", 1)
	assert.True(t, apperr.Is(err, apperr.NotFound))

	list, err := svc.ListVideos(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = svc.DeleteVideo(ctx, v.ID)
	require.NoError(t, err)
	_, err = svc.GetVideo(ctx, v.ID)
	assert.True(t, apperr.Is(err, apperr.NotFound))
}

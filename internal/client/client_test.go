package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"videostore/internal/customers"
	"videostore/internal/rentals"
	"videostore/internal/server"
	"videostore/internal/store"
	"videostore/internal/videos"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	b := store.NewMemory()
	log := zap.NewNop()
	srv := httptest.NewServer(server.NewRouter(server.Options{
		Customers: customers.NewService(b.Customers(), log),
		Videos:    videos.NewService(b.Videos(), log),
		Rentals:   rentals.NewService(b.Rentals(), log, 0),
		Store:     b,
		Log:       log,
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func TestClientRentalCycle(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Health(ctx))

	customer, err := c.CreateCustomer(ctx, "Ripley", "02134", "555-0199")
	require.NoError(t, err)
	require.NotZero(t, customer.ID)

	video, err := c.CreateVideo(ctx, "Aliens", "1986-07-18", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, video.AvailableInventory)

	receipt, err := c.CheckOut(ctx, customer.ID, video.ID)
	require.NoError(t, err)
	require.NotNil(t, receipt.Rental)
	assert.Equal(t, customer.ID, receipt.CustomerID)
	assert.Zero(t, receipt.AvailableInventory)

	_, err = c.CheckOut(ctx, customer.ID, video.ID)
	assert.Equal(t, http.StatusBadRequest, StatusOf(err))

	held, err := c.CustomerRentals(ctx, customer.ID)
	require.NoError(t, err)
	assert.Len(t, held, 1)

	renters, err := c.VideoRenters(ctx, video.ID)
	require.NoError(t, err)
	assert.Len(t, renters, 1)

	summary, err := c.CheckIn(ctx, customer.ID, video.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.AvailableInventory)

	events, err := c.RentalEvents(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	audit, err := c.Audit(ctx)
	require.NoError(t, err)
	assert.True(t, audit.Consistent())
}

func TestClientErrors(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.GetCustomer(ctx, 12345)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
	assert.Contains(t, err.Error(), "Customer 12345 was not found")

	_, err = c.CreateVideo(ctx, "", "2000-01-01", 1)
	assert.Equal(t, http.StatusBadRequest, StatusOf(err))

	_, err = c.DeleteVideo(ctx, 1)
	assert.Equal(t, http.StatusNotFound, StatusOf(err))

	assert.Zero(t, StatusOf(nil))
}

func TestClientListsAndDeletes(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	for _, name := range []string{"Zed", "Amy", "Kim"} {
		_, err := c.CreateCustomer(ctx, name, "1", "2")
		require.NoError(t, err)
	}

	sorted, err := c.ListCustomers(ctx, true, 2, 1)
	require.NoError(t, err)
	require.Len(t, sorted, 2)
	assert.Equal(t, "Amy", sorted[0].Name)
	assert.Equal(t, "Kim", sorted[1].Name)

	updated, err := c.UpdateCustomer(ctx, sorted[0].ID, "Amelia", "3", "4")
	require.NoError(t, err)
	assert.Equal(t, "Amelia", updated.Name)

	require.NoError(t, c.DeleteCustomer(ctx, sorted[0].ID))
	all, err := c.ListCustomers(ctx, false, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	v, err := c.CreateVideo(ctx, "Ran", "1985-06-01", 2)
	require.NoError(t, err)
	list, err := c.ListVideos(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	got, err := c.GetVideo(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ran", got.Title)
}

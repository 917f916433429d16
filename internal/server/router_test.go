package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"videostore/internal/customers"
	"videostore/internal/rentals"
	"videostore/internal/store"
	"videostore/internal/videos"
)

func newTestRouter(t *testing.T, mutate ...func(*Options)) http.Handler {
	t.Helper()
	b := store.NewMemory()
	log := zap.NewNop()
	opts := Options{
		Customers: customers.NewService(b.Customers(), log),
		Videos:    videos.NewService(b.Videos(), log),
		Rentals:   rentals.NewService(b.Rentals(), log, 0),
		Store:     b,
		Log:       log,
	}
	for _, m := range mutate {
		m(&opts)
	}
	return NewRouter(opts)
}

func do(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &decoded)
	return rec, decoded
}

func createCustomer(t *testing.T, h http.Handler, name string) int64 {
	t.Helper()
	rec, body := do(t, h, http.MethodPost, "/customers", map[string]string{
		"name": name, "postal_code": "11111", "phone": "555",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return int64(body["id"].(float64))
}

func createVideo(t *testing.T, h http.Handler, title string, copies int) int64 {
	t.Helper()
	rec, body := do(t, h, http.MethodPost, "/videos", map[string]any{
		"title": title, "release_date": "1982-06-25", "total_inventory": copies,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return int64(body["id"].(float64))
}

func TestCustomerRoundTrip(t *testing.T) {
	h := newTestRouter(t)
	id := createCustomer(t, h, "A")

	rec, body := do(t, h, http.MethodGet, fmt.Sprintf("/customers/%d", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A", body["name"])
	assert.Equal(t, "11111", body["postal_code"])
	assert.Equal(t, "555", body["phone"])
	assert.Equal(t, float64(0), body["videos_checked_out_count"])
	assert.NotEmpty(t, body["registered_at"])
}

func TestLookupErrors(t *testing.T) {
	h := newTestRouter(t)

	rec, body := do(t, h, http.MethodGet, "/customers/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ID abc must be an integer", body["message"])

	rec, body = do(t, h, http.MethodGet, "/customers/99999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Customer 99999 was not found", body["message"])

	rec, _ = do(t, h, http.MethodGet, "/videos/1.5", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/videos/7/rentals", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateValidation(t *testing.T) {
	h := newTestRouter(t)

	cases := []struct {
		path string
		body any
	}{
		{"/customers", map[string]string{"name": "A", "postal_code": "1"}},
		{"/customers", map[string]string{"name": "   ", "postal_code": "1", "phone": "2"}},
		{"/customers", "not json"},
		{"/customers", ""},
		{"/videos", map[string]any{"title": "T", "release_date": "2001-01-01", "total_inventory": 0}},
		{"/videos", map[string]any{"title": "T", "release_date": "someday", "total_inventory": 2}},
		{"/videos", map[string]any{"release_date": "2001-01-01", "total_inventory": 2}},
	}
	for _, tc := range cases {
		rec, body := do(t, h, http.MethodPost, tc.path, tc.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "%s %v", tc.path, tc.body)
		assert.Contains(t, body, "details")
	}
}

func TestSingleCopyRentalFlow(t *testing.T) {
	h := newTestRouter(t)
	first := createCustomer(t, h, "First")
	second := createCustomer(t, h, "Second")
	video := createVideo(t, h, "Blade Runner", 1)

	rec, body := do(t, h, http.MethodPost, "/rentals/check-out", map[string]any{"customer_id": first, "video_id": video})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(0), body["available_inventory"])
	assert.Equal(t, float64(1), body["videos_checked_out_count"])
	assert.Equal(t, true, body["checked_out"])
	assert.NotEmpty(t, body["due_date"])
	rentalID := int64(body["id"].(float64))

	rec, body = do(t, h, http.MethodPost, "/rentals/check-out", map[string]any{"customer_id": second, "video_id": video})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["details"], "out of stock")

	rec, _ = do(t, h, http.MethodGet, fmt.Sprintf("/customers/%d/rentals", first), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var held []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &held))
	require.Len(t, held, 1)
	assert.Equal(t, "Blade Runner", held[0]["title"])

	rec, _ = do(t, h, http.MethodGet, fmt.Sprintf("/videos/%d/rentals", video), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var renters []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &renters))
	require.Len(t, renters, 1)
	assert.Equal(t, "First", renters[0]["name"])

	rec, body = do(t, h, http.MethodPost, "/rentals/check-in", map[string]any{"customer_id": first, "video_id": video})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(1), body["available_inventory"])
	assert.Equal(t, float64(0), body["videos_checked_out_count"])

	rec, body = do(t, h, http.MethodPost, "/rentals/check-in", map[string]any{"customer_id": first, "video_id": video})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body, "details")

	rec, _ = do(t, h, http.MethodGet, fmt.Sprintf("/rentals/%d/events", rentalID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var events []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	assert.Len(t, events, 2)

	rec, body = do(t, h, http.MethodGet, "/health/invariants", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), body["inventory_drift"])
}

func TestRentalRequestValidation(t *testing.T) {
	h := newTestRouter(t)
	customer := createCustomer(t, h, "C")
	video := createVideo(t, h, "V", 1)

	cases := []struct {
		body    any
		status  int
		details string
	}{
		{map[string]any{"video_id": video}, http.StatusBadRequest, "customer_id is required"},
		{map[string]any{"customer_id": customer}, http.StatusBadRequest, "video_id is required"},
		{map[string]any{"customer_id": "abc", "video_id": video}, http.StatusBadRequest, "customer_id must be an integer"},
		{map[string]any{"customer_id": customer, "video_id": "x1"}, http.StatusBadRequest, "video_id must be an integer"},
		{map[string]any{"customer_id": customer, "video_id": -1}, http.StatusBadRequest, "video_id must be positive"},
		{map[string]any{"customer_id": fmt.Sprint(customer), "video_id": 999}, http.StatusNotFound, ""},
	}
	for _, path := range []string{"/rentals/check-out", "/rentals/check-in"} {
		for _, tc := range cases {
			rec, body := do(t, h, http.MethodPost, path, tc.body)
			assert.Equal(t, tc.status, rec.Code, "%s %v", path, tc.body)
			if tc.details != "" {
				assert.Contains(t, body["details"], tc.details)
			}
		}
	}
}

func TestCustomerListingSortAndPage(t *testing.T) {
	h := newTestRouter(t)
	for _, name := range []string{"Dana", "Ben", "Cara", "Abe", "Eve"} {
		createCustomer(t, h, name)
	}

	names := func(path string) []string {
		rec, _ := do(t, h, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var list []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		out := make([]string, 0, len(list))
		for _, c := range list {
			out = append(out, c["name"].(string))
		}
		return out
	}

	assert.Equal(t, []string{"Dana", "Ben", "Cara", "Abe", "Eve"}, names("/customers"))
	assert.Equal(t, []string{"Abe", "Ben", "Cara", "Dana", "Eve"}, names("/customers?sort=name"))
	assert.Equal(t, []string{"Dana", "Ben"}, names("/customers?n=2"))
	assert.Equal(t, []string{"Cara", "Abe"}, names("/customers?n=2&p=2"))
	assert.Equal(t, []string{"Cara", "Dana"}, names("/customers?sort=name&n=2&p=2"))
	assert.Equal(t, []string{"Eve"}, names("/customers?sort=name&n=2&p=3"))
	assert.Len(t, names("/customers?n=abc&p=2"), 5)
}

func TestDeleteGuardsOpenRentals(t *testing.T) {
	h := newTestRouter(t)
	customer := createCustomer(t, h, "Keeper")
	video := createVideo(t, h, "Tron", 2)

	rec, _ := do(t, h, http.MethodPost, "/rentals/check-out", map[string]any{"customer_id": customer, "video_id": video})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := do(t, h, http.MethodDelete, fmt.Sprintf("/customers/%d", customer), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body["details"], "open rentals")

	rec, _ = do(t, h, http.MethodDelete, fmt.Sprintf("/videos/%d", video), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/rentals/check-in", map[string]any{"customer_id": customer, "video_id": video})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = do(t, h, http.MethodDelete, fmt.Sprintf("/customers/%d", customer), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(customer), body["id"])
	assert.Equal(t, fmt.Sprintf("Customer %d \"Keeper\" successfully deleted", customer), body["details"])

	rec, body = do(t, h, http.MethodDelete, fmt.Sprintf("/videos/%d", video), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Tron", body["title"])

	rec, _ = do(t, h, http.MethodDelete, fmt.Sprintf("/videos/%d", video), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVideoUpdateKeepsCheckedOutCopies(t *testing.T) {
	h := newTestRouter(t)
	customer := createCustomer(t, h, "Holder")
	video := createVideo(t, h, "Dune", 3)

	for i := 0; i < 2; i++ {
		rec, _ := do(t, h, http.MethodPost, "/rentals/check-out", map[string]any{"customer_id": customer, "video_id": video})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	path := fmt.Sprintf("/videos/%d", video)
	rec, body := do(t, h, http.MethodPut, path, map[string]any{"title": "Dune", "release_date": "1984-12-14", "total_inventory": 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(3), body["available_inventory"])

	rec, _ = do(t, h, http.MethodPut, path, map[string]any{"title": "Dune", "release_date": "1984-12-14", "total_inventory": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPut, "/videos/999", map[string]any{"title": "Dune", "release_date": "1984-12-14", "total_inventory": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateCustomer(t *testing.T) {
	h := newTestRouter(t)
	id := createCustomer(t, h, "Old")

	rec, body := do(t, h, http.MethodPut, fmt.Sprintf("/customers/%d", id), map[string]string{
		"name": "New", "postal_code": "22222", "phone": "777",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "New", body["name"])
	assert.Equal(t, "22222", body["postal_code"])

	rec, _ = do(t, h, http.MethodPut, "/customers/404", map[string]string{"name": "x", "postal_code": "y", "phone": "z"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, h, http.MethodPut, fmt.Sprintf("/customers/%d", id), map[string]string{"name": "only"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWriteRateLimit(t *testing.T) {
	h := newTestRouter(t, func(o *Options) {
		o.WriteRateLimit = 0.001
		o.WriteRateBurst = 1
	})

	createCustomer(t, h, "First")
	rec, body := do(t, h, http.MethodPost, "/customers", map[string]string{"name": "B", "postal_code": "1", "phone": "2"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate limit exceeded", body["message"])

	rec, _ = do(t, h, http.MethodGet, "/customers", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth(t *testing.T) {
	h := newTestRouter(t)
	rec, body := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

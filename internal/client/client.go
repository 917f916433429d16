// internal/client/client.go
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"videostore/internal/customers"
	"videostore/internal/rentals"
	"videostore/internal/videos"
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

type errorBody struct {
	Message string `json:"message"`
	Details string `json:"details"`
}

// Client talks to a videostore server.
type Client struct {
	http *resty.Client
}

func New(baseURL string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	c.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if r.Header.Get("X-Request-Id") == "" {
			r.SetHeader("X-Request-Id", uuid.NewString())
		}
		return nil
	})
	return &Client{http: c}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var failure errorBody
	req := c.http.R().SetContext(ctx).SetError(&failure)
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		msg := failure.Message
		if msg == "" {
			msg = failure.Details
		}
		return &APIError{Status: resp.StatusCode(), Message: msg}
	}
	return nil
}

type customerBody struct {
	Name       string `json:"name"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
}

func (c *Client) CreateCustomer(ctx context.Context, name, postalCode, phone string) (*customers.Customer, error) {
	var out customers.Customer
	err := c.do(ctx, http.MethodPost, "/customers", customerBody{name, postalCode, phone}, &out)
	return &out, err
}

func (c *Client) UpdateCustomer(ctx context.Context, id int64, name, postalCode, phone string) (*customers.Customer, error) {
	var out customers.Customer
	err := c.do(ctx, http.MethodPut, "/customers/"+strconv.FormatInt(id, 10), customerBody{name, postalCode, phone}, &out)
	return &out, err
}

func (c *Client) GetCustomer(ctx context.Context, id int64) (*customers.Customer, error) {
	var out customers.Customer
	err := c.do(ctx, http.MethodGet, "/customers/"+strconv.FormatInt(id, 10), nil, &out)
	return &out, err
}

// ListCustomers lists customers. A positive pageSize turns paging on.
func (c *Client) ListCustomers(ctx context.Context, sortByName bool, pageSize, page int) ([]customers.Customer, error) {
	path := "/customers?"
	if sortByName {
		path += "sort=name&"
	}
	if pageSize > 0 {
		path += fmt.Sprintf("n=%d&p=%d", pageSize, page)
	}
	var out []customers.Customer
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) DeleteCustomer(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/customers/"+strconv.FormatInt(id, 10), nil, nil)
}

type videoBody struct {
	Title          string `json:"title"`
	ReleaseDate    string `json:"release_date"`
	TotalInventory int    `json:"total_inventory"`
}

func (c *Client) CreateVideo(ctx context.Context, title, releaseDate string, totalInventory int) (*videos.Video, error) {
	var out videos.Video
	err := c.do(ctx, http.MethodPost, "/videos", videoBody{title, releaseDate, totalInventory}, &out)
	return &out, err
}

func (c *Client) GetVideo(ctx context.Context, id int64) (*videos.Video, error) {
	var out videos.Video
	err := c.do(ctx, http.MethodGet, "/videos/"+strconv.FormatInt(id, 10), nil, &out)
	return &out, err
}

func (c *Client) ListVideos(ctx context.Context) ([]videos.Video, error) {
	var out []videos.Video
	err := c.do(ctx, http.MethodGet, "/videos", nil, &out)
	return out, err
}

func (c *Client) DeleteVideo(ctx context.Context, id int64) (*videos.Video, error) {
	var out videos.Video
	err := c.do(ctx, http.MethodDelete, "/videos/"+strconv.FormatInt(id, 10), nil, &out)
	return &out, err
}

type rentalBody struct {
	CustomerID int64 `json:"customer_id"`
	VideoID    int64 `json:"video_id"`
}

func (c *Client) CheckOut(ctx context.Context, customerID, videoID int64) (*rentals.Receipt, error) {
	var out rentals.Receipt
	err := c.do(ctx, http.MethodPost, "/rentals/check-out", rentalBody{customerID, videoID}, &out)
	return &out, err
}

func (c *Client) CheckIn(ctx context.Context, customerID, videoID int64) (*rentals.Summary, error) {
	var out rentals.Summary
	err := c.do(ctx, http.MethodPost, "/rentals/check-in", rentalBody{customerID, videoID}, &out)
	return &out, err
}

func (c *Client) CustomerRentals(ctx context.Context, customerID int64) ([]rentals.CustomerRental, error) {
	var out []rentals.CustomerRental
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/customers/%d/rentals", customerID), nil, &out)
	return out, err
}

func (c *Client) VideoRenters(ctx context.Context, videoID int64) ([]rentals.VideoRenter, error) {
	var out []rentals.VideoRenter
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/videos/%d/rentals", videoID), nil, &out)
	return out, err
}

func (c *Client) RentalEvents(ctx context.Context, rentalID int64) ([]rentals.Event, error) {
	var out []rentals.Event
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/rentals/%d/events", rentalID), nil, &out)
	return out, err
}

// Audit fetches the invariant report. A report showing drift is returned
// together with an *APIError carrying status 503.
func (c *Client) Audit(ctx context.Context) (*rentals.Audit, error) {
	var out rentals.Audit
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).SetError(&out).Get("/health/invariants")
	if err != nil {
		return nil, fmt.Errorf("GET /health/invariants: %w", err)
	}
	if resp.IsError() {
		return &out, &APIError{Status: resp.StatusCode(), Message: "invariants violated"}
	}
	return &out, nil
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// internal/store/memory.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"videostore/internal/customers"
	"videostore/internal/eventstore"
	"videostore/internal/rentals"
	"videostore/internal/videos"
)

// Memory keeps everything in process. Units of work are serialised by one
// mutex and staged on a copy of the state, so a failed unit of work leaves
// nothing behind.
type Memory struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	customers map[int64]customers.Customer
	videos    map[int64]videos.Video
	rentals   map[int64]rentals.Rental
	events    map[int64][]rentals.Event

	lastCustomer int64
	lastVideo    int64
	lastRental   int64
	lastEvent    int64
}

func NewMemory() *Memory {
	return &Memory{state: &memState{
		customers: map[int64]customers.Customer{},
		videos:    map[int64]videos.Video{},
		rentals:   map[int64]rentals.Rental{},
		events:    map[int64][]rentals.Event{},
	}}
}

func (s *memState) clone() *memState {
	c := *s
	c.customers = maps.Clone(s.customers)
	c.videos = maps.Clone(s.videos)
	c.rentals = maps.Clone(s.rentals)
	c.events = maps.Clone(s.events)
	return &c
}

func (s *memState) openRentals(match func(rentals.Rental) bool) []rentals.Rental {
	var open []rentals.Rental
	for _, r := range s.rentals {
		if r.CheckedOut && match(r) {
			open = append(open, r)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].ID < open[j].ID })
	return open
}

// dropClosed removes the closed rentals matched by match and their journal.
func (s *memState) dropClosed(match func(rentals.Rental) bool) {
	for id, r := range s.rentals {
		if match(r) {
			delete(s.rentals, id)
			delete(s.events, id)
		}
	}
}

// update stages a copy of the state, runs fn on it and publishes the copy
// when fn succeeds.
func (m *Memory) update(ctx context.Context, fn func(s *memState) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	staged := m.state.clone()
	if err := fn(staged); err != nil {
		return err
	}
	m.state = staged
	return nil
}

func (m *Memory) view(fn func(s *memState) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.state)
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

func (m *Memory) Close() error { return nil }

func (m *Memory) Customers() customers.Repository { return &memCustomers{m: m} }

func (m *Memory) Videos() videos.Repository { return &memVideos{m: m} }

func (m *Memory) Rentals() rentals.Repository { return &memRentals{m: m} }

// memCustomers implements customers.Repository.
type memCustomers struct {
	m *Memory
}

func (r *memCustomers) List(ctx context.Context, opts customers.ListOptions) ([]*customers.Customer, error) {
	var list []*customers.Customer
	err := r.m.view(func(s *memState) error {
		for _, c := range s.customers {
			c := c
			list = append(list, &c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(list, func(i, j int) bool {
		if opts.SortByName {
			if cmp := strings.Compare(list[i].Name, list[j].Name); cmp != 0 {
				return cmp < 0
			}
		}
		return list[i].ID < list[j].ID
	})

	if opts.Paged() {
		start := min(opts.Offset(), len(list))
		end := min(start+opts.PageSize, len(list))
		list = list[start:end]
	}
	return list, nil
}

func (r *memCustomers) Get(ctx context.Context, id int64) (*customers.Customer, error) {
	var found *customers.Customer
	err := r.m.view(func(s *memState) error {
		c, ok := s.customers[id]
		if !ok {
			return customers.NotFound(id)
		}
		found = &c
		return nil
	})
	return found, err
}

func (r *memCustomers) Create(ctx context.Context, c *customers.Customer) error {
	return r.m.update(ctx, func(s *memState) error {
		s.lastCustomer++
		c.ID = s.lastCustomer
		c.VideosCheckedOutCount = 0
		s.customers[c.ID] = *c
		return nil
	})
}

func (r *memCustomers) Update(ctx context.Context, id int64, apply func(*customers.Customer) error) (*customers.Customer, error) {
	var updated *customers.Customer
	err := r.m.update(ctx, func(s *memState) error {
		c, ok := s.customers[id]
		if !ok {
			return customers.NotFound(id)
		}
		count := c.VideosCheckedOutCount
		if err := apply(&c); err != nil {
			return err
		}
		c.ID = id
		c.VideosCheckedOutCount = count
		s.customers[id] = c
		updated = &c
		return nil
	})
	return updated, err
}

func (r *memCustomers) Delete(ctx context.Context, id int64) (*customers.Customer, error) {
	var deleted *customers.Customer
	err := r.m.update(ctx, func(s *memState) error {
		c, ok := s.customers[id]
		if !ok {
			return customers.NotFound(id)
		}
		held := func(rt rentals.Rental) bool { return rt.CustomerID == id }
		if open := len(s.openRentals(held)); open > 0 {
			return customers.HasOpenRentals(id, open)
		}
		s.dropClosed(held)
		delete(s.customers, id)
		deleted = &c
		return nil
	})
	return deleted, err
}

// memVideos implements videos.Repository.
type memVideos struct {
	m *Memory
}

func (r *memVideos) List(ctx context.Context) ([]*videos.Video, error) {
	var list []*videos.Video
	err := r.m.view(func(s *memState) error {
		for _, v := range s.videos {
			v := v
			list = append(list, &v)
		}
		return nil
	})
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, err
}

func (r *memVideos) Get(ctx context.Context, id int64) (*videos.Video, error) {
	var found *videos.Video
	err := r.m.view(func(s *memState) error {
		v, ok := s.videos[id]
		if !ok {
			return videos.NotFound(id)
		}
		found = &v
		return nil
	})
	return found, err
}

func (r *memVideos) Create(ctx context.Context, v *videos.Video) error {
	return r.m.update(ctx, func(s *memState) error {
		s.lastVideo++
		v.ID = s.lastVideo
		s.videos[v.ID] = *v
		return nil
	})
}

func (r *memVideos) Update(ctx context.Context, id int64, apply func(*videos.Video) error) (*videos.Video, error) {
	var updated *videos.Video
	err := r.m.update(ctx, func(s *memState) error {
		v, ok := s.videos[id]
		if !ok {
			return videos.NotFound(id)
		}
		if err := apply(&v); err != nil {
			return err
		}
		v.ID = id
		s.videos[id] = v
		updated = &v
		return nil
	})
	return updated, err
}

func (r *memVideos) Delete(ctx context.Context, id int64) (*videos.Video, error) {
	var deleted *videos.Video
	err := r.m.update(ctx, func(s *memState) error {
		v, ok := s.videos[id]
		if !ok {
			return videos.NotFound(id)
		}
		held := func(rt rentals.Rental) bool { return rt.VideoID == id }
		if open := len(s.openRentals(held)); open > 0 {
			return videos.HasOpenRentals(id, open)
		}
		s.dropClosed(held)
		delete(s.videos, id)
		deleted = &v
		return nil
	})
	return deleted, err
}

// memRentals implements rentals.Repository.
type memRentals struct {
	m *Memory
}

func (r *memRentals) WithinTx(ctx context.Context, fn func(ctx context.Context, tx rentals.Tx) error) error {
	return r.m.update(ctx, func(s *memState) error {
		return fn(ctx, &memTx{s: s})
	})
}

func (r *memRentals) CustomerRentals(ctx context.Context, customerID int64) ([]rentals.CustomerRental, error) {
	var list []rentals.CustomerRental
	err := r.m.view(func(s *memState) error {
		if _, ok := s.customers[customerID]; !ok {
			return customers.NotFound(customerID)
		}
		for _, rt := range s.openRentals(func(rt rentals.Rental) bool { return rt.CustomerID == customerID }) {
			v := s.videos[rt.VideoID]
			list = append(list, rentals.CustomerRental{
				RentalID:    rt.ID,
				Title:       v.Title,
				ReleaseDate: v.ReleaseDate,
				DueDate:     rt.DueDate,
			})
		}
		return nil
	})
	return list, err
}

func (r *memRentals) VideoRenters(ctx context.Context, videoID int64) ([]rentals.VideoRenter, error) {
	var list []rentals.VideoRenter
	err := r.m.view(func(s *memState) error {
		if _, ok := s.videos[videoID]; !ok {
			return videos.NotFound(videoID)
		}
		for _, rt := range s.openRentals(func(rt rentals.Rental) bool { return rt.VideoID == videoID }) {
			c := s.customers[rt.CustomerID]
			list = append(list, rentals.VideoRenter{
				RentalID:   rt.ID,
				Name:       c.Name,
				PostalCode: c.PostalCode,
				Phone:      c.Phone,
				DueDate:    rt.DueDate,
			})
		}
		return nil
	})
	return list, err
}

func (r *memRentals) Events(ctx context.Context, rentalID int64) ([]rentals.Event, error) {
	var list []rentals.Event
	err := r.m.view(func(s *memState) error {
		list = slices.Clone(s.events[rentalID])
		return nil
	})
	return list, err
}

func (r *memRentals) Audit(ctx context.Context) (*rentals.Audit, error) {
	var a rentals.Audit
	err := r.m.view(func(s *memState) error {
		openByVideo := map[int64]int{}
		openByCustomer := map[int64]int{}
		for _, rt := range s.rentals {
			if rt.CheckedOut {
				a.OpenRentals++
				openByVideo[rt.VideoID]++
				openByCustomer[rt.CustomerID]++
			}
		}
		a.Videos = len(s.videos)
		for id, v := range s.videos {
			if v.AvailableInventory != v.TotalInventory-openByVideo[id] {
				a.InventoryDrift++
			}
			if v.AvailableInventory < 0 {
				a.NegativeInventory++
			}
		}
		a.Customers = len(s.customers)
		for id, c := range s.customers {
			if c.VideosCheckedOutCount != openByCustomer[id] {
				a.CounterDrift++
			}
		}
		return nil
	})
	return &a, err
}

// memTx implements rentals.Tx on a staged copy of the state.
type memTx struct {
	s *memState
}

func (t *memTx) LockCustomer(ctx context.Context, id int64) (*customers.Customer, error) {
	c, ok := t.s.customers[id]
	if !ok {
		return nil, customers.NotFound(id)
	}
	return &c, nil
}

func (t *memTx) LockVideo(ctx context.Context, id int64) (*videos.Video, error) {
	v, ok := t.s.videos[id]
	if !ok {
		return nil, videos.NotFound(id)
	}
	return &v, nil
}

func (t *memTx) RentalsOf(ctx context.Context, customerID int64) ([]*rentals.Rental, error) {
	var list []*rentals.Rental
	for _, rt := range t.s.rentals {
		if rt.CustomerID == customerID {
			rt := rt
			list = append(list, &rt)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (t *memTx) InsertRental(ctx context.Context, rental *rentals.Rental) error {
	t.s.lastRental++
	rental.ID = t.s.lastRental
	t.s.rentals[rental.ID] = *rental
	return nil
}

func (t *memTx) SaveRental(ctx context.Context, rental *rentals.Rental) error {
	if _, ok := t.s.rentals[rental.ID]; !ok {
		return rentals.NotFound(rental.ID)
	}
	t.s.rentals[rental.ID] = *rental
	return nil
}

func (t *memTx) SaveInventory(ctx context.Context, v *videos.Video) error {
	stored, ok := t.s.videos[v.ID]
	if !ok {
		return videos.NotFound(v.ID)
	}
	if v.AvailableInventory < 0 || v.AvailableInventory > stored.TotalInventory {
		return fmt.Errorf("video %d: available inventory %d outside 0..%d", v.ID, v.AvailableInventory, stored.TotalInventory)
	}
	stored.AvailableInventory = v.AvailableInventory
	t.s.videos[v.ID] = stored
	return nil
}

func (t *memTx) SaveCheckedOutCount(ctx context.Context, c *customers.Customer) error {
	stored, ok := t.s.customers[c.ID]
	if !ok {
		return customers.NotFound(c.ID)
	}
	if c.VideosCheckedOutCount < 0 {
		return fmt.Errorf("customer %d: negative checked out count", c.ID)
	}
	stored.VideosCheckedOutCount = c.VideosCheckedOutCount
	t.s.customers[c.ID] = stored
	return nil
}

func (t *memTx) AppendEvent(ctx context.Context, rentalID int64, expectedVersion int, eventType string, data any) error {
	journal := t.s.events[rentalID]
	if len(journal) != expectedVersion {
		return eventstore.ErrConcurrencyConflict
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}

	t.s.lastEvent++
	t.s.events[rentalID] = append(slices.Clip(journal), rentals.Event{
		ID:        t.s.lastEvent,
		RentalID:  rentalID,
		Type:      eventType,
		Data:      payload,
		Version:   expectedVersion + 1,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

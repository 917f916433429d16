package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	dbOnce sync.Once
	testDB *sql.DB
	dbErr  error
)

// setupTestDB starts a postgres container once per package run. Tests are
// skipped when no container runtime is available.
func setupTestDB(tb testing.TB) *sql.DB {
	tb.Helper()
	if testing.Short() {
		tb.Skip("skipping postgres tests in short mode")
	}

	dbOnce.Do(func() {
		ctx := context.Background()
		container, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("events"),
			tcpostgres.WithUsername("events"),
			tcpostgres.WithPassword("events"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			dbErr = err
			return
		}
		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			dbErr = err
			return
		}
		if testDB, dbErr = sql.Open("postgres", dsn); dbErr != nil {
			return
		}
		_, dbErr = testDB.Exec(`
			CREATE TABLE IF NOT EXISTS events (
				id BIGSERIAL PRIMARY KEY,
				aggregate_id BIGINT NOT NULL,
				aggregate_type TEXT NOT NULL,
				event_type TEXT NOT NULL,
				event_data JSONB NOT NULL,
				metadata JSONB,
				version INT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE (aggregate_type, aggregate_id, version)
			)
		`)
	})
	if dbErr != nil {
		tb.Skipf("postgres container unavailable: %v", dbErr)
	}
	return testDB
}

type testEvent struct {
	Message string `json:"message"`
}

func eventOf(tb testing.TB, msg string) Event {
	data, err := json.Marshal(testEvent{Message: msg})
	require.NoError(tb, err)
	return Event{EventType: "TestEvent", EventData: data}
}

var nextAggregate struct {
	sync.Mutex
	id int64
}

func newAggregateID() int64 {
	nextAggregate.Lock()
	defer nextAggregate.Unlock()
	nextAggregate.id++
	return time.Now().UnixNano()/1000 + nextAggregate.id
}

func TestAppendAndLoad(t *testing.T) {
	db := setupTestDB(t)
	store := New()
	ctx := context.Background()
	id := newAggregateID()

	first := eventOf(t, "opened")
	first.Metadata = map[string]any{"request_id": "abc"}
	require.NoError(t, store.Append(ctx, db, "rental", id, 0, []Event{first}))
	require.NoError(t, store.Append(ctx, db, "rental", id, 1, []Event{eventOf(t, "closed")}))

	version, err := store.CurrentVersion(ctx, db, "rental", id)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	events, err := store.Load(ctx, db, "rental", id, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].Version)
	assert.Equal(t, "abc", events[0].Metadata["request_id"])
	assert.JSONEq(t, `{"message":"closed"}`, string(events[1].EventData))

	upTo, err := store.Load(ctx, db, "rental", id, 0, 1)
	require.NoError(t, err)
	assert.Len(t, upTo, 1)

	other, err := store.Load(ctx, db, "customer", id, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestAppendRejectsStaleVersion(t *testing.T) {
	db := setupTestDB(t)
	store := New()
	ctx := context.Background()
	id := newAggregateID()

	require.NoError(t, store.Append(ctx, db, "rental", id, 0, []Event{eventOf(t, "opened")}))
	assert.ErrorIs(t, store.Append(ctx, db, "rental", id, 0, []Event{eventOf(t, "again")}), ErrConcurrencyConflict)
	assert.ErrorIs(t, store.Append(ctx, db, "rental", id, -1, nil), ErrInvalidVersion)
}

func TestConcurrentAppendsConflict(t *testing.T) {
	db := setupTestDB(t)
	store := New()
	ctx := context.Background()
	id := newAggregateID()

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				errs[i] = err
				return
			}
			if errs[i] = store.Append(ctx, tx, "rental", id, 0, []Event{eventOf(t, fmt.Sprint(i))}); errs[i] != nil {
				_ = tx.Rollback()
				return
			}
			errs[i] = tx.Commit()
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
		}
	}
	assert.Equal(t, 1, ok)

	version, err := store.CurrentVersion(ctx, db, "rental", id)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func BenchmarkAppendEvents(b *testing.B) {
	db := setupTestDB(b)
	store := New()
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		b.StopTimer()
		id := newAggregateID()
		events := []Event{eventOf(b, fmt.Sprintf("event %d", i))}
		b.StartTimer()

		if err := store.Append(ctx, db, "bench", id, 0, events); err != nil {
			b.Fatalf("Append failed: %v", err)
		}
	}
}

func BenchmarkLoadEvents(b *testing.B) {
	db := setupTestDB(b)
	store := New()
	ctx := context.Background()

	id := newAggregateID()
	for i := 0; i < 10; i++ {
		if err := store.Append(ctx, db, "bench", id, i, []Event{eventOf(b, fmt.Sprintf("event %d", i))}); err != nil {
			b.Fatalf("failed to set up events: %v", err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := store.Load(ctx, db, "bench", id, 0, 0); err != nil {
			b.Fatalf("Load failed: %v", err)
		}
	}
}

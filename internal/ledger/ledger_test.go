package ledger

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-resto/internal/db"
	"github.com/noah-isme/backend-resto/internal/promotion"
	"github.com/noah-isme/backend-resto/internal/resilience"
)

func intPtr(v int) *int { return &v }

func TestMemoryLimitOneTwoConsumers(t *testing.T) {
	var l Memory
	l.Register("p1", intPtr(1), 0)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		limited   atomic.Int32
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := TryConsume(context.Background(), &l, "p1")
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, promotion.ErrLimitReached):
				limited.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), successes.Load())
	require.Equal(t, int32(1), limited.Load())
	require.Equal(t, 1, l.Count("p1"))
}

func TestMemoryNeverExceedsLimit(t *testing.T) {
	var l Memory
	l.Register("p1", intPtr(5), 0)
	l.Register("p2", nil, 0)

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := l.Consume(context.Background(), "p1"); err == nil {
				successes.Add(1)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := l.Consume(context.Background(), "p2"); err != nil {
				t.Errorf("unlimited promotion rejected: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(5), successes.Load())
	require.Equal(t, 5, l.Count("p1"))
	require.Equal(t, 50, l.Count("p2"))
}

func TestMemoryUnknownPromotion(t *testing.T) {
	var l Memory
	_, err := l.Consume(context.Background(), "ghost")
	require.ErrorIs(t, err, promotion.ErrNotFound)
}

func TestUsageExhausted(t *testing.T) {
	var l Memory
	l.Register("p1", intPtr(2), 0)

	u, err := l.Consume(context.Background(), "p1")
	require.NoError(t, err)
	require.False(t, u.Exhausted())

	u, err = l.Consume(context.Background(), "p1")
	require.NoError(t, err)
	require.True(t, u.Exhausted())
	require.Equal(t, 2, u.Count)
}

// fakePromotions emulates the conditional UPDATE of the promotions table.
type fakePromotions struct {
	mu        sync.Mutex
	count     map[string]int
	limit     map[string]*int
	failFirst int
	// lostReply is returned after the increment is applied.
	lostReply error
	calls     int
}

func (f *fakePromotions) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("not implemented")
}

func (f *fakePromotions) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakePromotions) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := args[0].(string)
	if strings.HasPrefix(strings.TrimSpace(sql), "SELECT EXISTS") {
		_, ok := f.count[id]
		return fakeRow{values: []any{ok}}
	}
	f.calls++
	if f.calls <= f.failFirst {
		return fakeRow{err: &pgconn.PgError{Code: db.CodeSerializationFailure}}
	}
	count, ok := f.count[id]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	limit := f.limit[id]
	if limit != nil && count >= *limit {
		return fakeRow{err: pgx.ErrNoRows}
	}
	f.count[id] = count + 1
	if f.lostReply != nil {
		return fakeRow{err: f.lostReply}
	}
	var l *int32
	if limit != nil {
		v := int32(*limit)
		l = &v
	}
	return fakeRow{values: []any{count + 1, l}}
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch target := d.(type) {
		case *int:
			*target = r.values[i].(int)
		case **int32:
			*target = r.values[i].(*int32)
		case *bool:
			*target = r.values[i].(bool)
		}
	}
	return nil
}

func fastRetry() resilience.Policy {
	p := DefaultRetry
	p.BaseBackoff = 1
	p.Jitter = 0
	return p
}

func TestPostgresConsumeRespectsLimit(t *testing.T) {
	fake := &fakePromotions{count: map[string]int{"p1": 0}, limit: map[string]*int{"p1": intPtr(3)}}
	l := Postgres{DB: fake, Retry: fastRetry()}

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Consume(context.Background(), "p1")
			if err == nil {
				successes.Add(1)
			} else if !errors.Is(err, promotion.ErrLimitReached) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(3), successes.Load())
	require.Equal(t, 3, fake.count["p1"])
}

func TestPostgresConsumeReportsUsage(t *testing.T) {
	fake := &fakePromotions{count: map[string]int{"p1": 1}, limit: map[string]*int{"p1": intPtr(2)}}
	u, err := Postgres{DB: fake, Retry: fastRetry()}.Consume(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, 2, u.Count)
	require.True(t, u.Exhausted())
}

func TestPostgresConsumeUnknownPromotion(t *testing.T) {
	fake := &fakePromotions{count: map[string]int{}, limit: map[string]*int{}}
	_, err := Postgres{DB: fake, Retry: fastRetry()}.Consume(context.Background(), "ghost")
	require.ErrorIs(t, err, promotion.ErrNotFound)
}

func TestPostgresRetriesTransientFailures(t *testing.T) {
	fake := &fakePromotions{count: map[string]int{"p1": 0}, limit: map[string]*int{"p1": nil}, failFirst: 2}
	u, err := Postgres{DB: fake, Retry: fastRetry()}.Consume(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, 1, u.Count)
	require.Equal(t, 3, fake.calls)
}

func TestPostgresGivesUpAfterMaxAttempts(t *testing.T) {
	fake := &fakePromotions{count: map[string]int{"p1": 0}, limit: map[string]*int{"p1": nil}, failFirst: 5}
	_, err := Postgres{DB: fake, Retry: fastRetry()}.Consume(context.Background(), "p1")
	require.True(t, db.IsTransient(err))
	require.Equal(t, 3, fake.calls)
	require.Equal(t, 0, fake.count["p1"])
}

type readTimeout struct{}

func (readTimeout) Error() string   { return "read tcp: i/o timeout" }
func (readTimeout) Timeout() bool   { return true }
func (readTimeout) Temporary() bool { return true }

func TestPostgresDoesNotRetryAfterLostReply(t *testing.T) {
	fake := &fakePromotions{count: map[string]int{"p1": 0}, limit: map[string]*int{"p1": nil}, lostReply: readTimeout{}}
	_, err := Postgres{DB: fake, Retry: fastRetry()}.Consume(context.Background(), "p1")
	require.Error(t, err)
	require.False(t, db.IsTransient(err))
	require.Equal(t, 1, fake.calls)
	require.Equal(t, 1, fake.count["p1"])
}

func TestPostgresBoundDoesNotRetry(t *testing.T) {
	fake := &fakePromotions{count: map[string]int{"p1": 0}, limit: map[string]*int{"p1": nil}, failFirst: 1}
	bound := Postgres{DB: fake, Retry: fastRetry().Once()}
	_, err := bound.Consume(context.Background(), "p1")
	require.Error(t, err)
	require.Equal(t, 1, fake.calls)
}

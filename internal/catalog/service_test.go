package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type fakeRepo struct {
	products map[string]domain.Product
	calls    atomic.Int32
	gate     chan struct{}
	err      error
}

func (f *fakeRepo) List(_ context.Context, category string) ([]domain.Product, error) {
	out := []domain.Product{}
	for _, p := range f.products {
		if category == "" || p.Category == category {
			out = append(out, p)
		}
	}
	return out, f.err
}

func (f *fakeRepo) Get(ctx context.Context, id string) (*domain.Product, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func whey() domain.Product {
	return domain.Product{
		ID:       "whey",
		Name:     "Whey Protein",
		Category: "protein",
		Price:    decimal.RequireFromString("2499"),
		Flavors:  []string{"chocolate", "vanilla"},
		Sizes: []domain.ProductSize{
			{Size: "1kg", Servings: 33, Price: decimal.RequireFromString("2499")},
		},
		Rating:  4.7,
		Reviews: 120,
	}
}

func setupCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, 10*time.Minute), mr
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRedisCache(t *testing.T) {
	cache, mr := setupCache(t)
	ctx := context.Background()

	_, err := cache.Get(ctx, "whey")
	require.ErrorIs(t, err, ErrCacheMiss)

	p := whey()
	require.NoError(t, cache.Set(ctx, &p))
	assert.True(t, mr.Exists("product:whey"))
	ttl := mr.TTL("product:whey")
	assert.GreaterOrEqual(t, ttl, 10*time.Minute)
	assert.Less(t, ttl, 15*time.Minute)

	got, err := cache.Get(ctx, "whey")
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.True(t, p.Price.Equal(got.Price))
	assert.Equal(t, p.Flavors, got.Flavors)

	require.NoError(t, cache.Delete(ctx, "whey"))
	_, err = cache.Get(ctx, "whey")
	require.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_CorruptEntry(t *testing.T) {
	cache, mr := setupCache(t)
	require.NoError(t, mr.Set("product:whey", "{not json"))

	_, err := cache.Get(context.Background(), "whey")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestService_GetReadsThrough(t *testing.T) {
	cache, _ := setupCache(t)
	repo := &fakeRepo{products: map[string]domain.Product{"whey": whey()}}
	svc := NewService(repo, cache, discard())
	ctx := context.Background()

	for range 3 {
		p, err := svc.Get(ctx, "whey")
		require.NoError(t, err)
		assert.Equal(t, "Whey Protein", p.Name)
	}
	assert.Equal(t, int32(1), repo.calls.Load())
}

func TestService_GetUnknownIsNotCached(t *testing.T) {
	cache, mr := setupCache(t)
	repo := &fakeRepo{products: map[string]domain.Product{}}
	svc := NewService(repo, cache, discard())

	p, err := svc.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.False(t, mr.Exists("product:nope"))
}

func TestService_GetFallsBackWhenCacheDown(t *testing.T) {
	cache, mr := setupCache(t)
	mr.Close()
	repo := &fakeRepo{products: map[string]domain.Product{"whey": whey()}}
	svc := NewService(repo, cache, discard())

	p, err := svc.Get(context.Background(), "whey")
	require.NoError(t, err)
	assert.Equal(t, "whey", p.ID)
}

func TestService_GetCollapsesConcurrentMisses(t *testing.T) {
	repo := &fakeRepo{
		products: map[string]domain.Product{"whey": whey()},
		gate:     make(chan struct{}),
	}
	svc := NewService(repo, nil, discard())

	var wg sync.WaitGroup
	results := make([]*domain.Product, 10)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := svc.Get(context.Background(), "whey")
			assert.NoError(t, err)
			results[i] = p
		}()
	}

	require.Eventually(t, func() bool { return repo.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(repo.gate)
	wg.Wait()

	assert.Equal(t, int32(1), repo.calls.Load())
	for _, p := range results {
		require.NotNil(t, p)
		assert.Equal(t, "whey", p.ID)
	}
}

func TestService_GetSharedMissSurvivesLeaderCancel(t *testing.T) {
	repo := &fakeRepo{
		products: map[string]domain.Product{"whey": whey()},
		gate:     make(chan struct{}),
	}
	svc := NewService(repo, nil, discard())

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	defer cancelLeader()
	go func() { _, _ = svc.Get(leaderCtx, "whey") }()
	require.Eventually(t, func() bool { return repo.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	type outcome struct {
		p   *domain.Product
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		p, err := svc.Get(context.Background(), "whey")
		done <- outcome{p, err}
	}()

	time.Sleep(50 * time.Millisecond)
	cancelLeader()
	time.Sleep(20 * time.Millisecond)
	close(repo.gate)

	got := <-done
	require.NoError(t, got.err)
	require.NotNil(t, got.p)
	assert.Equal(t, "whey", got.p.ID)
	assert.Equal(t, int32(1), repo.calls.Load())
}

func TestService_GetRepositoryError(t *testing.T) {
	repo := &fakeRepo{err: errors.New("db down")}
	svc := NewService(repo, nil, discard())

	_, err := svc.Get(context.Background(), "whey")
	require.Error(t, err)
}

func TestHandler(t *testing.T) {
	repo := &fakeRepo{products: map[string]domain.Product{"whey": whey()}}
	h := NewHandler(NewService(repo, nil, discard()), discard())
	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products?category=protein", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.Product
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list, 1)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products?category=vitamins", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/whey", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var p domain.Product
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	assert.Equal(t, "2499", p.Price.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products/creatine", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"product not found"}`, rec.Body.String())
}

package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/domain"
)

func whey(flavor, size string, qty int) domain.CartItem {
	return domain.CartItem{
		ProductID: "whey-1",
		Name:      "Whey Protein",
		UnitPrice: decimal.RequireFromString("2499"),
		Flavor:    flavor,
		Size:      size,
		Quantity:  qty,
	}
}

func openFixed(t *testing.T, storage Storage) *Store {
	t.Helper()
	store, err := Open(context.Background(), storage, StorageKey)
	require.NoError(t, err)
	store.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return store
}

type failingStorage struct {
	*MemoryStorage
	failSave bool
}

func (f *failingStorage) Save(ctx context.Context, key string, data []byte) error {
	if f.failSave {
		return errors.New("disk full")
	}
	return f.MemoryStorage.Save(ctx, key, data)
}

func TestStore_AddItem(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns id from variant and timestamp", func(t *testing.T) {
		store := openFixed(t, NewMemoryStorage())

		line, err := store.AddItem(ctx, whey("chocolate", "1kg", 1))
		require.NoError(t, err)
		assert.Equal(t, "whey-1-chocolate-1kg-1700000000000", line.ID)
		assert.Len(t, store.Items(), 1)
	})

	t.Run("merges quantity for the same variant", func(t *testing.T) {
		store := openFixed(t, NewMemoryStorage())

		first, err := store.AddItem(ctx, whey("chocolate", "1kg", 1))
		require.NoError(t, err)
		merged, err := store.AddItem(ctx, whey("chocolate", "1kg", 2))
		require.NoError(t, err)

		assert.Equal(t, first.ID, merged.ID)
		assert.Equal(t, 3, merged.Quantity)
		assert.Len(t, store.Items(), 1)
	})

	t.Run("keeps different variants as separate lines", func(t *testing.T) {
		store := openFixed(t, NewMemoryStorage())

		_, err := store.AddItem(ctx, whey("chocolate", "1kg", 1))
		require.NoError(t, err)
		_, err = store.AddItem(ctx, whey("vanilla", "1kg", 1))
		require.NoError(t, err)

		assert.Len(t, store.Items(), 2)
		assert.Equal(t, 2, store.ItemCount())
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		store := openFixed(t, NewMemoryStorage())

		_, err := store.AddItem(ctx, whey("chocolate", "1kg", 0))
		assert.ErrorIs(t, err, ErrInvalidQuantity)
		assert.Empty(t, store.Items())
	})
}

func TestStore_UpdateQuantity(t *testing.T) {
	ctx := context.Background()

	t.Run("sets quantity", func(t *testing.T) {
		store := openFixed(t, NewMemoryStorage())
		line, err := store.AddItem(ctx, whey("chocolate", "1kg", 1))
		require.NoError(t, err)

		require.NoError(t, store.UpdateQuantity(ctx, line.ID, 4))
		assert.Equal(t, 4, store.ItemCount())
	})

	t.Run("zero removes the line", func(t *testing.T) {
		store := openFixed(t, NewMemoryStorage())
		line, err := store.AddItem(ctx, whey("chocolate", "1kg", 1))
		require.NoError(t, err)

		require.NoError(t, store.UpdateQuantity(ctx, line.ID, 0))
		assert.Empty(t, store.Items())
	})

	t.Run("unknown id", func(t *testing.T) {
		store := openFixed(t, NewMemoryStorage())
		assert.ErrorIs(t, store.UpdateQuantity(ctx, "missing", 2), ErrItemNotFound)
		assert.ErrorIs(t, store.RemoveItem(ctx, "missing"), ErrItemNotFound)
	})
}

func TestStore_TotalsAndClear(t *testing.T) {
	ctx := context.Background()
	store := openFixed(t, NewMemoryStorage())

	_, err := store.AddItem(ctx, whey("chocolate", "1kg", 2))
	require.NoError(t, err)
	_, err = store.AddItem(ctx, domain.CartItem{
		ProductID: "bcaa-1",
		Name:      "BCAA",
		UnitPrice: decimal.RequireFromString("999.50"),
		Quantity:  1,
	})
	require.NoError(t, err)

	assert.True(t, store.Total().Equal(decimal.RequireFromString("5997.50")))
	assert.Equal(t, 3, store.ItemCount())

	require.NoError(t, store.Clear(ctx))
	assert.True(t, store.Total().IsZero())
	assert.Equal(t, 0, store.ItemCount())
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()

	store := openFixed(t, storage)
	line, err := store.AddItem(ctx, whey("chocolate", "1kg", 2))
	require.NoError(t, err)

	reopened, err := Open(ctx, storage, StorageKey)
	require.NoError(t, err)
	require.Len(t, reopened.Items(), 1)
	assert.Equal(t, line.ID, reopened.Items()[0].ID)
	assert.Equal(t, 2, reopened.ItemCount())
}

func TestStore_FailedSaveLeavesCartUnchanged(t *testing.T) {
	ctx := context.Background()
	storage := &failingStorage{MemoryStorage: NewMemoryStorage()}
	store := openFixed(t, storage)

	line, err := store.AddItem(ctx, whey("chocolate", "1kg", 1))
	require.NoError(t, err)

	storage.failSave = true
	_, err = store.AddItem(ctx, whey("chocolate", "1kg", 5))
	require.Error(t, err)
	assert.Equal(t, 1, store.ItemCount())

	require.Error(t, store.RemoveItem(ctx, line.ID))
	assert.Len(t, store.Items(), 1)
}

func TestOpen_CorruptSnapshot(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	require.NoError(t, storage.Save(ctx, StorageKey, []byte("{not json")))

	_, err := Open(ctx, storage, StorageKey)
	assert.Error(t, err)
}

func TestManager_IsolatesCarts(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(NewMemoryStorage())

	a, err := mgr.Open(ctx, "a")
	require.NoError(t, err)
	_, err = a.AddItem(ctx, whey("chocolate", "1kg", 1))
	require.NoError(t, err)

	items, err := mgr.Items(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, items)

	items, err = mgr.Items(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	require.NoError(t, mgr.Clear(ctx, "a"))
	items, err = mgr.Items(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRedisStorage(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	storage := NewRedisStorage(client, 24*time.Hour)

	t.Run("miss", func(t *testing.T) {
		_, err := storage.Load(ctx, Key("nobody"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("cart survives through redis with ttl", func(t *testing.T) {
		mgr := NewManager(storage)
		store, err := mgr.Open(ctx, "c1")
		require.NoError(t, err)
		_, err = store.AddItem(ctx, whey("chocolate", "1kg", 2))
		require.NoError(t, err)

		assert.True(t, mr.Exists(Key("c1")))
		ttl := mr.TTL(Key("c1"))
		assert.GreaterOrEqual(t, ttl, 24*time.Hour)
		assert.Less(t, ttl, 25*time.Hour)

		items, err := mgr.Items(ctx, "c1")
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, 2, items[0].Quantity)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, storage.Save(ctx, "k", []byte("v")))
		require.NoError(t, storage.Delete(ctx, "k"))
		assert.False(t, mr.Exists("k"))
	})
}

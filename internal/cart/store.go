package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// StorageKey is the fixed key carts are persisted under. Carts of different
// clients sharing one backend are suffixed with their cart id.
const StorageKey = "cart-storage"

var (
	ErrItemNotFound    = errors.New("cart item not found")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

type snapshot struct {
	Items []domain.CartItem `json:"items"`
}

// Store is one client's cart. Every mutation writes the full cart back to
// storage before it becomes visible, so a failed write leaves the cart as it was.
type Store struct {
	mu      sync.Mutex
	storage Storage
	key     string
	items   []domain.CartItem
	now     func() time.Time
}

// Open loads the cart saved under key, or starts an empty one.
func Open(ctx context.Context, storage Storage, key string) (*Store, error) {
	s := &Store{
		storage: storage,
		key:     key,
		now:     time.Now,
	}

	data, err := storage.Load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}
	s.items = snap.Items
	return s, nil
}

func (s *Store) Items() []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.CartItem, len(s.items))
	copy(out, s.items)
	return out
}

// AddItem merges item into the line with the same product, flavor and size,
// or appends it as a new line. It returns the resulting line.
func (s *Store) AddItem(ctx context.Context, item domain.CartItem) (domain.CartItem, error) {
	if item.Quantity < 1 {
		return domain.CartItem{}, ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]domain.CartItem, len(s.items))
	copy(next, s.items)

	for i := range next {
		if next[i].SameVariant(item) {
			next[i].Quantity += item.Quantity
			if err := s.persist(ctx, next); err != nil {
				return domain.CartItem{}, err
			}
			s.items = next
			return next[i], nil
		}
	}

	item.ID = fmt.Sprintf("%s-%s-%s-%d", item.ProductID, item.Flavor, item.Size, s.now().UnixMilli())
	next = append(next, item)
	if err := s.persist(ctx, next); err != nil {
		return domain.CartItem{}, err
	}
	s.items = next
	return item, nil
}

func (s *Store) RemoveItem(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.removeLocked(ctx, id)
}

// UpdateQuantity sets the quantity of a line; a quantity of zero or less removes it.
func (s *Store) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity <= 0 {
		return s.removeLocked(ctx, id)
	}

	idx := s.indexOf(id)
	if idx < 0 {
		return ErrItemNotFound
	}

	next := make([]domain.CartItem, len(s.items))
	copy(next, s.items)
	next[idx].Quantity = quantity

	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.items = next
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(ctx, nil); err != nil {
		return err
	}
	s.items = nil
	return nil
}

// Total is the sum of unit price times quantity. Tax and shipping are not included.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	return domain.CartSubtotal(s.items)
}

// ItemCount is the number of units in the cart, not the number of lines.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, item := range s.items {
		count += item.Quantity
	}
	return count
}

func (s *Store) removeLocked(ctx context.Context, id string) error {
	idx := s.indexOf(id)
	if idx < 0 {
		return ErrItemNotFound
	}

	next := make([]domain.CartItem, 0, len(s.items)-1)
	next = append(next, s.items[:idx]...)
	next = append(next, s.items[idx+1:]...)

	if err := s.persist(ctx, next); err != nil {
		return err
	}
	s.items = next
	return nil
}

func (s *Store) indexOf(id string) int {
	for i, item := range s.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) persist(ctx context.Context, items []domain.CartItem) error {
	if items == nil {
		items = []domain.CartItem{}
	}
	data, err := json.Marshal(snapshot{Items: items})
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	if err := s.storage.Save(ctx, s.key, data); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// Manager opens per-client stores on a shared storage backend.
type Manager struct {
	storage Storage
}

func NewManager(storage Storage) *Manager {
	return &Manager{storage: storage}
}

func Key(cartID string) string {
	return StorageKey + ":" + cartID
}

func (m *Manager) Open(ctx context.Context, cartID string) (*Store, error) {
	return Open(ctx, m.storage, Key(cartID))
}

func (m *Manager) Items(ctx context.Context, cartID string) ([]domain.CartItem, error) {
	store, err := m.Open(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return store.Items(), nil
}

func (m *Manager) Clear(ctx context.Context, cartID string) error {
	store, err := m.Open(ctx, cartID)
	if err != nil {
		return err
	}
	return store.Clear(ctx)
}

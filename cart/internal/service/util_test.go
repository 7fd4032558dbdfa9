package service

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/skatehub/ecommerce/cart/internal/product"
	"github.com/skatehub/ecommerce/cart/internal/repository"
	inErrors "github.com/skatehub/ecommerce/internal/common/errors"
)

// memStore mirrors the persistence contract of the mongo-backed store: carts
// are handed out as copies so in-memory mutations are invisible until Save,
// and Save validates then recomputes the derived totals.
type memStore struct {
	mu    sync.Mutex
	carts map[string]repository.Cart
	saves int
}

func newMemStore() *memStore {
	return &memStore{carts: map[string]repository.Cart{}}
}

func copyCart(cart repository.Cart) repository.Cart {
	items := make([]repository.CartItem, len(cart.Items))
	copy(items, cart.Items)
	cart.Items = items
	return cart
}

func (s *memStore) GetOrCreate(_ context.Context, userID string) (*repository.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cart, ok := s.carts[userID]; ok {
		cart = copyCart(cart)
		return &cart, nil
	}
	cart := *repository.NewCart(userID)
	cart.ID = primitive.NewObjectID()
	s.carts[userID] = copyCart(cart)
	return &cart, nil
}

func (s *memStore) Save(_ context.Context, cart *repository.Cart) error {
	if err := cart.Validate(); err != nil {
		return err
	}
	cart.RecomputeTotals()
	cart.UpdatedAt = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[cart.UserID] = copyCart(*cart)
	s.saves++
	return nil
}

func (s *memStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// stubLookup serves products from a map keyed by hex id. Missing ids map to
// ErrProductNotFound like the real catalog client does for a 404.
type stubLookup struct {
	mu       sync.Mutex
	products map[string]product.Product
}

func newStubLookup(products ...product.Product) *stubLookup {
	l := &stubLookup{products: map[string]product.Product{}}
	for _, p := range products {
		l.products[p.ID] = p
	}
	return l
}

func (l *stubLookup) FindById(_ context.Context, productId string) (product.Product, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.products[productId]
	if !ok {
		return product.Product{}, inErrors.ErrProductNotFound
	}
	return p, nil
}

func (l *stubLookup) setPrice(productId string, price decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.products[productId]
	p.Price = price
	l.products[productId] = p
}

func (l *stubLookup) setStock(productId string, stock int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.products[productId]
	p.Stock = stock
	l.products[productId] = p
}

func (l *stubLookup) remove(productId string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.products, productId)
}

type noopLocker struct{}

func (noopLocker) Acquire(context.Context, string) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

// mutexLocker serializes per user with in-process mutexes, standing in for the
// redis lock in concurrency tests.
type mutexLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newMutexLocker() *mutexLocker {
	return &mutexLocker{locks: map[string]*sync.Mutex{}}
}

func (l *mutexLocker) Acquire(
	_ context.Context,
	userId string,
) (func(context.Context) error, error) {
	l.mu.Lock()
	m, ok := l.locks[userId]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userId] = m
	}
	l.mu.Unlock()
	m.Lock()
	return func(context.Context) error {
		m.Unlock()
		return nil
	}, nil
}

// hookLookup runs onFind before delegating, so tests can interleave work with
// a lookup that happens mid-operation.
type hookLookup struct {
	inner  *stubLookup
	onFind func(productId string)
}

func (l hookLookup) FindById(c context.Context, productId string) (product.Product, error) {
	if l.onFind != nil {
		l.onFind(productId)
	}
	return l.inner.FindById(c, productId)
}

func newProduct(name string, price string, stock int) product.Product {
	return product.Product{
		ID:       primitive.NewObjectID().Hex(),
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		Category: "skateboard",
	}
}

func newTestService(
	store *memStore,
	lookup *stubLookup,
) CartService {
	return NewCartService(store, lookup, noopLocker{})
}

package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/skatehub/ecommerce/cart/internal/product"
	"github.com/skatehub/ecommerce/cart/internal/repository"
	"github.com/skatehub/ecommerce/cart/internal/service"
	"github.com/skatehub/ecommerce/internal/common/constants"
	inErrors "github.com/skatehub/ecommerce/internal/common/errors"
	"github.com/skatehub/ecommerce/internal/middleware"
)

const testSecretKey = "test-secret"

type fakeStore struct {
	mu    sync.Mutex
	carts map[string]repository.Cart
}

func newFakeStore() *fakeStore {
	return &fakeStore{carts: map[string]repository.Cart{}}
}

func (s *fakeStore) GetOrCreate(_ context.Context, userID string) (*repository.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cart, ok := s.carts[userID]; ok {
		items := make([]repository.CartItem, len(cart.Items))
		copy(items, cart.Items)
		cart.Items = items
		return &cart, nil
	}
	cart := *repository.NewCart(userID)
	cart.ID = primitive.NewObjectID()
	s.carts[userID] = cart
	return &cart, nil
}

func (s *fakeStore) Save(_ context.Context, cart *repository.Cart) error {
	if err := cart.Validate(); err != nil {
		return err
	}
	cart.RecomputeTotals()
	cart.UpdatedAt = time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]repository.CartItem, len(cart.Items))
	copy(items, cart.Items)
	stored := *cart
	stored.Items = items
	s.carts[cart.UserID] = stored
	return nil
}

type fakeLookup map[string]product.Product

func (l fakeLookup) FindById(_ context.Context, productId string) (product.Product, error) {
	p, ok := l[productId]
	if !ok {
		return product.Product{}, inErrors.ErrProductNotFound
	}
	return p, nil
}

type fakeLocker struct{}

func (fakeLocker) Acquire(context.Context, string) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

func newTestRouter(lookup fakeLookup) *mux.Router {
	svc := service.NewCartService(newFakeStore(), lookup, fakeLocker{})
	router := mux.NewRouter()
	cartRouter := router.PathPrefix("/cart").Subrouter()
	cartRouter.Use(middleware.Auth(testSecretKey))
	AttachCartController(cartRouter, &svc)
	return router
}

func signedToken(t *testing.T, userId string) string {
	t.Helper()
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userId,
		Audience:  jwt.ClaimStrings{constants.AudienceUser},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte(testSecretKey))
	require.NoError(t, err)
	return token
}

func doRequest(
	t *testing.T,
	router *mux.Router,
	method string,
	target string,
	body string,
	token string,
) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	decoded := map[string]interface{}{}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&decoded))
	return recorder, decoded
}

func TestCartEndpointsRejectMissingToken(t *testing.T) {
	router := newTestRouter(fakeLookup{})

	recorder, body := doRequest(t, router, http.MethodGet, "/cart", "", "")

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, "missing authorization", body["message"])
}

func TestCartEndpointsRejectForgedToken(t *testing.T) {
	router := newTestRouter(fakeLookup{})

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   "user-1",
		Audience:  jwt.ClaimStrings{constants.AudienceUser},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	recorder, _ := doRequest(t, router, http.MethodGet, "/cart", "", forged)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestGetCartReturnsCartAndStats(t *testing.T) {
	router := newTestRouter(fakeLookup{})
	token := signedToken(t, "user-1")

	recorder, body := doRequest(t, router, http.MethodGet, "/cart", "", token)

	require.Equal(t, http.StatusOK, recorder.Code)
	cart := body["cart"].(map[string]interface{})
	stats := body["stats"].(map[string]interface{})
	assert.Equal(t, "user-1", cart["userId"])
	assert.Empty(t, cart["items"])
	assert.EqualValues(t, 0, stats["totalItems"])
}

func TestAddItemHappyPath(t *testing.T) {
	p := product.Product{
		ID:    primitive.NewObjectID().Hex(),
		Name:  "deck",
		Price: decimal.RequireFromString("79.99"),
		Stock: 10,
	}
	router := newTestRouter(fakeLookup{p.ID: p})
	token := signedToken(t, "user-1")

	recorder, body := doRequest(
		t,
		router,
		http.MethodPost,
		"/cart/add",
		`{"productId":"`+p.ID+`","quantity":2}`,
		token,
	)

	require.Equal(t, http.StatusCreated, recorder.Code)
	assert.Equal(t, "product added to cart", body["message"])
	cart := body["cart"].(map[string]interface{})
	assert.EqualValues(t, 2, cart["totalItems"])
	assert.Equal(t, "159.98", cart["totalAmount"])
}

func TestAddItemDefaultsQuantityToOne(t *testing.T) {
	p := product.Product{
		ID:    primitive.NewObjectID().Hex(),
		Name:  "deck",
		Price: decimal.RequireFromString("79.99"),
		Stock: 10,
	}
	router := newTestRouter(fakeLookup{p.ID: p})
	token := signedToken(t, "user-1")

	recorder, body := doRequest(
		t,
		router,
		http.MethodPost,
		"/cart/add",
		`{"productId":"`+p.ID+`"}`,
		token,
	)

	require.Equal(t, http.StatusCreated, recorder.Code)
	cart := body["cart"].(map[string]interface{})
	assert.EqualValues(t, 1, cart["totalItems"])
}

func TestAddItemRejectsZeroQuantity(t *testing.T) {
	p := product.Product{
		ID:    primitive.NewObjectID().Hex(),
		Price: decimal.RequireFromString("79.99"),
		Stock: 10,
	}
	router := newTestRouter(fakeLookup{p.ID: p})
	token := signedToken(t, "user-1")

	recorder, _ := doRequest(
		t,
		router,
		http.MethodPost,
		"/cart/add",
		`{"productId":"`+p.ID+`","quantity":0}`,
		token,
	)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestAddItemUnknownProductIsBadRequest(t *testing.T) {
	router := newTestRouter(fakeLookup{})
	token := signedToken(t, "user-1")

	recorder, body := doRequest(
		t,
		router,
		http.MethodPost,
		"/cart/add",
		`{"productId":"`+primitive.NewObjectID().Hex()+`","quantity":1}`,
		token,
	)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "product not found", body["error"])
}

func TestAddItemInsufficientStockCarriesDetails(t *testing.T) {
	p := product.Product{
		ID:    primitive.NewObjectID().Hex(),
		Price: decimal.RequireFromString("79.99"),
		Stock: 5,
	}
	router := newTestRouter(fakeLookup{p.ID: p})
	token := signedToken(t, "user-1")

	recorder, body := doRequest(
		t,
		router,
		http.MethodPost,
		"/cart/add",
		`{"productId":"`+p.ID+`","quantity":6}`,
		token,
	)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "insufficient stock", body["error"])
	assert.Equal(t, "available: 5, in cart: 0, requested: 6", body["details"])
}

func TestUpdateItemToZeroRemovesProduct(t *testing.T) {
	p := product.Product{
		ID:    primitive.NewObjectID().Hex(),
		Price: decimal.RequireFromString("79.99"),
		Stock: 10,
	}
	router := newTestRouter(fakeLookup{p.ID: p})
	token := signedToken(t, "user-1")

	recorder, _ := doRequest(
		t,
		router,
		http.MethodPost,
		"/cart/add",
		`{"productId":"`+p.ID+`","quantity":2}`,
		token,
	)
	require.Equal(t, http.StatusCreated, recorder.Code)

	recorder, body := doRequest(
		t,
		router,
		http.MethodPut,
		"/cart/update",
		`{"productId":"`+p.ID+`","quantity":0}`,
		token,
	)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "product removed from cart", body["message"])
	cart := body["cart"].(map[string]interface{})
	assert.Empty(t, cart["items"])
}

func TestUpdateItemAbsentFromCartIsNotFound(t *testing.T) {
	p := product.Product{
		ID:    primitive.NewObjectID().Hex(),
		Price: decimal.RequireFromString("79.99"),
		Stock: 10,
	}
	router := newTestRouter(fakeLookup{p.ID: p})
	token := signedToken(t, "user-1")

	recorder, body := doRequest(
		t,
		router,
		http.MethodPut,
		"/cart/update",
		`{"productId":"`+p.ID+`","quantity":3}`,
		token,
	)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, "product not found in cart", body["error"])
}

func TestUpdateItemRequiresQuantityField(t *testing.T) {
	router := newTestRouter(fakeLookup{})
	token := signedToken(t, "user-1")

	recorder, _ := doRequest(
		t,
		router,
		http.MethodPut,
		"/cart/update",
		`{"productId":"`+primitive.NewObjectID().Hex()+`"}`,
		token,
	)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRemoveItemEndpoint(t *testing.T) {
	p := product.Product{
		ID:    primitive.NewObjectID().Hex(),
		Price: decimal.RequireFromString("79.99"),
		Stock: 10,
	}
	router := newTestRouter(fakeLookup{p.ID: p})
	token := signedToken(t, "user-1")

	recorder, _ := doRequest(
		t,
		router,
		http.MethodPost,
		"/cart/add",
		`{"productId":"`+p.ID+`","quantity":1}`,
		token,
	)
	require.Equal(t, http.StatusCreated, recorder.Code)

	recorder, body := doRequest(
		t,
		router,
		http.MethodDelete,
		"/cart/remove/"+p.ID,
		"",
		token,
	)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "product removed from cart", body["message"])

	recorder, _ = doRequest(t, router, http.MethodDelete, "/cart/remove/"+p.ID, "", token)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestClearCartEndpoint(t *testing.T) {
	p := product.Product{
		ID:    primitive.NewObjectID().Hex(),
		Price: decimal.RequireFromString("79.99"),
		Stock: 10,
	}
	router := newTestRouter(fakeLookup{p.ID: p})
	token := signedToken(t, "user-1")

	recorder, _ := doRequest(
		t,
		router,
		http.MethodPost,
		"/cart/add",
		`{"productId":"`+p.ID+`","quantity":3}`,
		token,
	)
	require.Equal(t, http.StatusCreated, recorder.Code)

	recorder, body := doRequest(t, router, http.MethodDelete, "/cart/clear", "", token)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "cart cleared", body["message"])
	cart := body["cart"].(map[string]interface{})
	assert.EqualValues(t, 0, cart["totalItems"])
}

func TestCheckAvailabilityEndpoint(t *testing.T) {
	lookup := fakeLookup{}
	p := product.Product{
		ID:    primitive.NewObjectID().Hex(),
		Name:  "wheels",
		Price: decimal.RequireFromString("24.50"),
		Stock: 10,
	}
	lookup[p.ID] = p
	router := newTestRouter(lookup)
	token := signedToken(t, "user-1")

	recorder, _ := doRequest(
		t,
		router,
		http.MethodPost,
		"/cart/add",
		`{"productId":"`+p.ID+`","quantity":4}`,
		token,
	)
	require.Equal(t, http.StatusCreated, recorder.Code)

	short := p
	short.Stock = 2
	lookup[p.ID] = short

	recorder, body := doRequest(t, router, http.MethodGet, "/cart/check-availability", "", token)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, false, body["available"])
	assert.EqualValues(t, 4, body["totalItems"])
	unavailable := body["unavailableItems"].([]interface{})
	require.Len(t, unavailable, 1)
	item := unavailable[0].(map[string]interface{})
	assert.Equal(t, p.ID, item["productId"])
	assert.Equal(t, "insufficient_stock", item["reason"])
	assert.EqualValues(t, 4, item["requestedQuantity"])
	assert.EqualValues(t, 2, item["availableStock"])
}

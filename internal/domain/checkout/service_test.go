package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/toybox-checkout/internal/domain/buyer"
	"github.com/xenking/toybox-checkout/internal/domain/cart"
	"github.com/xenking/toybox-checkout/internal/domain/catalog"
	"github.com/xenking/toybox-checkout/internal/domain/discount"
	"github.com/xenking/toybox-checkout/internal/domain/order"
)

// --- In-memory fakes ---
//
// fakeStore mimics the transactional store: every checkout works on a deep
// copy of the shared state and the copy replaces the state only when fn
// returns nil. The store mutex serializes transactions the way row locks do.

type fakeState struct {
	buyers      map[int64]buyer.Buyer
	products    map[int64]catalog.Product
	orders      map[int64]order.Order
	nextOrderID int64
}

func (s *fakeState) clone() *fakeState {
	c := &fakeState{
		buyers:      make(map[int64]buyer.Buyer, len(s.buyers)),
		products:    make(map[int64]catalog.Product, len(s.products)),
		orders:      make(map[int64]order.Order, len(s.orders)),
		nextOrderID: s.nextOrderID,
	}
	for k, v := range s.buyers {
		c.buyers[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	return c
}

type fakeStore struct {
	mu sync.Mutex
	st *fakeState
}

func (f *fakeStore) WithinTx(_ context.Context, fn func(tx Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	work := f.st.clone()
	if err := fn(&fakeTx{st: work}); err != nil {
		return err
	}
	f.st = work
	return nil
}

type fakeTx struct {
	st *fakeState
}

func (t *fakeTx) LockBuyer(_ context.Context, id int64) (*buyer.Buyer, error) {
	b, ok := t.st.buyers[id]
	if !ok {
		return nil, buyer.ErrNotFound
	}
	return &b, nil
}

func (t *fakeTx) LockProducts(_ context.Context, ids []int64) ([]catalog.Product, error) {
	out := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := t.st.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (t *fakeTx) DecrementStock(_ context.Context, productID int64, quantity int) error {
	p := t.st.products[productID]
	p.StockQuantity -= quantity
	t.st.products[productID] = p
	return nil
}

func (t *fakeTx) CreateOrder(_ context.Context, o *order.Order) error {
	t.st.nextOrderID++
	o.ID = t.st.nextOrderID
	o.CreatedAt = time.Now()
	t.st.orders[o.ID] = *o
	return nil
}

func (t *fakeTx) DebitBalance(_ context.Context, buyerID int64, amount decimal.Decimal) error {
	b := t.st.buyers[buyerID]
	b.Balance = b.Balance.Sub(amount)
	t.st.buyers[buyerID] = b
	return nil
}

type fakeOrderRepo struct {
	store *fakeStore
}

func (r *fakeOrderRepo) GetByID(_ context.Context, id int64) (*order.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	o, ok := r.store.st.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return &o, nil
}

func (r *fakeOrderRepo) ListByBuyer(_ context.Context, buyerID int64) ([]order.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []order.Order
	for _, o := range r.store.st.orders {
		if o.BuyerID == buyerID {
			out = append(out, o)
		}
	}
	return out, nil
}

type memCartStore struct {
	mu    sync.Mutex
	carts map[int64][]cart.Line
}

func newMemCartStore() *memCartStore {
	return &memCartStore{carts: make(map[int64][]cart.Line)}
}

func (m *memCartStore) Get(_ context.Context, buyerID int64) ([]cart.Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]cart.Line(nil), m.carts[buyerID]...), nil
}

func (m *memCartStore) Put(_ context.Context, buyerID int64, lines []cart.Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[buyerID] = append([]cart.Line(nil), lines...)
	return nil
}

func (m *memCartStore) Clear(_ context.Context, buyerID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, buyerID)
	return nil
}

type memIdemStore struct {
	mu     sync.Mutex
	orders map[string]int64
}

func newMemIdemStore() *memIdemStore {
	return &memIdemStore{orders: make(map[string]int64)}
}

func (m *memIdemStore) LastOrder(_ context.Context, sessionID string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.orders[sessionID]
	return id, ok, nil
}

func (m *memIdemStore) Record(_ context.Context, sessionID string, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[sessionID] = orderID
	return nil
}

type fixedResolver struct {
	percentage decimal.Decimal
	slug       string
}

func (r *fixedResolver) Resolve(_ context.Context, _ string, subtotal decimal.Decimal) (discount.Quote, error) {
	q := discount.Apply(r.percentage, subtotal)
	q.LocationSlug = r.slug
	return q, nil
}

// --- Fixture ---

type fixture struct {
	svc   *Service
	store *fakeStore
	carts *memCartStore
	idem  *memIdemStore
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newFixture(resolver discount.Resolver) *fixture {
	st := &fakeState{
		buyers: map[int64]buyer.Buyer{
			1: {ID: 1, Username: "alice", Balance: dec("500.00"), LocationSlug: "berlin"},
			2: {ID: 2, Username: "bob", Balance: dec("10.00")},
		},
		products: map[int64]catalog.Product{
			10: {ID: 10, Name: "Train Set", UnitPrice: dec("49.90"), StockQuantity: 5, IsActive: true},
			11: {ID: 11, Name: "Plush Dinosaur", UnitPrice: dec("19.99"), StockQuantity: 100, IsActive: true},
			12: {ID: 12, Name: "Retired Item", UnitPrice: dec("9.99"), StockQuantity: 3, IsActive: false},
		},
		orders: make(map[int64]order.Order),
	}
	store := &fakeStore{st: st}
	carts := newMemCartStore()
	idem := newMemIdemStore()
	if resolver == nil {
		resolver = &fixedResolver{percentage: decimal.Zero}
	}
	return &fixture{
		svc:   NewService(carts, &fakeOrderRepo{store: store}, resolver, store, idem),
		store: store,
		carts: carts,
		idem:  idem,
	}
}

func (f *fixture) fillCart(t *testing.T, buyerID int64, lines ...cart.Line) {
	t.Helper()
	require.NoError(t, f.carts.Put(context.Background(), buyerID, lines))
}

// --- Tests ---

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(nil)

	_, err := f.svc.Checkout(context.Background(), 1, "session-a")
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckout_Success(t *testing.T) {
	f := newFixture(&fixedResolver{percentage: dec("10"), slug: "berlin"})
	f.fillCart(t, 1,
		cart.Line{ProductID: 10, Quantity: 2, UnitPrice: dec("49.90")},
		cart.Line{ProductID: 11, Quantity: 1, UnitPrice: dec("19.99")},
	)

	res, err := f.svc.Checkout(context.Background(), 1, "session-a")
	require.NoError(t, err)
	require.NotNil(t, res.Order)
	assert.False(t, res.Resubmitted)

	o := res.Order
	assert.NotZero(t, o.ID)
	assert.True(t, dec("119.79").Equal(o.Subtotal), "subtotal: got %s", o.Subtotal)
	assert.True(t, dec("11.98").Equal(o.DiscountAmount), "discount: got %s", o.DiscountAmount)
	assert.True(t, dec("107.81").Equal(o.DiscountedTotal), "total: got %s", o.DiscountedTotal)
	assert.Equal(t, "berlin", o.DiscountLocation)
	assert.Equal(t, order.StatusCompleted, o.Status)
	require.Len(t, o.Lines, 2)

	// Stock decremented, balance debited, cart cleared, session recorded.
	assert.Equal(t, 3, f.store.st.products[10].StockQuantity)
	assert.Equal(t, 99, f.store.st.products[11].StockQuantity)
	assert.True(t, dec("392.19").Equal(f.store.st.buyers[1].Balance))

	lines, err := f.carts.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, lines)

	recorded, ok, err := f.idem.LastOrder(context.Background(), "session-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, o.ID, recorded)
}

func TestCheckout_ResubmissionReturnsSameOrder(t *testing.T) {
	f := newFixture(nil)
	f.fillCart(t, 1, cart.Line{ProductID: 11, Quantity: 1, UnitPrice: dec("19.99")})
	ctx := context.Background()

	first, err := f.svc.Checkout(ctx, 1, "session-a")
	require.NoError(t, err)

	// The cart is now empty; a duplicate submission must surface the same
	// order instead of ErrEmptyCart, and must not touch stock again.
	second, err := f.svc.Checkout(ctx, 1, "session-a")
	require.NoError(t, err)
	assert.True(t, second.Resubmitted)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, 99, f.store.st.products[11].StockQuantity)
}

func TestCheckout_PriceRecomputedUnderLock(t *testing.T) {
	f := newFixture(nil)
	// Cart snapshot carries a stale price; checkout must charge the current
	// catalog price.
	f.fillCart(t, 1, cart.Line{ProductID: 11, Quantity: 2, UnitPrice: dec("5.00")})

	res, err := f.svc.Checkout(context.Background(), 1, "session-a")
	require.NoError(t, err)
	assert.True(t, dec("39.98").Equal(res.Order.Subtotal), "got %s", res.Order.Subtotal)
}

func TestCheckout_MergesDuplicateLines(t *testing.T) {
	f := newFixture(nil)
	f.fillCart(t, 1,
		cart.Line{ProductID: 11, Quantity: 1, UnitPrice: dec("19.99")},
		cart.Line{ProductID: 11, Quantity: 2, UnitPrice: dec("19.99")},
	)

	res, err := f.svc.Checkout(context.Background(), 1, "session-a")
	require.NoError(t, err)
	require.Len(t, res.Order.Lines, 1)
	assert.Equal(t, 3, res.Order.Lines[0].Quantity)
	assert.Equal(t, 97, f.store.st.products[11].StockQuantity)
}

func TestCheckout_InactiveProductAborts(t *testing.T) {
	f := newFixture(nil)
	f.fillCart(t, 1,
		cart.Line{ProductID: 11, Quantity: 1, UnitPrice: dec("19.99")},
		cart.Line{ProductID: 12, Quantity: 1, UnitPrice: dec("9.99")},
	)

	_, err := f.svc.Checkout(context.Background(), 1, "session-a")
	var unavailable *catalog.UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, int64(12), unavailable.ProductID)

	// Nothing applied, cart intact.
	assert.Equal(t, 100, f.store.st.products[11].StockQuantity)
	lines, _ := f.carts.Get(context.Background(), 1)
	assert.Len(t, lines, 2)
}

func TestCheckout_InsufficientBalance(t *testing.T) {
	f := newFixture(nil)
	f.fillCart(t, 2, cart.Line{ProductID: 10, Quantity: 1, UnitPrice: dec("49.90")})

	_, err := f.svc.Checkout(context.Background(), 2, "session-b")
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	assert.Equal(t, 5, f.store.st.products[10].StockQuantity)
	assert.True(t, dec("10.00").Equal(f.store.st.buyers[2].Balance))
}

func TestCheckout_DiscountMakesOrderAffordable(t *testing.T) {
	// Bob has 10.00: one dinosaur at 19.99 is out of reach until a 60%
	// discount brings the total to 8.00.
	f := newFixture(&fixedResolver{percentage: dec("60"), slug: "outlet"})
	f.fillCart(t, 2, cart.Line{ProductID: 11, Quantity: 1, UnitPrice: dec("19.99")})

	res, err := f.svc.Checkout(context.Background(), 2, "session-b")
	require.NoError(t, err)
	assert.True(t, dec("8.00").Equal(res.Order.DiscountedTotal), "got %s", res.Order.DiscountedTotal)
	assert.True(t, dec("2.00").Equal(f.store.st.buyers[2].Balance))
}

func TestCheckout_InsufficientStockNoPartialApplication(t *testing.T) {
	f := newFixture(nil)
	f.fillCart(t, 1,
		cart.Line{ProductID: 11, Quantity: 1, UnitPrice: dec("19.99")},
		cart.Line{ProductID: 10, Quantity: 6, UnitPrice: dec("49.90")},
	)

	_, err := f.svc.Checkout(context.Background(), 1, "session-a")
	var stockErr *catalog.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(10), stockErr.ProductID)
	assert.Equal(t, 6, stockErr.Requested)
	assert.Equal(t, 5, stockErr.Available)

	// The affordable line must not have been applied either.
	assert.Equal(t, 100, f.store.st.products[11].StockQuantity)
	assert.True(t, dec("500.00").Equal(f.store.st.buyers[1].Balance))
}

func TestCheckout_BalanceCheckedBeforeStock(t *testing.T) {
	// Both balance and stock are insufficient; balance wins.
	f := newFixture(nil)
	f.fillCart(t, 2, cart.Line{ProductID: 10, Quantity: 6, UnitPrice: dec("49.90")})

	_, err := f.svc.Checkout(context.Background(), 2, "session-b")
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestCheckout_InvalidCartLine(t *testing.T) {
	f := newFixture(nil)
	f.fillCart(t, 1, cart.Line{ProductID: 11, Quantity: 0, UnitPrice: dec("19.99")})

	_, err := f.svc.Checkout(context.Background(), 1, "session-a")
	assert.ErrorIs(t, err, cart.ErrInvalidQuantity)
}

func TestCheckout_ConcurrentBuyersSingleUnit(t *testing.T) {
	f := newFixture(nil)
	st := f.store.st
	st.products[10] = catalog.Product{
		ID: 10, Name: "Last One", UnitPrice: dec("49.90"), StockQuantity: 1, IsActive: true,
	}
	f.fillCart(t, 1, cart.Line{ProductID: 10, Quantity: 1, UnitPrice: dec("49.90")})
	f.fillCart(t, 2, cart.Line{ProductID: 10, Quantity: 1, UnitPrice: dec("49.90")})
	st.buyers[2] = buyer.Buyer{ID: 2, Username: "bob", Balance: dec("100.00")}

	results := make([]error, 2)
	g, ctx := errgroup.WithContext(context.Background())
	for i, buyerID := range []int64{1, 2} {
		i, buyerID := i, buyerID
		g.Go(func() error {
			_, err := f.svc.Checkout(ctx, buyerID, "session-"+string(rune('a'+i)))
			results[i] = err
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var won, lost int
	for _, err := range results {
		if err == nil {
			won++
			continue
		}
		var stockErr *catalog.InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		lost++
	}
	assert.Equal(t, 1, won, "exactly one buyer gets the last unit")
	assert.Equal(t, 1, lost)
	assert.Equal(t, 0, f.store.st.products[10].StockQuantity, "stock must not go negative")
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cafe-inventory/server/internal/services"
	"github.com/cafe-inventory/server/internal/store"
	"github.com/cafe-inventory/server/internal/views"
	"github.com/cafe-inventory/server/types"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-session-secret"

type fakeProducts struct {
	mu       sync.Mutex
	products map[int]types.Product
	nextID   int
}

func newFakeProducts(products ...types.Product) *fakeProducts {
	f := &fakeProducts{products: map[int]types.Product{}, nextID: 1}
	for _, p := range products {
		f.products[p.ID] = p
		if p.ID >= f.nextID {
			f.nextID = p.ID + 1
		}
	}
	return f
}

func (f *fakeProducts) List(ctx context.Context) ([]types.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Product, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeProducts) Get(ctx context.Context, id int) (types.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return types.Product{}, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeProducts) Create(ctx context.Context, product types.Product) (types.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	product.ID = f.nextID
	f.nextID++
	f.products[product.ID] = product
	return product, nil
}

func (f *fakeProducts) Update(ctx context.Context, product types.Product) (types.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[product.ID]; !ok {
		return types.Product{}, store.ErrNotFound
	}
	f.products[product.ID] = product
	return product, nil
}

func (f *fakeProducts) Delete(ctx context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.products, id)
	return nil
}

// fakeInventory applies transactions in memory with the same rules as the
// database-backed service.
type fakeInventory struct {
	mu       sync.Mutex
	products *fakeProducts
	stock    map[int]int
	logs     []types.InventoryLog
	requests []types.TransactionRequest
	deleted  []int
}

func newFakeInventory(products *fakeProducts) *fakeInventory {
	return &fakeInventory{products: products, stock: map[int]int{}}
}

func (f *fakeInventory) Record(ctx context.Context, req types.TransactionRequest) (types.TransactionResult, error) {
	if _, err := f.products.Get(ctx, req.ProductID); err != nil {
		return types.TransactionResult{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	current, exists := f.stock[req.ProductID]
	adj := services.NextQuantity(current, exists, req.Action, req.Change)
	result := types.TransactionResult{Clamped: adj.Clamped, NoOp: adj.NoOp, Created: !exists && !adj.NoOp}
	if !adj.NoOp {
		f.stock[req.ProductID] = adj.Quantity
		result.Stock = &types.Stock{ProductID: req.ProductID, Quantity: adj.Quantity}
	}
	entry := types.InventoryLog{
		ID:        len(f.logs) + 1,
		ProductID: req.ProductID,
		UserID:    req.ActorID,
		Change:    req.Change,
		Action:    req.Action,
		Timestamp: time.Now(),
		Notes:     req.Notes,
	}
	f.logs = append(f.logs, entry)
	result.Log = entry
	return result, nil
}

func (f *fakeInventory) ListStock(ctx context.Context) ([]types.StockLevel, error) {
	products, _ := f.products.List(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	levels := make([]types.StockLevel, 0, len(products))
	for _, p := range products {
		levels = append(levels, types.StockLevel{ProductID: p.ID, ProductName: p.Name, Quantity: f.stock[p.ID]})
	}
	return levels, nil
}

func (f *fakeInventory) ListHistory(ctx context.Context) ([]types.HistoryEntry, error) {
	f.mu.Lock()
	logs := append([]types.InventoryLog(nil), f.logs...)
	f.mu.Unlock()
	entries := make([]types.HistoryEntry, 0, len(logs))
	for i := len(logs) - 1; i >= 0; i-- {
		p, err := f.products.Get(ctx, logs[i].ProductID)
		if err != nil {
			continue
		}
		entries = append(entries, types.HistoryEntry{InventoryLog: logs[i], ProductName: p.Name})
	}
	return entries, nil
}

func (f *fakeInventory) GetLog(ctx context.Context, id int) (types.InventoryLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.logs {
		if l.ID == id {
			return l, nil
		}
	}
	return types.InventoryLog{}, store.ErrNotFound
}

func (f *fakeInventory) UpdateLog(ctx context.Context, entry types.InventoryLog) (types.InventoryLog, error) {
	if _, err := f.products.Get(ctx, entry.ProductID); err != nil {
		return types.InventoryLog{}, &services.ValidationError{Field: "product_id", Message: "product does not exist"}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, l := range f.logs {
		if l.ID == entry.ID {
			entry.UserID = l.UserID
			entry.Timestamp = l.Timestamp
			f.logs[i] = entry
			return entry, nil
		}
	}
	return types.InventoryLog{}, store.ErrNotFound
}

func (f *fakeInventory) DeleteLog(ctx context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, l := range f.logs {
		if l.ID == id {
			f.logs = append(f.logs[:i], f.logs[i+1:]...)
			f.deleted = append(f.deleted, id)
			return nil
		}
	}
	return store.ErrNotFound
}

type fakeUsers struct {
	users map[string]types.User
	err   error
}

func (f *fakeUsers) Register(ctx context.Context, username, password string, role types.Role) (types.User, error) {
	if f.err != nil {
		return types.User{}, f.err
	}
	if _, ok := f.users[username]; ok {
		return types.User{}, store.ErrConflict
	}
	u := types.User{ID: len(f.users) + 1, Username: username, PasswordHash: password, Role: role}
	f.users[username] = u
	return u, nil
}

func (f *fakeUsers) Authenticate(ctx context.Context, username, password string) (types.User, error) {
	u, ok := f.users[username]
	if !ok || u.PasswordHash != password {
		return types.User{}, services.ErrInvalidCredentials
	}
	return u, nil
}

type testApp struct {
	router    http.Handler
	sessions  *Sessions
	users     *fakeUsers
	products  *fakeProducts
	inventory *fakeInventory
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	logger := zap.NewNop()
	renderer, err := views.New(logger)
	require.NoError(t, err)

	app := &testApp{
		sessions: NewSessions(testSecret, time.Hour, false),
		users:    &fakeUsers{users: map[string]types.User{}},
		products: newFakeProducts(types.Product{ID: 1, Name: "Latte", UnitPrice: 480}),
	}
	app.inventory = newFakeInventory(app.products)

	r := chi.NewRouter()
	r.Use(app.sessions.Middleware)
	Routes(r,
		NewHomeHandler(renderer, logger),
		NewAuthHandler(app.users, app.sessions, renderer, logger),
		NewProductHandler(app.products, renderer, logger),
		NewInventoryHandler(app.inventory, app.products, renderer, logger),
	)
	app.router = r
	return app
}

func (a *testApp) cookie(t *testing.T, id int, role types.Role) *http.Cookie {
	t.Helper()
	token, err := a.sessions.issue(SessionUser{ID: id, Username: "user", Role: role})
	require.NoError(t, err)
	return &http.Cookie{Name: sessionCookieName, Value: token}
}

func (a *testApp) do(method, target string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func flashFrom(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == flashCookieName && c.MaxAge > 0 {
			msg, err := url.QueryUnescape(c.Value)
			require.NoError(t, err)
			return msg
		}
	}
	return ""
}

func TestRoutesHaveAPolicy(t *testing.T) {
	app := newTestApp(t)
	router := app.router.(chi.Routes)

	seen := 0
	err := chi.Walk(router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if _, ok := RoutePolicy[method+" "+route]; !ok {
			return errors.New("missing policy for " + method + " " + route)
		}
		seen++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, len(RoutePolicy), seen)
}

func TestMemberRoutesRedirectAnonymousToLogin(t *testing.T) {
	app := newTestApp(t)

	for _, target := range []string{"/transaction", "/product/add", "/product/edit/1"} {
		rec := app.do(http.MethodGet, target, nil)
		assert.Equal(t, http.StatusSeeOther, rec.Code, target)
		assert.Equal(t, "/login", rec.Header().Get("Location"), target)
		assert.Equal(t, "Please log in to continue.", flashFrom(t, rec), target)
	}

	rec := app.do(http.MethodPost, "/transaction", url.Values{"product_id": {"1"}, "action": {"receive"}, "change": {"5"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Empty(t, app.inventory.requests)
}

func TestAdminRoutesRejectMembers(t *testing.T) {
	app := newTestApp(t)
	member := app.cookie(t, 2, types.RoleMember)
	_, err := app.inventory.Record(context.Background(), types.TransactionRequest{ProductID: 1, Action: types.ActionReceive, Change: 3, ActorID: 2})
	require.NoError(t, err)

	rec := app.do(http.MethodPost, "/transaction_history/delete/1", url.Values{}, member)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, "Admin access required.", flashFrom(t, rec))
	assert.Empty(t, app.inventory.deleted)

	rec = app.do(http.MethodPost, "/transaction_history/delete/1", url.Values{}, app.cookie(t, 1, types.RoleAdmin))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/transaction_history", rec.Header().Get("Location"))
	assert.Equal(t, []int{1}, app.inventory.deleted)
}

func TestPublicPagesRenderForAnonymous(t *testing.T) {
	app := newTestApp(t)
	for _, target := range []string{"/", "/products", "/stock", "/transaction_history", "/login", "/register"} {
		rec := app.do(http.MethodGet, target, nil)
		assert.Equal(t, http.StatusOK, rec.Code, target)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html", target)
	}
}

func TestRecordTransactionUsesSessionActor(t *testing.T) {
	app := newTestApp(t)
	form := url.Values{
		"product_id": {"1"},
		"action":     {"入庫"},
		"change":     {"10"},
		"user_id":    {"99"},
	}

	rec := app.do(http.MethodPost, "/transaction", form, app.cookie(t, 7, types.RoleMember))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/transaction", rec.Header().Get("Location"))
	assert.Contains(t, flashFrom(t, rec), "Stock is now 10")

	require.Len(t, app.inventory.requests, 1)
	assert.Equal(t, 7, app.inventory.requests[0].ActorID)
	assert.Equal(t, types.ActionReceive, app.inventory.requests[0].Action)
}

func TestRecordTransactionRejectsBadInput(t *testing.T) {
	app := newTestApp(t)
	member := app.cookie(t, 2, types.RoleMember)

	cases := []struct {
		name string
		form url.Values
		want string
	}{
		{"negative change", url.Values{"product_id": {"1"}, "action": {"issue"}, "change": {"-3"}}, "change: must not be negative"},
		{"non numeric change", url.Values{"product_id": {"1"}, "action": {"issue"}, "change": {"abc"}}, "change: must be a whole number"},
		{"change above column range", url.Values{"product_id": {"1"}, "action": {"receive"}, "change": {"3000000000"}}, "change: must be at most 2147483647"},
		{"unknown action", url.Values{"product_id": {"1"}, "action": {"transfer"}, "change": {"1"}}, "action:"},
		{"unknown product", url.Values{"product_id": {"42"}, "action": {"receive"}, "change": {"1"}}, "product does not exist"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := app.do(http.MethodPost, "/transaction", tc.form, member)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.want)
		})
	}
	assert.Empty(t, app.inventory.logs)
}

func TestReceiveThenOverIssueClampsToZero(t *testing.T) {
	app := newTestApp(t)
	member := app.cookie(t, 3, types.RoleMember)

	rec := app.do(http.MethodPost, "/transaction", url.Values{"product_id": {"1"}, "action": {"receive"}, "change": {"10"}}, member)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = app.do(http.MethodPost, "/transaction", url.Values{"product_id": {"1"}, "action": {"issue"}, "change": {"15"}}, member)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, flashFrom(t, rec), "clamped to 0")

	rec = app.do(http.MethodGet, "/stock", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, app.inventory.stock[1])
	assert.Contains(t, rec.Body.String(), "<td>0</td>")

	history, err := app.inventory.ListHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, types.ActionIssue, history[0].Action)
	assert.Equal(t, 15, history[0].Change)
	assert.Equal(t, types.ActionReceive, history[1].Action)
	assert.Equal(t, 10, history[1].Change)
}

func TestIssueWithoutStockIsNoOp(t *testing.T) {
	app := newTestApp(t)
	rec := app.do(http.MethodPost, "/transaction", url.Values{"product_id": {"1"}, "action": {"issue"}, "change": {"4"}}, app.cookie(t, 3, types.RoleMember))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, flashFrom(t, rec), "stock is unchanged")
	_, exists := app.inventory.stock[1]
	assert.False(t, exists)
	assert.Len(t, app.inventory.logs, 1)
}

func TestFlashIsShownOnceAfterRedirect(t *testing.T) {
	app := newTestApp(t)
	flash := &http.Cookie{Name: flashCookieName, Value: url.QueryEscape("Added Scone.")}

	rec := app.do(http.MethodGet, "/products", nil, flash)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Added Scone.")

	var expired bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == flashCookieName && c.MaxAge < 0 {
			expired = true
		}
	}
	assert.True(t, expired)
}

func TestProductLifecycle(t *testing.T) {
	app := newTestApp(t)
	member := app.cookie(t, 2, types.RoleMember)

	rec := app.do(http.MethodPost, "/product/add", url.Values{"name": {"  Scone "}, "unit_price": {"350"}, "category": {"food"}}, member)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/products", rec.Header().Get("Location"))

	p, err := app.products.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "Scone", p.Name)
	assert.EqualValues(t, 350, p.UnitPrice)

	rec = app.do(http.MethodGet, "/product/edit/2", nil, member)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="Scone"`)

	rec = app.do(http.MethodPost, "/product/edit/2", url.Values{"name": {"Scone"}, "unit_price": {"-1"}}, member)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unit_price: must not be negative")

	rec = app.do(http.MethodPost, "/product/delete/2", url.Values{}, member)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	_, err = app.products.Get(context.Background(), 2)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUnknownIDsAreNotFound(t *testing.T) {
	app := newTestApp(t)
	member := app.cookie(t, 2, types.RoleMember)
	admin := app.cookie(t, 1, types.RoleAdmin)

	assert.Equal(t, http.StatusNotFound, app.do(http.MethodGet, "/product/edit/99", nil, member).Code)
	assert.Equal(t, http.StatusNotFound, app.do(http.MethodGet, "/product/edit/abc", nil, member).Code)
	assert.Equal(t, http.StatusNotFound, app.do(http.MethodPost, "/product/delete/99", url.Values{}, member).Code)
	assert.Equal(t, http.StatusNotFound, app.do(http.MethodGet, "/transaction_history/edit/99", nil, admin).Code)
	assert.Equal(t, http.StatusNotFound, app.do(http.MethodPost, "/transaction_history/delete/99", url.Values{}, admin).Code)
}

func TestEditHistoryKeepsStock(t *testing.T) {
	app := newTestApp(t)
	admin := app.cookie(t, 1, types.RoleAdmin)
	_, err := app.inventory.Record(context.Background(), types.TransactionRequest{ProductID: 1, Action: types.ActionReceive, Change: 10, ActorID: 1})
	require.NoError(t, err)

	rec := app.do(http.MethodGet, "/transaction_history/edit/1", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "does not change the current stock")

	rec = app.do(http.MethodPost, "/transaction_history/edit/1", url.Values{"product_id": {"1"}, "action": {"receive"}, "change": {"4"}, "notes": {"miscount"}}, admin)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	entry, err := app.inventory.GetLog(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 4, entry.Change)
	assert.Equal(t, "miscount", entry.Notes)
	assert.Equal(t, 10, app.inventory.stock[1])

	rec = app.do(http.MethodPost, "/transaction_history/edit/1", url.Values{"product_id": {"8"}, "action": {"receive"}, "change": {"4"}}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "product does not exist")
}

func TestRegisterAndLogin(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodPost, "/register", url.Values{"username": {"alice"}, "password": {"pw"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Equal(t, types.RoleMember, app.users.users["alice"].Role)

	rec = app.do(http.MethodPost, "/register", url.Values{"username": {"alice"}, "password": {"pw"}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(http.MethodPost, "/login", url.Values{"username": {"alice"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid username or password")

	rec = app.do(http.MethodPost, "/login", url.Values{"username": {"alice"}, "password": {"pw"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	user, err := app.sessions.parse(session.Value)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, types.RoleMember, user.Role)

	rec = app.do(http.MethodGet, "/transaction", nil, session)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(http.MethodGet, "/logout", nil, session)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			assert.Negative(t, c.MaxAge)
		}
	}
}

func TestRegisterValidationFailure(t *testing.T) {
	app := newTestApp(t)
	app.users.err = &services.ValidationError{Field: "username", Message: "is required"}

	rec := app.do(http.MethodPost, "/register", url.Values{"username": {""}, "password": {"pw"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "username: is required")
}

func TestSessionRejectsTamperedAndExpiredTokens(t *testing.T) {
	sessions := NewSessions(testSecret, time.Hour, false)
	token, err := sessions.issue(SessionUser{ID: 5, Username: "bob", Role: types.RoleAdmin})
	require.NoError(t, err)

	_, err = NewSessions("other-secret", time.Hour, false).parse(token)
	assert.Error(t, err)

	sessions.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = sessions.parse(token)
	assert.Error(t, err)

	var reached bool
	handler := sessions.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, reached = CurrentUser(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.False(t, reached)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	Healthz(pingFunc(func(context.Context) error { return nil }))(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	Healthz(pingFunc(func(context.Context) error { return errors.New("down") }))(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

package cart

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/NovaByteCorp/deliverypro/internal/cache"
	"github.com/NovaByteCorp/deliverypro/internal/clientstate"
	"github.com/NovaByteCorp/deliverypro/internal/config"
	"github.com/NovaByteCorp/deliverypro/internal/entity"
	"github.com/NovaByteCorp/deliverypro/internal/presentation/http/request"
	"github.com/NovaByteCorp/deliverypro/internal/session"
)

const secret = "test-secret"

func newTestServer(t *testing.T) (*echo.Echo, *clientstate.Store) {
	t.Helper()
	store := clientstate.New(clientstate.Params{
		Cache:  cache.NewMemoryStore(0),
		Events: clientstate.NewBroadcaster(),
		Config: config.Config{Cache: config.Cache{Driver: "memory", SessionTTL: time.Hour}},
		Logger: zap.NewNop(),
	})
	auth := session.NewAuthenticator(session.Params{
		Config:    config.Config{Auth: config.Auth{JWTSecret: secret}},
		Overrides: store,
	})

	e := echo.New()
	e.Validator = request.NewValidator()
	Register(e, NewHandler(store, zap.NewNop()), auth)
	return e, store
}

func tokenFor(t *testing.T, id string, role entity.Role) string {
	t.Helper()
	tok, err := session.IssueToken(&entity.User{ID: id, UserType: role}, secret, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	return tok
}

func call(t *testing.T, e *echo.Echo, method, path, token, body string, headers ...string) (int, json.RawMessage) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return rec.Code, env.Data
}

type cartBody struct {
	Items    []clientstate.CartItem `json:"items"`
	Count    int                    `json:"count"`
	Subtotal decimal.Decimal        `json:"subtotal"`
}

func decodeCart(t *testing.T, raw json.RawMessage) cartBody {
	t.Helper()
	var out cartBody
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode cart: %v", err)
	}
	return out
}

func TestHandler_CartFlow(t *testing.T) {
	e, _ := newTestServer(t)
	token := tokenFor(t, "c1", entity.RoleCustomer)

	status, data := call(t, e, http.MethodGet, "/cart", token, "")
	if status != http.StatusOK || decodeCart(t, data).Count != 0 {
		t.Fatalf("empty cart: status = %d, data = %s", status, data)
	}

	burger := `{"id":"p1","name":"X-Burger","price":"25.00","quantity":1,"restaurant_id":"r1"}`
	call(t, e, http.MethodPost, "/cart/items", token, burger)
	status, data = call(t, e, http.MethodPost, "/cart/items", token, burger)
	if status != http.StatusOK {
		t.Fatalf("add: status = %d (%s)", status, data)
	}
	got := decodeCart(t, data)
	if len(got.Items) != 1 || got.Count != 2 || got.Subtotal.StringFixed(2) != "50.00" {
		t.Fatalf("merged cart = %+v", got)
	}

	key := got.Items[0].Key()
	status, data = call(t, e, http.MethodPatch, "/cart/items/"+key, token, `{"quantity":0}`)
	if status != http.StatusOK || decodeCart(t, data).Count != 1 {
		t.Fatalf("floor quantity: status = %d, data = %s", status, data)
	}

	status, _ = call(t, e, http.MethodPatch, "/cart/items/missing", token, `{"quantity":3}`)
	if status != http.StatusNotFound {
		t.Errorf("missing line status = %d", status)
	}

	status, _ = call(t, e, http.MethodPost, "/cart/items", token, `{"id":"p2","quantity":120}`)
	if status != http.StatusBadRequest {
		t.Errorf("invalid quantity status = %d", status)
	}

	status, data = call(t, e, http.MethodDelete, "/cart/items/"+key, token, "")
	if status != http.StatusOK || len(decodeCart(t, data).Items) != 0 {
		t.Fatalf("remove: status = %d, data = %s", status, data)
	}

	call(t, e, http.MethodPost, "/cart/items", token, burger)
	status, data = call(t, e, http.MethodDelete, "/cart", token, "")
	if status != http.StatusOK || decodeCart(t, data).Count != 0 {
		t.Fatalf("clear: status = %d, data = %s", status, data)
	}

	status, _ = call(t, e, http.MethodGet, "/cart", tokenFor(t, "d1", entity.RoleDriver), "")
	if status != http.StatusForbidden {
		t.Errorf("driver cart status = %d", status)
	}
}

func TestHandler_Favorites(t *testing.T) {
	e, _ := newTestServer(t)
	token := tokenFor(t, "c1", entity.RoleCustomer)

	tests := []struct {
		body       string
		wantStatus int
		wantFav    bool
	}{
		{body: `{"kind":"product","id":"p1"}`, wantStatus: http.StatusOK, wantFav: true},
		{body: `{"kind":"restaurant","id":"r1"}`, wantStatus: http.StatusOK, wantFav: true},
		{body: `{"kind":"product","id":"p1"}`, wantStatus: http.StatusOK, wantFav: false},
		{body: `{"kind":"combo","id":"x"}`, wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		status, data := call(t, e, http.MethodPost, "/favorites/toggle", token, tt.body)
		if status != tt.wantStatus {
			t.Fatalf("%s: status = %d", tt.body, status)
		}
		if status != http.StatusOK {
			continue
		}
		var res struct {
			Favorite bool `json:"favorite"`
		}
		_ = json.Unmarshal(data, &res)
		if res.Favorite != tt.wantFav {
			t.Errorf("%s: favorite = %v", tt.body, res.Favorite)
		}
	}

	_, data := call(t, e, http.MethodGet, "/favorites", token, "")
	var favs struct {
		Products    []string `json:"products"`
		Restaurants []string `json:"restaurants"`
	}
	if err := json.Unmarshal(data, &favs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(favs.Products) != 0 || len(favs.Restaurants) != 1 || favs.Restaurants[0] != "r1" {
		t.Errorf("favorites = %+v", favs)
	}
}

func TestHandler_SimulatedRole(t *testing.T) {
	e, _ := newTestServer(t)
	admin := tokenFor(t, "a1", entity.RoleAdmin)

	status, _ := call(t, e, http.MethodPut, "/session/role", tokenFor(t, "c1", entity.RoleCustomer), `{"role":"admin"}`)
	if status != http.StatusForbidden {
		t.Fatalf("customer status = %d", status)
	}

	status, _ = call(t, e, http.MethodPut, "/session/role", admin, `{"role":"entregador"}`)
	if status != http.StatusOK {
		t.Fatalf("admin status = %d", status)
	}

	// The stored role now applies, so cart routes refuse the admin.
	status, _ = call(t, e, http.MethodGet, "/cart", admin, "")
	if status != http.StatusForbidden {
		t.Errorf("simulating driver cart status = %d", status)
	}

	status, _ = call(t, e, http.MethodPut, "/session/role", admin, `{"role":""}`)
	if status != http.StatusOK {
		t.Fatalf("clear status = %d", status)
	}
	status, _ = call(t, e, http.MethodGet, "/cart", admin, "")
	if status != http.StatusOK {
		t.Errorf("admin cart status = %d", status)
	}

	status, _ = call(t, e, http.MethodPut, "/session/role", admin, `{"role":"chef"}`)
	if status != http.StatusBadRequest {
		t.Errorf("unknown role status = %d", status)
	}
}

func TestHandler_Stream(t *testing.T) {
	e, store := newTestServer(t)
	srv := httptest.NewServer(e)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/cart/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tokenFor(t, "c1", entity.RoleCustomer))
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer res.Body.Close()
	if ct := res.Header.Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	reader := bufio.NewReader(res.Body)
	line, err := reader.ReadString('\n')
	if err != nil || !strings.HasPrefix(line, "retry:") {
		t.Fatalf("first line = %q, err = %v", line, err)
	}

	// Another session's change must not reach c1.
	if _, err := store.ToggleFavorite(ctx, "c2", clientstate.FavoriteProducts, "p1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.AddToCart(ctx, "c1", clientstate.CartItem{ID: "p1", Quantity: 1}); err != nil {
		t.Fatal(err)
	}

	var event, data string
	for event == "" || data == "" {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
	if event != string(clientstate.EventCartUpdate) {
		t.Errorf("event = %q", event)
	}
	if !strings.Contains(data, `"key":"cart"`) {
		t.Errorf("data = %s", data)
	}
}

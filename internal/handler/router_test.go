package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"itemsim/internal/config"
	"itemsim/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
}

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) *testServer {
	t.Helper()
	cfg := testutil.Config()
	cfg.RateLimit.RequestsPerSecond = 0
	if mutate != nil {
		mutate(cfg)
	}
	return &testServer{
		t:      t,
		router: SetupRouter(testutil.NewDB(t), nil, cfg, zap.NewNop()),
	}
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decode(t, w, &body)
	return body["error"]
}

// signup registers username and returns a token for it.
func (s *testServer) signup(username string) string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/auth/signup", "", gin.H{
		"username": username, "password": "secret1", "confirmPassword": "secret1",
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": username, "password": "secret1"})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var login LoginResponse
	decode(s.t, w, &login)
	return login.Token
}

func (s *testServer) createCharacter(token, name string) int64 {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/characters", token, gin.H{"name": name})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	var created CreateCharacterResponse
	decode(s.t, w, &created)
	return created.CharacterID
}

func TestSignupAndLogin(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodPost, "/api/auth/signup", "", gin.H{
		"username": "abc123", "password": "secret1", "confirmPassword": "secret1",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created SignupResponse
	decode(t, w, &created)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "abc123", created.Username)
	assert.NotContains(t, w.Body.String(), "secret1")

	w = s.do(http.MethodPost, "/api/auth/signup", "", gin.H{
		"username": "abc123", "password": "secret1", "confirmPassword": "secret1",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Username already taken", errorOf(t, w))

	w = s.do(http.MethodPost, "/api/auth/signup", "", gin.H{
		"username": "ABC", "password": "secret1", "confirmPassword": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/auth/signup", "", gin.H{
		"username": strings.Repeat("a", 65), "password": "secret1", "confirmPassword": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorOf(t, w), "username")

	w = s.do(http.MethodPost, "/api/auth/signup", "", gin.H{"username": "abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorOf(t, w), "password")

	w = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "abc123", "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	var login LoginResponse
	decode(t, w, &login)
	assert.NotEmpty(t, login.Token)

	w = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "abc123", "password": "nope"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "ghost", "password": "secret1"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRequestBodiesAreStrict(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "a", "password": "b", "admin": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorOf(t, w), "admin")

	w = s.do(http.MethodPost, "/api/auth/login", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Check your input data", errorOf(t, w))
}

func TestAuthErrors(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodPost, "/api/characters", "", gin.H{"name": "hero"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Token not found", errorOf(t, w))

	req := httptest.NewRequest(http.MethodPost, "/api/characters", bytes.NewReader([]byte(`{"name":"hero"}`)))
	req.Header.Set("Authorization", "Basic abc")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	w = s.do(http.MethodPost, "/api/characters", "forged.token.value", gin.H{"name": "hero"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCharacterLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	owner := s.signup("owner")
	other := s.signup("other")

	id := s.createCharacter(owner, "hero")
	path := fmt.Sprintf("/api/characters/%d", id)

	w := s.do(http.MethodPost, "/api/characters", other, gin.H{"name": "hero"})
	assert.Equal(t, http.StatusConflict, w.Code)

	var view map[string]interface{}
	w = s.do(http.MethodGet, path, owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &view)
	assert.Equal(t, float64(10000), view["money"])
	assert.Equal(t, float64(500), view["health"])
	assert.Equal(t, float64(100), view["power"])

	for _, token := range []string{"", other, "broken"} {
		view = nil
		w = s.do(http.MethodGet, path, token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		decode(t, w, &view)
		assert.NotContains(t, view, "money")
		assert.Equal(t, "hero", view["name"])
	}

	w = s.do(http.MethodGet, "/api/characters/999", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Character not found", errorOf(t, w))

	w = s.do(http.MethodGet, "/api/characters/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, path+"/mining", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mined MiningResponse
	decode(t, w, &mined)
	assert.Equal(t, int64(10100), mined.Money)

	w = s.do(http.MethodPost, path+"/mining", other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, path+"/ledger", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var ledger struct {
		Total int64 `json:"total"`
	}
	decode(t, w, &ledger)
	assert.Equal(t, int64(1), ledger.Total)

	for _, query := range []string{"?page=abc", "?page=0", "?pageSize=-5", "?pageSize=x"} {
		w = s.do(http.MethodGet, path+"/ledger"+query, owner, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, query)
	}
	w = s.do(http.MethodGet, path+"/ledger?page=1&pageSize=500", owner, nil)
	assert.Equal(t, http.StatusOK, w.Code, "oversized pages are clamped")

	w = s.do(http.MethodDelete, path, other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodDelete, path, owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Character deleted successfully"}`, w.Body.String())

	w = s.do(http.MethodGet, path, owner, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(http.MethodDelete, path, owner, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTradingAndEquipment(t *testing.T) {
	s := newTestServer(t, nil)
	owner := s.signup("owner")
	other := s.signup("other")
	id := s.createCharacter(owner, "hero")
	charPath := fmt.Sprintf("/api/characters/%d", id)
	itemPath := fmt.Sprintf("/api/items/%d", id)

	w := s.do(http.MethodPost, "/api/items", "", gin.H{
		"itemCode": 1, "itemName": "sword", "itemStat": gin.H{"attack": 10, "defense": 5}, "itemPrice": 500,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/items", owner, gin.H{
		"itemCode": 1, "itemName": "sword", "itemStat": gin.H{"attack": 10, "defense": 5}, "itemPrice": 500,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.JSONEq(t, `{"itemCode":1,"itemName":"sword","itemStat":{"attack":10,"defense":5},"itemPrice":500}`, w.Body.String())

	w = s.do(http.MethodPost, itemPath+"/purchase", owner, gin.H{
		"itemsToPurchase": []gin.H{{"itemCode": 1, "count": 3}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"message":"Items purchased successfully"}`, w.Body.String())

	w = s.do(http.MethodPost, itemPath+"/purchase", owner, gin.H{
		"itemsToPurchase": []gin.H{{"itemCode": 1, "count": 100}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Not enough money", errorOf(t, w))

	w = s.do(http.MethodPost, itemPath+"/purchase", owner, gin.H{
		"itemsToPurchase": []gin.H{{"itemCode": 9, "count": 1}},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, itemPath+"/purchase", owner, gin.H{"itemsToPurchase": []gin.H{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, itemPath+"/purchase", other, gin.H{
		"itemsToPurchase": []gin.H{{"itemCode": 1, "count": 1}},
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Unauthorized or Character not found", errorOf(t, w))

	w = s.do(http.MethodGet, charPath+"/getinv", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"itemCode":1,"itemName":"sword","count":3}]`, w.Body.String())

	w = s.do(http.MethodGet, charPath+"/getinv", other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, charPath+"/equip", owner, gin.H{"itemCode": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"message":"Item equipped successfully"}`, w.Body.String())

	w = s.do(http.MethodGet, charPath+"/getequip", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"itemCode":1,"itemName":"sword"}]`, w.Body.String())

	var view map[string]interface{}
	w = s.do(http.MethodGet, charPath, owner, nil)
	decode(t, w, &view)
	assert.Equal(t, float64(110), view["power"])
	assert.Equal(t, float64(505), view["health"])
	assert.Equal(t, float64(8500), view["money"])

	w = s.do(http.MethodPost, itemPath+"/sell", owner, gin.H{
		"itemsToSell": []gin.H{{"itemCode": 1, "count": 3}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, "one unit is equipped")

	w = s.do(http.MethodPost, charPath+"/unequip", owner, gin.H{"itemCode": 1})
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodPost, charPath+"/unequip", owner, gin.H{"itemCode": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, itemPath+"/sell", owner, gin.H{
		"itemsToSell": []gin.H{{"itemCode": 1, "count": 3}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"message":"Items sold successfully"}`, w.Body.String())

	view = nil
	w = s.do(http.MethodGet, charPath, owner, nil)
	decode(t, w, &view)
	assert.Equal(t, float64(9400), view["money"])
	assert.Equal(t, float64(100), view["power"])

	w = s.do(http.MethodGet, charPath+"/getinv", owner, nil)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestItemCatalogRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.signup("owner")

	for code, name := range map[int]string{2: "shield", 1: "sword"} {
		w := s.do(http.MethodPost, "/api/items", token, gin.H{
			"itemCode": code, "itemName": name, "itemStat": gin.H{}, "itemPrice": code * 100,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := s.do(http.MethodPost, "/api/items", token, gin.H{
		"itemCode": 1, "itemName": "dup", "itemStat": gin.H{}, "itemPrice": 1,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodPost, "/api/items", token, gin.H{"itemCode": 3, "itemName": "no price", "itemStat": gin.H{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/api/items", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[
		{"itemCode":1,"itemName":"sword","itemPrice":100},
		{"itemCode":2,"itemName":"shield","itemPrice":200}
	]`, w.Body.String())

	w = s.do(http.MethodPatch, "/api/items/1", token, gin.H{"itemName": "blade", "itemStat": gin.H{"attack": 3}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"itemCode":1,"itemName":"blade","itemStat":{"attack":3},"itemPrice":100}`, w.Body.String())

	w = s.do(http.MethodPatch, "/api/items/1", token, gin.H{"itemPrice": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code, "price is not editable")

	w = s.do(http.MethodPatch, "/api/items/77", token, gin.H{"itemName": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/items/1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"blade"`)

	w = s.do(http.MethodGet, "/api/items/77", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Item not found", errorOf(t, w))
}

func TestCatalogAdminsOnly(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Auth.CatalogAdmins = []string{"admin"}
	})
	admin := s.signup("admin")
	player := s.signup("player")

	body := gin.H{"itemCode": 1, "itemName": "sword", "itemStat": gin.H{}, "itemPrice": 1}
	w := s.do(http.MethodPost, "/api/items", player, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/items", admin, body)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = s.do(http.MethodPatch, "/api/items/1", player, gin.H{"itemName": "x"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRankRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.signup("owner")
	first := s.createCharacter(token, "first")
	s.createCharacter(token, "second")

	w := s.do(http.MethodPost, "/api/items", token, gin.H{
		"itemCode": 1, "itemName": "sword", "itemStat": gin.H{"attack": 10}, "itemPrice": 1,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	w = s.do(http.MethodPost, fmt.Sprintf("/api/items/%d/purchase", first), token, gin.H{
		"itemsToPurchase": []gin.H{{"itemCode": 1, "count": 2}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(http.MethodPost, fmt.Sprintf("/api/characters/%d/equip", first), token, gin.H{"itemCode": 1})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/rank/pow", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"name":"first","power":110},{"name":"second","power":100}]`, w.Body.String())

	w = s.do(http.MethodGet, "/api/rank/hp", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"name":"first","health":500},{"name":"second","health":500}]`, w.Body.String())

	w = s.do(http.MethodGet, "/api/rank/item", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"name":"first","totalCount":2},{"name":"second","totalCount":0}]`, w.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(headerRequestID))

	w = s.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "itemsim_http_requests_total")
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit.RequestsPerSecond = 0.001
		cfg.RateLimit.Burst = 2
	})

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", "", nil).Code)

	w := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Too many requests", errorOf(t, w))
}

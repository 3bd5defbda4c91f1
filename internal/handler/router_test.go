package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/GoPolymarket/arena/internal/address"
	"github.com/GoPolymarket/arena/internal/config"
	"github.com/GoPolymarket/arena/internal/ledger"
	"github.com/GoPolymarket/arena/internal/middleware"
	"github.com/GoPolymarket/arena/internal/repository"
	"github.com/GoPolymarket/arena/internal/service"
	"github.com/GoPolymarket/arena/internal/signer"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminKey = "test-admin"

type testServer struct {
	router *gin.Engine
	cfg    *config.Config
}

func newTestServer(t *testing.T, requireSignature bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, RegisterValidators())

	cfg := &config.Config{}
	cfg.Auth.AdminKey = adminKey
	cfg.Auth.RequireSignature = requireSignature

	programID := address.MustParse("11111111111111111111111111111112")
	engine := ledger.NewEngine(repository.NewMemoryStore(), address.NewDeriver(programID))

	audit, err := service.NewAuditService(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(audit.Close)

	router := NewRouter(Deps{
		Config:      cfg,
		Vault:       service.NewVaultService(engine, nil),
		Audit:       audit,
		Auth:        service.NewAuthenticator(requireSignature, time.Minute),
		Limiter:     service.NewIdentityLimiter(1000, 1000),
		Idempotency: middleware.NewInMemIdempotencyStore(time.Hour),
	})
	return &testServer{router: router, cfg: cfg}
}

func (s *testServer) do(t *testing.T, method, path string, identity *address.Address, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if identity != nil {
		req.Header.Set(signer.HeaderIdentity, identity.String())
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) fund(t *testing.T, addr address.Address, amount uint64) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/admin/fund", nil,
		gin.H{"address": addr.String(), "amount": amount},
		map[string]string{middleware.HeaderAdminKey: adminKey})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func newIdentity(t *testing.T) address.Address {
	t.Helper()
	s, err := signer.GenerateEd25519Signer()
	require.NoError(t, err)
	return s.Identity()
}

func TestAgentLifecycle(t *testing.T) {
	s := newTestServer(t, false)
	authority := newIdentity(t)
	investor := newIdentity(t)

	s.fund(t, authority, 10_000_000)
	s.fund(t, investor, 5_000_000)

	// register
	w := s.do(t, http.MethodPost, "/v1/agents", &authority, gin.H{
		"name":               "Alpha",
		"strategy":           "momentum",
		"skills":             []string{"trend"},
		"risk_tolerance":     5,
		"max_drawdown_bps":   2000,
		"max_trade_size_bps": 5000,
		"creator_fee_bps":    1000,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	agentID := decode(t, w)["id"].(string)
	base := "/v1/agents/" + agentID

	// vault
	w = s.do(t, http.MethodPost, base+"/vault", &authority, nil, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	vaultID := address.MustParse(decode(t, w)["id"].(string))

	// deposit
	w = s.do(t, http.MethodPost, base+"/deposit", &investor, gin.H{"amount": 1_000_000}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	dep := decode(t, w)
	assert.Equal(t, "0.001", dep["position"].(map[string]any)["deposited_sol"])
	assert.EqualValues(t, 1_000_000+ledger.DefaultMinReserve, dep["vault_balance"])

	// trade +200,000; profits are settled into the vault by the host
	w = s.do(t, http.MethodPost, base+"/trades", &authority, gin.H{"pnl": 200_000, "skill_used": "trend"}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	trade := decode(t, w)
	agent := trade["agent"].(map[string]any)
	assert.EqualValues(t, 1_200_000, agent["current_value"])
	assert.EqualValues(t, 1, agent["trade_count"])
	assert.Equal(t, "20", agent["pnl_percent"])
	s.fund(t, vaultID, 200_000)

	// quote then withdraw half the principal
	w = s.do(t, http.MethodGet, base+"/quote?amount=500000", nil, nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 600_000, decode(t, w)["share"])

	w = s.do(t, http.MethodPost, base+"/withdraw", &investor, gin.H{"amount": 500_000}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	wd := decode(t, w)
	assert.EqualValues(t, 600_000, wd["share"])
	assert.Equal(t, "0.0006", wd["share_sol"])

	w = s.do(t, http.MethodGet, "/v1/balances/"+investor.String(), nil, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 4_600_000, decode(t, w)["balance"])

	// halt: deposits refused, withdrawals still open
	w = s.do(t, http.MethodPost, base+"/halt", &authority, nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, false, decode(t, w)["is_active"])

	w = s.do(t, http.MethodPost, base+"/deposit", &investor, gin.H{"amount": 1}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "AGENT_INACTIVE", decode(t, w)["code"])

	w = s.do(t, http.MethodPost, base+"/withdraw", &investor, gin.H{"amount": 500_000}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, base+"/positions/"+investor.String(), nil, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode(t, w)["deposited"])

	w = s.do(t, http.MethodGet, "/v1/leaderboard", nil, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var board []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &board))
	require.Len(t, board, 1)
	assert.EqualValues(t, 1, board[0]["rank"])
}

func TestRegisterErrors(t *testing.T) {
	s := newTestServer(t, false)
	authority := newIdentity(t)

	w := s.do(t, http.MethodPost, "/v1/agents", &authority, gin.H{"name": "Alpha", "creator_fee_bps": 3001}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "FEE_TOO_HIGH", decode(t, w)["code"])

	w = s.do(t, http.MethodPost, "/v1/agents", &authority, gin.H{"name": "Alpha", "creator_fee_bps": 3000}, nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodPost, "/v1/agents", &authority, gin.H{"name": "Alpha"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/v1/agents", nil, gin.H{"name": "Beta"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOnlyAuthorityMayRecordTrades(t *testing.T) {
	s := newTestServer(t, false)
	authority := newIdentity(t)
	intruder := newIdentity(t)

	w := s.do(t, http.MethodPost, "/v1/agents", &authority, gin.H{"name": "Alpha"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	agentID := decode(t, w)["id"].(string)

	w = s.do(t, http.MethodPost, "/v1/agents/"+agentID+"/trades", &intruder, gin.H{"pnl": 1}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "UNAUTHORIZED", decode(t, w)["code"])

	w = s.do(t, http.MethodGet, "/v1/agents/"+agentID, nil, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode(t, w)["trade_count"])
}

func TestSignedRequests(t *testing.T) {
	s := newTestServer(t, true)
	key, err := signer.GenerateEd25519Signer()
	require.NoError(t, err)
	identity := key.Identity()

	body := []byte(`{"name":"Signed"}`)
	headers, err := signer.SignRequest(key, http.MethodPost, "/v1/agents", body, time.Now())
	require.NoError(t, err)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/agents", bytes.NewReader(body))
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		return w
	}

	w := send()
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, identity.String(), decode(t, w)["authority"])

	// 同一签名不能重放
	w = send()
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// identity header alone is not enough
	w = s.do(t, http.MethodPost, "/v1/agents", &identity, gin.H{"name": "Other"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminFundRequiresKey(t *testing.T) {
	s := newTestServer(t, false)
	addr := newIdentity(t)

	w := s.do(t, http.MethodPost, "/admin/fund", nil, gin.H{"address": addr.String(), "amount": 1}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/admin/fund", nil, gin.H{"address": "not-an-address", "amount": 1},
		map[string]string{middleware.HeaderAdminKey: adminKey})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/admin/fund", nil, gin.H{"address": addr.String(), "amount": 0},
		map[string]string{middleware.HeaderAdminKey: adminKey})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ZERO_AMOUNT", decode(t, w)["code"])
}

func TestIdempotentDeposit(t *testing.T) {
	s := newTestServer(t, false)
	authority := newIdentity(t)
	investor := newIdentity(t)
	s.fund(t, authority, 10_000_000)
	s.fund(t, investor, 5_000_000)

	w := s.do(t, http.MethodPost, "/v1/agents", &authority, gin.H{"name": "Alpha"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	base := "/v1/agents/" + decode(t, w)["id"].(string)
	w = s.do(t, http.MethodPost, base+"/vault", &authority, nil, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	idem := map[string]string{middleware.HeaderIdempotencyKey: "dep-1"}
	first := s.do(t, http.MethodPost, base+"/deposit", &investor, gin.H{"amount": 1_000}, idem)
	require.Equal(t, http.StatusOK, first.Code)
	second := s.do(t, http.MethodPost, base+"/deposit", &investor, gin.H{"amount": 1_000}, idem)
	require.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	w = s.do(t, http.MethodGet, base, nil, nil, nil)
	assert.EqualValues(t, 1_000, decode(t, w)["total_deposited"])
}

func TestReadOnlyMode(t *testing.T) {
	s := newTestServer(t, false)
	s.cfg.Server.ReadOnly = true
	authority := newIdentity(t)

	// router captured the flag at construction; rebuild
	s.router = NewRouter(Deps{
		Config:  s.cfg,
		Vault:   service.NewVaultService(ledger.NewEngine(repository.NewMemoryStore(), address.NewDeriver(address.MustParse("11111111111111111111111111111112"))), nil),
		Auth:    service.NewAuthenticator(false, time.Minute),
		Limiter: service.NewIdentityLimiter(1000, 1000),
	})

	w := s.do(t, http.MethodPost, "/v1/agents", &authority, gin.H{"name": "Alpha"}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "READ_ONLY", decode(t, w)["code"])

	w = s.do(t, http.MethodGet, "/v1/agents", nil, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNotFoundAndBadAddress(t *testing.T) {
	s := newTestServer(t, false)

	w := s.do(t, http.MethodGet, "/v1/agents/"+newIdentity(t).String(), nil, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/v1/agents/0OIl", nil, nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decode(t, w)["code"])
}

func (s *testServer) signed(t *testing.T, key signer.Signer, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	headers, err := signer.SignRequest(key, method, path, body, time.Now())
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestDefaultConfigRejectsForgedIdentity(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	var cfg config.Config
	require.NoError(t, v.Unmarshal(&cfg))

	s := newTestServer(t, cfg.Auth.RequireSignature)
	key, err := signer.GenerateEd25519Signer()
	require.NoError(t, err)
	authority := key.Identity()

	w := s.signed(t, key, http.MethodPost, "/v1/agents", []byte(`{"name":"Alpha","strategy":"trend"}`))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	base := "/v1/agents/" + decode(t, w)["id"].(string)

	// 只带 authority 地址, 没有签名
	w = s.do(t, http.MethodPost, base+"/halt", &authority, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = s.do(t, http.MethodPost, base+"/trades", &authority, gin.H{"pnl": 1_000_000}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, base, nil, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	agent := decode(t, w)
	assert.Equal(t, true, agent["is_active"])
	assert.EqualValues(t, 0, agent["trade_count"])

	w = s.signed(t, key, http.MethodPost, base+"/halt", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, false, decode(t, w)["is_active"])
}

func TestInitializeVaultReportsHeldBalance(t *testing.T) {
	s := newTestServer(t, false)
	authority := newIdentity(t)
	s.fund(t, authority, 10_000_000)

	w := s.do(t, http.MethodPost, "/v1/agents", &authority, gin.H{"name": "Alpha"}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	agentID := address.MustParse(decode(t, w)["id"].(string))

	// 内存存储读回的空 skills 与 Postgres 一致渲染为 []
	w = s.do(t, http.MethodGet, "/v1/agents/"+agentID.String(), nil, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, decode(t, w)["skills"])

	vaultAddr, _, err := address.NewDeriver(address.MustParse("11111111111111111111111111111112")).Vault(agentID)
	require.NoError(t, err)
	s.fund(t, vaultAddr, 5_000)

	w = s.do(t, http.MethodPost, "/v1/agents/"+agentID.String()+"/vault", &authority, nil, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.EqualValues(t, ledger.DefaultMinReserve+5_000, decode(t, w)["balance"])
}

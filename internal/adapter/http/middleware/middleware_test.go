package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"saturn/internal/core/domain"
	"saturn/internal/core/ports"
	"saturn/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAuthService struct {
	ctx   *ports.AuthContext
	err   error
	token string
}

func (f *fakeAuthService) Authenticate(ctx context.Context, bearerToken string) (*ports.AuthContext, error) {
	f.token = bearerToken
	if f.err != nil {
		return nil, f.err
	}
	return f.ctx, nil
}

func TestBearerAuth_NoHeader_Rejected(t *testing.T) {
	svc := &fakeAuthService{err: apperror.ErrUnauthorized("missing bearer token")}

	router := gin.New()
	router.GET("/test", BearerAuth(svc), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, svc.token)
}

func TestBearerAuth_InvalidToken_Rejected(t *testing.T) {
	svc := &fakeAuthService{err: apperror.ErrUnauthorized("invalid api key")}

	router := gin.New()
	router.GET("/test", BearerAuth(svc), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer sk_agt_bad")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "sk_agt_bad", svc.token)
}

func TestBearerAuth_Success_SetsContext(t *testing.T) {
	agent := &domain.Agent{ID: "agt_1"}
	wallet := &domain.Wallet{ID: "wal_1"}
	policy := &domain.Policy{AgentID: "agt_1"}
	account := &domain.Account{ID: "acc_1"}
	svc := &fakeAuthService{ctx: &ports.AuthContext{
		Account: account,
		Agent:   agent,
		Wallet:  wallet,
		Policy:  policy,
	}}

	var capturedAgent *domain.Agent
	var capturedWallet *domain.Wallet
	var capturedPolicy *domain.Policy
	var capturedAccount *domain.Account

	router := gin.New()
	router.GET("/test", BearerAuth(svc), func(c *gin.Context) {
		a, _ := c.Get(CtxAgent)
		capturedAgent = a.(*domain.Agent)
		w, _ := c.Get(CtxWallet)
		capturedWallet = w.(*domain.Wallet)
		p, _ := c.Get(CtxPolicy)
		capturedPolicy = p.(*domain.Policy)
		acc, _ := c.Get(CtxAccount)
		capturedAccount = acc.(*domain.Account)
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer sk_agt_good")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sk_agt_good", svc.token)
	require.NotNil(t, capturedAgent)
	assert.Equal(t, "agt_1", capturedAgent.ID)
	require.NotNil(t, capturedWallet)
	assert.Equal(t, "wal_1", capturedWallet.ID)
	require.NotNil(t, capturedPolicy)
	assert.Equal(t, "agt_1", capturedPolicy.AgentID)
	require.NotNil(t, capturedAccount)
	assert.Equal(t, "acc_1", capturedAccount.ID)
}

func TestBearerAuth_Success_SessionOnly_NoAgentSet(t *testing.T) {
	svc := &fakeAuthService{ctx: &ports.AuthContext{Account: &domain.Account{ID: "acc_1"}}}

	var hadAgent bool
	router := gin.New()
	router.GET("/test", BearerAuth(svc), func(c *gin.Context) {
		_, hadAgent = c.Get(CtxAgent)
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer session_token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, hadAgent)
}

func TestRequireAgent_RejectsSessionOnlyContext(t *testing.T) {
	svc := &fakeAuthService{ctx: &ports.AuthContext{Account: &domain.Account{ID: "acc_1"}}}

	router := gin.New()
	router.GET("/test", BearerAuth(svc), RequireAgent(), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer session_token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAgent_AllowsAgentContext(t *testing.T) {
	svc := &fakeAuthService{ctx: &ports.AuthContext{
		Account: &domain.Account{ID: "acc_1"},
		Agent:   &domain.Agent{ID: "agt_1"},
	}}

	router := gin.New()
	router.GET("/test", BearerAuth(svc), RequireAgent(), func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer sk_agt_good")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecovery_PanicRecovered(t *testing.T) {
	log := zerolog.Nop()

	router := gin.New()
	router.Use(Recovery(log))
	router.GET("/panic", func(c *gin.Context) {
		panic("something went wrong")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp map[string]map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INTERNAL_ERROR", resp["error"]["code"])
}

func TestRequestLogger_DoesNotPanic(t *testing.T) {
	log := zerolog.Nop()

	router := gin.New()
	router.Use(RequestLogger(log))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/config"
)

func engine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.GET("/x", func(c *gin.Context) {
		id, isCustomer := CustomerID(c)
		c.JSON(http.StatusOK, gin.H{"customer": id, "is_customer": isCustomer})
	})
	return r
}

func get(r *gin.Engine, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + s
}

func TestCORS_AllowList(t *testing.T) {
	r := engine(CORSMiddleware([]string{"https://app.garage.test"}))

	w := get(r, map[string]string{"Origin": "https://APP.garage.test"})
	assert.Equal(t, "https://APP.garage.test", w.Header().Get("Access-Control-Allow-Origin"))

	w = get(r, map[string]string{"Origin": "https://evil.test"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	open := engine(CORSMiddleware(nil))
	w = get(open, map[string]string{"Origin": "http://localhost:5173"})
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Preflight(t *testing.T) {
	r := engine(CORSMiddleware(nil))
	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequestID_EchoesOrMints(t *testing.T) {
	r := engine(RequestID())

	w := get(r, map[string]string{"X-Request-Id": "req-42"})
	assert.Equal(t, "req-42", w.Header().Get("X-Request-Id"))

	w = get(r, nil)
	assert.Len(t, w.Header().Get("X-Request-Id"), 36)
}

func TestAuth(t *testing.T) {
	cfg := &config.Config{JWTSecret: "s3cret"}
	r := engine(AuthMiddleware(cfg))
	exp := time.Now().Add(time.Hour).Unix()

	assert.Equal(t, http.StatusUnauthorized, get(r, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, map[string]string{"Authorization": "Basic abc"}).Code)

	forged := sign(t, "other", jwt.MapClaims{"sub": 1, "serviceCenterId": 1, "role": "customer", "exp": exp})
	assert.Equal(t, http.StatusUnauthorized, get(r, map[string]string{"Authorization": forged}).Code)

	noRole := sign(t, "s3cret", jwt.MapClaims{"sub": 1, "serviceCenterId": 1, "exp": exp})
	assert.Equal(t, http.StatusUnauthorized, get(r, map[string]string{"Authorization": noRole}).Code)

	customer := sign(t, "s3cret", jwt.MapClaims{"sub": 1, "serviceCenterId": 1, "role": "customer", "customerId": 7, "exp": exp})
	w := get(r, map[string]string{"Authorization": customer})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"customer":7,"is_customer":true}`, w.Body.String())

	staff := sign(t, "s3cret", jwt.MapClaims{"sub": 2, "serviceCenterId": 1, "role": "advisor", "exp": exp})
	w = get(r, map[string]string{"Authorization": staff})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"customer":0,"is_customer":false}`, w.Body.String())
}

func TestRequireRole(t *testing.T) {
	setRole := func(role string) gin.HandlerFunc {
		return func(c *gin.Context) { c.Set(ContextUserRole, role) }
	}

	assert.Equal(t, http.StatusOK, get(engine(setRole(RoleManager), RequireRole(RoleManager, RoleAdvisor)), nil).Code)
	assert.Equal(t, http.StatusOK, get(engine(setRole(RoleAdmin), RequireRole(RoleManager)), nil).Code)
	assert.Equal(t, http.StatusForbidden, get(engine(setRole(RoleCustomer), RequireRole(RoleManager)), nil).Code)
}

package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/kb-api/internal/models"
	"github.com/noah-isme/kb-api/internal/service"
	appErrors "github.com/noah-isme/kb-api/pkg/errors"
	"github.com/noah-isme/kb-api/pkg/logger"
)

type stubValidator map[string]*models.JWTClaims

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Wrap(errors.New("bad signature"), appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
}

var tokens = stubValidator{
	"admin-token": {UserID: "admin-1", Role: models.RoleAdmin},
	"user-token":  {UserID: "u1", Role: models.RoleUser},
}

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestJWTRequiresValidBearer(t *testing.T) {
	r := gin.New()
	r.GET("/me", JWT(tokens), func(c *gin.Context) {
		c.String(http.StatusOK, "%s|%s", Claims(c).UserID, c.GetString(logger.ActorKey))
	})

	w := serve(r, http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, w))

	w = serve(r, http.MethodGet, "/me", "forged")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Basic abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, http.MethodGet, "/me", "user-token")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1|u1", w.Body.String())
}

func TestOptionalJWT(t *testing.T) {
	r := gin.New()
	r.GET("/feed", OptionalJWT(tokens), func(c *gin.Context) {
		if claims := Claims(c); claims != nil {
			c.String(http.StatusOK, claims.UserID)
			return
		}
		c.String(http.StatusOK, "anonymous")
	})

	assert.Equal(t, "anonymous", serve(r, http.MethodGet, "/feed", "").Body.String())
	assert.Equal(t, "anonymous", serve(r, http.MethodGet, "/feed", "forged").Body.String())
	assert.Equal(t, "admin-1", serve(r, http.MethodGet, "/feed", "admin-token").Body.String())
}

func TestRBAC(t *testing.T) {
	r := gin.New()
	r.GET("/users/:id", JWT(tokens), RBAC(string(models.RoleAdmin), SelfParam), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/admin", JWT(tokens), RequireRoles(models.RoleAdmin, models.RoleSupervisor), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/bare", RBAC(string(models.RoleAdmin)), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/users/u1", "user-token").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/users/u2", "user-token").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/users/u2", "admin-token").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/admin", "user-token").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/admin", "admin-token").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/bare", "").Code)
}

func TestMetricsAndResponseMeta(t *testing.T) {
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("request_id", "req-7")
		c.Next()
	}, Metrics(metrics), WithResponseMeta())
	r.GET("/questions/:id", func(c *gin.Context) {
		SetCacheHit(c, true)
		c.JSON(http.StatusOK, ExtractMeta(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/questions/q1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &meta))
	assert.Equal(t, true, meta["cache_hit"])
	assert.Equal(t, "req-7", meta["request_id"])
	assert.Contains(t, meta, "processing_time_ms")
	assert.Equal(t, uint64(1), metrics.Snapshot().RequestsTotal)

	assert.Nil(t, ExtractMeta(nil))
}

func TestMetricsSkipsProbesAndBoundsUnmatchedRoutes(t *testing.T) {
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", func(c *gin.Context) { metrics.Handler().ServeHTTP(c.Writer, c.Request) })

	serve(r, http.MethodGet, "/health", "")
	assert.Equal(t, uint64(0), metrics.Snapshot().RequestsTotal)

	w := serve(r, http.MethodGet, "/questions/does-not-exist/at-all", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, uint64(1), metrics.Snapshot().RequestsTotal)

	body := serve(r, http.MethodGet, "/metrics", "").Body.String()
	assert.Contains(t, body, `path="unmatched"`)
	assert.NotContains(t, body, "does-not-exist")
}

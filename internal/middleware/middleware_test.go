package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-timetable-api/internal/models"
	"github.com/noah-isme/exam-timetable-api/internal/service"
	appErrors "github.com/noah-isme/exam-timetable-api/pkg/errors"
)

type validatorStub map[string]*models.JWTClaims

func (v validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := v[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Wrap(errors.New("bad signature"), appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
}

var tokens = validatorStub{
	"coord":  {UserID: "u1", Role: models.RoleCoordinator},
	"viewer": {UserID: "u2", Role: models.RoleViewer},
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/", append(handlers, func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, claims.UserID)
	})...)
	return router
}

func serve(router *gin.Engine, authorization string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestJWT(t *testing.T) {
	router := newRouter(JWT(tokens))

	cases := []struct {
		header string
		status int
		body   string
	}{
		{"", http.StatusUnauthorized, ""},
		{"Token coord", http.StatusUnauthorized, "invalid authorization header"},
		{"Bearer nope", http.StatusUnauthorized, "invalid token"},
		{"bearer coord", http.StatusOK, "u1"},
	}
	for _, tc := range cases {
		recorder := serve(router, tc.header)
		assert.Equal(t, tc.status, recorder.Code, tc.header)
		assert.Contains(t, recorder.Body.String(), tc.body, tc.header)
	}
}

func TestOptionalJWT(t *testing.T) {
	router := newRouter(OptionalJWT(tokens))
	assert.Equal(t, "anonymous", serve(router, "").Body.String())
	assert.Equal(t, "anonymous", serve(router, "Bearer nope").Body.String())
	assert.Equal(t, "u2", serve(router, "Bearer viewer").Body.String())
}

func TestRequireRoles(t *testing.T) {
	coordinatorOnly := newRouter(JWT(tokens), RequireRoles())
	assert.Equal(t, http.StatusOK, serve(coordinatorOnly, "Bearer coord").Code)
	assert.Equal(t, http.StatusForbidden, serve(coordinatorOnly, "Bearer viewer").Code)

	readers := newRouter(JWT(tokens), RequireRoles(models.RoleViewer))
	assert.Equal(t, http.StatusOK, serve(readers, "Bearer viewer").Code)

	unauthenticated := newRouter(RequireRoles(models.RoleViewer))
	assert.Equal(t, http.StatusUnauthorized, serve(unauthenticated, "").Code)
}

func TestMetricsRecordsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics))
	router.GET("/weeks/:week", func(c *gin.Context) {
		time.Sleep(time.Millisecond)
		c.Status(http.StatusNoContent)
	})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/weeks/2", nil))
	require.Equal(t, http.StatusNoContent, recorder.Code)

	count, err := testutil.GatherAndCount(metrics.Registry(), "http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetricsSkipsAndCollapsesUnmatched(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics, "/metrics"))
	router.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, target := range []string{"/metrics", "/export/abc", "/export/def"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
	}

	count, err := testutil.GatherAndCount(metrics.Registry(), "http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apphttp "crm_backend/internal/http"
	"crm_backend/platform/config"
	"crm_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type healthFunc func(ctx context.Context) error

func (f healthFunc) Ping(ctx context.Context) error { return f(ctx) }

type pingModule struct{}

func (pingModule) Name() string { return "ping" }

func (pingModule) RegisterRoutes(rc *apphttp.RouterContext) {
	rc.Protected.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
}

func newApp(health apphttp.HealthChecker) *apphttp.App {
	return &apphttp.App{
		Config: &config.Config{
			JWTAccessSecret: "s3cret",
			CORSOrigins:     []string{"http://localhost:4200"},
		},
		Logger:  logger.Discard(),
		Health:  health,
		Modules: []apphttp.Module{pingModule{}},
	}
}

func TestHealth(t *testing.T) {
	cases := []struct {
		name   string
		ping   error
		status int
	}{
		{"healthy", nil, http.StatusOK},
		{"database down", errors.New("connection refused"), http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := New(newApp(healthFunc(func(context.Context) error { return tc.ping })))
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		})
	}
}

func TestModuleRoutesRequireAuth(t *testing.T) {
	engine := New(newApp(nil))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

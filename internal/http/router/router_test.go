package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apphttp "engagement_backend/internal/http"
	"engagement_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

type testConfig struct{}

func (testConfig) GetJWTAccessSecret() string     { return "test-secret" }
func (testConfig) GetHTTPAddr() string            { return ":0" }
func (testConfig) GetCORSAllowAll() bool          { return false }
func (testConfig) GetCORSOrigins() []string       { return []string{"http://localhost:5173"} }
func (testConfig) GetCORSAllowCreds() bool        { return true }
func (testConfig) GetRateLimitPerSecond() float64 { return 100 }
func (testConfig) GetRateLimitBurst() int         { return 100 }

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type pingModule struct{}

func (pingModule) Name() string { return "ping" }

func (pingModule) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
}

func newEngine(health apphttp.HealthChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return New(&apphttp.App{
		Config:  testConfig{},
		Logger:  logger.New("development"),
		Health:  health,
		Modules: []apphttp.Module{pingModule{}},
	})
}

func serve(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthAndReadiness(t *testing.T) {
	if rec := serve(newEngine(pinger{}), "/api/health"); rec.Code != http.StatusOK {
		t.Fatalf("health = %d", rec.Code)
	}
	if rec := serve(newEngine(pinger{}), "/api/ready"); rec.Code != http.StatusOK {
		t.Fatalf("ready = %d", rec.Code)
	}
	if rec := serve(newEngine(pinger{err: errors.New("down")}), "/api/ready"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready with db down = %d", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	rec := serve(newEngine(pinger{}), "/api/v1/ping")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

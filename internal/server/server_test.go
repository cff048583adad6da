package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jjudge-oj/authserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(driver string) config.Config {
	return config.Config{
		ServerPort: 0,
		Database:   config.DatabaseConfig{Driver: driver},
		Auth:       config.AuthConfig{JWTSecret: "server-secret", BcryptCost: 4},
		MQ:         config.MQConfig{Backend: config.BackendNone},
	}
}

func TestNew_MemoryDriver(t *testing.T) {
	t.Parallel()

	srv, err := New(context.Background(), testConfig(config.DriverMemory), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	assert.Equal(t, ":8080", srv.httpServer.Addr)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

func TestNew_SQLiteDriverServesRegistration(t *testing.T) {
	t.Parallel()

	cfg := testConfig(config.DriverSQLite)
	cfg.Database.SQLitePath = filepath.Join(t.TempDir(), "auth.db")
	srv, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	body := `{"username":"alice","email":"alice@x.com","password":"secret123"}`
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body)))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestNew_InvalidBroker(t *testing.T) {
	t.Parallel()

	cfg := testConfig(config.DriverMemory)
	cfg.MQ.Backend = config.BackendRabbitMQ
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

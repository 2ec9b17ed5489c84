package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memCmdable serves GET and SET from memory. Any other command panics on the
// nil embedded interface.
type memCmdable struct {
	redis.Cmdable

	mu   sync.Mutex
	data map[string]string
}

func newMemCmdable() *memCmdable {
	return &memCmdable{data: make(map[string]string)}
}

func (m *memCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(val, nil)
}

func (m *memCmdable) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func newIdempotentRouter(client redis.Cmdable, calls *int) *gin.Engine {
	router := gin.New()
	router.Use(IdempotencyMiddleware(client, cookieName, zap.NewNop()))
	router.POST("/v1/orders/:id/accept", func(c *gin.Context) {
		*calls++
		c.JSON(http.StatusOK, gin.H{"call": *calls})
	})
	return router
}

func postWithKey(router *gin.Engine, token, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/orders/1/accept", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysSameCallerAndKey(t *testing.T) {
	calls := 0
	router := newIdempotentRouter(newMemCmdable(), &calls)

	first := postWithKey(router, "token-a", "k-1")
	require.Equal(t, http.StatusOK, first.Code)

	second := postWithKey(router, "token-a", "k-1")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replay"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)
}

func TestIdempotency_ScopesByCaller(t *testing.T) {
	calls := 0
	router := newIdempotentRouter(newMemCmdable(), &calls)

	postWithKey(router, "token-a", "k-1")
	w := postWithKey(router, "token-b", "k-1")

	assert.Empty(t, w.Header().Get("Idempotent-Replay"))
	assert.Equal(t, 2, calls)
}

func TestIdempotency_NoKeyIsNotCached(t *testing.T) {
	calls := 0
	router := newIdempotentRouter(newMemCmdable(), &calls)

	postWithKey(router, "token-a", "")
	postWithKey(router, "token-a", "")

	assert.Equal(t, 2, calls)
}

func TestIdempotencyKey(t *testing.T) {
	a := idempotencyKey("token-a", "/v1/orders/1/accept", "k")
	assert.Equal(t, a, idempotencyKey("token-a", "/v1/orders/1/accept", "k"))
	assert.NotEqual(t, a, idempotencyKey("token-a", "/v1/orders/1/reject", "k"))
	assert.NotContains(t, a, "token-a")
}

package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := NewHandler(setupTestService(t))
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if c.GetHeader("X-Test-User-ID") != "" {
			c.Set("user_id", int64(1))
		}
		c.Next()
	})

	v1 := r.Group("/api/v1")
	h.RegisterPublicRoutes(v1)
	h.RegisterProtectedRoutes(v1)
	return r
}

func doJSONRequest(r http.Handler, method, path string, body any, authorized bool) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authorized {
		req.Header.Set("X-Test-User-ID", "1")
	}

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestAuthEndpoints_RegisterLoginMe(t *testing.T) {
	r := setupTestRouter(t)

	rr := doJSONRequest(r, http.MethodPost, "/api/v1/auth/register", map[string]any{
		"username": "alice", "email": "alice@example.com", "password": "password123",
	}, false)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.NotContains(t, rr.Body.String(), "password")

	rr = doJSONRequest(r, http.MethodPost, "/api/v1/auth/register", map[string]any{
		"username": "alice", "email": "alice2@example.com", "password": "password123",
	}, false)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = doJSONRequest(r, http.MethodPost, "/api/v1/auth/login", map[string]any{
		"login": "alice", "password": "password123",
	}, false)
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Data LoginResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Data.AccessToken)

	rr = doJSONRequest(r, http.MethodPost, "/api/v1/auth/login", map[string]any{
		"login": "alice", "password": "nope-nope",
	}, false)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doJSONRequest(r, http.MethodGet, "/api/v1/auth/me", nil, true)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doJSONRequest(r, http.MethodGet, "/api/v1/auth/me", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRegister_ValidationDetails(t *testing.T) {
	r := setupTestRouter(t)

	rr := doJSONRequest(r, http.MethodPost, "/api/v1/auth/register", map[string]any{
		"username": "alice", "email": "bad", "password": "password123",
	}, false)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var body struct {
		Error struct {
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	assert.Equal(t, "email", body.Error.Details["Email"])
}

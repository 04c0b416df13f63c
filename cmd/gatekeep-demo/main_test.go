package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/gatekeep"
	"github.com/MrEthical07/gatekeep/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newDemo(t *testing.T) http.Handler {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := gatekeep.DefaultConfig()
	cfg.Renewal.Async = false
	engine, err := gatekeep.New().WithConfig(cfg).WithRedis(rdb).WithLogger(quiet).Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	hasher, err := password.NewArgon2(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16})
	require.NoError(t, err)
	directory, err := password.NewDirectory(hasher)
	require.NoError(t, err)
	require.NoError(t, directory.Add("alice", "user-alice", "user", "correct-horse"))
	require.NoError(t, directory.Add("root", "user-root", "admin", "battery-staple"))

	return newRouter(engine, directory, newNoteStore(), quiet)
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "192.0.2.10:5000"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, h http.Handler, user, pass string) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/login", "", `{"username":"`+user+`","password":"`+pass+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		Token     string `json:"token"`
		ExpiresIn int64  `json:"expires_in"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Token, 64)
	require.Equal(t, int64(300), out.ExpiresIn)
	return out.Token
}

func TestDemoLoginAndProtectedRoutes(t *testing.T) {
	h := newDemo(t)
	alice := login(t, h, "alice", "correct-horse")

	rec := do(t, h, http.MethodGet, "/api/me", alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"id":"user-alice"`)

	rec = do(t, h, http.MethodGet, "/api/admin/stats", alice, "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "insufficient_role")

	rec = do(t, h, http.MethodPut, "/api/notes/n1", alice, `{"body":"edited"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/notes/n2", alice, `{"body":"edited"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "not_owner")

	rec = do(t, h, http.MethodPut, "/api/notes/missing", alice, `{"body":"edited"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	root := login(t, h, "root", "battery-staple")
	rec = do(t, h, http.MethodPut, "/api/notes/n1", root, `{"body":"by admin"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/notes/ghost", root, `{"body":"by admin"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "not_found")

	rec = do(t, h, http.MethodPut, "/api/notes/ghost", alice, `{"body":"edited"}`)
	require.Equal(t, http.StatusNotFound, rec.Code, "a rejected admin write must not create the note")

	rec = do(t, h, http.MethodGet, "/api/admin/stats", root, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"gatekeep_session_issued_total":2`)
}

func TestDemoRejectsBadCredentials(t *testing.T) {
	h := newDemo(t)

	rec := do(t, h, http.MethodPost, "/login", "", `{"username":"alice","password":"wrong-password"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/login", "", `{"username":"alice"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDemoLogoutRevokesToken(t *testing.T) {
	h := newDemo(t)
	alice := login(t, h, "alice", "correct-horse")

	rec := do(t, h, http.MethodPost, "/logout", alice, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/me", alice, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/logout", alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestDemoMetricsEndpoint(t *testing.T) {
	h := newDemo(t)
	login(t, h, "alice", "correct-horse")

	rec := do(t, h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "gatekeep_session_issued_total 1\n")
}

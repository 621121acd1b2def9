package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpdir16/LocalKeys/internal/approval"
	"github.com/gpdir16/LocalKeys/internal/audit"
	"github.com/gpdir16/LocalKeys/internal/storage"
	"github.com/gpdir16/LocalKeys/internal/vault"
)

type sourceFunc func(ctx context.Context, req approval.Request) (approval.Decision, error)

func (f sourceFunc) Decide(ctx context.Context, req approval.Request) (approval.Decision, error) {
	return f(ctx, req)
}

func approveAll(context.Context, approval.Request) (approval.Decision, error) {
	return approval.Decision{Approved: true}, nil
}

type fixture struct {
	srv   *Server
	vault *vault.Vault
	gate  *approval.Gate
	calls atomic.Int64 // decision-source invocations
}

func newFixture(t *testing.T, unlock bool, decide sourceFunc) *fixture {
	t.Helper()

	store := storage.NewMemStore()
	log := audit.New(store, 100)
	v := vault.New(store, log)
	require.NoError(t, v.Setup("pw1"))
	require.NoError(t, v.CreateProject("myapp"))
	require.NoError(t, v.SetSecret("myapp", "API_KEY", "sk-value"))
	require.NoError(t, v.SetSecret("myapp", "DB_URL", "postgres://x"))
	if !unlock {
		require.NoError(t, v.Lock())
	}

	f := &fixture{vault: v}
	gate := approval.New(log, time.Second)
	if decide != nil {
		gate.SetSource(sourceFunc(func(ctx context.Context, req approval.Request) (approval.Decision, error) {
			f.calls.Add(1)
			return decide(ctx, req)
		}))
	}
	f.gate = gate

	srv, err := New(Config{}, v, gate, log, store, nil)
	require.NoError(t, err)
	f.srv = srv
	return f
}

func (f *fixture) do(t *testing.T, token, action string, data any) (*httptest.ResponseRecorder, response) {
	t.Helper()
	body, err := json.Marshal(map[string]any{"action": action, "data": data})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	r.RemoteAddr = "127.0.0.1:50000"
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.srv.ServeHTTP(w, r)

	var resp response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestMissingAuthorization(t *testing.T) {
	f := newFixture(t, true, approveAll)

	r := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{"action":"status"}`)))
	r.RemoteAddr = "127.0.0.1:50000"
	w := httptest.NewRecorder()
	f.srv.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Authorization required")
}

func TestInvalidTokenNeverReachesVaultOrGate(t *testing.T) {
	f := newFixture(t, true, approveAll)

	w, resp := f.do(t, "wrong-token", "getSecret", map[string]any{"projectName": "myapp", "key": "API_KEY"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "Invalid token", resp.Error)
	assert.Zero(t, f.calls.Load(), "decision source must not run for unauthenticated callers")
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, true, approveAll)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "127.0.0.1:50000"
	w := httptest.NewRecorder()
	f.srv.ServeHTTP(w, r)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	r = httptest.NewRequest(http.MethodOptions, "/", nil)
	r.RemoteAddr = "127.0.0.1:50000"
	w = httptest.NewRecorder()
	f.srv.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestUnknownAction(t *testing.T) {
	f := newFixture(t, true, approveAll)
	_, resp := f.do(t, f.srv.Token(), "selfDestruct", nil)
	assert.False(t, resp.Success)
	assert.Equal(t, "Unknown action", resp.Error)
}

func TestStatusWorksWhileLocked(t *testing.T) {
	f := newFixture(t, false, approveAll)

	w, resp := f.do(t, f.srv.Token(), "status", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	require.True(t, resp.Success)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "locked", data["state"])
}

func TestActionsRequireUnlockedVault(t *testing.T) {
	f := newFixture(t, false, approveAll)

	for _, action := range []string{"listProjects", "listSecretKeys", "getSecret", "getBatchSecrets", "setSecret"} {
		_, resp := f.do(t, f.srv.Token(), action, map[string]any{"projectName": "myapp", "key": "API_KEY"})
		assert.False(t, resp.Success, "action %s", action)
		assert.Equal(t, "Vault is locked", resp.Error, "action %s", action)
	}
	assert.Zero(t, f.calls.Load())
}

func TestListProjectsAndKeys(t *testing.T) {
	f := newFixture(t, true, approveAll)

	_, resp := f.do(t, f.srv.Token(), "listProjects", nil)
	require.True(t, resp.Success)
	projects := resp.Data.(map[string]any)["projects"].([]any)
	require.Len(t, projects, 1)
	p := projects[0].(map[string]any)
	assert.Equal(t, "myapp", p["name"])
	assert.EqualValues(t, 2, p["secretCount"])

	_, resp = f.do(t, f.srv.Token(), "listSecretKeys", map[string]any{"projectName": "myapp"})
	require.True(t, resp.Success)
	keys := resp.Data.(map[string]any)["keys"].([]any)
	assert.Equal(t, []any{"API_KEY", "DB_URL"}, keys)
	assert.Zero(t, f.calls.Load(), "metadata listing must not require approval")
}

func TestGetSecretApproved(t *testing.T) {
	f := newFixture(t, true, approveAll)

	_, resp := f.do(t, f.srv.Token(), "getSecret", map[string]any{"projectName": "myapp", "key": "API_KEY"})
	require.True(t, resp.Success)
	assert.Equal(t, "sk-value", resp.Data.(map[string]any)["value"])
	assert.EqualValues(t, 1, f.calls.Load())
}

func TestGetSecretDenied(t *testing.T) {
	f := newFixture(t, true, func(context.Context, approval.Request) (approval.Decision, error) {
		return approval.Decision{Approved: false, Reason: "user said no"}, nil
	})

	_, resp := f.do(t, f.srv.Token(), "getSecret", map[string]any{"projectName": "myapp", "key": "API_KEY"})
	assert.False(t, resp.Success)
	assert.Equal(t, "Access denied: user said no", resp.Error)
}

func TestGetSecretNoHandlerFailsClosed(t *testing.T) {
	f := newFixture(t, true, nil)

	_, resp := f.do(t, f.srv.Token(), "getSecret", map[string]any{"projectName": "myapp", "key": "API_KEY"})
	assert.False(t, resp.Success)
	assert.Equal(t, "Access denied: No approval handler available", resp.Error)
}

func TestGetBatchSecretsOmitsMissingKeys(t *testing.T) {
	f := newFixture(t, true, approveAll)

	_, resp := f.do(t, f.srv.Token(), "getBatchSecrets", map[string]any{
		"projectName": "myapp",
		"keys":        []string{"API_KEY", "MISSING"},
	})
	require.True(t, resp.Success)
	secrets := resp.Data.(map[string]any)["secrets"].(map[string]any)
	assert.Equal(t, map[string]any{"API_KEY": "sk-value"}, secrets)
}

func TestSetAndReadBack(t *testing.T) {
	f := newFixture(t, true, approveAll)

	_, resp := f.do(t, f.srv.Token(), "setSecret", map[string]any{
		"projectName": "myapp", "key": "NEW", "value": "fresh",
	})
	require.True(t, resp.Success)

	_, resp = f.do(t, f.srv.Token(), "getSecret", map[string]any{"projectName": "myapp", "key": "NEW"})
	require.True(t, resp.Success)
	assert.Equal(t, "fresh", resp.Data.(map[string]any)["value"])
}

func TestMissingProjectError(t *testing.T) {
	f := newFixture(t, true, approveAll)
	_, resp := f.do(t, f.srv.Token(), "listSecretKeys", map[string]any{"projectName": "ghost"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "not found")
}

func TestStartPublishesAndStopRemovesDiscovery(t *testing.T) {
	store := storage.NewMemStore()
	log := audit.New(store, 100)
	v := vault.New(store, log)
	require.NoError(t, v.Setup("pw1"))

	srv, err := New(Config{}, v, approval.New(log, time.Second), log, store, nil)
	require.NoError(t, err)
	require.NoError(t, srv.Start())

	rec, err := storage.ReadDiscovery(store)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", rec.Host)
	assert.Equal(t, srv.Port(), rec.Port)
	assert.Equal(t, srv.Token(), rec.AuthToken)
	assert.NotZero(t, rec.PID)

	// A real request over the wire with the published token.
	body := bytes.NewReader([]byte(`{"action":"status"}`))
	req, _ := http.NewRequest(http.MethodPost, fmt.Sprintf("http://%s:%d/", rec.Host, rec.Port), body)
	req.Header.Set("Authorization", "Bearer "+rec.AuthToken)
	httpResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer httpResp.Body.Close()
	assert.Equal(t, http.StatusOK, httpResp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	_, err = storage.ReadDiscovery(store)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

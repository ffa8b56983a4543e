package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"secretsManagement/internal/access"
	"secretsManagement/internal/metrics"
	"secretsManagement/internal/testutil"
	"secretsManagement/models"
	"secretsManagement/repository"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testServer struct {
	t   *testing.T
	srv *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := repository.NewStore(testutil.OpenInMemoryDB(t))
	svc := access.NewService(store, access.WithBcryptCost(bcrypt.MinCost))
	srv := httptest.NewServer(NewRouter(svc, store, metrics.New(), nil))
	t.Cleanup(srv.Close)
	return &testServer{t: t, srv: srv}
}

// do sends body as JSON with optional Basic credentials ("" user skips the header).
func (ts *testServer) do(method, path, user, pass string, body any) (int, envelope) {
	ts.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(ts.t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, rd)
	require.NoError(ts.t, err)
	if user != "" {
		req.SetBasicAuth(user, pass)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(ts.t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(ts.t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(ts.t, json.Unmarshal(raw, &env))
	}
	return resp.StatusCode, env
}

func (ts *testServer) register(username, role string) models.User {
	ts.t.Helper()
	code, env := ts.do(http.MethodPost, "/api/users", "", "", createUserRequest{Username: username, Password: username + "-pw", Role: role})
	require.Equal(ts.t, http.StatusCreated, code, env.Error)
	var u models.User
	require.NoError(ts.t, json.Unmarshal(env.Data, &u))
	return u
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.do(http.MethodGet, "/health", "", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	resp, err := http.Get(ts.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `secrets_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestUsersAndLogin(t *testing.T) {
	ts := newTestServer(t)
	root := ts.register("root", models.RoleAdmin)
	alice := ts.register("alice", "")
	assert.Equal(t, models.RoleUser, alice.Role)

	code, env := ts.do(http.MethodPost, "/api/users", "", "", createUserRequest{Username: "alice", Password: "x"})
	assert.Equal(t, http.StatusConflict, code)
	assert.NotEmpty(t, env.Error)

	code, _ = ts.do(http.MethodPost, "/api/users", "alice", "alice-pw", createUserRequest{Username: "eve", Password: "x", Role: "admin"})
	assert.Equal(t, http.StatusForbidden, code)

	code, env = ts.do(http.MethodPost, "/api/auth/login", "", "", loginRequest{Username: "root", Password: "root-pw"})
	require.Equal(t, http.StatusOK, code)
	var lr loginResponse
	require.NoError(t, json.Unmarshal(env.Data, &lr))
	assert.Equal(t, models.RoleAdmin, lr.Role)

	code, env = ts.do(http.MethodPost, "/api/auth/login", "", "", loginRequest{Username: "root", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid credentials", env.Error)

	code, env = ts.do(http.MethodGet, "/api/users", "root", "root-pw", nil)
	require.Equal(t, http.StatusOK, code)
	var users []models.User
	require.NoError(t, json.Unmarshal(env.Data, &users))
	assert.Len(t, users, 2)
	assert.NotContains(t, string(env.Data), "password")

	code, env = ts.do(http.MethodGet, "/api/users", "alice", "alice-pw", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &users))
	require.Len(t, users, 1)
	assert.Equal(t, alice.ID, users[0].ID)
	assert.NotEqual(t, root.ID, users[0].ID)
}

func TestSecretsLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ts.register("root", models.RoleAdmin)
	ts.register("alice", "")
	ts.register("bob", "")

	code, env := ts.do(http.MethodPost, "/api/secrets", "alice", "alice-pw", access.NewSecret{SecretValue: "ghp_123", SecretType: "token"})
	require.Equal(t, http.StatusCreated, code, env.Error)
	var sec models.Secret
	require.NoError(t, json.Unmarshal(env.Data, &sec))
	require.NotNil(t, sec.ExpiresAt)
	path := "/api/secrets/" + strconv.FormatInt(sec.ID, 10)

	code, _ = ts.do(http.MethodGet, path, "alice", "alice-pw", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = ts.do(http.MethodGet, path, "bob", "bob-pw", nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = ts.do(http.MethodGet, path, "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = ts.do(http.MethodGet, path, "alice", "wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = ts.do(http.MethodGet, "/api/secrets/999", "alice", "alice-pw", nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = ts.do(http.MethodGet, "/api/secrets/abc", "alice", "alice-pw", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = ts.do(http.MethodPut, path, "alice", "alice-pw", models.SecretPatch{SecretValue: "ghp_456", SecretType: "token"})
	require.Equal(t, http.StatusOK, code, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, &sec))
	assert.Equal(t, "ghp_456", sec.SecretValue)

	code, env = ts.do(http.MethodGet, "/api/secrets/search?q=GHP", "alice", "alice-pw", nil)
	require.Equal(t, http.StatusOK, code)
	var found []models.Secret
	require.NoError(t, json.Unmarshal(env.Data, &found))
	assert.Len(t, found, 1)

	code, _ = ts.do(http.MethodGet, "/api/secrets/search?q=", "alice", "alice-pw", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = ts.do(http.MethodGet, "/api/secrets", "bob", "bob-pw", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(env.Data))

	code, env = ts.do(http.MethodGet, "/api/secrets", "root", "root-pw", nil)
	require.Equal(t, http.StatusOK, code)
	var all []models.Secret
	require.NoError(t, json.Unmarshal(env.Data, &all))
	assert.Len(t, all, 1)

	code, env = ts.do(http.MethodDelete, path, "alice", "alice-pw", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"deleted":true}`, string(env.Data))
	code, env = ts.do(http.MethodDelete, path, "alice", "alice-pw", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"deleted":false}`, string(env.Data))
}

func TestCreateSecret_BadInput(t *testing.T) {
	ts := newTestServer(t)
	ts.register("alice", "")

	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/api/secrets", strings.NewReader("{"))
	require.NoError(t, err)
	req.SetBasicAuth("alice", "alice-pw")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	code, _ := ts.do(http.MethodPost, "/api/secrets", "alice", "alice-pw", access.NewSecret{SecretValue: "v", ExpiryDays: -3})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAuditLogsAndStatistics(t *testing.T) {
	ts := newTestServer(t)
	ts.register("admin1", models.RoleAdmin)
	ts.register("alice", "")

	code, _ := ts.do(http.MethodPost, "/api/secrets", "alice", "alice-pw", access.NewSecret{SecretValue: "s1", SecretType: "password"})
	require.Equal(t, http.StatusCreated, code)
	code, _ = ts.do(http.MethodPost, "/api/secrets", "admin1", "admin1-pw", access.NewSecret{SecretValue: "s2", SecretType: "token"})
	require.Equal(t, http.StatusCreated, code)

	code, env := ts.do(http.MethodGet, "/api/statistics", "admin1", "admin1-pw", nil)
	require.Equal(t, http.StatusOK, code)
	var stats models.Statistics
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, int64(4), stats.TotalActions)
	assert.Equal(t, int64(2), stats.UniqueUsers)
	assert.Equal(t, "admin1", stats.FirstActiveUser)
	assert.Equal(t, "admin1", stats.LastActiveUser)

	code, _ = ts.do(http.MethodGet, "/api/statistics", "alice", "alice-pw", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = ts.do(http.MethodGet, "/api/audit_logs", "alice", "alice-pw", nil)
	require.Equal(t, http.StatusOK, code)
	var logs []models.AuditLog
	require.NoError(t, json.Unmarshal(env.Data, &logs))
	assert.Len(t, logs, 2)
}

func TestStatusFromError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{access.ErrUnauthorized, http.StatusUnauthorized},
		{access.ErrForbidden, http.StatusForbidden},
		{repository.ErrNotFound, http.StatusNotFound},
		{repository.ErrConflict, http.StatusConflict},
		{repository.ErrInvalidReference, http.StatusUnprocessableEntity},
		{repository.ErrValidation, http.StatusBadRequest},
		{repository.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{io.EOF, http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, statusFromError(c.err), "%v", c.err)
	}
}


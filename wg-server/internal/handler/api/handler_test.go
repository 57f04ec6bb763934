package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wg-lifecycle/wg-server/internal/auth"
	"wg-lifecycle/wg-server/internal/journal"
	"wg-lifecycle/wg-server/internal/logging"
	"wg-lifecycle/wg-server/internal/model"
	"wg-lifecycle/wg-server/internal/reconcile"
	"wg-lifecycle/wg-server/internal/registry"
	"wg-lifecycle/wg-server/internal/syncer"
)

type fakePasser struct {
	res syncer.PassResult
	err error
	// cancellable records whether the pass context could be cancelled.
	cancellable bool
}

func (f *fakePasser) Pass(ctx context.Context) (syncer.PassResult, error) {
	f.cancellable = ctx.Done() != nil
	return f.res, f.err
}

type fakeLister struct {
	entries []journal.Entry
	limit   int
}

func (f *fakeLister) List(ctx context.Context, limit int) ([]journal.Entry, error) {
	f.limit = limit
	return f.entries, nil
}

type testAPI struct {
	srv    *httptest.Server
	token  string
	reg    *registry.Registry
	passer *fakePasser
	passes *fakeLister
	logs   *test.Hook
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	iss, err := auth.NewIssuer("0123456789abcdef")
	require.NoError(t, err)
	token, err := iss.Issue("admin", time.Hour)
	require.NoError(t, err)

	priv, pub, err := registry.GenerateKeyPair()
	require.NoError(t, err)
	reg := registry.New(registry.Config{
		Server: model.Server{InterfaceName: "wg0", EndpointIP: "127.0.0.1", PrivateKey: priv, PublicKey: pub},
		Log:    logging.Discard(),
	})

	hash, err := auth.HashPassword("hunter22")
	require.NoError(t, err)
	admin := auth.Credentials{User: "admin", PasswordHash: hash}

	log, hook := test.NewNullLogger()
	ta := &testAPI{token: token, reg: reg, passer: &fakePasser{}, passes: &fakeLister{}, logs: hook}
	r := chi.NewRouter()
	NewHandler(reg, ta.passer, ta.passes, iss, admin, log).RegisterRoutes(r)
	ta.srv = httptest.NewServer(r)
	t.Cleanup(ta.srv.Close)
	return ta
}

func (ta *testAPI) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ta.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+ta.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestUnauthorized(t *testing.T) {
	ta := newTestAPI(t)

	resp, err := http.Get(ta.srv.URL + "/api/clients")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogin(t *testing.T) {
	ta := newTestAPI(t)

	var out struct {
		Token string `json:"token"`
	}
	ta.token = ""
	status := ta.do(t, http.MethodPost, "/api/login", map[string]string{"username": "admin", "password": "hunter22"}, &out)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, out.Token)

	ta.token = out.Token
	var clients []model.Client
	assert.Equal(t, http.StatusOK, ta.do(t, http.MethodGet, "/api/clients", nil, &clients))

	ta.token = ""
	status = ta.do(t, http.MethodPost, "/api/login", map[string]string{"username": "admin", "password": "nope"}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestClientCRUD(t *testing.T) {
	ta := newTestAPI(t)

	var created model.Client
	status := ta.do(t, http.MethodPost, "/api/clients", map[string]any{
		"login":                         "alice",
		"ip":                            "10.0.30.2",
		"allowed_ips":                   "10.0.30.2/32",
		"administrative_account_status": true,
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	assert.NotEmpty(t, created.UUID)
	assert.False(t, created.AccountStatus)

	var got model.Client
	require.Equal(t, http.StatusOK, ta.do(t, http.MethodGet, "/api/clients/"+created.UUID, nil, &got))
	assert.Equal(t, created.PublicKey, got.PublicKey)

	var list []model.Client
	require.Equal(t, http.StatusOK, ta.do(t, http.MethodGet, "/api/clients", nil, &list))
	assert.Len(t, list, 1)

	var updated model.Client
	status = ta.do(t, http.MethodPatch, "/api/clients/"+created.UUID, map[string]any{"full_name": "Alice"}, &updated)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Alice", updated.FullName)

	assert.Equal(t, http.StatusNoContent, ta.do(t, http.MethodDelete, "/api/clients/"+created.UUID, nil, nil))
	assert.Equal(t, http.StatusNotFound, ta.do(t, http.MethodGet, "/api/clients/"+created.UUID, nil, nil))
}

func TestClientErrors(t *testing.T) {
	ta := newTestAPI(t)

	status := ta.do(t, http.MethodPost, "/api/clients", map[string]any{
		"uuid":        "chosen",
		"login":       "alice",
		"ip":          "10.0.30.2",
		"allowed_ips": "10.0.30.2/32",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	c, err := ta.reg.Create(context.Background(), model.NewClient{Login: "bob", IP: "10.0.30.3", AllowedIPs: "10.0.30.3/32"})
	require.NoError(t, err)

	status = ta.do(t, http.MethodPost, "/api/clients", map[string]any{
		"login":       "carol",
		"ip":          "10.0.30.4",
		"allowed_ips": "10.0.30.4/32",
		"public_key":  c.PublicKey,
	}, nil)
	assert.Equal(t, http.StatusConflict, status)

	status = ta.do(t, http.MethodPatch, "/api/clients/"+c.UUID, map[string]any{"account_status": true}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	assert.Equal(t, http.StatusNotFound, ta.do(t, http.MethodDelete, "/api/clients/missing", nil, nil))
}

func TestServer(t *testing.T) {
	ta := newTestAPI(t)

	var s model.Server
	require.Equal(t, http.StatusOK, ta.do(t, http.MethodPatch, "/api/server", map[string]any{"endpoint_dns": "vpn.example.com"}, &s))
	assert.Equal(t, "vpn.example.com", s.EndpointDNS)

	var got map[string]any
	require.Equal(t, http.StatusOK, ta.do(t, http.MethodGet, "/api/server", nil, &got))
	assert.Equal(t, "wg0", got["interface_name"])
	assert.NotContains(t, got, "private_key")
}

func TestReconcile(t *testing.T) {
	ta := newTestAPI(t)
	ta.passer.res = syncer.PassResult{
		StartedAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		Peers: reconcile.Result{
			Added: []string{"KX"},
			Failures: []*model.PeerError{
				{Kind: model.PeerTimeout, Op: model.OpRemovePeer, PublicKey: "KY", Err: context.DeadlineExceeded},
			},
		},
		AccountChanges: 1,
		Saved:          true,
	}

	var out PassSummary
	require.Equal(t, http.StatusOK, ta.do(t, http.MethodPost, "/api/reconcile", nil, &out))
	assert.Equal(t, []string{"KX"}, out.Added)
	assert.Empty(t, out.Removed)
	require.Len(t, out.Failures, 1)
	assert.Contains(t, out.Failures[0], "KY")
	assert.True(t, out.Saved)
	assert.False(t, ta.passer.cancellable)

	ta.passer.err = syncer.ErrPassInProgress
	assert.Equal(t, http.StatusConflict, ta.do(t, http.MethodPost, "/api/reconcile", nil, nil))
}

func TestAdminActionsAreLoggedWithSubject(t *testing.T) {
	ta := newTestAPI(t)

	var c model.Client
	require.Equal(t, http.StatusCreated, ta.do(t, http.MethodPost, "/api/clients", map[string]any{
		"login":       "alice",
		"ip":          "10.0.30.2",
		"allowed_ips": "10.0.30.2/32",
	}, &c))

	entry := ta.logs.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "admin action", entry.Message)
	assert.Equal(t, "create client", entry.Data["action"])
	assert.Equal(t, c.UUID, entry.Data["target"])
	assert.Equal(t, "admin", entry.Data["subject"])
}

func TestListPasses(t *testing.T) {
	ta := newTestAPI(t)
	ta.passes.entries = []journal.Entry{{ID: 2, Added: 1}, {ID: 1}}

	var out []journal.Entry
	require.Equal(t, http.StatusOK, ta.do(t, http.MethodGet, "/api/passes?limit=5", nil, &out))
	assert.Len(t, out, 2)
	assert.Equal(t, 5, ta.passes.limit)
}

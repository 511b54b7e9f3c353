// Package testserver runs the full HTTP stack over an in-memory store for
// end-to-end tests.
package testserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rpggio/marginalia/internal/auth"
	"github.com/rpggio/marginalia/internal/mcp"
	"github.com/rpggio/marginalia/internal/sqlstore"
	"github.com/rpggio/marginalia/internal/transport"
	"github.com/rpggio/marginalia/internal/workbench"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type TestServer struct {
	Server   *httptest.Server
	DB       *sqlstore.DB
	API      *workbench.API
	Verifier *auth.Verifier
}

func New(t *testing.T) *TestServer {
	t.Helper()

	db, err := sqlstore.OpenMemory()
	require.NoError(t, err)

	api := workbench.New(db, workbench.Config{}, nil)
	verifier := auth.NewVerifier(testSecret)
	handler := mcp.NewHandler(api)
	server := httptest.NewServer(transport.NewServer(handler, transport.Options{
		Auth: transport.AuthMiddleware(verifier),
	}))

	t.Cleanup(func() {
		server.Close()
		_ = db.Close()
	})

	return &TestServer{Server: server, DB: db, API: api, Verifier: verifier}
}

// Token issues a bearer token for userID valid for ttl.
func (ts *TestServer) Token(t *testing.T, userID, name string, ttl time.Duration) string {
	t.Helper()
	token, err := ts.Verifier.Issue(auth.Identity{UserID: userID, Name: name}, ttl)
	require.NoError(t, err)
	return token
}

// Call posts one JSON-RPC request and returns the decoded response.
func (ts *TestServer) Call(t *testing.T, token, method string, params any) transport.Response {
	t.Helper()

	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.Server.URL+"/rpc", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out transport.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// Result calls method, requires success and decodes the result into out.
func (ts *TestServer) Result(t *testing.T, token, method string, params, out any) {
	t.Helper()
	resp := ts.Call(t, token, method, params)
	require.Nil(t, resp.Error, "%s failed: %+v", method, resp.Error)
	if out == nil {
		return
	}
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

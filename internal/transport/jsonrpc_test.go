package transport

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRequest(t *testing.T) {
	body := bytes.NewBufferString(`{"jsonrpc":"2.0","method":"load_project","params":{"project_id":"p1"},"id":1}`)
	req, err := ParseRequest(body)
	require.NoError(t, err)
	require.Equal(t, "load_project", req.Method)
	require.Equal(t, json.RawMessage(`{"project_id":"p1"}`), req.Params)
	require.False(t, req.IsNotification())
}

func TestParseRequest_Notification(t *testing.T) {
	req, err := ParseRequest(strings.NewReader(`{"jsonrpc":"2.0","method":"list_projects"}`))
	require.NoError(t, err)
	require.True(t, req.IsNotification())
}

func TestParseRequest_ErrorCodes(t *testing.T) {
	_, err := ParseRequest(strings.NewReader(`{"jsonrpc":`))
	require.Error(t, err)
	require.Equal(t, ErrParseCode, ErrorCode(err))

	_, err = ParseRequest(strings.NewReader(`{"jsonrpc":"2.0","id":1}`))
	require.Error(t, err)
	require.Equal(t, ErrInvalidReq, ErrorCode(err))

	rec := httptest.NewRecorder()
	body := http.MaxBytesReader(rec, io.NopCloser(strings.NewReader(`{"jsonrpc":"2.0","method":"save_project","params":{"pad":"`+strings.Repeat("x", 64)+`"}}`)), 16)
	_, err = ParseRequest(body)
	require.Error(t, err)
	require.Equal(t, ErrInvalidReq, ErrorCode(err))
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, 1, ErrInvalidParams, "bad params", map[string]string{"code": "INVALID_INPUT"})

	require.Equal(t, 200, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, ErrInvalidParams, resp.Error.Code)
	require.Equal(t, "INVALID_INPUT", resp.Error.Data.(map[string]any)["code"])
}

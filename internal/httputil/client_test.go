package httputil

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardClientGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSONOK(w, map[string]string{"path": r.URL.Path})
	}))
	defer srv.Close()

	var client HTTPClient = NewStandardClient(nil)
	resp, err := client.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"path":"/api/status"}`, string(body))
}

func TestMockHTTPClientQueue(t *testing.T) {
	boom := errors.New("connection refused")
	m := NewMockHTTPClient().
		AddResponse(http.StatusOK, `{"ok":true}`).
		AddErrorResponse(boom)

	resp, err := m.Get("http://localhost/api/status")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"ok":true}`, string(body))

	_, err = m.Get("http://localhost/api/status")
	assert.ErrorIs(t, err, boom)

	resp, err = m.Get("http://localhost/api/pose/history")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, 3, m.RequestCount())
	require.NotNil(t, m.LastRequest())
	assert.Equal(t, "/api/pose/history", m.LastRequest().URL.Path)
}

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolhive/api/internal/auth"
	"github.com/toolhive/api/internal/middleware"
)

func newTextkitServer(t *testing.T) (http.Handler, string) {
	t.Helper()

	jwtMgr := auth.NewJWTManager("test-secret")
	token, err := jwtMgr.GenerateAccessToken(uuid.New(), "user@example.com", auth.RoleUser)
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewTextkitHandler(stubChecker{allow: true}, testLogger()).RegisterRoutes(mux)

	return middleware.RequireUser(jwtMgr)(mux), token
}

func postTool(t *testing.T, handler http.Handler, token, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestCountText(t *testing.T) {
	handler, token := newTextkitServer(t)

	rr := postTool(t, handler, token, "/api/v1/tools/char-counter", `{"text": "Hello world."}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Characters int `json:"characters"`
		Words      int `json:"words"`
		Sentences  int `json:"sentences"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 12, resp.Characters)
	assert.Equal(t, 2, resp.Words)
	assert.Equal(t, 1, resp.Sentences)
}

func TestConvertTimestamp_Unix(t *testing.T) {
	handler, token := newTextkitServer(t)

	rr := postTool(t, handler, token, "/api/v1/tools/timestamp-converter", `{"unix": 1700000000}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		UTC     string `json:"utc"`
		Weekday string `json:"weekday"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "2023-11-14T22:13:20Z", resp.UTC)
	assert.Equal(t, "Tuesday", resp.Weekday)
}

func TestConvertTimestamp_Date(t *testing.T) {
	handler, token := newTextkitServer(t)

	rr := postTool(t, handler, token, "/api/v1/tools/timestamp-converter", `{"date": "2023-11-14T22:13:20Z"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Unix int64 `json:"unix"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, int64(1700000000), resp.Unix)
}

func TestConvertTimestamp_BadInput(t *testing.T) {
	handler, token := newTextkitServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"neither field", `{}`},
		{"both fields", `{"unix": 1, "date": "2023-11-14"}`},
		{"unparsable date", `{"date": "next tuesday"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postTool(t, handler, token, "/api/v1/tools/timestamp-converter", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
		})
	}
}

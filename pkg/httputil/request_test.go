package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "valid object", body: `{"port": 8080}`},
		{name: "invalid", body: `{invalid}`, wantErr: "invalid JSON"},
		{name: "empty body", body: ``, wantErr: "empty body"},
		{name: "trailing data", body: `{} {}`, wantErr: "trailing data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/test", strings.NewReader(tt.body))
			var dest map[string]interface{}

			err := ParseJSON(req, &dest)

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseJSONOrError(t *testing.T) {
	req := httptest.NewRequest("POST", "/test", strings.NewReader(`nope`))
	w := httptest.NewRecorder()
	var dest map[string]interface{}

	ok := ParseJSONOrError(w, req, &dest)

	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseJSONOrError_TooLarge(t *testing.T) {
	handler := MaxBytesMiddleware(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var dest map[string]interface{}
		if ParseJSONOrError(w, r, &dest) {
			w.WriteHeader(http.StatusOK)
		}
	}))
	req := httptest.NewRequest("POST", "/test", strings.NewReader(`{"key": "a value well past eight bytes"}`))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestPathParam(t *testing.T) {
	req := httptest.NewRequest("GET", "/plugins/alpha", nil)
	req = mux.SetURLVars(req, map[string]string{"name": "alpha"})

	assert.Equal(t, "alpha", PathParam(req, "name"))
	assert.Equal(t, "", PathParam(req, "other"))
}

func TestParseQueryString(t *testing.T) {
	req := httptest.NewRequest("GET", "/plugins?state=active", nil)

	assert.Equal(t, "active", ParseQueryString(req, "state", ""))
	assert.Equal(t, "none", ParseQueryString(req, "kind", "none"))
}

func TestParseQueryBool(t *testing.T) {
	req := httptest.NewRequest("GET", "/test?transitive=true&bad=maybe", nil)

	val, err := ParseQueryBool(req, "transitive", false)
	assert.NoError(t, err)
	assert.True(t, val)

	val, err = ParseQueryBool(req, "missing", true)
	assert.NoError(t, err)
	assert.True(t, val)

	_, err = ParseQueryBool(req, "bad", false)
	assert.Error(t, err)
}

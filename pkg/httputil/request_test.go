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
	var dest struct {
		Name string `json:"name"`
	}
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"loft"}`))
	require.NoError(t, ParseJSON(r, &dest))
	assert.Equal(t, "loft", dest.Name)

	r = httptest.NewRequest("POST", "/", strings.NewReader(`{broken`))
	assert.Error(t, ParseJSON(r, &dest))
}

func TestParseJSONOrErrorWrites400(t *testing.T) {
	var dest struct{}
	rec := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/", strings.NewReader(`not json`))

	ok := ParseJSONOrError(rec, r, &dest)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParsePathInt64(t *testing.T) {
	r := mux.SetURLVars(httptest.NewRequest("GET", "/pages/30", nil), map[string]string{"id": "30"})

	id, err := ParsePathInt64(r, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(30), id)

	r = mux.SetURLVars(httptest.NewRequest("GET", "/pages/x", nil), map[string]string{"id": "x"})
	_, err = ParsePathInt64(r, "id")
	assert.Error(t, err)

	_, err = ParsePathInt64(httptest.NewRequest("GET", "/", nil), "id")
	assert.Error(t, err)
}

func TestParseQueryInt(t *testing.T) {
	r := httptest.NewRequest("GET", "/?limit=25", nil)
	v, err := ParseQueryInt(r, "limit", 50)
	require.NoError(t, err)
	assert.Equal(t, 25, v)

	v, err = ParseQueryInt(httptest.NewRequest("GET", "/", nil), "limit", 50)
	require.NoError(t, err)
	assert.Equal(t, 50, v)

	_, err = ParseQueryInt(httptest.NewRequest("GET", "/?limit=many", nil), "limit", 50)
	assert.Error(t, err)
}

func TestParseQueryString(t *testing.T) {
	r := httptest.NewRequest("GET", "/?type=mention", nil)
	assert.Equal(t, "mention", ParseQueryString(r, "type", "all"))
	assert.Equal(t, "all", ParseQueryString(r, "missing", "all"))
}

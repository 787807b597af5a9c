package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

var errMissing = errors.New("thing missing")

func TestRespondErrorMatchesWrappedRule(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, nil, "test", errors.Join(errors.New("ctx"), errMissing),
		Rule{Err: errMissing, Status: http.StatusNotFound, Title: "Not Found"})

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Equal(t, "Not Found", problem.Title)
	require.Contains(t, problem.Detail, "thing missing")
}

func TestRespondErrorHidesUnmatched(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, nil, "test", errors.New("secret dsn"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "secret")
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var target struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","extra":1}`))
	require.Error(t, DecodeJSON(req, &target))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}`))
	require.NoError(t, DecodeJSON(req, &target))
	require.Equal(t, "a", target.Name)
}

package httpx

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]int{"n": 1})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"n":1}`, rec.Body.String())
}

func TestWriteJSONUnencodable(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, map[string]any{"ch": make(chan int)})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"server_error","message":"internal server error"}`, rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	type body struct {
		Name string `json:"name"`
	}
	decode := func(raw string) (body, error) {
		var b body
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw))
		err := DecodeJSON(req, &b)
		return b, err
	}

	got, err := decode(`{"name":"ada"}` + "\n")
	require.NoError(t, err)
	require.Equal(t, "ada", got.Name)

	for _, raw := range []string{``, `[]`, `{"name":1}`, `{"name":"a"} {"name":"b"}`, `{"name":"a"} x`} {
		_, err := decode(raw)
		require.Error(t, err, raw)
	}

	_, err = decode(`{"name":"` + strings.Repeat("a", MaxBodyBytes) + `"}`)
	require.Error(t, err)
}

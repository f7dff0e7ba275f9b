package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wpre/internal/db"
	"wpre/internal/types"
)

type failingStore struct{}

func (failingStore) Load(context.Context) (types.Parameters, error) {
	return nil, types.NewAppError(types.ErrCodeUnexpected, "failed to load parameters", errors.New("down"))
}
func (failingStore) Save(context.Context, types.Parameters) error {
	return types.NewAppError(types.ErrCodeUnexpected, "failed to save parameters", errors.New("down"))
}
func (failingStore) Reset(context.Context) error {
	return types.NewAppError(types.ErrCodeUnexpected, "failed to save parameters", errors.New("down"))
}

func makeParamsRouter(store types.ParameterStore) http.Handler {
	r := chi.NewRouter()
	NewParamsHandler(store, quietLogger()).RegisterRoutes(r)
	return r
}

func doParams(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestParamsStatus_SaveThenRead(t *testing.T) {
	store := db.NewMemoryStore(types.Parameters{"mode": "auto"})
	router := makeParamsRouter(store)

	rec := doParams(router, http.MethodPost, "/api_afc_enc_wpre/status", `{"mode":"manual","threshold":30}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"OK":"Status file updated"}`, rec.Body.String())

	rec = doParams(router, http.MethodPost, "/api_afc_enc_wpre/status", ``)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"OK":{"mode":"manual","threshold":30}}`, rec.Body.String())
}

func TestParamsStatus_EmptyObjectReads(t *testing.T) {
	store := db.NewMemoryStore(types.Parameters{"mode": "auto"})

	rec := doParams(makeParamsRouter(store), http.MethodPost, "/api_afc_enc_wpre/status", `{}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"OK":{"mode":"auto"}}`, rec.Body.String())
}

func TestParamsStatus_NonObjectRejected(t *testing.T) {
	rec := doParams(makeParamsRouter(db.NewMemoryStore(nil)), http.MethodPost, "/api_afc_enc_wpre/status", `[1,2]`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERROR")
}

func TestParamsReset(t *testing.T) {
	store := db.NewMemoryStore(types.Parameters{"mode": "auto"})
	require.NoError(t, store.Save(context.Background(), types.Parameters{"mode": "off"}))
	router := makeParamsRouter(store)

	rec := doParams(router, http.MethodGet, "/api_afc_enc_wpre/reset", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"OK":"Reset Done"}`, rec.Body.String())

	params, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "auto", params["mode"])
}

func TestParams_StoreFailuresAre500(t *testing.T) {
	router := makeParamsRouter(failingStore{})

	cases := []struct {
		method, path, body, want string
	}{
		{http.MethodPost, "/api_afc_enc_wpre/status", ``, "failed to load parameters"},
		{http.MethodPost, "/api_afc_enc_wpre/status", `{"a":1}`, "failed to save parameters"},
		{http.MethodGet, "/api_afc_enc_wpre/reset", ``, "failed to save parameters"},
	}
	for _, tc := range cases {
		rec := doParams(router, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, tc.path)
		assert.JSONEq(t, `{"ERROR":"`+tc.want+`"}`, rec.Body.String())
	}
}

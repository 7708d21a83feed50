package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "normative/pkg/domain-errors"
	"normative/pkg/platform/sentinel"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestWriteErrorInternalOmitsDescription(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, domainerrors.New(domainerrors.CodeInternal, "db failed"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "internal", body["error"])
	_, leaked := body["error_description"]
	assert.False(t, leaked, "internal details must not reach clients")
}

func TestWriteErrorIntegrityIsOpaque(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, domainerrors.New(domainerrors.CodeIntegrity, "content hash mismatch"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "integrity_violation", body["error"])
	assert.Empty(t, body["error_description"])
}

func TestWriteErrorClientErrorsIncludeDescription(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, domainerrors.New(domainerrors.CodeInvalidInput, "unknown concept"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "invalid_input", body["error"])
	assert.Equal(t, "unknown concept", body["error_description"])
}

func TestWriteErrorMapsSentinels(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, sentinel.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	WriteError(w, sentinel.ErrStaleVersion)
	assert.Equal(t, http.StatusConflict, w.Code)
}

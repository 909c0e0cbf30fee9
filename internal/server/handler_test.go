package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harshithgowdakt/heapdb/internal/engine"
)

func testHandler(t *testing.T) *QueryHandler {
	t.Helper()
	eng, err := engine.Open(t.TempDir(), false, nil)
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	return NewQueryHandler(eng, nil)
}

func doQuery(t *testing.T, h *QueryHandler, query string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(query))
	w := httptest.NewRecorder()
	h.HandleQuery(w, req)
	return w
}

func TestHandleQueryLifecycle(t *testing.T) {
	h := testHandler(t)

	w := doQuery(t, h, "CREATE TABLE orders (id int64, total float64)")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "OK")

	w = doQuery(t, h, "INSERT INTO orders VALUES (1, 50.0), (2, 150.0)")
	require.Equal(t, http.StatusOK, w.Code)

	w = doQuery(t, h, "CREATE MATERIALIZED VIEW mv AS SELECT id FROM orders WHERE total > 100")
	require.Equal(t, http.StatusOK, w.Code)

	w = doQuery(t, h, "SELECT id FROM mv")
	require.Equal(t, http.StatusOK, w.Code)
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Equal(t, []string{"id", "2"}, lines)

	w = doQuery(t, h, "REFRESH MATERIALIZED VIEW mv")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "REFRESH 1")
}

func TestHandleQueryJSONFormat(t *testing.T) {
	h := testHandler(t)
	doQuery(t, h, "CREATE TABLE t (id int64)")
	doQuery(t, h, "INSERT INTO t VALUES (7)")

	req := httptest.NewRequest(http.MethodPost, "/?format=json", strings.NewReader("SELECT id FROM t"))
	w := httptest.NewRecorder()
	h.HandleQuery(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body struct {
		Data []map[string]interface{} `json:"data"`
		Rows int                      `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 1, body.Rows)
	require.EqualValues(t, 7, body.Data[0]["id"])
}

func TestHandleQueryErrors(t *testing.T) {
	h := testHandler(t)

	w := doQuery(t, h, "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doQuery(t, h, "SELEKT 1")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doQuery(t, h, "SELECT id FROM missing")
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Non-owners cannot refresh.
	doQuery(t, h, "CREATE TABLE orders (id int64)")
	doQuery(t, h, "CREATE MATERIALIZED VIEW mv AS SELECT * FROM orders")
	req := httptest.NewRequest(http.MethodPost, "/?user=mallory", strings.NewReader("REFRESH MATERIALIZED VIEW mv"))
	w = httptest.NewRecorder()
	h.HandleQuery(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlePing(t *testing.T) {
	h := testHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	h.HandlePing(w, req)
	require.Equal(t, "Ok.\n", w.Body.String())
}

package adminhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reifydb/internal/reifyerr"
)

type fakeExecutor struct {
	identity   string
	statements []string
	frames     []Frame
	err        error
}

func (f *fakeExecutor) Execute(_ context.Context, identity string, statements []string, _ map[string]any) ([]Frame, error) {
	f.identity = identity
	f.statements = statements
	return f.frames, f.err
}

func doRequest(t *testing.T, s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealthReportsOkWithoutAuth(t *testing.T) {
	s := New(&fakeExecutor{})
	rec := doRequest(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestQueryRejectsRequestWithoutCredentials(t *testing.T) {
	s := New(&fakeExecutor{})
	rec := doRequest(t, s, http.MethodPost, "/v1/query", `{"statements":["from users"]}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestQueryExecutesStatementsAndReturnsFrames(t *testing.T) {
	exec := &fakeExecutor{frames: []Frame{{Columns: []string{"id"}, Rows: [][]any{{float64(1)}}}}}
	s := New(exec)

	rec := doRequest(t, s, http.MethodPost, "/v1/query", `{"statements":["from users"]}`, map[string]string{
		"Authorization": "Bearer test-token",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test-token", exec.identity)
	assert.Equal(t, []string{"from users"}, exec.statements)

	var resp statementResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Frames, 1)
	assert.Equal(t, []string{"id"}, resp.Frames[0].Columns)
}

func TestCommandAcceptsApiKeyHeader(t *testing.T) {
	exec := &fakeExecutor{frames: []Frame{}}
	s := New(exec)

	rec := doRequest(t, s, http.MethodPost, "/v1/command", `{"statements":["update users"]}`, map[string]string{
		"X-Api-Key": "secret-key",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "secret-key", exec.identity)
}

func TestAdminTranslatesConstraintErrorToBadRequest(t *testing.T) {
	exec := &fakeExecutor{err: reifyerr.Constraint(reifyerr.CodeConstraintType, "bad type")}
	s := New(exec)

	rec := doRequest(t, s, http.MethodPost, "/v1/admin", `{"statements":["alter table users"]}`, map[string]string{
		"Authorization": "Bearer test-token",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryRejectsEmptyStatementList(t *testing.T) {
	s := New(&fakeExecutor{})
	rec := doRequest(t, s, http.MethodPost, "/v1/query", `{"statements":[]}`, map[string]string{
		"Authorization": "Bearer test-token",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

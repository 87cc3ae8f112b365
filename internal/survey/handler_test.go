package survey

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alouzou/sondage/backend/internal/auth"
	"github.com/alouzou/sondage/backend/internal/models"
)

func newRouter(f *fixture) http.Handler {
	h := NewHandler(f.svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	r.Route("/api/surveys", h.Register)
	return r
}

func do(t *testing.T, router http.Handler, p auth.Principal, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req = req.WithContext(auth.ContextWithPrincipal(req.Context(), p))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) models.SurveyView {
	t.Helper()
	var v models.SurveyView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []models.SurveyView {
	t.Helper()
	var v []models.SurveyView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHTTP_LunchPollScenario(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)

	rec := do(t, router, f.alice, http.MethodPost, "/api/surveys/create", `{"title":"Lunch poll","categoryId":3}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeView(t, rec)
	assert.NotZero(t, created.ID)
	assert.Equal(t, f.alice.UserID, created.CreatorID)
	assert.Equal(t, int64(3), created.CategoryID)
	assert.Equal(t, "Lunch poll", created.Title)

	path := fmt.Sprintf("/api/surveys/%d", created.ID)
	rec = do(t, router, f.alice, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decodeView(t, rec).ID)

	rec = do(t, router, f.alice, http.MethodGet, "/api/surveys/category/3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeList(t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)

	rec = do(t, router, f.root, http.MethodDelete, fmt.Sprintf("/api/surveys/delete/%d", created.ID), "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = do(t, router, f.alice, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestHTTP_CreateValidationBeatsAuthorization(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)

	rec := do(t, router, f.bob, http.MethodPost, "/api/surveys/create", `{"categoryId":3}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"title"`)
	assert.Zero(t, f.store.saves)
}

func TestHTTP_CreateMalformedBody(t *testing.T) {
	f := newFixture(t)

	rec := do(t, newRouter(f), f.alice, http.MethodPost, "/api/surveys/create", `{"title":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, f.store.saves)
}

func TestHTTP_CreateForbiddenForParticipant(t *testing.T) {
	f := newFixture(t)

	rec := do(t, newRouter(f), f.bob, http.MethodPost, "/api/surveys/create", `{"title":"Lunch poll","categoryId":3}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, f.store.saves)
}

func TestHTTP_DeleteForbiddenForCreator(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)
	rec := do(t, router, f.alice, http.MethodPost, "/api/surveys/create", `{"title":"Keep me","categoryId":1}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeView(t, rec).ID

	rec = do(t, router, f.alice, http.MethodDelete, fmt.Sprintf("/api/surveys/delete/%d", id), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, router, f.bob, http.MethodGet, fmt.Sprintf("/api/surveys/%d", id), "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHTTP_DeleteMissingIsNoContent(t *testing.T) {
	f := newFixture(t)

	rec := do(t, newRouter(f), f.root, http.MethodDelete, "/api/surveys/delete/999", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHTTP_EmptyListsAreArrays(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)

	for _, tc := range []struct {
		p    auth.Principal
		path string
	}{
		{f.bob, "/api/surveys/category/42"},
		{f.alice, "/api/surveys/creator/42"},
		{f.bob, "/api/surveys/my-surveys"},
		{f.bob, "/api/surveys/"},
		{f.bob, "/api/surveys"},
	} {
		rec := do(t, router, tc.p, http.MethodGet, tc.path, "")
		require.Equal(t, http.StatusOK, rec.Code, tc.path)
		assert.JSONEq(t, `[]`, rec.Body.String(), tc.path)
	}
}

func TestHTTP_ListByCreatorRequiresRole(t *testing.T) {
	f := newFixture(t)

	rec := do(t, newRouter(f), f.bob, http.MethodGet, "/api/surveys/creator/1", "")

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHTTP_ListAllAndMySurveys(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)
	require.Equal(t, http.StatusCreated,
		do(t, router, f.alice, http.MethodPost, "/api/surveys/create", `{"title":"A","categoryId":1}`).Code)
	require.Equal(t, http.StatusCreated,
		do(t, router, f.root, http.MethodPost, "/api/surveys/create", `{"title":"B","categoryId":2}`).Code)

	rec := do(t, router, f.bob, http.MethodGet, "/api/surveys/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeList(t, rec), 2)

	rec = do(t, router, f.alice, http.MethodGet, "/api/surveys/my-surveys", "")
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decodeList(t, rec)
	require.Len(t, mine, 1)
	assert.Equal(t, "A", mine[0].Title)
}

func TestHTTP_MySurveysMissingAccount(t *testing.T) {
	f := newFixture(t)

	rec := do(t, newRouter(f), auth.Principal{Username: "ghost"}, http.MethodGet, "/api/surveys/my-surveys", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrUserNotFound.Error())
}

func TestHTTP_InvalidIDs(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)

	for _, path := range []string{"/api/surveys/abc", "/api/surveys/0", "/api/surveys/category/x", "/api/surveys/creator/-4"} {
		rec := do(t, router, f.root, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
	rec := do(t, router, f.root, http.MethodDelete, "/api/surveys/delete/nope", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTP_Unauthenticated(t *testing.T) {
	f := newFixture(t)

	rec := do(t, newRouter(f), auth.Principal{}, http.MethodGet, "/api/surveys/", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHTTP_StoreFailureIsInternalError(t *testing.T) {
	f := newFixture(t)
	f.store.failAll = fmt.Errorf("connection refused")

	rec := do(t, newRouter(f), f.bob, http.MethodGet, "/api/surveys/", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}

func TestHTTP_ActivityAndExport(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)
	rec := do(t, router, f.alice, http.MethodPost, "/api/surveys/create", `{"title":"Lunch poll","categoryId":3}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeView(t, rec).ID

	rec = do(t, router, f.root, http.MethodGet, fmt.Sprintf("/api/surveys/%d/activity", id), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []models.SurveyActivity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActivityCreated, entries[0].Action)

	rec = do(t, router, f.alice, http.MethodPost, "/api/surveys/export", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, router, f.root, http.MethodPost, "/api/surveys/export", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var exp models.ExportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exp))
	assert.Equal(t, 1, exp.Count)

	rec = do(t, router, f.root, http.MethodGet, "/api/surveys/export/"+exp.Key, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Len(t, decodeList(t, rec), 1)

	rec = do(t, router, f.root, http.MethodGet, "/api/surveys/export/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, f.alice, http.MethodDelete, "/api/surveys/export/"+exp.Key, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, router, f.root, http.MethodDelete, "/api/surveys/export/"+exp.Key, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, f.root, http.MethodGet, "/api/surveys/export/"+exp.Key, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resource-api/internal/domain"
	"resource-api/internal/model"
	"resource-api/internal/repository/sqlite"
	"resource-api/internal/repository/sqlstore"
	"resource-api/internal/service"
)

const basePath = "/api/v1"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := sqlstore.NewResourceRepository(model.NewResourceModel(db, sqlite.Dialect{}))
	require.NoError(t, repo.Init(context.Background()))

	return routerFor(service.NewResourceService(repo))
}

func routerFor(svc service.ResourceService) *gin.Engine {
	logger := quietLogger()
	return NewRouter(testRouterConfig(), NewHandler(svc, logger), logger)
}

func testRouterConfig() RouterConfig {
	return RouterConfig{BasePath: basePath, MaxBodyBytes: 1 << 10}
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeObject(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestResourceLifecycle(t *testing.T) {
	router := newTestRouter(t)

	rec := do(router, http.MethodPost, basePath+"/resources", `{"name":"A"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeObject(t, rec)
	assert.Equal(t, float64(1), created["id"])
	assert.Equal(t, "A", created["name"])
	assert.Contains(t, created, "description")
	assert.Nil(t, created["description"])
	assert.NotEmpty(t, created["createdAt"])
	assert.NotEmpty(t, created["updatedAt"])

	rec = do(router, http.MethodGet, basePath+"/resources/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created, decodeObject(t, rec))

	rec = do(router, http.MethodPatch, basePath+"/resources/1", `{"description":"d"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	patched := decodeObject(t, rec)
	assert.Equal(t, float64(1), patched["id"])
	assert.Equal(t, "A", patched["name"])
	assert.Equal(t, "d", patched["description"])
	assert.Equal(t, created["createdAt"], patched["createdAt"])

	rec = do(router, http.MethodDelete, basePath+"/resources/1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = do(router, http.MethodGet, basePath+"/resources/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Resource not found"}`, rec.Body.String())

	rec = do(router, http.MethodDelete, basePath+"/resources/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Resource not found"}`, rec.Body.String())
}

func TestPutUpdatesLikePatch(t *testing.T) {
	router := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(router, http.MethodPost, basePath+"/resources", `{"name":"A","description":"d"}`).Code)

	rec := do(router, http.MethodPut, basePath+"/resources/1", `{"name":"B"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeObject(t, rec)
	assert.Equal(t, "B", body["name"])
	assert.Equal(t, "d", body["description"])
}

func TestNonNumericIDIsNotFound(t *testing.T) {
	router := newTestRouter(t)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			body := ""
			if method == http.MethodPut || method == http.MethodPatch {
				body = `{"name":"B"}`
			}
			rec := do(router, method, basePath+"/resources/abc", body)
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.JSONEq(t, `{"message":"Resource not found"}`, rec.Body.String())
		})
	}
}

func TestUpdateMissingResource(t *testing.T) {
	router := newTestRouter(t)

	rec := do(router, http.MethodPatch, basePath+"/resources/42", `{"name":"B"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Resource not found"}`, rec.Body.String())

	rec = do(router, http.MethodGet, basePath+"/resources", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestCreateValidation(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "missing name", body: `{"description":"d"}`, wantErr: "name is required"},
		{name: "null name", body: `{"name":null}`, wantErr: "name is required"},
		{name: "blank name", body: `{"name":"   "}`, wantErr: "name is required"},
		{name: "description of wrong type", body: `{"name":"A","description":5}`, wantErr: "description has an invalid value"},
		{name: "name of wrong type", body: `{"name":["A"]}`, wantErr: "name has an invalid value"},
		{name: "not an object", body: `"oops"`, wantErr: "request body must be a JSON object"},
		{name: "empty body", body: "", wantErr: "request body is required"},
		{name: "too large", body: `{"name":"` + strings.Repeat("x", 2048) + `"}`, wantErr: "request body too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(router, http.MethodPost, basePath+"/resources", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantErr, decodeObject(t, rec)["error"])
		})
	}

	rec := do(router, http.MethodPost, basePath+"/resources", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, decodeObject(t, rec)["error"])
}

func TestUpdateValidation(t *testing.T) {
	router := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(router, http.MethodPost, basePath+"/resources", `{"name":"A"}`).Code)

	rec := do(router, http.MethodPatch, basePath+"/resources/1", `{"name":null}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "name cannot be null", decodeObject(t, rec)["error"])

	rec = do(router, http.MethodPatch, basePath+"/resources/1", `"oops"`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "request body must be a JSON object", decodeObject(t, rec)["error"])

	rec = do(router, http.MethodPatch, basePath+"/resources/1", `{"description":5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "description has an invalid value", decodeObject(t, rec)["error"])

	rec = do(router, http.MethodPatch, basePath+"/resources/1", `{"name":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "name is required", decodeObject(t, rec)["error"])

	rec = do(router, http.MethodGet, basePath+"/resources/1", "")
	assert.Equal(t, "A", decodeObject(t, rec)["name"])
}

func TestListResources(t *testing.T) {
	router := newTestRouter(t)

	rec := do(router, http.MethodGet, basePath+"/resources", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	for _, body := range []string{`{"name":"A"}`, `{"name":"B"}`, `{"name":"A","description":"x"}`} {
		require.Equal(t, http.StatusCreated, do(router, http.MethodPost, basePath+"/resources", body).Code)
	}

	rec = do(router, http.MethodGet, basePath+"/resources", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 3)

	rec = do(router, http.MethodGet, basePath+"/resources?name=A", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var as []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &as))
	require.Len(t, as, 2)
	assert.Equal(t, float64(1), as[0]["id"])
	assert.Equal(t, float64(3), as[1]["id"])

	rec = do(router, http.MethodGet, basePath+"/resources?name=nobody", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(router, http.MethodGet, basePath+"/resources?color=red", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "color is not a filterable field", decodeObject(t, rec)["error"])
}

func TestCountAndLookup(t *testing.T) {
	router := newTestRouter(t)
	for _, body := range []string{`{"name":"B"}`, `{"name":"A"}`, `{"name":"A"}`} {
		require.Equal(t, http.StatusCreated, do(router, http.MethodPost, basePath+"/resources", body).Code)
	}

	rec := do(router, http.MethodGet, basePath+"/resources/count", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":3}`, rec.Body.String())

	rec = do(router, http.MethodGet, basePath+"/resources/count?name=A", "")
	assert.JSONEq(t, `{"count":2}`, rec.Body.String())

	rec = do(router, http.MethodGet, basePath+"/resources/lookup?name=A", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeObject(t, rec)["id"])

	rec = do(router, http.MethodGet, basePath+"/resources/lookup?name=Z", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Resource not found"}`, rec.Body.String())
}

func TestUnknownRoutes(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/", "/nope", basePath + "/widgets", "/resources", basePath + "/resources/", basePath + "/health/"} {
		rec := do(router, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.JSONEq(t, `{"message":"API not found"}`, rec.Body.String(), path)
	}
}

func TestListByCreatedAt(t *testing.T) {
	router := newTestRouter(t)
	rec := do(router, http.MethodPost, basePath+"/resources", `{"name":"A"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeObject(t, rec)

	query := url.Values{"createdAt": {created["createdAt"].(string)}}
	rec = do(router, http.MethodGet, basePath+"/resources?"+query.Encode(), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var found []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &found))
	require.Len(t, found, 1)
	assert.Equal(t, created["id"], found[0]["id"])

	rec = do(router, http.MethodGet, basePath+"/resources?createdAt=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "createdAt must be an RFC 3339 timestamp", decodeObject(t, rec)["error"])
}

func TestMetricsAndTracing(t *testing.T) {
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "metrics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := sqlstore.NewResourceRepository(model.NewResourceModel(db, sqlite.Dialect{}))
	require.NoError(t, repo.Init(context.Background()))

	cfg := testRouterConfig()
	cfg.Metrics = true
	cfg.Tracing = true
	cfg.ServiceName = "resource-api-test"
	logger := quietLogger()
	router := NewRouter(cfg, NewHandler(service.NewResourceService(repo), logger), logger)

	require.Equal(t, http.StatusCreated, do(router, http.MethodPost, basePath+"/resources", `{"name":"A"}`).Code)
	require.Equal(t, http.StatusOK, do(router, http.MethodGet, basePath+"/resources/1", "").Code)

	rec := do(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "gin_requests_total")
	assert.Contains(t, body, `url="`+basePath+`/resources/:id"`)
	assert.Contains(t, body, `url="`+basePath+`/resources"`)
	assert.NotContains(t, body, `url="`+basePath+`/resources/1"`)
}

func TestFailLogLevels(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantLevel logrus.Level
	}{
		{name: "validation", err: &domain.ValidationError{Field: "name", Message: "is required"}, wantLevel: logrus.InfoLevel},
		{name: "constraint", err: &domain.ConstraintError{Op: "insert resource", Err: errors.New("NOT NULL")}, wantLevel: logrus.WarnLevel},
		{name: "store", err: errors.New("disk I/O error"), wantLevel: logrus.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, hook := logtest.NewNullLogger()
			router := NewRouter(testRouterConfig(), NewHandler(failingService{err: tt.err}, logger), quietLogger())

			rec := do(router, http.MethodGet, basePath+"/resources", "")
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotNil(t, hook.LastEntry())
			assert.Equal(t, tt.wantLevel, hook.LastEntry().Level)
			assert.Equal(t, tt.err, hook.LastEntry().Data[logrus.ErrorKey])
		})
	}
}

func TestHealthAndHeaders(t *testing.T) {
	router := newTestRouter(t)

	rec := do(router, http.MethodGet, basePath+"/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	req := httptest.NewRequest(http.MethodGet, basePath+"/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))

	rec = do(router, http.MethodOptions, basePath+"/resources", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

// failingService fails every call with err.
type failingService struct {
	err error
}

func (f failingService) CreateResource(context.Context, domain.ResourceInput) (*domain.Resource, error) {
	return nil, f.err
}

func (f failingService) ListResources(context.Context, domain.Filter) ([]domain.Resource, error) {
	return nil, f.err
}

func (f failingService) GetResource(context.Context, int64) (*domain.Resource, error) {
	return nil, f.err
}

func (f failingService) UpdateResource(context.Context, int64, domain.ResourcePatch) (int64, []domain.Resource, error) {
	return 0, nil, f.err
}

func (f failingService) DeleteResource(context.Context, int64) (bool, error) {
	return false, f.err
}

func (f failingService) FindResource(context.Context, domain.Filter) (*domain.Resource, error) {
	return nil, f.err
}

func (f failingService) CountResources(context.Context, domain.Filter) (int64, error) {
	return 0, f.err
}

func (f failingService) Ready(context.Context) error {
	return f.err
}

func TestErrorsBelowControllerMapTo400(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{name: "store error", err: errors.New("disk I/O error"), wantMsg: "disk I/O error"},
		{name: "constraint error", err: &domain.ConstraintError{Op: "insert resource", Err: errors.New("NOT NULL")}, wantMsg: "insert resource: constraint violation: NOT NULL"},
		{name: "empty message", err: errors.New(""), wantMsg: msgUnknownError},
	}

	requests := []struct{ method, path, body string }{
		{http.MethodPost, basePath + "/resources", `{"name":"A"}`},
		{http.MethodGet, basePath + "/resources", ""},
		{http.MethodGet, basePath + "/resources/count", ""},
		{http.MethodGet, basePath + "/resources/lookup?name=A", ""},
		{http.MethodGet, basePath + "/resources/1", ""},
		{http.MethodPatch, basePath + "/resources/1", `{"name":"B"}`},
		{http.MethodDelete, basePath + "/resources/1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := routerFor(failingService{err: tt.err})
			for _, r := range requests {
				rec := do(router, r.method, r.path, r.body)
				assert.Equal(t, http.StatusBadRequest, rec.Code, "%s %s", r.method, r.path)
				assert.JSONEq(t, `{"error":`+mustJSON(t, tt.wantMsg)+`}`, rec.Body.String())
			}
		})
	}
}

func TestHealthReportsUnavailableStore(t *testing.T) {
	router := routerFor(failingService{err: errors.New("closed")})

	rec := do(router, http.MethodGet, basePath+"/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

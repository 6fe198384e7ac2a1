package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/insightx/insightx/internal/auth"
	"github.com/insightx/insightx/internal/config"
	"github.com/insightx/insightx/internal/query"
	"github.com/insightx/insightx/internal/schema"
	"github.com/insightx/insightx/internal/storage"
)

func TestHealthEndpoint(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Header().Get("X-Trace-ID") == "" {
		t.Fatal("expected trace header")
	}
}

func TestReadyEndpointReturns503WhenDependencyFails(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{
		Readiness: func(context.Context) error {
			return errors.New("dependency down")
		},
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error_code"] != "NOT_READY" || body["retryable"] != true {
		t.Fatalf("body = %#v", body)
	}
}

func TestMetricsEndpointIsPublic(t *testing.T) {
	h := NewHandler(loadConfig(t, map[string]string{"INSIGHTX_AUTH_REQUIRED": "true"}), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "insightx_http_requests_total") {
		t.Fatal("expected http request metrics")
	}
}

func TestProtectedRouteRequiresAuth(t *testing.T) {
	validator, err := auth.NewStaticAPIKeyValidator("k1:ops:analyst")
	if err != nil {
		t.Fatalf("validator setup failed: %v", err)
	}
	h := NewHandler(loadConfig(t, map[string]string{"INSIGHTX_AUTH_REQUIRED": "true"}), Dependencies{
		AuthMiddleware: auth.Middleware(nil, validator),
		Schema:         mustDescriptor(t),
	})

	unauthResp := httptest.NewRecorder()
	h.ServeHTTP(unauthResp, httptest.NewRequest(http.MethodGet, "/v1/schema", nil))
	if unauthResp.Code != http.StatusUnauthorized {
		t.Fatalf("unauth status = %d", unauthResp.Code)
	}

	authReq := httptest.NewRequest(http.MethodGet, "/v1/schema", nil)
	authReq.Header.Set("X-API-Key", "k1")
	authResp := httptest.NewRecorder()
	h.ServeHTTP(authResp, authReq)
	if authResp.Code != http.StatusOK {
		t.Fatalf("auth status = %d", authResp.Code)
	}
}

func TestAskRequiresAnalystRole(t *testing.T) {
	validator, err := auth.NewStaticAPIKeyValidator("k1:audit:viewer")
	if err != nil {
		t.Fatalf("validator setup failed: %v", err)
	}
	asker := &fakeAsker{}
	h := NewHandler(loadConfig(t, map[string]string{"INSIGHTX_AUTH_REQUIRED": "true"}), Dependencies{
		AuthMiddleware: auth.Middleware(nil, validator),
		Insight:        asker,
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"failure rate?"}`))
	req.Header.Set("X-API-Key", "k1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	if len(asker.questions) != 0 {
		t.Fatalf("asker called with %q", asker.questions)
	}
}

func TestAuthRequiredWithoutMiddlewareFailsClosed(t *testing.T) {
	h := NewHandler(loadConfig(t, map[string]string{"INSIGHTX_AUTH_REQUIRED": "true"}), Dependencies{Schema: mustDescriptor(t)})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/schema", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestSchemaEndpointReturnsDescriptor(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{Schema: mustDescriptor(t)})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/schema", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var body struct {
		Table   string          `json:"table"`
		Columns []schema.Column `json:"columns"`
		Rules   []schema.Rule   `json:"rules"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Table != "transactions" || len(body.Columns) != 19 || len(body.Rules) == 0 {
		t.Fatalf("body = %+v", body)
	}
}

func TestCombineReadinessChecksStopsOnFirstFailure(t *testing.T) {
	order := make([]int, 0, 3)
	combined := CombineReadinessChecks(
		func(_ context.Context) error {
			order = append(order, 1)
			return nil
		},
		nil,
		func(_ context.Context) error {
			order = append(order, 2)
			return errors.New("boom")
		},
		func(_ context.Context) error {
			order = append(order, 3)
			return nil
		},
	)

	if err := combined(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("execution order = %#v", order)
	}
}

func TestCheckDatasetSchemaDetectsDrift(t *testing.T) {
	descriptor := mustDescriptor(t)
	engine := &fakeEngine{result: query.Result{Columns: append(descriptor.ColumnNames()[1:], "loyalty_tier")}}

	err := CheckDatasetSchema(engine, descriptor)(context.Background())
	var drift schema.Drift
	if !errors.As(err, &drift) {
		t.Fatalf("error = %v, want schema.Drift", err)
	}
	if len(drift.Missing) != 1 || drift.Missing[0] != "transaction_id" {
		t.Fatalf("Missing = %v", drift.Missing)
	}
	if len(drift.Unknown) != 1 || drift.Unknown[0] != "loyalty_tier" {
		t.Fatalf("Unknown = %v", drift.Unknown)
	}
	if engine.requests[0].SQL != `SELECT * FROM "transactions" LIMIT 0` {
		t.Fatalf("readiness SQL = %q", engine.requests[0].SQL)
	}
}

func TestCheckDatasetSchemaPassesWhenInSync(t *testing.T) {
	descriptor := mustDescriptor(t)
	engine := &fakeEngine{result: query.Result{Columns: descriptor.ColumnNames()}}
	if err := CheckDatasetSchema(engine, descriptor)(context.Background()); err != nil {
		t.Fatalf("error = %v", err)
	}

	engine = &fakeEngine{err: errors.New("no such table: transactions")}
	if err := CheckDatasetSchema(engine, descriptor)(context.Background()); err == nil {
		t.Fatal("expected readiness error")
	}
}

func TestCheckObjectsReportsMissingSnapshot(t *testing.T) {
	store := &statStore{present: map[string]bool{"a.parquet": true}}
	if err := CheckObjects(store, []string{"a.parquet"})(context.Background()); err != nil {
		t.Fatalf("error = %v", err)
	}
	err := CheckObjects(store, []string{"a.parquet", "b.parquet"})(context.Background())
	if !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("error = %v, want ErrObjectNotFound", err)
	}
}

func loadConfig(t *testing.T, env map[string]string) config.Config {
	t.Helper()
	if env == nil {
		env = map[string]string{}
	}
	cfg, err := config.Load("insightx-api", mapLookup(env))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	return cfg
}

func mustDescriptor(t *testing.T) *schema.Descriptor {
	t.Helper()
	descriptor, err := schema.Default()
	if err != nil {
		t.Fatalf("schema.Default() error = %v", err)
	}
	return descriptor
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v (body=%s)", err, rr.Body.String())
	}
	return body
}

func mapLookup(values map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

type fakeEngine struct {
	result   query.Result
	err      error
	requests []query.Request
}

func (f *fakeEngine) Execute(_ context.Context, request query.Request) (query.Result, error) {
	f.requests = append(f.requests, request)
	return f.result, f.err
}

type statStore struct {
	present map[string]bool
}

func (s *statStore) Put(context.Context, string, io.Reader, int64, storage.PutOptions) (storage.ObjectInfo, error) {
	return storage.ObjectInfo{}, errors.New("read only")
}

func (s *statStore) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (s *statStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	if !s.present[key] {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key}, nil
}

func (s *statStore) Delete(context.Context, string) error {
	return errors.New("read only")
}

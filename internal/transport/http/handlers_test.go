package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillgate/skillgate/internal/gateway"
)

type stubPipeline struct {
	result   gateway.Result
	callerID string
	action   string
	params   map[string]any
	calls    int
}

func (s *stubPipeline) Handle(ctx context.Context, callerID, action string, params map[string]any) gateway.Result {
	s.calls++
	s.callerID = callerID
	s.action = action
	s.params = params
	return s.result
}

type stubProber struct {
	healthy bool
}

func (s stubProber) Health(ctx context.Context) bool { return s.healthy }

func newTestRouter(pipeline *stubPipeline, prober RuntimeProber) http.Handler {
	h := NewHandler(pipeline, prober)
	return NewRouter(h, NewThrottle(100, 100))
}

func postAction(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/actions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestActionAllowed(t *testing.T) {
	pipeline := &stubPipeline{result: gateway.Result{
		Allowed:  true,
		Response: "search results",
		Role:     "readonly",
		Action:   "search_web",
		State:    gateway.StateCompleted,
	}}
	router := newTestRouter(pipeline, stubProber{healthy: true})

	rec := postAction(t, router,
		`{"caller_id": "U123", "action": "search_web", "params": {"query": "go"}}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["allowed"])
	assert.Equal(t, "search results", resp["response"])
	assert.Nil(t, resp["reason"])

	assert.Equal(t, "U123", pipeline.callerID)
	assert.Equal(t, "search_web", pipeline.action)
	assert.Equal(t, map[string]any{"query": "go"}, pipeline.params)
}

func TestActionDeniedIsStillHTTP200(t *testing.T) {
	pipeline := &stubPipeline{result: gateway.Result{
		Allowed: false,
		Reason:  "Action 'run_code' is not permitted for role 'readonly'. Allowed actions: search_web.",
		Role:    "readonly",
		Action:  "run_code",
		State:   gateway.StateDenied,
	}}
	router := newTestRouter(pipeline, stubProber{healthy: true})

	rec := postAction(t, router, `{"caller_id": "U123", "action": "run_code"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["allowed"])
	assert.Nil(t, resp["response"])
	assert.Contains(t, resp["reason"], "not permitted")
}

func TestActionBadRequests(t *testing.T) {
	cases := map[string]string{
		"invalid json":      `{"caller_id": `,
		"missing caller_id": `{"action": "search_web"}`,
		"missing action":    `{"caller_id": "U123"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			pipeline := &stubPipeline{}
			router := newTestRouter(pipeline, stubProber{healthy: true})

			rec := postAction(t, router, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, 0, pipeline.calls, "malformed requests must not enter the pipeline")
		})
	}
}

func TestHealth(t *testing.T) {
	router := newTestRouter(&stubPipeline{}, stubProber{healthy: false})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// liveness does not depend on the runtime
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRuntimeHealth(t *testing.T) {
	healthy := newTestRouter(&stubPipeline{}, stubProber{healthy: true})
	rec := httptest.NewRecorder()
	healthy.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/runtime", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	down := newTestRouter(&stubPipeline{}, stubProber{healthy: false})
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/runtime", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestThrottleRejectsBursts(t *testing.T) {
	pipeline := &stubPipeline{result: gateway.Result{Allowed: true}}
	h := NewHandler(pipeline, stubProber{healthy: true})
	router := NewRouter(h, NewThrottle(1, 1))

	first := postAction(t, router, `{"caller_id": "U1", "action": "get_status"}`)
	assert.Equal(t, http.StatusOK, first.Code)

	second := postAction(t, router, `{"caller_id": "U1", "action": "get_status"}`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

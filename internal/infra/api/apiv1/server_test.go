//go:build !integration

package apiv1_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"lesson-pipeline/internal/domain"
	"lesson-pipeline/internal/domain/model"
	"lesson-pipeline/internal/domain/ports/repository"
	"lesson-pipeline/internal/infra/api"
	apiv1 "lesson-pipeline/internal/infra/api/apiv1"
	"lesson-pipeline/internal/infra/worker"
)

//
// ---------------- in-memory mocks ----------------
//

type fakeRunner struct {
	mu     sync.Mutex
	calls  int
	limits []int
	ctxErr error
	err    error
}

func (f *fakeRunner) RunBatch(ctx context.Context, limit int) (worker.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.limits = append(f.limits, limit)
	f.ctxErr = ctx.Err()
	if f.err != nil {
		return worker.BatchResult{}, f.err
	}
	return worker.BatchResult{BatchID: "01BATCH", Processed: 3, OKCount: 2, FailedCount: 1}, nil
}

type memJobs struct {
	reads int
	jobs  map[string]*model.GenerationJob
	err   error
}

func (m *memJobs) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.GenerationJob, error) {
	m.reads++
	if m.err != nil {
		return nil, m.err
	}
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return j, nil
}

//
// -------------------- test helpers --------------------
//

const testSecret = "test-operator-jwt-secret-0123456789"

func newLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

func newRouter(t *testing.T, runner *fakeRunner, jobs *memJobs) (*chi.Mux, *api.AuthManager) {
	t.Helper()
	auth, err := api.NewAuthManager(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}
	srv := apiv1.NewServer(runner, jobs, newLogger())
	r := api.NewRouter(newLogger(), 0, func(r chi.Router) {
		apiv1.RegisterAPIV1(r, srv, auth.RequireRole(newLogger(), api.RoleOperator, api.RoleAdmin))
	})
	return r, auth
}

func bearer(t *testing.T, auth *api.AuthManager, role string) string {
	t.Helper()
	tok, err := auth.Mint("ops@example.com", role)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return "Bearer " + tok
}

func do(r http.Handler, method, target, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

//
// -------------------- tests --------------------
//

func TestRunBatch_AuthBeforeStore(t *testing.T) {
	cases := []struct {
		name   string
		authz  func(*api.AuthManager) string
		status int
	}{
		{"no token", func(*api.AuthManager) string { return "" }, http.StatusUnauthorized},
		{"malformed", func(*api.AuthManager) string { return "Token abc" }, http.StatusUnauthorized},
		{"bad signature", func(*api.AuthManager) string { return "Bearer eyJhbGciOiJIUzI1NiJ9.e30.x" }, http.StatusUnauthorized},
		{"wrong role", func(a *api.AuthManager) string { return bearer(t, a, "viewer") }, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner, jobs := &fakeRunner{}, &memJobs{}
			r, auth := newRouter(t, runner, jobs)

			rec := do(r, http.MethodPost, "/api/v1/lesson-jobs/run-batch?limit=5", tc.authz(auth))
			if rec.Code != tc.status {
				t.Fatalf("want %d, got %d, body=%s", tc.status, rec.Code, rec.Body.String())
			}
			if runner.calls != 0 || jobs.reads != 0 {
				t.Fatalf("store touched before auth: runs=%d reads=%d", runner.calls, jobs.reads)
			}
		})
	}
}

func TestRunBatch_ReturnsCounts(t *testing.T) {
	for _, role := range []string{api.RoleOperator, api.RoleAdmin} {
		t.Run(role, func(t *testing.T) {
			runner := &fakeRunner{}
			r, auth := newRouter(t, runner, &memJobs{})

			rec := do(r, http.MethodPost, "/api/v1/lesson-jobs/run-batch?limit=500", bearer(t, auth, role))
			if rec.Code != http.StatusOK {
				t.Fatalf("want 200, got %d, body=%s", rec.Code, rec.Body.String())
			}
			var body apiv1.BatchResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Processed != 3 || body.OKCount != 2 || body.FailedCount != 1 {
				t.Fatalf("unexpected body %+v", body)
			}
			if runner.limits[0] != 500 {
				t.Fatalf("limit should be passed through for the runner to clamp, got %v", runner.limits)
			}
			if rec.Header().Get(api.TraceHeader) == "" {
				t.Error("expected a request id header")
			}
		})
	}
}

func TestRunBatch_DetachedFromRequest(t *testing.T) {
	runner := &fakeRunner{}
	r, auth := newRouter(t, runner, &memJobs{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/lesson-jobs/run-batch", nil).WithContext(ctx)
	req.Header.Set("Authorization", bearer(t, auth, api.RoleOperator))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if runner.calls != 1 {
		t.Fatalf("expected one run, got %d (status %d)", runner.calls, rec.Code)
	}
	if runner.ctxErr != nil {
		t.Fatalf("batch context must not inherit request cancellation, got %v", runner.ctxErr)
	}
}

func TestRunBatch_ErrorMapping(t *testing.T) {
	t.Run("400 non-integer limit", func(t *testing.T) {
		runner := &fakeRunner{}
		r, auth := newRouter(t, runner, &memJobs{})
		rec := do(r, http.MethodPost, "/api/v1/lesson-jobs/run-batch?limit=ten", bearer(t, auth, api.RoleOperator))
		if rec.Code != http.StatusBadRequest || runner.calls != 0 {
			t.Fatalf("want 400 without a run, got %d (runs=%d)", rec.Code, runner.calls)
		}
	})

	t.Run("409 batch in progress", func(t *testing.T) {
		r, auth := newRouter(t, &fakeRunner{err: domain.ErrBatchInProgress}, &memJobs{})
		rec := do(r, http.MethodPost, "/api/v1/lesson-jobs/run-batch", bearer(t, auth, api.RoleOperator))
		if rec.Code != http.StatusConflict {
			t.Fatalf("want 409, got %d", rec.Code)
		}
	})

	t.Run("500 setup failure", func(t *testing.T) {
		r, auth := newRouter(t, &fakeRunner{err: errors.New("db down")}, &memJobs{})
		rec := do(r, http.MethodPost, "/api/v1/lesson-jobs/run-batch", bearer(t, auth, api.RoleOperator))
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("want 500, got %d", rec.Code)
		}
	})

	t.Run("GET does not run a batch", func(t *testing.T) {
		runner := &fakeRunner{}
		r, auth := newRouter(t, runner, &memJobs{})
		rec := do(r, http.MethodGet, "/api/v1/lesson-jobs/run-batch", bearer(t, auth, api.RoleOperator))
		if rec.Code == http.StatusOK || runner.calls != 0 {
			t.Fatalf("GET must not run a batch: status=%d runs=%d", rec.Code, runner.calls)
		}
	})
}

func TestGetJob(t *testing.T) {
	finished := time.Now()
	jobs := &memJobs{jobs: map[string]*model.GenerationJob{
		"job-1": {
			ID: "job-1", Status: model.GenerationJobFailed, Attempts: 1, Subject: "Science", Topic: "Volcanoes",
			Locale: "en-AU", ImageStatus: model.ImageStatusNone, FailureKind: model.FailureValidation,
			LastError: "lesson validation failed", ErrorMessage: "lesson validation failed",
			ValidationErrors: []domain.ErrorDetail{{Path: "quiz[0].options", Message: "must contain at least 2 items"}},
			FinishedAt:       &finished,
		},
	}}
	r, auth := newRouter(t, &fakeRunner{}, jobs)

	rec := do(r, http.MethodGet, "/api/v1/lesson-jobs/job-1", bearer(t, auth, api.RoleOperator))
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d, body=%s", rec.Code, rec.Body.String())
	}
	var body apiv1.JobResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "failed" || body.FailureKind != "validation" || len(body.ValidationErrors) != 1 {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.LastError != body.ErrorMessage {
		t.Errorf("error fields differ: %q / %q", body.LastError, body.ErrorMessage)
	}

	if rec := do(r, http.MethodGet, "/api/v1/lesson-jobs/nope", bearer(t, auth, api.RoleOperator)); rec.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", rec.Code)
	}

	jobs.err = errors.New("db down")
	if rec := do(r, http.MethodGet, "/api/v1/lesson-jobs/job-1", bearer(t, auth, api.RoleOperator)); rec.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", rec.Code)
	}
}

func TestHealthAndMetricsAreOpen(t *testing.T) {
	r, _ := newRouter(t, &fakeRunner{}, &memJobs{})
	if rec := do(r, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("health: want 200, got %d", rec.Code)
	}
	if rec := do(r, http.MethodGet, "/metrics", ""); rec.Code != http.StatusOK {
		t.Fatalf("metrics: want 200, got %d", rec.Code)
	}
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/me/cnvkit/internal/logging"
	"github.com/me/cnvkit/internal/store"
	"github.com/me/cnvkit/pkg/model"
)

func testServer(t *testing.T) (*Server, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:", logging.Discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return New(st, logging.Discard()), st
}

// envelope is used to decode the standard response envelope.
type envelope struct {
	Status     string            `json:"status"`
	RequestID  string            `json:"request_id"`
	Timestamp  string            `json:"timestamp"`
	Data       json.RawMessage   `json:"data"`
	Pagination *model.Pagination `json:"pagination"`
	Error      *model.APIError   `json:"error"`
}

func do(t *testing.T, srv *Server, method, path string, wantStatus int) envelope {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != wantStatus {
		t.Fatalf("%s %s: status=%d, want %d, body=%s", method, path, w.Code, wantStatus, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("%s %s: Content-Type = %q", method, path, ct)
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: invalid JSON: %v", method, path, err)
	}
	if env.RequestID == "" || env.RequestID != w.Header().Get("X-Request-ID") {
		t.Errorf("request_id = %q, header = %q", env.RequestID, w.Header().Get("X-Request-ID"))
	}
	return env
}

func seedRun(t *testing.T, st store.Store, id string, state model.RunState, created time.Time) *model.Run {
	t.Helper()
	run := &model.Run{
		ID:         id,
		SampleName: "S-" + id,
		State:      state,
		WorkDir:    "/tmp/w",
		OutputDir:  "/tmp/o",
		Config:     map[string]string{"sample_name": "S"},
		CreatedAt:  created,
	}
	if err := st.CreateRun(context.Background(), run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	return run
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)
	env := do(t, srv, "GET", "/api/v1/health", http.StatusOK)
	if env.Status != "ok" || env.Error != nil {
		t.Errorf("envelope = %+v", env)
	}

	var data healthResponse
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Status != "healthy" || data.Store != "ok" || data.Version != Version {
		t.Errorf("health = %+v", data)
	}
}

func TestHealth_StoreClosed(t *testing.T) {
	srv, st := testServer(t)
	st.Close()

	env := do(t, srv, "GET", "/api/v1/health", http.StatusOK)
	var data healthResponse
	json.Unmarshal(env.Data, &data)
	if data.Status != "degraded" || data.Store != "unavailable" {
		t.Errorf("health = %+v, want degraded", data)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	srv, _ := testServer(t)
	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "req_caller")
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "req_caller" {
		t.Errorf("X-Request-ID = %q, want req_caller", got)
	}
}

func TestListRuns(t *testing.T) {
	srv, st := testServer(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedRun(t, st, "run_a", model.RunStateCompleted, base)
	seedRun(t, st, "run_b", model.RunStateFailed, base.Add(time.Minute))
	seedRun(t, st, "run_c", model.RunStateCompleted, base.Add(2*time.Minute))

	env := do(t, srv, "GET", "/api/v1/runs", http.StatusOK)
	var runs []model.Run
	if err := json.Unmarshal(env.Data, &runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 || runs[0].ID != "run_c" {
		t.Errorf("runs = %d, first = %q, want 3 newest first", len(runs), runs[0].ID)
	}
	if env.Pagination == nil || env.Pagination.Total != 3 || env.Pagination.HasMore {
		t.Errorf("pagination = %+v", env.Pagination)
	}

	env = do(t, srv, "GET", "/api/v1/runs?limit=1&offset=1", http.StatusOK)
	json.Unmarshal(env.Data, &runs)
	if len(runs) != 1 || runs[0].ID != "run_b" {
		t.Errorf("page = %+v, want run_b", runs)
	}
	if !env.Pagination.HasMore || env.Pagination.Limit != 1 || env.Pagination.Offset != 1 {
		t.Errorf("pagination = %+v", env.Pagination)
	}

	env = do(t, srv, "GET", "/api/v1/runs?state=COMPLETED", http.StatusOK)
	json.Unmarshal(env.Data, &runs)
	if len(runs) != 2 || env.Pagination.Total != 2 {
		t.Errorf("filtered = %d (total %d), want 2", len(runs), env.Pagination.Total)
	}
}

func TestListRuns_Empty(t *testing.T) {
	srv, _ := testServer(t)
	env := do(t, srv, "GET", "/api/v1/runs", http.StatusOK)
	if string(env.Data) != "[]" {
		t.Errorf("data = %s, want []", env.Data)
	}
}

func TestListRuns_BadQuery(t *testing.T) {
	srv, _ := testServer(t)
	for _, q := range []string{"limit=x", "offset=-", "state=DONE"} {
		env := do(t, srv, "GET", "/api/v1/runs?"+q, http.StatusBadRequest)
		if env.Status != "error" || env.Error == nil || env.Error.Code != model.ErrValidation {
			t.Errorf("%s: envelope = %+v", q, env)
		}
	}
}

func TestGetRun(t *testing.T) {
	srv, st := testServer(t)
	ctx := context.Background()
	seedRun(t, st, "run_x", model.RunStateCompleted, time.Now().UTC())
	code := 0
	task := &model.Task{
		ID: "task_1", RunID: "run_x", Stage: "batch", State: model.TaskStateSuccess,
		Command: []string{"cnvkit.py batch T.bam"}, MemoryMB: 4096, ExitCode: &code,
		Stdout: "ok\n", CreatedAt: time.Now().UTC(),
	}
	if err := st.CreateTask(ctx, task); err != nil {
		t.Fatal(err)
	}
	if err := st.CreateDeliverable(ctx, &model.Deliverable{
		ID: "dlv_1", RunID: "run_x", Stage: "collect", Path: "/tmp/o/S.seg",
		Type: model.FileTypeText, Manual: true, CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatal(err)
	}

	env := do(t, srv, "GET", "/api/v1/runs/run_x", http.StatusOK)
	var run model.Run
	if err := json.Unmarshal(env.Data, &run); err != nil {
		t.Fatal(err)
	}
	if run.ID != "run_x" || len(run.Tasks) != 1 || len(run.Deliverables) != 1 {
		t.Errorf("run = %+v", run)
	}
	if run.Tasks[0].Stdout != "" {
		t.Error("stdout leaked into run view")
	}

	env = do(t, srv, "GET", "/api/v1/runs/run_x/tasks/batch/logs", http.StatusOK)
	var logs map[string]any
	json.Unmarshal(env.Data, &logs)
	if logs["stdout"] != "ok\n" || logs["stage"] != "batch" {
		t.Errorf("logs = %v", logs)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	srv, _ := testServer(t)
	env := do(t, srv, "GET", "/api/v1/runs/run_missing", http.StatusNotFound)
	if env.Status != "error" || env.Error == nil || env.Error.Code != model.ErrNotFound {
		t.Errorf("envelope = %+v", env)
	}
	if string(env.Data) != "null" {
		t.Errorf("data = %s, want null", env.Data)
	}

	do(t, srv, "GET", "/api/v1/runs/run_missing/tasks/batch/logs", http.StatusNotFound)
	do(t, srv, "GET", "/api/v1/nowhere", http.StatusNotFound)
}

func TestReadOnly(t *testing.T) {
	srv, _ := testServer(t)
	env := do(t, srv, "POST", "/api/v1/runs/", http.StatusMethodNotAllowed)
	if env.Error == nil || env.Error.Code != model.ErrValidation {
		t.Errorf("envelope = %+v", env)
	}
}

package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmonize-tools/s4h-workbench/internal/adapter/dictionary"
	_ "github.com/harmonize-tools/s4h-workbench/internal/adapter/extract"
	"github.com/harmonize-tools/s4h-workbench/internal/config"
	"github.com/harmonize-tools/s4h-workbench/internal/engine"
	"github.com/harmonize-tools/s4h-workbench/internal/stage"
	"github.com/harmonize-tools/s4h-workbench/internal/state"
	"github.com/harmonize-tools/s4h-workbench/internal/telemetry"
	"github.com/harmonize-tools/s4h-workbench/internal/testutil"
	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

type fixture struct {
	server  *Server
	engine  *engine.Engine
	handler http.Handler
	dir     string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	logger := testutil.NewTestLogger(t)

	history := state.NewSQLiteStore(logger)
	require.NoError(t, history.Open(state.MemoryPath))
	t.Cleanup(func() { _ = history.Close() })

	metrics := telemetry.New(telemetry.Config{Enabled: true, Namespace: "test"})
	eng := engine.New(engine.Config{
		History:      history,
		Metrics:      metrics,
		Standardizer: dictionary.NewStandardizer(logger),
		LayoutParser: dictionary.NewLayoutParser(logger),
		Seed:         3,
		Logger:       logger,
	})

	var settings config.Settings
	settings.ApplyDefaults()
	srv := New(Config{Engine: eng, Metrics: metrics, Settings: settings, Logger: logger})

	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0600))
	}
	write("dict.csv", "variable_name,question,category\nid,identifier,Identification\nage,age in years,Health\nsex,sex,Health\n")
	write("a.csv", "id,age,sex\n1,30,\n2,40,\n3,,\n")
	write("b.csv", "id,age,sex\n4,50,\n")

	return &fixture{server: srv, engine: eng, handler: srv.Handler(), dir: dir}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) outcome(t *testing.T, method, path, body string, wantStatus int) OutcomeResponse {
	t.Helper()
	rec := f.do(t, method, path, body)
	require.Equal(t, wantStatus, rec.Code, rec.Body.String())
	var out OutcomeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (f *fixture) path(name string) string {
	return filepath.Join(f.dir, name)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestServer_GateRejectsWithConflict(t *testing.T) {
	f := setup(t)

	for _, path := range []string{"/api/prune", "/api/merge", "/api/translate", "/api/classify"} {
		out := f.outcome(t, http.MethodPost, path, "", http.StatusConflict)
		assert.False(t, out.OK, path)
		assert.Equal(t, core.KindPrecondition, out.Kind, path)
		assert.Equal(t, engine.LevelWarning, out.Level, path)
	}
	out := f.outcome(t, http.MethodPost, "/api/select", `{"categories":["Health"]}`, http.StatusConflict)
	assert.Contains(t, out.Message, "at least one loaded dataset")
}

func TestServer_Workflow(t *testing.T) {
	f := setup(t)

	out := f.outcome(t, http.MethodPost, "/api/dictionary", mustJSON(t, map[string]any{"path": f.path("dict.csv")}), http.StatusOK)
	assert.True(t, out.OK)
	assert.NotEmpty(t, out.RunID)

	out = f.outcome(t, http.MethodPost, "/api/extract",
		mustJSON(t, map[string]any{"inputs": []string{f.path("a.csv"), f.path("b.csv")}}), http.StatusOK)
	assert.Equal(t, "Extracted 2 dataset(s).", out.Message)

	out = f.outcome(t, http.MethodPost, "/api/prune", `{"nan_threshold": 0.9}`, http.StatusOK)
	assert.True(t, out.OK, out.Message)

	rec := f.do(t, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, f.engine.SessionID(), status.SessionID)
	assert.True(t, status.DictionaryLoaded)
	require.Len(t, status.Datasets, 2)
	for _, ds := range status.Datasets {
		assert.Equal(t, []string{"id", "age"}, ds.Names, "all-missing sex column pruned")
	}

	f.outcome(t, http.MethodPost, "/api/merge", `{"similarity_threshold": 1}`, http.StatusOK)
	assert.Equal(t, 1, f.engine.Store().Len())

	rec = f.do(t, http.MethodGet, "/api/columns", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cols []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cols))
	assert.Equal(t, []string{"id", "age"}, cols)

	out = f.outcome(t, http.MethodPost, "/api/select", `{"categories":["Health"],"key_column":"id","key_values":["1","4"]}`, http.StatusOK)
	assert.True(t, out.OK, out.Message)
	ds := f.engine.Store().Datasets()[0]
	assert.Equal(t, []string{"id", "age"}, ds.ColumnNames())
	assert.Equal(t, 2, ds.NumRows())

	exportDir := filepath.Join(f.dir, "out")
	out = f.outcome(t, http.MethodPost, "/api/export", mustJSON(t, map[string]any{"target": "datasets", "dir": exportDir}), http.StatusOK)
	assert.True(t, out.OK, out.Message)
	assert.FileExists(t, filepath.Join(exportDir, "dataframe_1.csv"))

	rec = f.do(t, http.MethodGet, "/api/history?limit=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []state.StageRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 3)
	assert.Equal(t, "export", runs[0].Stage)
}

func TestServer_ParameterAndBodyErrors(t *testing.T) {
	f := setup(t)

	rec := f.do(t, http.MethodPost, "/api/prune", `{"threshold": 1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")

	rec = f.do(t, http.MethodPost, "/api/dictionary", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	out := f.outcome(t, http.MethodPost, "/api/extract", `{"source":"ftp","inputs":["x"]}`, http.StatusUnprocessableEntity)
	assert.Equal(t, core.KindParameter, out.Kind)

	out = f.outcome(t, http.MethodPost, "/api/dictionary", mustJSON(t, map[string]any{"path": f.path("absent.csv")}), http.StatusBadGateway)
	assert.Equal(t, core.KindCollaborator, out.Kind)

	rec = f.do(t, http.MethodGet, "/api/history?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_ExploreAndAdopt(t *testing.T) {
	f := setup(t)

	rec := f.do(t, http.MethodPost, "/api/explore", `{"snippet":"y = 'boom' + 1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ExploreResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.OK)
	assert.NotEmpty(t, resp.Stderr)
	assert.Contains(t, resp.Error, "unknown binary op")
	assert.Zero(t, f.engine.Store().Len())

	rec = f.do(t, http.MethodPost, "/api/explore", `{"snippet":"result = table.new({'x': [1, 2], 'y': ['a', None]})\nn = 1\nprint('hi')"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = ExploreResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, "hi\n", resp.Stdout)
	assert.Equal(t, []string{"n"}, resp.Bound)
	require.NotNil(t, resp.Result)
	assert.Equal(t, []string{"x", "y"}, resp.Result.Columns)
	assert.Equal(t, [][]string{{"1", "a"}, {"2", ""}}, resp.Result.Data)

	out := f.outcome(t, http.MethodPost, "/api/explore/adopt", "", http.StatusOK)
	assert.True(t, out.OK)
	assert.Equal(t, 1, f.engine.Store().Len())

	rec = f.do(t, http.MethodPost, "/api/explore", `{"sample":"No such sample"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_SamplesResetAndLayout(t *testing.T) {
	f := setup(t)

	rec := f.do(t, http.MethodGet, "/api/samples", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Show first loaded dataset")

	f.engine.Store().Add(testutil.Sequence(t, "s", "x", 2))
	rec = f.do(t, http.MethodPost, "/api/reset", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, f.engine.Store().Len())

	f.engine.Store().SetFixedWidth(true, &core.Layout{Names: []string{"a"}, Specs: []core.Span{{Start: 0, End: 1}}})
	rec = f.do(t, http.MethodDelete, "/api/layout", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, f.engine.Store().FixedWidth())
}

func TestServer_Metrics(t *testing.T) {
	f := setup(t)
	f.outcome(t, http.MethodPost, "/api/prune", "", http.StatusConflict)

	rec := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `test_stage_runs_total{stage="prune",status="rejected"} 1`)
}

func TestServer_Events(t *testing.T) {
	f := setup(t)
	ts := httptest.NewServer(f.handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return f.server.Notifier().Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	f.outcome(t, http.MethodPost, "/api/merge", "", http.StatusConflict)

	scanner := bufio.NewScanner(resp.Body)
	var data string
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	require.NotEmpty(t, data)
	var out OutcomeResponse
	require.NoError(t, json.Unmarshal([]byte(data), &out))
	assert.Equal(t, "merge", out.Stage)
	assert.Equal(t, core.KindPrecondition, out.Kind)
}

func TestServer_ExploreIsBroadcast(t *testing.T) {
	f := setup(t)
	events := f.server.Notifier().Subscribe()
	defer f.server.Notifier().Unsubscribe(events)

	f.do(t, http.MethodPost, "/api/explore", `{"snippet":"result = table.new({'x': [1, 2, 3]})"}`)
	ok := <-events
	assert.Equal(t, stage.Explore, ok.Stage)
	assert.True(t, ok.OK())
	assert.Equal(t, "Snippet produced a result with 3 rows.", ok.Message)

	f.do(t, http.MethodPost, "/api/explore", `{"snippet":"'boom' + 1"}`)
	failed := <-events
	assert.Equal(t, core.KindSnippet, failed.Kind)
	assert.Contains(t, failed.Message, "Snippet failed")
}

func TestServer_Serve(t *testing.T) {
	f := setup(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/api/status")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestNotifier_BroadcastIsNonBlocking(t *testing.T) {
	n := NewNotifier()
	ch := n.Subscribe()
	defer n.Unsubscribe(ch)

	for i := 0; i < 20; i++ {
		n.Broadcast(engine.Outcome{Stage: "prune"})
	}
	assert.Len(t, ch, cap(ch))
	assert.Equal(t, 1, n.Len())
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/evolayout/pkg/config"
	"github.com/matzehuels/evolayout/pkg/graph"
	"github.com/matzehuels/evolayout/pkg/observability"
	"github.com/matzehuels/evolayout/pkg/pipeline"
	"github.com/matzehuels/evolayout/pkg/store"
)

func quickOptions() pipeline.Options {
	cfg := config.Default()
	cfg.Solver.Iterations = 40
	cfg.Multilevel.CoarsestIterations = 40
	cfg.Multilevel.FinestIterations = 10
	return pipeline.Options{Config: &cfg}
}

func triangle() graph.Snapshot {
	return graph.Snapshot{
		Label: "t0",
		Nodes: []graph.SnapshotNode{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		Edges: []graph.SnapshotEdge{{From: "a", To: "b"}, {From: "b", To: "c"}, {From: "c", To: "a"}},
	}
}

func newTestServer(t *testing.T, withStore bool) (*httptest.Server, *observability.Prometheus) {
	t.Helper()
	prom := observability.NewPrometheus(nil)
	opts := Options{Metrics: prom}
	if withStore {
		st, err := store.NewFileStore(t.TempDir())
		require.NoError(t, err)
		opts.Store = st
	}
	ts := httptest.NewServer(New(opts))
	t.Cleanup(ts.Close)
	return ts, prom
}

func post(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, false)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLayoutEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, true)
	opts := quickOptions()
	opts.Mode = pipeline.ModeMultilevel

	resp := post(t, ts.URL+"/v1/layout", LayoutRequest{Snapshot: triangle(), Options: opts, Save: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[LayoutResponse](t, resp)

	assert.Equal(t, pipeline.ModeMultilevel, out.Mode)
	assert.Equal(t, "t0", out.Snapshot.Label)
	require.Len(t, out.Snapshot.Nodes, 3)
	for _, n := range out.Snapshot.Nodes {
		assert.NotNil(t, n.X, "node %s has no position", n.ID)
	}

	get, err := http.Get(ts.URL + "/v1/runs/" + out.RunID)
	require.NoError(t, err)
	defer get.Body.Close()
	require.Equal(t, http.StatusOK, get.StatusCode)
	run := decode[store.Run](t, get)
	assert.Equal(t, out.RunID, run.ID)
	assert.Len(t, run.Frames, 1)
}

func TestLayoutEndpointErrors(t *testing.T) {
	ts, _ := newTestServer(t, false)

	resp, err := http.Post(ts.URL+"/v1/layout", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	e := decode[errorResponse](t, resp)
	assert.Equal(t, "INVALID_FORMAT", e.Error)

	empty := post(t, ts.URL+"/v1/layout", LayoutRequest{Snapshot: graph.Snapshot{}})
	assert.Equal(t, http.StatusBadRequest, empty.StatusCode)
	assert.Equal(t, "EMPTY_INPUT", decode[errorResponse](t, empty).Error)

	badMode := post(t, ts.URL+"/v1/layout", LayoutRequest{Snapshot: triangle(), Options: pipeline.Options{Mode: "timeline"}})
	assert.Equal(t, http.StatusBadRequest, badMode.StatusCode)

	noStore := post(t, ts.URL+"/v1/layout", LayoutRequest{Snapshot: triangle(), Options: quickOptions(), Save: true})
	assert.Equal(t, http.StatusNotImplemented, noStore.StatusCode)
}

func TestIncrementalEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, false)
	x0, x1 := 0.0, 10.0
	y := 0.0
	prev := graph.Snapshot{
		Nodes: []graph.SnapshotNode{{ID: "a", X: &x0, Y: &y}, {ID: "b", X: &x1, Y: &y}},
		Edges: []graph.SnapshotEdge{{From: "a", To: "b"}},
	}
	cur := graph.Snapshot{
		Nodes: []graph.SnapshotNode{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		Edges: []graph.SnapshotEdge{{From: "a", To: "b"}, {From: "b", To: "c"}},
	}

	resp := post(t, ts.URL+"/v1/incremental", IncrementalRequest{Previous: &prev, Current: cur, Options: quickOptions()})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[LayoutResponse](t, resp)
	assert.Equal(t, []string{"c"}, out.NewNodes)
	assert.Len(t, out.Pinning, 3)

	prev.Nodes[1].X = nil
	prev.Nodes[1].Y = nil
	bad := post(t, ts.URL+"/v1/incremental", IncrementalRequest{Previous: &prev, Current: cur})
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestTimelineAndRuns(t *testing.T) {
	ts, _ := newTestServer(t, true)
	second := triangle()
	second.Label = "t1"
	second.Nodes = append(second.Nodes, graph.SnapshotNode{ID: "d"})
	second.Edges = append(second.Edges, graph.SnapshotEdge{From: "c", To: "d"})

	resp := post(t, ts.URL+"/v1/timeline", TimelineRequest{Snapshots: []graph.Snapshot{triangle(), second}, Options: quickOptions()})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[TimelineResponse](t, resp)
	assert.True(t, out.Stored)
	require.Len(t, out.Frames, 2)
	assert.Equal(t, []string{"d"}, out.Frames[1].NewNodes)

	list, err := http.Get(ts.URL + "/v1/runs?limit=10")
	require.NoError(t, err)
	defer list.Body.Close()
	runs := decode[struct {
		Runs []store.Summary `json:"runs"`
	}](t, list)
	require.Len(t, runs.Runs, 1)
	assert.Equal(t, out.RunID, runs.Runs[0].ID)
	assert.Equal(t, 2, runs.Runs[0].Frames)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodDelete, ts.URL+"/v1/runs/"+out.RunID, nil)
	require.NoError(t, err)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer del.Body.Close()
	assert.Equal(t, http.StatusNoContent, del.StatusCode)

	missing, err := http.Get(ts.URL + "/v1/runs/" + out.RunID)
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
	assert.Equal(t, "RUN_NOT_FOUND", decode[errorResponse](t, missing).Error)

	badLimit, err := http.Get(ts.URL + "/v1/runs?limit=x")
	require.NoError(t, err)
	defer badLimit.Body.Close()
	assert.Equal(t, http.StatusBadRequest, badLimit.StatusCode)
}

func TestRenderEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, false)
	x0, x1, y := 0.0, 10.0, 0.0
	snap := graph.Snapshot{
		Nodes: []graph.SnapshotNode{{ID: "a", X: &x0, Y: &y}, {ID: "b", X: &x1, Y: &y}},
		Edges: []graph.SnapshotEdge{{From: "a", To: "b"}},
	}

	resp := post(t, ts.URL+"/v1/render", RenderRequest{Snapshot: snap, Format: "dot", Labels: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/vnd.graphviz", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"a" [pos="0,0!"`)

	bad := post(t, ts.URL+"/v1/render", RenderRequest{Snapshot: snap, Format: "gif"})
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	observability.Reset()
	defer observability.Reset()
	ts, prom := newTestServer(t, false)
	observability.SetPipelineHooks(prom)

	post(t, ts.URL+"/v1/layout", LayoutRequest{Snapshot: triangle(), Options: quickOptions()})

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `evolayout_layouts_total{mode="static",status="ok"} 1`)
}

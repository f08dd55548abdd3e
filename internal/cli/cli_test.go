package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/evolayout/pkg/config"
	"github.com/matzehuels/evolayout/pkg/graph"
	"github.com/matzehuels/evolayout/pkg/pipeline"
	"github.com/matzehuels/evolayout/pkg/store"
)

// writeSnapshot writes an unpositioned path graph a-b-...-<last> to path.
func writeSnapshot(t *testing.T, path string, ids ...string) {
	t.Helper()
	snap := graph.Snapshot{}
	for i, id := range ids {
		snap.Nodes = append(snap.Nodes, graph.SnapshotNode{ID: id})
		if i > 0 {
			snap.Edges = append(snap.Edges, graph.SnapshotEdge{From: ids[i-1], To: id})
		}
	}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	c := New(io.Discard, log.InfoLevel)
	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func requirePositioned(t *testing.T, path string, wantNodes int) {
	t.Helper()
	g, pos, err := graph.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if g.NodeCount() != wantNodes {
		t.Fatalf("%s has %d nodes, want %d", path, g.NodeCount(), wantNodes)
	}
	for _, id := range g.NodeIDs() {
		if !pos.Has(id) {
			t.Errorf("%s: node %s has no position", path, id)
		}
	}
}

// =============================================================================
// Paths and flags
// =============================================================================

func TestCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}
	home, _ := os.UserHomeDir()
	if want := filepath.Join(home, ".cache", appName); dir != want {
		t.Errorf("cacheDir() = %q, want %q", dir, want)
	}
}

func TestCacheDirXDG(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg-cache")
	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}
	if want := filepath.Join("/tmp/xdg-cache", appName); dir != want {
		t.Errorf("cacheDir() = %q, want %q", dir, want)
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		input, output, suffix, want string
	}{
		{"graph.json", "", ".layout.json", "graph.layout.json"},
		{"dir/g.json", "", ".refined.json", "dir/g.refined.json"},
		{"graph.json", "out.json", ".layout.json", "out.json"},
		{"snaps", "", ".frames", "snaps.frames"},
	}
	for _, tt := range tests {
		if got := outputPath(tt.input, tt.output, tt.suffix); got != tt.want {
			t.Errorf("outputPath(%q, %q, %q) = %q, want %q", tt.input, tt.output, tt.suffix, got, tt.want)
		}
	}
}

func TestParseAndValidateFormats(t *testing.T) {
	if got := parseFormats(""); len(got) != 1 || got[0] != "svg" {
		t.Errorf("parseFormats(\"\") = %v, want [svg]", got)
	}
	got := parseFormats("SVG, png,svg,,dot")
	if strings.Join(got, ",") != "svg,png,dot" {
		t.Errorf("parseFormats() = %v, want [svg png dot]", got)
	}
	if err := validateFormats(got); err != nil {
		t.Errorf("validateFormats(%v) error: %v", got, err)
	}
	if err := validateFormats([]string{"pdf"}); err == nil {
		t.Error("validateFormats([pdf]) should fail")
	}
}

func TestBasePath(t *testing.T) {
	tests := []struct {
		output, input, want string
	}{
		{"", "layout.json", "layout"},
		{"out.svg", "layout.json", "out"},
		{"out.png", "layout.json", "out"},
		{"out", "layout.json", "out"},
		{"out.txt", "layout.json", "out.txt"},
	}
	for _, tt := range tests {
		if got := basePath(tt.output, tt.input); got != tt.want {
			t.Errorf("basePath(%q, %q) = %q, want %q", tt.output, tt.input, got, tt.want)
		}
	}
}

func TestEngineFlagsOptions(t *testing.T) {
	f := engineFlags{merger: config.MergerIndependentSet, seed: 7}
	opts, err := f.options(pipeline.ModeMultilevel, nil)
	if err != nil {
		t.Fatalf("options() error: %v", err)
	}
	if opts.Mode != pipeline.ModeMultilevel || opts.Seed != 7 {
		t.Errorf("options() = mode %q seed %d", opts.Mode, opts.Seed)
	}
	if opts.Config.Multilevel.Merger != config.MergerIndependentSet {
		t.Errorf("merger = %q, want %q", opts.Config.Multilevel.Merger, config.MergerIndependentSet)
	}

	f = engineFlags{merger: "bogus"}
	if _, err := f.options(pipeline.ModeStatic, nil); err == nil {
		t.Error("options() with an unknown merger should fail")
	}

	f = engineFlags{configPath: filepath.Join(t.TempDir(), "missing.toml")}
	if _, err := f.options(pipeline.ModeStatic, nil); err == nil {
		t.Error("options() with a missing config file should fail")
	}
}

// =============================================================================
// Commands
// =============================================================================

func TestLayoutCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "g.json")
	writeSnapshot(t, input, "a", "b", "c", "d")

	if _, err := execute(t, "layout", "--no-cache", input); err != nil {
		t.Fatalf("layout error: %v", err)
	}
	requirePositioned(t, filepath.Join(dir, "g.layout.json"), 4)

	out := filepath.Join(dir, "ml.json")
	if _, err := execute(t, "layout", "-m", "multilevel", "-o", out, input); err != nil {
		t.Fatalf("multilevel layout error: %v", err)
	}
	requirePositioned(t, out, 4)
}

func TestLayoutCommandErrors(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "g.json")
	writeSnapshot(t, input, "a", "b")

	if _, err := execute(t, "layout", filepath.Join(dir, "missing.json")); err == nil {
		t.Error("layout of a missing file should fail")
	}
	if _, err := execute(t, "layout", "-m", "timeline", "--no-cache", input); err == nil {
		t.Error("layout in timeline mode should fail")
	}
	if _, err := execute(t, "layout"); err == nil {
		t.Error("layout without arguments should fail")
	}
}

func TestRefineAndRenderCommands(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "g.json")
	writeSnapshot(t, input, "a", "b", "c")

	if _, err := execute(t, "refine", "--no-cache", input); err == nil {
		t.Error("refine of an unpositioned graph should fail")
	}

	if _, err := execute(t, "layout", "--no-cache", input); err != nil {
		t.Fatalf("layout error: %v", err)
	}
	solved := filepath.Join(dir, "g.layout.json")
	if _, err := execute(t, "refine", "--no-cache", solved); err != nil {
		t.Fatalf("refine error: %v", err)
	}
	requirePositioned(t, filepath.Join(dir, "g.layout.refined.json"), 3)

	if _, err := execute(t, "render", "--no-cache", "-f", "dot", "--labels", solved); err != nil {
		t.Fatalf("render error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "g.layout.dot"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "graph G {") || !strings.Contains(string(data), `"a" -- "b";`) {
		t.Errorf("unexpected DOT output:\n%s", data)
	}

	if _, err := execute(t, "render", "-f", "pdf", solved); err == nil {
		t.Error("render with an unsupported format should fail")
	}
}

func TestTimelineAndRunsCommands(t *testing.T) {
	dir := t.TempDir()
	snaps := filepath.Join(dir, "snaps")
	if err := os.Mkdir(snaps, 0o755); err != nil {
		t.Fatal(err)
	}
	writeSnapshot(t, filepath.Join(snaps, "01.json"), "a", "b", "c")
	writeSnapshot(t, filepath.Join(snaps, "02.json"), "a", "b", "c", "d", "e")
	storeDir := filepath.Join(dir, "runs")
	frames := filepath.Join(dir, "frames")

	if _, err := execute(t, "timeline", "--no-cache", "--save", "--store-dir", storeDir, "-o", frames, "-f", "dot", snaps); err != nil {
		t.Fatalf("timeline error: %v", err)
	}
	requirePositioned(t, filepath.Join(frames, "01.layout.json"), 3)
	requirePositioned(t, filepath.Join(frames, "02.layout.json"), 5)
	if _, err := os.Stat(filepath.Join(frames, "02.dot")); err != nil {
		t.Errorf("frame render missing: %v", err)
	}

	st, err := store.NewFileStore(storeDir)
	if err != nil {
		t.Fatal(err)
	}
	runs, err := st.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Frames != 2 || runs[0].Mode != pipeline.ModeTimeline {
		t.Fatalf("stored runs = %+v, want one timeline run with 2 frames", runs)
	}

	if _, err := execute(t, "runs", "list", "--store-dir", storeDir); err != nil {
		t.Errorf("runs list error: %v", err)
	}
	if _, err := execute(t, "runs", "delete", "--store-dir", storeDir, runs[0].ID); err != nil {
		t.Errorf("runs delete error: %v", err)
	}
	if _, err := st.GetRun(context.Background(), runs[0].ID); err == nil {
		t.Error("run should be gone after delete")
	}
	if _, err := execute(t, "runs", "prune", "--store-dir", storeDir, "--older-than", "0s"); err == nil {
		t.Error("prune with a zero age should fail")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version", "--json")
	if err != nil {
		t.Fatalf("version error: %v", err)
	}
	var info map[string]string
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("version --json output %q: %v", out, err)
	}
	if info["go_version"] == "" {
		t.Errorf("go_version missing in %v", info)
	}
}

func TestCachePathCommand(t *testing.T) {
	out, err := execute(t, "cache", "path")
	if err != nil {
		t.Fatalf("cache path error: %v", err)
	}
	if !strings.HasSuffix(strings.TrimSpace(out), appName) {
		t.Errorf("cache path = %q, want suffix %q", out, appName)
	}
}

// =============================================================================
// Watch
// =============================================================================

func TestSnapshotWatcherStep(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "g.json")
	output := filepath.Join(dir, "g.layout.json")
	writeSnapshot(t, input, "a", "b", "c")

	opts := pipeline.Options{Mode: pipeline.ModeIncremental}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	w := &snapshotWatcher{
		input:  input,
		output: output,
		runner: pipeline.NewRunner(nil, nil, nil),
		opts:   opts,
		logger: log.New(io.Discard),
	}

	ctx := context.Background()
	if err := w.step(ctx); err != nil {
		t.Fatalf("initial step error: %v", err)
	}
	requirePositioned(t, output, 3)

	writeSnapshot(t, input, "a", "b", "c", "d")
	if err := w.step(ctx); err != nil {
		t.Fatalf("incremental step error: %v", err)
	}
	requirePositioned(t, output, 4)
	if w.steps != 2 || w.last.Stats.NewNodes != 1 {
		t.Errorf("steps = %d new nodes = %d, want 2 and 1", w.steps, w.last.Stats.NewNodes)
	}

	if err := os.WriteFile(input, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := w.step(ctx); err == nil {
		t.Error("step on a broken file should fail")
	}
	if w.steps != 2 {
		t.Errorf("failed step should not count, steps = %d", w.steps)
	}
}

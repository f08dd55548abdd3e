package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/evolayout/pkg/errors"
	"github.com/matzehuels/evolayout/pkg/geom"
)

// =============================================================================
// Snapshot - Serialization Format
// =============================================================================

// Snapshot is the canonical serialization format for a graph and its
// (optional) node positions. Used for files, API bodies, caching and the
// run store.
type Snapshot struct {
	Label string         `json:"label,omitempty" bson:"label,omitempty"`
	Nodes []SnapshotNode `json:"nodes" bson:"nodes"`
	Edges []SnapshotEdge `json:"edges" bson:"edges"`
}

// SnapshotNode is a serialized node. X and Y are both set or both absent.
type SnapshotNode struct {
	ID   string         `json:"id" bson:"id"`
	X    *float64       `json:"x,omitempty" bson:"x,omitempty"`
	Y    *float64       `json:"y,omitempty" bson:"y,omitempty"`
	Meta map[string]any `json:"meta,omitempty" bson:"meta,omitempty"`
}

// SnapshotEdge is a serialized edge.
type SnapshotEdge struct {
	From string `json:"from" bson:"from"`
	To   string `json:"to" bson:"to"`
}

// Timeline is a sequence of snapshots laid out one after the other.
type Timeline struct {
	Snapshots []Snapshot `json:"snapshots"`
}

// FromGraph converts a graph and positions to a Snapshot. Nodes keep
// insertion order so the encoding is deterministic.
func FromGraph(g *Graph, pos geom.Positions) Snapshot {
	s := Snapshot{
		Nodes: make([]SnapshotNode, 0, g.NodeCount()),
		Edges: make([]SnapshotEdge, 0, g.EdgeCount()),
	}
	for _, n := range g.Nodes() {
		sn := SnapshotNode{ID: n.ID}
		if len(n.Meta) > 0 {
			sn.Meta = n.Meta
		}
		if v, ok := pos[n.ID]; ok {
			x, y := v.X, v.Y
			sn.X, sn.Y = &x, &y
		}
		s.Nodes = append(s.Nodes, sn)
	}
	for _, e := range g.Edges() {
		s.Edges = append(s.Edges, SnapshotEdge{From: e.From, To: e.To})
	}
	return s
}

// ToGraph converts a Snapshot to a graph and the positions it carries.
// Node IDs are validated; duplicates, dangling edges and non-finite
// coordinates are rejected.
func (s Snapshot) ToGraph() (*Graph, geom.Positions, error) {
	g := New()
	pos := make(geom.Positions)
	for _, n := range s.Nodes {
		if err := errors.ValidateNodeID(n.ID); err != nil {
			return nil, nil, err
		}
		if err := g.AddNode(Node{ID: n.ID, Meta: n.Meta}); err != nil {
			return nil, nil, fmt.Errorf("add node %s: %w", n.ID, err)
		}
		if (n.X == nil) != (n.Y == nil) {
			return nil, nil, errors.New(errors.ErrCodeInvalidInput, "node %q has only one coordinate", n.ID)
		}
		if n.X != nil {
			if err := errors.ValidateCoordinate(n.ID, *n.X, *n.Y); err != nil {
				return nil, nil, err
			}
			pos[n.ID] = r2.Vec{X: *n.X, Y: *n.Y}
		}
	}
	for _, e := range s.Edges {
		if err := g.AddEdge(Edge{From: e.From, To: e.To}); err != nil {
			return nil, nil, fmt.Errorf("add edge %s-%s: %w", e.From, e.To, err)
		}
	}
	return g, pos, nil
}

// =============================================================================
// Serialization API
// =============================================================================

// Marshal encodes g and pos as indented JSON.
func Marshal(g *Graph, pos geom.Positions) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, g, pos); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write encodes g and pos as JSON to w.
func Write(w io.Writer, g *Graph, pos geom.Positions) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(FromGraph(g, pos)); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// WriteFile writes g and pos to a JSON file.
func WriteFile(path string, g *Graph, pos geom.Positions) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return Write(f, g, pos)
}

// Read decodes a JSON snapshot from r.
func Read(r io.Reader) (*Graph, geom.Positions, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode snapshot")
	}
	return s.ToGraph()
}

// ReadFile reads a JSON snapshot file.
func ReadFile(path string) (*Graph, geom.Positions, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	g, pos, err := Read(f)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, pos, nil
}

// ReadTimeline loads a timeline from path. A directory yields one snapshot
// per *.json file in lexical order, labelled with the file name; a file
// must hold a [Timeline] object.
func ReadTimeline(path string) ([]Snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var tl Timeline
		if err := json.Unmarshal(data, &tl); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode timeline %s", path)
		}
		for i := range tl.Snapshots {
			if tl.Snapshots[i].Label == "" {
				tl.Snapshots[i].Label = fmt.Sprintf("%d", i)
			}
		}
		return tl.Snapshots, nil
	}

	files, err := SnapshotFiles(path)
	if err != nil {
		return nil, err
	}
	snaps := make([]Snapshot, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		var s Snapshot
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode snapshot %s", f)
		}
		if s.Label == "" {
			s.Label = strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		}
		snaps = append(snaps, s)
	}
	return snaps, nil
}

// SnapshotFiles lists the *.json files of dir in lexical order.
func SnapshotFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

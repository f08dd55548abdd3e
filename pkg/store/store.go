// Package store persists layout runs so that a timeline can be browsed,
// rendered or served after it was computed.
//
// Backends:
//   - [FileStore]: one JSON file per run, for the CLI
//   - [MongoStore]: a MongoDB collection, for the API server
//
// # Usage
//
//	st, err := store.NewFileStore("")  // ~/.local/share/evolayout/runs
//	run := store.NewRun(pipeline.ModeTimeline)
//	run.Frames = append(run.Frames, frame)
//	if err := st.SaveRun(ctx, run); err != nil {
//	    return err
//	}
//
//	run, err = st.GetRun(ctx, id) // RUN_NOT_FOUND when missing
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/evolayout/pkg/errors"
	"github.com/matzehuels/evolayout/pkg/graph"
)

// Run is one stored layout computation: a single frame for static,
// multilevel and refinement runs, one frame per snapshot for timelines.
type Run struct {
	ID        string    `json:"id" bson:"_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	Mode      string    `json:"mode" bson:"mode"`
	Seed      uint64    `json:"seed" bson:"seed"`
	Frames    []Frame   `json:"frames" bson:"frames"`
}

// Frame is a solved snapshot.
type Frame struct {
	Snapshot graph.Snapshot `json:"snapshot" bson:"snapshot"`
	Stats    FrameStats     `json:"stats" bson:"stats"`
}

// FrameStats summarizes how a frame was solved.
type FrameStats struct {
	Iterations   int     `json:"iterations" bson:"iterations"`
	Rebuilds     int     `json:"rebuilds" bson:"rebuilds"`
	Levels       int     `json:"levels,omitempty" bson:"levels,omitempty"`
	Displacement float64 `json:"displacement" bson:"displacement"`
	NewNodes     int     `json:"new_nodes,omitempty" bson:"new_nodes,omitempty"`
	RemovedEdges int     `json:"removed_edges,omitempty" bson:"removed_edges,omitempty"`
	Movable      int     `json:"movable,omitempty" bson:"movable,omitempty"`
	HighEnergy   int     `json:"high_energy,omitempty" bson:"high_energy,omitempty"`
	CacheHit     bool    `json:"cache_hit,omitempty" bson:"cache_hit,omitempty"`
	DurationMS   int64   `json:"duration_ms" bson:"duration_ms"`
}

// Summary is the listing view of a run.
type Summary struct {
	ID        string    `json:"id" bson:"_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	Mode      string    `json:"mode" bson:"mode"`
	Frames    int       `json:"frames" bson:"frames"`
}

// Summary returns the listing view of r.
func (r *Run) Summary() Summary {
	return Summary{ID: r.ID, CreatedAt: r.CreatedAt, Mode: r.Mode, Frames: len(r.Frames)}
}

// NewRun returns an empty run with a fresh ID.
func NewRun(mode string) *Run {
	return &Run{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Mode:      mode,
	}
}

// Store is the interface for run storage backends.
type Store interface {
	// SaveRun inserts or replaces a run.
	SaveRun(ctx context.Context, run *Run) error

	// GetRun returns a run by ID, or a RUN_NOT_FOUND error.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns up to limit summaries, newest first. A limit <= 0
	// lists everything.
	ListRuns(ctx context.Context, limit int) ([]Summary, error)

	// DeleteRun removes a run. Deleting a missing run is not an error.
	DeleteRun(ctx context.Context, id string) error

	// Prune deletes runs created before cutoff and returns how many.
	Prune(ctx context.Context, cutoff time.Time) (int, error)

	Close() error
}

// ValidateID rejects IDs that are not UUIDs, so IDs can be used as file
// names safely.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "run id %q", id)
	}
	return nil
}

func notFound(id string) error {
	return errors.New(errors.ErrCodeRunNotFound, "run %s not found", id)
}

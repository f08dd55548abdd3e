// Package refine touches up a solved layout by relaxing only the nodes
// whose potential energy stands out from the rest.
package refine

import (
	"io"
	"math"
	"slices"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"

	"github.com/matzehuels/evolayout/pkg/config"
	"github.com/matzehuels/evolayout/pkg/errors"
	"github.com/matzehuels/evolayout/pkg/geom"
	"github.com/matzehuels/evolayout/pkg/graph"
	"github.com/matzehuels/evolayout/pkg/layout/force"
	"github.com/matzehuels/evolayout/pkg/layout/solver"
)

// Energy is the potential energy of a layout.
type Energy struct {
	Total   float64            // sum of all node energies
	Mean    float64            // mean node energy
	PerNode map[string]float64 // energy of each node
	High    []string           // flagged nodes in graph order
}

// IsHigh reports whether id was flagged.
func (e Energy) IsHigh(id string) bool { return slices.Contains(e.High, id) }

// Refiner marks and relaxes high-energy nodes.
type Refiner struct {
	cfg    config.Config
	model  force.Model
	solver *solver.Solver
	logger *log.Logger
}

// New creates a Refiner that relaxes through s.
func New(cfg config.Config, s *solver.Solver, logger *log.Logger) *Refiner {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Refiner{cfg: cfg, model: force.New(cfg.Force), solver: s, logger: logger}
}

// MarkHighEnergy computes the energy of every node of g: the repulsion
// potential against every other node plus half the attraction potential
// of each incident edge. A node is flagged when its deviation from the
// mean energy, relative to the mean, exceeds the configured threshold.
// Nothing is flagged when the mean is zero.
func (r *Refiner) MarkHighEnergy(g *graph.Graph, pos geom.Positions) (Energy, error) {
	ids := g.NodeIDs()
	if len(ids) == 0 {
		return Energy{}, errors.New(errors.ErrCodeEmptyInput, "energy of an empty graph")
	}
	for _, id := range ids {
		if !pos.Has(id) {
			return Energy{}, errors.New(errors.ErrCodeInvalidInput, "node %q has no position", id)
		}
	}

	values := make([]float64, len(ids))
	for i, u := range ids {
		pu := pos[u]
		for j, v := range ids {
			if i != j {
				values[i] += r.model.RepulsionPotential(r2.Sub(pu, pos[v]))
			}
		}
	}
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}
	for _, e := range g.Edges() {
		half := r.model.AttractionPotential(r2.Sub(pos[e.From], pos[e.To])) / 2
		values[index[e.From]] += half
		values[index[e.To]] += half
	}

	en := Energy{
		Mean:    stat.Mean(values, nil),
		PerNode: make(map[string]float64, len(ids)),
	}
	threshold := r.cfg.Refine.Threshold
	for i, id := range ids {
		en.PerNode[id] = values[i]
		en.Total += values[i]
		if en.Mean != 0 && math.Abs(values[i]-en.Mean)/math.Abs(en.Mean) > threshold {
			en.High = append(en.High, id)
		}
	}
	return en, nil
}

package refine

import (
	"context"

	"github.com/matzehuels/evolayout/pkg/geom"
	"github.com/matzehuels/evolayout/pkg/graph"
	"github.com/matzehuels/evolayout/pkg/layout/solver"
)

// Relax runs a short solver pass over g in which only the nodes flagged in
// en may move. It starts at the relax temperature (twice the edge length
// unless configured) and runs the configured relax budget. A layout
// without flagged nodes is left untouched.
func (r *Refiner) Relax(ctx context.Context, g *graph.Graph, pos geom.Positions, en Energy) (solver.Stats, error) {
	if len(en.High) == 0 {
		return solver.Stats{}, nil
	}
	high := make(map[string]bool, len(en.High))
	for _, id := range en.High {
		high[id] = true
	}
	r.logger.Debug("relaxing high-energy nodes", "flagged", len(high), "nodes", g.NodeCount())
	return r.solver.Run(ctx, g, pos, solver.RunOptions{
		Iterations:  r.cfg.Refine.Iterations,
		Movable:     func(id string) bool { return high[id] },
		Temperature: r.cfg.RelaxTemperature(),
	})
}

// Refine marks the high-energy nodes of a solved layout and relaxes them.
func (r *Refiner) Refine(ctx context.Context, g *graph.Graph, pos geom.Positions) (Energy, solver.Stats, error) {
	en, err := r.MarkHighEnergy(g, pos)
	if err != nil {
		return Energy{}, solver.Stats{}, err
	}
	stats, err := r.Relax(ctx, g, pos, en)
	return en, stats, err
}

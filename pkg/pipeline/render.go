package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/matzehuels/evolayout/pkg/cache"
	"github.com/matzehuels/evolayout/pkg/graph"
	"github.com/matzehuels/evolayout/pkg/observability"
	"github.com/matzehuels/evolayout/pkg/render/nodelink"
)

// RenderOptions configures artifact rendering.
type RenderOptions struct {
	Format    string  `json:"format"`
	Labels    bool    `json:"labels,omitempty"`
	Scale     float64 `json:"scale,omitempty"`
	Highlight []string
	Weights   map[string]float64
}

// Render draws a solved layout. Artifacts are cached by the layout content
// and format unless highlight or weight overlays are requested.
func (r *Runner) Render(ctx context.Context, res *Result, opts RenderOptions) ([]byte, bool, error) {
	if opts.Format == "" {
		opts.Format = nodelink.FormatSVG
	}
	start := time.Now()
	hooks := observability.Pipeline()
	hooks.OnRenderStart(ctx, opts.Format)

	cacheable := len(opts.Highlight) == 0 && len(opts.Weights) == 0 && opts.Scale == 0
	var key string
	if cacheable {
		layoutData, err := graph.Marshal(res.Graph, res.Positions)
		if err != nil {
			return nil, false, fmt.Errorf("serialize layout for cache key: %w", err)
		}
		key = r.Keyer.ArtifactKey(cache.Hash(layoutData), cache.ArtifactKeyOpts{Format: opts.Format, Labels: opts.Labels})
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			observability.Cache().OnCacheHit(ctx, "artifact")
			hooks.OnRenderComplete(ctx, opts.Format, len(data), time.Since(start), nil)
			return data, true, nil
		}
		observability.Cache().OnCacheMiss(ctx, "artifact")
	}

	data, err := renderArtifact(ctx, res, opts)
	hooks.OnRenderComplete(ctx, opts.Format, len(data), time.Since(start), err)
	if err != nil {
		return nil, false, err
	}

	if cacheable {
		if err := r.Cache.Set(ctx, key, data, cache.ArtifactTTL); err == nil {
			observability.Cache().OnCacheSet(ctx, "artifact", len(data))
		}
	}
	return data, false, nil
}

func renderArtifact(ctx context.Context, res *Result, opts RenderOptions) ([]byte, error) {
	dot, err := nodelink.ToDOT(res.Graph, res.Positions, nodelink.Options{
		Scale:     opts.Scale,
		Labels:    opts.Labels,
		Highlight: opts.Highlight,
		Weights:   opts.Weights,
	})
	if err != nil {
		return nil, err
	}
	data, err := nodelink.Render(ctx, dot, opts.Format)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", opts.Format, err)
	}
	return data, nil
}

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/evolayout/pkg/cache"
	"github.com/matzehuels/evolayout/pkg/observability"
	"github.com/matzehuels/evolayout/pkg/pipeline"
	"github.com/matzehuels/evolayout/pkg/server"
	"github.com/matzehuels/evolayout/pkg/store"
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	addr        string
	timeout     time.Duration
	noCache     bool
	redisAddr   string
	redisPrefix string
	mongoURI    string
	mongoDB     string
	storeDir    string
	noStore     bool
	noMetrics   bool
}

// serveCommand creates the serve command for running the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	opts := serveOpts{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the layout HTTP API",
		Long: `Run the layout HTTP API.

Layouts and renders are cached in Redis when --redis is given, otherwise in
the local cache directory. Timeline runs are stored in MongoDB when --mongo
is given, otherwise in the local run store. Prometheus metrics are served on
/metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), &opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", ":8080", "listen address")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "per-request timeout (0 = none)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().StringVar(&opts.redisAddr, "redis", "", "Redis address for the shared cache (host:port)")
	cmd.Flags().StringVar(&opts.redisPrefix, "redis-prefix", appName+":", "key prefix in Redis")
	cmd.Flags().StringVar(&opts.mongoURI, "mongo", "", "MongoDB URI for the run store")
	cmd.Flags().StringVar(&opts.mongoDB, "mongo-db", appName, "MongoDB database")
	cmd.Flags().StringVar(&opts.storeDir, "store-dir", "", "local run store directory")
	cmd.Flags().BoolVar(&opts.noStore, "no-store", false, "disable the run endpoints")
	cmd.Flags().BoolVar(&opts.noMetrics, "no-metrics", false, "disable /metrics")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts *serveOpts) error {
	cc, err := c.serverCache(ctx, opts)
	if err != nil {
		return err
	}
	runner := pipeline.NewRunner(cc, nil, c.Logger)
	defer runner.Close()

	var st store.Store
	if !opts.noStore {
		if st, err = c.serverStore(ctx, opts); err != nil {
			return err
		}
		defer st.Close()
	}

	var metrics *observability.Prometheus
	if !opts.noMetrics {
		metrics = observability.NewPrometheus(nil)
		observability.SetPipelineHooks(metrics)
		observability.SetCacheHooks(metrics)
		observability.SetHTTPHooks(metrics)
		defer observability.Reset()
	}

	srv := server.New(server.Options{
		Runner:  runner,
		Store:   st,
		Metrics: metrics,
		Logger:  c.Logger,
		Timeout: opts.timeout,
	})

	printInfo("Listening on %s", opts.addr)
	return srv.ListenAndServe(ctx, opts.addr)
}

// serverCache picks Redis, the local file cache or no cache.
func (c *CLI) serverCache(ctx context.Context, opts *serveOpts) (cache.Cache, error) {
	if opts.noCache {
		return cache.NewNullCache(), nil
	}
	if opts.redisAddr != "" {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: opts.redisAddr, Prefix: opts.redisPrefix})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		c.Logger.Info("using redis cache", "addr", opts.redisAddr)
		return rc, nil
	}
	return newCache(false)
}

// serverStore picks MongoDB or the local run store.
func (c *CLI) serverStore(ctx context.Context, opts *serveOpts) (store.Store, error) {
	if opts.mongoURI != "" {
		ms, err := store.NewMongoStore(ctx, store.MongoConfig{URI: opts.mongoURI, Database: opts.mongoDB})
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		c.Logger.Info("using mongo run store", "database", opts.mongoDB)
		return ms, nil
	}
	fs, err := openStore(opts.storeDir)
	if err != nil {
		return nil, err
	}
	c.Logger.Info("using local run store", "dir", fs.Path())
	return fs, nil
}

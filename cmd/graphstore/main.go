// GraphStore server and CLI
// Serves health and metrics for an embedded property graph store and inspects it offline
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/nainya/graphstore/internal/config"
	"github.com/nainya/graphstore/internal/logger"
	"github.com/nainya/graphstore/internal/metrics"
	"github.com/nainya/graphstore/internal/server"
	"github.com/nainya/graphstore/pkg/id"
	"github.com/nainya/graphstore/pkg/query"
	"github.com/nainya/graphstore/pkg/storage"
	"github.com/nainya/graphstore/pkg/storage/boltdb"
	"github.com/nainya/graphstore/pkg/storage/memory"
	"github.com/nainya/graphstore/pkg/store"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "graphstore:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "graphstore",
		Usage: "embedded property graph store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				EnvVars: []string{"GRAPHSTORE_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "database path, overrides storage.path",
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: "storage backend (bolt, memory), overrides storage.backend",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn, error",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "human readable logs",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "serve gRPC health, metrics and profiling endpoints",
				Action: serve,
			},
			{
				Name:   "stats",
				Usage:  "print record counts",
				Action: stats,
			},
			{
				Name:      "path",
				Usage:     "print the shortest path between two nodes",
				ArgsUsage: "FROM TO",
				Action:    path,
			},
			{
				Name:  "lookup",
				Usage: "print node ids by indexed property",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "entity", Usage: "restrict to one entity"},
					&cli.StringFlag{Name: "prop", Required: true},
					&cli.StringFlag{Name: "value", Usage: "string value"},
					&cli.Int64Flag{Name: "int", Usage: "integer value, used instead of --value"},
				},
				Action: lookup,
			},
			{
				Name:  "ids",
				Usage: "generate ids and show their layout",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "count", Value: 1},
				},
				Action: ids,
			},
		},
	}
}

func loadConfig(c *cli.Context) (config.Config, *logger.Logger, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, nil, err
		}
	}
	if c.IsSet("db") {
		cfg.Storage.Path = c.String("db")
	}
	if c.IsSet("backend") {
		cfg.Storage.Backend = c.String("backend")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("pretty") {
		cfg.Log.Pretty = c.Bool("pretty")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}

	lcfg := cfg.LoggerConfig()
	lcfg.Output = os.Stderr
	logger.InitGlobalLogger(lcfg)
	return cfg, logger.GetGlobalLogger(), nil
}

// openBackend retries while another process holds the bolt file lock
func openBackend(ctx context.Context, cfg config.Config) (storage.Backend, error) {
	if cfg.Storage.Backend == config.BackendMemory {
		return memory.New(), nil
	}

	var b *boltdb.Backend
	op := func() error {
		var err error
		b, err = boltdb.Open(cfg.StorageOptions())
		if err != nil && !errors.Is(err, storage.ErrLocked) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), cfg.Storage.OpenRetries),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return b, nil
}

func openStore(ctx context.Context, cfg config.Config, log *logger.Logger, m *metrics.Metrics) (*store.Store, error) {
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	opts := []store.Option{store.WithLogger(log)}
	if m != nil {
		opts = append(opts, store.WithMetrics(m))
	}
	s, err := store.New(ctx, cfg.Storage.Key, b, opts...)
	if err != nil {
		b.Close()
		return nil, err
	}
	return s, nil
}

func serve(c *cli.Context) error {
	cfg, log, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics()
	log.LogServerStart(cfg.Storage.Backend, cfg.Storage.Path)
	s, err := openStore(ctx, cfg, log, m)
	if err != nil {
		return err
	}
	defer s.Close()

	srv := server.NewServer(s, m, log)
	obs := server.NewObservabilityServer(cfg.Server.HTTPAddr, prometheus.DefaultGatherer, srv.Ready, log)

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.Server.GRPCAddr, err)
		}
		g.Go(func() error { return srv.Serve(lis) })
	}
	if cfg.Server.HTTPAddr != "" {
		g.Go(obs.Start)
	}
	g.Go(func() error {
		m.RunUptime(gctx, 10*time.Second)
		return nil
	})
	g.Go(func() error {
		srv.Watch(gctx, cfg.Server.StatsInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.LogServerShutdown()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
		defer cancel()
		srv.Stop(sctx)
		return obs.Shutdown(sctx)
	})

	log.LogServerReady(cfg.Server.HTTPAddr, cfg.Server.GRPCAddr)
	return g.Wait()
}

func stats(c *cli.Context) error {
	cfg, log, err := loadConfig(c)
	if err != nil {
		return err
	}
	s, err := openStore(c.Context, cfg, log, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := s.Stats(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "backend:  %s\nnodes:    %d\nedges:    %d\nentities: %d\nbytes:    %d\n",
		s.Backend().Name(), st.Nodes, st.Edges, st.Entities, st.SizeBytes)
	return nil
}

func path(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("path needs FROM and TO node ids", 2)
	}
	from, err := id.ParseNodeID(c.Args().Get(0))
	if err != nil {
		return err
	}
	to, err := id.ParseNodeID(c.Args().Get(1))
	if err != nil {
		return err
	}

	cfg, log, err := loadConfig(c)
	if err != nil {
		return err
	}
	s, err := openStore(c.Context, cfg, log, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	ex, err := query.New(s).ShortPath(from, to).Build(c.Context)
	if store.IsNotFound(err) {
		return cli.Exit(fmt.Sprintf("no path from %s to %s", from, to), 1)
	}
	if err != nil {
		return err
	}

	hops := make([]string, 0, len(ex.Path()))
	for _, n := range ex.Path() {
		hops = append(hops, n.String())
	}
	fmt.Fprintln(c.App.Writer, strings.Join(hops, " -> "))
	return nil
}

func lookup(c *cli.Context) error {
	cfg, log, err := loadConfig(c)
	if err != nil {
		return err
	}
	s, err := openStore(c.Context, cfg, log, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	var value any = c.String("value")
	if c.IsSet("int") {
		value = c.Int64("int")
	}

	b := query.New(s)
	if entity := c.String("entity"); entity != "" {
		b.ByEntityName(entity)
	}
	ex, err := b.ByIndex(c.String("prop"), value).Build(c.Context)
	if err != nil {
		return err
	}
	for _, n := range ex.IDs() {
		fmt.Fprintln(c.App.Writer, n)
	}
	return nil
}

func ids(c *cli.Context) error {
	cfg, _, err := loadConfig(c)
	if err != nil {
		return err
	}
	gen, err := id.NewGenerator(cfg.GeneratorConfig())
	if err != nil {
		return err
	}
	for i := 0; i < c.Int("count"); i++ {
		n, err := gen.NewNodeID()
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%s\t%s\n", n, n.Parts())
	}
	return nil
}

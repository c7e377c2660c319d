package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"keyword-median/api"
	"keyword-median/config"
	"keyword-median/scheduler"
	"keyword-median/scraper/etsy"
	"keyword-median/services"
	"keyword-median/storage"
	"keyword-median/utils"
)

// deps is everything a command needs; the store is opened once and closed
// when the command returns.
type deps struct {
	cfg        *config.Config
	logger     *utils.Logger
	store      storage.Store
	fetcher    *services.Fetcher
	aggregator *services.Aggregator
	lookup     *services.Lookup
}

func main() {
	logger := utils.NewLogger()

	app := &cli.App{
		Name:  "keyword-median",
		Usage: "collect marketplace listing views and serve per-word median views",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "optional YAML config file",
				EnvVars: []string{"CONFIG_FILE"},
			},
		},
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP API",
				Action: func(c *cli.Context) error {
					return withDeps(c, logger, false, serve)
				},
			},
			{
				Name:  "fetch",
				Usage: "page through the listings API once and store title/view pairs",
				Action: func(c *cli.Context) error {
					return withDeps(c, logger, true, func(ctx context.Context, d *deps) error {
						_, err := d.fetcher.Run(ctx)
						return err
					})
				},
			},
			{
				Name:  "aggregate",
				Usage: "rebuild the per-word median index",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "export", Usage: "also export word medians to CSV_OUTPUT_PATH"},
					&cli.StringFlag{Name: "csv", Usage: "export word medians to this CSV path"},
					&cli.IntFlag{Name: "top", Value: 10, Usage: "number of words in the printed report"},
				},
				Action: func(c *cli.Context) error {
					return withDeps(c, logger, false, func(ctx context.Context, d *deps) error {
						csvPath := c.String("csv")
						if csvPath == "" && c.Bool("export") {
							csvPath = d.cfg.CSVOutputPath
						}
						return aggregate(ctx, d, csvPath, c.Int("top"))
					})
				},
			},
			{
				Name:      "median",
				Usage:     "print the median views for a word",
				ArgsUsage: "<word>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("usage: keyword-median median <word>", 2)
					}
					word := c.Args().First()
					return withDeps(c, logger, false, func(ctx context.Context, d *deps) error {
						median, err := d.lookup.Median(ctx, word)
						if errors.Is(err, services.ErrWordNotFound) {
							return cli.Exit(fmt.Sprintf("word %q not found", word), 1)
						}
						if err != nil {
							return err
						}
						fmt.Println(median)
						return nil
					})
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func withDeps(c *cli.Context, logger *utils.Logger, needAPIKey bool, fn func(ctx context.Context, d *deps) error) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	logger.SetLevel(utils.ParseLevel(cfg.LogLevel))

	if needAPIKey {
		if err := cfg.RequireAPIKey(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.StoreURI)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing store: %v", err)
		}
	}()

	client := etsy.New(cfg, logger)
	d := &deps{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		fetcher:    services.NewFetcher(client, store, logger, cfg.PageSize, cfg.MaxOffset),
		aggregator: services.NewAggregator(store, store, logger),
		lookup:     services.NewLookup(store),
	}
	return fn(ctx, d)
}

func serve(ctx context.Context, d *deps) error {
	d.logger.Info("=== keyword-median starting ===")
	d.logger.Info("Config: page size %d | max offset %d | rate %dms | retries %d",
		d.cfg.PageSize, d.cfg.MaxOffset, d.cfg.RateLimitMs, d.cfg.MaxRetries)
	if err := d.cfg.RequireAPIKey(); err != nil {
		d.logger.Warn("%v; /api/data will fail until it is set", err)
	}

	if d.cfg.RefreshSchedule != "" {
		sched := scheduler.New(d.logger)
		err := sched.Schedule(ctx, d.cfg.RefreshSchedule, "refresh", func(ctx context.Context) error {
			if _, err := d.fetcher.Run(ctx); err != nil {
				return err
			}
			_, _, err := d.aggregator.Run(ctx)
			return err
		})
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
		d.logger.Info("Refresh scheduled: %s", d.cfg.RefreshSchedule)
	}

	srv := &http.Server{
		Addr:              d.cfg.Addr(),
		Handler:           api.NewServer(d.fetcher, d.aggregator, d.lookup, d.store, d.logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		d.logger.Info("Server is running on port %d", d.cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	d.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func aggregate(ctx context.Context, d *deps, csvPath string, top int) error {
	listings, words, err := d.aggregator.Run(ctx)
	if err != nil {
		return err
	}

	if csvPath != "" {
		var w storage.WordMedianWriter
		w, err = storage.NewCSVWriter(csvPath)
		if err != nil {
			return err
		}
		if err := w.WriteWordMedians(words); err != nil {
			_ = w.Close()
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
		d.logger.Info("Word medians saved to %s", csvPath)
	}

	d.aggregator.Print(d.aggregator.Summarize(listings, words, top))
	return nil
}

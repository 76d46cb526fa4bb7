package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MimeLyc/torznab-title-mapper/internal/catalog"
	"github.com/MimeLyc/torznab-title-mapper/internal/config"
	"github.com/MimeLyc/torznab-title-mapper/internal/httpapi"
	"github.com/MimeLyc/torznab-title-mapper/internal/indexer"
	"github.com/MimeLyc/torznab-title-mapper/internal/mapping"
	"github.com/MimeLyc/torznab-title-mapper/internal/service"
	"github.com/MimeLyc/torznab-title-mapper/pkg/log"
)

const shutdownTimeout = 10 * time.Second

type scheduler interface {
	Schedule(ctx context.Context) error
}

type cronEngine interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func newServeCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Torznab proxy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.serve(cmd.Context())
		},
	}
}

func (cc *commandContext) serve(ctx context.Context) error {
	cfg, err := cc.loadConfig()
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn("Failed to close mapping store: %v", err)
		}
	}()

	catalogClient, err := catalog.New(cfg.Catalog.APIKey, cfg.Catalog.APIURL, catalog.WithTimeout(cfg.CatalogTimeout()))
	if err != nil {
		return err
	}
	indexerClient, err := indexer.New(cfg.Indexer.URL, indexer.WithTimeout(cfg.IndexerTimeout()))
	if err != nil {
		return err
	}

	table := mapping.NewTable(nil)
	cronRunner := cron.New()
	reconciler := service.NewReconciler(store, table, catalogClient, service.WithCron(cronRunner, cfg.Reconcile.CronExpr))

	if _, err := reconciler.Reload(ctx, service.TriggerStartup); err != nil {
		service.LogError(err)
	}

	var opts []httpapi.Option
	accessLog, err := log.NewFileLogger(cfg.AccessLogPath(), log.LevelInfo)
	if err != nil {
		log.Warn("Access log disabled: %v", err)
	} else {
		defer accessLog.Close()
		opts = append(opts, httpapi.WithAccessLog(accessLog))
	}

	proxy := service.NewProxy(table, catalogClient, indexerClient)
	srv := httpapi.NewServer(proxy, table, reconciler, opts...)

	return runWithComponents(ctx, cfg, reconciler, cronRunner, srv)
}

// runWithComponents schedules reconciliation and serves HTTP until ctx is
// cancelled or the server fails.
func runWithComponents(ctx context.Context, cfg *config.Config, sched scheduler, engine cronEngine, httpSrv httpServer) error {
	if err := sched.Schedule(ctx); err != nil {
		return fmt.Errorf("schedule reconcile: %w", err)
	}
	engine.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Proxy server is running on %s", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		select {
		case <-engine.Stop().Done():
		case <-shutdownCtx.Done():
			log.Warn("Timed out waiting for running reconcile")
		}
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

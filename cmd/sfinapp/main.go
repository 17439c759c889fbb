package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"sfinapp/internal/cache"
	"sfinapp/internal/cli"
	"sfinapp/internal/core"
	apphttp "sfinapp/internal/http"
	applog "sfinapp/internal/log"
	"sfinapp/internal/services"
)

func main() {
	cfg, logger := cli.LoadConfig(applog.ComponentApp)
	logger.Info("Starting sfinapp")

	ctx, stop := cli.SignalContext()
	defer stop()

	b := cli.OpenBackend(ctx, cfg, logger)
	defer func() {
		if err := b.Close(); err != nil {
			logger.Error("Failed to close backend", applog.FieldError, err)
		}
	}()

	publisher := b.ChangePublisher()
	txOpts := []services.TransactionOption{services.WithTransactionPublisher(publisher)}

	cacheManager := cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)
	var cacheStats func() cache.Stats
	if cfg.ListCacheSize > 0 {
		lists := cache.NewLRUCache[[]core.TransactionListItem](cfg.ListCacheSize, cfg.ListCacheTTL)
		cacheManager.Register("transaction_lists", lists)
		txOpts = append(txOpts, services.WithListCache(lists))
		cacheStats = lists.Stats
	}

	accounts := services.NewAccountService(b.Repository, b.Versions, publisher)
	tags := services.NewTagService(b.Repository, b.Versions, publisher)
	transactions := services.NewTransactionService(b.Repository, accounts, b.Versions, txOpts...)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Transactions:       transactions,
		Accounts:           accounts,
		Tags:               tags,
		Pinger:             b.Repository,
		Changes:            b.Repository,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		CacheStats:         cacheStats,
	})

	if cfg.ListCacheSize > 0 {
		cacheManager.StartCleanup(cfg.ListCacheTTL)
		defer cacheManager.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server listening",
			"addr", srv.Addr,
			"version_backend", cfg.VersionBackend,
			"amqp_enabled", publisher != nil,
			"list_cache_size", cfg.ListCacheSize)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server", "timeout", cfg.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.LogError(context.Background(), "Server stopped with error", err, applog.ErrorTypeNetwork, "serve")
		os.Exit(1)
	}
	logger.Info("Server stopped")
}

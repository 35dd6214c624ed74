package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rl1809/codemarket/internal/adapter/handler"
	"github.com/rl1809/codemarket/internal/adapter/storage"
	"github.com/rl1809/codemarket/internal/api"
	"github.com/rl1809/codemarket/internal/config"
	"github.com/rl1809/codemarket/internal/core/domain"
	"github.com/rl1809/codemarket/internal/core/service"
	"github.com/rl1809/codemarket/internal/logging"
	"github.com/rl1809/codemarket/internal/port"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the market HTTP and gRPC servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		v := config.New()
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		cfg, err := config.Load(v, configFile)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logging.New(cfg.Log.Level, cfg.Log.Format))
	},
}

func init() {
	serveCmd.Flags().String("http_addr", ":8000", "HTTP listen address")
	serveCmd.Flags().String("grpc_addr", ":50051", "gRPC listen address")
}

// backends holds the optional MySQL and Redis adapters. Missing ones fall
// back to in-memory implementations.
type backends struct {
	transfers port.TransferLog
	journal   port.JournalRepository
	cache     port.CacheRepository
	closers   []func() error
}

func (b *backends) close(logger zerolog.Logger) {
	for _, c := range b.closers {
		if err := c(); err != nil {
			logger.Warn().Err(err).Msg("close backend")
		}
	}
}

func openBackends(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*backends, error) {
	b := &backends{
		transfers: storage.NewMemoryTransferLog(),
		journal:   discardJournal{},
		cache:     storage.NewMemoryCache(),
	}

	if cfg.MySQL.DSN != "" {
		db, err := openMySQL(ctx, cfg.MySQL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)

		mysqlAdapter := storage.NewMySQLAdapter(db)
		if err := mysqlAdapter.Migrate(ctx); err != nil {
			b.close(logger)
			return nil, fmt.Errorf("migrate: %w", err)
		}
		b.transfers = mysqlAdapter
		b.journal = mysqlAdapter
		logger.Info().Msg("connected to mysql")
	}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			b.close(logger)
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		b.closers = append(b.closers, rdb.Close)
		b.cache = storage.NewRedisAdapter(rdb)
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")
	}

	return b, nil
}

func openMySQL(ctx context.Context, cfg config.MySQLConfig) (*sql.DB, error) {
	db, err := storage.OpenMySQL(cfg.DSN)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

// discardJournal drops entries when no database is configured.
type discardJournal struct{}

func (discardJournal) AppendEntries(context.Context, []domain.JournalEntry) error { return nil }

func storedItems(cfg config.LedgerConfig) []domain.Item {
	items := make([]domain.Item, 0, len(cfg.StoredItems))
	for _, name := range cfg.StoredItems {
		items = append(items, domain.Item{Name: name, StoreQuantity: cfg.StoredQuantity})
	}
	return items
}

func serve(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.close(logger)

	market := service.NewMarketService(
		storage.NewMemoryLedger(storedItems(cfg.Ledger)),
		b.transfers,
		b.cache,
		cfg.Journal.QueueSize,
		logger,
	)

	var workers sync.WaitGroup
	for i := 0; i < cfg.Journal.Workers; i++ {
		w := service.NewJournalWorker(b.journal, cfg.Journal.BatchSize, cfg.Journal.FlushInterval, logger)
		workers.Add(1)
		go func(id int) {
			defer workers.Done()
			w.Run(id, market.GetJournalQueue())
		}(i)
	}
	logger.Info().Int("workers", cfg.Journal.Workers).Msg("started journal workers")

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.LoggingInterceptor(logger)))
	api.RegisterMarketServer(grpcServer, handler.NewGRPCHandler(market))

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewRouter(handler.NewHTTPHandler(market), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		market.Close()
		workers.Wait()
		return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.GRPCAddr).Msg("gRPC server listening")
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		logger.Info().Msg("HTTP server stopped")

		grpcServer.GracefulStop()
		logger.Info().Msg("gRPC server stopped")
		return err
	})

	err = g.Wait()

	market.Close()
	workers.Wait()
	logger.Info().Msg("journal workers stopped")
	return err
}

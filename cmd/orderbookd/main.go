package main

import (
	"context"
	"flag"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cfgpkg "github.com/kestrel-trading/orderbook/internal/config"
	"github.com/kestrel-trading/orderbook/internal/orderbook"
	"github.com/kestrel-trading/orderbook/internal/tickprice"
)

func main() {
	configPath := flag.String("config", "", "directory to search for config.yaml")
	flag.Parse()

	app := fx.New(
		fx.Provide(
			func() (*cfgpkg.Config, error) { return cfgpkg.Load(*configPath) },
			newLogger,
			newBook,
		),
		fx.Invoke(run),
	)
	app.Run()
}

func newLogger(cfg *cfgpkg.Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = level
	return zcfg.Build()
}

func newBook(cfg *cfgpkg.Config, logger *zap.Logger) (*orderbook.Book, error) {
	ratio := tickprice.Ratio{Num: cfg.Price.TickNum, Den: cfg.Price.TickDenom}
	min := tickprice.FromFloat(ratio, cfg.Price.Min, math.Round)
	max := tickprice.FromFloat(ratio, cfg.Price.Max, math.Round)
	return orderbook.New(orderbook.Config{
		Min:        min,
		Max:        max,
		Ratio:      ratio,
		QueueSize:  cfg.Dispatch.QueueSize,
		MaxBytes:   cfg.Dispatch.MaxBytes,
		RatePerSec: cfg.Dispatch.RatePerSec,
		Burst:      cfg.Dispatch.Burst,
		Logger:     logger,
	})
}

func run(lc fx.Lifecycle, book *orderbook.Book, logger *zap.Logger, cfg *cfgpkg.Config) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			logger.Info("orderbookd started", zap.String("symbol", cfg.Symbol), zap.String("book_id", book.ID().String()))
			if err := book.Metrics().Register(prometheus.DefaultRegisterer); err != nil {
				logger.Warn("failed to register engine metrics", zap.Error(err))
			}
			return nil
		},
		OnStop: func(_ context.Context) error {
			book.Close()
			logger.Info("orderbookd stopped")
			return nil
		},
	})
}

// Command seedmem fills a node's local store with synthetic strategy
// records for development. Point it at the same MURE_SQLITE_PATH the node
// uses, run it, then query the node to see ranked results.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/mure-ai/mure/internal/model"
	"github.com/mure-ai/mure/internal/storage"
)

var (
	symbols    = []string{"BTC-USD", "ETH-USD", "SOL-USD", "AVAX-USD"}
	strategies = []string{"momentum", "meanReversion", "breakout", "marketMaking"}
	regimes    = []string{"trending", "ranging", "volatile"}
)

func main() {
	path := flag.String("db", "mure.db", "sqlite database path")
	count := flag.Int("count", 50, "records to generate")
	nodeID := flag.String("node", "seed-node", "node id stamped on records")
	region := flag.String("region", "us-east", "region stamped on records")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	store, err := storage.NewSQLiteStore(*path, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open store:", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	now := time.Now()
	for i := 0; i < *count; i++ {
		winRate := 0.35 + rand.Float64()*0.4
		drawdown := rand.Float64() * 0.3
		rec := model.StrategyPerformanceRecord{
			StrategyID:   fmt.Sprintf("seed-%d", i),
			StrategyType: strategies[rand.IntN(len(strategies))],
			Symbol:       symbols[rand.IntN(len(symbols))],
			RegimeType:   regimes[rand.IntN(len(regimes))],
			Parameters: map[string]string{
				"lookback": fmt.Sprintf("%d", 10+rand.IntN(90)),
			},
			Metrics: model.StrategyMetrics{
				OverallScore: rand.Float64() * 100,
				Sharpe:       rand.Float64() * 3,
				Drawdown:     drawdown,
				WinRate:      winRate,
				PnL:          rand.Float64()*20000 - 5000,
				TradeCount:   10 + rand.IntN(500),
			},
			Timestamp: now.Add(-time.Duration(rand.IntN(72)) * time.Hour),
			NodeID:    *nodeID,
			Region:    *region,
		}
		if err := store.RecordStrategyPerformance(ctx, rec); err != nil {
			fmt.Fprintln(os.Stderr, "record:", err)
			os.Exit(1)
		}
	}

	n, err := store.StrategyCount(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "count:", err)
		os.Exit(1)
	}
	fmt.Printf("seeded %d records, store now holds %d\n", *count, n)
}

// Command simulate is a thin example program wiring the historical-data
// reader (C2) through the exchange event loop (C8) and client façade (C9)
// to a single demo strategy. It is explicitly out of the specified core
// (spec §1) and carries no invariant of its own — its only job is to
// exercise the module end to end against a handful of seeded trades.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"simexchange/internal/account"
	"simexchange/internal/api"
	"simexchange/internal/client"
	"simexchange/internal/exchange"
	"simexchange/internal/historical"
	"simexchange/internal/latency"
	"simexchange/internal/ledger"
	"simexchange/internal/matching"
	"simexchange/internal/model"
	"simexchange/internal/strategy"
	"simexchange/pkg/config"
	"simexchange/pkg/db"
)

var btcusdtSpot = model.Instrument{Base: "BTC", Quote: "USDT", Kind: model.Spot}

func main() {
	cfgPath := flag.String("config", "", "path to a YAML run config (optional)")
	httpAddr := flag.String("http", "", "address to serve the read-only inspection API on (empty disables it)")
	jwtSecret := flag.String("http-admin-secret", "", "bearer secret guarding the admin drop-tables route (empty leaves it open)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("open historical store: %v", err)
	}
	defer database.Close()

	store := historical.NewStore(database.DB, cfg.Exchange, cfg.InstrumentSymbol, cfg.Channel)
	date := seedDemoTrades(database.DB, cfg)
	if err := store.EnsureUnionView(context.Background(), date); err != nil {
		log.Fatalf("ensure union view: %v", err)
	}

	latencyModel := latency.New(latency.Config{
		Mode:    latency.Sine,
		Minimum: time.Duration(cfg.LatencyMinMicros) * time.Microsecond,
		Maximum: time.Duration(cfg.LatencyMaxMicros) * time.Microsecond,
		Seed:    42,
	})
	led := ledger.New(cfg.Exchange, cfg.MachineID, latencyModel)
	acc := account.New(cfg.Exchange, cfg.Account)
	acc.SetBalance("USDT", model.Balance{Time: time.Now(), Total: 10000, Available: 10000})
	acc.SetBalance("BTC", model.Balance{Time: time.Now()})

	engine := matching.New(acc, led)
	ex := exchange.New(cfg.Exchange, engine, cfg.EventBufferSize, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go ex.Run(ctx)
	cl := client.New(ex)

	go logEvents(cl.Events())

	if *httpAddr != "" {
		srv := api.NewServer(cl, store, *jwtSecret)
		go func() {
			log.Printf("inspection API listening on %s", *httpAddr)
			if err := srv.Router.Run(*httpAddr); err != nil {
				log.Printf("inspection API stopped: %v", err)
			}
		}()
	}

	log.Println("📈 simulate: resting a limit buy ahead of replay")
	order, _, err := cl.OpenOrder(ctx, model.RequestOpen{
		Instrument: btcusdtSpot,
		Side:       model.SideBuy,
		Kind:       model.GoodTilCancelled,
		Price:      50000,
		Size:       0.1,
	})
	if err != nil {
		log.Fatalf("open order: %v", err)
	}
	log.Printf("resting order id=%d price=%.2f size=%.4f", order.ID, order.Price, order.Size)

	replayTrades(ctx, cl, store, date)

	balances, err := cl.FetchBalances(ctx)
	if err != nil {
		log.Fatalf("fetch balances: %v", err)
	}
	positions, err := cl.FetchPositions(ctx)
	if err != nil {
		log.Fatalf("fetch positions: %v", err)
	}

	log.Println("=== final account state ===")
	for _, b := range balances {
		log.Printf("  %-5s total=%.6f available=%.6f", b.Token, b.Balance.Total, b.Balance.Available)
	}
	for _, p := range positions {
		log.Printf("  position %s side=%s size=%.6f avg=%.2f pnl=%.4f",
			p.Meta.Instrument, p.Meta.Side, p.Meta.CurrentSize, p.Meta.CurrentAvgPrice, p.Meta.RealisedPnL)
	}
	log.Println("✅ simulate: done")
}

// replayTrades pages the seeded date's union view in batches, feeds each
// row into the exchange as a public trade (the spec §4.1/§4.6 pipeline),
// and lets the demo strategy react to the same trade stream by submitting
// its own orders through the client façade — both paths land on the
// exchange's single serialized request channel.
func replayTrades(ctx context.Context, cl *client.Client, store *historical.Store, date time.Time) {
	strat := strategy.NewDemoStrategy(btcusdtSpot, 0.01, 0.0005)
	ch := store.QueryUnionedTradeTableBatchedForDates(ctx, date, date, 100, nil)
	n := 0
	for ev := range ch {
		if ev.Err != nil {
			log.Printf("⚠️ replay error: %v", ev.Err)
			continue
		}
		at := time.UnixMilli(ev.Trade.Timestamp)
		if err := cl.FeedPublicTrade(ctx, btcusdtSpot, ev.Trade, at); err != nil {
			log.Printf("⚠️ feed trade: %v", err)
			continue
		}
		n++

		if req := strat.OnTrade(ev.Trade); req != nil {
			order, _, err := cl.OpenOrder(ctx, *req)
			if err != nil {
				log.Printf("strategy order rejected: %v", err)
				continue
			}
			log.Printf("strategy order id=%d side=%s size=%.4f status=%s", order.ID, order.Side, order.Size, order.Status)
		}
	}
	log.Printf("replayed %d public trades for %s", n, date.Format("2006-01-02"))
}

func logEvents(events <-chan model.AccountEvent) {
	for ev := range events {
		log.Printf("event kind=%s exchange=%s", ev.Kind, ev.Exchange)
	}
}

// seedDemoTrades populates one day of per-symbol trade tables so the
// program has something to replay without a real columnar-store upstream.
// Returns the seeded date.
func seedDemoTrades(db *sql.DB, cfg *config.RunConfig) time.Time {
	date := time.Now().UTC().Truncate(24 * time.Hour)
	table := historical.ConstructTableName(cfg.Exchange, cfg.InstrumentSymbol, cfg.Channel, date, "BTC", "USDT")
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS ` + table +
		` (symbol TEXT, side TEXT, price REAL, timestamp INTEGER, amount REAL)`); err != nil {
		log.Fatalf("seed demo trades: %v", err)
	}
	var n int
	_ = db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n)
	if n == 0 {
		base := date.UnixMilli()
		rows := []struct {
			side   string
			price  float64
			offset int64
			amount float64
		}{
			{"sell", 49999, 1000, 0.04},
			{"sell", 49998, 2000, 0.03},
			{"sell", 49995, 3000, 0.05},
		}
		for _, r := range rows {
			if _, err := db.Exec(`INSERT INTO `+table+` (symbol, side, price, timestamp, amount) VALUES (?, ?, ?, ?, ?)`,
				"BTCUSDT", r.side, r.price, base+r.offset, r.amount); err != nil {
				log.Fatalf("seed demo trades: %v", err)
			}
		}
	}
	return date
}

// Command ledgercore is a demo harness: it wires the event log, projector,
// reconciler, and ledger store together against a scripted in-memory
// exchange, exercising the full pipeline without a real network dependency.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/klingon-exchange/ledger-core/internal/config"
	"github.com/klingon-exchange/ledger-core/internal/eventlog"
	"github.com/klingon-exchange/ledger-core/internal/ledger"
	"github.com/klingon-exchange/ledger-core/internal/projector"
	"github.com/klingon-exchange/ledger-core/internal/reconciler"
	"github.com/klingon-exchange/ledger-core/internal/storage"
	"github.com/klingon-exchange/ledger-core/internal/types"
	"github.com/klingon-exchange/ledger-core/pkg/logging"
)

var (
	version = "0.1.0-dev"
)

func main() {
	var (
		dataDir     = flag.String("data-dir", "./data", "Data directory")
		symbol      = flag.String("symbol", "", "Symbol to trade, overrides config")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error), overrides config")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("ledgercore %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.LoadRuntimeConfig(*dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *symbol != "" {
		cfg.Symbols = []string{*symbol}
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	log := logging.New(&logging.Config{Level: cfg.Logging.Level, TimeFormat: time.TimeOnly})
	logging.SetDefault(log)

	if len(cfg.Symbols) == 0 {
		log.Fatal("no symbols configured")
	}
	tradingSymbol := cfg.Symbols[0]

	store, err := storage.New(&storage.Config{DataDir: cfg.DataDir})
	if err != nil {
		log.Fatal("failed to initialize storage", "error", err)
	}
	defer store.Close()
	log.Info("storage initialized", "path", cfg.DataDir)

	evLog := eventlog.New(store)
	proj := projector.New(store)

	ledgerStore, err := ledger.New(store)
	if err != nil {
		log.Fatal("failed to initialize ledger store", "error", err)
	}
	builder := ledger.NewBuilder(ledgerStore, config.LedgerEpoch, ledger.NewRateSource(nil))
	runner := ledger.NewRunner(store, ledgerStore, builder)

	scope := types.NewScope(cfg.Scope.Exchange, cfg.Scope.Venue, cfg.Scope.AccountID, tradingSymbol, cfg.Scope.Mode)
	rest := newScriptedExchange(tradingSymbol, decimal.NewFromInt(10000))
	recon := reconciler.New(rest, evLog, proj, scope, tradingSymbol)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting full reconcile")
	if _, err := recon.FullReconcile(ctx); err != nil {
		log.Error("full reconcile failed", "error", err)
	}
	drainPipeline(log, proj, runner)

	printSummary(log, ledgerStore, proj, scope, tradingSymbol, cfg.Scope.Mode)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	fills := demoFillScript()
	fillIdx := 0

	log.Info("entering demo loop", "symbol", tradingSymbol, "fills_scripted", len(fills))

	for {
		select {
		case <-sigCh:
			log.Info("shutting down")
			return
		case <-ticker.C:
			if fillIdx < len(fills) {
				f := fills[fillIdx]
				trade := rest.stepFill(f.side, f.qty, f.price)
				log.Info("simulated fill", "side", f.side, "qty", f.qty, "price", f.price, "trade_id", trade.TradeID)
				fillIdx++
			}

			if _, err := recon.Tick(ctx); err != nil {
				log.Error("reconcile tick failed", "error", err)
			}
			drainPipeline(log, proj, runner)

			if fillIdx == len(fills) {
				printSummary(log, ledgerStore, proj, scope, tradingSymbol, cfg.Scope.Mode)
				fillIdx++ // print exactly once
			}
		}
	}
}

type scriptedFill struct {
	side  types.OrderSide
	qty   decimal.Decimal
	price decimal.Decimal
}

// demoFillScript replays a small long-then-exit sequence so the demo
// exercises position-session ENTRY, ADD, and EXIT handling end to end.
func demoFillScript() []scriptedFill {
	return []scriptedFill{
		{types.SideBuy, decimal.NewFromFloat(0.1), decimal.NewFromInt(60000)},
		{types.SideBuy, decimal.NewFromFloat(0.05), decimal.NewFromInt(60500)},
		{types.SideSell, decimal.NewFromFloat(0.15), decimal.NewFromInt(61200)},
	}
}

// drainPipeline applies every pending event through the projector and the
// ledger runner. The two checkpoints advance independently since a handler
// failure in one must never block the other.
func drainPipeline(log *logging.Logger, proj *projector.Projector, runner *ledger.Runner) {
	if _, err := proj.ApplyAllPending(config.DefaultProjectorBatchSize); err != nil {
		log.Error("projector apply failed", "error", err)
	}
	if _, err := runner.ApplyAllPending(config.DefaultProjectorBatchSize); err != nil {
		log.Error("ledger runner apply failed", "error", err)
	}
}

func printSummary(log *logging.Logger, store *ledger.Store, proj *projector.Projector, scope types.Scope, symbol string, mode config.TradingMode) {
	pos, err := proj.GetPosition(scope, symbol)
	if err != nil {
		log.Error("get position failed", "error", err)
	} else if pos != nil {
		log.Info("position", "symbol", symbol, "side", pos.Side.String, "qty", pos.Qty, "entry_price", pos.EntryPrice)
	} else {
		log.Info("position", "symbol", symbol, "qty", "0")
	}

	bal, err := proj.GetBalance(scope, "USDT")
	if err != nil {
		log.Error("get balance failed", "error", err)
	} else if bal != nil {
		log.Info("balance", "asset", "USDT", "free", bal.Free, "locked", bal.Locked)
	}

	trial, err := store.GetTrialBalance(mode)
	if err != nil {
		log.Error("get trial balance failed", "error", err)
		return
	}
	for _, row := range trial {
		log.Info("trial balance", "account", row.AccountID, "type", row.AccountType, "balance", row.Balance)
	}
}

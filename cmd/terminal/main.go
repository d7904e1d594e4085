package main

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aGuizada/inventarios-engine/internal/cache"
	"github.com/aGuizada/inventarios-engine/internal/config"
	"github.com/aGuizada/inventarios-engine/internal/domain"
	"github.com/aGuizada/inventarios-engine/internal/engine"
	"github.com/aGuizada/inventarios-engine/internal/gateway"
	"github.com/aGuizada/inventarios-engine/internal/gateway/memory"
	pggateway "github.com/aGuizada/inventarios-engine/internal/gateway/postgres"
)

// The terminal command wires the engine against real collaborators and
// walks one sale session end to end. It is a smoke harness, not a UI.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		catalog gateway.CatalogService
		stock   gateway.StockService
		commit  gateway.CommitService
		drawer  gateway.CashRegisterService
	)
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pggateway.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		catalog, stock, commit, drawer = pg, pg, pg, pg
		closers = append(closers, pg.Close)
		log.Println("gateways: postgres")
	} else {
		mem := memory.NewSeeded()
		catalog, stock, commit, drawer = mem, mem, mem, mem
		log.Println("gateways: in-memory")
	}

	snapshotCache := cache.SnapshotCache(cache.NoopSnapshotCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisSnapshotCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			snapshotCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	loader := engine.NewSnapshotLoader(stock, snapshotCache, time.Duration(cfg.SnapshotTTLSeconds)*time.Second)
	builder := engine.NewTransactionBuilder(engine.KindSale, catalog, commit, loader)
	builder.SetClient(1)
	builder.SetUser(cfg.UserID)
	builder.SetSaleType(1)
	builder.SetDrawer(cfg.DrawerID)

	if err := builder.LoadWarehouse(ctx, cfg.WarehouseID); err != nil {
		log.Fatalf("load warehouse %d: %v", cfg.WarehouseID, err)
	}

	if _, err := builder.AddLine(1, decimal.NewFromInt(2), domain.UnitBase, 0, decimal.Zero); err != nil {
		log.Fatalf("add line: %v", err)
	}
	if _, err := builder.AddLine(3, decimal.NewFromInt(1), domain.UnitPackage, 0, decimal.Zero); err != nil {
		log.Fatalf("add line: %v", err)
	}
	log.Printf("cart total: %s", builder.Total())

	if _, err := builder.AddTender(1, nil, ""); err != nil {
		log.Fatalf("add tender: %v", err)
	}

	commitCtx, commitCancel := context.WithTimeout(context.Background(), time.Duration(cfg.CommitTimeoutSeconds)*time.Second)
	defer commitCancel()

	id, err := builder.Commit(commitCtx)
	if err != nil {
		log.Fatalf("commit: %v", err)
	}
	log.Printf("sale committed: %s", id)

	state, err := drawer.DrawerState(ctx, cfg.DrawerID)
	if err != nil {
		log.Fatalf("drawer state: %v", err)
	}
	var reconciler engine.CashReconciler
	expected := reconciler.ExpectedBalance(state)
	log.Printf("drawer %d expected balance: %s", state.DrawerID, expected)

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}
}

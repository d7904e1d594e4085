// Package memory implements every collaborator gateway in process, with
// seeded fixtures. It backs the tests and the demo terminal; the commit
// path applies stock authoritatively, so snapshot/commit races can be
// reproduced deterministically.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aGuizada/inventarios-engine/internal/domain"
	"github.com/aGuizada/inventarios-engine/internal/gateway"
)

type stockKey struct {
	articleID   int64
	warehouseID int64
}

type Store struct {
	mu           sync.RWMutex
	articles     map[int64]domain.CatalogArticle
	paymentTypes map[int64]domain.PaymentType
	saleTypes    map[int64]domain.SaleType
	stock        map[stockKey]decimal.Decimal
	drawers      map[int64]domain.CashDrawerState

	sales     map[string]domain.SalePayload
	purchases map[string]domain.PurchasePayload

	nextCommitErr error
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func NewSeeded() *Store {
	articles := []domain.CatalogArticle{
		{ID: 1, Name: "Arroz Grano de Oro 1kg", SalePrice: dec("12.50"), Price1: dec("11.80"), PackagingFactor: 10, UnitCost: dec("9.70")},
		{ID: 2, Name: "Aceite Fino 900ml", SalePrice: dec("16.00"), PackagingFactor: 12, UnitCost: dec("13.20")},
		{ID: 3, Name: "Leche PIL 1L", SalePrice: dec("7.50"), Price1: dec("7.00"), PackagingFactor: 12, UnitCost: dec("6.10")},
		{ID: 4, Name: "Cable THW", SalePrice: dec("4.80"), PackagingFactor: 1, UnitCost: dec("3.50")},
		{ID: 5, Name: "Azucar Guabira 1kg", SalePrice: dec("6.80"), PackagingFactor: 25, UnitCost: dec("5.40")},
	}
	paymentTypes := []domain.PaymentType{
		{ID: 1, Name: "Efectivo", Class: domain.PaymentCash},
		{ID: 2, Name: "Tarjeta", Class: domain.PaymentCard},
		{ID: 3, Name: "Credito", Class: domain.PaymentCredit},
		{ID: 4, Name: "Pago QR", Class: domain.PaymentQR},
		{ID: 5, Name: "Transferencia", Class: domain.PaymentTransfer},
	}
	saleTypes := []domain.SaleType{
		{ID: 1, Name: "Contado", Credit: false},
		{ID: 2, Name: "Credito", Credit: true},
	}

	articleMap := make(map[int64]domain.CatalogArticle, len(articles))
	stock := make(map[stockKey]decimal.Decimal)
	for _, a := range articles {
		articleMap[a.ID] = a
		stock[stockKey{articleID: a.ID, warehouseID: 1}] = dec("120")
	}

	paymentTypeMap := make(map[int64]domain.PaymentType, len(paymentTypes))
	for _, p := range paymentTypes {
		paymentTypeMap[p.ID] = p
	}
	saleTypeMap := make(map[int64]domain.SaleType, len(saleTypes))
	for _, s := range saleTypes {
		saleTypeMap[s.ID] = s
	}

	drawers := map[int64]domain.CashDrawerState{
		1: {
			DrawerID:       1,
			OpeningBalance: dec("200.00"),
			CashSales:      dec("830.50"),
			CardSales:      dec("145.00"),
			QRSales:        dec("96.00"),
			Deposits:       dec("50.00"),
			Withdrawals:    dec("120.00"),
			CashPurchases:  dec("310.00"),
		},
	}

	return &Store{
		articles:     articleMap,
		paymentTypes: paymentTypeMap,
		saleTypes:    saleTypeMap,
		stock:        stock,
		drawers:      drawers,
		sales:        make(map[string]domain.SalePayload),
		purchases:    make(map[string]domain.PurchasePayload),
	}
}

func (s *Store) ListArticles(_ context.Context) ([]domain.CatalogArticle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	articles := make([]domain.CatalogArticle, 0, len(s.articles))
	for _, a := range s.articles {
		articles = append(articles, a)
	}
	return articles, nil
}

func (s *Store) ListPaymentTypes(_ context.Context) ([]domain.PaymentType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := make([]domain.PaymentType, 0, len(s.paymentTypes))
	for _, p := range s.paymentTypes {
		types = append(types, p)
	}
	return types, nil
}

func (s *Store) ListSaleTypes(_ context.Context) ([]domain.SaleType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := make([]domain.SaleType, 0, len(s.saleTypes))
	for _, st := range s.saleTypes {
		types = append(types, st)
	}
	return types, nil
}

func (s *Store) WarehouseSnapshot(_ context.Context, warehouseID int64) ([]domain.StockEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.StockEntry, 0, len(s.stock))
	for key, available := range s.stock {
		if key.warehouseID != warehouseID {
			continue
		}
		entries = append(entries, domain.StockEntry{
			ArticleID:   key.articleID,
			WarehouseID: key.warehouseID,
			Available:   available,
		})
	}
	return entries, nil
}

func (s *Store) DrawerState(_ context.Context, drawerID int64) (domain.CashDrawerState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.drawers[drawerID]
	if !ok {
		return domain.CashDrawerState{}, gateway.ErrNotFound
	}
	return state, nil
}

// CommitSale applies the payload against authoritative stock. Any detail
// that no longer fits returns a concurrency conflict and nothing is
// applied.
func (s *Store) CommitSale(_ context.Context, payload domain.SalePayload) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeNextCommitErr(); err != nil {
		return "", err
	}

	needed := make(map[stockKey]decimal.Decimal, len(payload.Details))
	for _, detail := range payload.Details {
		base, err := s.baseUnits(detail)
		if err != nil {
			return "", err
		}
		key := stockKey{articleID: detail.ArticleID, warehouseID: payload.WarehouseID}
		needed[key] = needed[key].Add(base)
	}
	for key, qty := range needed {
		if qty.Cmp(s.stock[key]) > 0 {
			return "", gateway.ErrConcurrencyConflict
		}
	}
	for key, qty := range needed {
		s.stock[key] = s.stock[key].Sub(qty)
	}

	id := uuid.NewString()
	s.sales[id] = payload
	return id, nil
}

// CommitPurchase applies the payload and increases authoritative stock.
func (s *Store) CommitPurchase(_ context.Context, payload domain.PurchasePayload) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeNextCommitErr(); err != nil {
		return "", err
	}

	for _, detail := range payload.Details {
		base, err := s.baseUnits(detail)
		if err != nil {
			return "", err
		}
		key := stockKey{articleID: detail.ArticleID, warehouseID: payload.WarehouseID}
		s.stock[key] = s.stock[key].Add(base)
	}

	id := uuid.NewString()
	s.purchases[id] = payload
	return id, nil
}

func (s *Store) baseUnits(detail domain.DetailLine) (decimal.Decimal, error) {
	switch detail.Unit {
	case domain.UnitBase:
		return detail.Quantity, nil
	case domain.UnitPackage:
		factor := s.articles[detail.ArticleID].PackagingFactor
		if factor < 1 {
			factor = 1
		}
		return detail.Quantity.Mul(decimal.NewFromInt(int64(factor))), nil
	case domain.UnitFraction:
		return detail.Quantity.Div(decimal.NewFromInt(100)), nil
	default:
		return decimal.Zero, gateway.ErrNotFound
	}
}

func (s *Store) takeNextCommitErr() error {
	err := s.nextCommitErr
	s.nextCommitErr = nil
	return err
}

// FailNextCommit makes the next commit call return err. Test hook.
func (s *Store) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextCommitErr = err
}

// SetStock overwrites authoritative availability. Test hook for simulating
// other terminals depleting stock between snapshot and commit.
func (s *Store) SetStock(articleID, warehouseID int64, available decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[stockKey{articleID: articleID, warehouseID: warehouseID}] = available
}

// StockOf reports authoritative availability. Test hook.
func (s *Store) StockOf(articleID, warehouseID int64) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stock[stockKey{articleID: articleID, warehouseID: warehouseID}]
}

// SaleByID returns a committed sale payload. Test hook.
func (s *Store) SaleByID(id string) (domain.SalePayload, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.sales[id]
	return payload, ok
}

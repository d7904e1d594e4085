package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aGuizada/inventarios-engine/internal/domain"
	"github.com/aGuizada/inventarios-engine/internal/gateway"
	"github.com/aGuizada/inventarios-engine/internal/gateway/memory"
)

func newSaleSession(t *testing.T) (*TransactionBuilder, *memory.Store) {
	t.Helper()

	store := memory.NewSeeded()
	loader := NewSnapshotLoader(store, nil, time.Minute)
	builder := NewTransactionBuilder(KindSale, store, store, loader)
	builder.SetClient(1)
	builder.SetUser(1)
	builder.SetSaleType(1)
	builder.SetDrawer(1)

	if err := builder.LoadWarehouse(context.Background(), 1); err != nil {
		t.Fatalf("load warehouse failed: %v", err)
	}
	return builder, store
}

func TestSaleSessionEndToEnd(t *testing.T) {
	builder, store := newSaleSession(t)
	ctx := context.Background()

	if _, err := builder.AddLine(1, decimal.NewFromInt(2), domain.UnitBase, 0, decimal.Zero); err != nil {
		t.Fatalf("add line failed: %v", err)
	}
	if _, err := builder.AddLine(3, decimal.NewFromInt(1), domain.UnitPackage, 0, decimal.Zero); err != nil {
		t.Fatalf("add line failed: %v", err)
	}

	total := builder.Total()
	if !total.Equal(decimal.RequireFromString("32.50")) {
		t.Fatalf("expected total 32.50, got %s", total)
	}

	if _, err := builder.AddTender(1, nil, ""); err != nil {
		t.Fatalf("add tender failed: %v", err)
	}
	if !builder.IsPaymentComplete() {
		t.Fatalf("expected complete payment after default tender")
	}

	id, err := builder.Commit(ctx)
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	if got := store.StockOf(1, 1); !got.Equal(decimal.NewFromInt(118)) {
		t.Fatalf("expected article 1 stock 118 after commit, got %s", got)
	}
	if got := store.StockOf(3, 1); !got.Equal(decimal.NewFromInt(108)) {
		t.Fatalf("expected article 3 stock 108 after commit, got %s", got)
	}

	payload, ok := store.SaleByID(id)
	if !ok {
		t.Fatalf("committed sale %s not found", id)
	}
	if len(payload.Details) != 2 || len(payload.Payments) != 1 {
		t.Fatalf("expected 2 details and 1 payment, got %d and %d", len(payload.Details), len(payload.Payments))
	}
	if payload.PaymentTypeID != 1 {
		t.Fatalf("expected primary payment type 1, got %d", payload.PaymentTypeID)
	}

	if _, err := builder.Commit(ctx); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation on double commit, got %v", err)
	}
}

func TestTotalInvariantAcrossCartEdits(t *testing.T) {
	builder, _ := newSaleSession(t)

	if _, err := builder.AddLine(1, decimal.NewFromInt(4), domain.UnitBase, 1, decimal.Zero); err != nil {
		t.Fatalf("add line failed: %v", err)
	}
	if _, err := builder.AddLine(4, decimal.NewFromInt(250), domain.UnitFraction, 0, decimal.Zero); err != nil {
		t.Fatalf("add line failed: %v", err)
	}
	if err := builder.UpdateLineQuantity(0, decimal.NewFromInt(2)); err != nil {
		t.Fatalf("update quantity failed: %v", err)
	}
	if err := builder.SetLineDiscount(0, decimal.RequireFromString("1.60")); err != nil {
		t.Fatalf("set discount failed: %v", err)
	}
	if err := builder.SetGlobalDiscount(decimal.NewFromInt(5)); err != nil {
		t.Fatalf("set global discount failed: %v", err)
	}

	want := decimal.Zero
	for _, line := range builder.Lines() {
		want = want.Add(line.Subtotal())
	}
	want = want.Sub(decimal.NewFromInt(5))

	if !builder.Total().Equal(want) {
		t.Fatalf("total invariant broken: expected %s, got %s", want, builder.Total())
	}

	if err := builder.RemoveLine(1); err != nil {
		t.Fatalf("remove line failed: %v", err)
	}
	if len(builder.Lines()) != 1 {
		t.Fatalf("expected 1 line after removal, got %d", len(builder.Lines()))
	}
}

func TestAddLineInsufficientStockLeavesCartUntouched(t *testing.T) {
	builder, _ := newSaleSession(t)

	// 11 packages of factor 12 need 132 base units against 120 available.
	_, err := builder.AddLine(2, decimal.NewFromInt(11), domain.UnitPackage, 0, decimal.Zero)
	var insufficient *InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError for 132 base units, got %v", err)
	}
	if len(builder.Lines()) != 0 {
		t.Fatalf("failed line must not be appended, got %d lines", len(builder.Lines()))
	}
}

func TestSalePayloadCarriesWireFieldNames(t *testing.T) {
	builder, _ := newSaleSession(t)

	if _, err := builder.AddLine(1, decimal.NewFromInt(1), domain.UnitBase, 0, decimal.Zero); err != nil {
		t.Fatalf("add line failed: %v", err)
	}
	if _, err := builder.AddTender(2, nil, "POS-7781"); err != nil {
		t.Fatalf("add tender failed: %v", err)
	}

	payload, err := builder.SalePayload()
	if err != nil {
		t.Fatalf("sale payload failed: %v", err)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	body := string(raw)
	for _, field := range []string{
		`"cliente_id"`, `"tipo_venta_id"`, `"tipo_pago_id"`, `"almacen_id"`,
		`"caja_id"`, `"detalles"`, `"pagos"`, `"articulo_id"`, `"cantidad"`,
		`"unidad_medida"`, `"monto"`,
	} {
		if !strings.Contains(body, field) {
			t.Fatalf("payload missing field %s in %s", field, body)
		}
	}
	if strings.Contains(body, `"numero_cuotas"`) {
		t.Fatalf("cash sale must omit installment fields, got %s", body)
	}
}

func TestCreditSalePayloadCarriesInstallmentTerms(t *testing.T) {
	builder, _ := newSaleSession(t)
	builder.SetSaleType(2)

	if _, err := builder.AddLine(5, decimal.NewFromInt(100), domain.UnitBase, 0, decimal.Zero); err != nil {
		t.Fatalf("add line failed: %v", err)
	}

	// Credit terms are mandatory before the payload can be emitted.
	if _, err := builder.SalePayload(); !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("expected ErrInvalidSchedule without terms, got %v", err)
	}
	if err := builder.SetCredit(3, 30); err != nil {
		t.Fatalf("set credit failed: %v", err)
	}

	down := decimal.NewFromInt(80)
	if _, err := builder.AddTender(1, &down, ""); err != nil {
		t.Fatalf("add down payment failed: %v", err)
	}

	payload, err := builder.SalePayload()
	if err != nil {
		t.Fatalf("sale payload failed: %v", err)
	}
	if payload.InstallmentCount == nil || *payload.InstallmentCount != 3 {
		t.Fatalf("expected 3 installments in payload, got %v", payload.InstallmentCount)
	}
	if payload.InstallmentFrequencyDays == nil || *payload.InstallmentFrequencyDays != 30 {
		t.Fatalf("expected 30 day frequency in payload, got %v", payload.InstallmentFrequencyDays)
	}

	plan, err := builder.PreviewSchedule(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("preview schedule failed: %v", err)
	}
	sum := decimal.Zero
	for _, inst := range plan.Installments {
		sum = sum.Add(inst.Amount)
	}
	if !sum.Equal(builder.Total().Sub(down)) {
		t.Fatalf("schedule must finance total minus down payment, got %s", sum)
	}
}

func TestCreditSaleWithoutTendersFallsBackToCreditMethod(t *testing.T) {
	builder, _ := newSaleSession(t)
	builder.SetSaleType(2)

	if _, err := builder.AddLine(1, decimal.NewFromInt(1), domain.UnitBase, 0, decimal.Zero); err != nil {
		t.Fatalf("add line failed: %v", err)
	}
	if err := builder.SetCredit(2, 15); err != nil {
		t.Fatalf("set credit failed: %v", err)
	}

	payload, err := builder.SalePayload()
	if err != nil {
		t.Fatalf("sale payload failed: %v", err)
	}
	if payload.PaymentTypeID != 3 {
		t.Fatalf("expected catalog credit method 3, got %d", payload.PaymentTypeID)
	}
}

func TestCommitConflictForcesSnapshotReload(t *testing.T) {
	builder, store := newSaleSession(t)
	ctx := context.Background()

	if _, err := builder.AddLine(1, decimal.NewFromInt(2), domain.UnitBase, 0, decimal.Zero); err != nil {
		t.Fatalf("add line failed: %v", err)
	}
	if _, err := builder.AddTender(1, nil, ""); err != nil {
		t.Fatalf("add tender failed: %v", err)
	}

	// Another terminal drains the article between snapshot and commit.
	store.SetStock(1, 1, decimal.NewFromInt(1))

	if _, err := builder.Commit(ctx); !errors.Is(err, gateway.ErrConcurrencyConflict) {
		t.Fatalf("expected concurrency conflict, got %v", err)
	}
	if !builder.SnapshotStale() {
		t.Fatalf("conflict must mark the snapshot stale")
	}

	if _, err := builder.AddLine(2, decimal.NewFromInt(1), domain.UnitBase, 0, decimal.Zero); !errors.Is(err, ErrSnapshotStale) {
		t.Fatalf("stale session must refuse reservations, got %v", err)
	}
	if _, err := builder.SalePayload(); !errors.Is(err, ErrSnapshotStale) {
		t.Fatalf("stale session must refuse payloads, got %v", err)
	}

	if err := builder.LoadWarehouse(ctx, 1); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if builder.SnapshotStale() {
		t.Fatalf("reload must clear staleness")
	}
	if len(builder.Lines()) != 0 {
		t.Fatalf("reload must discard the cart, got %d lines", len(builder.Lines()))
	}

	// Tenders survive the reload, so the smaller replacement cart needs its
	// payment rebuilt too.
	builder.RemoveTender(0)
	if _, err := builder.AddLine(1, decimal.NewFromInt(1), domain.UnitBase, 0, decimal.Zero); err != nil {
		t.Fatalf("add line after reload failed: %v", err)
	}
	if _, err := builder.AddTender(1, nil, ""); err != nil {
		t.Fatalf("add tender after reload failed: %v", err)
	}
	if _, err := builder.Commit(ctx); err != nil {
		t.Fatalf("commit after reload failed: %v", err)
	}
}

func TestNetworkErrorLeavesSessionRetryable(t *testing.T) {
	builder, store := newSaleSession(t)
	ctx := context.Background()

	if _, err := builder.AddLine(1, decimal.NewFromInt(2), domain.UnitBase, 0, decimal.Zero); err != nil {
		t.Fatalf("add line failed: %v", err)
	}
	if _, err := builder.AddTender(1, nil, ""); err != nil {
		t.Fatalf("add tender failed: %v", err)
	}

	store.FailNextCommit(&gateway.NetworkError{Op: "commit_sale", Err: errors.New("connection reset")})

	_, err := builder.Commit(ctx)
	var netErr *gateway.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if builder.SnapshotStale() {
		t.Fatalf("network failure must not invalidate the snapshot")
	}

	id, err := builder.Commit(ctx)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if _, ok := store.SaleByID(id); !ok {
		t.Fatalf("retried sale %s not found", id)
	}
	if got := store.StockOf(1, 1); !got.Equal(decimal.NewFromInt(118)) {
		t.Fatalf("stock must be applied exactly once, got %s", got)
	}
}

func TestPurchaseSessionAddsStock(t *testing.T) {
	store := memory.NewSeeded()
	loader := NewSnapshotLoader(store, nil, time.Minute)
	builder := NewTransactionBuilder(KindPurchase, store, store, loader)
	builder.SetSupplier(9)
	builder.SetUser(1)
	builder.SetDrawer(1)
	ctx := context.Background()

	if err := builder.LoadWarehouse(ctx, 1); err != nil {
		t.Fatalf("load warehouse failed: %v", err)
	}

	// Purchases never reserve: ordering beyond current availability is fine.
	if _, err := builder.AddLine(1, decimal.NewFromInt(500), domain.UnitBase, 0, decimal.Zero); err != nil {
		t.Fatalf("add line failed: %v", err)
	}
	if _, err := builder.AddTender(1, nil, ""); err != nil {
		t.Fatalf("add tender failed: %v", err)
	}

	if _, err := builder.Commit(ctx); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if got := store.StockOf(1, 1); !got.Equal(decimal.NewFromInt(620)) {
		t.Fatalf("expected stock 620 after purchase, got %s", got)
	}
}

func TestSessionsDoNotShareReservations(t *testing.T) {
	store := memory.NewSeeded()
	store.SetStock(1, 1, decimal.NewFromInt(10))

	newBuilder := func() *TransactionBuilder {
		loader := NewSnapshotLoader(store, nil, time.Minute)
		b := NewTransactionBuilder(KindSale, store, store, loader)
		b.SetClient(1)
		b.SetUser(1)
		b.SetSaleType(1)
		b.SetDrawer(1)
		if err := b.LoadWarehouse(context.Background(), 1); err != nil {
			t.Fatalf("load warehouse failed: %v", err)
		}
		return b
	}

	first := newBuilder()
	second := newBuilder()

	if _, err := first.AddLine(1, decimal.NewFromInt(10), domain.UnitBase, 0, decimal.Zero); err != nil {
		t.Fatalf("first session reserve failed: %v", err)
	}
	// Advisory snapshots are per session: the second terminal still sees 10.
	if _, err := second.AddLine(1, decimal.NewFromInt(10), domain.UnitBase, 0, decimal.Zero); err != nil {
		t.Fatalf("second session reserve failed: %v", err)
	}

	if first.SessionID() == second.SessionID() {
		t.Fatalf("sessions must have distinct ids")
	}
}

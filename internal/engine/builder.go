package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aGuizada/inventarios-engine/internal/domain"
	"github.com/aGuizada/inventarios-engine/internal/gateway"
	"github.com/aGuizada/inventarios-engine/internal/xid"
)

type TransactionKind string

const (
	KindSale     TransactionKind = "venta"
	KindPurchase TransactionKind = "compra"
)

// TransactionBuilder is the per-session orchestrator. It owns its own
// projector, allocator and snapshot loader, so concurrent sessions can
// never cross-contaminate reservations. Every method runs synchronously on
// a user action; the only asynchronous boundary is Commit.
type TransactionBuilder struct {
	sessionID string
	kind      TransactionKind

	catalog gateway.CatalogService
	commit  gateway.CommitService
	loader  *SnapshotLoader

	projector *StockProjector
	allocator *PaymentAllocator
	scheduler InstallmentScheduler

	articles     map[int64]domain.CatalogArticle
	paymentTypes map[int64]domain.PaymentType
	saleTypes    map[int64]domain.SaleType

	warehouseID int64
	drawerID    int64
	clientID    int64
	supplierID  int64
	userID      int64
	saleTypeID  int64

	lines          []domain.CartLine
	globalDiscount decimal.Decimal

	installmentCount         int
	installmentFrequencyDays int

	snapshotLoaded bool
	snapshotStale  bool
	committed      bool
}

func NewTransactionBuilder(kind TransactionKind, catalog gateway.CatalogService, commit gateway.CommitService, loader *SnapshotLoader) *TransactionBuilder {
	return &TransactionBuilder{
		sessionID: xid.New("session"),
		kind:      kind,
		catalog:   catalog,
		commit:    commit,
		loader:    loader,
		projector: NewStockProjector(),
		allocator: NewPaymentAllocator(),
	}
}

func (b *TransactionBuilder) SessionID() string { return b.sessionID }
func (b *TransactionBuilder) Kind() TransactionKind {
	return b.kind
}

func (b *TransactionBuilder) SetClient(id int64)   { b.clientID = id }
func (b *TransactionBuilder) SetSupplier(id int64) { b.supplierID = id }
func (b *TransactionBuilder) SetUser(id int64)     { b.userID = id }
func (b *TransactionBuilder) SetSaleType(id int64) { b.saleTypeID = id }
func (b *TransactionBuilder) SetDrawer(id int64)   { b.drawerID = id }

// LoadWarehouse replaces the stock snapshot for the given warehouse and
// discards the cart; lines must be re-added against the fresh snapshot.
// After a commit conflict the cache is bypassed unconditionally.
func (b *TransactionBuilder) LoadWarehouse(ctx context.Context, warehouseID int64) error {
	if err := b.loadCatalog(ctx); err != nil {
		return err
	}

	entries, err := b.loader.Load(ctx, warehouseID, b.snapshotStale)
	if err != nil {
		return err
	}

	factors := make(map[int64]int, len(b.articles))
	for id, article := range b.articles {
		factors[id] = article.PackagingFactor
	}
	b.projector.LoadSnapshot(warehouseID, entries, factors)

	b.warehouseID = warehouseID
	b.lines = nil
	b.snapshotLoaded = true
	b.snapshotStale = false
	return nil
}

func (b *TransactionBuilder) loadCatalog(ctx context.Context) error {
	if b.articles != nil {
		return nil
	}

	articles, err := b.catalog.ListArticles(ctx)
	if err != nil {
		return err
	}
	paymentTypes, err := b.catalog.ListPaymentTypes(ctx)
	if err != nil {
		return err
	}
	saleTypes, err := b.catalog.ListSaleTypes(ctx)
	if err != nil {
		return err
	}

	b.articles = make(map[int64]domain.CatalogArticle, len(articles))
	for _, a := range articles {
		b.articles[a.ID] = a
	}
	b.paymentTypes = make(map[int64]domain.PaymentType, len(paymentTypes))
	for _, p := range paymentTypes {
		b.paymentTypes[p.ID] = p
	}
	b.saleTypes = make(map[int64]domain.SaleType, len(saleTypes))
	for _, s := range saleTypes {
		b.saleTypes[s.ID] = s
	}
	return nil
}

// AddLine reserves stock (for sales) and appends a cart line with a price
// snapshot from the requested tier. Nothing is appended when the
// reservation fails.
func (b *TransactionBuilder) AddLine(articleID int64, quantity decimal.Decimal, unit domain.UnitOfMeasure, priceTier int, discount decimal.Decimal) (domain.CartLine, error) {
	if !b.snapshotLoaded {
		return domain.CartLine{}, fmt.Errorf("%w: warehouse not loaded", ErrValidation)
	}
	if b.kind == KindSale && b.snapshotStale {
		return domain.CartLine{}, ErrSnapshotStale
	}
	article, ok := b.articles[articleID]
	if !ok {
		return domain.CartLine{}, fmt.Errorf("%w: unknown article %d", ErrValidation, articleID)
	}
	if !unit.Valid() {
		return domain.CartLine{}, fmt.Errorf("%w: unit %q", ErrValidation, unit)
	}
	if quantity.Sign() <= 0 || discount.IsNegative() {
		return domain.CartLine{}, ErrValidation
	}

	if b.kind == KindSale {
		if _, err := b.projector.Reserve(articleID, quantity, unit); err != nil {
			return domain.CartLine{}, err
		}
	}

	line := domain.CartLine{
		ArticleID: articleID,
		Quantity:  quantity,
		Unit:      unit,
		UnitPrice: article.PriceForTier(priceTier),
		Discount:  discount,
	}
	b.lines = append(b.lines, line)
	return line, nil
}

// UpdateLineQuantity reserves or releases only the delta between the old
// and new quantity. On failure the line keeps its previous quantity.
func (b *TransactionBuilder) UpdateLineQuantity(index int, quantity decimal.Decimal) error {
	if index < 0 || index >= len(b.lines) {
		return ErrValidation
	}
	if quantity.Sign() <= 0 {
		return ErrValidation
	}
	if b.kind == KindSale && b.snapshotStale {
		return ErrSnapshotStale
	}

	line := &b.lines[index]
	if b.kind == KindSale {
		oldBase, err := b.projector.BaseUnits(line.ArticleID, line.Quantity, line.Unit)
		if err != nil {
			return err
		}
		newBase, err := b.projector.BaseUnits(line.ArticleID, quantity, line.Unit)
		if err != nil {
			return err
		}
		delta := newBase.Sub(oldBase)
		if delta.Sign() > 0 {
			if _, err := b.projector.Reserve(line.ArticleID, delta, domain.UnitBase); err != nil {
				return err
			}
		} else if delta.Sign() < 0 {
			b.projector.Release(line.ArticleID, delta.Neg(), domain.UnitBase)
		}
	}

	line.Quantity = quantity
	return nil
}

func (b *TransactionBuilder) SetLineDiscount(index int, discount decimal.Decimal) error {
	if index < 0 || index >= len(b.lines) {
		return ErrValidation
	}
	if discount.IsNegative() {
		return ErrValidation
	}
	b.lines[index].Discount = discount
	return nil
}

// RemoveLine releases the line's reservation and drops it from the cart.
func (b *TransactionBuilder) RemoveLine(index int) error {
	if index < 0 || index >= len(b.lines) {
		return ErrValidation
	}
	line := b.lines[index]
	if b.kind == KindSale {
		b.projector.Release(line.ArticleID, line.Quantity, line.Unit)
	}
	b.lines = append(b.lines[:index], b.lines[index+1:]...)
	return nil
}

func (b *TransactionBuilder) ClearLines() {
	if b.kind == KindSale {
		for _, line := range b.lines {
			b.projector.Release(line.ArticleID, line.Quantity, line.Unit)
		}
	}
	b.lines = nil
}

func (b *TransactionBuilder) Lines() []domain.CartLine {
	out := make([]domain.CartLine, len(b.lines))
	copy(out, b.lines)
	return out
}

func (b *TransactionBuilder) SetGlobalDiscount(discount decimal.Decimal) error {
	if discount.IsNegative() {
		return ErrValidation
	}
	b.globalDiscount = discount
	return nil
}

func (b *TransactionBuilder) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, line := range b.lines {
		sum = sum.Add(line.Subtotal())
	}
	return sum
}

// Total is sum(line subtotals) − global discount, exactly. Validity of the
// discount against the current subtotal is checked at payload time, so the
// invariant holds at every observable point in between.
func (b *TransactionBuilder) Total() decimal.Decimal {
	return b.Subtotal().Sub(b.globalDiscount)
}

func (b *TransactionBuilder) AddTender(paymentTypeID int64, amount *decimal.Decimal, reference string) (domain.Tender, error) {
	paymentType, ok := b.paymentTypes[paymentTypeID]
	if !ok {
		return domain.Tender{}, fmt.Errorf("%w: unknown payment type %d", ErrValidation, paymentTypeID)
	}
	return b.allocator.AddTender(paymentTypeID, paymentType.Class, amount, reference, b.Total())
}

func (b *TransactionBuilder) RemoveTender(index int) {
	b.allocator.RemoveTender(index)
}

func (b *TransactionBuilder) RemainingBalance() decimal.Decimal {
	return b.allocator.RemainingBalance(b.Total())
}

func (b *TransactionBuilder) IsPaymentComplete() bool {
	return b.allocator.IsComplete(b.Total())
}

func (b *TransactionBuilder) Tenders() []domain.Tender {
	return b.allocator.Tenders()
}

// SetCredit configures the installment terms for a credit transaction.
func (b *TransactionBuilder) SetCredit(count int, frequencyDays int) error {
	if count < 1 || frequencyDays < 1 {
		return ErrInvalidSchedule
	}
	b.installmentCount = count
	b.installmentFrequencyDays = frequencyDays
	return nil
}

// PreviewSchedule derives the installment plan for the current total, with
// the tendered amount acting as the down payment.
func (b *TransactionBuilder) PreviewSchedule(start time.Time) (domain.InstallmentPlan, error) {
	if b.installmentCount < 1 {
		return domain.InstallmentPlan{}, ErrInvalidSchedule
	}
	return b.scheduler.Generate(b.Total(), b.allocator.Sum(), b.installmentCount, b.installmentFrequencyDays, start)
}

func (b *TransactionBuilder) SnapshotStale() bool {
	return b.snapshotStale
}

func (b *TransactionBuilder) isCreditSale() bool {
	saleType, ok := b.saleTypes[b.saleTypeID]
	return ok && saleType.Credit
}

// primaryPaymentTypeID resolves tipo_pago_id for the payload: the first
// tender's method when one exists, otherwise the catalog's credit method
// for a zero-down-payment credit transaction.
func (b *TransactionBuilder) primaryPaymentTypeID(credit bool) (int64, error) {
	if id := b.allocator.PrimaryTypeID(); id != 0 {
		return id, nil
	}
	if credit {
		for _, paymentType := range b.paymentTypes {
			if paymentType.Class == domain.PaymentCredit {
				return paymentType.ID, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: payment method required", ErrValidation)
}

func (b *TransactionBuilder) validateLines() (decimal.Decimal, error) {
	if len(b.lines) == 0 {
		return decimal.Zero, fmt.Errorf("%w: empty cart", ErrValidation)
	}
	for _, line := range b.lines {
		if !line.Unit.Valid() {
			return decimal.Zero, fmt.Errorf("%w: unit %q", ErrValidation, line.Unit)
		}
	}
	subtotal := b.Subtotal()
	if b.globalDiscount.Cmp(subtotal) > 0 {
		return decimal.Zero, fmt.Errorf("%w: discount exceeds subtotal", ErrValidation)
	}
	return subtotal.Sub(b.globalDiscount), nil
}

func (b *TransactionBuilder) detailLines() []domain.DetailLine {
	details := make([]domain.DetailLine, 0, len(b.lines))
	for _, line := range b.lines {
		details = append(details, domain.DetailLine{
			ArticleID: line.ArticleID,
			Quantity:  line.Quantity,
			Price:     line.UnitPrice,
			Discount:  line.Discount,
			Unit:      line.Unit,
		})
	}
	return details
}

func (b *TransactionBuilder) paymentLines() []domain.PaymentLine {
	tenders := b.allocator.Tenders()
	payments := make([]domain.PaymentLine, 0, len(tenders))
	for _, tender := range tenders {
		payments = append(payments, domain.PaymentLine{
			PaymentTypeID: tender.PaymentTypeID,
			Amount:        tender.Amount,
			Reference:     tender.Reference,
		})
	}
	return payments
}

// SalePayload validates the session and emits the commit document. The
// builder state is left untouched, so a rejected payload can be fixed and
// re-emitted.
func (b *TransactionBuilder) SalePayload() (domain.SalePayload, error) {
	if b.kind != KindSale {
		return domain.SalePayload{}, fmt.Errorf("%w: not a sale session", ErrValidation)
	}
	if !b.snapshotLoaded {
		return domain.SalePayload{}, fmt.Errorf("%w: warehouse not loaded", ErrValidation)
	}
	if b.snapshotStale {
		return domain.SalePayload{}, ErrSnapshotStale
	}
	if b.clientID < 1 || b.userID < 1 || b.drawerID < 1 {
		return domain.SalePayload{}, fmt.Errorf("%w: client, user and drawer are required", ErrValidation)
	}
	if _, ok := b.saleTypes[b.saleTypeID]; !ok {
		return domain.SalePayload{}, fmt.Errorf("%w: unknown sale type %d", ErrValidation, b.saleTypeID)
	}

	total, err := b.validateLines()
	if err != nil {
		return domain.SalePayload{}, err
	}

	credit := b.isCreditSale()
	payload := domain.SalePayload{
		ClientID:    b.clientID,
		UserID:      b.userID,
		SaleTypeID:  b.saleTypeID,
		WarehouseID: b.warehouseID,
		DrawerID:    b.drawerID,
		Timestamp:   time.Now().UTC(),
		Details:     b.detailLines(),
		Payments:    b.paymentLines(),
	}

	if credit {
		if b.installmentCount < 1 {
			return domain.SalePayload{}, fmt.Errorf("%w: credit sale without installment terms", ErrInvalidSchedule)
		}
		if b.allocator.Sum().Cmp(total) > 0 {
			return domain.SalePayload{}, fmt.Errorf("%w: down payment exceeds total", ErrValidation)
		}
		count := b.installmentCount
		frequency := b.installmentFrequencyDays
		payload.InstallmentCount = &count
		payload.InstallmentFrequencyDays = &frequency
	} else if !b.allocator.IsComplete(total) {
		return domain.SalePayload{}, fmt.Errorf("%w: tenders do not cover the total", ErrValidation)
	}

	paymentTypeID, err := b.primaryPaymentTypeID(credit)
	if err != nil {
		return domain.SalePayload{}, err
	}
	payload.PaymentTypeID = paymentTypeID

	return payload, nil
}

// PurchasePayload mirrors SalePayload for purchase sessions. A purchase
// with installment terms is a credit purchase; its tenders are the down
// payment.
func (b *TransactionBuilder) PurchasePayload() (domain.PurchasePayload, error) {
	if b.kind != KindPurchase {
		return domain.PurchasePayload{}, fmt.Errorf("%w: not a purchase session", ErrValidation)
	}
	if !b.snapshotLoaded {
		return domain.PurchasePayload{}, fmt.Errorf("%w: warehouse not loaded", ErrValidation)
	}
	if b.supplierID < 1 || b.userID < 1 || b.drawerID < 1 {
		return domain.PurchasePayload{}, fmt.Errorf("%w: supplier, user and drawer are required", ErrValidation)
	}

	total, err := b.validateLines()
	if err != nil {
		return domain.PurchasePayload{}, err
	}

	credit := b.installmentCount > 0
	payload := domain.PurchasePayload{
		SupplierID:  b.supplierID,
		UserID:      b.userID,
		WarehouseID: b.warehouseID,
		DrawerID:    b.drawerID,
		Timestamp:   time.Now().UTC(),
		Details:     b.detailLines(),
		Payments:    b.paymentLines(),
	}

	if credit {
		if b.allocator.Sum().Cmp(total) > 0 {
			return domain.PurchasePayload{}, fmt.Errorf("%w: down payment exceeds total", ErrValidation)
		}
		count := b.installmentCount
		frequency := b.installmentFrequencyDays
		payload.InstallmentCount = &count
		payload.InstallmentFrequencyDays = &frequency
	} else if !b.allocator.IsComplete(total) {
		return domain.PurchasePayload{}, fmt.Errorf("%w: tenders do not cover the total", ErrValidation)
	}

	paymentTypeID, err := b.primaryPaymentTypeID(credit)
	if err != nil {
		return domain.PurchasePayload{}, err
	}
	payload.PaymentTypeID = paymentTypeID

	return payload, nil
}

// Commit hands the finalized payload to the commit service. A concurrency
// conflict marks the snapshot stale: no further reservation is trusted
// until LoadWarehouse runs again. A network error leaves everything
// untouched; the identical payload is safe to retry.
func (b *TransactionBuilder) Commit(ctx context.Context) (string, error) {
	if b.committed {
		return "", fmt.Errorf("%w: session already committed", ErrValidation)
	}

	var (
		id  string
		err error
	)
	switch b.kind {
	case KindSale:
		var payload domain.SalePayload
		payload, err = b.SalePayload()
		if err != nil {
			return "", err
		}
		id, err = b.commit.CommitSale(ctx, payload)
	case KindPurchase:
		var payload domain.PurchasePayload
		payload, err = b.PurchasePayload()
		if err != nil {
			return "", err
		}
		id, err = b.commit.CommitPurchase(ctx, payload)
	default:
		return "", fmt.Errorf("%w: unknown transaction kind %q", ErrValidation, b.kind)
	}

	if err != nil {
		if errors.Is(err, gateway.ErrConcurrencyConflict) {
			b.snapshotStale = true
		}
		return "", err
	}

	b.committed = true
	return id, nil
}

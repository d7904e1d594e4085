package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/aGuizada/inventarios-engine/internal/money"
)

// UnitOfMeasure is the enumerated unit a cart line is expressed in. The
// commit API rejects anything outside this set, so the engine validates it
// up front instead of coercing.
type UnitOfMeasure string

const (
	UnitBase     UnitOfMeasure = "Unidad"
	UnitPackage  UnitOfMeasure = "Paquete"
	UnitFraction UnitOfMeasure = "Centimetro"
)

func (u UnitOfMeasure) Valid() bool {
	switch u {
	case UnitBase, UnitPackage, UnitFraction:
		return true
	default:
		return false
	}
}

// PaymentClass is the explicit capability of a payment type, supplied by the
// catalog. Business rules branch on this, never on the display name.
type PaymentClass string

const (
	PaymentCash     PaymentClass = "cash"
	PaymentCard     PaymentClass = "card"
	PaymentCredit   PaymentClass = "credit"
	PaymentQR       PaymentClass = "qr"
	PaymentTransfer PaymentClass = "transfer"
)

// CatalogArticle is a read-only view of an article as the catalog publishes
// it. The engine snapshots prices into cart lines and never mutates these.
type CatalogArticle struct {
	ID              int64           `json:"id"`
	Name            string          `json:"nombre"`
	SalePrice       decimal.Decimal `json:"precio_venta"`
	Price1          decimal.Decimal `json:"precio_1"`
	Price2          decimal.Decimal `json:"precio_2"`
	Price3          decimal.Decimal `json:"precio_3"`
	Price4          decimal.Decimal `json:"precio_4"`
	PackagingFactor int             `json:"factor_empaque"`
	UnitCost        decimal.Decimal `json:"costo_unitario"`
}

// PriceForTier returns the tiered price, falling back to the base sale price
// when the tier is unset or zero.
func (a CatalogArticle) PriceForTier(tier int) decimal.Decimal {
	var p decimal.Decimal
	switch tier {
	case 1:
		p = a.Price1
	case 2:
		p = a.Price2
	case 3:
		p = a.Price3
	case 4:
		p = a.Price4
	}
	if p.IsZero() {
		return a.SalePrice
	}
	return p
}

type PaymentType struct {
	ID    int64        `json:"id"`
	Name  string       `json:"nombre"`
	Class PaymentClass `json:"clase"`
}

type SaleType struct {
	ID     int64  `json:"id"`
	Name   string `json:"nombre"`
	Credit bool   `json:"es_credito"`
}

// StockEntry is one row of a warehouse snapshot, in base units.
type StockEntry struct {
	ArticleID   int64           `json:"articulo_id"`
	WarehouseID int64           `json:"almacen_id"`
	Available   decimal.Decimal `json:"disponible"`
}

// CartLine is one article in the transaction under construction. UnitPrice
// is a snapshot taken when the line was added; catalog price changes during
// the session do not affect it.
type CartLine struct {
	ArticleID int64
	Quantity  decimal.Decimal
	Unit      UnitOfMeasure
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
}

// Subtotal is max(0, quantity × price − discount), rounded to two places.
func (l CartLine) Subtotal() decimal.Decimal {
	return money.FloorZero(money.Round2(l.Quantity.Mul(l.UnitPrice)).Sub(l.Discount))
}

// Tender is one payment instrument applied to a transaction.
type Tender struct {
	PaymentTypeID int64
	Class         PaymentClass
	Amount        decimal.Decimal
	Reference     string
}

type InstallmentState string

const (
	InstallmentPending       InstallmentState = "pending"
	InstallmentPartiallyPaid InstallmentState = "partially_paid"
	InstallmentPaid          InstallmentState = "paid"
)

type Installment struct {
	Sequence   int              `json:"numero"`
	DueDate    time.Time        `json:"fecha_vencimiento"`
	Amount     decimal.Decimal  `json:"monto"`
	PaidAmount decimal.Decimal  `json:"monto_pagado"`
	State      InstallmentState `json:"estado"`
}

type InstallmentPlan struct {
	Principal     decimal.Decimal `json:"principal"`
	DownPayment   decimal.Decimal `json:"cuota_inicial"`
	Count         int             `json:"numero_cuotas"`
	FrequencyDays int             `json:"tiempo_dias_cuota"`
	StartDate     time.Time       `json:"fecha_inicio"`
	Installments  []Installment   `json:"cuotas"`
}

// Remaining is the amount the installments must cover.
func (p InstallmentPlan) Remaining() decimal.Decimal {
	return p.Principal.Sub(p.DownPayment)
}

// CashDrawerState carries the aggregated totals of the currently open
// drawer, as reported by the cash register service. The engine never
// mutates it; reconciliation is a pure read.
type CashDrawerState struct {
	DrawerID               int64           `json:"caja_id"`
	OpeningBalance         decimal.Decimal `json:"saldo_apertura"`
	CashSales              decimal.Decimal `json:"ventas_efectivo"`
	CardSales              decimal.Decimal `json:"ventas_tarjeta"`
	QRSales                decimal.Decimal `json:"ventas_qr"`
	TransferSales          decimal.Decimal `json:"ventas_transferencia"`
	InstallmentCollections decimal.Decimal `json:"cobros_cuotas"`
	Deposits               decimal.Decimal `json:"depositos"`
	Withdrawals            decimal.Decimal `json:"retiros"`
	CashPurchases          decimal.Decimal `json:"compras_efectivo"`
	CreditDownPayments     decimal.Decimal `json:"anticipos_credito"`
}

// DetailLine and PaymentLine follow the commit API wire names.
type DetailLine struct {
	ArticleID int64           `json:"articulo_id"`
	Quantity  decimal.Decimal `json:"cantidad"`
	Price     decimal.Decimal `json:"precio"`
	Discount  decimal.Decimal `json:"descuento"`
	Unit      UnitOfMeasure   `json:"unidad_medida"`
}

type PaymentLine struct {
	PaymentTypeID int64           `json:"tipo_pago_id"`
	Amount        decimal.Decimal `json:"monto"`
	Reference     string          `json:"referencia,omitempty"`
}

// SalePayload is the single finalized document the engine hands to the
// commit service. The commit service is the sole authority on whether it is
// durably applied.
type SalePayload struct {
	ClientID                 int64         `json:"cliente_id"`
	UserID                   int64         `json:"user_id"`
	SaleTypeID               int64         `json:"tipo_venta_id"`
	PaymentTypeID            int64         `json:"tipo_pago_id"`
	WarehouseID              int64         `json:"almacen_id"`
	DrawerID                 int64         `json:"caja_id"`
	Timestamp                time.Time     `json:"fecha_hora"`
	Details                  []DetailLine  `json:"detalles"`
	Payments                 []PaymentLine `json:"pagos"`
	InstallmentCount         *int          `json:"numero_cuotas,omitempty"`
	InstallmentFrequencyDays *int          `json:"tiempo_dias_cuota,omitempty"`
}

// PurchasePayload is structurally analogous to SalePayload with the
// supplier in place of the client.
type PurchasePayload struct {
	SupplierID               int64         `json:"proveedor_id"`
	UserID                   int64         `json:"user_id"`
	PaymentTypeID            int64         `json:"tipo_pago_id"`
	WarehouseID              int64         `json:"almacen_id"`
	DrawerID                 int64         `json:"caja_id"`
	Timestamp                time.Time     `json:"fecha_hora"`
	Details                  []DetailLine  `json:"detalles"`
	Payments                 []PaymentLine `json:"pagos"`
	InstallmentCount         *int          `json:"numero_cuotas,omitempty"`
	InstallmentFrequencyDays *int          `json:"tiempo_dias_cuota,omitempty"`
}

// Package postgres implements the collaborator gateways against the
// transactional database directly, for deployments where the engine runs
// beside it instead of behind a remote commit API. Schema migrations are
// managed outside this package.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/aGuizada/inventarios-engine/internal/domain"
	"github.com/aGuizada/inventarios-engine/internal/gateway"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListArticles(ctx context.Context) ([]domain.CatalogArticle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, nombre, precio_venta, precio_1, precio_2, precio_3, precio_4,
		       factor_empaque, costo_unitario
		FROM articulos
		WHERE activo = true
		ORDER BY nombre
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	articles := make([]domain.CatalogArticle, 0, 128)
	for rows.Next() {
		var a domain.CatalogArticle
		if err := rows.Scan(&a.ID, &a.Name, &a.SalePrice, &a.Price1, &a.Price2, &a.Price3, &a.Price4, &a.PackagingFactor, &a.UnitCost); err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return articles, nil
}

func (s *Store) ListPaymentTypes(ctx context.Context) ([]domain.PaymentType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, nombre, clase
		FROM tipos_pago
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types := make([]domain.PaymentType, 0, 8)
	for rows.Next() {
		var p domain.PaymentType
		var class string
		if err := rows.Scan(&p.ID, &p.Name, &class); err != nil {
			return nil, err
		}
		p.Class = domain.PaymentClass(class)
		types = append(types, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return types, nil
}

func (s *Store) ListSaleTypes(ctx context.Context) ([]domain.SaleType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, nombre, es_credito
		FROM tipos_venta
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	types := make([]domain.SaleType, 0, 4)
	for rows.Next() {
		var st domain.SaleType
		if err := rows.Scan(&st.ID, &st.Name, &st.Credit); err != nil {
			return nil, err
		}
		types = append(types, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return types, nil
}

func (s *Store) WarehouseSnapshot(ctx context.Context, warehouseID int64) ([]domain.StockEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT articulo_id, almacen_id, disponible
		FROM inventarios
		WHERE almacen_id = $1
	`, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.StockEntry, 0, 256)
	for rows.Next() {
		var entry domain.StockEntry
		if err := rows.Scan(&entry.ArticleID, &entry.WarehouseID, &entry.Available); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (s *Store) DrawerState(ctx context.Context, drawerID int64) (domain.CashDrawerState, error) {
	var state domain.CashDrawerState
	err := s.db.QueryRowContext(ctx, `
		SELECT id, saldo_apertura, ventas_efectivo, ventas_tarjeta, ventas_qr,
		       ventas_transferencia, cobros_cuotas, depositos, retiros,
		       compras_efectivo, anticipos_credito
		FROM cajas
		WHERE id = $1 AND estado = 'abierta'
	`, drawerID).Scan(
		&state.DrawerID, &state.OpeningBalance, &state.CashSales, &state.CardSales,
		&state.QRSales, &state.TransferSales, &state.InstallmentCollections,
		&state.Deposits, &state.Withdrawals, &state.CashPurchases, &state.CreditDownPayments,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CashDrawerState{}, gateway.ErrNotFound
	}
	if err != nil {
		return domain.CashDrawerState{}, err
	}
	return state, nil
}

// CommitSale applies the payload atomically. The guarded stock decrement is
// the authoritative concurrency check: a row that no longer covers the
// requested quantity aborts the whole transaction with a conflict.
func (s *Store) CommitSale(ctx context.Context, payload domain.SalePayload) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", &gateway.NetworkError{Op: "commit_sale", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	for _, detail := range payload.Details {
		base, err := s.baseUnits(ctx, tx, detail)
		if err != nil {
			return "", err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE inventarios
			SET disponible = disponible - $1, updated_at = now()
			WHERE articulo_id = $2 AND almacen_id = $3 AND disponible >= $1
		`, base, detail.ArticleID, payload.WarehouseID)
		if err != nil {
			return "", &gateway.NetworkError{Op: "commit_sale", Err: err}
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return "", &gateway.NetworkError{Op: "commit_sale", Err: err}
		}
		if affected == 0 {
			return "", gateway.ErrConcurrencyConflict
		}
	}

	id := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO ventas (
			id, cliente_id, user_id, tipo_venta_id, tipo_pago_id, almacen_id,
			caja_id, fecha_hora, numero_cuotas, tiempo_dias_cuota
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, id, payload.ClientID, payload.UserID, payload.SaleTypeID, payload.PaymentTypeID,
		payload.WarehouseID, payload.DrawerID, payload.Timestamp,
		payload.InstallmentCount, payload.InstallmentFrequencyDays)
	if err != nil {
		return "", &gateway.NetworkError{Op: "commit_sale", Err: err}
	}

	for _, detail := range payload.Details {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO venta_detalles (venta_id, articulo_id, cantidad, precio, descuento, unidad_medida)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, id, detail.ArticleID, detail.Quantity, detail.Price, detail.Discount, string(detail.Unit))
		if err != nil {
			return "", &gateway.NetworkError{Op: "commit_sale", Err: err}
		}
	}
	for _, payment := range payload.Payments {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO venta_pagos (venta_id, tipo_pago_id, monto, referencia)
			VALUES ($1, $2, $3, $4)
		`, id, payment.PaymentTypeID, payment.Amount, payment.Reference)
		if err != nil {
			return "", &gateway.NetworkError{Op: "commit_sale", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", &gateway.NetworkError{Op: "commit_sale", Err: err}
	}
	return id, nil
}

// CommitPurchase applies the payload atomically; purchases add stock, so
// the inventory rows are upserted instead of guarded.
func (s *Store) CommitPurchase(ctx context.Context, payload domain.PurchasePayload) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", &gateway.NetworkError{Op: "commit_purchase", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	for _, detail := range payload.Details {
		base, err := s.baseUnits(ctx, tx, detail)
		if err != nil {
			return "", err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO inventarios (articulo_id, almacen_id, disponible, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (articulo_id, almacen_id)
			DO UPDATE SET disponible = inventarios.disponible + EXCLUDED.disponible, updated_at = now()
		`, detail.ArticleID, payload.WarehouseID, base)
		if err != nil {
			return "", &gateway.NetworkError{Op: "commit_purchase", Err: err}
		}
	}

	id := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO compras (
			id, proveedor_id, user_id, tipo_pago_id, almacen_id, caja_id,
			fecha_hora, numero_cuotas, tiempo_dias_cuota
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, id, payload.SupplierID, payload.UserID, payload.PaymentTypeID,
		payload.WarehouseID, payload.DrawerID, payload.Timestamp,
		payload.InstallmentCount, payload.InstallmentFrequencyDays)
	if err != nil {
		return "", &gateway.NetworkError{Op: "commit_purchase", Err: err}
	}

	for _, detail := range payload.Details {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO compra_detalles (compra_id, articulo_id, cantidad, precio, descuento, unidad_medida)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, id, detail.ArticleID, detail.Quantity, detail.Price, detail.Discount, string(detail.Unit))
		if err != nil {
			return "", &gateway.NetworkError{Op: "commit_purchase", Err: err}
		}
	}
	for _, payment := range payload.Payments {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO compra_pagos (compra_id, tipo_pago_id, monto, referencia)
			VALUES ($1, $2, $3, $4)
		`, id, payment.PaymentTypeID, payment.Amount, payment.Reference)
		if err != nil {
			return "", &gateway.NetworkError{Op: "commit_purchase", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", &gateway.NetworkError{Op: "commit_purchase", Err: err}
	}
	return id, nil
}

func (s *Store) baseUnits(ctx context.Context, tx *sql.Tx, detail domain.DetailLine) (decimal.Decimal, error) {
	switch detail.Unit {
	case domain.UnitBase:
		return detail.Quantity, nil
	case domain.UnitFraction:
		return detail.Quantity.Div(decimal.NewFromInt(100)), nil
	case domain.UnitPackage:
		var factor int
		err := tx.QueryRowContext(ctx, `
			SELECT factor_empaque FROM articulos WHERE id = $1
		`, detail.ArticleID).Scan(&factor)
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, gateway.ErrNotFound
		}
		if err != nil {
			return decimal.Zero, &gateway.NetworkError{Op: "base_units", Err: err}
		}
		if factor < 1 {
			factor = 1
		}
		return detail.Quantity.Mul(decimal.NewFromInt(int64(factor))), nil
	default:
		return decimal.Zero, gateway.ErrNotFound
	}
}

package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestPriceForTierFallsBackToSalePrice(t *testing.T) {
	article := CatalogArticle{
		SalePrice: decimal.RequireFromString("12.50"),
		Price1:    decimal.RequireFromString("11.80"),
	}

	if got := article.PriceForTier(1); !got.Equal(decimal.RequireFromString("11.80")) {
		t.Fatalf("expected tier 1 price 11.80, got %s", got)
	}
	if got := article.PriceForTier(2); !got.Equal(article.SalePrice) {
		t.Fatalf("unset tier must fall back to sale price, got %s", got)
	}
	if got := article.PriceForTier(0); !got.Equal(article.SalePrice) {
		t.Fatalf("tier 0 must return the sale price, got %s", got)
	}
	if got := article.PriceForTier(9); !got.Equal(article.SalePrice) {
		t.Fatalf("unknown tier must fall back to sale price, got %s", got)
	}
}

func TestCartLineSubtotalClampsAtZero(t *testing.T) {
	line := CartLine{
		Quantity:  decimal.NewFromInt(3),
		UnitPrice: decimal.RequireFromString("4.80"),
		Discount:  decimal.RequireFromString("2.40"),
	}
	if !line.Subtotal().Equal(decimal.RequireFromString("12.00")) {
		t.Fatalf("expected subtotal 12.00, got %s", line.Subtotal())
	}

	line.Discount = decimal.NewFromInt(20)
	if !line.Subtotal().IsZero() {
		t.Fatalf("discount above the line value must clamp to zero, got %s", line.Subtotal())
	}
}

func TestUnitOfMeasureValidation(t *testing.T) {
	for _, unit := range []UnitOfMeasure{UnitBase, UnitPackage, UnitFraction} {
		if !unit.Valid() {
			t.Fatalf("expected %q to be valid", unit)
		}
	}
	for _, unit := range []UnitOfMeasure{"", "Docena", "unidad", "PAQUETE"} {
		if unit.Valid() {
			t.Fatalf("expected %q to be invalid", unit)
		}
	}
}

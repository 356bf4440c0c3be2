package services

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/smarttransit/booking-engine/internal/models"
)

// CurrencyPlaces is the precision amounts are stored and displayed with
const CurrencyPlaces = 2

var (
	DefaultCommissionRate = decimal.RequireFromString("0.05")
	DefaultVATRate        = decimal.RequireFromString("0.15")
)

// Fare is the exact breakdown of a booking's price. Nothing in it is rounded.
type Fare struct {
	TicketTotal    decimal.Decimal
	BaseCommission decimal.Decimal
	VAT            decimal.Decimal
	TotalAmount    decimal.Decimal
}

// Rounded returns the breakdown at currency precision, for storage and display
func (f Fare) Rounded() Fare {
	return Fare{
		TicketTotal:    f.TicketTotal.Round(CurrencyPlaces),
		BaseCommission: f.BaseCommission.Round(CurrencyPlaces),
		VAT:            f.VAT.Round(CurrencyPlaces),
		TotalAmount:    f.TotalAmount.Round(CurrencyPlaces),
	}
}

// FareCalculator derives booking totals from the trip price
type FareCalculator struct {
	commissionRate decimal.Decimal
	vatRate        decimal.Decimal
}

// NewFareCalculator creates a calculator with the given commission and VAT rates
func NewFareCalculator(commissionRate, vatRate decimal.Decimal) *FareCalculator {
	return &FareCalculator{commissionRate: commissionRate, vatRate: vatRate}
}

// Calculate computes the fare in this order: ticket total, commission on the
// ticket total, VAT on the unrounded commission, then the sum.
func (c *FareCalculator) Calculate(price decimal.Decimal, passengerCount int) (Fare, error) {
	if !price.IsPositive() {
		return Fare{}, fmt.Errorf("%w: price must be positive, got %s", models.ErrInvalidRequest, price)
	}
	if passengerCount <= 0 {
		return Fare{}, fmt.Errorf("%w: passenger count must be positive, got %d", models.ErrInvalidRequest, passengerCount)
	}

	ticketTotal := price.Mul(decimal.NewFromInt(int64(passengerCount)))
	baseCommission := ticketTotal.Mul(c.commissionRate)
	vat := baseCommission.Mul(c.vatRate)

	return Fare{
		TicketTotal:    ticketTotal,
		BaseCommission: baseCommission,
		VAT:            vat,
		TotalAmount:    ticketTotal.Add(baseCommission).Add(vat),
	}, nil
}

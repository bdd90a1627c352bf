package sales

import (
	"errors"
	"fmt"
	"time"

	"github.com/meridian-pos/meridian-pos/internal/platform/httpx"
)

// SaleStatus enumerates sale lifecycle states.
type SaleStatus string

const (
	SaleStatusCompleted SaleStatus = "COMPLETED"
	SaleStatusPending   SaleStatus = "PENDING"
	SaleStatusCancelled SaleStatus = "CANCELLED"
)

// PaymentMethod enumerates accepted tender types.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "CASH"
	PaymentCard     PaymentMethod = "CARD"
	PaymentTransfer PaymentMethod = "TRANSFER"
	PaymentEWallet  PaymentMethod = "EWALLET"
)

// Valid reports whether the payment method is a known tender type.
func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCash, PaymentCard, PaymentTransfer, PaymentEWallet:
		return true
	}
	return false
}

// Sale is a completed point-of-sale transaction. Totals use the flat
// discount formula: FinalAmount = TotalAmount - Discount + TaxAmount.
type Sale struct {
	ID            int64         `json:"id"`
	CustomerID    *int64        `json:"customer_id,omitempty"`
	CreatedBy     int64         `json:"created_by"`
	TotalAmount   float64       `json:"total_amount"`
	Discount      float64       `json:"discount"`
	TaxAmount     float64       `json:"tax_amount"`
	FinalAmount   float64       `json:"final_amount"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Status        SaleStatus    `json:"status"`
	Notes         *string       `json:"notes,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Items         []SaleItem    `json:"items,omitempty"`
}

// SaleItem is one product line on a sale. UnitPrice is the product price
// snapshotted at creation time; it is never recomputed from the catalog.
type SaleItem struct {
	ID          int64   `json:"id"`
	SaleID      int64   `json:"sale_id"`
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Discount    float64 `json:"discount"`
	TotalPrice  float64 `json:"total_price"`
}

// ProductSnapshot is the slice of catalog state the sale engine reads
// under a row lock.
type ProductSnapshot struct {
	ID       int64
	Name     string
	Price    float64
	Quantity int
	IsActive bool
}

type CreateSaleItemRequest struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Quantity  int     `json:"quantity" validate:"required,gt=0"`
	Discount  float64 `json:"discount" validate:"gte=0"`
}

type CreateSaleRequest struct {
	Items         []CreateSaleItemRequest `json:"items" validate:"required,min=1,dive"`
	PaymentMethod PaymentMethod           `json:"payment_method" validate:"required"`
	CustomerID    *int64                  `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	Discount      float64                 `json:"discount" validate:"gte=0"`
	TaxAmount     float64                 `json:"tax_amount" validate:"gte=0"`
	Notes         *string                 `json:"notes,omitempty"`
}

// ListFilters narrows sale listings.
type ListFilters struct {
	Status     SaleStatus
	CustomerID int64
	DateFrom   *time.Time
	DateTo     *time.Time
	Page       int
	Limit      int
}

// Report aggregates COMPLETED sales over a date range.
type Report struct {
	TotalSales      int                   `json:"total_sales"`
	TotalRevenue    float64               `json:"total_revenue"`
	TotalDiscount   float64               `json:"total_discount"`
	TotalTax        float64               `json:"total_tax"`
	AverageSale     float64               `json:"average_sale"`
	ByPaymentMethod map[PaymentMethod]int `json:"by_payment_method"`
}

// ErrInsufficientStock is wrapped with the offending product so callers
// can tell which line failed. It chains to the validation sentinel.
var ErrInsufficientStock = fmt.Errorf("%w: insufficient stock", httpx.ErrValidation)

// ErrSaleCancelled guards double cancellation.
var ErrSaleCancelled = fmt.Errorf("%w: sale is already cancelled", httpx.ErrValidation)

// IsInsufficientStock reports whether err is a stock shortage failure.
func IsInsufficientStock(err error) bool {
	return errors.Is(err, ErrInsufficientStock)
}

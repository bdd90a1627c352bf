package invoicing

import (
	"fmt"
	"time"

	"github.com/meridian-pos/meridian-pos/internal/platform/httpx"
)

// InvoiceStatus enumerates invoice lifecycle states. CANCELLED is
// terminal; PAID can only be reached, never cancelled.
type InvoiceStatus string

const (
	StatusUnpaid        InvoiceStatus = "UNPAID"
	StatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	StatusPaid          InvoiceStatus = "PAID"
	StatusOverdue       InvoiceStatus = "OVERDUE"
	StatusCancelled     InvoiceStatus = "CANCELLED"
)

// Valid reports whether the status is a known lifecycle state.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case StatusUnpaid, StatusPartiallyPaid, StatusPaid, StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

// Invoice numbers follow INV-YYYYMM-NNNN, strictly increasing within a
// month bucket.
const invoiceNumberFormat = "INV-%s-%04d"

type Invoice struct {
	ID            int64         `json:"id"`
	InvoiceNumber string        `json:"invoice_number"`
	SaleID        *int64        `json:"sale_id,omitempty"`
	CustomerID    int64         `json:"customer_id"`
	IssuedBy      int64         `json:"issued_by"`
	Subtotal      float64       `json:"subtotal"`
	Discount      float64       `json:"discount"`
	TaxAmount     float64       `json:"tax_amount"`
	TotalAmount   float64       `json:"total_amount"`
	Status        InvoiceStatus `json:"status"`
	DueDate       time.Time     `json:"due_date"`
	PaidDate      *time.Time    `json:"paid_date,omitempty"`
	Notes         *string       `json:"notes,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Items         []InvoiceItem `json:"items,omitempty"`
}

// InvoiceItem is an independent line copy. When an invoice is raised
// from a sale the lines are duplicated, never referenced, so later sale
// mutations cannot rewrite a billed document.
type InvoiceItem struct {
	ID          int64   `json:"id"`
	InvoiceID   int64   `json:"invoice_id"`
	ProductID   *int64  `json:"product_id,omitempty"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Discount    float64 `json:"discount"`
	TotalPrice  float64 `json:"total_price"`
}

type CreateInvoiceItemRequest struct {
	ProductID   *int64  `json:"product_id,omitempty" validate:"omitempty,gt=0"`
	Description string  `json:"description" validate:"required"`
	Quantity    int     `json:"quantity" validate:"required,gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
	Discount    float64 `json:"discount" validate:"gte=0"`
}

type CreateInvoiceRequest struct {
	CustomerID int64                      `json:"customer_id" validate:"required,gt=0"`
	SaleID     *int64                     `json:"sale_id,omitempty" validate:"omitempty,gt=0"`
	Items      []CreateInvoiceItemRequest `json:"items" validate:"required,min=1,dive"`
	DueDate    time.Time                  `json:"due_date" validate:"required"`
	Discount   float64                    `json:"discount" validate:"gte=0"`
	TaxAmount  float64                    `json:"tax_amount" validate:"gte=0"`
	Notes      *string                    `json:"notes,omitempty"`
}

type UpdateStatusRequest struct {
	Status   InvoiceStatus `json:"status" validate:"required"`
	PaidDate *time.Time    `json:"paid_date,omitempty"`
}

type ListFilters struct {
	Status     InvoiceStatus
	CustomerID int64
	Page       int
	Limit      int
}

// Stats aggregates the invoice book.
type Stats struct {
	ByStatus     map[InvoiceStatus]int `json:"by_status"`
	TotalAmount  float64               `json:"total_amount"`
	PaidAmount   float64               `json:"paid_amount"`
	UnpaidAmount float64               `json:"unpaid_amount"`
}

var (
	// ErrInvoiceCancelled guards transitions out of the terminal state.
	ErrInvoiceCancelled = fmt.Errorf("%w: invoice is cancelled", httpx.ErrValidation)
	// ErrInvoicePaid guards cancellation of settled invoices.
	ErrInvoicePaid = fmt.Errorf("%w: paid invoice cannot be cancelled", httpx.ErrValidation)
	// ErrSaleAlreadyInvoiced enforces at most one invoice per sale.
	ErrSaleAlreadyInvoiced = fmt.Errorf("%w: sale already has an invoice", httpx.ErrDuplicate)
)

// FormatNumber renders an invoice number for a month bucket and sequence.
func FormatNumber(bucket time.Time, seq int) string {
	return fmt.Sprintf(invoiceNumberFormat, bucket.Format("200601"), seq)
}

package purchasing

import (
	"fmt"
	"time"

	"github.com/meridian-pos/meridian-pos/internal/platform/httpx"
)

// PurchaseStatus enumerates purchase states. Purchases are received on
// creation; cancellation reverses the stock they brought in.
type PurchaseStatus string

const (
	StatusReceived  PurchaseStatus = "RECEIVED"
	StatusCancelled PurchaseStatus = "CANCELLED"
)

type Purchase struct {
	ID          int64          `json:"id"`
	SupplierID  int64          `json:"supplier_id"`
	CreatedBy   int64          `json:"created_by"`
	TotalAmount float64        `json:"total_amount"`
	Status      PurchaseStatus `json:"status"`
	Notes       *string        `json:"notes,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Items       []PurchaseItem `json:"items,omitempty"`
}

type PurchaseItem struct {
	ID         int64   `json:"id"`
	PurchaseID int64   `json:"purchase_id"`
	ProductID  int64   `json:"product_id"`
	Quantity   int     `json:"quantity"`
	UnitCost   float64 `json:"unit_cost"`
	TotalCost  float64 `json:"total_cost"`
}

type CreatePurchaseItemRequest struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Quantity  int     `json:"quantity" validate:"required,gt=0"`
	UnitCost  float64 `json:"unit_cost" validate:"gte=0"`
}

type CreatePurchaseRequest struct {
	SupplierID int64                       `json:"supplier_id" validate:"required,gt=0"`
	Items      []CreatePurchaseItemRequest `json:"items" validate:"required,min=1,dive"`
	Notes      *string                     `json:"notes,omitempty"`
}

type ListFilters struct {
	SupplierID int64
	Status     PurchaseStatus
	Page       int
	Limit      int
}

var (
	// ErrPurchaseCancelled guards double cancellation.
	ErrPurchaseCancelled = fmt.Errorf("%w: purchase is already cancelled", httpx.ErrValidation)
	// ErrStockConsumed blocks cancellation when the received stock has
	// already been sold, since reversal would drive quantity negative.
	ErrStockConsumed = fmt.Errorf("%w: received stock already consumed", httpx.ErrValidation)
)

package expenses

import "time"

// Expense is an operating cost entry. Category is a free-text label,
// not a catalog reference.
type Expense struct {
	ID         int64     `json:"id"`
	Category   string    `json:"category"`
	Amount     float64   `json:"amount"`
	IncurredAt time.Time `json:"incurred_at"`
	Notes      *string   `json:"notes,omitempty"`
	CreatedBy  int64     `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type CreateExpenseRequest struct {
	Category   string    `json:"category" validate:"required,min=2,max=100"`
	Amount     float64   `json:"amount" validate:"required,gt=0"`
	IncurredAt time.Time `json:"incurred_at" validate:"required"`
	Notes      *string   `json:"notes,omitempty"`
}

type UpdateExpenseRequest struct {
	Category   string    `json:"category" validate:"required,min=2,max=100"`
	Amount     float64   `json:"amount" validate:"required,gt=0"`
	IncurredAt time.Time `json:"incurred_at" validate:"required"`
	Notes      *string   `json:"notes,omitempty"`
}

type ListFilters struct {
	Category string
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	Limit    int
}

package products

import "time"

// Product is a sellable catalog item. Quantity never goes negative; the
// sale and purchasing engines mutate it only inside row-locked
// transactions.
type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	SKU         string    `json:"sku"`
	Barcode     *string   `json:"barcode,omitempty"`
	Description *string   `json:"description,omitempty"`
	Price       float64   `json:"price"`
	CostPrice   float64   `json:"cost_price"`
	Quantity    int       `json:"quantity"`
	MinQuantity int       `json:"min_quantity"`
	IsActive    bool      `json:"is_active"`
	CategoryID  int64     `json:"category_id"`
	SupplierID  *int64    `json:"supplier_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateProductRequest struct {
	Name        string  `json:"name" validate:"required,max=200"`
	SKU         string  `json:"sku" validate:"required,max=50"`
	Barcode     *string `json:"barcode,omitempty" validate:"omitempty,max=50"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=1000"`
	Price       float64 `json:"price" validate:"required,gt=0"`
	CostPrice   float64 `json:"cost_price" validate:"gte=0"`
	Quantity    int     `json:"quantity" validate:"gte=0"`
	MinQuantity int     `json:"min_quantity" validate:"gte=0"`
	CategoryID  int64   `json:"category_id" validate:"required,gt=0"`
	SupplierID  *int64  `json:"supplier_id,omitempty" validate:"omitempty,gt=0"`
}

type UpdateProductRequest struct {
	Name        *string  `json:"name,omitempty" validate:"omitempty,max=200"`
	Barcode     *string  `json:"barcode,omitempty" validate:"omitempty,max=50"`
	Description *string  `json:"description,omitempty" validate:"omitempty,max=1000"`
	Price       *float64 `json:"price,omitempty" validate:"omitempty,gt=0"`
	CostPrice   *float64 `json:"cost_price,omitempty" validate:"omitempty,gte=0"`
	MinQuantity *int     `json:"min_quantity,omitempty" validate:"omitempty,gte=0"`
	CategoryID  *int64   `json:"category_id,omitempty" validate:"omitempty,gt=0"`
	SupplierID  *int64   `json:"supplier_id,omitempty" validate:"omitempty,gt=0"`
	IsActive    *bool    `json:"is_active,omitempty"`
}

type ListFilters struct {
	Search     string
	CategoryID int64
	SupplierID int64
	IsActive   *bool
	LowStock   bool
	Page       int
	Limit      int
}

package reports

import "time"

// SalesReport aggregates COMPLETED sales over a date range. When a
// category filter is set, only sales containing at least one product of
// that category count, and revenue is the sum of those sales' final
// amounts.
type SalesReport struct {
	DateFrom      time.Time `json:"date_from"`
	DateTo        time.Time `json:"date_to"`
	CategoryID    int64     `json:"category_id,omitempty"`
	TotalSales    int       `json:"total_sales"`
	TotalRevenue  float64   `json:"total_revenue"`
	TotalDiscount float64   `json:"total_discount"`
	TotalTax      float64   `json:"total_tax"`
	AverageSale   float64   `json:"average_sale"`
}

// Dashboard is the aggregate snapshot served at /dashboard.
type Dashboard struct {
	TodayRevenue  float64      `json:"today_revenue"`
	TodaySales    int          `json:"today_sales"`
	MonthRevenue  float64      `json:"month_revenue"`
	MonthSales    int          `json:"month_sales"`
	MonthExpenses float64      `json:"month_expenses"`
	LowStockCount int          `json:"low_stock_count"`
	TopProducts   []TopProduct `json:"top_products"`
	RecentSales   []RecentSale `json:"recent_sales"`
	GeneratedAt   time.Time    `json:"generated_at"`
}

// TopProduct ranks products by quantity sold.
type TopProduct struct {
	ProductID    int64   `json:"product_id"`
	ProductName  string  `json:"product_name"`
	QuantitySold int     `json:"quantity_sold"`
	Revenue      float64 `json:"revenue"`
}

// RecentSale is a trimmed sale row for the dashboard feed.
type RecentSale struct {
	ID            int64     `json:"id"`
	FinalAmount   float64   `json:"final_amount"`
	PaymentMethod string    `json:"payment_method"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

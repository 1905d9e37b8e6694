package catalogservice

import "github.com/shopspring/decimal"

// Service услуга из каталога
type Service struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Discount decimal.Decimal `json:"discount"`
	IsActive bool            `json:"isActive"`
}

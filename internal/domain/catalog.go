package domain

import "github.com/shopspring/decimal"

type ProductSize struct {
	Size     string          `json:"size"`
	Servings int             `json:"servings"`
	Price    decimal.Decimal `json:"price"`
}

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
	Price       decimal.Decimal `json:"price"`
	Flavors     []string        `json:"flavors"`
	Sizes       []ProductSize   `json:"sizes"`
	Rating      float64         `json:"rating"`
	Reviews     int             `json:"reviews"`
}

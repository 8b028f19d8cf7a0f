package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type Store struct {
	Id        int64
	Name      string
	CreatedAt time.Time
}

type Product struct {
	Id        int64
	StoreId   int64
	Name      string
	Price     decimal.Decimal
	CreatedAt time.Time
}

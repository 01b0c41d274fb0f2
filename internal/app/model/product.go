package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProductCategory string

const (
	CategoryApparel     ProductCategory = "apparel"
	CategoryFootwear    ProductCategory = "footwear"
	CategoryAccessories ProductCategory = "accessories"
)

type Product struct {
	ID          uint            `gorm:"primarykey" json:"id"`
	Name        string          `gorm:"not null" json:"name"`
	Slug        string          `gorm:"uniqueIndex;not null" json:"slug"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Category    ProductCategory `gorm:"type:varchar(50)" json:"category"`
	Stock       int             `gorm:"not null;default:0" json:"stock"`
	ImageURL    string          `json:"image_url"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`

	CartLines []CartLine `gorm:"foreignKey:ProductID" json:"-"`
}

func (Product) TableName() string {
	return "products"
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Cart is a persisted shopping cart. Exactly one of UserID / SessionToken
// identifies the owner for lookup purposes: once UserID is set the cart is
// permanently user-owned and SessionToken is kept only as a historical link
// to the anonymous session it was merged from.
//
// The four price fields are always derived from Items and stored as fixed
// 2-decimal strings; they are never written independently of a recompute.
// They are text columns on purpose: a numeric column type would let the
// database re-render the scale and break the fixed 2-decimal contract.
// Version guards every write: updates are conditional on the version read,
// so concurrent mutations of the same cart cannot silently drop increments.
//
// Two uniqueness guarantees back the resolver: a user owns at most one cart,
// and at most one unowned cart exists per session token. Concurrent first
// writes for the same identity therefore collapse into the version-conflict
// retry path instead of inserting twins.
type Cart struct {
	ID            uint           `gorm:"primarykey" json:"id"`
	UserID        *uint          `gorm:"uniqueIndex" json:"user_id,omitempty"`
	SessionToken  *string        `gorm:"index;uniqueIndex:idx_carts_session_unowned,where:user_id IS NULL;size:64" json:"session_token,omitempty"`
	Version       uint           `gorm:"not null;default:0" json:"-"`
	ItemsPrice    string         `gorm:"size:20;not null" json:"items_price"`
	ShippingPrice string         `gorm:"size:20;not null" json:"shipping_price"`
	TaxPrice      string         `gorm:"size:20;not null" json:"tax_price"`
	TotalPrice    string         `gorm:"size:20;not null" json:"total_price"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`

	User  *User      `gorm:"foreignKey:UserID" json:"-"`
	Items []CartLine `gorm:"foreignKey:CartID" json:"items"`
}

func (Cart) TableName() string {
	return "carts"
}

// CartLine is one product entry in a cart. ProductID is unique within a
// cart; Position records insertion order so iteration stays stable across
// updates. Name, Slug and Price are snapshots taken from the catalog when
// the line was first added.
type CartLine struct {
	ID        uint            `gorm:"primarykey" json:"id"`
	CartID    uint            `gorm:"not null;uniqueIndex:idx_cart_lines_cart_product" json:"-"`
	ProductID uint            `gorm:"not null;uniqueIndex:idx_cart_lines_cart_product" json:"product_id"`
	Name      string          `gorm:"not null" json:"name"`
	Slug      string          `gorm:"not null" json:"slug"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Qty       int             `gorm:"not null;default:1" json:"qty"`
	Position  int             `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`

	Product Product `gorm:"foreignKey:ProductID" json:"-"`
}

func (CartLine) TableName() string {
	return "cart_lines"
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	FeaturedYes = "yes"
	FeaturedNo  = "no"
)

type Product struct {
	ID               uint                `gorm:"primaryKey" json:"id"`
	Title            string              `gorm:"not null" json:"title"`
	Price            decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"price"`
	ComparePrice     decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"compare_price"`
	Description      string              `gorm:"type:text" json:"description"`
	ShortDescription string              `gorm:"type:text" json:"short_description"`
	Image            string              `json:"image"`
	CategoryID       uint                `gorm:"not null;index" json:"category_id"`
	Category         *Category           `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	BrandID          uint                `gorm:"not null;index" json:"brand_id"`
	Brand            *Brand              `gorm:"foreignKey:BrandID" json:"brand,omitempty"`
	Qty              int                 `gorm:"default:0" json:"qty"`
	SKU              string              `gorm:"column:sku;uniqueIndex;size:255;not null" json:"sku"`
	Barcode          string              `json:"barcode"`
	Status           int                 `gorm:"not null;index" json:"status"`
	IsFeatured       string              `gorm:"default:no;index" json:"is_featured"`
	Sizes            []Size              `gorm:"many2many:product_sizes" json:"sizes,omitempty"`
	Images           []ProductImage      `gorm:"foreignKey:ProductID" json:"product_images,omitempty"`
	ImageURL         string              `gorm:"-" json:"image_url"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// Gallery rows move from pending to active once both files are in place.
const (
	ImageStatePending = "pending"
	ImageStateActive  = "active"
)

type ProductImage struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ProductID   uint      `gorm:"not null;index" json:"product_id"`
	Image       string    `gorm:"not null" json:"image"`
	State       string    `gorm:"not null;index" json:"-"`
	TempImageID *uint     `gorm:"index" json:"-"`
	ImageURL    string    `gorm:"-" json:"image_url"`
	ThumbURL    string    `gorm:"-" json:"thumb_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TempImage is an upload waiting to be attached to a product. Its thumbnail
// is stored next to it as "thumb_" + Name.
type TempImage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ThumbName is the thumbnail filename that travels with an image filename.
func ThumbName(name string) string {
	return "thumb_" + name
}

// ActiveImages scopes gallery queries to committed rows.
func ActiveImages(db *gorm.DB) *gorm.DB {
	return db.Where("state = ?", ImageStateActive).Order("id ASC")
}

// ActiveProducts scopes catalog queries to rows visible on the storefront.
func ActiveProducts(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", StatusActive)
}

// OnSale reports whether the compare-at price is above the selling price.
func (p *Product) OnSale() bool {
	return p.ComparePrice.Valid && p.ComparePrice.Decimal.GreaterThan(p.Price)
}

// InStock reports whether qty units can be sold.
func (p *Product) InStock(qty int) bool {
	return qty > 0 && p.Qty >= qty
}

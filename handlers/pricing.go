package handlers

import (
	"context"
	"fmt"

	"storefront-backend/models"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartLine is one line of a browser-held cart.
type CartLine struct {
	ProductID uint   `json:"product_id" binding:"required,gt=0"`
	Qty       int    `json:"qty" binding:"required,gt=0"`
	Size      string `json:"size"`
}

type QuoteLine struct {
	ProductID uint            `json:"product_id"`
	Title     string          `json:"title"`
	Size      string          `json:"size"`
	Image     string          `json:"image"`
	ImageURL  string          `json:"image_url,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Qty       int             `json:"qty"`
	LineTotal decimal.Decimal `json:"line_total"`
	Available int             `json:"available"`

	product models.Product
}

type Quote struct {
	Items    []QuoteLine     `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// Pricing computes cart totals from current catalog prices. Shipping is a flat
// fee charged below the free-shipping threshold.
type Pricing struct {
	ShippingFee     decimal.Decimal
	FreeShippingMin decimal.Decimal
}

func (p Pricing) shippingFor(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.IsZero() || subtotal.GreaterThanOrEqual(p.FreeShippingMin) {
		return decimal.Zero
	}
	return p.ShippingFee
}

// Quote prices lines against active products. When lock is set the product
// rows are read FOR UPDATE, for use inside a checkout transaction. Problems are
// reported per line under "items.<index>".
func (p Pricing) Quote(ctx context.Context, db *gorm.DB, lines []CartLine, lock bool) (Quote, map[string][]string, error) {
	ids := lo.Uniq(lo.Map(lines, func(l CartLine, _ int) uint { return l.ProductID }))

	query := db.WithContext(ctx).Scopes(models.ActiveProducts).Preload("Sizes").Where("id IN ?", ids)
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var products []models.Product
	if err := query.Find(&products).Error; err != nil {
		return Quote{}, nil, err
	}
	byID := lo.KeyBy(products, func(pr models.Product) uint { return pr.ID })

	// The same product may appear on several lines (different sizes).
	wanted := map[uint]int{}
	for _, l := range lines {
		wanted[l.ProductID] += l.Qty
	}

	var errs map[string][]string
	addErr := func(i int, msg string) {
		if errs == nil {
			errs = map[string][]string{}
		}
		key := fmt.Sprintf("items.%d", i)
		errs[key] = append(errs[key], msg)
	}

	q := Quote{Subtotal: decimal.Zero}
	for i, l := range lines {
		product, ok := byID[l.ProductID]
		if !ok {
			addErr(i, "The selected product is unavailable.")
			continue
		}
		if l.Size != "" && len(product.Sizes) > 0 &&
			!lo.ContainsBy(product.Sizes, func(s models.Size) bool { return s.Name == l.Size }) {
			addErr(i, fmt.Sprintf("Size %s is not offered for %s.", l.Size, product.Title))
		}
		if !product.InStock(wanted[l.ProductID]) {
			addErr(i, fmt.Sprintf("Only %d of %s left in stock.", product.Qty, product.Title))
		}

		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(l.Qty)))
		q.Items = append(q.Items, QuoteLine{
			ProductID: product.ID,
			Title:     product.Title,
			Size:      l.Size,
			Image:     product.Image,
			UnitPrice: product.Price,
			Qty:       l.Qty,
			LineTotal: lineTotal,
			Available: product.Qty,
			product:   product,
		})
		q.Subtotal = q.Subtotal.Add(lineTotal)
	}

	q.Shipping = p.shippingFor(q.Subtotal)
	q.Total = q.Subtotal.Add(q.Shipping)
	return q, errs, nil
}

package service

import (
	"github.com/dmills/storefront-backend/internal/app/model"
)

// Line mutations are pure transforms: they return fresh slices and never
// touch their input, so a failed stock check leaves the caller's cart
// exactly as it was read.

// addLine returns a copy of lines with one more unit of product. An existing
// line is incremented, a missing one is appended with quantity 1; either way
// the catalog's available stock must cover the resulting quantity.
func addLine(lines []model.CartLine, product *model.Product) ([]model.CartLine, bool, error) {
	next := make([]model.CartLine, len(lines))
	copy(next, lines)

	for i := range next {
		if next[i].ProductID != product.ID {
			continue
		}
		if product.Stock < next[i].Qty+1 {
			return nil, false, ErrInsufficientStock
		}
		next[i].Qty++
		return next, true, nil
	}

	if product.Stock < 1 {
		return nil, false, ErrInsufficientStock
	}
	next = append(next, model.CartLine{
		ProductID: product.ID,
		Name:      product.Name,
		Slug:      product.Slug,
		Price:     product.Price,
		Qty:       1,
		Position:  nextPosition(next),
	})
	return next, false, nil
}

// removeLine returns a copy of lines with one unit of productID removed.
// Removing the final unit deletes the line entirely. Decreasing a quantity
// never consults stock.
func removeLine(lines []model.CartLine, productID uint) ([]model.CartLine, model.CartLine, error) {
	for i := range lines {
		if lines[i].ProductID != productID {
			continue
		}
		removed := lines[i]

		next := make([]model.CartLine, 0, len(lines))
		if lines[i].Qty > 1 {
			next = append(next, lines...)
			next[i].Qty--
		} else {
			next = append(next, lines[:i]...)
			next = append(next, lines[i+1:]...)
		}
		return next, removed, nil
	}
	return nil, model.CartLine{}, ErrCartItemNotFound
}

func nextPosition(lines []model.CartLine) int {
	max := -1
	for _, line := range lines {
		if line.Position > max {
			max = line.Position
		}
	}
	return max + 1
}

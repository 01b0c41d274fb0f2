package service

import (
	"testing"

	"github.com/dmills/storefront-backend/internal/app/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProduct(id uint, stock int) *model.Product {
	return &model.Product{
		ID:    id,
		Name:  "Canvas Tote",
		Slug:  "canvas-tote",
		Price: decimal.NewFromFloat(25.50),
		Stock: stock,
	}
}

func TestAddLine_NewProduct(t *testing.T) {
	product := testProduct(1, 5)

	next, existed, err := addLine(nil, product)
	require.NoError(t, err)
	assert.False(t, existed)
	require.Len(t, next, 1)
	assert.Equal(t, uint(1), next[0].ProductID)
	assert.Equal(t, 1, next[0].Qty)
	assert.Equal(t, 0, next[0].Position)
	assert.Equal(t, "Canvas Tote", next[0].Name)
	assert.True(t, product.Price.Equal(next[0].Price))
}

func TestAddLine_ExistingProductIncrements(t *testing.T) {
	product := testProduct(1, 5)

	lines, _, err := addLine(nil, product)
	require.NoError(t, err)

	next, existed, err := addLine(lines, product)
	require.NoError(t, err)
	assert.True(t, existed)
	require.Len(t, next, 1)
	assert.Equal(t, 2, next[0].Qty)
}

func TestAddLine_InsufficientStock(t *testing.T) {
	product := testProduct(1, 0)

	_, _, err := addLine(nil, product)
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestAddLine_StockCapsQuantity(t *testing.T) {
	product := testProduct(1, 2)

	lines, _, err := addLine(nil, product)
	require.NoError(t, err)
	lines, _, err = addLine(lines, product)
	require.NoError(t, err)

	_, _, err = addLine(lines, product)
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestAddLine_DoesNotMutateInput(t *testing.T) {
	product := testProduct(1, 5)

	lines, _, err := addLine(nil, product)
	require.NoError(t, err)

	_, _, err = addLine(lines, product)
	require.NoError(t, err)
	assert.Equal(t, 1, lines[0].Qty)
}

func TestAddLine_PositionsAreSequential(t *testing.T) {
	first := testProduct(1, 5)
	second := testProduct(2, 5)
	second.Slug = "second"

	lines, _, err := addLine(nil, first)
	require.NoError(t, err)
	lines, _, err = addLine(lines, second)
	require.NoError(t, err)

	assert.Equal(t, 0, lines[0].Position)
	assert.Equal(t, 1, lines[1].Position)
}

func TestRemoveLine_DecrementsQuantity(t *testing.T) {
	product := testProduct(1, 5)

	lines, _, err := addLine(nil, product)
	require.NoError(t, err)
	lines, _, err = addLine(lines, product)
	require.NoError(t, err)

	next, removed, err := removeLine(lines, 1)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, 1, next[0].Qty)
	assert.Equal(t, uint(1), removed.ProductID)
}

func TestRemoveLine_LastUnitDropsLine(t *testing.T) {
	product := testProduct(1, 5)

	lines, _, err := addLine(nil, product)
	require.NoError(t, err)

	next, removed, err := removeLine(lines, 1)
	require.NoError(t, err)
	assert.Len(t, next, 0)
	assert.Equal(t, "Canvas Tote", removed.Name)
}

func TestRemoveLine_NotInCart(t *testing.T) {
	product := testProduct(1, 5)

	lines, _, err := addLine(nil, product)
	require.NoError(t, err)

	_, _, err = removeLine(lines, 99)
	assert.ErrorIs(t, err, ErrCartItemNotFound)
}

func TestRemoveThenReAddRestoresLine(t *testing.T) {
	product := testProduct(1, 5)

	lines, _, err := addLine(nil, product)
	require.NoError(t, err)
	lines, _, err = addLine(lines, product)
	require.NoError(t, err)

	after, _, err := removeLine(lines, 1)
	require.NoError(t, err)
	after, _, err = addLine(after, product)
	require.NoError(t, err)

	require.Len(t, after, 1)
	assert.Equal(t, lines[0].Qty, after[0].Qty)
	assert.Equal(t, lines[0].Position, after[0].Position)
}

func TestRemoveLine_DoesNotMutateInput(t *testing.T) {
	product := testProduct(1, 5)

	lines, _, err := addLine(nil, product)
	require.NoError(t, err)
	lines, _, err = addLine(lines, product)
	require.NoError(t, err)

	_, _, err = removeLine(lines, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, lines[0].Qty)
}

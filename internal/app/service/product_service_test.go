package service

import (
	"testing"

	"github.com/dmills/storefront-backend/internal/app/model"
	"github.com/dmills/storefront-backend/internal/app/repository"
	"github.com/dmills/storefront-backend/internal/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupProductServiceTest(t *testing.T) (ProductService, *gorm.DB) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	productRepo := repository.NewProductRepository(testDB)
	return NewProductService(productRepo), testDB
}

func seedProducts(t *testing.T, svc ProductService) []*model.Product {
	products := []*model.Product{
		{
			Name:     "Trail Runner",
			Slug:     "trail-runner",
			Price:    decimal.NewFromFloat(60.00),
			Category: model.CategoryFootwear,
			Stock:    10,
		},
		{
			Name:     "Canvas Tote",
			Slug:     "canvas-tote",
			Price:    decimal.NewFromFloat(25.50),
			Category: model.CategoryAccessories,
			Stock:    5,
		},
		{
			Name:     "Linen Shirt",
			Slug:     "linen-shirt",
			Price:    decimal.NewFromFloat(45.00),
			Category: model.CategoryApparel,
			Stock:    0,
		},
	}
	for _, p := range products {
		require.NoError(t, svc.CreateProduct(p))
	}
	return products
}

func TestProductService_ListProducts(t *testing.T) {
	svc, _ := setupProductServiceTest(t)
	seedProducts(t, svc)

	products, err := svc.ListProducts(ProductListOptions{})
	require.NoError(t, err)
	assert.Len(t, products, 3)
}

func TestProductService_ListProducts_FilterByCategory(t *testing.T) {
	svc, _ := setupProductServiceTest(t)
	seedProducts(t, svc)

	footwear := model.CategoryFootwear
	products, err := svc.ListProducts(ProductListOptions{Category: &footwear})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "trail-runner", products[0].Slug)
}

func TestProductService_ListProducts_Search(t *testing.T) {
	svc, _ := setupProductServiceTest(t)
	seedProducts(t, svc)

	products, err := svc.ListProducts(ProductListOptions{Search: "canvas"})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Canvas Tote", products[0].Name)
}

func TestProductService_GetProductByID(t *testing.T) {
	svc, _ := setupProductServiceTest(t)
	seeded := seedProducts(t, svc)

	product, err := svc.GetProductByID(seeded[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Trail Runner", product.Name)

	_, err = svc.GetProductByID(9999)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductService_GetProductBySlug(t *testing.T) {
	svc, _ := setupProductServiceTest(t)
	seedProducts(t, svc)

	product, err := svc.GetProductBySlug("canvas-tote")
	require.NoError(t, err)
	assert.Equal(t, "Canvas Tote", product.Name)

	_, err = svc.GetProductBySlug("no-such-slug")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductService_CreateProduct_DuplicateSlug(t *testing.T) {
	svc, _ := setupProductServiceTest(t)
	seedProducts(t, svc)

	err := svc.CreateProduct(&model.Product{
		Name:  "Another Runner",
		Slug:  "trail-runner",
		Price: decimal.NewFromFloat(70.00),
		Stock: 2,
	})
	assert.ErrorIs(t, err, ErrProductSlugExists)
}

func TestProductService_UpdateProduct(t *testing.T) {
	svc, _ := setupProductServiceTest(t)
	seeded := seedProducts(t, svc)

	seeded[0].Stock = 25
	require.NoError(t, svc.UpdateProduct(seeded[0]))

	product, err := svc.GetProductByID(seeded[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 25, product.Stock)
}

func TestProductService_DeleteProduct(t *testing.T) {
	svc, _ := setupProductServiceTest(t)
	seeded := seedProducts(t, svc)

	require.NoError(t, svc.DeleteProduct(seeded[0].ID))

	_, err := svc.GetProductByID(seeded[0].ID)
	assert.ErrorIs(t, err, ErrProductNotFound)

	err = svc.DeleteProduct(9999)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

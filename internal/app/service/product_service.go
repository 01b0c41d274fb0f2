package service

import (
	"errors"

	"github.com/dmills/storefront-backend/internal/app/model"
	"github.com/dmills/storefront-backend/internal/app/repository"
	"github.com/dmills/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrProductSlugExists = errors.New("product slug already exists")
)

type ProductListOptions struct {
	Category *model.ProductCategory
	Search   string
	Limit    int
	Offset   int
}

type ProductService interface {
	ListProducts(opts ProductListOptions) ([]model.Product, error)
	GetProductByID(id uint) (*model.Product, error)
	GetProductBySlug(slug string) (*model.Product, error)
	CreateProduct(product *model.Product) error
	UpdateProduct(product *model.Product) error
	DeleteProduct(id uint) error
}

type productService struct {
	productRepo repository.ProductRepository
}

func NewProductService(productRepo repository.ProductRepository) ProductService {
	return &productService{productRepo: productRepo}
}

func (s *productService) ListProducts(opts ProductListOptions) ([]model.Product, error) {
	logger.Debug("Listing products", map[string]interface{}{
		"category": opts.Category,
		"search":   opts.Search,
		"limit":    opts.Limit,
		"offset":   opts.Offset,
	})

	products, err := s.productRepo.FindWithFilter(repository.ProductFilter{
		Category: opts.Category,
		Search:   opts.Search,
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	})
	if err != nil {
		logger.Error("Failed to list products", err, nil)
		return nil, err
	}
	return products, nil
}

func (s *productService) GetProductByID(id uint) (*model.Product, error) {
	product, err := s.productRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		logger.Error("Failed to fetch product", err, map[string]interface{}{
			"product_id": id,
		})
		return nil, err
	}
	return product, nil
}

func (s *productService) GetProductBySlug(slug string) (*model.Product, error) {
	product, err := s.productRepo.FindBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		logger.Error("Failed to fetch product by slug", err, map[string]interface{}{
			"slug": slug,
		})
		return nil, err
	}
	return product, nil
}

func (s *productService) CreateProduct(product *model.Product) error {
	logger.Info("Creating product", map[string]interface{}{
		"name": product.Name,
		"slug": product.Slug,
	})

	existing, err := s.productRepo.FindBySlug(product.Slug)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("Failed to check existing slug", err, map[string]interface{}{
			"slug": product.Slug,
		})
		return err
	}
	if existing != nil {
		logger.Warn("Product creation failed: slug already exists", map[string]interface{}{
			"slug": product.Slug,
		})
		return ErrProductSlugExists
	}

	return s.productRepo.Create(product)
}

func (s *productService) UpdateProduct(product *model.Product) error {
	logger.Info("Updating product", map[string]interface{}{
		"product_id": product.ID,
		"slug":       product.Slug,
	})

	if _, err := s.GetProductByID(product.ID); err != nil {
		return err
	}
	return s.productRepo.Update(product)
}

func (s *productService) DeleteProduct(id uint) error {
	logger.Info("Deleting product", map[string]interface{}{
		"product_id": id,
	})

	if _, err := s.GetProductByID(id); err != nil {
		return err
	}
	return s.productRepo.Delete(id)
}

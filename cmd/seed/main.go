package main

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/dmills/storefront-backend/config"
	"github.com/dmills/storefront-backend/internal/app/model"
	"github.com/dmills/storefront-backend/internal/app/repository"
	"github.com/dmills/storefront-backend/internal/db"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Expected sheet columns:
//   0: name, 1: description, 2: price, 3: category, 4: stock, 5: image_url
const minColumns = 5

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run cmd/seed/main.go <xlsx_file_path>")
	}

	filePath := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	productRepo := repository.NewProductRepository(db.GetDB())

	fmt.Printf("Reading XLSX file: %s\n", filePath)
	products, err := readProductsFromXLSX(filePath)
	if err != nil {
		log.Fatal("Failed to read XLSX:", err)
	}

	fmt.Printf("Total products to import: %d\n", len(products))

	fmt.Print("Do you want to proceed with the import? (yes/no): ")
	var confirm string
	fmt.Scanln(&confirm)
	if confirm != "yes" && confirm != "y" {
		fmt.Println("Import cancelled.")
		return
	}

	batchSize := 500
	fmt.Printf("Starting bulk import with batch size: %d\n", batchSize)
	if err := productRepo.BulkCreate(products, batchSize); err != nil {
		log.Fatal("Failed to bulk create products:", err)
	}

	fmt.Println("Import completed successfully!")
	fmt.Printf("Total products imported: %d\n", len(products))
}

func readProductsFromXLSX(filePath string) ([]model.Product, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("no sheets found in XLSX file")
	}

	fmt.Printf("Reading sheet: %s\n", sheetName)

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("no data found in XLSX file")
	}

	var products []model.Product
	slugCounter := make(map[string]int)
	skippedCount := 0

	for i, row := range rows {
		// First row is the header
		if i == 0 {
			fmt.Printf("Headers: %v\n", row)
			continue
		}

		if len(row) < minColumns {
			skippedCount++
			continue
		}

		name := strings.TrimSpace(row[0])
		description := strings.TrimSpace(row[1])
		priceStr := strings.TrimSpace(row[2])
		category := strings.ToLower(strings.TrimSpace(row[3]))
		stockStr := strings.TrimSpace(row[4])

		imageURL := ""
		if len(row) > 5 {
			imageURL = strings.TrimSpace(row[5])
		}

		if name == "" || priceStr == "" {
			skippedCount++
			continue
		}

		price, err := decimal.NewFromString(priceStr)
		if err != nil || price.IsNegative() {
			fmt.Printf("Row %d: invalid price %q, skipping\n", i+1, priceStr)
			skippedCount++
			continue
		}

		stock, err := strconv.Atoi(stockStr)
		if err != nil || stock < 0 {
			fmt.Printf("Row %d: invalid stock %q, skipping\n", i+1, stockStr)
			skippedCount++
			continue
		}

		baseSlug := generateSlug(name)
		slug := baseSlug
		if count, exists := slugCounter[baseSlug]; exists {
			slugCounter[baseSlug] = count + 1
			slug = fmt.Sprintf("%s-%d", baseSlug, count+1)
		} else {
			slugCounter[baseSlug] = 1
		}

		products = append(products, model.Product{
			Name:        name,
			Slug:        slug,
			Description: description,
			Price:       price.Round(2),
			Category:    model.ProductCategory(category),
			Stock:       stock,
			ImageURL:    imageURL,
		})
	}

	fmt.Printf("Skipped rows: %d\n", skippedCount)

	return products, nil
}

// generateSlug builds a URL slug from the product name
func generateSlug(name string) string {
	slug := name

	// Keep letters, digits and hyphens only
	reg := regexp.MustCompile(`[^\p{L}\p{N}-]+`)
	slug = reg.ReplaceAllString(slug, "-")

	// Collapse consecutive hyphens
	reg = regexp.MustCompile(`-+`)
	slug = reg.ReplaceAllString(slug, "-")

	slug = strings.Trim(slug, "-")
	slug = strings.ToLower(slug)

	return slug
}

package repository

import (
	"errors"

	"github.com/dmills/storefront-backend/internal/app/model"
	"github.com/dmills/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

// ErrVersionConflict is returned when a conditional cart write observed a
// version other than the one it was based on, or when an insert lost a race
// against another first write for the same identity. The caller re-reads and
// re-applies its mutation.
var ErrVersionConflict = errors.New("cart version conflict")

type CartRepository interface {
	Create(cart *model.Cart) error
	FindByID(id uint) (*model.Cart, error)
	FindByUserID(userID uint) (*model.Cart, error)
	FindBySessionToken(token string) (*model.Cart, error)
	FindAll() ([]model.Cart, error)
	SaveVersioned(cart *model.Cart, expectedVersion uint) error
	ClaimForUser(cartID, userID, expectedVersion uint) error
}

type cartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

// withLines preloads cart lines in insertion order.
func (r *cartRepository) withLines() *gorm.DB {
	return r.db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

func (r *cartRepository) Create(cart *model.Cart) error {
	logger.Debug("Creating cart in database", map[string]interface{}{
		"user_id":       cart.UserID,
		"session_token": cart.SessionToken,
		"line_count":    len(cart.Items),
	})

	if err := r.db.Create(cart).Error; err != nil {
		// The unique indexes on user_id and on unowned session tokens turn
		// racing first inserts into a retryable conflict: the loser re-reads
		// and lands on the winner's row.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			logger.Warn("Cart insert lost a race for its identity", map[string]interface{}{
				"user_id": cart.UserID,
			})
			return ErrVersionConflict
		}
		logger.Error("Failed to create cart in database", err, map[string]interface{}{
			"user_id":       cart.UserID,
			"session_token": cart.SessionToken,
		})
		return err
	}

	logger.Debug("Cart created in database", map[string]interface{}{
		"cart_id": cart.ID,
	})
	return nil
}

func (r *cartRepository) FindByID(id uint) (*model.Cart, error) {
	var cart model.Cart
	err := r.withLines().First(&cart, id).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("Failed to find cart by ID in database", err, map[string]interface{}{
				"cart_id": id,
			})
		}
		return nil, err
	}
	return &cart, nil
}

func (r *cartRepository) FindByUserID(userID uint) (*model.Cart, error) {
	logger.Debug("Finding cart by user ID in database", map[string]interface{}{
		"user_id": userID,
	})

	var cart model.Cart
	err := r.withLines().Where("user_id = ?", userID).First(&cart).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("Failed to find cart by user ID in database", err, map[string]interface{}{
				"user_id": userID,
			})
		}
		return nil, err
	}
	return &cart, nil
}

// FindBySessionToken returns the cart carrying the token. A claimed cart
// keeps its token as a historical link, so an unowned cart is preferred
// whenever both exist; the resolver decides whether a claimed cart is still
// usable for the caller.
func (r *cartRepository) FindBySessionToken(token string) (*model.Cart, error) {
	logger.Debug("Finding cart by session token in database", nil)

	var cart model.Cart
	err := r.withLines().
		Where("session_token = ?", token).
		Order("(user_id IS NULL) DESC, id DESC").
		First(&cart).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("Failed to find cart by session token in database", err, nil)
		}
		return nil, err
	}
	return &cart, nil
}

func (r *cartRepository) FindAll() ([]model.Cart, error) {
	var carts []model.Cart
	if err := r.withLines().Find(&carts).Error; err != nil {
		logger.Error("Failed to list carts in database", err, nil)
		return nil, err
	}
	return carts, nil
}

// SaveVersioned writes the cart header and replaces its lines in one
// transaction. The header update is conditional on the version the caller
// read; zero rows affected means another writer got there first and the
// whole transaction rolls back with ErrVersionConflict.
func (r *cartRepository) SaveVersioned(cart *model.Cart, expectedVersion uint) error {
	logger.Debug("Saving cart with version check", map[string]interface{}{
		"cart_id":          cart.ID,
		"expected_version": expectedVersion,
		"line_count":       len(cart.Items),
	})

	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Cart{}).
			Where("id = ? AND version = ?", cart.ID, expectedVersion).
			Updates(map[string]interface{}{
				"version":        expectedVersion + 1,
				"user_id":        cart.UserID,
				"session_token":  cart.SessionToken,
				"items_price":    cart.ItemsPrice,
				"shipping_price": cart.ShippingPrice,
				"tax_price":      cart.TaxPrice,
				"total_price":    cart.TotalPrice,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}

		if err := tx.Where("cart_id = ?", cart.ID).Delete(&model.CartLine{}).Error; err != nil {
			return err
		}
		for i := range cart.Items {
			cart.Items[i].ID = 0
			cart.Items[i].CartID = cart.ID
		}
		if len(cart.Items) > 0 {
			if err := tx.Create(&cart.Items).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			logger.Warn("Cart version conflict on save", map[string]interface{}{
				"cart_id":          cart.ID,
				"expected_version": expectedVersion,
			})
		} else {
			logger.Error("Failed to save cart in database", err, map[string]interface{}{
				"cart_id": cart.ID,
			})
		}
		return err
	}

	cart.Version = expectedVersion + 1
	logger.Debug("Cart saved in database", map[string]interface{}{
		"cart_id": cart.ID,
		"version": cart.Version,
	})
	return nil
}

// ClaimForUser reassigns an anonymous cart to a user. The update is
// conditional on the version and on the cart still being unowned, so two
// concurrent claims cannot both succeed.
func (r *cartRepository) ClaimForUser(cartID, userID, expectedVersion uint) error {
	logger.Debug("Claiming cart for user in database", map[string]interface{}{
		"cart_id": cartID,
		"user_id": userID,
	})

	res := r.db.Model(&model.Cart{}).
		Where("id = ? AND version = ? AND user_id IS NULL", cartID, expectedVersion).
		Updates(map[string]interface{}{
			"version": expectedVersion + 1,
			"user_id": userID,
		})
	if res.Error != nil {
		logger.Error("Failed to claim cart in database", res.Error, map[string]interface{}{
			"cart_id": cartID,
			"user_id": userID,
		})
		return res.Error
	}
	if res.RowsAffected == 0 {
		logger.Warn("Cart claim lost a version race", map[string]interface{}{
			"cart_id": cartID,
			"user_id": userID,
		})
		return ErrVersionConflict
	}

	logger.Info("Cart claimed for user", map[string]interface{}{
		"cart_id": cartID,
		"user_id": userID,
	})
	return nil
}

package service

import (
	"errors"
	"fmt"

	"github.com/dmills/storefront-backend/internal/app/model"
	"github.com/dmills/storefront-backend/internal/app/repository"
	"github.com/dmills/storefront-backend/pkg/logger"
	"github.com/dmills/storefront-backend/pkg/pricing"
	"gorm.io/gorm"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrCartItemNotFound  = errors.New("cart item not found")
	ErrCartNotFound      = errors.New("cart not found")
	ErrNoSession         = errors.New("no session context")
	ErrCartConflict      = errors.New("cart was modified concurrently")
)

// maxSaveAttempts bounds the re-read/re-apply loop that resolves version
// conflicts between concurrent writers of the same cart.
const maxSaveAttempts = 3

// Identity is the caller's cart identity: an optional authenticated user
// and an optional anonymous session token, as supplied by the middleware.
type Identity struct {
	UserID       *uint
	SessionToken *string
}

func (id Identity) authenticated() bool {
	return id.UserID != nil
}

func (id Identity) hasSession() bool {
	return id.SessionToken != nil && *id.SessionToken != ""
}

// RefreshNotifier is told which product's dependent views should refresh
// after a successful cart mutation.
type RefreshNotifier interface {
	ProductChanged(slug string)
}

// CartChange describes a successful cart mutation.
type CartChange struct {
	Cart        *model.Cart
	ProductName string
	ProductSlug string
	Message     string
}

type CartService interface {
	AddItemToCart(ident Identity, productID uint) (*CartChange, error)
	RemoveItemFromCart(ident Identity, productID uint) (*CartChange, error)
	GetCurrentCart(ident Identity) *model.Cart
	AuditCartTotals() (int, error)
}

type cartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
	notifier    RefreshNotifier
}

func NewCartService(
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	notifier ...RefreshNotifier,
) CartService {
	var n RefreshNotifier
	if len(notifier) > 0 {
		n = notifier[0]
	}
	return &cartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		notifier:    n,
	}
}

func (s *cartService) AddItemToCart(ident Identity, productID uint) (*CartChange, error) {
	logger.Info("Adding item to cart", map[string]interface{}{
		"user_id":    ident.UserID,
		"product_id": productID,
	})

	product, err := s.productRepo.FindByID(productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Cannot add to cart: product not found", map[string]interface{}{
				"product_id": productID,
			})
			return nil, ErrProductNotFound
		}
		logger.Error("Failed to fetch product", err, map[string]interface{}{
			"product_id": productID,
		})
		return nil, err
	}

	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		cart, err := s.resolveCart(ident, true)
		if err != nil {
			return nil, err
		}

		nextLines, existed, err := addLine(cart.Items, product)
		if err != nil {
			logger.Warn("Cannot add to cart: insufficient stock", map[string]interface{}{
				"product_id": productID,
				"stock":      product.Stock,
			})
			return nil, err
		}
		cart.Items = nextLines
		applyPrices(cart)

		if err := s.persistCart(cart); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				continue
			}
			return nil, err
		}

		s.notifyProductChanged(product.Slug)

		verb := "added to"
		if existed {
			verb = "updated in"
		}
		logger.Info("Cart item added successfully", map[string]interface{}{
			"cart_id":    cart.ID,
			"product_id": productID,
			"existed":    existed,
		})
		return &CartChange{
			Cart:        cart,
			ProductName: product.Name,
			ProductSlug: product.Slug,
			Message:     fmt.Sprintf("%s %s cart", product.Name, verb),
		}, nil
	}

	logger.Warn("Add to cart gave up after repeated version conflicts", map[string]interface{}{
		"product_id": productID,
	})
	return nil, ErrCartConflict
}

func (s *cartService) RemoveItemFromCart(ident Identity, productID uint) (*CartChange, error) {
	logger.Info("Removing item from cart", map[string]interface{}{
		"user_id":    ident.UserID,
		"product_id": productID,
	})

	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		cart, err := s.resolveCart(ident, false)
		if err != nil {
			return nil, err
		}
		if cart == nil {
			return nil, ErrCartNotFound
		}

		nextLines, removed, err := removeLine(cart.Items, productID)
		if err != nil {
			logger.Warn("Cannot remove from cart: item not in cart", map[string]interface{}{
				"cart_id":    cart.ID,
				"product_id": productID,
			})
			return nil, err
		}
		cart.Items = nextLines
		applyPrices(cart)

		if err := s.cartRepo.SaveVersioned(cart, cart.Version); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				continue
			}
			return nil, err
		}

		s.notifyProductChanged(removed.Slug)

		verb := "removed from"
		if removed.Qty > 1 {
			verb = "updated in"
		}
		logger.Info("Cart item removed successfully", map[string]interface{}{
			"cart_id":    cart.ID,
			"product_id": productID,
		})
		return &CartChange{
			Cart:        cart,
			ProductName: removed.Name,
			ProductSlug: removed.Slug,
			Message:     fmt.Sprintf("%s %s cart", removed.Name, verb),
		}, nil
	}

	logger.Warn("Remove from cart gave up after repeated version conflicts", map[string]interface{}{
		"product_id": productID,
	})
	return nil, ErrCartConflict
}

// GetCurrentCart returns the caller's cart, or nil when there is none. Any
// lookup failure degrades to nil as well: an empty cart is a normal state,
// not an error the caller can act on.
func (s *cartService) GetCurrentCart(ident Identity) *model.Cart {
	cart, err := s.resolveCart(ident, false)
	if err != nil {
		logger.Warn("Cart lookup failed, returning no cart", map[string]interface{}{
			"user_id": ident.UserID,
			"error":   err.Error(),
		})
		return nil
	}
	return cart
}

// resolveCart determines the single authoritative cart for the caller's
// identity. The cases are evaluated in strict order:
//
//  1. authenticated with an existing user cart: that cart wins; a session
//     cart under the same token is left behind.
//  2. authenticated, no user cart, unowned session cart: merge by claiming
//     the session cart in place (same record, items and prices untouched).
//  3. authenticated, nothing usable: a fresh user-owned cart, but only when
//     the caller intends to write; lookups never materialize empty carts.
//  4. anonymous with an unowned session cart: that cart.
//  5. anonymous with a token and no cart: a fresh anonymous cart (write
//     paths only, same as case 3).
//  6. no token at all: ErrNoSession.
//
// A returned cart with ID 0 has not been persisted yet; persistCart decides
// between Create and the versioned update.
func (s *cartService) resolveCart(ident Identity, createIfMissing bool) (*model.Cart, error) {
	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		if ident.authenticated() {
			userCart, err := s.cartRepo.FindByUserID(*ident.UserID)
			if err == nil {
				return userCart, nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}

			if ident.hasSession() {
				sessionCart, err := s.findSessionCart(*ident.SessionToken)
				if err != nil {
					return nil, err
				}
				if sessionCart != nil {
					if sessionCart.UserID == nil {
						err := s.cartRepo.ClaimForUser(sessionCart.ID, *ident.UserID, sessionCart.Version)
						if errors.Is(err, repository.ErrVersionConflict) {
							// Another request claimed or mutated it first.
							continue
						}
						if err != nil {
							return nil, err
						}
						sessionCart.UserID = ident.UserID
						sessionCart.Version++
						logger.Info("Anonymous cart merged into user account", map[string]interface{}{
							"cart_id": sessionCart.ID,
							"user_id": *ident.UserID,
						})
						return sessionCart, nil
					}
					if *sessionCart.UserID != *ident.UserID {
						// Precedence left this cart behind; surfaced so the
						// orphaning is observable in the field.
						logger.Warn("Session cart already owned by another user, leaving it orphaned", map[string]interface{}{
							"cart_id":  sessionCart.ID,
							"owner_id": *sessionCart.UserID,
							"user_id":  *ident.UserID,
						})
					}
				}
			}

			if !createIfMissing {
				return nil, nil
			}
			return &model.Cart{UserID: ident.UserID, SessionToken: ident.SessionToken}, nil
		}

		if !ident.hasSession() {
			return nil, ErrNoSession
		}

		sessionCart, err := s.findSessionCart(*ident.SessionToken)
		if err != nil {
			return nil, err
		}
		if sessionCart != nil && sessionCart.UserID == nil {
			return sessionCart, nil
		}
		// A claimed cart is permanently user-owned; its token no longer
		// resolves for anonymous callers.
		if !createIfMissing {
			return nil, nil
		}
		return &model.Cart{SessionToken: ident.SessionToken}, nil
	}
	return nil, ErrCartConflict
}

func (s *cartService) findSessionCart(token string) (*model.Cart, error) {
	cart, err := s.cartRepo.FindBySessionToken(token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return cart, nil
}

func (s *cartService) persistCart(cart *model.Cart) error {
	if cart.ID == 0 {
		return s.cartRepo.Create(cart)
	}
	return s.cartRepo.SaveVersioned(cart, cart.Version)
}

func (s *cartService) notifyProductChanged(slug string) {
	if s.notifier == nil {
		return
	}
	s.notifier.ProductChanged(slug)
}

// applyPrices re-derives the four price fields from the cart's lines.
// Every mutation path funnels through here before persistence.
func applyPrices(cart *model.Cart) {
	lines := make([]pricing.Line, len(cart.Items))
	for i, item := range cart.Items {
		lines[i] = pricing.Line{Price: item.Price, Qty: item.Qty}
	}
	b := pricing.Calculate(lines)
	cart.ItemsPrice = b.ItemsPrice
	cart.ShippingPrice = b.ShippingPrice
	cart.TaxPrice = b.TaxPrice
	cart.TotalPrice = b.TotalPrice
}

// AuditCartTotals recomputes every cart's price fields from its lines and
// repairs any that drifted. Carts that lose a version race are skipped; the
// writer that won has already recomputed them.
func (s *cartService) AuditCartTotals() (int, error) {
	carts, err := s.cartRepo.FindAll()
	if err != nil {
		logger.Error("Failed to list carts for totals audit", err)
		return 0, err
	}

	repaired := 0
	for i := range carts {
		cart := carts[i]
		before := [4]string{cart.ItemsPrice, cart.ShippingPrice, cart.TaxPrice, cart.TotalPrice}
		applyPrices(&cart)
		after := [4]string{cart.ItemsPrice, cart.ShippingPrice, cart.TaxPrice, cart.TotalPrice}
		if before == after {
			continue
		}

		logger.Warn("Cart totals drifted from line items", map[string]interface{}{
			"cart_id":  cart.ID,
			"expected": after,
			"stored":   before,
		})
		if err := s.cartRepo.SaveVersioned(&cart, cart.Version); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				continue
			}
			return repaired, err
		}
		repaired++
	}

	logger.Info("Cart totals audit completed", map[string]interface{}{
		"carts":    len(carts),
		"repaired": repaired,
	})
	return repaired, nil
}

package service

import (
	"sync"
	"testing"

	"github.com/dmills/storefront-backend/internal/app/model"
	"github.com/dmills/storefront-backend/internal/app/repository"
	"github.com/dmills/storefront-backend/internal/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// recordingNotifier captures invalidated slugs for assertions.
type recordingNotifier struct {
	mu    sync.Mutex
	slugs []string
}

func (n *recordingNotifier) ProductChanged(slug string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.slugs = append(n.slugs, slug)
}

func (n *recordingNotifier) seen() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.slugs...)
}

func setupCartServiceTest(t *testing.T) (CartService, *model.User, *model.Product, *recordingNotifier, *gorm.DB) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	cartRepo := repository.NewCartRepository(testDB)
	productRepo := repository.NewProductRepository(testDB)
	notifier := &recordingNotifier{}
	cartService := NewCartService(cartRepo, productRepo, notifier)

	user := &model.User{
		Email:        "test@example.com",
		PasswordHash: "hash",
		Name:         "Test User",
		Role:         model.RoleUser,
	}
	testDB.Create(user)

	product := &model.Product{
		Name:     "Trail Runner",
		Slug:     "trail-runner",
		Price:    decimal.NewFromFloat(60.00),
		Category: model.CategoryFootwear,
		Stock:    10,
	}
	testDB.Create(product)

	return cartService, user, product, notifier, testDB
}

func userIdent(userID uint) Identity {
	return Identity{UserID: &userID}
}

func sessionIdent(token string) Identity {
	return Identity{SessionToken: &token}
}

func fullIdent(userID uint, token string) Identity {
	return Identity{UserID: &userID, SessionToken: &token}
}

func TestCartService_AddItemToCart_CreatesUserCart(t *testing.T) {
	cartService, user, product, _, _ := setupCartServiceTest(t)

	change, err := cartService.AddItemToCart(userIdent(user.ID), product.ID)
	require.NoError(t, err)
	require.NotNil(t, change.Cart)

	cart := change.Cart
	assert.NotZero(t, cart.ID)
	require.NotNil(t, cart.UserID)
	assert.Equal(t, user.ID, *cart.UserID)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 1, cart.Items[0].Qty)

	assert.Equal(t, "60.00", cart.ItemsPrice)
	assert.Equal(t, "10.00", cart.ShippingPrice)
	assert.Equal(t, "9.00", cart.TaxPrice)
	assert.Equal(t, "79.00", cart.TotalPrice)
	assert.Equal(t, "Trail Runner added to cart", change.Message)
}

func TestCartService_AddItemToCart_SecondUnitRecomputesTotals(t *testing.T) {
	cartService, user, product, _, _ := setupCartServiceTest(t)

	_, err := cartService.AddItemToCart(userIdent(user.ID), product.ID)
	require.NoError(t, err)

	change, err := cartService.AddItemToCart(userIdent(user.ID), product.ID)
	require.NoError(t, err)

	cart := change.Cart
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Qty)

	// Free shipping kicks in above 100.00
	assert.Equal(t, "120.00", cart.ItemsPrice)
	assert.Equal(t, "0.00", cart.ShippingPrice)
	assert.Equal(t, "18.00", cart.TaxPrice)
	assert.Equal(t, "138.00", cart.TotalPrice)
	assert.Equal(t, "Trail Runner updated in cart", change.Message)
}

func TestCartService_AddItemToCart_ProductNotFound(t *testing.T) {
	cartService, user, _, _, _ := setupCartServiceTest(t)

	_, err := cartService.AddItemToCart(userIdent(user.ID), 9999)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCartService_AddItemToCart_InsufficientStock(t *testing.T) {
	cartService, user, _, _, testDB := setupCartServiceTest(t)

	scarce := &model.Product{
		Name:  "Last One",
		Slug:  "last-one",
		Price: decimal.NewFromFloat(40.00),
		Stock: 1,
	}
	testDB.Create(scarce)

	_, err := cartService.AddItemToCart(userIdent(user.ID), scarce.ID)
	require.NoError(t, err)

	_, err = cartService.AddItemToCart(userIdent(user.ID), scarce.ID)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	// The stored cart keeps its pre-failure state
	cart := cartService.GetCurrentCart(userIdent(user.ID))
	require.NotNil(t, cart)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 1, cart.Items[0].Qty)
	assert.Equal(t, "40.00", cart.ItemsPrice)
}

func TestCartService_AddItemToCart_NoIdentity(t *testing.T) {
	cartService, _, product, _, _ := setupCartServiceTest(t)

	_, err := cartService.AddItemToCart(Identity{}, product.ID)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestCartService_AddItemToCart_AnonymousSession(t *testing.T) {
	cartService, _, product, _, _ := setupCartServiceTest(t)

	change, err := cartService.AddItemToCart(sessionIdent("visitor-token"), product.ID)
	require.NoError(t, err)

	cart := change.Cart
	assert.Nil(t, cart.UserID)
	require.NotNil(t, cart.SessionToken)
	assert.Equal(t, "visitor-token", *cart.SessionToken)
	assert.Equal(t, "79.00", cart.TotalPrice)
}

func TestCartService_RemoveItemFromCart_Decrements(t *testing.T) {
	cartService, user, product, _, _ := setupCartServiceTest(t)

	_, err := cartService.AddItemToCart(userIdent(user.ID), product.ID)
	require.NoError(t, err)
	_, err = cartService.AddItemToCart(userIdent(user.ID), product.ID)
	require.NoError(t, err)

	change, err := cartService.RemoveItemFromCart(userIdent(user.ID), product.ID)
	require.NoError(t, err)

	cart := change.Cart
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 1, cart.Items[0].Qty)
	assert.Equal(t, "79.00", cart.TotalPrice)
	assert.Equal(t, "Trail Runner updated in cart", change.Message)
}

func TestCartService_RemoveItemFromCart_LastUnitDropsLine(t *testing.T) {
	cartService, user, product, _, _ := setupCartServiceTest(t)

	_, err := cartService.AddItemToCart(userIdent(user.ID), product.ID)
	require.NoError(t, err)

	change, err := cartService.RemoveItemFromCart(userIdent(user.ID), product.ID)
	require.NoError(t, err)

	cart := change.Cart
	assert.Len(t, cart.Items, 0)
	assert.Equal(t, "0.00", cart.ItemsPrice)
	assert.Equal(t, "10.00", cart.TotalPrice)
	assert.Equal(t, "Trail Runner removed from cart", change.Message)
}

func TestCartService_RemoveItemFromCart_NotInCart(t *testing.T) {
	cartService, user, product, _, testDB := setupCartServiceTest(t)

	other := &model.Product{
		Name:  "Wool Beanie",
		Slug:  "wool-beanie",
		Price: decimal.NewFromFloat(15.00),
		Stock: 3,
	}
	testDB.Create(other)

	_, err := cartService.AddItemToCart(userIdent(user.ID), product.ID)
	require.NoError(t, err)

	_, err = cartService.RemoveItemFromCart(userIdent(user.ID), other.ID)
	assert.ErrorIs(t, err, ErrCartItemNotFound)
}

func TestCartService_RemoveItemFromCart_NoCart(t *testing.T) {
	cartService, user, product, _, _ := setupCartServiceTest(t)

	_, err := cartService.RemoveItemFromCart(userIdent(user.ID), product.ID)
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestCartService_GetCurrentCart_NeverMaterializes(t *testing.T) {
	cartService, user, _, _, testDB := setupCartServiceTest(t)

	cart := cartService.GetCurrentCart(fullIdent(user.ID, "fresh-token"))
	assert.Nil(t, cart)

	var count int64
	testDB.Model(&model.Cart{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestCartService_GetCurrentCart_MergesSessionCartOnLogin(t *testing.T) {
	cartService, user, product, _, _ := setupCartServiceTest(t)

	change, err := cartService.AddItemToCart(sessionIdent("visitor-token"), product.ID)
	require.NoError(t, err)
	anonCartID := change.Cart.ID

	// Authenticating with the same session claims the cart in place
	cart := cartService.GetCurrentCart(fullIdent(user.ID, "visitor-token"))
	require.NotNil(t, cart)
	assert.Equal(t, anonCartID, cart.ID)
	require.NotNil(t, cart.UserID)
	assert.Equal(t, user.ID, *cart.UserID)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "79.00", cart.TotalPrice)
}

func TestCartService_MergeIsIdempotent(t *testing.T) {
	cartService, user, product, _, testDB := setupCartServiceTest(t)

	change, err := cartService.AddItemToCart(sessionIdent("visitor-token"), product.ID)
	require.NoError(t, err)
	anonCartID := change.Cart.ID

	first := cartService.GetCurrentCart(fullIdent(user.ID, "visitor-token"))
	require.NotNil(t, first)
	second := cartService.GetCurrentCart(fullIdent(user.ID, "visitor-token"))
	require.NotNil(t, second)
	assert.Equal(t, anonCartID, first.ID)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	testDB.Model(&model.Cart{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCartService_UserCartWinsOverSessionCart(t *testing.T) {
	cartService, user, product, _, testDB := setupCartServiceTest(t)

	// User already has a cart
	userChange, err := cartService.AddItemToCart(userIdent(user.ID), product.ID)
	require.NoError(t, err)

	// A separate anonymous cart exists under the visitor's session
	anonChange, err := cartService.AddItemToCart(sessionIdent("visitor-token"), product.ID)
	require.NoError(t, err)
	require.NotEqual(t, userChange.Cart.ID, anonChange.Cart.ID)

	// On login the user cart takes precedence; the session cart is orphaned
	cart := cartService.GetCurrentCart(fullIdent(user.ID, "visitor-token"))
	require.NotNil(t, cart)
	assert.Equal(t, userChange.Cart.ID, cart.ID)

	var orphan model.Cart
	require.NoError(t, testDB.First(&orphan, anonChange.Cart.ID).Error)
	assert.Nil(t, orphan.UserID)
}

func TestCartService_ClaimedCartUnreachableAnonymously(t *testing.T) {
	cartService, user, product, _, _ := setupCartServiceTest(t)

	_, err := cartService.AddItemToCart(sessionIdent("visitor-token"), product.ID)
	require.NoError(t, err)

	// Claim it
	claimed := cartService.GetCurrentCart(fullIdent(user.ID, "visitor-token"))
	require.NotNil(t, claimed)
	require.NotNil(t, claimed.UserID)

	// The same token no longer resolves for anonymous callers
	cart := cartService.GetCurrentCart(sessionIdent("visitor-token"))
	assert.Nil(t, cart)

	// An anonymous write under that token starts a fresh cart
	change, err := cartService.AddItemToCart(sessionIdent("visitor-token"), product.ID)
	require.NoError(t, err)
	assert.NotEqual(t, claimed.ID, change.Cart.ID)
	assert.Nil(t, change.Cart.UserID)
}

func TestCartService_SessionCartOwnedByOtherUser(t *testing.T) {
	cartService, user, product, _, testDB := setupCartServiceTest(t)

	other := &model.User{
		Email:        "other@example.com",
		PasswordHash: "hash",
		Name:         "Other User",
		Role:         model.RoleUser,
	}
	testDB.Create(other)

	// The other user's merge claimed the shared device's session cart
	_, err := cartService.AddItemToCart(sessionIdent("shared-device"), product.ID)
	require.NoError(t, err)
	claimed := cartService.GetCurrentCart(fullIdent(other.ID, "shared-device"))
	require.NotNil(t, claimed)

	// A different user on the same device gets a fresh cart, not the
	// claimed one
	change, err := cartService.AddItemToCart(fullIdent(user.ID, "shared-device"), product.ID)
	require.NoError(t, err)
	assert.NotEqual(t, claimed.ID, change.Cart.ID)
	require.NotNil(t, change.Cart.UserID)
	assert.Equal(t, user.ID, *change.Cart.UserID)
}

func TestCartService_NotifierReceivesSlug(t *testing.T) {
	cartService, user, product, notifier, _ := setupCartServiceTest(t)

	_, err := cartService.AddItemToCart(userIdent(user.ID), product.ID)
	require.NoError(t, err)
	_, err = cartService.RemoveItemFromCart(userIdent(user.ID), product.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{"trail-runner", "trail-runner"}, notifier.seen())
}

func TestCartService_AuditCartTotals_RepairsDrift(t *testing.T) {
	cartService, user, product, _, testDB := setupCartServiceTest(t)

	change, err := cartService.AddItemToCart(userIdent(user.ID), product.ID)
	require.NoError(t, err)

	// Corrupt the stored totals behind the service's back
	err = testDB.Model(&model.Cart{}).
		Where("id = ?", change.Cart.ID).
		Updates(map[string]interface{}{
			"items_price": "999.99",
			"total_price": "999.99",
		}).Error
	require.NoError(t, err)

	repaired, err := cartService.AuditCartTotals()
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)

	cart := cartService.GetCurrentCart(userIdent(user.ID))
	require.NotNil(t, cart)
	assert.Equal(t, "60.00", cart.ItemsPrice)
	assert.Equal(t, "79.00", cart.TotalPrice)
}

func TestCartService_AuditCartTotals_NoDriftNoWrites(t *testing.T) {
	cartService, user, product, _, _ := setupCartServiceTest(t)

	change, err := cartService.AddItemToCart(userIdent(user.ID), product.ID)
	require.NoError(t, err)
	versionBefore := change.Cart.Version

	repaired, err := cartService.AuditCartTotals()
	require.NoError(t, err)
	assert.Equal(t, 0, repaired)

	cart := cartService.GetCurrentCart(userIdent(user.ID))
	require.NotNil(t, cart)
	assert.Equal(t, versionBefore, cart.Version)
}

// Two requests racing to create the first cart for the same session must
// converge on a single row: the losing insert comes back as a version
// conflict and the retry lands on the winner's cart.
func TestCartService_RacingFirstAddsShareOneCart(t *testing.T) {
	svc, _, product, _, testDB := setupCartServiceTest(t)
	impl := svc.(*cartService)
	ident := sessionIdent("kiosk-token")

	first, err := impl.resolveCart(ident, true)
	require.NoError(t, err)
	second, err := impl.resolveCart(ident, true)
	require.NoError(t, err)
	require.Zero(t, first.ID)
	require.Zero(t, second.ID)

	first.Items, _, err = addLine(first.Items, product)
	require.NoError(t, err)
	applyPrices(first)
	require.NoError(t, impl.persistCart(first))

	second.Items, _, err = addLine(second.Items, product)
	require.NoError(t, err)
	applyPrices(second)
	err = impl.persistCart(second)
	assert.ErrorIs(t, err, repository.ErrVersionConflict)

	var count int64
	testDB.Model(&model.Cart{}).Where("session_token = ?", "kiosk-token").Count(&count)
	assert.Equal(t, int64(1), count)

	// The loser retries through the public path and lands on the winner's cart
	change, err := svc.AddItemToCart(ident, product.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, change.Cart.ID)
	require.Len(t, change.Cart.Items, 1)
	assert.Equal(t, 2, change.Cart.Items[0].Qty)
}

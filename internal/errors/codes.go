package errors

// Error code constants returned in response bodies.
// Format: CATEGORY_SPECIFIC_DETAIL. Frontends map these codes to their own
// user-facing messages.

const (
	// ==================== Auth (AUTH_) ====================
	AuthUnauthorized       = "AUTH_UNAUTHORIZED"
	AuthInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	AuthTokenExpired       = "AUTH_TOKEN_EXPIRED"
	AuthTokenInvalid       = "AUTH_TOKEN_INVALID"
	AuthEmailAlreadyExists = "AUTH_EMAIL_EXISTS"

	// ==================== Authz (AUTHZ_) ====================
	AuthzForbidden    = "AUTHZ_FORBIDDEN"
	AuthzRoleNotFound = "AUTHZ_ROLE_NOT_FOUND"

	// ==================== Validation (VALIDATION_) ====================
	ValidationInvalidInput = "VALIDATION_INVALID_INPUT"
	ValidationInvalidID    = "VALIDATION_INVALID_ID"

	// ==================== Product (PRODUCT_) ====================
	ProductNotFound          = "PRODUCT_NOT_FOUND"
	ProductInsufficientStock = "PRODUCT_INSUFFICIENT_STOCK"
	ProductSlugExists        = "PRODUCT_SLUG_EXISTS"

	// ==================== Cart (CART_) ====================
	CartNotFound     = "CART_NOT_FOUND"
	CartItemNotFound = "CART_ITEM_NOT_FOUND"
	CartConflict     = "CART_CONFLICT"

	// ==================== Session (SESSION_) ====================
	SessionRequired = "SESSION_REQUIRED"

	// ==================== Internal (INTERNAL_) ====================
	InternalServerError   = "INTERNAL_SERVER_ERROR"
	InternalDatabaseError = "INTERNAL_DATABASE_ERROR"
)

package util

import (
	"github.com/google/uuid"
)

// GenerateSessionToken creates an opaque token identifying an anonymous
// visitor's cart session.
func GenerateSessionToken() string {
	return uuid.NewString()
}

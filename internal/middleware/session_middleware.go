package middleware

import (
	"github.com/dmills/storefront-backend/config"
	"github.com/dmills/storefront-backend/pkg/util"
	"github.com/gin-gonic/gin"
)

const SessionTokenKey = "session_token"

type SessionMiddleware struct {
	cfg config.SessionConfig
}

func NewSessionMiddleware(cfg config.SessionConfig) *SessionMiddleware {
	return &SessionMiddleware{
		cfg: cfg,
	}
}

// EnsureCartSession reads the visitor's cart session cookie, issuing a fresh
// opaque token when none is present. The token only identifies a browser
// session; it carries no user identity and is safe to hand to anonymous
// visitors.
func (m *SessionMiddleware) EnsureCartSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		token, err := c.Cookie(m.cfg.CookieName)
		if err != nil || token == "" {
			token = util.GenerateSessionToken()
			c.SetCookie(
				m.cfg.CookieName,
				token,
				int(m.cfg.CookieMaxAge.Seconds()),
				"/",
				"",
				m.cfg.CookieSecure,
				true,
			)
			log.Debug("Issued new cart session token", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
		}

		c.Set(SessionTokenKey, token)
		c.Next()
	}
}

// GetSessionToken extracts the cart session token from context
func GetSessionToken(c *gin.Context) (string, bool) {
	token, exists := c.Get(SessionTokenKey)
	if !exists {
		return "", false
	}
	s := token.(string)
	return s, s != ""
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/storefront-cart/internal/http/response"
	"github.com/yungbote/storefront-cart/internal/platform/apierr"
	"github.com/yungbote/storefront-cart/internal/platform/ctxutil"
	"github.com/yungbote/storefront-cart/internal/platform/logger"
)

const (
	CookieCartSession = "cart_session"
	// HeaderCartSession returns a freshly minted token to clients that do
	// not keep cookies.
	HeaderCartSession = "X-Cart-Session"
)

// SessionIssuer is the part of the visitor session service the middleware needs.
type SessionIssuer interface {
	NewVisitor() (visitorID, token string, err error)
	Parse(token string) (string, error)
}

type SessionMiddleware struct {
	log      *logger.Logger
	sessions SessionIssuer
	maxAge   int
	secure   bool
}

func NewSessionMiddleware(log *logger.Logger, sessions SessionIssuer, maxAgeSeconds int, secureCookie bool) *SessionMiddleware {
	return &SessionMiddleware{
		log:      log.With("Middleware", "SessionMiddleware"),
		sessions: sessions,
		maxAge:   maxAgeSeconds,
		secure:   secureCookie,
	}
}

// ResolveVisitor attaches the visitor named by the request's session, minting
// a new anonymous visitor when the session is missing or invalid.
func (sm *SessionMiddleware) ResolveVisitor() gin.HandlerFunc {
	return func(c *gin.Context) {
		vd := &ctxutil.VisitorData{}
		if token := extractSessionToken(c); token != "" {
			id, err := sm.sessions.Parse(token)
			if err == nil {
				vd.VisitorID = id
			} else {
				sm.log.Debug("discarding invalid cart session", "error", err)
			}
		}
		if vd.VisitorID == "" {
			id, token, err := sm.sessions.NewVisitor()
			if err != nil {
				sm.log.Error("mint cart session failed", "error", err)
				response.RespondError(c, http.StatusInternalServerError, apierr.CodeInternal, err)
				c.Abort()
				return
			}
			vd.VisitorID = id
			vd.Fresh = true
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(CookieCartSession, token, sm.maxAge, "/", "", sm.secure, true)
			c.Header(HeaderCartSession, token)
		}
		c.Request = c.Request.WithContext(ctxutil.WithVisitor(c.Request.Context(), vd))
		c.Next()
	}
}

func extractSessionToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	if cookie, err := c.Cookie(CookieCartSession); err == nil && cookie != "" {
		return cookie
	}
	// EventSource cannot set headers.
	return strings.TrimSpace(c.Query("session"))
}

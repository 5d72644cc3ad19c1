package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ethanbaker/voicechat/pkg/apperr"
)

// APIKeyHeader is accepted as an alternative to a bearer Authorization header
const APIKeyHeader = "X-API-KEY"

const identityKey = "voicechat.identity"

// Middleware rejects requests without a valid credential and stores the caller's Identity
func Middleware(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := authn.Authenticate(c.Request.Context(), credentialFrom(c.Request))
		if err != nil {
			e := apperr.Normalize(err)
			c.AbortWithStatusJSON(e.HTTPStatus(), gin.H{
				"error":   e.WireCode(),
				"message": e.Message,
			})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// IdentityFrom returns the Identity set by Middleware
func IdentityFrom(c *gin.Context) (Identity, bool) {
	value, exists := c.Get(identityKey)
	if !exists {
		return Identity{}, false
	}
	identity, ok := value.(Identity)
	return identity, ok
}

func credentialFrom(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return strings.TrimSpace(r.Header.Get(APIKeyHeader))
}

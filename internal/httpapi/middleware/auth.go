package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/TejasGoyal/test-tinyb-skillora/internal/common"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/identity"
)

const (
	PrincipalKey = "principal"

	MsgMissingAuthHeader = "Missing Authorization header"
	MsgBadAuthHeader     = "Missing or invalid authorization header."
)

// Authenticate verifies the bearer credential on c and stores the principal.
// missingMsg is the 401 text for an absent or non-Bearer header.
func Authenticate(c *gin.Context, auth identity.Authenticator, missingMsg string) (*identity.Principal, error) {
	token, ok := identity.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		return nil, common.Unauthorized(missingMsg)
	}
	p, err := auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		return nil, common.Unauthorized(identity.ErrInvalidToken.Error())
	}
	c.Set(PrincipalKey, p)
	return p, nil
}

func BearerAuth(auth identity.Authenticator, missingMsg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := Authenticate(c, auth, missingMsg); err != nil {
			common.FailErr(c, err)
			return
		}
		c.Next()
	}
}

func PrincipalFrom(c *gin.Context) *identity.Principal {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*identity.Principal)
	return p
}

// AdminToken guards ingestion with x-admin-token. The header must equal token
// (constant time) or match the bcrypt hash. With neither configured every
// request is refused.
func AdminToken(token, hash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := strings.TrimSpace(c.GetHeader("x-admin-token"))
		if got == "" || !adminTokenOK(got, token, hash) {
			common.Fail(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		c.Next()
	}
}

func adminTokenOK(got, token, hash string) bool {
	if token != "" && subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1 {
		return true
	}
	if hash != "" && bcrypt.CompareHashAndPassword([]byte(hash), []byte(got)) == nil {
		return true
	}
	return false
}

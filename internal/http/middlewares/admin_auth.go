package middlewares

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hxuan190/omnipool-engine/internal/common"
	"github.com/hxuan190/omnipool-engine/internal/http/httputil"
)

// AdminAuth guards admin routes with a static bearer token. With no token
// configured every admin request is refused.
func AdminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			httputil.Fail(c, common.HTTPErrorForbidden("admin api disabled"))
			c.Abort()
			return
		}
		got := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			httputil.Fail(c, common.HTTPErrorUnauthorized("invalid admin token"))
			c.Abort()
			return
		}
		c.Next()
	}
}

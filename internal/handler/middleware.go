package handler

import (
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/uma-arai/sbcntr-homeservice/internal/auth"
	"github.com/uma-arai/sbcntr-homeservice/internal/model"
)

const identityKey = "identity"

// JWTAuth はBearerトークンを検証し、Identityをコンテキストに設定します
func JWTAuth(verifier auth.TokenVerifier, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			abortWithError(c, errUnauthenticated)
			return
		}
		identity, err := auth.VerifyWithTimeout(c.Request.Context(), verifier, strings.TrimPrefix(h, "Bearer "), timeout)
		if err != nil {
			log.Printf("handler: unauthenticated request path=%s err=%v", c.FullPath(), err)
			abortWithError(c, errUnauthenticated)
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

// RequireRole は指定したロール以外を403で拒否します
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	allowed := map[model.Role]struct{}{}
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := allowed[identityFrom(c).Role]; !ok {
			abortWithError(c, model.ErrUnauthorized)
			return
		}
		c.Next()
	}
}

func identityFrom(c *gin.Context) model.Identity {
	v, _ := c.Get(identityKey)
	identity, _ := v.(model.Identity)
	return identity
}

package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dkeye/roomchat/internal/auth"
	"github.com/dkeye/roomchat/internal/domain"
	"github.com/dkeye/roomchat/internal/store"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	userKey     = "uid"
	tokenCookie = "token"
)

type userGetter interface {
	GetUser(ctx context.Context, id domain.UserID) (domain.User, error)
}

// Protect resolves the caller from a bearer token, the token cookie or the
// session, and rejects the request when none identifies an existing user.
func Protect(jwt *auth.JWTManager, users userGetter) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := tokenUser(c, jwt)
		if uid <= 0 {
			uid = sessionUser(c)
		}
		if uid <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authorized"})
			return
		}
		if _, err := users.GetUser(c.Request.Context(), uid); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authorized"})
				return
			}
			abortWithError(c, err)
			return
		}
		c.Set(userKey, uid)
		c.Next()
	}
}

func tokenUser(c *gin.Context, jwt *auth.JWTManager) domain.UserID {
	var token string
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		token = strings.TrimPrefix(h, "Bearer ")
	} else if v, err := c.Cookie(tokenCookie); err == nil {
		token = v
	}
	if token == "" {
		return 0
	}
	uid, err := jwt.Validate(token)
	if err != nil {
		return 0
	}
	return uid
}

func sessionUser(c *gin.Context) domain.UserID {
	v, _ := sessions.Default(c).Get(userKey).(int64)
	return domain.UserID(v)
}

func currentUser(c *gin.Context) domain.UserID {
	uid, _ := c.Get(userKey)
	id, _ := uid.(domain.UserID)
	return id
}

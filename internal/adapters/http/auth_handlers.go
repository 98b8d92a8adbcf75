package http

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/dkeye/roomchat/internal/auth"
	"github.com/dkeye/roomchat/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type AuthAPI struct {
	Store    Store
	JWT      *auth.JWTManager
	Profiles auth.ProfileFetcher
}

type googleReq struct {
	Token string `json:"token" binding:"required"`
}

type authResp struct {
	Message string      `json:"message"`
	Token   string      `json:"token"`
	User    domain.User `json:"user"`
}

// Google exchanges a provider access token for a local account and session.
func (a *AuthAPI) Google(c *gin.Context) {
	var req googleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	ctx := c.Request.Context()
	p, err := a.Profiles.FetchProfile(ctx, req.Token)
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("google auth failed")
		abortWithError(c, err)
		return
	}

	u, err := a.Store.UpsertUser(ctx, p.Email, displayName(p), p.Picture)
	if err != nil {
		abortWithError(c, err)
		return
	}
	token, err := a.JWT.Generate(u.ID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	sess := sessions.Default(c)
	sess.Set(userKey, int64(u.ID))
	if err := sess.Save(); err != nil {
		abortWithError(c, err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(tokenCookie, token, int(a.JWT.TTL().Seconds()), "/", "", false, true)

	log.Info().Str("module", "adapters.http").Int64("uid", int64(u.ID)).Msg("user signed in")
	c.JSON(http.StatusOK, authResp{Message: "Authentication successful", Token: token, User: u})
}

func (a *AuthAPI) Me(c *gin.Context) {
	u, err := a.Store.GetUser(c.Request.Context(), currentUser(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

func (a *AuthAPI) Logout(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	_ = sess.Save()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(tokenCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

func displayName(p auth.Profile) string {
	name, err := domain.NormalizeName(p.Name)
	switch {
	case errors.Is(err, domain.ErrUsernameEmpty):
		local, _, _ := strings.Cut(p.Email, "@")
		return local
	case errors.Is(err, domain.ErrUsernameTooLong):
		return truncate(strings.TrimSpace(p.Name), domain.MaxUsernameLen)
	}
	return name
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

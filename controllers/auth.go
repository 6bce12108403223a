package controllers

import (
	"net/http"
	"time"

	"Aarogya/middleware"
	"Aarogya/pkg/apperr"

	"github.com/gin-gonic/gin"
)

// Logout revokes the current token id until the token would expire anyway.
func Logout(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := middleware.CurrentPrincipal(c)
		if p.JTI != "" && d.Revocations != nil {
			exp := p.ExpiresAt
			if exp.IsZero() {
				exp = time.Now().Add(24 * time.Hour)
			}
			if err := d.Revocations.Revoke(c.Request.Context(), p.JTI, exp); err != nil {
				d.Log.Error().Err(err).Msg("failed to revoke token")
				fail(c, apperr.Wrap(apperr.KindStoreUnavailable, "could not sign out, try again", err))
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "msg": "logged out"})
	}
}

package controllers

import (
	"net/http"

	"Aarogya/middleware"
	"Aarogya/pkg/store"

	"github.com/gin-gonic/gin"
)

// Profile describes the signed-in caller. Identity lives with the identity
// provider, so this only reports what the session token and the store know.
func Profile(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := middleware.CurrentPrincipal(c)
		convs, err := d.Store.ListForOwner(c.Request.Context(), p.ID, store.ListFilter{})
		if err != nil {
			fail(c, err)
			return
		}
		messages := 0
		for i := range convs {
			messages += len(convs[i].Messages)
		}
		body := gin.H{
			"success":       true,
			"id":            p.ID,
			"conversations": len(convs),
			"messages":      messages,
		}
		if !p.ExpiresAt.IsZero() {
			body["sessionExpiresAt"] = p.ExpiresAt
		}
		c.JSON(http.StatusOK, body)
	}
}

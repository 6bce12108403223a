package auth

import (
	"Aarogya/controllers"

	"github.com/gin-gonic/gin"
)

// RegisterProtected registers session routes behind the session guard.
// Sign-in happens at the identity provider, so there are no public routes.
func RegisterProtected(g *gin.RouterGroup, d *controllers.Deps) {
	g.POST("/logout", controllers.Logout(d))
}

package profile

import (
	"Aarogya/controllers"

	"github.com/gin-gonic/gin"
)

// Register registers protected profile routes on the supplied router group.
// Expects the group to already have the session guard applied.
func Register(g *gin.RouterGroup, d *controllers.Deps) {
	g.GET("/profile", controllers.Profile(d))
}

package routes

import (
	"net/http"

	"Aarogya/controllers"
	"Aarogya/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authRoutes "Aarogya/routes/auth"
	convRoutes "Aarogya/routes/conversation"
	profileRoutes "Aarogya/routes/profile"
	websocketRoutes "Aarogya/routes/websocket"
)

// Guards are the request guards shared by the chat endpoints.
type Guards struct {
	Session *middleware.SessionGuard
	Limiter *middleware.RateLimiter
	Slots   *middleware.UserSlots
}

func RegisterRoutes(r *gin.Engine, d *controllers.Deps, g Guards) {
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "Aarogya chat backend running"})
	})
	r.GET("/healthz", controllers.Health(d))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	websocketRoutes.Register(r, d, g.Session, g.Limiter, g.Slots)

	protected := r.Group("/api")
	protected.Use(g.Session.Middleware())
	authRoutes.RegisterProtected(protected, d)
	convRoutes.Register(protected, d, g.Limiter, g.Slots)
	profileRoutes.Register(protected, d)
}

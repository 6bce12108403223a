package websocket

import (
	"Aarogya/controllers"
	"Aarogya/middleware"

	"github.com/gin-gonic/gin"
)

func Register(r *gin.Engine, d *controllers.Deps, guard *middleware.SessionGuard, limiter *middleware.RateLimiter, slots *middleware.UserSlots) {
	r.GET("/ws/chat", guard.Middleware(), limiter.Middleware(), controllers.ChatWS(d, slots))
}

package conversation

import (
	"Aarogya/controllers"
	"Aarogya/middleware"

	"github.com/gin-gonic/gin"
)

// Register registers conversation routes (protected)
func Register(g *gin.RouterGroup, d *controllers.Deps, limiter *middleware.RateLimiter, slots *middleware.UserSlots) {
	g.POST("/conversations", controllers.CreateConversation(d))
	g.GET("/conversations", controllers.ListConversations(d))
	g.GET("/conversations/:conversation_id", controllers.GetConversation(d))
	g.PATCH("/conversations/:conversation_id", controllers.RenameConversation(d))
	g.DELETE("/conversations/:conversation_id", controllers.DeleteConversation(d))
	g.DELETE("/conversations", controllers.DeleteAllConversations(d))

	// prompts are rate limited and capped per user
	g.POST("/conversations/:conversation_id/messages", limiter.Middleware(), slots.Middleware(), controllers.SendPrompt(d))
	g.POST("/conversations/:conversation_id/messages/stream", limiter.Middleware(), slots.Middleware(), controllers.SendPromptStream(d))
}

package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/yoochat/internal/api/handlers"
)

type Deps struct {
	Session      *handlers.SessionHandler
	Settings     *handlers.SettingsHandler
	Conversation *handlers.ConversationHandler
	Events       *handlers.EventsHandler
	WS           *handlers.WSHandler
	Dictation    *handlers.DictationHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	r.GET("/settings", d.Settings.Get)
	r.PUT("/settings", d.Settings.Update)

	r.GET("/sessions", d.Session.List)
	r.POST("/sessions", d.Session.Create)
	r.GET("/sessions/:session_id", d.Session.Get)
	r.PATCH("/sessions/:session_id", d.Session.Rename)
	r.DELETE("/sessions/:session_id", d.Session.Delete)

	r.POST("/sessions/:session_id/messages", d.Conversation.Send)
	r.GET("/sessions/:session_id/status", d.Conversation.Status)
	r.GET("/sessions/:session_id/events", d.Events.Stream)

	r.GET("/ws/sessions/:session_id", d.WS.SessionWS)

	r.POST("/dictation", d.Dictation.Transcribe)
}

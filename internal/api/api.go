package api

import (
	"net/http"

	voiceCallHandler "voice-server/internal/voicecall/handler"

	"github.com/gin-gonic/gin"
)

type API struct {
	router           *gin.RouterGroup
	voiceCallHandler voiceCallHandler.Handler
}

func New(router *gin.RouterGroup, voiceCallHandler voiceCallHandler.Handler) API {
	return API{
		router:           router,
		voiceCallHandler: voiceCallHandler,
	}
}

func (a *API) RegisterRoutes() {
	a.Health()
	a.router.POST("/initiate_call", a.voiceCallHandler.HandleInitiateCall)
	a.router.POST("/webhook", a.voiceCallHandler.HandleWebhook)
	a.router.POST("/hangup/:call_control_id", a.voiceCallHandler.HandleHangup)
	// The telephony provider fetches staged playback audio from here.
	a.router.GET("/audio/:artifact", a.voiceCallHandler.HandleAudio)
}

func (a *API) Health() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
}

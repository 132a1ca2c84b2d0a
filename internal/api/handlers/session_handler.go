package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoochat/internal/models"
	"github.com/yoockh/yoochat/internal/pubsub"
	"github.com/yoockh/yoochat/internal/services"
	"github.com/yoockh/yoochat/internal/utils"
)

type SessionHandler struct {
	svc      services.SessionService
	settings services.SettingsService
	bus      pubsub.Bus
	log      *logrus.Logger
}

func NewSessionHandler(svc services.SessionService, settings services.SettingsService, bus pubsub.Bus, log *logrus.Logger) *SessionHandler {
	return &SessionHandler{svc: svc, settings: settings, bus: bus, log: log}
}

type CreateSessionRequest struct {
	// Provider defaults to the active provider in settings.
	Provider string `json:"modelProvider"`
}

type RenameSessionRequest struct {
	Title string `json:"title" binding:"required"`
}

func (h *SessionHandler) Create(c *gin.Context) {
	var req CreateSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, "SessionHandler.Create", "invalid request body", err))
			return
		}
	}

	provider := h.settings.Get().ActiveProvider
	if req.Provider != "" {
		p, ok := models.ParseProvider(req.Provider)
		if !ok {
			writeError(c, utils.E(utils.CodeInvalidArgument, "SessionHandler.Create", "unknown provider: "+req.Provider, nil))
			return
		}
		provider = p
	}

	c.JSON(http.StatusCreated, h.svc.Create(provider))
}

func (h *SessionHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": h.svc.List()})
}

func (h *SessionHandler) Get(c *gin.Context) {
	sess, err := h.svc.Get(c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *SessionHandler) Rename(c *gin.Context) {
	var req RenameSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "SessionHandler.Rename", "invalid request body", err))
		return
	}

	sess, err := h.svc.Rename(c.Param("session_id"), req.Title)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *SessionHandler) Delete(c *gin.Context) {
	sessionID := c.Param("session_id")
	if err := h.svc.Delete(sessionID); err != nil {
		writeError(c, err)
		return
	}

	if h.bus != nil {
		ev := models.TurnEvent{Type: models.EventSessionDeleted, SessionID: sessionID, At: time.Now().UTC()}
		if err := h.bus.Publish(c.Request.Context(), ev); err != nil && h.log != nil {
			h.log.WithError(err).WithField("session_id", sessionID).Warn("publish session_deleted failed")
		}
	}
	c.Status(http.StatusNoContent)
}

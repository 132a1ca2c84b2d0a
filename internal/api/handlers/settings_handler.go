package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/yoochat/internal/models"
	"github.com/yoockh/yoochat/internal/services"
	"github.com/yoockh/yoochat/internal/utils"
)

type SettingsHandler struct {
	svc services.SettingsService
}

func NewSettingsHandler(svc services.SettingsService) *SettingsHandler {
	return &SettingsHandler{svc: svc}
}

func (h *SettingsHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, masked(h.svc.Get()))
}

// Update replaces the settings. Keys echoed back in their masked form keep
// their stored value.
func (h *SettingsHandler) Update(c *gin.Context) {
	var req models.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "SettingsHandler.Update", "invalid request body", err))
		return
	}

	current := h.svc.Get()
	for p, k := range req.APIKeys {
		if old := current.APIKey(p); old != "" && k == maskKey(old) {
			req.APIKeys[p] = old
		}
	}

	saved, err := h.svc.Update(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, masked(saved))
}

func masked(s models.Settings) models.Settings {
	out := s.Clone()
	for p, k := range out.APIKeys {
		out.APIKeys[p] = maskKey(k)
	}
	return out
}

package handlers

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/yoochat/internal/providers/stt"
	"github.com/yoockh/yoochat/internal/utils"
)

type DictationHandler struct {
	stt stt.Transcriber
}

func NewDictationHandler(t stt.Transcriber) *DictationHandler {
	return &DictationHandler{stt: t}
}

// Transcribe turns a multipart "audio" clip (LINEAR16, 16kHz) into text the
// browser drops into the composer.
func (h *DictationHandler) Transcribe(c *gin.Context) {
	const op = "DictationHandler.Transcribe"

	if h.stt == nil {
		writeError(c, utils.E(utils.CodeUnavailable, op, "dictation is not configured", nil))
		return
	}

	fh, err := c.FormFile("audio")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "missing multipart field 'audio'", err))
		return
	}
	if fh.Size <= 0 || fh.Size > stt.MaxClipBytes {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "audio must be between 1 byte and 10MB", nil))
		return
	}

	file, err := fh.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to open upload", err))
		return
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(file, stt.MaxClipBytes)); err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to read upload", err))
		return
	}

	out, err := h.stt.Transcribe(c.Request.Context(), buf.Bytes(), c.PostForm("language"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

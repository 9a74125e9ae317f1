package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"voicetask-service/internal/service/capture"
	"voicetask-service/internal/service/extract"
	"voicetask-service/internal/store"
)

// Audio uploads larger than this are rejected before hitting the extraction
// service.
const maxAudioBytes = 20 << 20

var errAudioTooLarge = errors.New("audio payload too large")

type TaskHandler struct {
	store   *store.Store
	capture *capture.Service
	logger  *zap.Logger
}

func NewTaskHandler(st *store.Store, captureSvc *capture.Service, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{store: st, capture: captureSvc, logger: logger}
}

// ListTasks handles GET /tasks?view=active|history.
func (h *TaskHandler) ListTasks(c *gin.Context) {
	view := c.DefaultQuery("view", "active")

	switch view {
	case "active":
		c.JSON(http.StatusOK, gin.H{"view": view, "tasks": h.store.Active()})
	case "history":
		c.JSON(http.StatusOK, gin.H{"view": view, "tasks": h.store.History()})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown view"})
	}
}

// ToggleTask handles POST /tasks/:id/toggle. An unknown id is a no-op, not an
// error: it guards against races between a deletion and a stale reference.
func (h *TaskHandler) ToggleTask(c *gin.Context) {
	id := c.Param("id")
	found := h.store.Toggle(c.Request.Context(), id)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "found": found})
}

// DeleteTask handles DELETE /tasks/:id. Unknown ids are a no-op as well.
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	id := c.Param("id")
	found := h.store.Delete(c.Request.Context(), id)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "found": found})
}

// RecordTask handles POST /tasks/record: an encoded audio blob arrives either
// as a multipart "audio" file part or as the raw request body, and on success
// the extracted task is created and returned.
func (h *TaskHandler) RecordTask(c *gin.Context) {
	audio, mimeType, err := readAudio(c)
	if err != nil {
		h.logger.Warn("RecordTask: bad audio payload", zap.Error(err))
		if errors.Is(err, errAudioTooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.capture.Process(c.Request.Context(), audio, mimeType)
	if err != nil {
		if errors.Is(err, capture.ErrCaptureInFlight) {
			c.JSON(http.StatusConflict, gin.H{"error": "a recording is already being processed"})
			return
		}
		if reason := extract.ReasonOf(err); reason != "" {
			c.JSON(http.StatusBadGateway, gin.H{
				"error":  "task extraction failed",
				"reason": string(reason),
			})
			return
		}
		h.logger.Error("RecordTask: capture failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "capture failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"task": task})
}

func readAudio(c *gin.Context) ([]byte, string, error) {
	if file, err := c.FormFile("audio"); err == nil {
		f, err := file.Open()
		if err != nil {
			return nil, "", err
		}
		defer f.Close()

		audio, err := readBounded(f)
		if err != nil {
			return nil, "", err
		}
		mimeType := file.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = "audio/webm"
		}
		return audio, mimeType, nil
	}

	audio, err := readBounded(c.Request.Body)
	if err != nil {
		return nil, "", err
	}
	mimeType := c.ContentType()
	if mimeType == "" {
		mimeType = "audio/webm"
	}
	return audio, mimeType, nil
}

// readBounded reads at most maxAudioBytes. Reading one byte past the limit
// distinguishes an oversized payload from one that is exactly at it, so a
// too-large upload is rejected whole instead of truncated and forwarded.
func readBounded(r io.Reader) ([]byte, error) {
	audio, err := io.ReadAll(io.LimitReader(r, maxAudioBytes+1))
	if err != nil {
		return nil, err
	}
	if len(audio) > maxAudioBytes {
		return nil, errAudioTooLarge
	}
	if len(audio) == 0 {
		return nil, errors.New("empty audio payload")
	}
	return audio, nil
}

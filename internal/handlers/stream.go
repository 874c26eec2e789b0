package handlers

import (
	"net/http"
	"time"

	"livepoll/internal/logger"
	"livepoll/internal/models"
	"livepoll/internal/services"

	"emperror.dev/errors"
	"github.com/gin-gonic/gin"
)

// DefaultStreamWriteTimeout 单帧写入的超时，卡住的客户端不会无限占用 goroutine
const DefaultStreamWriteTimeout = 10 * time.Second

type StreamHandler struct {
	results      ResultsReader
	live         LiveRegistry
	buffer       int
	writeTimeout time.Duration
}

func NewStreamHandler(results ResultsReader, live LiveRegistry, buffer int) *StreamHandler {
	return &StreamHandler{results: results, live: live, buffer: buffer, writeTimeout: DefaultStreamWriteTimeout}
}

// Stream 以 text/event-stream 推送实时结果
// 本 goroutine 是响应唯一的写入方，广播器通过 StreamConn 向它投递
func (h *StreamHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.live.Init(); err != nil {
		logger.For("stream").WithError(err).Error("Live updates unavailable")
		respondError(c, http.StatusServiceUnavailable, "live updates unavailable")
		return
	}

	results, err := h.results.ResultsByJoinCode(ctx, c.Param("joinCode"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	sessionID := results.SessionID

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	conn := services.NewStreamConn(h.buffer)
	h.live.AddConnection(sessionID, conn)
	defer h.live.RemoveConnection(sessionID, conn)

	initial, err := services.EncodeFrame(models.StreamMessage{
		Type:      models.EventInitialResults,
		SessionID: sessionID,
		Data:      results,
	})
	if err == nil {
		_ = conn.Send(initial)
	}

	rc := http.NewResponseController(c.Writer)
	defer rc.SetWriteDeadline(time.Time{})
	_ = rc.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case <-conn.Done():
			return
		case frame := <-conn.Frames():
			if err := h.writeFrame(rc, c.Writer, frame); err != nil {
				logger.For("stream").WithError(err).WithField("session", sessionID).Debug("Stream write failed")
				return
			}
		}
	}
}

func (h *StreamHandler) writeFrame(rc *http.ResponseController, w gin.ResponseWriter, frame []byte) error {
	err := rc.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	if err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	return rc.Flush()
}

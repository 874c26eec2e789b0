package handlers

import (
	"context"
	"net/http"

	"livepoll/internal/models"

	"github.com/gin-gonic/gin"
)

type SessionAdmin interface {
	Create(ctx context.Context, req models.CreateSessionRequest) (*models.Session, error)
	SetStatus(ctx context.Context, id string, status models.SessionStatus) (*models.Session, error)
	ResetCounts(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	PublicSession(ctx context.Context, joinCode string) (*models.PublicSession, error)
	QueueStatus(ctx context.Context, id string) (*models.QueueStatus, error)
	ClearQueue(ctx context.Context, id string) error
}

type SessionHandler struct {
	sessions SessionAdmin
}

func NewSessionHandler(sessions SessionAdmin) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Public 返回参与者看到的会话
func (h *SessionHandler) Public(c *gin.Context) {
	session, err := h.sessions.PublicSession(c.Request.Context(), c.Param("joinCode"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, session)
}

func (h *SessionHandler) Create(c *gin.Context) {
	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid session payload")
		return
	}
	session, err := h.sessions.Create(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusCreated, session)
}

func (h *SessionHandler) UpdateStatus(c *gin.Context) {
	var req models.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "status must be one of draft, active, stopped, closed")
		return
	}
	session, err := h.sessions.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, session)
}

func (h *SessionHandler) Reset(c *gin.Context) {
	if err := h.sessions.ResetCounts(c.Request.Context(), c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"sessionId": c.Param("id"), "reset": true})
}

func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.sessions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) Queue(c *gin.Context) {
	status, err := h.sessions.QueueStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, status)
}

func (h *SessionHandler) ClearQueue(c *gin.Context) {
	if err := h.sessions.ClearQueue(c.Request.Context(), c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

package handlers

import (
	"context"
	"net/http"

	"livepoll/internal/models"
	"livepoll/internal/services"

	"github.com/gin-gonic/gin"
)

type ResultsReader interface {
	ResultsByJoinCode(ctx context.Context, joinCode string) (*models.SessionResults, error)
	QuestionResults(ctx context.Context, questionID string) (*models.QuestionResult, error)
	Analytics(ctx context.Context, joinCode string) (*models.SessionAnalytics, error)
}

// LiveRegistry HTTP 层用到的广播器接口
type LiveRegistry interface {
	Init() error
	AddConnection(sessionID string, conn services.Conn)
	RemoveConnection(sessionID string, conn services.Conn)
	Stats() models.ConnectionStats
}

type ResultsHandler struct {
	results ResultsReader
	live    LiveRegistry
}

func NewResultsHandler(results ResultsReader, live LiveRegistry) *ResultsHandler {
	return &ResultsHandler{results: results, live: live}
}

func (h *ResultsHandler) Session(c *gin.Context) {
	results, err := h.results.ResultsByJoinCode(c.Request.Context(), c.Param("joinCode"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, results)
}

func (h *ResultsHandler) Question(c *gin.Context) {
	result, err := h.results.QuestionResults(c.Request.Context(), c.Param("questionId"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, result)
}

func (h *ResultsHandler) Analytics(c *gin.Context) {
	analytics, err := h.results.Analytics(c.Request.Context(), c.Param("joinCode"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, analytics)
}

// Stats 返回本进程当前的实时连接
func (h *ResultsHandler) Stats(c *gin.Context) {
	respondData(c, http.StatusOK, h.live.Stats())
}

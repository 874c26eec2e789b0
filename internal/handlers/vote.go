package handlers

import (
	"context"
	"net/http"

	"livepoll/internal/models"
	"livepoll/internal/services"

	"github.com/gin-gonic/gin"
)

type VoteSubmitter interface {
	SubmitVotes(ctx context.Context, joinCode string, inputs []models.VoteInput, p services.Participant) (*models.SubmitVotesResponse, error)
	VotingStatus(ctx context.Context, joinCode string, p services.Participant) (*models.VotingStatus, error)
}

type VoteHandler struct {
	votes VoteSubmitter
}

func NewVoteHandler(votes VoteSubmitter) *VoteHandler {
	return &VoteHandler{votes: votes}
}

// Submit 投票入队，提交前即返回 202
func (h *VoteHandler) Submit(c *gin.Context) {
	var req models.SubmitVotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid vote payload")
		return
	}

	resp, err := h.votes.SubmitVotes(c.Request.Context(), c.Param("joinCode"), req.Votes, participant(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusAccepted, resp)
}

func (h *VoteHandler) Status(c *gin.Context) {
	status, err := h.votes.VotingStatus(c.Request.Context(), c.Param("joinCode"), participant(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondData(c, http.StatusOK, status)
}
